package config

import "time"

type Config interface {
	EnvConfig
	CorsConfig
	GatewayConfig
	SessionConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetRedisAddr() string
	GetRedisPassword() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type GatewayConfig interface {
	GetSandboxBaseURL() string
	GetProductionBaseURL() string
	GetGatewayTimeout() time.Duration
	GetPollInterval() time.Duration
	GetPollMaxAttempts() int
}

type SessionConfig interface {
	GetSessionTTL() time.Duration
	GetSessionSealKey() string
	GetExposeMerchantKey() bool
	GetOidcIssuer() string
	GetOidcClientID() string
	GetOidcClientSecret() string
	GetOidcRedirectURL() string
	GetIdentitySharedSecret() string
}

type mainConfig struct {
	EnvVars
	Cors
	Gateway
	Session
}

func New() Config {
	return mainConfig{}
}

// IsProduction reports whether the service runs with production cookies and logging.
func IsProduction(c EnvConfig) bool {
	return c.GetEnv() == "PROD"
}
