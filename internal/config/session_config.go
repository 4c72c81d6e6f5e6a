package config

import "time"

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetSessionTTL() time.Duration {
	return GetEnvDuration("SESSION_TTL", 8*time.Hour)
}

// GetSessionSealKey returns the secret the stored credential bundles are sealed with.
func (Session) GetSessionSealKey() string {
	return GetEnv("SESSION_SEAL_KEY", "")
}

func (Session) GetExposeMerchantKey() bool {
	return GetEnvBool("EXPOSE_MERCHANT_KEY", false)
}

func (Session) GetOidcIssuer() string {
	return GetEnv("OIDC_ISSUER", "")
}

func (Session) GetOidcClientID() string {
	return GetEnv("OIDC_CLIENT_ID", "")
}

func (Session) GetOidcClientSecret() string {
	return GetEnv("OIDC_CLIENT_SECRET", "")
}

func (Session) GetOidcRedirectURL() string {
	return GetEnv("OIDC_REDIRECT_URL", "")
}

// GetIdentitySharedSecret enables HS256 identity tokens when no OIDC issuer is configured.
func (Session) GetIdentitySharedSecret() string {
	return GetEnv("IDENTITY_SHARED_SECRET", "")
}
