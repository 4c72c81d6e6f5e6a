package config

import "time"

type Gateway struct{}

var _ GatewayConfig = Gateway{}

func (Gateway) GetSandboxBaseURL() string {
	return GetEnv("GATEWAY_SANDBOX_URL", "https://sandbox.api.gateway.example.com/v1")
}

func (Gateway) GetProductionBaseURL() string {
	return GetEnv("GATEWAY_PRODUCTION_URL", "https://api.gateway.example.com/v1")
}

func (Gateway) GetGatewayTimeout() time.Duration {
	return GetEnvDuration("GATEWAY_TIMEOUT", 15*time.Second)
}

func (Gateway) GetPollInterval() time.Duration {
	return GetEnvDuration("POLL_INTERVAL", 5*time.Second)
}

func (Gateway) GetPollMaxAttempts() int {
	return GetEnvInt("POLL_MAX_ATTEMPTS", 36) // 36 x 5s = 3 minutes
}
