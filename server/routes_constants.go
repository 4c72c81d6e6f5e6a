package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Session Routes
	RouteSession   = "/api/session"
	RouteSessionMe = "/api/session/me"

	// Gateway proxy, {path...} is forwarded below the channel root
	RouteGatewayProxy = "/api/gateway/{channel}/{path...}"

	// Transaction Routes
	RouteTransactionCreate = "/api/transactions/{channel}"
	RouteTransaction       = "/api/transactions/{id}"

	// Operational Routes
	RouteMetrics = "/metrics"
	RouteHealth  = "/healthz"
)
