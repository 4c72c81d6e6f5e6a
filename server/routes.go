package server

import (
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) initRoutes() {
	// SESSION
	s.RegisterRouteFunc("POST "+RouteSession, ChainMiddleware(s.IssueSessionHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("DELETE "+RouteSession, ChainMiddleware(s.DestroySessionHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteSessionMe, ChainMiddleware(s.SessionMeHandler(), s.APIMiddleware(s.RequireSession())...))

	// GATEWAY PROXY (any method)
	s.RegisterRouteFunc(RouteGatewayProxy, ChainMiddleware(s.GatewayProxyHandler(), s.APIMiddleware(s.RequireSession())...))

	// TRANSACTIONS
	s.RegisterRouteFunc("POST "+RouteTransactionCreate, ChainMiddleware(s.CreateTransactionHandler(), s.APIMiddleware(s.RequireSession())...))
	s.RegisterRouteFunc("GET "+RouteTransaction, ChainMiddleware(s.TransactionStatusHandler(), s.APIMiddleware(s.RequireSession())...))
	s.RegisterRouteFunc("DELETE "+RouteTransaction, ChainMiddleware(s.CancelTransactionHandler(), s.APIMiddleware(s.RequireSession())...))

	// OPS
	s.RegisterRouteHandler("GET "+RouteMetrics, promhttp.Handler())
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
}
