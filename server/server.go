package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-pay-server/gateway"
	"github.com/jrsteele09/go-pay-server/identity"
	"github.com/jrsteele09/go-pay-server/internal/config"
	"github.com/jrsteele09/go-pay-server/payments"
	"github.com/jrsteele09/go-pay-server/sessions"
	"github.com/jrsteele09/go-pay-server/status"
	"github.com/jrsteele09/go-pay-server/token"
)

// Services are the collaborators the HTTP surface is built on.
type Services struct {
	Sessions  sessions.Repo
	Identity  identity.Verifier
	Exchanger identity.CodeExchanger // optional, enables the code flow
	Proxy     gateway.Forwarder
	Tokens    *token.Manager
	Creator   *payments.Creator
	Pollers   *status.Registry
	Health    func(ctx context.Context) error // optional
}

type Server struct {
	env      string // Environment (e.g., "DEV", "PROD")
	mux      *http.ServeMux
	handler  http.HandlerFunc
	routes   []string
	config   config.Config
	services Services
	nowFunc  func() time.Time

	// pollCtx outlives the request that starts a poller
	pollCtx context.Context
}

type Option func(*Server)

func WithNowFunc(now func() time.Time) Option {
	return func(s *Server) {
		s.nowFunc = now
	}
}

func WithPollContext(ctx context.Context) Option {
	return func(s *Server) {
		s.pollCtx = ctx
	}
}

func New(config config.Config, services Services, options ...Option) (*Server, error) {
	if services.Sessions == nil || services.Identity == nil || services.Proxy == nil ||
		services.Tokens == nil || services.Creator == nil || services.Pollers == nil {
		return nil, fmt.Errorf("[Server New] missing service")
	}

	s := &Server{
		env:      config.GetEnv(),
		mux:      http.NewServeMux(),
		config:   config,
		services: services,
		nowFunc:  time.Now,
		pollCtx:  context.Background(),
	}
	for _, opt := range options {
		opt(s)
	}
	s.handler = ChainMiddleware(s.mux.ServeHTTP, s.StdMiddleware()...)

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("ANY", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Debug().Msgf("[%-19s] %s", displayMethod, path)
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
