package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-pay-server/gateway"
	"github.com/jrsteele09/go-pay-server/identity"
	"github.com/jrsteele09/go-pay-server/internal/config"
	"github.com/jrsteele09/go-pay-server/payments"
	"github.com/jrsteele09/go-pay-server/server"
	"github.com/jrsteele09/go-pay-server/sessions"
	fakesessionrepo "github.com/jrsteele09/go-pay-server/sessions/repofakes"
	"github.com/jrsteele09/go-pay-server/status"
	"github.com/jrsteele09/go-pay-server/token"
)

func main() {
	// A missing .env is fine, the environment may already be set
	_ = godotenv.Load()

	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	setupLogging(c)
	displayAppname(c.GetAppName())

	ctx := context.Background()
	repo, health, closeRepo, err := newSessionRepo(ctx, c)
	if err != nil {
		return err
	}
	defer closeRepo()

	verifier, exchanger, err := newIdentity(ctx, c)
	if err != nil {
		return err
	}

	proxy := gateway.NewProxy(repo, gateway.BaseURLs{
		Sandbox:    c.GetSandboxBaseURL(),
		Production: c.GetProductionBaseURL(),
	}, gateway.WithHTTPClient(&http.Client{Timeout: c.GetGatewayTimeout()}))
	tokens := token.New(proxy)
	pollers := status.NewRegistry(status.NewPoller(
		status.WithInterval(c.GetPollInterval()),
		status.WithMaxAttempts(c.GetPollMaxAttempts()),
	), status.WithRetention(c.GetSessionTTL()))
	pruneCtx, stopPruner := context.WithCancel(ctx)
	defer stopPruner()
	go pollers.RunPruner(pruneCtx, time.Minute)

	handler, err := server.New(c, server.Services{
		Sessions:  repo,
		Identity:  verifier,
		Exchanger: exchanger,
		Proxy:     proxy,
		Tokens:    tokens,
		Creator:   payments.NewCreator(proxy, tokens, repo, payments.NewBrandTable()),
		Pollers:   pollers,
		Health:    health,
	})
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}

	srv := &http.Server{Addr: c.GetPort(), Handler: handler}
	serveErr := make(chan error, 1)
	go func() { serveErr <- listenAndServe(srv) }()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-waitForStopSignal():
	}
	return shutdown(srv, pollers)
}

func setupLogging(c config.EnvConfig) {
	level, err := zerolog.ParseLevel(strings.ToLower(c.GetLogLevel()))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if !config.IsProduction(c) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

// newSessionRepo uses Redis when REDIS_ADDR is set and an in-memory table otherwise.
func newSessionRepo(ctx context.Context, c config.Config) (sessions.Repo, func(context.Context) error, func(), error) {
	if c.GetRedisAddr() == "" {
		if config.IsProduction(c) {
			return nil, nil, nil, errors.New("REDIS_ADDR is required in production")
		}
		log.Warn().Msg("REDIS_ADDR not set, sessions are kept in process memory and lost on restart; expired entries are evicted only when read")
		return fakesessionrepo.NewFakeSessionRepo(), nil, func() {}, nil
	}

	sealer, err := sessions.NewSealer(c.GetSessionSealKey())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("sessions.NewSealer: %w", err)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     c.GetRedisAddr(),
		Password: c.GetRedisPassword(),
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	health := func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
	return sessions.NewRedisRepo(client, sealer), health, func() { _ = client.Close() }, nil
}

// newIdentity prefers OpenID Connect and falls back to shared-secret tokens.
func newIdentity(ctx context.Context, c config.SessionConfig) (identity.Verifier, identity.CodeExchanger, error) {
	if issuer := c.GetOidcIssuer(); issuer != "" {
		v, err := identity.NewOIDCVerifier(ctx, identity.OIDCConfig{
			Issuer:       issuer,
			ClientID:     c.GetOidcClientID(),
			ClientSecret: c.GetOidcClientSecret(),
			RedirectURL:  c.GetOidcRedirectURL(),
		})
		if err != nil {
			return nil, nil, err
		}
		return v, v, nil
	}
	if secret := c.GetIdentitySharedSecret(); secret != "" {
		log.Warn().Msg("OIDC_ISSUER not set, accepting shared-secret identity tokens")
		return identity.NewHMACVerifier(secret, c.GetOidcIssuer(), c.GetOidcClientID()), nil, nil
	}
	return nil, nil, errors.New("either OIDC_ISSUER or IDENTITY_SHARED_SECRET must be set")
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server, pollers *status.Registry) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	if err := pollers.Shutdown(ctx); err != nil {
		return fmt.Errorf("pollers.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
