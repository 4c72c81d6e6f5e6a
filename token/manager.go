package token

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-pay-server/gateway"
	apperrors "github.com/jrsteele09/go-pay-server/internal/errors"
	"github.com/jrsteele09/go-pay-server/internal/metrics"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrEmptyToken is returned when the gateway answers 2xx without a token.
var ErrEmptyToken = errors.New("gateway returned an empty token")

// Manager obtains short-lived bearer tokens through the credential proxy.
type Manager struct {
	proxy   gateway.Forwarder
	nowFunc func() time.Time
}

type ManagerOption func(*Manager)

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func New(proxy gateway.Forwarder, options ...ManagerOption) *Manager {
	m := &Manager{proxy: proxy}
	for _, opt := range options {
		opt(m)
	}
	if m.nowFunc == nil {
		m.nowFunc = time.Now
	}
	return m
}

// tokenResponse accepts the token at the top level or under data.
type tokenResponse struct {
	Token       string `json:"token"`
	AccessToken string `json:"access_token"`
	Data        struct {
		Token string `json:"token"`
	} `json:"data"`
}

func (t tokenResponse) value() string {
	switch {
	case t.Token != "":
		return t.Token
	case t.AccessToken != "":
		return t.AccessToken
	}
	return t.Data.Token
}

// Fetch requests a fresh bearer token for the session on the given channel.
func (m *Manager) Fetch(ctx context.Context, sessionID string, channel gateway.Channel) (string, error) {
	resp, err := m.proxy.Forward(ctx, gateway.Request{
		SessionID: sessionID,
		Channel:   channel,
		Path:      gateway.TokenPath,
		Method:    http.MethodPost,
	})
	if err == nil {
		err = gateway.CheckResponse(resp)
	}
	if err != nil {
		metrics.TokenFetch(channel.String(), false)
		return "", errors.Wrap(err, "Manager.Fetch")
	}

	var body tokenResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		metrics.TokenFetch(channel.String(), false)
		return "", errors.Wrap(err, "Manager.Fetch Unmarshal")
	}
	tok := strings.TrimSpace(body.value())
	if tok == "" {
		metrics.TokenFetch(channel.String(), false)
		return "", ErrEmptyToken
	}
	metrics.TokenFetch(channel.String(), true)

	if exp, ok := m.expiry(tok); ok {
		log.Debug().Str("channel", channel.String()).Dur("valid_for", exp.Sub(m.nowFunc())).Msg("gateway token issued")
	}
	return tok, nil
}

// expiry reads the exp claim when the gateway token is a JWT. Signatures are not checked;
// the token is only relayed back to the gateway.
func (m *Manager) expiry(raw string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// WithToken fetches a token and calls fn with it. When fn fails with ErrUnauthorized exactly one
// replacement token is fetched and fn is retried once; any later failure is returned.
// At most two tokens are fetched and fn runs at most twice.
func WithToken[T any](ctx context.Context, m *Manager, sessionID string, channel gateway.Channel, fn func(ctx context.Context, token string) (T, error)) (T, error) {
	var zero T

	tok, err := m.Fetch(ctx, sessionID, channel)
	if err != nil {
		return zero, err
	}
	result, err := fn(ctx, tok)
	if err == nil || !apperrors.Is(err, apperrors.ErrUnauthorized) {
		return result, err
	}

	log.Info().Str("channel", channel.String()).Msg("gateway refused token, refreshing once")
	tok, err = m.Fetch(ctx, sessionID, channel)
	if err != nil {
		return zero, err
	}
	return fn(ctx, tok)
}

// Holder keeps the last token for a session/channel pair across calls. Each Do call keeps the
// WithToken bound: at most two fetches and two invocations.
type Holder struct {
	manager   *Manager
	sessionID string
	channel   gateway.Channel

	mu    sync.Mutex
	token string
}

// NewHolder starts a holder, optionally seeded with a token already known to be valid.
func NewHolder(m *Manager, sessionID string, channel gateway.Channel, seed string) *Holder {
	return &Holder{manager: m, sessionID: sessionID, channel: channel, token: seed}
}

func (h *Holder) Do(ctx context.Context, fn func(ctx context.Context, token string) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.token == "" {
		tok, err := h.manager.Fetch(ctx, h.sessionID, h.channel)
		if err != nil {
			return err
		}
		h.token = tok
	}

	err := fn(ctx, h.token)
	if err == nil || !apperrors.Is(err, apperrors.ErrUnauthorized) {
		return err
	}

	h.token = ""
	tok, fetchErr := h.manager.Fetch(ctx, h.sessionID, h.channel)
	if fetchErr != nil {
		return fetchErr
	}
	h.token = tok
	if err = fn(ctx, h.token); apperrors.Is(err, apperrors.ErrUnauthorized) {
		h.token = ""
	}
	return err
}
