package sessions

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Environment selects which gateway endpoint a session's credentials belong to.
type Environment string

const (
	EnvironmentSandbox    Environment = "sandbox"
	EnvironmentProduction Environment = "production"
)

func (e Environment) Valid() bool {
	return e == EnvironmentSandbox || e == EnvironmentProduction
}

// Session is the gateway credential bundle an identity exchange yields.
// It is written once and only read afterwards, until it is destroyed or expires.
type Session struct {
	ID           string      `json:"id"`
	Environment  Environment `json:"environment"`
	APIKey       string      `json:"apiKey"`
	APISecret    string      `json:"apiSecret"`
	MerchantKey  string      `json:"merchantKey"`
	MerchantName string      `json:"merchantName"`
	ExpiresAt    time.Time   `json:"expiresAt"`
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// MarshalZerologObject logs the session without any credential material.
func (s Session) MarshalZerologObject(e *zerolog.Event) {
	e.Str("environment", string(s.Environment)).
		Str("merchant", s.MerchantName).
		Time("expires_at", s.ExpiresAt)
}

// Repo persists sessions keyed by their opaque id.
type Repo interface {
	// Put stores the session until its ExpiresAt, replacing any entry with the same id
	Put(ctx context.Context, session *Session) error

	// Get returns ErrSessionNotFound when the id is unknown or expired
	Get(ctx context.Context, sessionID string) (*Session, error)

	// Destroy removes the session; it never fails the caller
	Destroy(ctx context.Context, sessionID string)
}
