package server

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	apperrors "github.com/jrsteele09/go-pay-server/internal/errors"
	"github.com/jrsteele09/go-pay-server/sessions"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeySession stores the resolved *sessions.Session
const ContextKeySession ContextKey = "session"

// RequireSession resolves the session cookie and rejects the request when it is missing or expired.
func (s *Server) RequireSession() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			sessionID := sessionIDFromRequest(r)
			if sessionID == "" {
				writeAppError(w, apperrors.ErrSessionNotFound)
				return
			}

			session, err := s.services.Sessions.Get(r.Context(), sessionID)
			if err != nil {
				if apperrors.Is(err, apperrors.ErrSessionNotFound) {
					s.services.Pollers.Forget(sessionID)
					s.ClearSessionCookie(w, r)
				} else {
					zerolog.Ctx(r.Context()).Err(err).Msg("session lookup failed")
				}
				writeAppError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeySession, session)
			next(w, r.WithContext(ctx))
		}
	}
}

func sessionFromContext(ctx context.Context) *sessions.Session {
	session, _ := ctx.Value(ContextKeySession).(*sessions.Session)
	return session
}
