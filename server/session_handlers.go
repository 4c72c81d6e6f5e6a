package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-pay-server/identity"
	apperrors "github.com/jrsteele09/go-pay-server/internal/errors"
	"github.com/jrsteele09/go-pay-server/sessions"
)

const maxRequestBytes = 1 << 20

type issueSessionRequest struct {
	IDToken      string `json:"idToken"`
	Code         string `json:"code"`
	CodeVerifier string `json:"codeVerifier"`
}

type sessionResponse struct {
	Environment  sessions.Environment `json:"environment"`
	MerchantName string               `json:"merchantName"`
	MerchantKey  string               `json:"merchantKey,omitempty"`
	ExpiresAt    time.Time            `json:"expiresAt"`
}

// IssueSessionHandler exchanges identity material for a stored session and sets the session cookie.
func (s *Server) IssueSessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := zerolog.Ctx(r.Context())

		var req issueSessionRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
			writeJSONError(w, "invalid_request", "Failed to parse the request body", http.StatusBadRequest)
			return
		}

		var (
			claims *identity.Claims
			err    error
		)
		switch {
		case req.IDToken != "":
			claims, err = s.services.Identity.Verify(r.Context(), req.IDToken)
		case req.Code != "":
			if s.services.Exchanger == nil {
				writeJSONError(w, "unsupported", "Authorization code exchange is not configured", http.StatusNotImplemented)
				return
			}
			claims, err = s.services.Exchanger.Exchange(r.Context(), req.Code, req.CodeVerifier)
		default:
			writeJSONError(w, "invalid_request", "idToken or code is required", http.StatusBadRequest)
			return
		}
		if err != nil {
			writeAppError(w, err)
			return
		}

		sessionID, err := generateRandomString(32)
		if err != nil {
			logger.Err(err).Msg("failed to generate session id")
			writeAppError(w, apperrors.ErrInternal)
			return
		}
		ttl := s.config.GetSessionTTL()
		session := &sessions.Session{
			ID:           sessionID,
			Environment:  claims.Environment,
			APIKey:       claims.APIKey,
			APISecret:    claims.APISecret,
			MerchantKey:  claims.MerchantKey,
			MerchantName: claims.MerchantName,
			ExpiresAt:    s.nowFunc().Add(ttl),
		}
		if err := s.services.Sessions.Put(r.Context(), session); err != nil {
			logger.Err(err).Msg("failed to store session")
			writeAppError(w, err)
			return
		}

		// a new sign-in replaces whatever session this browser held
		if previous := sessionIDFromRequest(r); previous != "" {
			s.endSession(r, previous)
		}

		s.SetSessionCookie(w, r, sessionID, int(ttl.Seconds()))
		logger.Info().Object("session", session).Msg("session issued")
		writeJSON(w, http.StatusCreated, s.sessionResponse(session))
	}
}

// SessionMeHandler returns the non-secret identity of the current session.
func (s *Server) SessionMeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.sessionResponse(sessionFromContext(r.Context())))
	}
}

// DestroySessionHandler is idempotent: it clears the cookie whether or not a session exists.
func (s *Server) DestroySessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sessionID := sessionIDFromRequest(r); sessionID != "" {
			s.endSession(r, sessionID)
		}
		s.ClearSessionCookie(w, r)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) endSession(r *http.Request, sessionID string) {
	s.services.Pollers.Forget(sessionID)
	s.services.Sessions.Destroy(r.Context(), sessionID)
}

func (s *Server) sessionResponse(session *sessions.Session) sessionResponse {
	resp := sessionResponse{
		Environment:  session.Environment,
		MerchantName: session.MerchantName,
		MerchantKey:  maskSecret(session.MerchantKey),
		ExpiresAt:    session.ExpiresAt,
	}
	if s.config.GetExposeMerchantKey() {
		resp.MerchantKey = session.MerchantKey
	}
	return resp
}

// maskSecret keeps the last four characters.
func maskSecret(v string) string {
	if len(v) <= 4 {
		return strings.Repeat("*", len(v))
	}
	return strings.Repeat("*", len(v)-4) + v[len(v)-4:]
}
