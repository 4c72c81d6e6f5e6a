package server

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"

	"github.com/jrsteele09/go-pay-server/internal/config"
)

// sessionCookieName holds the opaque session id, never the credentials
const sessionCookieName = "paygate_session"

// generateRandomString creates a random base64url string
func generateRandomString(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (s *Server) isSecure(r *http.Request) bool {
	return config.IsProduction(s.config) || getScheme(r) == "https"
}

func (s *Server) SetSessionCookie(w http.ResponseWriter, r *http.Request, sessionID string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.isSecure(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

func (s *Server) ClearSessionCookie(w http.ResponseWriter, r *http.Request) {
	s.SetSessionCookie(w, r, "", -1)
}

func sessionIDFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
