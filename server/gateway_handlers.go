package server

import (
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-pay-server/gateway"
)

// gatewayTokenHeader carries the gateway bearer token from the client
const gatewayTokenHeader = "X-Gateway-Token"

var forwardedHeaders = []string{"Idempotency-Key"}

// GatewayProxyHandler forwards a call to the gateway with the session's credentials and
// returns the gateway's answer verbatim.
func (s *Server) GatewayProxyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := sessionFromContext(r.Context())

		channel, err := gateway.ParseChannel(r.PathValue("channel"))
		if err != nil {
			writeJSONError(w, "not_found", err.Error(), http.StatusNotFound)
			return
		}

		var body []byte
		if r.Body != nil {
			if body, err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes)); err != nil {
				writeJSONError(w, "invalid_request", "Request body too large", http.StatusRequestEntityTooLarge)
				return
			}
		}

		header := http.Header{}
		for _, name := range forwardedHeaders {
			if v := r.Header.Get(name); v != "" {
				header.Set(name, v)
			}
		}

		resp, err := s.services.Proxy.Forward(r.Context(), gateway.Request{
			SessionID: session.ID,
			Channel:   channel,
			Path:      r.PathValue("path"),
			Method:    r.Method,
			Body:      body,
			Bearer:    r.Header.Get(gatewayTokenHeader),
			Header:    header,
		})
		if err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Str("channel", channel.String()).Msg("gateway proxy failed")
			writeAppError(w, err)
			return
		}

		if resp.ContentType != "" {
			w.Header().Set("Content-Type", resp.ContentType)
		}
		w.WriteHeader(resp.StatusCode)
		_, _ = w.Write(resp.Body)
	}
}
