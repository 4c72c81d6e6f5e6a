package server

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-pay-server/gateway"
	apperrors "github.com/jrsteele09/go-pay-server/internal/errors"
	"github.com/jrsteele09/go-pay-server/payments"
	"github.com/jrsteele09/go-pay-server/status"
)

type createTransactionResponse struct {
	TransactionID string           `json:"transactionId"`
	PayURL        string           `json:"payUrl,omitempty"`
	Status        status.Canonical `json:"status"`
}

// CreateTransactionHandler validates and creates a transaction, then starts polling its status.
// Starting a poller stops the one this session was running before.
// Updates are only logged; clients read progress through TransactionStatusHandler snapshots.
func (s *Server) CreateTransactionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := sessionFromContext(r.Context())

		channel, err := gateway.ParseChannel(r.PathValue("channel"))
		if err != nil {
			writeJSONError(w, "not_found", err.Error(), http.StatusNotFound)
			return
		}

		var req payments.TransactionRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
			writeJSONError(w, "invalid_request", "Failed to parse the request body", http.StatusBadRequest)
			return
		}
		req.Channel = channel

		result, err := s.services.Creator.Create(r.Context(), session.ID, req)
		if err != nil {
			writeAppError(w, err)
			return
		}

		strategy, ok := s.services.Creator.Strategy(channel)
		if !ok {
			writeAppError(w, apperrors.ErrInternal)
			return
		}
		fetcher := status.NewGatewayFetcher(s.services.Proxy, s.services.Tokens, session.ID, channel, strategy.StatusPath(result.TransactionID))
		handle := s.services.Pollers.Start(s.pollCtx, session.ID, *result, fetcher, logUpdate)

		zerolog.Ctx(r.Context()).Info().
			Str("transaction_id", result.TransactionID).
			Str("channel", channel.String()).
			Msg("polling started")
		writeJSON(w, http.StatusCreated, createTransactionResponse{
			TransactionID: result.TransactionID,
			PayURL:        result.PayURL,
			Status:        handle.Snapshot().Status,
		})
	}
}

// TransactionStatusHandler returns the latest poller snapshot for one of the session's transactions.
func (s *Server) TransactionStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := sessionFromContext(r.Context())
		handle, ok := s.services.Pollers.Get(session.ID, r.PathValue("id"))
		if !ok {
			writeJSONError(w, "not_found", "Unknown transaction", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, handle.Snapshot())
	}
}

func (s *Server) CancelTransactionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := sessionFromContext(r.Context())
		if !s.services.Pollers.Cancel(session.ID, r.PathValue("id")) {
			writeJSONError(w, "not_found", "Unknown transaction", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func logUpdate(u status.Update) {
	event := log.Info()
	if u.Err != nil {
		event = log.Warn().Err(u.Err)
	}
	event.Str("transaction_id", u.TransactionID).
		Str("status", u.Status.String()).
		Int("attempt", u.Attempt).
		Str("total", u.Total.StringFixed(2)).
		Msg("transaction status changed")
}
