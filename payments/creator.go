package payments

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-pay-server/gateway"
	apperrors "github.com/jrsteele09/go-pay-server/internal/errors"
	"github.com/jrsteele09/go-pay-server/sessions"
	"github.com/jrsteele09/go-pay-server/token"
)

const IdempotencyHeader = "Idempotency-Key"

// Creator validates transaction requests and creates them through the credential proxy.
type Creator struct {
	proxy      gateway.Forwarder
	tokens     *token.Manager
	sessions   sessions.Repo
	validator  *Validator
	strategies map[gateway.Channel]ChannelStrategy
	newKey     func() string
}

type CreatorOption func(*Creator)

// WithStrategy replaces the strategy for the strategy's channel.
func WithStrategy(s ChannelStrategy) CreatorOption {
	return func(c *Creator) {
		c.strategies[s.Channel()] = s
	}
}

func WithIdempotencyKeyFunc(f func() string) CreatorOption {
	return func(c *Creator) {
		c.newKey = f
	}
}

func NewCreator(proxy gateway.Forwarder, tokens *token.Manager, repo sessions.Repo, brands *BrandTable, options ...CreatorOption) *Creator {
	c := &Creator{
		proxy:     proxy,
		tokens:    tokens,
		sessions:  repo,
		validator: NewValidator(),
		strategies: map[gateway.Channel]ChannelStrategy{
			gateway.ChannelOrder:  LinkStrategy{},
			gateway.ChannelPinpad: NewPinpadStrategy(brands),
			gateway.ChannelPOS:    NewPOSStrategy(brands),
		},
		newKey: uuid.NewString,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Strategy returns the strategy registered for a channel.
func (c *Creator) Strategy(channel gateway.Channel) (ChannelStrategy, bool) {
	s, ok := c.strategies[channel]
	return s, ok
}

type createResponse struct {
	Data struct {
		ID            string `json:"id"`
		TransactionID string `json:"transactionId"`
		PayURL        string `json:"payUrl"`
	} `json:"data"`
}

// Create validates req, builds the channel payload and sends it to the gateway.
// Nothing is sent when validation fails.
func (c *Creator) Create(ctx context.Context, sessionID string, req TransactionRequest) (*TransactionResult, error) {
	strategy, ok := c.strategies[req.Channel]
	if !ok {
		return nil, apperrors.NewValidationError("channel", "must be order, pinpad or pos")
	}
	if err := c.validator.Validate(req); err != nil {
		return nil, err
	}

	session, err := c.sessions.Get(ctx, sessionID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrSessionNotFound) {
			return nil, apperrors.Wrapf(apperrors.ErrUnauthorized, "resolve session")
		}
		return nil, errors.Wrap(err, "[Creator Create] resolve session")
	}

	payload, err := strategy.BuildPayload(req, session)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "[Creator Create] marshal payload")
	}

	// one key for the whole call so a retried create is not charged twice
	key := c.newKey()
	send := func(ctx context.Context, bearer string) (*TransactionResult, error) {
		resp, err := c.proxy.Forward(ctx, gateway.Request{
			SessionID: sessionID,
			Channel:   strategy.Channel(),
			Path:      strategy.CreatePath(),
			Method:    http.MethodPost,
			Body:      body,
			Bearer:    bearer,
			Header:    http.Header{IdempotencyHeader: []string{key}},
		})
		if err != nil {
			return nil, err
		}
		if err := gateway.CheckResponse(resp); err != nil {
			return nil, err
		}
		return parseCreateResponse(resp.Body)
	}

	var result *TransactionResult
	if strategy.Channel().RequiresBearer() {
		result, err = token.WithToken(ctx, c.tokens, sessionID, strategy.Channel(), send)
	} else {
		result, err = send(ctx, "")
	}
	if err != nil {
		log.Warn().Err(err).Str("channel", strategy.Channel().String()).Msg("transaction creation failed")
		return nil, err
	}

	log.Info().
		Str("channel", strategy.Channel().String()).
		Str("transaction_id", result.TransactionID).
		Str("idempotency_key", key).
		Msg("transaction created")
	return result, nil
}

func parseCreateResponse(body []byte) (*TransactionResult, error) {
	var parsed createResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrRemoteRejected, "decode create response")
	}
	id := parsed.Data.ID
	if id == "" {
		id = parsed.Data.TransactionID
	}
	if id == "" {
		return nil, apperrors.Wrapf(apperrors.ErrRemoteRejected, "create response has no transaction id")
	}
	return &TransactionResult{TransactionID: id, PayURL: parsed.Data.PayURL}, nil
}
