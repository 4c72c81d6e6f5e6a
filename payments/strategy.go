package payments

import (
	"github.com/jrsteele09/go-pay-server/gateway"
	apperrors "github.com/jrsteele09/go-pay-server/internal/errors"
	"github.com/jrsteele09/go-pay-server/sessions"
	"github.com/jrsteele09/go-pay-server/split"
)

// ChannelStrategy holds the parts of transaction creation that differ per channel.
type ChannelStrategy interface {
	Channel() gateway.Channel
	CreatePath() string
	StatusPath(transactionID string) string
	BuildPayload(req TransactionRequest, session *sessions.Session) (any, error)
}

type customerPayload struct {
	Name     string `json:"name"`
	Document string `json:"document"`
	Email    string `json:"email,omitempty"`
}

func newCustomerPayload(req TransactionRequest) customerPayload {
	c := customerPayload{
		Name:     req.CustomerName,
		Document: NormalizeDocument(req.CustomerDocument),
	}
	if req.CustomerEmail != nil {
		c.Email = *req.CustomerEmail
	}
	return c
}

// LinkStrategy creates hosted payment links on the order channel.
type LinkStrategy struct{}

type linkPayload struct {
	Amount       string          `json:"amount"`
	Description  string          `json:"description,omitempty"`
	PaymentType  PaymentKind     `json:"paymentType"`
	Installments int             `json:"installments"`
	Mode         Mode            `json:"mode"`
	Recurrence   *Recurrence     `json:"recurrence,omitempty"`
	Customer     customerPayload `json:"customer"`
}

func (LinkStrategy) Channel() gateway.Channel { return gateway.ChannelOrder }

func (LinkStrategy) CreatePath() string { return "create" }

func (LinkStrategy) StatusPath(transactionID string) string { return "status/" + transactionID }

func (LinkStrategy) BuildPayload(req TransactionRequest, _ *sessions.Session) (any, error) {
	mode := req.Mode
	if mode == "" {
		mode = ModeSingle
	}
	return linkPayload{
		Amount:       req.GatewayAmount(),
		Description:  req.Description,
		PaymentType:  req.PaymentKind,
		Installments: req.Installments(),
		Mode:         mode,
		Recurrence:   req.Recurrence,
		Customer:     newCustomerPayload(req),
	}, nil
}

// RemoteStrategy creates remote charges on a pinpad or POS terminal.
type RemoteStrategy struct {
	channel    gateway.Channel
	brands     *BrandTable
	allowSplit bool
}

type remotePayload struct {
	MerchantKey  string             `json:"merchantKey"`
	Amount       string             `json:"amount"`
	Brand        string             `json:"brand"`
	PaymentType  PaymentKind        `json:"paymentType"`
	Installments int                `json:"installments"`
	Customer     customerPayload    `json:"customer"`
	Split        []split.Allocation `json:"split,omitempty"`
}

func NewPinpadStrategy(brands *BrandTable) *RemoteStrategy {
	return &RemoteStrategy{channel: gateway.ChannelPinpad, brands: brands, allowSplit: true}
}

func NewPOSStrategy(brands *BrandTable) *RemoteStrategy {
	return &RemoteStrategy{channel: gateway.ChannelPOS, brands: brands}
}

func (s *RemoteStrategy) Channel() gateway.Channel { return s.channel }

func (s *RemoteStrategy) CreatePath() string { return "remote/charge" }

func (s *RemoteStrategy) StatusPath(transactionID string) string {
	return "remote/status/" + transactionID
}

func (s *RemoteStrategy) BuildPayload(req TransactionRequest, session *sessions.Session) (any, error) {
	if session.MerchantKey == "" {
		return nil, apperrors.NewValidationError("merchantKey", "session has no merchant key")
	}
	brand, err := s.brands.Normalize(req.PaymentKind, req.Brand)
	if err != nil {
		return nil, err
	}

	payload := remotePayload{
		MerchantKey:  session.MerchantKey,
		Amount:       req.GatewayAmount(),
		Brand:        brand,
		PaymentType:  req.PaymentKind,
		Installments: req.Installments(),
		Customer:     newCustomerPayload(req),
	}
	if len(req.Split) > 0 {
		if !s.allowSplit {
			return nil, apperrors.NewValidationError("split", "is only available on pinpad")
		}
		if err := split.CheckAllocations(req.Split, req.Amount); err != nil {
			return nil, err
		}
		payload.Split = req.Split
	}
	return payload, nil
}
