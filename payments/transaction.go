package payments

import (
	"github.com/shopspring/decimal"

	"github.com/jrsteele09/go-pay-server/gateway"
	"github.com/jrsteele09/go-pay-server/split"
)

type PaymentKind string

const (
	PaymentKindCredit PaymentKind = "credit"
	PaymentKindDebit  PaymentKind = "debit"
)

type Mode string

const (
	ModeSingle    Mode = "single"
	ModeRecurring Mode = "recurring"
)

type RecurrenceKind string

const (
	RecurrenceMonthly  RecurrenceKind = "monthly"
	RecurrenceFlexible RecurrenceKind = "flexible"
)

// Recurrence describes a repeating link charge. FrequencyDays only applies to flexible recurrences.
type Recurrence struct {
	Kind          RecurrenceKind `json:"kind"`
	ChargeCount   int            `json:"chargeCount"`
	FrequencyDays int            `json:"frequencyDays,omitempty"`
}

// TransactionRequest holds everything a client supplies to create a transaction.
// Amount is in minor units (9000 is 90.00).
type TransactionRequest struct {
	Amount           int64              `json:"amount"`
	Channel          gateway.Channel    `json:"channel"`
	PaymentKind      PaymentKind        `json:"paymentKind"`
	Brand            string             `json:"brand,omitempty"`
	InstallmentCount int                `json:"installmentCount,omitempty"`
	CustomerName     string             `json:"customerName"`
	CustomerDocument string             `json:"customerDocument"`
	CustomerEmail    *string            `json:"customerEmail,omitempty"`
	Description      string             `json:"description,omitempty"`
	Mode             Mode               `json:"mode,omitempty"`
	Recurrence       *Recurrence        `json:"recurrence,omitempty"`
	Split            []split.Allocation `json:"split,omitempty"`
}

// Installments is the number of installments sent to the gateway. Debit is always one.
func (r TransactionRequest) Installments() int {
	if r.PaymentKind == PaymentKindDebit || r.InstallmentCount < 1 {
		return 1
	}
	return r.InstallmentCount
}

// GatewayAmount formats the amount as the fixed two-decimal string the gateway expects.
func (r TransactionRequest) GatewayAmount() string {
	return decimal.New(r.Amount, -2).StringFixed(2)
}

// TransactionResult is returned on creation and enriched once the transaction is approved.
type TransactionResult struct {
	TransactionID    string           `json:"transactionId"`
	PayURL           string           `json:"payUrl,omitempty"`
	CustomerName     string           `json:"customerName,omitempty"`
	CustomerDocument string           `json:"customerDocument,omitempty"`
	Amount           *decimal.Decimal `json:"amount,omitempty"`
	InstallmentCount int              `json:"installmentCount,omitempty"`
}
