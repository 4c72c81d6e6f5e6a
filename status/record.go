package status

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	apperrors "github.com/jrsteele09/go-pay-server/internal/errors"
	"github.com/jrsteele09/go-pay-server/payments"
)

type Payment struct {
	Value             decimal.Decimal `json:"value"`
	RecipientDocument string          `json:"recipientDocument"`
}

// Record is the part of the gateway's status payload the poller reads.
type Record struct {
	Status          string              `json:"status"`
	ClientName      string              `json:"clientName"`
	ClientDocument  string              `json:"clientDocument"`
	Value           decimal.NullDecimal `json:"value"`
	PaymentQuantity int                 `json:"paymentQuantity"`
	Payments        []Payment           `json:"payments"`
}

type recordEnvelope struct {
	Data *Record `json:"data"`
}

func ParseRecord(body []byte) (*Record, error) {
	var env recordEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrRemoteRejected, "decode status response: %v", err)
	}
	if env.Data == nil {
		return nil, apperrors.Wrapf(apperrors.ErrRemoteRejected, "status response has no data")
	}
	return env.Data, nil
}

// SettledTotal sums the payments exactly.
func (r *Record) SettledTotal() decimal.Decimal {
	total := decimal.Zero
	for _, p := range r.Payments {
		total = total.Add(p.Value)
	}
	return total
}

// Enrich copies the settled outcome onto a creation result.
func (r *Record) Enrich(result *payments.TransactionResult) {
	if r.ClientName != "" {
		result.CustomerName = r.ClientName
	}
	if r.ClientDocument != "" {
		result.CustomerDocument = r.ClientDocument
	} else {
		for _, p := range r.Payments {
			if p.RecipientDocument != "" {
				result.CustomerDocument = p.RecipientDocument
				break
			}
		}
	}

	total := r.SettledTotal()
	if len(r.Payments) == 0 && r.Value.Valid {
		total = r.Value.Decimal
	}
	result.Amount = &total

	if r.PaymentQuantity > 0 {
		result.InstallmentCount = r.PaymentQuantity
	}
}
