package payments

import (
	"net/mail"
	"regexp"
	"strings"

	"github.com/jrsteele09/go-pay-server/gateway"
	apperrors "github.com/jrsteele09/go-pay-server/internal/errors"
	"github.com/jrsteele09/go-pay-server/internal/utils"
	"github.com/jrsteele09/go-pay-server/split"
)

const MaxInstallments = 12

var (
	namePattern     = regexp.MustCompile(`^[\p{L} ]+$`)
	documentPattern = regexp.MustCompile(`^[0-9]+$`)
	documentMarks   = strings.NewReplacer(".", "", "-", "", "/", "", " ", "")
)

// Validator checks a TransactionRequest before any gateway call is made.
// It returns the first rule the request fails as a *errors.ValidationError.
type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) Validate(req TransactionRequest) error {
	if req.Amount <= 0 {
		return apperrors.NewValidationError("amount", "must be greater than zero")
	}
	if _, err := gateway.ParseChannel(req.Channel.String()); err != nil {
		return apperrors.NewValidationError("channel", "must be order, pinpad or pos")
	}
	if err := v.ValidatePaymentKind(req); err != nil {
		return err
	}
	if req.Channel != gateway.ChannelOrder && strings.TrimSpace(req.Brand) == "" {
		return apperrors.NewValidationError("brand", "is required")
	}
	if err := v.ValidateCustomerName(req.CustomerName); err != nil {
		return err
	}
	if err := v.ValidateDocument(req.CustomerDocument); err != nil {
		return err
	}
	if err := v.ValidateEmail(req.CustomerEmail, req.Channel == gateway.ChannelOrder); err != nil {
		return err
	}

	switch req.Channel {
	case gateway.ChannelOrder:
		if len(req.Split) > 0 {
			return apperrors.NewValidationError("split", "is only available on pinpad")
		}
		return v.ValidateMode(req)
	case gateway.ChannelPinpad:
		if len(req.Split) > 0 {
			return split.CheckAllocations(req.Split, req.Amount)
		}
	case gateway.ChannelPOS:
		if len(req.Split) > 0 {
			return apperrors.NewValidationError("split", "is only available on pinpad")
		}
	}
	if req.Mode == ModeRecurring {
		return apperrors.NewValidationError("mode", "recurring charges are only available on payment links")
	}
	return nil
}

func (v *Validator) ValidatePaymentKind(req TransactionRequest) error {
	switch req.PaymentKind {
	case PaymentKindCredit:
		if req.InstallmentCount < 1 || req.InstallmentCount > MaxInstallments {
			return apperrors.NewValidationError("installmentCount", "must be between 1 and 12 for credit")
		}
	case PaymentKindDebit:
		if req.InstallmentCount > 1 {
			return apperrors.NewValidationError("installmentCount", "debit is a single installment")
		}
	default:
		return apperrors.NewValidationError("paymentKind", "must be credit or debit")
	}
	return nil
}

func (v *Validator) ValidateCustomerName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return apperrors.NewValidationError("customerName", "is required")
	}
	if !namePattern.MatchString(name) {
		return apperrors.NewValidationError("customerName", "may only contain letters and spaces")
	}
	return nil
}

// ValidateDocument accepts an 11 digit individual or 14 digit company document.
// Punctuation is ignored.
func (v *Validator) ValidateDocument(document string) error {
	digits := NormalizeDocument(document)
	if digits == "" {
		return apperrors.NewValidationError("customerDocument", "is required")
	}
	if !documentPattern.MatchString(digits) || (len(digits) != 11 && len(digits) != 14) {
		return apperrors.NewValidationError("customerDocument", "must have 11 or 14 digits")
	}
	return nil
}

func (v *Validator) ValidateEmail(email *string, required bool) error {
	value := strings.TrimSpace(utils.Value(email))
	if value == "" {
		if required {
			return apperrors.NewValidationError("customerEmail", "is required")
		}
		return nil
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value || !strings.Contains(value[strings.LastIndex(value, "@")+1:], ".") {
		return apperrors.NewValidationError("customerEmail", "is not a valid address")
	}
	return nil
}

func (v *Validator) ValidateMode(req TransactionRequest) error {
	switch req.Mode {
	case "", ModeSingle:
		if req.Recurrence != nil {
			return apperrors.NewValidationError("recurrence", "only applies to recurring mode")
		}
		return nil
	case ModeRecurring:
	default:
		return apperrors.NewValidationError("mode", "must be single or recurring")
	}

	r := req.Recurrence
	if r == nil {
		return apperrors.NewValidationError("recurrence", "is required for recurring mode")
	}
	if r.ChargeCount < 1 {
		return apperrors.NewValidationError("recurrence.chargeCount", "must be at least 1")
	}
	switch r.Kind {
	case RecurrenceMonthly:
		if r.FrequencyDays != 0 {
			return apperrors.NewValidationError("recurrence.frequencyDays", "only applies to flexible recurrences")
		}
	case RecurrenceFlexible:
		if r.FrequencyDays < 1 {
			return apperrors.NewValidationError("recurrence.frequencyDays", "must be at least 1")
		}
	default:
		return apperrors.NewValidationError("recurrence.kind", "must be monthly or flexible")
	}
	return nil
}

// NormalizeDocument strips the usual document punctuation.
func NormalizeDocument(document string) string {
	return documentMarks.Replace(strings.TrimSpace(document))
}
