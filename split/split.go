package split

import (
	"github.com/shopspring/decimal"

	apperrors "github.com/jrsteele09/go-pay-server/internal/errors"
)

// Allocation is one beneficiary's share of a sale in split-payment mode.
type Allocation struct {
	BeneficiaryCode string          `json:"beneficiaryCode"`
	Amount          decimal.Decimal `json:"amount"`
	FeeSharing      bool            `json:"feeSharing"`
}

// Result reports whether a set of allocations fits inside the sale amount.
type Result struct {
	OK             bool
	TotalAllocated decimal.Decimal
}

// Validate sums allocations exactly and checks the total does not exceed saleAmount,
// which is given in minor units.
func Validate(allocations []Allocation, saleAmount int64) Result {
	total := Sum(allocations)
	return Result{
		OK:             total.LessThanOrEqual(decimal.New(saleAmount, -2)),
		TotalAllocated: total,
	}
}

// Sum adds allocation amounts without rounding.
func Sum(allocations []Allocation) decimal.Decimal {
	total := decimal.Zero
	for _, a := range allocations {
		total = total.Add(a.Amount)
	}
	return total
}

// HasCentPrecision reports whether d carries no more than two fractional digits.
func HasCentPrecision(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

// CheckAllocations applies the field rules on each allocation and then the sum rule.
func CheckAllocations(allocations []Allocation, saleAmount int64) error {
	if len(allocations) == 0 {
		return apperrors.NewValidationError("split", "at least one allocation is required")
	}
	for _, a := range allocations {
		if a.BeneficiaryCode == "" {
			return apperrors.NewValidationError("split.beneficiaryCode", "is required")
		}
		if !a.Amount.IsPositive() {
			return apperrors.NewValidationError("split.amount", "must be greater than zero")
		}
		if !HasCentPrecision(a.Amount) {
			return apperrors.NewValidationError("split.amount", "must have at most two decimal places")
		}
	}
	if res := Validate(allocations, saleAmount); !res.OK {
		return apperrors.NewValidationError("split", "allocations exceed the sale amount")
	}
	return nil
}
