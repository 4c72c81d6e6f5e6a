package split_test

import (
	"encoding/json"
	"testing"

	apperrors "github.com/jrsteele09/go-pay-server/internal/errors"
	"github.com/jrsteele09/go-pay-server/split"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func allocation(code, amount string) split.Allocation {
	return split.Allocation{BeneficiaryCode: code, Amount: decimal.RequireFromString(amount)}
}

func TestValidate(t *testing.T) {
	t.Run("exact sum is ok", func(t *testing.T) {
		res := split.Validate([]split.Allocation{
			allocation("A", "60.10"),
			allocation("B", "29.90"),
		}, 9000)
		require.True(t, res.OK)
		require.Equal(t, "90.00", res.TotalAllocated.StringFixed(2))
	})

	t.Run("one cent over is not ok", func(t *testing.T) {
		res := split.Validate([]split.Allocation{
			allocation("A", "60.10"),
			allocation("B", "29.91"),
		}, 9000)
		require.False(t, res.OK)
		require.Equal(t, "90.01", res.TotalAllocated.StringFixed(2))
	})

	t.Run("binary fractions do not drift", func(t *testing.T) {
		allocations := make([]split.Allocation, 0, 10)
		for i := 0; i < 10; i++ {
			allocations = append(allocations, allocation("A", "0.10"))
		}
		res := split.Validate(allocations, 100)
		require.True(t, res.OK)
		require.True(t, res.TotalAllocated.Equal(decimal.NewFromInt(1)))
	})

	t.Run("amount beyond int64 cents is not ok", func(t *testing.T) {
		res := split.Validate([]split.Allocation{allocation("A", "184467440737095516.16")}, 9000)
		require.False(t, res.OK)
		require.Equal(t, "184467440737095516.16", res.TotalAllocated.StringFixed(2))
	})

	t.Run("sub-cent excess is not rounded away", func(t *testing.T) {
		res := split.Validate([]split.Allocation{allocation("A", "90.004")}, 9000)
		require.False(t, res.OK)
		require.Equal(t, "90.004", res.TotalAllocated.String())
	})

	t.Run("empty list", func(t *testing.T) {
		res := split.Validate(nil, 100)
		require.True(t, res.OK)
		require.True(t, res.TotalAllocated.IsZero())
	})
}

func TestAllocation_JSON(t *testing.T) {
	var a split.Allocation
	require.NoError(t, json.Unmarshal([]byte(`{"beneficiaryCode":"B1","amount":"12.50","feeSharing":true}`), &a))
	require.Equal(t, "B1", a.BeneficiaryCode)
	require.Equal(t, "12.50", a.Amount.StringFixed(2))
	require.True(t, a.FeeSharing)
}

func TestCheckAllocations(t *testing.T) {
	testCases := []struct {
		name        string
		allocations []split.Allocation
		wantField   string
	}{
		{name: "none", allocations: nil, wantField: "split"},
		{name: "missing beneficiary", allocations: []split.Allocation{allocation("", "1.00")}, wantField: "split.beneficiaryCode"},
		{name: "zero amount", allocations: []split.Allocation{allocation("A", "0")}, wantField: "split.amount"},
		{name: "over total", allocations: []split.Allocation{allocation("A", "90.01")}, wantField: "split"},
		{name: "huge amount", allocations: []split.Allocation{allocation("A", "184467440737095516.16")}, wantField: "split"},
		{name: "sub-cent amount", allocations: []split.Allocation{allocation("A", "0.004")}, wantField: "split.amount"},
		{name: "sub-cent excess", allocations: []split.Allocation{allocation("A", "90.004")}, wantField: "split.amount"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := split.CheckAllocations(tc.allocations, 9000)
			require.ErrorIs(t, err, apperrors.ErrValidation)
			var vErr *apperrors.ValidationError
			require.ErrorAs(t, err, &vErr)
			require.Equal(t, tc.wantField, vErr.Field)
		})
	}

	t.Run("valid", func(t *testing.T) {
		require.NoError(t, split.CheckAllocations([]split.Allocation{allocation("A", "90.00")}, 9000))
	})

	t.Run("trailing zeros keep cent precision", func(t *testing.T) {
		require.NoError(t, split.CheckAllocations([]split.Allocation{allocation("A", "45.5000")}, 9000))
	})
}
