package payments

import (
	"sort"
	"strings"
	"sync"

	apperrors "github.com/jrsteele09/go-pay-server/internal/errors"
)

// BrandTable turns a card brand into the gateway's brand code, e.g. "mastercard" + credit → "CREDIT_MASTER".
// Aliases are substring substitutions applied before the kind prefix is added.
type BrandTable struct {
	mu      sync.RWMutex
	aliases map[string]string
}

func NewBrandTable() *BrandTable {
	t := &BrandTable{aliases: make(map[string]string)}
	t.Register("MASTERCARD", "MASTER")
	return t
}

// Register adds or replaces an alias substitution. Both sides are upper-cased.
func (t *BrandTable) Register(alias, code string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.aliases[strings.ToUpper(strings.TrimSpace(alias))] = strings.ToUpper(strings.TrimSpace(code))
}

func (t *BrandTable) Normalize(kind PaymentKind, brand string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(brand))
	code = strings.ReplaceAll(code, " ", "_")
	code = strings.TrimPrefix(code, "CREDIT_")
	code = strings.TrimPrefix(code, "DEBIT_")
	if code == "" {
		return "", apperrors.NewValidationError("brand", "is required")
	}

	t.mu.RLock()
	aliases := make([]string, 0, len(t.aliases))
	for alias := range t.aliases {
		aliases = append(aliases, alias)
	}
	// longest first so overlapping aliases resolve the same way every time
	sort.Slice(aliases, func(i, j int) bool {
		if len(aliases[i]) != len(aliases[j]) {
			return len(aliases[i]) > len(aliases[j])
		}
		return aliases[i] < aliases[j]
	})
	for _, alias := range aliases {
		if strings.Contains(code, alias) {
			code = strings.ReplaceAll(code, alias, t.aliases[alias])
			break
		}
	}
	t.mu.RUnlock()

	switch kind {
	case PaymentKindCredit:
		return "CREDIT_" + code, nil
	case PaymentKindDebit:
		return "DEBIT_" + code, nil
	}
	return "", apperrors.NewValidationError("paymentKind", "must be credit or debit")
}
