package status

import "strings"

// Canonical is the gateway-independent state of a transaction.
type Canonical string

const (
	Pending     Canonical = "PENDING"
	Processing  Canonical = "PROCESSING"
	Approved    Canonical = "APPROVED"
	Disapproved Canonical = "DISAPPROVED"
	Aborted     Canonical = "ABORTED"
	Error       Canonical = "ERROR"
)

// Terminal reports whether polling stops at this state.
func (c Canonical) Terminal() bool {
	switch c {
	case Approved, Disapproved, Aborted, Error:
		return true
	}
	return false
}

func (c Canonical) String() string {
	return string(c)
}

var (
	disapprovedMarkers = []string{"DISAPPROVED", "DENIED", "REJECT"}
	abortedMarkers     = []string{"ABORTED", "CANCELED", "CANCELLED"}
)

// FromVendor maps a raw gateway status to a canonical state. Matching ignores case and
// surrounding text; APPROVED wins over every other marker. Anything unrecognized is PROCESSING.
func FromVendor(raw string) Canonical {
	s := strings.ToUpper(raw)
	if strings.Contains(strings.ReplaceAll(s, "DISAPPROVED", ""), "APPROVED") {
		return Approved
	}
	if containsAny(s, disapprovedMarkers) {
		return Disapproved
	}
	if containsAny(s, abortedMarkers) {
		return Aborted
	}
	return Processing
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
