package status

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	apperrors "github.com/jrsteele09/go-pay-server/internal/errors"
	"github.com/jrsteele09/go-pay-server/internal/metrics"
	"github.com/jrsteele09/go-pay-server/payments"
)

const (
	DefaultInterval    = 5 * time.Second
	DefaultMaxAttempts = 36
)

// Update is emitted whenever the canonical state or the settled total changes.
type Update struct {
	TransactionID string
	Status        Canonical
	Attempt       int
	Total         decimal.Decimal
	Result        payments.TransactionResult
	Err           error
	At            time.Time
}

// Snapshot is the poller's latest view of a transaction.
type Snapshot struct {
	TransactionID string                     `json:"transactionId"`
	Status        Canonical                  `json:"status"`
	Attempts      int                        `json:"attempts"`
	Total         decimal.Decimal            `json:"total"`
	Result        payments.TransactionResult `json:"result"`
	Message       *apperrors.UserMessage     `json:"message,omitempty"`
	Cancelled     bool                       `json:"cancelled"`
	UpdatedAt     time.Time                  `json:"updatedAt"`
}

// Poller polls a transaction's status on a fixed cadence until it reaches a terminal state,
// runs out of attempts or is cancelled.
type Poller struct {
	interval    time.Duration
	maxAttempts int
	nowFunc     func() time.Time
}

type PollerOption func(*Poller)

func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		p.interval = d
	}
}

func WithMaxAttempts(n int) PollerOption {
	return func(p *Poller) {
		p.maxAttempts = n
	}
}

func WithNowFunc(now func() time.Time) PollerOption {
	return func(p *Poller) {
		p.nowFunc = now
	}
}

func NewPoller(options ...PollerOption) *Poller {
	p := &Poller{
		interval:    DefaultInterval,
		maxAttempts: DefaultMaxAttempts,
		nowFunc:     time.Now,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Handle controls one running poll loop.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	cancelled bool
	snapshot  Snapshot
}

// Cancel stops the loop. Once Cancel returns no new status call is started and no update is emitted.
func (h *Handle) Cancel() {
	h.mu.Lock()
	h.cancelled = true
	h.snapshot.Cancelled = !h.snapshot.Status.Terminal()
	h.mu.Unlock()
	h.cancel()
}

// Done is closed when the loop has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

func (h *Handle) Wait() {
	<-h.done
}

func (h *Handle) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshot
}

// Start begins polling for result's transaction in a new goroutine. onUpdate may be nil; it runs
// with the handle locked and must not call back into the handle.
func (p *Poller) Start(ctx context.Context, result payments.TransactionResult, fetcher Fetcher, onUpdate func(Update)) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		cancel: cancel,
		done:   make(chan struct{}),
		snapshot: Snapshot{
			TransactionID: result.TransactionID,
			Status:        Pending,
			Total:         decimal.Zero,
			Result:        result,
			UpdatedAt:     p.nowFunc(),
		},
	}
	if onUpdate == nil {
		onUpdate = func(Update) {}
	}

	metrics.PollerStarted()
	go func() {
		defer close(h.done)
		defer metrics.PollerStopped()
		defer cancel()
		p.run(ctx, h, fetcher, onUpdate)
	}()
	return h
}

func (p *Poller) run(ctx context.Context, h *Handle, fetcher Fetcher, onUpdate func(Update)) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if done := p.attempt(ctx, h, fetcher, onUpdate); done {
			return
		}
	}
}

// attempt makes one status call and reports whether polling is over.
func (p *Poller) attempt(ctx context.Context, h *Handle, fetcher Fetcher, onUpdate func(Update)) bool {
	h.mu.Lock()
	if h.cancelled {
		h.mu.Unlock()
		return true
	}
	h.snapshot.Attempts++
	attempt := h.snapshot.Attempts
	h.mu.Unlock()

	record, err := fetcher.Fetch(ctx)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancelled {
		return true
	}
	snap := &h.snapshot

	switch {
	case err == nil:
		next := FromVendor(record.Status)
		total := record.SettledTotal()
		changed := next != snap.Status || !total.Equal(snap.Total)
		snap.Status = next
		snap.Total = total
		if next == Approved {
			record.Enrich(&snap.Result)
		}
		if changed {
			p.emit(h, onUpdate, nil)
		}
		if next.Terminal() {
			log.Info().Str("transaction_id", snap.TransactionID).Str("status", next.String()).Int("attempt", attempt).Msg("transaction settled")
			metrics.PollerOutcome(next.String())
			return true
		}
	case apperrors.Is(err, apperrors.ErrTransientNotReady):
		log.Debug().Str("transaction_id", snap.TransactionID).Int("attempt", attempt).Msg("status not ready")
	case ctx.Err() != nil:
		return true
	default:
		log.Warn().Err(err).Str("transaction_id", snap.TransactionID).Int("attempt", attempt).Msg("status call failed")
		p.fail(h, onUpdate, err)
		return true
	}

	if attempt >= p.maxAttempts {
		log.Warn().Str("transaction_id", snap.TransactionID).Int("attempts", attempt).Msg("transaction outcome timed out")
		p.fail(h, onUpdate, apperrors.ErrTimeout)
		return true
	}
	return false
}

func (p *Poller) fail(h *Handle, onUpdate func(Update), err error) {
	msg := apperrors.Describe(err)
	h.snapshot.Status = Error
	h.snapshot.Message = &msg
	metrics.PollerOutcome(Error.String())
	p.emit(h, onUpdate, err)
}

func (p *Poller) emit(h *Handle, onUpdate func(Update), err error) {
	h.snapshot.UpdatedAt = p.nowFunc()
	onUpdate(Update{
		TransactionID: h.snapshot.TransactionID,
		Status:        h.snapshot.Status,
		Attempt:       h.snapshot.Attempts,
		Total:         h.snapshot.Total,
		Result:        h.snapshot.Result,
		Err:           err,
		At:            h.snapshot.UpdatedAt,
	})
}
