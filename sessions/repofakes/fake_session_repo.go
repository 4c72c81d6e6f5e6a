package fakesessionrepo

import (
	"context"
	"errors"
	"sync"
	"time"

	apperrors "github.com/jrsteele09/go-pay-server/internal/errors"
	"github.com/jrsteele09/go-pay-server/sessions"
)

var _ sessions.Repo = (*FakeSessionRepo)(nil)

type FakeSessionRepo struct {
	sessions map[string]sessions.Session
	lock     sync.RWMutex
	nowFunc  func() time.Time
}

func NewFakeSessionRepo() *FakeSessionRepo {
	return &FakeSessionRepo{
		sessions: make(map[string]sessions.Session),
		nowFunc:  time.Now,
	}
}

// SetNowFunc moves the repo's clock, for expiry tests.
func (sr *FakeSessionRepo) SetNowFunc(now func() time.Time) {
	sr.lock.Lock()
	defer sr.lock.Unlock()
	sr.nowFunc = now
}

func (sr *FakeSessionRepo) Put(_ context.Context, session *sessions.Session) error {
	if session == nil || session.ID == "" {
		return errors.New("session id is required")
	}
	sr.lock.Lock()
	defer sr.lock.Unlock()

	// Store a copy so callers cannot mutate the stored snapshot
	sr.sessions[session.ID] = *session
	return nil
}

// Get evicts the session when it has expired.
func (sr *FakeSessionRepo) Get(_ context.Context, sessionID string) (*sessions.Session, error) {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	session, ok := sr.sessions[sessionID]
	if !ok {
		return nil, apperrors.ErrSessionNotFound
	}
	if session.Expired(sr.nowFunc()) {
		delete(sr.sessions, sessionID)
		return nil, apperrors.ErrSessionNotFound
	}
	return &session, nil
}

func (sr *FakeSessionRepo) Destroy(_ context.Context, sessionID string) {
	sr.lock.Lock()
	defer sr.lock.Unlock()
	delete(sr.sessions, sessionID)
}

// Len returns the number of stored sessions, including expired ones not yet read.
func (sr *FakeSessionRepo) Len() int {
	sr.lock.RLock()
	defer sr.lock.RUnlock()
	return len(sr.sessions)
}
