package query

import (
	"sync"
	"time"

	"github.com/google/uuid"

	dErrors "ecplacas/pkg/domain-errors"
)

// State names a step of the query pipeline.
type State string

const (
	StatePending     State = "PENDING"
	StateNormalizing State = "NORMALIZING"
	StateCacheLookup State = "CACHE_LOOKUP"
	StateFetching    State = "FETCHING"
	StateDecomposing State = "DECOMPOSING"
	StateDone        State = "DONE"
	StateFailed      State = "FAILED"
)

// Progress is the observable side channel for one query session. Percent
// moves through fixed checkpoints so pollers can render a stable bar.
type Progress struct {
	SessionID uuid.UUID `json:"sessionId"`
	State     State     `json:"state"`
	Percent   int       `json:"percent"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// sessionRetention bounds how long finished sessions stay pollable.
const sessionRetention = 15 * time.Minute

type sessionTracker struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Progress
}

func newSessionTracker() *sessionTracker {
	return &sessionTracker{sessions: make(map[uuid.UUID]*Progress)}
}

func (t *sessionTracker) update(sessionID uuid.UUID, state State, percent int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions[sessionID] = &Progress{
		SessionID: sessionID,
		State:     state,
		Percent:   percent,
		UpdatedAt: time.Now(),
	}
}

func (t *sessionTracker) get(sessionID uuid.UUID) (*Progress, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.sessions[sessionID]
	if !ok {
		return nil, false
	}
	dup := *p
	return &dup, true
}

// prune drops sessions not touched within the retention window.
func (t *sessionTracker) prune() {
	cutoff := time.Now().Add(-sessionRetention)

	t.mu.Lock()
	defer t.mu.Unlock()
	for id, p := range t.sessions {
		if p.UpdatedAt.Before(cutoff) {
			delete(t.sessions, id)
		}
	}
}

// Progress returns the live state of a query session.
func (o *Orchestrator) Progress(sessionID uuid.UUID) (*Progress, error) {
	p, ok := o.sessions.get(sessionID)
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "no session %s", sessionID)
	}
	return p, nil
}
