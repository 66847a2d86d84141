package board

import (
	"errors"
	"sync"
)

var (
	// ErrTransitionPending indicates a transition is already awaiting commit or rollback.
	ErrTransitionPending = errors.New("a board transition is already pending")
	// ErrTransitionSettled indicates Commit or Rollback was called on a finished transition.
	ErrTransitionSettled = errors.New("board transition already settled")
)

// Tracker holds the committed board and at most one optimistic transition
// racing with persistence. Readers see the pending state until it settles.
type Tracker struct {
	mu        sync.Mutex
	committed State
	pending   *Pending
}

// Pending is an optimistic transition: it settles exactly once, either by
// Commit after the store accepted the change or by Rollback after it failed.
type Pending struct {
	tracker *Tracker
	before  State
	after   State
	settled bool
}

// NewTracker starts tracking from a committed state.
func NewTracker(s State) *Tracker {
	return &Tracker{committed: s}
}

// Current returns the state readers should see: the pending one if any.
func (t *Tracker) Current() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending != nil {
		return t.pending.after
	}
	return t.committed
}

// Committed returns the last state known to be persisted.
func (t *Tracker) Committed() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.committed
}

// Begin opens a transition towards next.
func (t *Tracker) Begin(next State) (*Pending, error) {
	return t.begin(func(State) State { return next })
}

// Move opens a transition for a drag gesture on the committed state.
func (t *Tracker) Move(activeID, overID string) (*Pending, error) {
	return t.begin(func(s State) State { return s.Move(activeID, overID) })
}

// begin derives the target from the committed state under the lock, so the
// transition's before and after always share a base.
func (t *Tracker) begin(next func(committed State) State) (*Pending, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending != nil {
		return nil, ErrTransitionPending
	}
	p := &Pending{tracker: t, before: t.committed, after: next(t.committed)}
	t.pending = p
	return p, nil
}

// State returns the optimistic state of the transition.
func (p *Pending) State() State { return p.after }

// Before returns the state the transition started from.
func (p *Pending) Before() State { return p.before }

// Changed reports whether the transition differs from its starting point.
func (p *Pending) Changed() bool { return !p.before.Equal(p.after) }

// Commit makes the optimistic state the committed one.
func (p *Pending) Commit() error {
	return p.settle(true)
}

// Rollback discards the optimistic state and restores the previous one.
func (p *Pending) Rollback() error {
	return p.settle(false)
}

func (p *Pending) settle(commit bool) error {
	t := p.tracker
	t.mu.Lock()
	defer t.mu.Unlock()
	if p.settled || t.pending != p {
		return ErrTransitionSettled
	}
	p.settled = true
	t.pending = nil
	if commit {
		t.committed = p.after
	}
	return nil
}
