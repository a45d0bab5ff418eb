package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Riboost-Studio/refugio-pos-printing/internal/model"
	"github.com/Riboost-Studio/refugio-pos-printing/internal/routing"
)

var (
	ErrSessionNotFound    = errors.New("checkout session not found")
	ErrSessionNotTerminal = errors.New("checkout session still printing")
	ErrAlreadyStarted     = errors.New("checkout session already started")
	ErrFallbackNotOffered = errors.New("manual print not offered for this session")
)

// State of a checkout session: IDLE → PRINTING → SUCCESS | PARTIAL | FAILED.
type State string

const (
	StateIdle     State = "IDLE"
	StatePrinting State = "PRINTING"
	StateSuccess  State = "SUCCESS"
	StatePartial  State = "PARTIAL"
	StateFailed   State = "FAILED"
)

func (s State) Terminal() bool {
	return s == StateSuccess || s == StatePartial || s == StateFailed
}

func stateFor(status model.SessionStatus) State {
	switch status {
	case model.StatusAllSucceeded:
		return StateSuccess
	case model.StatusPartial:
		return StatePartial
	default:
		return StateFailed
	}
}

// TableReleaser frees a table once the sale is complete.
type TableReleaser interface {
	Release(ctx context.Context, tableLabel string) error
}

// ReleaseFunc adapts a function to TableReleaser.
type ReleaseFunc func(ctx context.Context, tableLabel string) error

func (f ReleaseFunc) Release(ctx context.Context, tableLabel string) error {
	return f(ctx, tableLabel)
}

// Session is one checkout of one table.
type Session struct {
	ID    string
	order model.Order
	snap  routing.Snapshot

	mu      sync.Mutex
	state   State
	outcome model.SessionOutcome
}

func NewSession(id string, order model.Order, snap routing.Snapshot) *Session {
	return &Session{ID: id, order: order, snap: snap.Clone(), state: StateIdle}
}

func (s *Session) Order() model.Order {
	return s.order
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Outcome is only available once the session reached a terminal state.
func (s *Session) Outcome() (model.SessionOutcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome, s.state.Terminal()
}

// Run prints the order once. It blocks until every send finished.
func (s *Session) Run(ctx context.Context, c *Coordinator) (model.SessionOutcome, error) {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return model.SessionOutcome{}, fmt.Errorf("session %s: %w", s.ID, ErrAlreadyStarted)
	}
	s.state = StatePrinting
	s.mu.Unlock()

	out := c.Checkout(ctx, s.order, s.snap)

	s.mu.Lock()
	s.outcome = out
	s.state = stateFor(out.Status)
	s.mu.Unlock()
	return out, nil
}

// CanFallback reports whether the manual print action is offered.
func (s *Session) CanFallback() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Terminal() {
		return fmt.Errorf("session %s: %w", s.ID, ErrSessionNotTerminal)
	}
	if !s.outcome.OfferFallback {
		return fmt.Errorf("session %s: %w", s.ID, ErrFallbackNotOffered)
	}
	return nil
}

// Dismiss completes the sale and frees the table. The print outcome is not consulted:
// a failed print never blocks closing a table.
func (s *Session) Dismiss(ctx context.Context, r TableReleaser) error {
	if st := s.State(); !st.Terminal() {
		return fmt.Errorf("session %s: %w", s.ID, ErrSessionNotTerminal)
	}
	if r == nil {
		return nil
	}
	if err := r.Release(ctx, s.order.TableLabel); err != nil {
		return fmt.Errorf("release table %s: %w", s.order.TableLabel, err)
	}
	return nil
}
