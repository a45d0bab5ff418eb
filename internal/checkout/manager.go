package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Riboost-Studio/refugio-pos-printing/internal/fallback"
	"github.com/Riboost-Studio/refugio-pos-printing/internal/model"
	"github.com/Riboost-Studio/refugio-pos-printing/internal/routing"
)

// SnapshotSource supplies the routing configuration at the start of a checkout.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (routing.Snapshot, error)
}

// Manager keeps the checkout sessions of this terminal in memory until they are
// dismissed.
type Manager struct {
	coord    *Coordinator
	settings SnapshotSource
	renderer fallback.Renderer
	releaser TableReleaser
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(coord *Coordinator, settings SnapshotSource, renderer fallback.Renderer, releaser TableReleaser, logger *slog.Logger) *Manager {
	if renderer == nil {
		renderer = fallback.HTMLRenderer{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		coord:    coord,
		settings: settings,
		renderer: renderer,
		releaser: releaser,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// NewOrderID mirrors the ticket numbering of the terminal: table prefix plus a short
// random suffix.
func NewOrderID(tableLabel string) string {
	suffix := uuid.NewString()[:8]
	if tableLabel == "" {
		return suffix
	}
	return tableLabel + "-" + suffix
}

// Checkout opens a session for order and prints it. A settings read failure is
// treated as an empty printer list so the sale still goes through.
func (m *Manager) Checkout(ctx context.Context, order model.Order) *Session {
	if order.ID == "" {
		order.ID = NewOrderID(order.TableLabel)
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}

	snap, err := m.settings.Snapshot(ctx)
	if err != nil {
		m.logger.Error("read printer settings", "order_id", order.ID, "error", err)
		snap = routing.Snapshot{}
	}

	s := NewSession(uuid.NewString(), order, snap)
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	if _, err := s.Run(ctx, m.coord); err != nil {
		m.logger.Error("run checkout session", "session_id", s.ID, "error", err)
	}
	return s
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Fallback renders the order for the platform print dialog.
func (m *Manager) Fallback(ctx context.Context, id string, format fallback.Format) ([]byte, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	if err := s.CanFallback(); err != nil {
		return nil, err
	}
	doc := fallback.NewDocument(m.coord.Encoder(), s.Order(), time.Now())
	out, err := m.renderer.Render(ctx, doc, format)
	if err != nil {
		return nil, fmt.Errorf("render fallback for session %s: %w", id, err)
	}
	m.logger.Info("manual print document rendered", "session_id", id, "format", format)
	return out, nil
}

// Dismiss frees the table and forgets the session. Once the session is terminal the
// table is always freed; a releaser failure is logged and does not block the operator.
func (m *Manager) Dismiss(ctx context.Context, id string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	if !s.State().Terminal() {
		return fmt.Errorf("session %s: %w", id, ErrSessionNotTerminal)
	}
	if !m.remove(id) {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err := s.Dismiss(ctx, m.releaser); err != nil {
		m.logger.Warn("table release not delivered", "session_id", id, "table", s.Order().TableLabel, "error", err)
	}
	m.logger.Info("table released", "session_id", id, "table", s.Order().TableLabel)
	return nil
}

// Forget drops a finished session without releasing its table. Used when the caller
// that started the checkout owns the table, as the hub does.
func (m *Manager) Forget(id string) {
	if m.remove(id) {
		m.logger.Debug("checkout session dropped", "session_id", id)
	}
}

// Len is the number of sessions waiting to be dismissed.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) remove(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return false
	}
	delete(m.sessions, id)
	return true
}
