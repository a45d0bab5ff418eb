package settings

import (
	"context"
	"sync"

	"github.com/Riboost-Studio/refugio-pos-printing/internal/routing"
)

// Memory keeps the settings for the lifetime of the process.
type Memory struct {
	mu   sync.RWMutex
	snap routing.Snapshot
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Load(context.Context) (routing.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap.Clone(), nil
}

func (m *Memory) Update(_ context.Context, fn func(routing.Snapshot) (routing.Snapshot, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, err := fn(m.snap.Clone())
	if err != nil {
		return err
	}
	m.snap = next.Clone()
	return nil
}

func (m *Memory) Close() error { return nil }
