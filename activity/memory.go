package activity

import (
	"context"
	"sync"
)

// MemoryStore keeps feeds in process. It backs the memory storage driver and
// tests.
type MemoryStore struct {
	mu     sync.RWMutex
	feeds  map[string][]Event
	notify func(projectID string)
}

// NewMemoryStore creates an empty store. notify, if set, is called after
// each recorded event.
func NewMemoryStore(notify func(projectID string)) *MemoryStore {
	return &MemoryStore{feeds: map[string][]Event{}, notify: notify}
}

func (m *MemoryStore) Record(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.feeds[ev.ProjectID] = append(m.feeds[ev.ProjectID], ev)
	m.mu.Unlock()
	if m.notify != nil {
		m.notify(ev.ProjectID)
	}
	return nil
}

func (m *MemoryStore) List(ctx context.Context, projectID string, limit int) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit = ClampLimit(limit)
	m.mu.RLock()
	defer m.mu.RUnlock()
	feed := m.feeds[projectID]
	out := make([]Event, 0, min(limit, len(feed)))
	for i := len(feed) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, feed[i])
	}
	return out, nil
}
