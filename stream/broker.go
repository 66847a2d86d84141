// Package stream fans project change notifications out to live clients.
package stream

import "sync"

// Broker delivers change notifications to subscribers of a project. Each
// subscription buffers at most one pending notification; bursts collapse.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

// NewBroker creates an empty Broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[chan struct{}]struct{})}
}

// Subscribe registers interest in projectID. The returned cancel function
// must be called once the subscriber goes away.
func (b *Broker) Subscribe(projectID string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	b.mu.Lock()
	set, ok := b.subs[projectID]
	if !ok {
		set = make(map[chan struct{}]struct{})
		b.subs[projectID] = set
	}
	set[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(set, ch)
			if cur, ok := b.subs[projectID]; ok && len(cur) == 0 {
				delete(b.subs, projectID)
			}
			b.mu.Unlock()
		})
	}
}

// Notify wakes every subscriber of projectID without blocking.
func (b *Broker) Notify(projectID string) {
	b.mu.Lock()
	for ch := range b.subs[projectID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	b.mu.Unlock()
}

// Subscribers returns the number of live subscriptions for projectID.
func (b *Broker) Subscribers(projectID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[projectID])
}
