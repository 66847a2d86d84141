package activity

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// DispatcherConfig sizes the worker pool.
type DispatcherConfig struct {
	Workers int
	Buffer  int
	// Timeout bounds a single Record call.
	Timeout time.Duration
	// Handoff is how long Dispatch waits for buffer space before recording inline.
	Handoff time.Duration
}

// Dispatcher records events on a bounded pool of workers so request handlers
// never wait on the activity store. Failures are logged, never returned.
type Dispatcher struct {
	sink    Sink
	jobs    chan Event
	timeout time.Duration
	handoff time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher starts cfg.Workers workers feeding sink.
func NewDispatcher(sink Sink, cfg DispatcherConfig) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Buffer < 0 {
		cfg.Buffer = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	d := &Dispatcher{
		sink:    sink,
		jobs:    make(chan Event, cfg.Buffer),
		timeout: cfg.Timeout,
		handoff: cfg.Handoff,
	}
	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	log.WithFields(log.Fields{
		"workers": cfg.Workers,
		"buffer":  cfg.Buffer,
		"timeout": cfg.Timeout,
		"handoff": cfg.Handoff,
	}).Info("activity dispatcher started")
	return d
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for ev := range d.jobs {
		d.record(ev, id)
	}
}

func (d *Dispatcher) record(ev Event, worker int) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	err := d.sink.Record(ctx, ev)
	cancel()
	if err != nil {
		log.WithFields(log.Fields{
			"projectId": ev.ProjectID,
			"type":      ev.Type,
			"worker":    worker,
		}).WithError(err).Error("activity record failed")
	}
}

// Dispatch hands ev to a worker. When the buffer stays full for the handoff
// window the event is recorded on the calling goroutine instead. Events
// dispatched after Close are dropped.
func (d *Dispatcher) Dispatch(ev Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		log.WithField("type", ev.Type).Warn("activity dispatcher closed; dropping event")
		return
	}
	if d.tryHandoff(ev) {
		return
	}
	log.Warn("activity buffer saturated; recording inline")
	d.record(ev, -1)
}

func (d *Dispatcher) tryHandoff(ev Event) bool {
	select {
	case d.jobs <- ev:
		return true
	default:
	}
	if d.handoff <= 0 {
		return false
	}
	timer := time.NewTimer(d.handoff)
	defer timer.Stop()
	select {
	case d.jobs <- ev:
		return true
	case <-timer.C:
		return false
	}
}

// Close stops accepting events and waits for queued ones to be recorded.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()
	d.wg.Wait()
}
