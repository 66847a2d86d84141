package activity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/goleak"
)

type blockingSink struct {
	mu      sync.Mutex
	events  []Event
	release chan struct{}
	err     error
}

func (s *blockingSink) Record(ctx context.Context, ev Event) error {
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func (s *blockingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestDispatcherRecordsAndDrainsOnClose(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	sink := &blockingSink{}
	d := NewDispatcher(sink, DispatcherConfig{Workers: 2, Buffer: 16, Timeout: time.Second})
	for i := 0; i < 10; i++ {
		d.Dispatch(NewEvent("p1", "u1", TaskCreated, "t", "created"))
	}
	d.Close()
	if n := sink.count(); n != 10 {
		t.Fatalf("expected 10 recorded events, got %d", n)
	}

	d.Dispatch(NewEvent("p1", "u1", TaskCreated, "t", "late"))
	d.Close()
	if n := sink.count(); n != 10 {
		t.Fatalf("events after close must be dropped, got %d", n)
	}
}

func TestDispatcherFallsBackInlineWhenSaturated(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	release := make(chan struct{})
	sink := &blockingSink{release: release}
	d := NewDispatcher(sink, DispatcherConfig{Workers: 1, Buffer: 0, Timeout: time.Second, Handoff: 10 * time.Millisecond})

	// Occupy the single worker.
	d.Dispatch(NewEvent("p1", "u1", TaskCreated, "a", "a"))

	done := make(chan struct{})
	go func() {
		d.Dispatch(NewEvent("p1", "u1", TaskCreated, "b", "b"))
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("inline record should block on the sink")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("inline record did not finish")
	}
	d.Close()
	if n := sink.count(); n != 2 {
		t.Fatalf("expected both events recorded, got %d", n)
	}
}

func TestDispatcherSwallowsSinkErrors(t *testing.T) {
	sink := &blockingSink{err: errors.New("store down")}
	d := NewDispatcher(sink, DispatcherConfig{Workers: 1, Buffer: 1})
	d.Dispatch(NewEvent("p1", "u1", TaskDeleted, "t", "deleted"))
	d.Close()
	if sink.count() != 1 {
		t.Fatal("expected record attempt")
	}
}

func TestMemoryStoreListsNewestFirst(t *testing.T) {
	ctx := context.Background()
	var notified []string
	m := NewMemoryStore(func(id string) { notified = append(notified, id) })
	for _, s := range []string{"one", "two", "three"} {
		if err := m.Record(ctx, NewEvent("p1", "u1", TaskUpdated, "t", s)); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	got, err := m.List(ctx, "p1", 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].Summary != "three" || got[1].Summary != "two" {
		t.Fatalf("unexpected feed: %+v", got)
	}
	if len(notified) != 3 {
		t.Fatalf("expected 3 notifications, got %d", len(notified))
	}
	if empty, _ := m.List(ctx, "other", 0); len(empty) != 0 {
		t.Fatalf("unexpected events: %+v", empty)
	}
}

func TestRowKeyOrdersNewestFirst(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	older := rowKey(Event{ID: "a", Time: base})
	newer := rowKey(Event{ID: "b", Time: base.Add(time.Millisecond)})
	if strings.Compare(newer, older) >= 0 {
		t.Fatalf("newer row key %s should sort before %s", newer, older)
	}
}

func TestClampLimit(t *testing.T) {
	cases := map[int]int{0: DefaultLimit, -3: DefaultLimit, 10: 10, MaxLimit + 1: MaxLimit}
	for in, want := range cases {
		if got := ClampLimit(in); got != want {
			t.Fatalf("ClampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}

type fakeSource struct {
	mu    sync.Mutex
	msgs  []*Message
	acked []string
}

func (f *fakeSource) Receive(context.Context) (*Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.msgs) == 0 {
		return nil, nil
	}
	m := f.msgs[0]
	f.msgs = f.msgs[1:]
	return m, nil
}

func (f *fakeSource) Ack(_ context.Context, m *Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, m.ID)
	return nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	projects []string
}

func (p *recordingPublisher) Publish(_ context.Context, projectID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.projects = append(p.projects, projectID)
	return nil
}

func TestConsumerHandle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil)
	src := &fakeSource{}
	pub := &recordingPublisher{}
	c := NewConsumer(src, store, pub, time.Millisecond)

	text, _ := sonic.MarshalString(NewEvent("p1", "u1", CommentAdded, "t1", "commented"))
	if err := c.Handle(ctx, &Message{ID: "m1", Text: text}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if err := c.Handle(ctx, &Message{ID: "m2", Text: "garbage"}); err != nil {
		t.Fatalf("handle malformed: %v", err)
	}

	feed, _ := store.List(ctx, "p1", 10)
	if len(feed) != 1 || feed[0].Type != CommentAdded {
		t.Fatalf("unexpected feed: %+v", feed)
	}
	if len(src.acked) != 2 {
		t.Fatalf("expected both messages acked, got %v", src.acked)
	}
	if len(pub.projects) != 1 || pub.projects[0] != "p1" {
		t.Fatalf("unexpected publications: %v", pub.projects)
	}
}

func TestConsumerLeavesMessageOnStoreFailure(t *testing.T) {
	src := &fakeSource{}
	c := NewConsumer(src, &blockingSink{err: errors.New("down")}, nil, time.Millisecond)
	text, _ := sonic.MarshalString(NewEvent("p1", "u1", TaskMoved, "t1", "moved"))
	if err := c.Handle(context.Background(), &Message{ID: "m1", Text: text}); err == nil {
		t.Fatal("expected store error")
	}
	if len(src.acked) != 0 {
		t.Fatalf("message must not be acked: %v", src.acked)
	}
}

func TestConsumerRunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	text, _ := sonic.MarshalString(NewEvent("p1", "u1", TaskMoved, "t1", "moved"))
	src := &fakeSource{msgs: []*Message{{ID: "m1", Text: text}}}
	store := NewMemoryStore(nil)
	c := NewConsumer(src, store, nil, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	deadline := time.After(time.Second)
	for {
		feed, _ := store.List(context.Background(), "p1", 1)
		if len(feed) == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("message not consumed")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}
