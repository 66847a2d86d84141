package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus/hooks/test"

	"kanban-api/activity"
	"kanban-api/ai"
	"kanban-api/domain"
	"kanban-api/storage"
	"kanban-api/stream"
)

// plainAuth treats the bearer value as the user id.
type plainAuth struct{}

func (plainAuth) Authenticate(header string) (Identity, error) {
	id, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || id == "" {
		return Identity{}, errMissingAuthorization
	}
	return Identity{UserID: id, Name: "Name of " + id}, nil
}

// flakyBackend fails project writes while failPuts is set.
type flakyBackend struct {
	*storage.Memory
	failPuts atomic.Bool
}

func (f *flakyBackend) PutProject(ctx context.Context, p domain.Project) error {
	if f.failPuts.Load() {
		return errors.New("connection reset")
	}
	return f.Memory.PutProject(ctx, p)
}

type syncDispatcher struct{ sink activity.Sink }

func (d syncDispatcher) Dispatch(ev activity.Event) {
	_ = d.sink.Record(context.Background(), ev)
}

type harness struct {
	t       *testing.T
	e       *echo.Echo
	backend *flakyBackend
	store   *storage.Gateway
	broker  *stream.Broker
	feed    *activity.MemoryStore
	mu      sync.Mutex
	gen     ai.Generator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{t: t, e: echo.New(), broker: stream.NewBroker()}
	h.backend = &flakyBackend{Memory: storage.NewMemory()}
	h.store = storage.NewGateway(h.backend)
	h.feed = activity.NewMemoryStore(nil)
	h.setGenerator(ai.Disabled{})
	logger, _ := test.NewNullLogger()
	Register(h.e, Deps{
		Store: h.store,
		Assistant: ai.NewAssistant(ai.GeneratorFunc(func(ctx context.Context, req ai.Request) (string, error) {
			h.mu.Lock()
			gen := h.gen
			h.mu.Unlock()
			return gen.Generate(ctx, req)
		}), "test-model", 0.2),
		Auth:       plainAuth{},
		Broker:     h.broker,
		Publisher:  stream.LocalPublisher{Broker: h.broker},
		Dispatcher: syncDispatcher{sink: h.feed},
		Activity:   h.feed,
		Logger:     logger,
	})
	return h
}

func (h *harness) setGenerator(g ai.Generator) {
	h.mu.Lock()
	h.gen = g
	h.mu.Unlock()
}

func (h *harness) reply(text string) {
	h.setGenerator(ai.GeneratorFunc(func(context.Context, ai.Request) (string, error) { return text, nil }))
}

func (h *harness) do(user, method, path string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	return h.doHeaders(user, method, path, body, nil)
}

func (h *harness) doHeaders(user, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	h.t.Helper()
	var r io.Reader
	if body != nil {
		data, err := sonic.Marshal(body)
		if err != nil {
			h.t.Fatalf("marshal body: %v", err)
		}
		r = strings.NewReader(string(data))
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if user != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+user)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := sonic.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

// seedProject creates a project owned by owner and returns its board.
func (h *harness) seedProject(owner string, members ...string) boardView {
	h.t.Helper()
	rec := h.do(owner, http.MethodPost, "/api/projects", storage.ProjectInput{Name: "Launch", MemberIDs: members})
	expectStatus(h.t, rec, http.StatusCreated)
	return decode[boardView](h.t, rec)
}

func (h *harness) seedTask(user, projectID, columnID, title string) domain.Task {
	h.t.Helper()
	rec := h.do(user, http.MethodPost, "/api/projects/"+projectID+"/tasks", domain.Task{Title: title, ColumnID: columnID})
	expectStatus(h.t, rec, http.StatusCreated)
	return decode[domain.Task](h.t, rec)
}
