package ai

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
)

func TestOpenAIGenerate(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("missing bearer token")
		}
		body, _ := io.ReadAll(r.Body)
		if err := sonic.Unmarshal(body, &got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" {\"rewrittenText\":\"ok\"} "}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAI("key", srv.URL+"/v1/", time.Second)
	text, err := c.Generate(context.Background(), Request{Prompt: "hello", Model: "gpt-test", Temperature: 0.2, JSON: true})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if text != `{"rewrittenText":"ok"}` {
		t.Fatalf("unexpected text %q", text)
	}
	if got.Model != "gpt-test" || len(got.Messages) != 2 || got.Messages[1].Content != "hello" {
		t.Fatalf("unexpected request: %+v", got)
	}
	if got.ResponseFormat == nil || got.ResponseFormat.Type != "json_object" {
		t.Fatalf("expected json_object response format, got %+v", got.ResponseFormat)
	}
}

func TestOpenAIGenerateErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewOpenAI("key", srv.URL, time.Second)
	_, err := c.Generate(context.Background(), Request{Prompt: "x"})
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected status error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}

	if _, err := NewOpenAI("", srv.URL, time.Second).Generate(context.Background(), Request{}); err == nil {
		t.Fatal("expected missing key error")
	}
}
