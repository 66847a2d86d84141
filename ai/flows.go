package ai

import (
	"context"
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"

	"kanban-api/domain"
)

// TaskDraft is a task proposed by the assistant.
type TaskDraft struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Rewrite is a rewritten description or comment.
type Rewrite struct {
	RewrittenText string `json:"rewrittenText"`
}

// PrioritySuggestion is the assistant's priority for a task.
type PrioritySuggestion struct {
	Priority  domain.Priority `json:"priority"`
	Reasoning string          `json:"reasoning"`
}

// Assistant runs the prompt flows against a Generator.
type Assistant struct {
	gen         Generator
	model       string
	temperature float32
}

// NewAssistant creates an Assistant. A nil generator disables every flow.
func NewAssistant(gen Generator, model string, temperature float32) *Assistant {
	if gen == nil {
		gen = Disabled{}
	}
	return &Assistant{gen: gen, model: model, temperature: temperature}
}

func (a *Assistant) call(ctx context.Context, flow string, data any, jsonObject bool) (string, error) {
	prompt, err := render(flow, data)
	if err != nil {
		return "", err
	}
	raw, err := a.gen.Generate(ctx, Request{Prompt: prompt, Model: a.model, Temperature: a.temperature, JSON: jsonObject})
	if err != nil {
		if errors.Is(err, ErrDisabled) {
			return "", err
		}
		return "", domain.Transport("ai "+flow, err)
	}
	log.WithFields(log.Fields{"flow": flow, "model": a.model, "responseLength": len(raw)}).Debug("ai response received")
	return raw, nil
}

func parseFailed(err error) error {
	var pe *GenerationParseError
	if errors.As(err, &pe) {
		log.WithFields(log.Fields{"flow": pe.Flow, "reason": pe.Reason}).Warn("unparseable ai response")
	}
	return err
}

// GenerateTasks proposes several tasks for a free-text brief.
func (a *Assistant) GenerateTasks(ctx context.Context, brief string) ([]TaskDraft, error) {
	if strings.TrimSpace(brief) == "" {
		return nil, domain.Invalid("brief", "is required")
	}
	raw, err := a.call(ctx, "tasks", struct{ Brief string }{brief}, false)
	if err != nil {
		return nil, err
	}
	items, err := decodeArray("tasks", raw, "title", "description")
	if err != nil {
		return nil, parseFailed(err)
	}
	out := make([]TaskDraft, len(items))
	for i, it := range items {
		out[i] = TaskDraft{Title: it["title"], Description: it["description"]}
	}
	return out, nil
}

// DraftTask writes one task from an optional working title and a brief.
func (a *Assistant) DraftTask(ctx context.Context, title, brief string) (TaskDraft, error) {
	if strings.TrimSpace(title) == "" && strings.TrimSpace(brief) == "" {
		return TaskDraft{}, domain.Invalid("brief", "a title or a brief is required")
	}
	raw, err := a.call(ctx, "draft", struct{ Title, Brief string }{title, brief}, true)
	if err != nil {
		return TaskDraft{}, err
	}
	obj, err := decodeObject("draft", raw, "title", "description")
	if err != nil {
		return TaskDraft{}, parseFailed(err)
	}
	return TaskDraft{Title: obj["title"], Description: obj["description"]}, nil
}

// RewriteDescription rewrites a task description.
func (a *Assistant) RewriteDescription(ctx context.Context, title, text string) (Rewrite, error) {
	return a.rewrite(ctx, "rewrite-description", title, text)
}

// RewriteComment rewrites a comment before it is posted.
func (a *Assistant) RewriteComment(ctx context.Context, title, text string) (Rewrite, error) {
	return a.rewrite(ctx, "rewrite-comment", title, text)
}

func (a *Assistant) rewrite(ctx context.Context, flow, title, text string) (Rewrite, error) {
	if strings.TrimSpace(text) == "" {
		return Rewrite{}, domain.Invalid("text", "is required")
	}
	raw, err := a.call(ctx, flow, struct{ Title, Text string }{title, text}, true)
	if err != nil {
		return Rewrite{}, err
	}
	obj, err := decodeObject(flow, raw, "rewrittenText")
	if err != nil {
		return Rewrite{}, parseFailed(err)
	}
	return Rewrite{RewrittenText: obj["rewrittenText"]}, nil
}

// SuggestPriority proposes a priority from the task text and the titles of
// tasks depending on it.
func (a *Assistant) SuggestPriority(ctx context.Context, title, description string, dependents []string) (PrioritySuggestion, error) {
	if strings.TrimSpace(title) == "" {
		return PrioritySuggestion{}, domain.Invalid("title", "is required")
	}
	if len(dependents) > maxDependents {
		dependents = dependents[:maxDependents]
	}
	data := struct {
		Title, Description string
		Dependents         []string
	}{title, description, dependents}
	raw, err := a.call(ctx, "priority", data, true)
	if err != nil {
		return PrioritySuggestion{}, err
	}
	obj, err := decodeObject("priority", raw, "priority", "reasoning")
	if err != nil {
		return PrioritySuggestion{}, parseFailed(err)
	}
	p, ok := domain.ParsePriority(obj["priority"])
	if !ok {
		return PrioritySuggestion{}, parseFailed(&GenerationParseError{Flow: "priority", Reason: "unknown priority " + obj["priority"], Raw: raw})
	}
	return PrioritySuggestion{Priority: p, Reasoning: obj["reasoning"]}, nil
}
