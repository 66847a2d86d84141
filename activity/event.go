// Package activity records what happened on a project: who moved, edited or
// commented on what, and when.
package activity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	ProjectCreated = "project.created"
	ProjectUpdated = "project.updated"
	ColumnAdded    = "column.added"
	ColumnUpdated  = "column.updated"
	ColumnDeleted  = "column.deleted"
	TaskCreated    = "task.created"
	TaskUpdated    = "task.updated"
	TaskMoved      = "task.moved"
	TaskDeleted    = "task.deleted"
	CommentAdded   = "comment.added"
)

// Event is one entry of a project's activity feed.
type Event struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	ActorID   string    `json:"actorId"`
	Type      string    `json:"type"`
	EntityID  string    `json:"entityId,omitempty"`
	Summary   string    `json:"summary"`
	Time      time.Time `json:"time"`
}

// NewEvent stamps a new event with an id and the current time.
func NewEvent(projectID, actorID, typ, entityID, summary string) Event {
	return Event{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		ActorID:   actorID,
		Type:      typ,
		EntityID:  entityID,
		Summary:   summary,
		Time:      time.Now().UTC(),
	}
}

// Sink stores or forwards events.
type Sink interface {
	Record(ctx context.Context, ev Event) error
}

// Reader lists a project's events newest first.
type Reader interface {
	List(ctx context.Context, projectID string, limit int) ([]Event, error)
}

// DefaultLimit and MaxLimit bound feed listings.
const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// ClampLimit maps a requested page size into [1, MaxLimit].
func ClampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultLimit
	case n > MaxLimit:
		return MaxLimit
	default:
		return n
	}
}
