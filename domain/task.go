package domain

import (
	"slices"
	"strings"
	"time"
)

// Priority ranks how urgent a task is.
type Priority string

const (
	PriorityNone   Priority = "NONE"
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// ParsePriority accepts any casing of a known priority name.
func ParsePriority(s string) (Priority, bool) {
	switch Priority(strings.ToUpper(strings.TrimSpace(s))) {
	case PriorityNone:
		return PriorityNone, true
	case PriorityLow:
		return PriorityLow, true
	case PriorityMedium:
		return PriorityMedium, true
	case PriorityHigh:
		return PriorityHigh, true
	}
	return "", false
}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityNone, PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Task represents a single board item embedded in a project document.
type Task struct {
	ID          string     `json:"id" bson:"id"`
	Title       string     `json:"title" bson:"title"`
	Description string     `json:"description,omitempty" bson:"description,omitempty"`
	Priority    Priority   `json:"priority" bson:"priority"`
	ColumnID    string     `json:"columnId" bson:"columnId"`
	Order       int        `json:"order" bson:"order"`
	AssigneeIDs []string   `json:"assigneeIds,omitempty" bson:"assigneeIds,omitempty"`
	ReporterID  string     `json:"reporterId,omitempty" bson:"reporterId,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty" bson:"dueDate,omitempty"`
	Tags        []string   `json:"tags,omitempty" bson:"tags,omitempty"`
	Comments    []Comment  `json:"comments,omitempty" bson:"comments,omitempty"`
	// DependentTaskTitles are free-text references passed to the assistant as context.
	DependentTaskTitles []string  `json:"dependentTaskTitles,omitempty" bson:"dependentTaskTitles,omitempty"`
	CreatedAt           time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Comment is an immutable note appended to a task.
type Comment struct {
	ID         string    `json:"id" bson:"id"`
	AuthorID   string    `json:"authorId" bson:"authorId"`
	AuthorName string    `json:"authorName" bson:"authorName"`
	AvatarURL  string    `json:"avatarUrl,omitempty" bson:"avatarUrl,omitempty"`
	Content    string    `json:"content" bson:"content"`
	CreatedAt  time.Time `json:"createdAt" bson:"createdAt"`
}

// Clone returns a deep copy of the task.
func (t Task) Clone() Task {
	c := t
	c.AssigneeIDs = slices.Clone(t.AssigneeIDs)
	c.Tags = slices.Clone(t.Tags)
	c.Comments = slices.Clone(t.Comments)
	c.DependentTaskTitles = slices.Clone(t.DependentTaskTitles)
	if t.DueDate != nil {
		d := *t.DueDate
		c.DueDate = &d
	}
	return c
}

// CloneTasks deep copies a task slice. A nil input stays nil.
func CloneTasks(tasks []Task) []Task {
	if tasks == nil {
		return nil
	}
	out := make([]Task, len(tasks))
	for i := range tasks {
		out[i] = tasks[i].Clone()
	}
	return out
}

// TaskPatch carries partial updates for a task. Nil fields are left untouched.
// Column and order are deliberately absent: they only change through a move.
type TaskPatch struct {
	Title               *string    `json:"title,omitempty"`
	Description         *string    `json:"description,omitempty"`
	Priority            *Priority  `json:"priority,omitempty"`
	AssigneeIDs         *[]string  `json:"assigneeIds,omitempty"`
	ReporterID          *string    `json:"reporterId,omitempty"`
	DueDate             *time.Time `json:"dueDate,omitempty"`
	ClearDueDate        bool       `json:"clearDueDate,omitempty"`
	Tags                *[]string  `json:"tags,omitempty"`
	DependentTaskTitles *[]string  `json:"dependentTaskTitles,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Priority == nil &&
		p.AssigneeIDs == nil && p.ReporterID == nil && p.DueDate == nil &&
		!p.ClearDueDate && p.Tags == nil && p.DependentTaskTitles == nil
}

// Apply copies the set fields of p onto t.
func (p TaskPatch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.AssigneeIDs != nil {
		t.AssigneeIDs = slices.Clone(*p.AssigneeIDs)
	}
	if p.ReporterID != nil {
		t.ReporterID = *p.ReporterID
	}
	if p.ClearDueDate {
		t.DueDate = nil
	} else if p.DueDate != nil {
		d := *p.DueDate
		t.DueDate = &d
	}
	if p.Tags != nil {
		t.Tags = slices.Clone(*p.Tags)
	}
	if p.DependentTaskTitles != nil {
		t.DependentTaskTitles = slices.Clone(*p.DependentTaskTitles)
	}
}
