package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	ProjectNameMin    = 3
	ProjectNameMax    = 50
	TeamNameMin       = 2
	TeamNameMax       = 50
	ColumnTitleMax    = 40
	TaskTitleMax      = 120
	DescriptionMax    = 5000
	CommentContentMax = 2000
	MaxTags           = 20
)

func checkLength(field, value string, min, max int) error {
	n := utf8.RuneCountInString(strings.TrimSpace(value))
	if n < min {
		if min == 1 {
			return Invalid(field, "is required")
		}
		return Invalid(field, "must be at least %d characters", min)
	}
	if n > max {
		return Invalid(field, "must be at most %d characters", max)
	}
	return nil
}

// ValidateProjectName enforces the project name length limits.
func ValidateProjectName(name string) error {
	return checkLength("name", name, ProjectNameMin, ProjectNameMax)
}

// ValidateTeamName enforces the team name length limits.
func ValidateTeamName(name string) error {
	return checkLength("name", name, TeamNameMin, TeamNameMax)
}

// ValidateColumnTitle enforces the column title length limits.
func ValidateColumnTitle(title string) error {
	return checkLength("title", title, 1, ColumnTitleMax)
}

// ValidateComment enforces the comment length limits.
func ValidateComment(content string) error {
	return checkLength("content", content, 1, CommentContentMax)
}

// ValidateTask checks the user editable fields of a task.
func ValidateTask(t Task) error {
	if err := checkLength("title", t.Title, 1, TaskTitleMax); err != nil {
		return err
	}
	if utf8.RuneCountInString(t.Description) > DescriptionMax {
		return Invalid("description", "must be at most %d characters", DescriptionMax)
	}
	if !t.Priority.Valid() {
		return Invalid("priority", "unknown priority %q", t.Priority)
	}
	if len(t.Tags) > MaxTags {
		return Invalid("tags", "at most %d tags allowed", MaxTags)
	}
	for _, tag := range t.Tags {
		if strings.TrimSpace(tag) == "" {
			return Invalid("tags", "must not contain empty tags")
		}
	}
	return nil
}

// Check verifies the structural shape of a decoded project document.
// Ordering problems are not reported here; they are repairable.
func (p Project) Check() error {
	if p.ID == "" {
		return fmt.Errorf("%w: project without id", ErrInvalidDocument)
	}
	if p.OwnerID == "" {
		return fmt.Errorf("%w: project %s without owner", ErrInvalidDocument, p.ID)
	}
	seen := make(map[string]struct{}, len(p.Columns))
	for _, c := range p.Columns {
		if c.ID == "" {
			return fmt.Errorf("%w: project %s has a column without id", ErrInvalidDocument, p.ID)
		}
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("%w: project %s has duplicate column %s", ErrInvalidDocument, p.ID, c.ID)
		}
		seen[c.ID] = struct{}{}
	}
	tasks := make(map[string]struct{}, len(p.Tasks))
	for _, t := range p.Tasks {
		if t.ID == "" {
			return fmt.Errorf("%w: project %s has a task without id", ErrInvalidDocument, p.ID)
		}
		if _, dup := tasks[t.ID]; dup {
			return fmt.Errorf("%w: project %s has duplicate task %s", ErrInvalidDocument, p.ID, t.ID)
		}
		tasks[t.ID] = struct{}{}
	}
	if len(p.Tasks) > 0 && len(p.Columns) == 0 {
		return fmt.Errorf("%w: project %s has tasks but no columns", ErrInvalidDocument, p.ID)
	}
	return nil
}
