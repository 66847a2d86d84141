// Package board holds the in-memory model of a project board and the
// drag-and-drop reducer that keeps per-column task ordering consistent.
//
// A State is never modified in place: every operation that changes the board
// returns a new State backed by freshly allocated slices, so holders of an
// older State can compare or roll back to it safely.
package board

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"kanban-api/domain"
)

// ErrInvariant is wrapped by every ordering or membership violation reported by Validate.
var ErrInvariant = errors.New("board invariant violated")

// State is an immutable snapshot of a board's columns and tasks.
type State struct {
	columns []domain.Column
	tasks   []domain.Task
}

// New snapshots the given columns and tasks.
func New(columns []domain.Column, tasks []domain.Task) State {
	cols := make([]domain.Column, len(columns))
	for i, c := range columns {
		c.TaskIDs = slices.Clone(c.TaskIDs)
		cols[i] = c
	}
	ts := domain.CloneTasks(tasks)
	if ts == nil {
		ts = []domain.Task{}
	}
	return State{columns: cols, tasks: ts}
}

// FromProject snapshots the board of a project document.
func FromProject(p domain.Project) State {
	return New(p.Columns, p.Tasks)
}

// Tasks returns a copy of every task in original slice order.
func (s State) Tasks() []domain.Task {
	return domain.CloneTasks(s.tasks)
}

// Columns returns a copy of every column in original slice order.
func (s State) Columns() []domain.Column {
	return New(s.columns, nil).columns
}

// Len returns the number of tasks on the board.
func (s State) Len() int { return len(s.tasks) }

// Task looks up a task by id.
func (s State) Task(id string) (domain.Task, bool) {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return s.tasks[i].Clone(), true
		}
	}
	return domain.Task{}, false
}

// HasColumn reports whether id names a column of this board.
func (s State) HasColumn(id string) bool {
	return columnIndex(s.columns, id) >= 0
}

// TasksInColumn returns the tasks of columnID ascending by order.
// Ties keep their original slice position.
func (s State) TasksInColumn(columnID string) []domain.Task {
	idx := columnSequence(s.tasks, columnID)
	out := make([]domain.Task, len(idx))
	for i, j := range idx {
		out[i] = s.tasks[j].Clone()
	}
	return out
}

// ColumnsSorted returns the columns ascending by order; ties keep slice position.
func (s State) ColumnsSorted() []domain.Column {
	cols := s.Columns()
	sort.SliceStable(cols, func(i, j int) bool { return cols[i].Order < cols[j].Order })
	return cols
}

// Move applies a drag gesture and returns the resulting state. When the
// gesture is a no-op the receiver is returned unchanged.
func (s State) Move(activeID, overID string) State {
	out, changed := move(s.tasks, s.columns, activeID, overID)
	if !changed {
		return s
	}
	return State{columns: s.columns, tasks: out}
}

// WithTasks returns a copy of the state with its task list replaced.
func (s State) WithTasks(tasks []domain.Task) State {
	return New(s.columns, tasks)
}

// Equal reports whether two states hold the same columns and tasks.
func (s State) Equal(o State) bool {
	if len(s.tasks) != len(o.tasks) || len(s.columns) != len(o.columns) {
		return false
	}
	for i := range s.columns {
		a, b := s.columns[i], o.columns[i]
		if a.ID != b.ID || a.Title != b.Title || a.Order != b.Order || !slices.Equal(a.TaskIDs, b.TaskIDs) {
			return false
		}
	}
	for i := range s.tasks {
		if !sameTask(s.tasks[i], o.tasks[i]) {
			return false
		}
	}
	return true
}

// ApplyTo writes the state's columns and tasks into p and resyncs the
// denormalised column task ids.
func (s State) ApplyTo(p *domain.Project) {
	p.Columns = s.Columns()
	p.Tasks = s.Tasks()
	p.SyncColumnTaskIDs()
}

// Validate checks that every task names an existing column and that each
// column's orders form the dense sequence 0..n-1.
func (s State) Validate() error {
	counts := make(map[string][]int, len(s.columns))
	for _, c := range s.columns {
		counts[c.ID] = nil
	}
	seen := make(map[string]struct{}, len(s.tasks))
	for _, t := range s.tasks {
		if _, dup := seen[t.ID]; dup {
			return fmt.Errorf("%w: task %s appears twice", ErrInvariant, t.ID)
		}
		seen[t.ID] = struct{}{}
		orders, ok := counts[t.ColumnID]
		if !ok {
			return fmt.Errorf("%w: task %s references unknown column %q", ErrInvariant, t.ID, t.ColumnID)
		}
		counts[t.ColumnID] = append(orders, t.Order)
	}
	for col, orders := range counts {
		slices.Sort(orders)
		for i, o := range orders {
			if o != i {
				return fmt.Errorf("%w: column %s orders %v are not contiguous", ErrInvariant, col, orders)
			}
		}
	}
	return nil
}

// CommentsNewestFirst returns the task's comments in display order. The
// stored slice keeps creation order and is not touched.
func CommentsNewestFirst(t domain.Task) []domain.Comment {
	out := slices.Clone(t.Comments)
	// Reversing first makes later appends win timestamp ties.
	slices.Reverse(out)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func sameTask(a, b domain.Task) bool {
	if a.ID != b.ID || a.Title != b.Title || a.Description != b.Description ||
		a.Priority != b.Priority || a.ColumnID != b.ColumnID || a.Order != b.Order ||
		a.ReporterID != b.ReporterID || !a.CreatedAt.Equal(b.CreatedAt) || !a.UpdatedAt.Equal(b.UpdatedAt) {
		return false
	}
	if (a.DueDate == nil) != (b.DueDate == nil) || (a.DueDate != nil && !a.DueDate.Equal(*b.DueDate)) {
		return false
	}
	return slices.Equal(a.AssigneeIDs, b.AssigneeIDs) &&
		slices.Equal(a.Tags, b.Tags) &&
		slices.Equal(a.DependentTaskTitles, b.DependentTaskTitles) &&
		slices.EqualFunc(a.Comments, b.Comments, func(x, y domain.Comment) bool {
			return x.ID == y.ID && x.Content == y.Content && x.AuthorID == y.AuthorID && x.CreatedAt.Equal(y.CreatedAt)
		})
}
