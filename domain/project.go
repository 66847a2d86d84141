package domain

import (
	"slices"
	"sort"
	"time"
)

// Column is a workflow stage on a project board.
type Column struct {
	ID    string `json:"id" bson:"id"`
	Title string `json:"title" bson:"title"`
	Order int    `json:"order" bson:"order"`
	// TaskIDs mirrors Task.ColumnID; it is rebuilt by SyncColumnTaskIDs before every save.
	TaskIDs []string `json:"taskIds" bson:"taskIds"`
}

// Project is the aggregate document: a board with its columns and tasks embedded.
type Project struct {
	ID          string    `json:"id" bson:"_id"`
	Name        string    `json:"name" bson:"name"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	TeamID      string    `json:"teamId,omitempty" bson:"teamId,omitempty"`
	OwnerID     string    `json:"ownerId" bson:"ownerId"`
	MemberIDs   []string  `json:"memberIds" bson:"memberIds"`
	Columns     []Column  `json:"columns" bson:"columns"`
	Tasks       []Task    `json:"tasks" bson:"tasks"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt"`
}

// DefaultColumnTitles are the stages every new project starts with.
var DefaultColumnTitles = []string{"To Do", "In Progress", "Done"}

// DefaultColumns builds the initial columns using newID for identifiers.
func DefaultColumns(newID func() string) []Column {
	cols := make([]Column, len(DefaultColumnTitles))
	for i, title := range DefaultColumnTitles {
		cols[i] = Column{ID: newID(), Title: title, Order: i, TaskIDs: []string{}}
	}
	return cols
}

// Clone returns a deep copy of the project.
func (p Project) Clone() Project {
	c := p
	c.MemberIDs = slices.Clone(p.MemberIDs)
	if p.Columns != nil {
		c.Columns = make([]Column, len(p.Columns))
		for i, col := range p.Columns {
			col.TaskIDs = slices.Clone(col.TaskIDs)
			c.Columns[i] = col
		}
	}
	c.Tasks = CloneTasks(p.Tasks)
	return c
}

// HasMember reports whether userID owns or belongs to the project.
func (p Project) HasMember(userID string) bool {
	if userID == "" {
		return false
	}
	return p.OwnerID == userID || slices.Contains(p.MemberIDs, userID)
}

// TaskIndex returns the slice index of the task with the given id.
func (p Project) TaskIndex(id string) (int, bool) {
	for i := range p.Tasks {
		if p.Tasks[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

// ColumnIndex returns the slice index of the column with the given id.
func (p Project) ColumnIndex(id string) (int, bool) {
	for i := range p.Columns {
		if p.Columns[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

// CountInColumn returns how many tasks currently sit in columnID.
func (p Project) CountInColumn(columnID string) int {
	n := 0
	for i := range p.Tasks {
		if p.Tasks[i].ColumnID == columnID {
			n++
		}
	}
	return n
}

// SyncColumnTaskIDs rebuilds each column's TaskIDs from the tasks, ordered by Order.
func (p *Project) SyncColumnTaskIDs() {
	idx := make(map[string]int, len(p.Columns))
	for i := range p.Columns {
		idx[p.Columns[i].ID] = i
		p.Columns[i].TaskIDs = []string{}
	}
	ordered := make([]*Task, len(p.Tasks))
	for i := range p.Tasks {
		ordered[i] = &p.Tasks[i]
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })
	for _, t := range ordered {
		if ci, ok := idx[t.ColumnID]; ok {
			p.Columns[ci].TaskIDs = append(p.Columns[ci].TaskIDs, t.ID)
		}
	}
}

// ProjectPatch carries partial updates for project metadata.
type ProjectPatch struct {
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	MemberIDs   *[]string `json:"memberIds,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p ProjectPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.MemberIDs == nil
}

// ColumnPatch renames or repositions a column.
type ColumnPatch struct {
	Title *string `json:"title,omitempty"`
	Order *int    `json:"order,omitempty"`
}
