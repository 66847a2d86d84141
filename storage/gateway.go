package storage

import (
	"context"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"kanban-api/board"
	"kanban-api/domain"
)

// Gateway implements the board operations on top of a Backend. Every task,
// column and comment change is a read-modify-write of the whole project
// document; concurrent writers resolve last-writer-wins.
type Gateway struct {
	backend Backend
	// source serves the reads of read-modify-write paths. It skips any read
	// cache in front of backend so a change is never computed from a stale copy.
	source Backend
	now    func() time.Time
	newID  func() string
}

// NewGateway creates a Gateway over b.
func NewGateway(b Backend) *Gateway {
	source := b
	if u, ok := b.(interface{ Uncached() Backend }); ok {
		source = u.Uncached()
	}
	return &Gateway{
		backend: b,
		source:  source,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
}

// ProjectInput holds the fields accepted when creating a project.
type ProjectInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	TeamID      string   `json:"teamId"`
	MemberIDs   []string `json:"memberIds"`
}

// repair normalises a decoded document. Structural damage is reported as
// domain.ErrInvalidDocument; ordering damage is fixed in place.
func repair(p domain.Project) (domain.Project, error) {
	if err := p.Check(); err != nil {
		return p, err
	}
	if p.MemberIDs == nil {
		p.MemberIDs = []string{}
	}
	if p.Columns == nil {
		p.Columns = []domain.Column{}
	}
	if p.Tasks == nil {
		p.Tasks = []domain.Task{}
	}
	for i := range p.Tasks {
		if p.Tasks[i].Priority == "" {
			p.Tasks[i].Priority = domain.PriorityNone
		}
	}
	if err := board.FromProject(p).Validate(); err != nil {
		log.WithFields(log.Fields{"projectId": p.ID}).WithError(err).Warn("repairing task order")
		p.Tasks = board.Normalize(p.Tasks, p.Columns)
	}
	p.SyncColumnTaskIDs()
	return p, nil
}

func (g *Gateway) load(ctx context.Context, from Backend, op, id string) (domain.Project, error) {
	p, err := from.GetProject(ctx, id)
	if err != nil {
		return domain.Project{}, domain.Transport(op, err)
	}
	p, err = repair(p)
	if err != nil {
		return domain.Project{}, domain.Transport(op, err)
	}
	return p, nil
}

// mutate loads a project, applies fn to a copy and stores the result. The
// stored document is untouched when fn fails.
func (g *Gateway) mutate(ctx context.Context, op, id string, fn func(p *domain.Project) error) (domain.Project, error) {
	p, err := g.load(ctx, g.source, op, id)
	if err != nil {
		return domain.Project{}, err
	}
	next := p.Clone()
	if err := fn(&next); err != nil {
		return domain.Project{}, err
	}
	next.UpdatedAt = g.now()
	next.SyncColumnTaskIDs()
	if err := next.Check(); err != nil {
		return domain.Project{}, err
	}
	if err := g.backend.PutProject(ctx, next); err != nil {
		return domain.Project{}, domain.Transport(op, err)
	}
	return next, nil
}

// CreateProject stores a new project owned by ownerID with the default columns.
func (g *Gateway) CreateProject(ctx context.Context, ownerID string, in ProjectInput) (domain.Project, error) {
	name := strings.TrimSpace(in.Name)
	if err := domain.ValidateProjectName(name); err != nil {
		return domain.Project{}, err
	}
	now := g.now()
	p := domain.Project{
		ID:          g.newID(),
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		TeamID:      in.TeamID,
		OwnerID:     ownerID,
		MemberIDs:   members(in.MemberIDs, ownerID),
		Columns:     domain.DefaultColumns(g.newID),
		Tasks:       []domain.Task{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := g.backend.PutProject(ctx, p); err != nil {
		return domain.Project{}, domain.Transport("create project", err)
	}
	return p, nil
}

// Project returns a repaired project document.
func (g *Gateway) Project(ctx context.Context, id string) (domain.Project, error) {
	return g.load(ctx, g.backend, "get project", id)
}

// Projects lists projects matching f. Documents that cannot be repaired are skipped.
func (g *Gateway) Projects(ctx context.Context, f ProjectFilter) ([]domain.Project, error) {
	ps, err := g.backend.ListProjects(ctx, f)
	if err != nil {
		return nil, domain.Transport("list projects", err)
	}
	out := make([]domain.Project, 0, len(ps))
	for _, p := range ps {
		fixed, err := repair(p)
		if err != nil {
			log.WithFields(log.Fields{"projectId": p.ID}).WithError(err).Error("skipping invalid project document")
			continue
		}
		out = append(out, fixed)
	}
	return out, nil
}

// UpdateProject applies patch to the project metadata.
func (g *Gateway) UpdateProject(ctx context.Context, id string, patch domain.ProjectPatch) (domain.Project, error) {
	return g.mutate(ctx, "update project", id, func(p *domain.Project) error {
		if patch.Name != nil {
			name := strings.TrimSpace(*patch.Name)
			if err := domain.ValidateProjectName(name); err != nil {
				return err
			}
			p.Name = name
		}
		if patch.Description != nil {
			p.Description = strings.TrimSpace(*patch.Description)
		}
		if patch.MemberIDs != nil {
			p.MemberIDs = members(*patch.MemberIDs, p.OwnerID)
		}
		return nil
	})
}

// DeleteProject removes a project and every task on it.
func (g *Gateway) DeleteProject(ctx context.Context, id string) error {
	return domain.Transport("delete project", g.backend.DeleteProject(ctx, id))
}

// AddColumn appends a column after the existing ones.
func (g *Gateway) AddColumn(ctx context.Context, projectID, title string) (domain.Column, error) {
	title = strings.TrimSpace(title)
	if err := domain.ValidateColumnTitle(title); err != nil {
		return domain.Column{}, err
	}
	col := domain.Column{ID: g.newID(), Title: title, TaskIDs: []string{}}
	_, err := g.mutate(ctx, "add column", projectID, func(p *domain.Project) error {
		col.Order = len(p.Columns)
		p.Columns = append(p.Columns, col)
		return nil
	})
	if err != nil {
		return domain.Column{}, err
	}
	return col, nil
}

// UpdateColumn renames a column or moves it to a new position. Column orders
// are kept dense.
func (g *Gateway) UpdateColumn(ctx context.Context, projectID, columnID string, patch domain.ColumnPatch) (domain.Column, error) {
	var out domain.Column
	_, err := g.mutate(ctx, "update column", projectID, func(p *domain.Project) error {
		ci, ok := p.ColumnIndex(columnID)
		if !ok {
			return domain.NotFound("column", columnID)
		}
		if patch.Title != nil {
			title := strings.TrimSpace(*patch.Title)
			if err := domain.ValidateColumnTitle(title); err != nil {
				return err
			}
			p.Columns[ci].Title = title
		}
		if patch.Order != nil {
			if *patch.Order < 0 || *patch.Order >= len(p.Columns) {
				return domain.Invalid("order", "must be between 0 and %d", len(p.Columns)-1)
			}
			reorderColumns(p.Columns, columnID, *patch.Order)
		}
		ci, _ = p.ColumnIndex(columnID)
		out = p.Columns[ci]
		return nil
	})
	if err != nil {
		return domain.Column{}, err
	}
	return out, nil
}

// DeleteColumn removes an empty column.
func (g *Gateway) DeleteColumn(ctx context.Context, projectID, columnID string) error {
	_, err := g.mutate(ctx, "delete column", projectID, func(p *domain.Project) error {
		ci, ok := p.ColumnIndex(columnID)
		if !ok {
			return domain.NotFound("column", columnID)
		}
		if n := p.CountInColumn(columnID); n > 0 {
			return domain.Invalid("columnId", "column still holds %d tasks", n)
		}
		p.Columns = slices.Delete(p.Columns, ci, ci+1)
		reorderColumns(p.Columns, "", 0)
		return nil
	})
	return err
}

// reorderColumns moves columnID to position at in the ordered sequence and
// renumbers every column densely. An empty columnID only renumbers.
func reorderColumns(cols []domain.Column, columnID string, at int) {
	seq := make([]int, len(cols))
	for i := range seq {
		seq[i] = i
	}
	sort.SliceStable(seq, func(i, j int) bool { return cols[seq[i]].Order < cols[seq[j]].Order })
	if columnID != "" {
		from := slices.IndexFunc(seq, func(i int) bool { return cols[i].ID == columnID })
		if from >= 0 {
			ci := seq[from]
			seq = slices.Delete(seq, from, from+1)
			seq = slices.Insert(seq, at, ci)
		}
	}
	for pos, i := range seq {
		cols[i].Order = pos
	}
}

// AddTask appends t to the end of its column, or of the first column when
// none is given.
func (g *Gateway) AddTask(ctx context.Context, projectID string, t domain.Task) (domain.Task, error) {
	t.Title = strings.TrimSpace(t.Title)
	if t.Priority == "" {
		t.Priority = domain.PriorityNone
	}
	if err := domain.ValidateTask(t); err != nil {
		return domain.Task{}, err
	}
	var out domain.Task
	_, err := g.mutate(ctx, "add task", projectID, func(p *domain.Project) error {
		if t.ColumnID == "" {
			cols := board.FromProject(*p).ColumnsSorted()
			if len(cols) == 0 {
				return domain.Invalid("columnId", "project has no columns")
			}
			t.ColumnID = cols[0].ID
		}
		if _, ok := p.ColumnIndex(t.ColumnID); !ok {
			return domain.Invalid("columnId", "unknown column %s", t.ColumnID)
		}
		now := g.now()
		out = t.Clone()
		out.ID = g.newID()
		out.Order = p.CountInColumn(t.ColumnID)
		out.Comments = nil
		out.CreatedAt = now
		out.UpdatedAt = now
		p.Tasks = append(p.Tasks, out)
		return nil
	})
	if err != nil {
		return domain.Task{}, err
	}
	return out, nil
}

// UpdateTask applies patch to a task's editable fields.
func (g *Gateway) UpdateTask(ctx context.Context, projectID, taskID string, patch domain.TaskPatch) (domain.Task, error) {
	var out domain.Task
	_, err := g.mutate(ctx, "update task", projectID, func(p *domain.Project) error {
		ti, ok := p.TaskIndex(taskID)
		if !ok {
			return domain.NotFound("task", taskID)
		}
		t := p.Tasks[ti].Clone()
		patch.Apply(&t)
		if err := domain.ValidateTask(t); err != nil {
			return err
		}
		t.UpdatedAt = g.now()
		p.Tasks[ti] = t
		out = t.Clone()
		return nil
	})
	if err != nil {
		return domain.Task{}, err
	}
	return out, nil
}

// DeleteTask removes a task and closes the gap it leaves in its column.
func (g *Gateway) DeleteTask(ctx context.Context, projectID, taskID string) error {
	_, err := g.mutate(ctx, "delete task", projectID, func(p *domain.Project) error {
		ti, ok := p.TaskIndex(taskID)
		if !ok {
			return domain.NotFound("task", taskID)
		}
		removed := p.Tasks[ti]
		p.Tasks = slices.Delete(p.Tasks, ti, ti+1)
		for i := range p.Tasks {
			if p.Tasks[i].ColumnID == removed.ColumnID && p.Tasks[i].Order > removed.Order {
				p.Tasks[i].Order--
			}
		}
		return nil
	})
	return err
}

// MoveTask persists a placement computed elsewhere. The values are stored as
// given; keeping the column dense is the caller's job.
func (g *Gateway) MoveTask(ctx context.Context, projectID, taskID, columnID string, order int) (domain.Task, error) {
	var out domain.Task
	_, err := g.mutate(ctx, "move task", projectID, func(p *domain.Project) error {
		ti, ok := p.TaskIndex(taskID)
		if !ok {
			return domain.NotFound("task", taskID)
		}
		if _, ok := p.ColumnIndex(columnID); !ok {
			return domain.Invalid("columnId", "unknown column %s", columnID)
		}
		if order < 0 {
			return domain.Invalid("order", "must not be negative")
		}
		p.Tasks[ti].ColumnID = columnID
		p.Tasks[ti].Order = order
		p.Tasks[ti].UpdatedAt = g.now()
		out = p.Tasks[ti].Clone()
		return nil
	})
	if err != nil {
		return domain.Task{}, err
	}
	return out, nil
}

// SavePlacements stores the column and order of every given task, typically
// the output of board.Move. Other task fields in the stored document win.
func (g *Gateway) SavePlacements(ctx context.Context, projectID string, tasks []domain.Task) (domain.Project, error) {
	return g.mutate(ctx, "save placements", projectID, func(p *domain.Project) error {
		now := g.now()
		for _, t := range tasks {
			ti, ok := p.TaskIndex(t.ID)
			if !ok {
				return domain.NotFound("task", t.ID)
			}
			if _, ok := p.ColumnIndex(t.ColumnID); !ok {
				return domain.Invalid("columnId", "unknown column %s", t.ColumnID)
			}
			cur := &p.Tasks[ti]
			if cur.ColumnID != t.ColumnID || cur.Order != t.Order {
				cur.ColumnID = t.ColumnID
				cur.Order = t.Order
				cur.UpdatedAt = now
			}
		}
		return nil
	})
}

// AddComment appends a comment to a task.
func (g *Gateway) AddComment(ctx context.Context, projectID, taskID string, c domain.Comment) (domain.Comment, error) {
	c.Content = strings.TrimSpace(c.Content)
	if err := domain.ValidateComment(c.Content); err != nil {
		return domain.Comment{}, err
	}
	c.ID = g.newID()
	c.CreatedAt = g.now()
	_, err := g.mutate(ctx, "add comment", projectID, func(p *domain.Project) error {
		ti, ok := p.TaskIndex(taskID)
		if !ok {
			return domain.NotFound("task", taskID)
		}
		p.Tasks[ti].Comments = append(p.Tasks[ti].Comments, c)
		return nil
	})
	if err != nil {
		return domain.Comment{}, err
	}
	return c, nil
}

// Comments returns a task's comments newest first.
func (g *Gateway) Comments(ctx context.Context, projectID, taskID string) ([]domain.Comment, error) {
	p, err := g.load(ctx, g.backend, "list comments", projectID)
	if err != nil {
		return nil, err
	}
	ti, ok := p.TaskIndex(taskID)
	if !ok {
		return nil, domain.NotFound("task", taskID)
	}
	out := board.CommentsNewestFirst(p.Tasks[ti])
	if out == nil {
		out = []domain.Comment{}
	}
	return out, nil
}

// CreateTeam stores a new team owned by ownerID.
func (g *Gateway) CreateTeam(ctx context.Context, ownerID, name, description string) (domain.Team, error) {
	name = strings.TrimSpace(name)
	if err := domain.ValidateTeamName(name); err != nil {
		return domain.Team{}, err
	}
	now := g.now()
	t := domain.Team{
		ID:          g.newID(),
		Name:        name,
		Description: strings.TrimSpace(description),
		OwnerID:     ownerID,
		MemberIDs:   []string{ownerID},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := g.backend.PutTeam(ctx, t); err != nil {
		return domain.Team{}, domain.Transport("create team", err)
	}
	return t, nil
}

// Team returns a team by id.
func (g *Gateway) Team(ctx context.Context, id string) (domain.Team, error) {
	t, err := g.backend.GetTeam(ctx, id)
	if err != nil {
		return domain.Team{}, domain.Transport("get team", err)
	}
	return t, nil
}

// Teams lists the teams userID owns or belongs to.
func (g *Gateway) Teams(ctx context.Context, userID string) ([]domain.Team, error) {
	ts, err := g.backend.ListTeams(ctx, userID)
	if err != nil {
		return nil, domain.Transport("list teams", err)
	}
	return ts, nil
}

func (g *Gateway) mutateTeam(ctx context.Context, op, id string, fn func(t *domain.Team) error) (domain.Team, error) {
	t, err := g.source.GetTeam(ctx, id)
	if err != nil {
		return domain.Team{}, domain.Transport(op, err)
	}
	t.MemberIDs = slices.Clone(t.MemberIDs)
	if err := fn(&t); err != nil {
		return domain.Team{}, err
	}
	t.UpdatedAt = g.now()
	if err := g.backend.PutTeam(ctx, t); err != nil {
		return domain.Team{}, domain.Transport(op, err)
	}
	return t, nil
}

// UpdateTeam applies patch to a team.
func (g *Gateway) UpdateTeam(ctx context.Context, id string, patch domain.TeamPatch) (domain.Team, error) {
	return g.mutateTeam(ctx, "update team", id, func(t *domain.Team) error {
		if patch.Name != nil {
			name := strings.TrimSpace(*patch.Name)
			if err := domain.ValidateTeamName(name); err != nil {
				return err
			}
			t.Name = name
		}
		if patch.Description != nil {
			t.Description = strings.TrimSpace(*patch.Description)
		}
		return nil
	})
}

// DeleteTeam removes a team. Projects keep their team id and fall back to
// explicit membership.
func (g *Gateway) DeleteTeam(ctx context.Context, id string) error {
	return domain.Transport("delete team", g.backend.DeleteTeam(ctx, id))
}

// AddTeamMember adds userID to a team. Adding an existing member is a no-op.
func (g *Gateway) AddTeamMember(ctx context.Context, id, userID string) (domain.Team, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.Team{}, domain.Invalid("userId", "is required")
	}
	return g.mutateTeam(ctx, "add team member", id, func(t *domain.Team) error {
		if !slices.Contains(t.MemberIDs, userID) {
			t.MemberIDs = append(t.MemberIDs, userID)
		}
		return nil
	})
}

// RemoveTeamMember removes userID from a team. The owner cannot be removed.
func (g *Gateway) RemoveTeamMember(ctx context.Context, id, userID string) (domain.Team, error) {
	return g.mutateTeam(ctx, "remove team member", id, func(t *domain.Team) error {
		if userID == t.OwnerID {
			return domain.Invalid("userId", "the team owner cannot be removed")
		}
		i := slices.Index(t.MemberIDs, userID)
		if i < 0 {
			return domain.NotFound("member", userID)
		}
		t.MemberIDs = slices.Delete(t.MemberIDs, i, i+1)
		return nil
	})
}

// User returns a user profile.
func (g *Gateway) User(ctx context.Context, id string) (domain.User, error) {
	u, err := g.backend.GetUser(ctx, id)
	if err != nil {
		return domain.User{}, domain.Transport("get user", err)
	}
	return u, nil
}

// SaveUser creates or updates a profile, keeping the original creation time.
func (g *Gateway) SaveUser(ctx context.Context, u domain.User) (domain.User, error) {
	u.DisplayName = strings.TrimSpace(u.DisplayName)
	if u.ID == "" {
		return domain.User{}, domain.Invalid("id", "is required")
	}
	if err := checkDisplayName(u.DisplayName); err != nil {
		return domain.User{}, err
	}
	now := g.now()
	u.CreatedAt = now
	existing, err := g.source.GetUser(ctx, u.ID)
	switch {
	case err == nil:
		u.CreatedAt = existing.CreatedAt
	case !isNotFound(err):
		return domain.User{}, domain.Transport("save user", err)
	}
	u.UpdatedAt = now
	if err := g.backend.PutUser(ctx, u); err != nil {
		return domain.User{}, domain.Transport("save user", err)
	}
	return u, nil
}

func checkDisplayName(name string) error {
	if name == "" {
		return domain.Invalid("displayName", "is required")
	}
	if len([]rune(name)) > 80 {
		return domain.Invalid("displayName", "must be at most 80 characters")
	}
	return nil
}

// members returns ids without blanks and duplicates, never including the owner.
func members(ids []string, ownerID string) []string {
	out := []string{}
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || id == ownerID || slices.Contains(out, id) {
			continue
		}
		out = append(out, id)
	}
	return out
}
