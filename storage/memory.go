package storage

import (
	"context"
	"sort"
	"sync"

	"kanban-api/domain"
)

// Memory is an in-process Backend used for local development and tests.
type Memory struct {
	mu       sync.RWMutex
	projects map[string]domain.Project
	teams    map[string]domain.Team
	users    map[string]domain.User
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		projects: map[string]domain.Project{},
		teams:    map[string]domain.Team{},
		users:    map[string]domain.User{},
	}
}

func (m *Memory) GetProject(ctx context.Context, id string) (domain.Project, error) {
	if err := ctx.Err(); err != nil {
		return domain.Project{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return domain.Project{}, domain.NotFound("project", id)
	}
	return p.Clone(), nil
}

func (m *Memory) PutProject(ctx context.Context, p domain.Project) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.projects[p.ID] = p.Clone()
	m.mu.Unlock()
	return nil
}

func (m *Memory) DeleteProject(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[id]; !ok {
		return domain.NotFound("project", id)
	}
	delete(m.projects, id)
	return nil
}

func (m *Memory) ListProjects(ctx context.Context, f ProjectFilter) ([]domain.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	out := []domain.Project{}
	for _, p := range m.projects {
		if f.Match(p) {
			out = append(out, p.Clone())
		}
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) GetTeam(ctx context.Context, id string) (domain.Team, error) {
	if err := ctx.Err(); err != nil {
		return domain.Team{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.teams[id]
	if !ok {
		return domain.Team{}, domain.NotFound("team", id)
	}
	return cloneTeam(t), nil
}

func (m *Memory) PutTeam(ctx context.Context, t domain.Team) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.teams[t.ID] = cloneTeam(t)
	m.mu.Unlock()
	return nil
}

func (m *Memory) DeleteTeam(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.teams[id]; !ok {
		return domain.NotFound("team", id)
	}
	delete(m.teams, id)
	return nil
}

func (m *Memory) ListTeams(ctx context.Context, userID string) ([]domain.Team, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	out := []domain.Team{}
	for _, t := range m.teams {
		if userID == "" || t.HasMember(userID) {
			out = append(out, cloneTeam(t))
		}
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) GetUser(ctx context.Context, id string) (domain.User, error) {
	if err := ctx.Err(); err != nil {
		return domain.User{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, domain.NotFound("user", id)
	}
	return u, nil
}

func (m *Memory) PutUser(ctx context.Context, u domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.users[u.ID] = u
	m.mu.Unlock()
	return nil
}

func cloneTeam(t domain.Team) domain.Team {
	t.MemberIDs = append([]string(nil), t.MemberIDs...)
	return t
}
