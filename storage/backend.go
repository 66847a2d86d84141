package storage

import (
	"context"
	"errors"
	"slices"

	"kanban-api/domain"
)

// Backend is the document store the gateway reads and writes whole
// aggregates through. Get and Delete return a domain.NotFoundError when the
// document is missing; Put replaces the stored document unconditionally.
type Backend interface {
	GetProject(ctx context.Context, id string) (domain.Project, error)
	PutProject(ctx context.Context, p domain.Project) error
	DeleteProject(ctx context.Context, id string) error
	ListProjects(ctx context.Context, f ProjectFilter) ([]domain.Project, error)

	GetTeam(ctx context.Context, id string) (domain.Team, error)
	PutTeam(ctx context.Context, t domain.Team) error
	DeleteTeam(ctx context.Context, id string) error
	ListTeams(ctx context.Context, userID string) ([]domain.Team, error)

	GetUser(ctx context.Context, id string) (domain.User, error)
	PutUser(ctx context.Context, u domain.User) error
}

// ProjectFilter narrows a project listing. Empty fields do not filter.
type ProjectFilter struct {
	// TeamID keeps projects assigned to this team.
	TeamID string
	// UserID keeps projects the user owns or is a member of, plus projects of
	// any team in UserTeamIDs.
	UserID      string
	UserTeamIDs []string
}

// Match reports whether p passes the filter.
func (f ProjectFilter) Match(p domain.Project) bool {
	if f.TeamID != "" && p.TeamID != f.TeamID {
		return false
	}
	if f.UserID == "" {
		return true
	}
	if p.HasMember(f.UserID) {
		return true
	}
	return p.TeamID != "" && slices.Contains(f.UserTeamIDs, p.TeamID)
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
