package api

import (
	"context"
	"errors"

	"kanban-api/domain"
)

// canAccess reports whether userID may read and edit the board of p: the
// owner, an explicit member, or a member of the project's team.
func (s *server) canAccess(ctx context.Context, p domain.Project, userID string) (bool, error) {
	if p.HasMember(userID) {
		return true, nil
	}
	if p.TeamID == "" {
		return false, nil
	}
	t, err := s.Store.Team(ctx, p.TeamID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return t.HasMember(userID), nil
}

// projectFor loads a project the caller may work on. A project the caller
// cannot see is reported as forbidden.
func (s *server) projectFor(ctx context.Context, id string, sess Session, action string) (domain.Project, error) {
	p, err := s.Store.Project(ctx, id)
	if err != nil {
		return domain.Project{}, err
	}
	ok, err := s.canAccess(ctx, p, sess.UserID)
	if err != nil {
		return domain.Project{}, err
	}
	if !ok {
		return domain.Project{}, domain.Forbidden(action)
	}
	return p, nil
}

// ownedProject loads a project only its owner may change.
func (s *server) ownedProject(ctx context.Context, id string, sess Session, action string) (domain.Project, error) {
	p, err := s.Store.Project(ctx, id)
	if err != nil {
		return domain.Project{}, err
	}
	if p.OwnerID != sess.UserID {
		return domain.Project{}, domain.Forbidden(action)
	}
	return p, nil
}

// ownedTeam loads a team only its owner may change.
func (s *server) ownedTeam(ctx context.Context, id string, sess Session, action string) (domain.Team, error) {
	t, err := s.Store.Team(ctx, id)
	if err != nil {
		return domain.Team{}, err
	}
	if t.OwnerID != sess.UserID {
		return domain.Team{}, domain.Forbidden(action)
	}
	return t, nil
}
