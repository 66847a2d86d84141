package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"kanban-api/domain"
)

type teamRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type teamView struct {
	domain.Team
	Members []domain.User `json:"members"`
}

func (s *server) listTeams(c echo.Context) error {
	teams, err := s.Store.Teams(c.Request().Context(), mustSession(c).UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, teams)
}

func (s *server) createTeam(c echo.Context) error {
	var req teamRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	t, err := s.Store.CreateTeam(c.Request().Context(), mustSession(c).UserID, req.Name, req.Description)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, t)
}

func (s *server) getTeam(c echo.Context) error {
	t, err := s.Store.Team(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	if !t.HasMember(mustSession(c).UserID) {
		return domain.Forbidden("view this team")
	}
	members, err := s.profiles(c, t.MemberIDs)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, teamView{Team: t, Members: members})
}

func (s *server) updateTeam(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := s.ownedTeam(ctx, c.Param("id"), mustSession(c), "edit this team"); err != nil {
		return err
	}
	var patch domain.TeamPatch
	if err := c.Bind(&patch); err != nil {
		return err
	}
	t, err := s.Store.UpdateTeam(ctx, c.Param("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

func (s *server) deleteTeam(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := s.ownedTeam(ctx, c.Param("id"), mustSession(c), "delete this team"); err != nil {
		return err
	}
	if err := s.Store.DeleteTeam(ctx, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type memberRequest struct {
	UserID string `json:"userId"`
}

func (s *server) addTeamMember(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := s.ownedTeam(ctx, c.Param("id"), mustSession(c), "add team members"); err != nil {
		return err
	}
	var req memberRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	t, err := s.Store.AddTeamMember(ctx, c.Param("id"), req.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

// removeTeamMember lets the owner remove anyone but themself, and a member
// leave on their own.
func (s *server) removeTeamMember(c echo.Context) error {
	ctx := c.Request().Context()
	sess := mustSession(c)
	userID := c.Param("userId")
	t, err := s.Store.Team(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	if t.OwnerID != sess.UserID && userID != sess.UserID {
		return domain.Forbidden("remove team members")
	}
	t, err = s.Store.RemoveTeamMember(ctx, t.ID, userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}
