package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"kanban-api/domain"
)

type profileRequest struct {
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	AvatarURL   string `json:"avatarUrl"`
	Title       string `json:"title"`
}

// getMe returns the caller's stored profile, or one derived from the token
// claims when none has been saved yet.
func (s *server) getMe(c echo.Context) error {
	sess := mustSession(c)
	u, err := s.Store.User(c.Request().Context(), sess.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		return c.JSON(http.StatusOK, domain.User{
			ID:          sess.UserID,
			DisplayName: sess.Name,
			Email:       sess.Email,
			AvatarURL:   sess.Picture,
		})
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (s *server) putMe(c echo.Context) error {
	var req profileRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	u, err := s.Store.SaveUser(c.Request().Context(), domain.User{
		ID:          mustSession(c).UserID,
		DisplayName: req.DisplayName,
		Email:       req.Email,
		AvatarURL:   req.AvatarURL,
		Title:       req.Title,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (s *server) getUser(c echo.Context) error {
	u, err := s.Store.User(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	u.Email = ""
	return c.JSON(http.StatusOK, u)
}
