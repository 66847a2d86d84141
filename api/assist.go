package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"kanban-api/ai"
	"kanban-api/domain"
)

type briefRequest struct {
	Title string `json:"title"`
	Brief string `json:"brief"`
}

type rewriteRequest struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

type priorityRequest struct {
	Title               string   `json:"title"`
	Description         string   `json:"description"`
	DependentTaskTitles []string `json:"dependentTaskTitles"`
	// ProjectID and TaskID, when both set, take the fields from the stored task.
	ProjectID string `json:"projectId"`
	TaskID    string `json:"taskId"`
}

type generatedTasks struct {
	Tasks []ai.TaskDraft `json:"tasks"`
}

func (s *server) generateTasks(c echo.Context) error {
	var req briefRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	drafts, err := s.Assistant.GenerateTasks(c.Request().Context(), req.Brief)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, generatedTasks{Tasks: drafts})
}

func (s *server) draftTask(c echo.Context) error {
	var req briefRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	draft, err := s.Assistant.DraftTask(c.Request().Context(), req.Title, req.Brief)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, draft)
}

func (s *server) rewriteDescription(c echo.Context) error {
	var req rewriteRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	out, err := s.Assistant.RewriteDescription(c.Request().Context(), req.Title, req.Text)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (s *server) rewriteComment(c echo.Context) error {
	var req rewriteRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	out, err := s.Assistant.RewriteComment(c.Request().Context(), req.Title, req.Text)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (s *server) suggestPriority(c echo.Context) error {
	ctx := c.Request().Context()
	var req priorityRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if req.ProjectID != "" && req.TaskID != "" {
		p, err := s.projectFor(ctx, req.ProjectID, mustSession(c), "view this project")
		if err != nil {
			return err
		}
		ti, ok := p.TaskIndex(req.TaskID)
		if !ok {
			return domain.NotFound("task", req.TaskID)
		}
		t := p.Tasks[ti]
		req.Title, req.Description, req.DependentTaskTitles = t.Title, t.Description, t.DependentTaskTitles
	}
	out, err := s.Assistant.SuggestPriority(ctx, req.Title, req.Description, req.DependentTaskTitles)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}
