package api

import (
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"kanban-api/activity"
	"kanban-api/board"
	"kanban-api/domain"
	"kanban-api/storage"
)

type columnView struct {
	ID    string        `json:"id"`
	Title string        `json:"title"`
	Order int           `json:"order"`
	Tasks []domain.Task `json:"tasks"`
}

// boardView is a project as the board renders it: columns in order, each
// with its tasks in order.
type boardView struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	TeamID      string       `json:"teamId,omitempty"`
	OwnerID     string       `json:"ownerId"`
	MemberIDs   []string     `json:"memberIds"`
	Columns     []columnView `json:"columns"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

func newBoardView(p domain.Project) boardView {
	return viewOf(p, board.FromProject(p))
}

func viewOf(p domain.Project, st board.State) boardView {
	cols := st.ColumnsSorted()
	v := boardView{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		TeamID:      p.TeamID,
		OwnerID:     p.OwnerID,
		MemberIDs:   p.MemberIDs,
		Columns:     make([]columnView, len(cols)),
		UpdatedAt:   p.UpdatedAt,
	}
	if v.MemberIDs == nil {
		v.MemberIDs = []string{}
	}
	for i, col := range cols {
		v.Columns[i] = columnView{ID: col.ID, Title: col.Title, Order: col.Order, Tasks: st.TasksInColumn(col.ID)}
	}
	return v
}

func (s *server) listProjects(c echo.Context) error {
	ctx := c.Request().Context()
	sess := mustSession(c)
	teams, err := s.Store.Teams(ctx, sess.UserID)
	if err != nil {
		return err
	}
	teamIDs := make([]string, len(teams))
	for i, t := range teams {
		teamIDs[i] = t.ID
	}
	if sess.TeamID != "" && !slices.Contains(teamIDs, sess.TeamID) {
		return domain.Forbidden("view projects of team " + sess.TeamID)
	}
	projects, err := s.Store.Projects(ctx, storage.ProjectFilter{
		TeamID:      sess.TeamID,
		UserID:      sess.UserID,
		UserTeamIDs: teamIDs,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, projects)
}

func (s *server) createProject(c echo.Context) error {
	ctx := c.Request().Context()
	sess := mustSession(c)
	var in storage.ProjectInput
	if err := c.Bind(&in); err != nil {
		return err
	}
	if in.TeamID == "" {
		in.TeamID = sess.TeamID
	}
	if in.TeamID != "" {
		t, err := s.Store.Team(ctx, in.TeamID)
		if err != nil {
			return err
		}
		if !t.HasMember(sess.UserID) {
			return domain.Forbidden("create projects in team " + in.TeamID)
		}
	}
	p, err := s.Store.CreateProject(ctx, sess.UserID, in)
	if err != nil {
		return err
	}
	s.changed(c, p.ID, activity.ProjectCreated, p.ID, "created project "+p.Name)
	return c.JSON(http.StatusCreated, newBoardView(p))
}

func (s *server) getProject(c echo.Context) error {
	p, err := s.projectFor(c.Request().Context(), c.Param("id"), mustSession(c), "view this project")
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newBoardView(p))
}

func (s *server) updateProject(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := s.ownedProject(ctx, c.Param("id"), mustSession(c), "edit this project"); err != nil {
		return err
	}
	var patch domain.ProjectPatch
	if err := c.Bind(&patch); err != nil {
		return err
	}
	p, err := s.Store.UpdateProject(ctx, c.Param("id"), patch)
	if err != nil {
		return err
	}
	s.changed(c, p.ID, activity.ProjectUpdated, p.ID, "updated project "+p.Name)
	return c.JSON(http.StatusOK, newBoardView(p))
}

func (s *server) deleteProject(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := s.ownedProject(ctx, c.Param("id"), mustSession(c), "delete this project"); err != nil {
		return err
	}
	if err := s.Store.DeleteProject(ctx, c.Param("id")); err != nil {
		return err
	}
	if s.Publisher != nil {
		_ = s.Publisher.Publish(ctx, c.Param("id"))
	}
	return c.NoContent(http.StatusNoContent)
}

type columnRequest struct {
	Title string `json:"title"`
}

func (s *server) addColumn(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	if _, err := s.projectFor(ctx, id, mustSession(c), "add columns"); err != nil {
		return err
	}
	var req columnRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	col, err := s.Store.AddColumn(ctx, id, req.Title)
	if err != nil {
		return err
	}
	s.changed(c, id, activity.ColumnAdded, col.ID, "added column "+col.Title)
	return c.JSON(http.StatusCreated, col)
}

func (s *server) updateColumn(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	if _, err := s.projectFor(ctx, id, mustSession(c), "edit columns"); err != nil {
		return err
	}
	var patch domain.ColumnPatch
	if err := c.Bind(&patch); err != nil {
		return err
	}
	col, err := s.Store.UpdateColumn(ctx, id, c.Param("columnId"), patch)
	if err != nil {
		return err
	}
	s.changed(c, id, activity.ColumnUpdated, col.ID, "updated column "+col.Title)
	return c.JSON(http.StatusOK, col)
}

func (s *server) deleteColumn(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	if _, err := s.projectFor(ctx, id, mustSession(c), "delete columns"); err != nil {
		return err
	}
	columnID := c.Param("columnId")
	if err := s.Store.DeleteColumn(ctx, id, columnID); err != nil {
		return err
	}
	s.changed(c, id, activity.ColumnDeleted, columnID, "deleted a column")
	return c.NoContent(http.StatusNoContent)
}

func (s *server) addTask(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	sess := mustSession(c)
	if _, err := s.projectFor(ctx, id, sess, "add tasks"); err != nil {
		return err
	}
	var t domain.Task
	if err := c.Bind(&t); err != nil {
		return err
	}
	if t.ReporterID == "" {
		t.ReporterID = sess.UserID
	}
	t.Comments = nil
	created, err := s.Store.AddTask(ctx, id, t)
	if err != nil {
		return err
	}
	s.changed(c, id, activity.TaskCreated, created.ID, "created task "+created.Title)
	return c.JSON(http.StatusCreated, created)
}

func (s *server) updateTask(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	if _, err := s.projectFor(ctx, id, mustSession(c), "edit tasks"); err != nil {
		return err
	}
	var patch domain.TaskPatch
	if err := c.Bind(&patch); err != nil {
		return err
	}
	t, err := s.Store.UpdateTask(ctx, id, c.Param("taskId"), patch)
	if err != nil {
		return err
	}
	s.changed(c, id, activity.TaskUpdated, t.ID, "updated task "+t.Title)
	return c.JSON(http.StatusOK, t)
}

func (s *server) deleteTask(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	if _, err := s.projectFor(ctx, id, mustSession(c), "delete tasks"); err != nil {
		return err
	}
	taskID := c.Param("taskId")
	if err := s.Store.DeleteTask(ctx, id, taskID); err != nil {
		return err
	}
	s.changed(c, id, activity.TaskDeleted, taskID, "deleted a task")
	return c.NoContent(http.StatusNoContent)
}

type moveRequest struct {
	ActiveID string `json:"activeId"`
	OverID   string `json:"overId"`
}

// moveTask applies a drag gesture. The reducer result is shown optimistically
// while it is saved and rolled back if the store rejects it.
func (s *server) moveTask(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	p, err := s.projectFor(ctx, id, mustSession(c), "move tasks")
	if err != nil {
		return err
	}
	var req moveRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if req.ActiveID == "" {
		return domain.Invalid("activeId", "is required")
	}

	tracker := board.NewTracker(board.FromProject(p))
	pending, err := tracker.Move(req.ActiveID, req.OverID)
	if err != nil {
		return err
	}
	if !pending.Changed() {
		_ = pending.Rollback()
		return c.JSON(http.StatusOK, newBoardView(p))
	}
	saved, err := s.Store.SavePlacements(ctx, id, pending.State().Tasks())
	if err != nil {
		_ = pending.Rollback()
		return err
	}
	if err := pending.Commit(); err != nil {
		return err
	}
	task, _ := tracker.Committed().Task(req.ActiveID)
	s.changed(c, id, activity.TaskMoved, req.ActiveID, "moved task "+task.Title)
	return c.JSON(http.StatusOK, newBoardView(saved))
}

func (s *server) listComments(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	if _, err := s.projectFor(ctx, id, mustSession(c), "view comments"); err != nil {
		return err
	}
	comments, err := s.Store.Comments(ctx, id, c.Param("taskId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, comments)
}

type commentRequest struct {
	Content string `json:"content"`
}

func (s *server) addComment(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	sess := mustSession(c)
	if _, err := s.projectFor(ctx, id, sess, "comment"); err != nil {
		return err
	}
	var req commentRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	author := domain.Comment{AuthorID: sess.UserID, AuthorName: sess.Name, AvatarURL: sess.Picture, Content: req.Content}
	if u, err := s.Store.User(ctx, sess.UserID); err == nil {
		author.AuthorName = u.DisplayName
		author.AvatarURL = u.AvatarURL
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if author.AuthorName == "" {
		author.AuthorName = sess.UserID
	}
	created, err := s.Store.AddComment(ctx, id, c.Param("taskId"), author)
	if err != nil {
		return err
	}
	s.changed(c, id, activity.CommentAdded, c.Param("taskId"), "commented on a task")
	return c.JSON(http.StatusCreated, created)
}

// profiles looks up users concurrently. Users without a stored profile are
// returned with their id only.
func (s *server) profiles(c echo.Context, ids []string) ([]domain.User, error) {
	out := make([]domain.User, len(ids))
	g, ctx := errgroup.WithContext(c.Request().Context())
	g.SetLimit(8)
	for i, id := range ids {
		g.Go(func() error {
			u, err := s.Store.User(ctx, id)
			if errors.Is(err, domain.ErrNotFound) {
				out[i] = domain.User{ID: id}
				return nil
			}
			if err != nil {
				return err
			}
			out[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
