package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"kanban-api/activity"
	"kanban-api/stream"
)

// Deps are the collaborators the handlers need. Publisher, Dispatcher,
// Activity and Deduper may be nil.
type Deps struct {
	Store      Store
	Assistant  Assistant
	Auth       Authenticator
	Deduper    Deduper
	Broker     *stream.Broker
	Publisher  stream.Publisher
	Dispatcher Dispatcher
	Activity   activity.Reader
	Logger     *log.Logger
}

type server struct {
	Deps
}

// Register wires every route onto e.
func Register(e *echo.Echo, d Deps) {
	if d.Broker == nil {
		d.Broker = stream.NewBroker()
	}
	s := &server{Deps: d}

	e.JSONSerializer = JSONSerializer{}
	e.HTTPErrorHandler = ErrorHandler
	e.Use(RequestMetrics(d.Logger))
	e.Use(GzipRequestMiddleware())

	e.GET("/healthz", healthz)

	g := e.Group("/api", Authenticate(d.Auth), Idempotency(d.Deduper))

	g.GET("/me", s.getMe)
	g.PUT("/me", s.putMe)
	g.GET("/users/:id", s.getUser)

	g.GET("/teams", s.listTeams)
	g.POST("/teams", s.createTeam)
	g.GET("/teams/:id", s.getTeam)
	g.PATCH("/teams/:id", s.updateTeam)
	g.DELETE("/teams/:id", s.deleteTeam)
	g.POST("/teams/:id/members", s.addTeamMember)
	g.DELETE("/teams/:id/members/:userId", s.removeTeamMember)

	g.GET("/projects", s.listProjects)
	g.POST("/projects", s.createProject)
	g.GET("/projects/:id", s.getProject)
	g.PATCH("/projects/:id", s.updateProject)
	g.DELETE("/projects/:id", s.deleteProject)

	g.POST("/projects/:id/columns", s.addColumn)
	g.PATCH("/projects/:id/columns/:columnId", s.updateColumn)
	g.DELETE("/projects/:id/columns/:columnId", s.deleteColumn)

	g.POST("/projects/:id/tasks", s.addTask)
	g.PATCH("/projects/:id/tasks/:taskId", s.updateTask)
	g.DELETE("/projects/:id/tasks/:taskId", s.deleteTask)
	g.POST("/projects/:id/moves", s.moveTask)
	g.GET("/projects/:id/tasks/:taskId/comments", s.listComments)
	g.POST("/projects/:id/tasks/:taskId/comments", s.addComment)

	g.GET("/projects/:id/stream", s.streamProject)
	g.GET("/projects/:id/activity", s.listActivity)

	g.POST("/ai/tasks", s.generateTasks)
	g.POST("/ai/draft", s.draftTask)
	g.POST("/ai/rewrite-description", s.rewriteDescription)
	g.POST("/ai/rewrite-comment", s.rewriteComment)
	g.POST("/ai/priority", s.suggestPriority)
}

func healthz(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

// changed announces a committed mutation to live clients and the activity feed.
func (s *server) changed(c echo.Context, projectID, typ, entityID, summary string) {
	if s.Publisher != nil {
		ctx := context.WithoutCancel(c.Request().Context())
		if err := s.Publisher.Publish(ctx, projectID); err != nil {
			log.WithField("projectId", projectID).WithError(err).Warn("unable to publish board update")
		}
	}
	if s.Dispatcher != nil {
		s.Dispatcher.Dispatch(activity.NewEvent(projectID, mustSession(c).UserID, typ, entityID, summary))
	}
}
