package api

import (
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"

	"kanban-api/activity"
)

// streamKeepAlive is how often an idle stream sends a comment line so
// proxies keep the connection open.
const streamKeepAlive = 25 * time.Second

// streamProject pushes the board as a server-sent event on connect and after
// every change until the client disconnects.
func (s *server) streamProject(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	sess := mustSession(c)
	p, err := s.projectFor(ctx, id, sess, "view this project")
	if err != nil {
		return err
	}
	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "stream unsupported")
	}

	updates, cancel := s.Broker.Subscribe(id)
	defer cancel()

	h := c.Response().Header()
	h.Set(echo.HeaderContentType, "text/event-stream")
	h.Set(echo.HeaderCacheControl, "no-cache")
	h.Set(echo.HeaderConnection, "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()
	for {
		data, err := sonic.Marshal(newBoardView(p))
		if err != nil {
			return err
		}
		if err := writeEvent(c, "board", data); err != nil {
			return nil
		}
		flusher.Flush()

		if !waitForChange(c, flusher, updates, keepAlive.C) {
			return nil
		}
		p, err = s.projectFor(ctx, id, sess, "view this project")
		if err != nil {
			// Deleted or no longer visible.
			c.Logger().Debug(err)
			if writeEvent(c, "closed", []byte("{}")) == nil {
				flusher.Flush()
			}
			return nil
		}
	}
}

// waitForChange blocks until the project changes, sending keep-alive
// comments meanwhile. It returns false once the client is gone.
func waitForChange(c echo.Context, flusher http.Flusher, updates <-chan struct{}, tick <-chan time.Time) bool {
	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-updates:
			return true
		case <-tick:
			if _, err := c.Response().Write([]byte(": keep-alive\n\n")); err != nil {
				return false
			}
			flusher.Flush()
		}
	}
}

func writeEvent(c echo.Context, name string, data []byte) error {
	w := c.Response()
	if _, err := w.Write([]byte("event: " + name + "\ndata: ")); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err := w.Write([]byte("\n\n"))
	return err
}

type activityPage struct {
	Events []activity.Event `json:"events"`
}

func (s *server) listActivity(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	if _, err := s.projectFor(ctx, id, mustSession(c), "view activity"); err != nil {
		return err
	}
	limit := 0
	if err := echo.QueryParamsBinder(c).Int("limit", &limit).BindError(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	if s.Activity == nil {
		return c.JSON(http.StatusOK, activityPage{Events: []activity.Event{}})
	}
	events, err := s.Activity.List(ctx, id, activity.ClampLimit(limit))
	if err != nil {
		return err
	}
	if events == nil {
		events = []activity.Event{}
	}
	return c.JSON(http.StatusOK, activityPage{Events: events})
}
