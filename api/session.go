package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// HeaderTeamID selects the team whose projects the caller is working on.
const HeaderTeamID = "X-Team-Id"

const sessionKey = "session"

// Session is the per-request view of who is calling and which team they
// selected.
type Session struct {
	Identity
	TeamID string
}

// Authenticate resolves the caller for every request it wraps. Streaming
// clients that cannot set headers may pass the token as ?token=.
func Authenticate(auth Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				if token := c.QueryParam("token"); token != "" {
					header = bearerPrefix + token
				}
			}
			id, err := auth.Authenticate(header)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
			}
			c.Set(sessionKey, Session{
				Identity: id,
				TeamID:   strings.TrimSpace(c.Request().Header.Get(HeaderTeamID)),
			})
			return next(c)
		}
	}
}

func sessionFrom(c echo.Context) (Session, bool) {
	s, ok := c.Get(sessionKey).(Session)
	return s, ok
}

func mustSession(c echo.Context) Session {
	s, _ := sessionFrom(c)
	return s
}
