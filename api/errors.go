package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"kanban-api/ai"
	"kanban-api/board"
	"kanban-api/domain"
)

type errorBody struct {
	Error     string `json:"error"`
	Field     string `json:"field,omitempty"`
	Retryable bool   `json:"retryable"`
}

// statusFor maps an error to its HTTP status and client-facing body.
func statusFor(err error) (int, errorBody) {
	var (
		he *echo.HTTPError
		ve *domain.ValidationError
		ne *domain.NotFoundError
		pe *domain.PermissionError
		ge *ai.GenerationParseError
		te *domain.TransportError
	)
	switch {
	case errors.As(err, &he):
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok {
			msg = s
		}
		return he.Code, errorBody{Error: msg}
	case errors.As(err, &ve):
		return http.StatusBadRequest, errorBody{Error: ve.Message, Field: ve.Field}
	case errors.As(err, &ne):
		return http.StatusNotFound, errorBody{Error: ne.Error()}
	case errors.As(err, &pe):
		return http.StatusForbidden, errorBody{Error: pe.Error()}
	case errors.As(err, &ge):
		return http.StatusBadGateway, errorBody{Error: ge.UserMessage(), Retryable: true}
	case errors.Is(err, ai.ErrDisabled):
		return http.StatusServiceUnavailable, errorBody{Error: "the assistant is not configured"}
	case errors.Is(err, board.ErrTransitionPending):
		return http.StatusConflict, errorBody{Error: "another move is still being saved", Retryable: true}
	case errors.Is(err, domain.ErrDocumentTooLarge):
		return http.StatusRequestEntityTooLarge, errorBody{Error: "the project is too large to save"}
	case errors.Is(err, domain.ErrWriteRejected):
		return http.StatusInternalServerError, errorBody{Error: "storage rejected the change"}
	case errors.Is(err, domain.ErrInvalidDocument):
		return http.StatusInternalServerError, errorBody{Error: "stored project is corrupt"}
	case errors.As(err, &te):
		return http.StatusServiceUnavailable, errorBody{Error: "storage is unavailable, please retry", Retryable: true}
	}
	return http.StatusInternalServerError, errorBody{Error: "internal error"}
}

// ErrorHandler writes every handler error as a JSON body.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status, body := statusFor(err)
	entry := log.WithFields(log.Fields{
		"method": c.Request().Method,
		"route":  c.Path(),
		"status": status,
	}).WithError(err)
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		log.WithError(err).Error("unable to write error response")
	}
}
