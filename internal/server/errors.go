package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/LiboWorks/bitrag/internal/inference"
	"github.com/LiboWorks/bitrag/internal/rag"
)

// ErrorBody is the payload of every error response.
type ErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Stage   string `json:"stage,omitempty"`
	Param   string `json:"param,omitempty"`
}

func writeError(c *echo.Context, status int, errType, msg, stage string) error {
	return c.JSON(status, map[string]any{
		"error": ErrorBody{Message: msg, Type: errType, Stage: stage},
	})
}

func writeBadRequest(c *echo.Context, msg string) error {
	return writeError(c, http.StatusBadRequest, "invalid_request_error", msg, "")
}

func writeNotFound(c *echo.Context, msg string) error {
	return writeError(c, http.StatusNotFound, "not_found_error", msg, "")
}

// writeFailure maps err onto a status code by failure kind.
func (s *Server) writeFailure(c *echo.Context, err error) error {
	status, errType := classifyError(err)
	stage := inference.Stage(err)
	if stage == "unknown" {
		stage = ""
	}
	if status == http.StatusServiceUnavailable && stage == "timeout" {
		c.Response().Header().Set("Retry-After", "1")
	}
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "path", c.Request().URL.Path, "stage", stage, "error", err)
	}
	return writeError(c, status, errType, err.Error(), stage)
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, rag.ErrNotFound):
		return http.StatusNotFound, "not_found_error"
	case errors.Is(err, rag.ErrDimensionMismatch), errors.Is(err, rag.ErrMissingEmbedding), errors.Is(err, rag.ErrInvalidQuery):
		return http.StatusBadRequest, "invalid_request_error"
	case errors.Is(err, rag.ErrStoreClosed):
		return http.StatusServiceUnavailable, "unavailable_error"
	}

	switch inference.Stage(err) {
	case "timeout":
		return http.StatusServiceUnavailable, "overloaded_error"
	case "interrupted":
		return http.StatusRequestTimeout, "cancelled_error"
	case "tokenize", "sample":
		return http.StatusBadRequest, "invalid_request_error"
	default:
		return http.StatusInternalServerError, "server_error"
	}
}
