// README: Base handler utilities (JSON helpers, error mapping, request parsing).
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"motoshop/internal/apperror"
	"motoshop/internal/types"
)

type errorResponse struct {
	Error   apperror.Kind  `json:"error"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind apperror.Kind) int {
	switch kind {
	case apperror.Validation:
		return http.StatusBadRequest
	case apperror.Forbidden:
		return http.StatusForbidden
	case apperror.NotFound:
		return http.StatusNotFound
	case apperror.InvalidState, apperror.InvalidTransition, apperror.BayConflict, apperror.Conflict:
		return http.StatusConflict
	case apperror.BayInactive:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// writeError renders err as {error, message, details}. Unclassified errors are logged by the
// logging middleware through c.Error and never leak their text.
func writeError(c *gin.Context, err error) {
	e, ok := apperror.As(err)
	if !ok || e.Kind == apperror.Internal {
		_ = c.Error(err)
		writeJSON(c, http.StatusInternalServerError, errorResponse{Error: apperror.Internal, Message: "internal error"})
		return
	}
	writeJSON(c, statusFor(e.Kind), errorResponse{Error: e.Kind, Message: e.Message, Details: e.Details})
}

func badRequest(c *gin.Context, msg string) {
	writeError(c, apperror.New(apperror.Validation, msg))
}

// pathID reads a path parameter and rejects values that are not identifiers.
func pathID(c *gin.Context, name string) (types.ID, bool) {
	v := c.Param(name)
	if !types.ValidID(v) {
		writeError(c, apperror.Newf(apperror.Validation, "invalid %s", name).With("field", name))
		return "", false
	}
	return types.ID(v), true
}

// bindBody decodes the JSON body into v. An empty body leaves v untouched.
func bindBody(c *gin.Context, v any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(v); err != nil {
		badRequest(c, "invalid json")
		return false
	}
	return true
}
