package handlers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	apierrors "github.com/prosync/audit-task-api/internal/errors"
	"github.com/prosync/audit-task-api/internal/services"
	"github.com/prosync/audit-task-api/internal/workflow"
)

// respondError maps a service error onto the API error envelope. Unexpected
// errors are attached to the context for the access log and hidden from the
// caller.
func respondError(c *gin.Context, err error) {
	var openTasks *services.OpenTasksError

	switch {
	case errors.As(err, &openTasks):
		apierrors.ConflictWithDetails(c, openTasks.Error(), gin.H{
			"customer_name": openTasks.CustomerName,
			"open_tasks":    openTasks.Count,
		})
	case errors.Is(err, workflow.ErrValidation):
		apierrors.Validation(c, validationMessage(err))
	case errors.Is(err, services.ErrTaskNotFound),
		errors.Is(err, services.ErrSubtaskNotFound),
		errors.Is(err, services.ErrActorNotFound),
		errors.Is(err, services.ErrCustomerNotFound),
		errors.Is(err, services.ErrActivityNotFound):
		apierrors.NotFound(c, capitalize(err.Error()))
	case errors.Is(err, services.ErrForbidden):
		apierrors.Forbidden(c, "")
	case errors.Is(err, services.ErrConflict):
		apierrors.VersionConflict(c, "")
	case errors.Is(err, services.ErrTransient):
		_ = c.Error(err)
		apierrors.ServiceUnavailable(c, "")
	default:
		_ = c.Error(err)
		apierrors.InternalError(c, "")
	}
}

// validationMessage drops the shared "validation failed: " prefix.
func validationMessage(err error) string {
	msg := strings.TrimPrefix(err.Error(), workflow.ErrValidation.Error()+": ")
	return capitalize(msg)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// parseID reads a positive numeric path parameter.
func parseID(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		apierrors.BadRequest(c, "Invalid "+name)
		return 0, false
	}
	return id, true
}
