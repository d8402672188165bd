package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prosync/audit-task-api/internal/dto"
	apierrors "github.com/prosync/audit-task-api/internal/errors"
	"github.com/prosync/audit-task-api/internal/middleware"
	"github.com/prosync/audit-task-api/internal/services"
)

type ActorHandler struct {
	deactivation *services.DeactivationService
}

func NewActorHandler(deactivation *services.DeactivationService) *ActorHandler {
	return &ActorHandler{deactivation: deactivation}
}

type deactivateActorRequest struct {
	ActorID uint64 `json:"actor_id" binding:"required"`
}

// Deactivate marks an actor obsolete and moves their open tasks to Pending
func (h *ActorHandler) Deactivate(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		apierrors.Unauthorized(c, "")
		return
	}

	var req deactivateActorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "actor_id is required")
		return
	}

	result, err := h.deactivation.DeactivateActor(c.Request.Context(), actor, req.ActorID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ActorDeactivationResponse{
		Message:       "Actor deactivated successfully",
		ActorName:     result.EntityName,
		AffectedTasks: result.AffectedCount,
		TaskDetails:   dto.ToCascadeTaskDTOs(result.AffectedTasks),
	})
}

type CustomerHandler struct {
	deactivation *services.DeactivationService
}

func NewCustomerHandler(deactivation *services.DeactivationService) *CustomerHandler {
	return &CustomerHandler{deactivation: deactivation}
}

// Delete deactivates a customer. Open tasks block the request unless
// force=true, in which case they move to Pending.
func (h *CustomerHandler) Delete(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		apierrors.Unauthorized(c, "")
		return
	}
	customerID, ok := parseID(c, "id")
	if !ok {
		return
	}

	force := false
	if raw := c.Query("force"); raw != "" {
		var err error
		if force, err = strconv.ParseBool(raw); err != nil {
			apierrors.BadRequest(c, "Invalid force")
			return
		}
	}

	result, err := h.deactivation.DeactivateCustomer(c.Request.Context(), actor, customerID, force)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.CustomerDeactivationResponse{
		Message:       "Customer deactivated successfully",
		CustomerName:  result.EntityName,
		AffectedTasks: result.AffectedCount,
		TaskDetails:   dto.ToCascadeTaskDTOs(result.AffectedTasks),
	})
}
