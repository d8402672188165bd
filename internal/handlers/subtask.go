package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prosync/audit-task-api/internal/dto"
	apierrors "github.com/prosync/audit-task-api/internal/errors"
	"github.com/prosync/audit-task-api/internal/middleware"
	"github.com/prosync/audit-task-api/internal/services"
)

type SubtaskHandler struct {
	tasks *services.TaskService
}

func NewSubtaskHandler(tasks *services.TaskService) *SubtaskHandler {
	return &SubtaskHandler{tasks: tasks}
}

type subtaskStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateStatus sets a subtask's status and returns the task's progress
func (h *SubtaskHandler) UpdateStatus(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		apierrors.Unauthorized(c, "")
		return
	}
	subtaskID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req subtaskStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "status is required")
		return
	}

	subtask, progress, err := h.tasks.UpdateSubtaskStatus(c.Request.Context(), actor, subtaskID, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SubtaskUpdateResponse{
		Subtask:  dto.ToSubtaskDTO(*subtask),
		Progress: progress,
	})
}
