package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prosync/audit-task-api/internal/dto"
	apierrors "github.com/prosync/audit-task-api/internal/errors"
	"github.com/prosync/audit-task-api/internal/middleware"
	"github.com/prosync/audit-task-api/internal/models"
	"github.com/prosync/audit-task-api/internal/services"
	"github.com/prosync/audit-task-api/internal/utils"
)

const dateLayout = "2006-01-02"

type TaskHandler struct {
	tasks *services.TaskService
}

func NewTaskHandler(tasks *services.TaskService) *TaskHandler {
	return &TaskHandler{
		tasks: tasks,
	}
}

// ListTasks returns the tasks visible to the current actor
// Supports status, criticality, auditor_id, customer_id, search and review_mode filters
func (h *TaskHandler) ListTasks(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		apierrors.Unauthorized(c, "")
		return
	}

	input := services.ListTasksInput{
		ReviewMode:  strings.EqualFold(c.Query("review_mode"), "true"),
		Status:      c.Query("status"),
		Criticality: c.Query("criticality"),
		Search:      strings.TrimSpace(c.Query("search")),
		Pagination:  utils.GetPaginationParams(c),
	}

	var valid bool
	if input.AuditorID, valid = optionalID(c, "auditor_id"); !valid {
		return
	}
	if input.CustomerID, valid = optionalID(c, "customer_id"); !valid {
		return
	}

	tasks, total, err := h.tasks.ListTasks(c.Request.Context(), actor, input)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskListResponse(tasks, input.Pagination, total))
}

// GetTask returns a specific task by ID
func (h *TaskHandler) GetTask(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		apierrors.Unauthorized(c, "")
		return
	}
	taskID, ok := parseID(c, "id")
	if !ok {
		return
	}

	task, err := h.tasks.GetTask(c.Request.Context(), actor, taskID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*task))
}

type createTaskRequest struct {
	ActivityID  uint64  `json:"activity_id" binding:"required"`
	CustomerID  uint64  `json:"customer_id" binding:"required"`
	Assignee    uint64  `json:"assignee" binding:"required"`
	ReviewerID  *uint64 `json:"reviewer_id"`
	TaskName    string  `json:"task_name"`
	DueDate     string  `json:"due_date"`
	Criticality string  `json:"criticality"`
	Remarks     string  `json:"remarks"`
}

// CreateTask assigns an activity to an auditor
func (h *TaskHandler) CreateTask(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		apierrors.Unauthorized(c, "")
		return
	}

	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	dueDate, ok := parseDate(c, req.DueDate)
	if !ok {
		return
	}

	task, err := h.tasks.CreateTask(c.Request.Context(), actor, services.CreateTaskInput{
		ActivityID:  req.ActivityID,
		CustomerID:  req.CustomerID,
		AssigneeID:  req.Assignee,
		ReviewerID:  req.ReviewerID,
		TaskName:    req.TaskName,
		DueDate:     dueDate,
		Criticality: req.Criticality,
		Remarks:     req.Remarks,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToTaskDTO(*task))
}

type updateTaskRequest struct {
	Status   *string `json:"status"`
	Remarks  string  `json:"remarks"`
	Assignee *uint64 `json:"assignee"`
	DueDate  string  `json:"due_date"`
	Version  *int    `json:"version"`
}

// UpdateTask changes a task's status. A body carrying an assignee is an
// administrative reassignment and may also set the due date and status.
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		apierrors.Unauthorized(c, "")
		return
	}
	taskID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	var (
		task *models.Task
		err  error
	)
	if req.Assignee != nil {
		dueDate, ok := parseDate(c, req.DueDate)
		if !ok {
			return
		}
		task, err = h.tasks.Reassign(c.Request.Context(), actor, services.ReassignInput{
			TaskID:     taskID,
			AssigneeID: *req.Assignee,
			DueDate:    dueDate,
			Status:     req.Status,
			Version:    req.Version,
		})
	} else {
		if strings.TrimSpace(req.DueDate) != "" {
			apierrors.BadRequest(c, "due_date is only accepted together with assignee")
			return
		}
		if req.Status == nil {
			apierrors.BadRequest(c, "status is required")
			return
		}
		task, err = h.tasks.UpdateStatus(c.Request.Context(), actor, services.UpdateStatusInput{
			TaskID:  taskID,
			Status:  *req.Status,
			Remarks: req.Remarks,
			Version: req.Version,
		})
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*task))
}

type reviewStatusRequest struct {
	ReviewerStatus string `json:"reviewer_status" binding:"required"`
	Remarks        string `json:"remarks"`
	Comments       string `json:"comments"`
	Version        *int   `json:"version"`
}

// UpdateReviewStatus records the reviewer's decision
func (h *TaskHandler) UpdateReviewStatus(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		apierrors.Unauthorized(c, "")
		return
	}
	taskID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req reviewStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "reviewer_status is required")
		return
	}

	remarks := req.Remarks
	if remarks == "" {
		remarks = req.Comments
	}

	task, err := h.tasks.SetReviewerStatus(c.Request.Context(), actor, services.ReviewInput{
		TaskID:  taskID,
		Status:  req.ReviewerStatus,
		Remarks: remarks,
		Version: req.Version,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*task))
}

type assignReviewerRequest struct {
	ReviewerID uint64 `json:"reviewer_id" binding:"required"`
	Version    *int   `json:"version"`
}

// AssignReviewer sets the reviewer of a task
func (h *TaskHandler) AssignReviewer(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		apierrors.Unauthorized(c, "")
		return
	}
	taskID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req assignReviewerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "reviewer_id is required")
		return
	}

	task, err := h.tasks.AssignReviewer(c.Request.Context(), actor, services.AssignReviewerInput{
		TaskID:     taskID,
		ReviewerID: req.ReviewerID,
		Version:    req.Version,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*task))
}

// ListSubtasks returns a task's subtasks in workflow order with its progress
func (h *TaskHandler) ListSubtasks(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		apierrors.Unauthorized(c, "")
		return
	}
	taskID, ok := parseID(c, "id")
	if !ok {
		return
	}

	subtasks, progress, err := h.tasks.ListSubtasks(c.Request.Context(), actor, taskID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SubtaskListResponse{
		TaskID:   taskID,
		Progress: progress,
		Subtasks: dto.ToSubtaskDTOs(subtasks),
	})
}

// ListAudit returns a task's change history
func (h *TaskHandler) ListAudit(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		apierrors.Unauthorized(c, "")
		return
	}
	taskID, ok := parseID(c, "id")
	if !ok {
		return
	}

	audits, err := h.tasks.ListAudit(c.Request.Context(), actor, taskID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"task_id": taskID,
		"audit":   dto.ToAuditDTOs(audits),
	})
}

// ListReviewers returns the actors that may review tasks
func (h *TaskHandler) ListReviewers(c *gin.Context) {
	actors, err := h.tasks.ListReviewers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	reviewers := make([]dto.ActorDTO, len(actors))
	for i, actor := range actors {
		reviewers[i] = dto.ToActorDTO(actor)
	}
	c.JSON(http.StatusOK, gin.H{"reviewers": reviewers})
}

// optionalID reads an optional numeric query parameter.
func optionalID(c *gin.Context, name string) (*uint64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid "+name)
		return nil, false
	}
	return &id, true
}

// parseDate accepts YYYY-MM-DD or RFC 3339. An empty value means no date.
func parseDate(c *gin.Context, raw string) (*time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	for _, layout := range []string{dateLayout, time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, true
		}
	}
	apierrors.BadRequest(c, "Invalid due_date, expected YYYY-MM-DD")
	return nil, false
}
