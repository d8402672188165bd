package dto

import (
	"time"

	"github.com/prosync/audit-task-api/internal/models"
	"github.com/prosync/audit-task-api/internal/utils"
	"github.com/prosync/audit-task-api/internal/workflow"
)

// ActorDTO represents an actor in API responses
type ActorDTO struct {
	ID     uint64 `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	RoleID int    `json:"role_id"`
}

// CustomerDTO represents a customer in API responses
type CustomerDTO struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

// ActivityDTO represents an activity in API responses
type ActivityDTO struct {
	ID          uint64             `json:"id"`
	Name        string             `json:"name"`
	Criticality models.Criticality `json:"criticality"`
}

// SubtaskDTO represents a subtask in API responses
type SubtaskDTO struct {
	ID            uint64               `json:"id"`
	TaskID        uint64               `json:"task_id"`
	Position      int                  `json:"position"`
	Name          string               `json:"name"`
	Description   string               `json:"description,omitempty"`
	EstimatedTime float64              `json:"estimated_time"`
	Status        models.SubtaskStatus `json:"status"`
}

// TaskDTO represents a task in API responses
type TaskDTO struct {
	ID                uint64                `json:"id"`
	TaskName          string                `json:"task_name"`
	ActivityID        uint64                `json:"activity_id"`
	CustomerID        uint64                `json:"customer_id"`
	AssigneeID        uint64                `json:"assignee_id"`
	ReviewerID        *uint64               `json:"reviewer_id"`
	Status            models.TaskStatus     `json:"status"`
	ReviewerStatus    models.ReviewerStatus `json:"reviewer_status"`
	DueDate           *time.Time            `json:"due_date"`
	Criticality       models.Criticality    `json:"criticality"`
	Remarks           string                `json:"remarks"`
	AssignedTimestamp time.Time             `json:"assigned_timestamp"`
	ActualDate        *time.Time            `json:"actual_date"`
	Version           int                   `json:"version"`
	Progress          int                   `json:"progress"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
	Activity          *ActivityDTO          `json:"activity,omitempty"`
	Customer          *CustomerDTO          `json:"customer,omitempty"`
	Assignee          *ActorDTO             `json:"assignee,omitempty"`
	Reviewer          *ActorDTO             `json:"reviewer,omitempty"`
	Subtasks          []SubtaskDTO          `json:"subtasks,omitempty"`
}

// TaskListResponse represents a paginated list of tasks
type TaskListResponse struct {
	Tasks      []TaskDTO                `json:"tasks"`
	Pagination utils.PaginationResponse `json:"pagination"`
}

// SubtaskListResponse lists a task's subtasks with its progress
type SubtaskListResponse struct {
	TaskID   uint64       `json:"task_id"`
	Progress int          `json:"progress"`
	Subtasks []SubtaskDTO `json:"subtasks"`
}

// SubtaskUpdateResponse is returned after a subtask status change
type SubtaskUpdateResponse struct {
	Subtask  SubtaskDTO `json:"subtask"`
	Progress int        `json:"progress"`
}

// AuditDTO represents one entry of a task's history
type AuditDTO struct {
	ID                 uint64                `json:"id"`
	Action             models.AuditAction    `json:"action"`
	ActorID            uint64                `json:"actor_id"`
	FromStatus         models.TaskStatus     `json:"from_status,omitempty"`
	ToStatus           models.TaskStatus     `json:"to_status,omitempty"`
	FromReviewerStatus models.ReviewerStatus `json:"from_reviewer_status,omitempty"`
	ToReviewerStatus   models.ReviewerStatus `json:"to_reviewer_status,omitempty"`
	FromAssigneeID     uint64                `json:"from_assignee_id,omitempty"`
	ToAssigneeID       uint64                `json:"to_assignee_id,omitempty"`
	Comments           string                `json:"comments,omitempty"`
	CreatedAt          time.Time             `json:"created_at"`
}

// CascadeTaskDTO describes a task moved to Pending by a deactivation
type CascadeTaskDTO struct {
	TaskID     uint64     `json:"task_id"`
	TaskName   string     `json:"task_name"`
	ActivityID uint64     `json:"activity_id"`
	DueDate    *time.Time `json:"due_date"`
}

// ActorDeactivationResponse is returned by the actor deactivation endpoint
type ActorDeactivationResponse struct {
	Message       string           `json:"message"`
	ActorName     string           `json:"actor_name"`
	AffectedTasks int              `json:"affected_tasks"`
	TaskDetails   []CascadeTaskDTO `json:"task_details"`
}

// CustomerDeactivationResponse is returned by the customer deactivation endpoint
type CustomerDeactivationResponse struct {
	Message       string           `json:"message"`
	CustomerName  string           `json:"customer_name"`
	AffectedTasks int              `json:"affected_tasks"`
	TaskDetails   []CascadeTaskDTO `json:"task_details"`
}

// Conversion functions

// ToActorDTO converts an Actor model to ActorDTO
func ToActorDTO(actor models.Actor) ActorDTO {
	return ActorDTO{
		ID:     actor.ID,
		Name:   actor.Name,
		Email:  actor.Email,
		RoleID: actor.RoleID,
	}
}

// ToSubtaskDTO converts a Subtask model to SubtaskDTO
func ToSubtaskDTO(subtask models.Subtask) SubtaskDTO {
	return SubtaskDTO{
		ID:            subtask.ID,
		TaskID:        subtask.TaskID,
		Position:      subtask.Position,
		Name:          subtask.Name,
		Description:   subtask.Description,
		EstimatedTime: subtask.EstimatedTime,
		Status:        subtask.Status,
	}
}

// ToSubtaskDTOs converts subtasks preserving their order
func ToSubtaskDTOs(subtasks []models.Subtask) []SubtaskDTO {
	items := make([]SubtaskDTO, len(subtasks))
	for i, subtask := range subtasks {
		items[i] = ToSubtaskDTO(subtask)
	}
	return items
}

// ToTaskDTO converts a Task model to TaskDTO. Progress is computed from the
// preloaded subtasks.
func ToTaskDTO(task models.Task) TaskDTO {
	dto := TaskDTO{
		ID:                task.ID,
		TaskName:          task.TaskName,
		ActivityID:        task.ActivityID,
		CustomerID:        task.CustomerID,
		AssigneeID:        task.AssigneeID,
		ReviewerID:        task.ReviewerID,
		Status:            task.Status,
		ReviewerStatus:    task.ReviewerStatus,
		DueDate:           task.DueDate,
		Criticality:       task.Criticality,
		Remarks:           task.Remarks,
		AssignedTimestamp: task.AssignedTimestamp,
		ActualDate:        task.ActualDate,
		Version:           task.Version,
		Progress:          workflow.ComputeProgress(task.Subtasks),
		CreatedAt:         task.CreatedAt,
		UpdatedAt:         task.UpdatedAt,
	}

	// Include relations if preloaded
	if task.Activity.ID != 0 {
		dto.Activity = &ActivityDTO{ID: task.Activity.ID, Name: task.Activity.Name, Criticality: task.Activity.Criticality}
	}
	if task.Customer.ID != 0 {
		dto.Customer = &CustomerDTO{ID: task.Customer.ID, Name: task.Customer.Name}
	}
	if task.Assignee.ID != 0 {
		assignee := ToActorDTO(task.Assignee)
		dto.Assignee = &assignee
	}
	if task.Reviewer != nil && task.Reviewer.ID != 0 {
		reviewer := ToActorDTO(*task.Reviewer)
		dto.Reviewer = &reviewer
	}
	if len(task.Subtasks) > 0 {
		dto.Subtasks = ToSubtaskDTOs(task.Subtasks)
	}

	return dto
}

// ToTaskListResponse converts a page of tasks to TaskListResponse
func ToTaskListResponse(tasks []models.Task, params utils.PaginationParams, total int64) TaskListResponse {
	items := make([]TaskDTO, len(tasks))
	for i, task := range tasks {
		items[i] = ToTaskDTO(task)
	}

	return TaskListResponse{
		Tasks:      items,
		Pagination: params.Response(total),
	}
}

// ToAuditDTOs converts audit rows oldest first
func ToAuditDTOs(audits []models.TaskAudit) []AuditDTO {
	items := make([]AuditDTO, len(audits))
	for i, a := range audits {
		items[i] = AuditDTO{
			ID:                 a.ID,
			Action:             a.Action,
			ActorID:            a.ActorID,
			FromStatus:         a.FromStatus,
			ToStatus:           a.ToStatus,
			FromReviewerStatus: a.FromReviewerStatus,
			ToReviewerStatus:   a.ToReviewerStatus,
			FromAssigneeID:     a.FromAssigneeID,
			ToAssigneeID:       a.ToAssigneeID,
			Comments:           a.Comments,
			CreatedAt:          a.CreatedAt,
		}
	}
	return items
}

// ToCascadeTaskDTOs lists the tasks a deactivation moved to Pending
func ToCascadeTaskDTOs(tasks []models.Task) []CascadeTaskDTO {
	items := make([]CascadeTaskDTO, len(tasks))
	for i, task := range tasks {
		items[i] = CascadeTaskDTO{
			TaskID:     task.ID,
			TaskName:   task.TaskName,
			ActivityID: task.ActivityID,
			DueDate:    task.DueDate,
		}
	}
	return items
}
