package repository

import (
	"context"
	"errors"

	"github.com/prosync/audit-task-api/internal/models"
	"github.com/prosync/audit-task-api/internal/utils"
)

// ErrVersionConflict is returned when a task changed since it was read.
var ErrVersionConflict = errors.New("task was modified concurrently")

// TaskRepository defines the interface for task data access
type TaskRepository interface {
	// Create stores a new task, its subtasks and the creation audit record
	Create(ctx context.Context, task *models.Task, audit models.TaskAudit) error

	// FindByID finds a task by ID with optional preloading
	FindByID(ctx context.Context, id uint64, preload ...string) (*models.Task, error)

	// List retrieves tasks with filtering and pagination
	List(ctx context.Context, filter TaskFilter) ([]models.Task, int64, error)

	// Save writes the task's lifecycle fields if its stored version still
	// equals expectedVersion, and appends the audit records
	Save(ctx context.Context, task *models.Task, expectedVersion int, audits ...models.TaskAudit) error

	// CountOpen counts tasks in scope that are not Completed
	CountOpen(ctx context.Context, scope CascadeScope, id uint64) (int64, error)

	// Deactivate marks the entity obsolete and moves each of its open tasks
	// through apply, all in one transaction
	Deactivate(ctx context.Context, scope CascadeScope, id uint64, apply CascadeFunc) ([]models.Task, error)

	// ListSubtasks returns a task's subtasks in workflow order
	ListSubtasks(ctx context.Context, taskID uint64) ([]models.Subtask, error)

	// MaterializeSubtasks stores subtasks for a task that has none yet and
	// returns the task's subtasks either way
	MaterializeSubtasks(ctx context.Context, taskID uint64, subtasks []models.Subtask) ([]models.Subtask, error)

	// FindSubtask finds a subtask by ID
	FindSubtask(ctx context.Context, id uint64) (*models.Subtask, error)

	// UpdateSubtaskStatus sets a subtask's status
	UpdateSubtaskStatus(ctx context.Context, subtask *models.Subtask, status models.SubtaskStatus) error

	// ListAudits returns a task's audit trail, oldest first
	ListAudits(ctx context.Context, taskID uint64) ([]models.TaskAudit, error)
}

// TaskFilter holds filtering options for listing tasks
type TaskFilter struct {
	AssigneeID  *uint64
	ReviewerID  *uint64
	CustomerID  *uint64
	Status      *models.TaskStatus
	Criticality *models.Criticality
	Search      string
	Pagination  utils.PaginationParams
}

// CascadeScope selects which tasks a deactivation reaches.
type CascadeScope int

const (
	// CascadeByAssignee reaches the tasks assigned to an actor.
	CascadeByAssignee CascadeScope = iota
	// CascadeByCustomer reaches the tasks performed for a customer.
	CascadeByCustomer
)

func (s CascadeScope) String() string {
	if s == CascadeByCustomer {
		return "customer"
	}
	return "actor"
}

// CascadeFunc transitions one open task in place and returns the audit
// record describing the change.
type CascadeFunc func(task *models.Task) (models.TaskAudit, error)

// ActorRepository reads the actor directory
type ActorRepository interface {
	FindByID(ctx context.Context, id uint64) (*models.Actor, error)

	// ListReviewers lists active actors holding a role that may review
	ListReviewers(ctx context.Context, roleIDs []int) ([]models.Actor, error)
}

// CustomerRepository reads the customer directory
type CustomerRepository interface {
	FindByID(ctx context.Context, id uint64) (*models.Customer, error)
}

// ActivityRepository reads the activity catalog
type ActivityRepository interface {
	FindByID(ctx context.Context, id uint64) (*models.Activity, error)
}
