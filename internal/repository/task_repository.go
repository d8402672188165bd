package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prosync/audit-task-api/internal/database"
	"github.com/prosync/audit-task-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormTaskRepository is a GORM implementation of TaskRepository
type GormTaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &GormTaskRepository{db: db}
}

// Create stores a task with its subtasks and the creation audit record
func (r *GormTaskRepository) Create(ctx context.Context, task *models.Task, audit models.TaskAudit) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		subtasks := task.Subtasks
		if err := tx.Omit(clause.Associations).Create(task).Error; err != nil {
			return err
		}

		for i := range subtasks {
			subtasks[i].TaskID = task.ID
			subtasks[i].Position = i
		}
		if len(subtasks) > 0 {
			if err := tx.Create(&subtasks).Error; err != nil {
				return err
			}
		}
		task.Subtasks = subtasks

		audit.TaskID = task.ID
		return tx.Create(&audit).Error
	})
}

// FindByID finds a task by ID with optional preloading
func (r *GormTaskRepository) FindByID(ctx context.Context, id uint64, preload ...string) (*models.Task, error) {
	var task models.Task
	query := r.db.WithContext(ctx)

	for _, p := range preload {
		if p == "Subtasks" {
			query = query.Preload(p, orderByPosition)
			continue
		}
		query = query.Preload(p)
	}

	if err := query.First(&task, id).Error; err != nil {
		return nil, err
	}

	return &task, nil
}

// List retrieves tasks with filtering and pagination
func (r *GormTaskRepository) List(ctx context.Context, filter TaskFilter) ([]models.Task, int64, error) {
	var tasks []models.Task

	query := r.db.WithContext(ctx).Model(&models.Task{})

	if filter.AssigneeID != nil {
		query = query.Where("tasks.assignee_id = ?", *filter.AssigneeID)
	}
	if filter.ReviewerID != nil {
		query = query.Where("tasks.reviewer_id = ?", *filter.ReviewerID)
	}
	if filter.CustomerID != nil {
		query = query.Where("tasks.customer_id = ?", *filter.CustomerID)
	}
	if filter.Status != nil {
		query = query.Where("tasks.status = ?", *filter.Status)
	}
	if filter.Criticality != nil {
		query = query.Where("tasks.criticality = ?", *filter.Criticality)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		query = query.Where("LOWER(tasks.task_name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	listQuery := query.Scopes(database.NewestAssignedFirst)
	if filter.Pagination.Limit > 0 {
		listQuery = listQuery.Scopes(database.Paginate(filter.Pagination))
	}

	if err := listQuery.
		Preload("Activity").
		Preload("Customer").
		Preload("Assignee").
		Preload("Reviewer").
		Preload("Subtasks", orderByPosition).
		Find(&tasks).Error; err != nil {
		return nil, 0, err
	}

	return tasks, total, nil
}

// Save writes the lifecycle fields of a task guarded by its version
func (r *GormTaskRepository) Save(ctx context.Context, task *models.Task, expectedVersion int, audits ...models.TaskAudit) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := saveVersioned(tx, task, expectedVersion); err != nil {
			return err
		}
		return createAudits(tx, task.ID, audits)
	})
}

// CountOpen counts the tasks in scope that are not Completed
func (r *GormTaskRepository) CountOpen(ctx context.Context, scope CascadeScope, id uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Task{}).
		Scopes(database.OpenTasks).
		Where(scope.column()+" = ?", id).
		Count(&count).Error
	return count, err
}

// Deactivate marks the actor or customer obsolete and moves its open tasks
// through apply. Any failure rolls back the status flag and every task.
func (r *GormTaskRepository) Deactivate(ctx context.Context, scope CascadeScope, id uint64, apply CascadeFunc) ([]models.Task, error) {
	var tasks []models.Task

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(scope.model()).
			Where("id = ?", id).
			Update("status", models.StatusObsolete).Error; err != nil {
			return fmt.Errorf("failed to mark %s obsolete: %w", scope, err)
		}

		if err := tx.Scopes(database.OpenTasks).
			Where(scope.column()+" = ?", id).
			Order("tasks.id").
			Find(&tasks).Error; err != nil {
			return fmt.Errorf("failed to load open tasks: %w", err)
		}

		for i := range tasks {
			expected := tasks[i].Version
			audit, err := apply(&tasks[i])
			if err != nil {
				return fmt.Errorf("task %d: %w", tasks[i].ID, err)
			}
			if err := saveVersioned(tx, &tasks[i], expected); err != nil {
				return fmt.Errorf("task %d: %w", tasks[i].ID, err)
			}
			if err := createAudits(tx, tasks[i].ID, []models.TaskAudit{audit}); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return tasks, nil
}

// ListSubtasks returns a task's subtasks in workflow order
func (r *GormTaskRepository) ListSubtasks(ctx context.Context, taskID uint64) ([]models.Subtask, error) {
	var subtasks []models.Subtask
	if err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Scopes(orderByPosition).
		Find(&subtasks).Error; err != nil {
		return nil, err
	}
	return subtasks, nil
}

// MaterializeSubtasks inserts subtasks unless the task already has some
func (r *GormTaskRepository) MaterializeSubtasks(ctx context.Context, taskID uint64, subtasks []models.Subtask) ([]models.Subtask, error) {
	var stored []models.Subtask

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", taskID).Scopes(orderByPosition).Find(&stored).Error; err != nil {
			return err
		}
		if len(stored) > 0 || len(subtasks) == 0 {
			return nil
		}

		for i := range subtasks {
			subtasks[i].TaskID = taskID
			subtasks[i].Position = i
		}
		if err := tx.Create(&subtasks).Error; err != nil {
			return err
		}
		stored = subtasks
		return nil
	})
	if err != nil {
		return nil, err
	}

	return stored, nil
}

// FindSubtask finds a subtask by ID
func (r *GormTaskRepository) FindSubtask(ctx context.Context, id uint64) (*models.Subtask, error) {
	var subtask models.Subtask
	if err := r.db.WithContext(ctx).First(&subtask, id).Error; err != nil {
		return nil, err
	}
	return &subtask, nil
}

// UpdateSubtaskStatus sets a subtask's status
func (r *GormTaskRepository) UpdateSubtaskStatus(ctx context.Context, subtask *models.Subtask, status models.SubtaskStatus) error {
	if err := r.db.WithContext(ctx).
		Model(subtask).
		Update("status", status).Error; err != nil {
		return err
	}
	subtask.Status = status
	return nil
}

// ListAudits returns a task's audit trail, oldest first
func (r *GormTaskRepository) ListAudits(ctx context.Context, taskID uint64) ([]models.TaskAudit, error) {
	var audits []models.TaskAudit
	if err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&audits).Error; err != nil {
		return nil, err
	}
	return audits, nil
}

// saveVersioned updates only the columns the state machine owns. Zero rows
// affected means another writer bumped the version first.
func saveVersioned(tx *gorm.DB, task *models.Task, expectedVersion int) error {
	now := time.Now()
	result := tx.Model(&models.Task{}).
		Where("id = ? AND version = ?", task.ID, expectedVersion).
		Updates(map[string]any{
			"status":             task.Status,
			"reviewer_status":    task.ReviewerStatus,
			"reviewer_id":        task.ReviewerID,
			"assignee_id":        task.AssigneeID,
			"due_date":           task.DueDate,
			"remarks":            task.Remarks,
			"assigned_timestamp": task.AssignedTimestamp,
			"actual_date":        task.ActualDate,
			"version":            expectedVersion + 1,
			"updated_at":         now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}

	task.Version = expectedVersion + 1
	task.UpdatedAt = now
	return nil
}

func createAudits(tx *gorm.DB, taskID uint64, audits []models.TaskAudit) error {
	for i := range audits {
		audits[i].TaskID = taskID
	}
	if len(audits) == 0 {
		return nil
	}
	return tx.Create(&audits).Error
}

func orderByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC").Order("id ASC")
}

func (s CascadeScope) model() any {
	if s == CascadeByCustomer {
		return &models.Customer{}
	}
	return &models.Actor{}
}

func (s CascadeScope) column() string {
	if s == CascadeByCustomer {
		return "tasks.customer_id"
	}
	return "tasks.assignee_id"
}
