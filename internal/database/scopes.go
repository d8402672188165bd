package database

import (
	"gorm.io/gorm"

	"github.com/prosync/audit-task-api/internal/models"
	"github.com/prosync/audit-task-api/internal/utils"
)

// Paginate applies pagination to a GORM query
func Paginate(params utils.PaginationParams) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(params.Offset).Limit(params.Limit)
	}
}

// OpenTasks restricts a task query to tasks that are not Completed.
func OpenTasks(db *gorm.DB) *gorm.DB {
	return db.Where("tasks.status <> ?", models.TaskStatusCompleted)
}

// NewestAssignedFirst orders tasks by assignment time, most recent first.
func NewestAssignedFirst(db *gorm.DB) *gorm.DB {
	return db.Order("tasks.assigned_timestamp DESC").Order("tasks.id DESC")
}
