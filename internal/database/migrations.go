package database

import (
	"fmt"
	"strings"

	"github.com/prosync/audit-task-api/internal/models"
	"gorm.io/gorm"
)

// compositeIndexes backs the list and cascade queries. Single-column indexes
// are declared on the models.
var compositeIndexes = []struct {
	model   any
	name    string
	columns []string
}{
	{&models.Task{}, "idx_tasks_assignee_status", []string{"assignee_id", "status"}},
	{&models.Task{}, "idx_tasks_customer_status", []string{"customer_id", "status"}},
	{&models.Task{}, "idx_tasks_reviewer_status", []string{"reviewer_id", "reviewer_status"}},
	{&models.Subtask{}, "idx_subtasks_task_position", []string{"task_id", "position"}},
	{&models.TaskAudit{}, "idx_task_audits_task_created", []string{"task_id", "created_at"}},
}

// AddIndexes creates the composite indexes that are not there yet.
func AddIndexes(db *gorm.DB) error {
	migrator := db.Migrator()

	for _, idx := range compositeIndexes {
		if migrator.HasIndex(idx.model, idx.name) {
			continue
		}

		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(idx.model); err != nil {
			return fmt.Errorf("failed to parse model for index %s: %w", idx.name, err)
		}

		sql := fmt.Sprintf("CREATE INDEX %s ON %s (%s)", idx.name, stmt.Schema.Table, strings.Join(idx.columns, ", "))
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}
	}

	return nil
}
