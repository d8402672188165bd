package database

import (
	"testing"

	"github.com/prosync/audit-task-api/internal/config"
	"github.com/prosync/audit-task-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func connectMemory(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := Connect(&config.Config{DBDriver: "sqlite", SQLitePath: ":memory:"})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB.Close()
	})

	return db
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(&config.Config{DBDriver: "oracle"})
	assert.Error(t, err)
}

func TestOpen_Dialects(t *testing.T) {
	for _, driver := range []string{"mysql", "postgres", "sqlite"} {
		dialector, err := Open(&config.Config{DBDriver: driver, SQLitePath: ":memory:"})
		require.NoError(t, err, driver)
		assert.Equal(t, driver, dialector.Name())
	}
}

func TestMigrate_IsRepeatable(t *testing.T) {
	db := connectMemory(t)

	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db))

	for _, idx := range compositeIndexes {
		assert.True(t, db.Migrator().HasIndex(idx.model, idx.name), idx.name)
	}
	assert.True(t, db.Migrator().HasTable(&models.TaskAudit{}))
}

func TestScopes(t *testing.T) {
	db := connectMemory(t)
	require.NoError(t, Migrate(db))

	older := models.Task{TaskName: "older", AssigneeID: 1, Status: models.TaskStatusWIP, Criticality: models.CriticalityLow, Version: 1}
	newer := models.Task{TaskName: "newer", AssigneeID: 1, Status: models.TaskStatusWIP, Criticality: models.CriticalityLow, Version: 1}
	done := models.Task{TaskName: "done", AssigneeID: 1, Status: models.TaskStatusCompleted, Criticality: models.CriticalityLow, Version: 1}
	older.AssignedTimestamp = older.AssignedTimestamp.AddDate(2024, 0, 0)
	newer.AssignedTimestamp = newer.AssignedTimestamp.AddDate(2025, 0, 0)
	done.AssignedTimestamp = done.AssignedTimestamp.AddDate(2026, 0, 0)
	for _, task := range []*models.Task{&older, &newer, &done} {
		require.NoError(t, db.Omit("Activity", "Customer", "Assignee", "Reviewer").Create(task).Error)
	}

	var open []models.Task
	require.NoError(t, db.Scopes(OpenTasks, NewestAssignedFirst).Find(&open).Error)
	require.Len(t, open, 2)
	assert.Equal(t, "newer", open[0].TaskName)
	assert.Equal(t, "older", open[1].TaskName)
}
