package database

import (
	"fmt"

	"github.com/prosync/audit-task-api/internal/config"
	"github.com/prosync/audit-task-api/internal/models"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open returns the dialector for the configured driver.
func Open(cfg *config.Config) (gorm.Dialector, error) {
	switch cfg.DBDriver {
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBHost,
			cfg.DBPort,
			cfg.DBName,
		)
		return mysql.Open(dsn), nil
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			cfg.DBHost,
			cfg.DBPort,
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBName,
			cfg.DBSSLMode,
		)
		return postgres.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(cfg.SQLitePath), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
	}
}

// Connect opens the task store.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	dialector, err := Open(cfg)
	if err != nil {
		return nil, err
	}

	level := logger.Warn
	if cfg.LogDevelopment {
		level = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.DBDriver == "sqlite" {
		// SQLite serializes writers; one connection also keeps a :memory:
		// database visible to every query.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to configure database: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return db, nil
}

// Models lists every table owned by the service, in migration order.
func Models() []any {
	return []any{
		&models.Actor{},
		&models.Customer{},
		&models.Activity{},
		&models.Task{},
		&models.Subtask{},
		&models.TaskAudit{},
	}
}

// Migrate creates or updates the schema and its secondary indexes.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if err := AddIndexes(db); err != nil {
		return fmt.Errorf("failed to add indexes: %w", err)
	}
	return nil
}
