package services

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prosync/audit-task-api/internal/repository"
	"github.com/prosync/audit-task-api/internal/workflow"
	"gorm.io/gorm"
)

var (
	ErrTaskNotFound     = errors.New("task not found")
	ErrSubtaskNotFound  = errors.New("subtask not found")
	ErrActorNotFound    = errors.New("actor not found")
	ErrCustomerNotFound = errors.New("customer not found")
	ErrActivityNotFound = errors.New("activity not found")
	ErrForbidden        = errors.New("actor is not permitted to perform this action")
	ErrConflict         = errors.New("task was modified by someone else")
	ErrTransient        = errors.New("task store temporarily unavailable")

	ErrCustomerHasOpenTasks = errors.New("customer has open tasks")
)

// Rule violations detected by the services rather than the state machine.
var (
	ErrInactive             = fmt.Errorf("%w: referenced record is not active", workflow.ErrValidation)
	ErrInvalidSubtaskStatus = fmt.Errorf("%w: invalid subtask status", workflow.ErrValidation)
	ErrInvalidCriticality   = fmt.Errorf("%w: invalid criticality", workflow.ErrValidation)
	ErrReviewerIsAssignee   = fmt.Errorf("%w: reviewer must differ from the assignee", workflow.ErrValidation)
	ErrNotEligibleReviewer  = fmt.Errorf("%w: actor may not review tasks", workflow.ErrValidation)
)

// OpenTasksError is returned when a customer cannot be deactivated without
// force because tasks are still open.
type OpenTasksError struct {
	CustomerName string
	Count        int64
}

func (e *OpenTasksError) Error() string {
	return fmt.Sprintf("customer %q has %d open tasks", e.CustomerName, e.Count)
}

func (e *OpenTasksError) Unwrap() error {
	return ErrCustomerHasOpenTasks
}

// MySQL lock errors and PostgreSQL serialization failures clear on retry.
const (
	mysqlLockWaitTimeout  = 1205
	mysqlDeadlock         = 1213
	pgSerializationFailed = "40001"
	pgDeadlockDetected    = "40P01"
)

// storeError translates a repository error into the service taxonomy.
// notFound is used for a missing row.
func storeError(err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return notFound
	case errors.Is(err, repository.ErrVersionConflict):
		return ErrConflict
	case isTransient(err):
		return fmt.Errorf("%w: %w", ErrTransient, err)
	default:
		return err
	}
}

func isTransient(err error) bool {
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlLockWaitTimeout || myErr.Number == mysqlDeadlock
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailed || pgErr.Code == pgDeadlockDetected
	}

	return false
}
