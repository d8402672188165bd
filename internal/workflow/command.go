package workflow

import (
	"time"

	"github.com/prosync/audit-task-api/internal/models"
)

// Command is one entry point into the task state machine. Each variant
// carries its own preconditions; Machine.Apply is the only code that writes
// task status and review state.
type Command interface {
	// Kind names the command in logs and audit records.
	Kind() string
	command()
}

// UserTransition is a status change requested by the assignee or an admin.
type UserTransition struct {
	Status  models.TaskStatus
	Remarks string
}

// ReviewDecision moves a completed task into review or accepts it.
type ReviewDecision struct {
	Status  models.ReviewerStatus
	Remarks string
}

// ReviewerRejection rejects a completed task and reopens it for rework.
type ReviewerRejection struct {
	Remarks string
}

// Reassignment hands a task to another assignee, optionally changing the due
// date and status in the same update. It does not enforce the Pending
// remarks rule.
type Reassignment struct {
	AssigneeID uint64
	DueDate    *time.Time
	Status     *models.TaskStatus
}

// SystemCascade forces an open task to Pending because its assignee or
// customer was deactivated. Reason is generated by the system.
type SystemCascade struct {
	Reason string
}

func (UserTransition) Kind() string    { return "user_transition" }
func (ReviewDecision) Kind() string    { return "review_decision" }
func (ReviewerRejection) Kind() string { return "reviewer_rejection" }
func (Reassignment) Kind() string      { return "reassignment" }
func (SystemCascade) Kind() string     { return "system_cascade" }

func (UserTransition) command()    {}
func (ReviewDecision) command()    {}
func (ReviewerRejection) command() {}
func (Reassignment) command()      {}
func (SystemCascade) command()     {}

// Result describes what Apply changed.
type Result struct {
	Changed            bool
	FromStatus         models.TaskStatus
	ToStatus           models.TaskStatus
	FromReviewerStatus models.ReviewerStatus
	ToReviewerStatus   models.ReviewerStatus
	FromAssigneeID     uint64
	ToAssigneeID       uint64
}

// StatusChanged reports whether the task status moved.
func (r Result) StatusChanged() bool {
	return r.FromStatus != r.ToStatus
}

// ReviewChanged reports whether the reviewer status moved.
func (r Result) ReviewChanged() bool {
	return r.FromReviewerStatus != r.ToReviewerStatus
}

// AssigneeChanged reports whether the task moved to another assignee.
func (r Result) AssigneeChanged() bool {
	return r.FromAssigneeID != r.ToAssigneeID
}
