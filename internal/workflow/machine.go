package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/prosync/audit-task-api/internal/models"
)

// Machine applies commands to tasks. It holds no state besides its clock and
// is safe for concurrent use.
type Machine struct {
	now func() time.Time
}

// NewMachine returns a Machine using the wall clock.
func NewMachine() *Machine {
	return &Machine{now: time.Now}
}

// NewMachineWithClock returns a Machine reading time from now.
func NewMachineWithClock(now func() time.Time) *Machine {
	return &Machine{now: now}
}

// Apply validates cmd against the task's current state and mutates the task
// in place. On error the task is left untouched.
func (m *Machine) Apply(task *models.Task, cmd Command) (Result, error) {
	before := *task

	var err error
	switch c := cmd.(type) {
	case UserTransition:
		err = m.applyUserTransition(task, c)
	case ReviewDecision:
		err = m.applyReviewDecision(task, c)
	case ReviewerRejection:
		err = m.applyRejection(task, c)
	case Reassignment:
		err = m.applyReassignment(task, c)
	case SystemCascade:
		err = m.applyCascade(task, c)
	default:
		err = fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
	}
	if err != nil {
		return Result{}, err
	}

	return Result{
		Changed:            changed(&before, task),
		FromStatus:         before.Status,
		ToStatus:           task.Status,
		FromReviewerStatus: before.ReviewerStatus,
		ToReviewerStatus:   task.ReviewerStatus,
		FromAssigneeID:     before.AssigneeID,
		ToAssigneeID:       task.AssigneeID,
	}, nil
}

func (m *Machine) applyUserTransition(t *models.Task, c UserTransition) error {
	if !c.Status.Valid() {
		return ErrInvalidStatus
	}
	if c.Status == t.Status {
		return nil
	}

	remarks := userRemarks(c.Remarks)
	if models.IsRejectedRemark(remarks) {
		return ErrReservedRemarksPrefix
	}
	if c.Status == models.TaskStatusPending && remarks == "" {
		return ErrRemarksRequired
	}

	m.setStatus(t, c.Status, remarks)
	return nil
}

func (m *Machine) applyReviewDecision(t *models.Task, c ReviewDecision) error {
	switch c.Status {
	case models.ReviewerStatusUnderReview, models.ReviewerStatusAccepted:
	default:
		return ErrInvalidReviewerStatus
	}
	if t.Status != models.TaskStatusCompleted {
		return ErrNotCompleted
	}

	remarks := userRemarks(c.Remarks)
	if models.IsRejectedRemark(remarks) {
		return ErrReservedRemarksPrefix
	}
	if t.ReviewerStatus == c.Status {
		return nil
	}

	t.ReviewerStatus = c.Status
	if remarks != "" {
		t.Remarks = remarks
	}
	return nil
}

func (m *Machine) applyRejection(t *models.Task, c ReviewerRejection) error {
	remarks := stripRejectedPrefix(c.Remarks)
	if remarks == "" {
		return ErrRejectionRemarksRequired
	}
	if t.Status != models.TaskStatusCompleted {
		return ErrNotCompleted
	}

	t.ReviewerStatus = models.ReviewerStatusRejected
	t.Status = models.TaskStatusWIP
	t.ActualDate = nil
	t.Remarks = models.RejectedRemarksPrefix + " " + remarks
	return nil
}

func (m *Machine) applyReassignment(t *models.Task, c Reassignment) error {
	if c.AssigneeID == 0 {
		return ErrAssigneeRequired
	}
	if c.Status != nil && !c.Status.Valid() {
		return ErrInvalidStatus
	}

	if c.AssigneeID != t.AssigneeID {
		t.AssigneeID = c.AssigneeID
		t.AssignedTimestamp = m.now()
	}
	if c.DueDate != nil {
		due := *c.DueDate
		t.DueDate = &due
	}
	if c.Status != nil && *c.Status != t.Status {
		m.setStatus(t, *c.Status, "")
	}
	return nil
}

func (m *Machine) applyCascade(t *models.Task, c SystemCascade) error {
	reason := strings.TrimSpace(c.Reason)
	if reason == "" {
		return ErrCascadeReasonRequired
	}
	if t.Status == models.TaskStatusCompleted {
		return ErrCascadeCompleted
	}

	if t.Status == models.TaskStatusPending {
		t.Remarks = reason
		return nil
	}
	m.setStatus(t, models.TaskStatusPending, reason)
	return nil
}

// setStatus moves the task to a new status and settles review state so the
// task invariants hold afterwards. Non-empty remarks overwrite the current
// remarks.
func (m *Machine) setStatus(t *models.Task, to models.TaskStatus, remarks string) {
	from := t.Status
	prevReview := t.ReviewerStatus

	t.Status = to
	if remarks != "" {
		t.Remarks = remarks
	}

	switch {
	case to == models.TaskStatusCompleted:
		now := m.now()
		t.ActualDate = &now
		// A resubmitted task re-enters review from the start.
		if t.ReviewerID != nil {
			t.ReviewerStatus = models.ReviewerStatusUnderReview
		} else {
			t.ReviewerStatus = models.ReviewerStatusNone
		}
	case to == models.TaskStatusWIP && t.ReviewerStatus == models.ReviewerStatusRejected:
		// rework continues under the rejection marker
	default:
		t.ReviewerStatus = models.ReviewerStatusNone
	}

	if from == models.TaskStatusCompleted && to != models.TaskStatusCompleted {
		t.ActualDate = nil
	}
	if prevReview == models.ReviewerStatusRejected && t.ReviewerStatus != models.ReviewerStatusRejected && remarks == "" {
		t.Remarks = stripRejectedPrefix(t.Remarks)
	}
}

// userRemarks keeps remarks exactly as entered. Blank input counts as none.
func userRemarks(remarks string) string {
	if strings.TrimSpace(remarks) == "" {
		return ""
	}
	return remarks
}

func stripRejectedPrefix(remarks string) string {
	remarks = strings.TrimSpace(remarks)
	return strings.TrimSpace(strings.TrimPrefix(remarks, models.RejectedRemarksPrefix))
}

func changed(before, after *models.Task) bool {
	if before.Status != after.Status ||
		before.ReviewerStatus != after.ReviewerStatus ||
		before.AssigneeID != after.AssigneeID ||
		before.Remarks != after.Remarks {
		return true
	}
	return !sameTime(before.DueDate, after.DueDate)
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// CheckInvariants reports the first consistency rule the task breaks.
func CheckInvariants(t *models.Task) error {
	if !t.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvariant, t.Status)
	}

	switch t.ReviewerStatus {
	case models.ReviewerStatusNone:
	case models.ReviewerStatusRejected:
		if t.Status != models.TaskStatusWIP && t.Status != models.TaskStatusCompleted {
			return fmt.Errorf("%w: rejected task has status %q", ErrInvariant, t.Status)
		}
	case models.ReviewerStatusUnderReview, models.ReviewerStatusAccepted:
		if t.Status != models.TaskStatusCompleted {
			return fmt.Errorf("%w: reviewer status %q on a %q task", ErrInvariant, t.ReviewerStatus, t.Status)
		}
	default:
		return fmt.Errorf("%w: unknown reviewer status %q", ErrInvariant, t.ReviewerStatus)
	}

	if models.IsRejectedRemark(t.Remarks) && t.ReviewerStatus != models.ReviewerStatusRejected {
		return fmt.Errorf("%w: rejection remarks without a rejected review", ErrInvariant)
	}
	return nil
}
