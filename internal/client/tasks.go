package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prosync/audit-task-api/internal/dto"
	"github.com/prosync/audit-task-api/internal/models"
	"go.uber.org/zap"
)

// Outcome tells how a successful write was confirmed.
type Outcome int

const (
	// Applied means the server acknowledged the write.
	Applied Outcome = iota
	// Synced means the acknowledgement was lost but a read shows the server
	// already holds the change.
	Synced
)

func (o Outcome) String() string {
	if o == Synced {
		return "synced"
	}
	return "applied"
}

// TaskResult is the task after a successful write.
type TaskResult struct {
	Task    *dto.TaskDTO
	Outcome Outcome
}

// GetTask fetches a task.
func (c *Client) GetTask(ctx context.Context, id uint64) (*dto.TaskDTO, error) {
	var task dto.TaskDTO
	if _, err := c.do(ctx, http.MethodGet, taskPath(id), nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateStatus moves a task to status. A nil version skips the staleness
// check.
func (c *Client) UpdateStatus(ctx context.Context, id uint64, status, remarks string, version *int) (*TaskResult, error) {
	want, ok := models.ParseTaskStatus(status)
	if !ok {
		return nil, fmt.Errorf("client: unknown task status %q", status)
	}

	body := map[string]any{"status": string(want)}
	if remarks != "" {
		body["remarks"] = remarks
	}
	if version != nil {
		body["version"] = *version
	}

	return c.mutate(ctx, id, http.MethodPatch, taskPath(id), body, func(t *dto.TaskDTO) bool {
		return t.Status == want
	})
}

// SetReviewStatus records a reviewer decision.
func (c *Client) SetReviewStatus(ctx context.Context, id uint64, reviewerStatus, remarks string, version *int) (*TaskResult, error) {
	want, ok := models.ParseReviewerStatus(reviewerStatus)
	if !ok {
		return nil, fmt.Errorf("client: unknown reviewer status %q", reviewerStatus)
	}

	body := map[string]any{"reviewer_status": string(want)}
	if remarks != "" {
		body["remarks"] = remarks
	}
	if version != nil {
		body["version"] = *version
	}

	return c.mutate(ctx, id, http.MethodPatch, taskPath(id)+"/review-status", body, func(t *dto.TaskDTO) bool {
		if t.ReviewerStatus != want {
			return false
		}
		return want != models.ReviewerStatusRejected || strings.Contains(t.Remarks, strings.TrimSpace(remarks))
	})
}

// ReassignInput describes an administrative reassignment.
type ReassignInput struct {
	AssigneeID uint64
	DueDate    string
	Status     string
	Version    *int
}

// Reassign hands a task to another auditor.
func (c *Client) Reassign(ctx context.Context, id uint64, in ReassignInput) (*TaskResult, error) {
	body := map[string]any{"assignee": in.AssigneeID}
	var wantDue string
	if in.DueDate != "" {
		due, err := parseDueDate(in.DueDate)
		if err != nil {
			return nil, err
		}
		wantDue = calendarDate(due)
		body["due_date"] = in.DueDate
	}

	var wantStatus models.TaskStatus
	if in.Status != "" {
		var ok bool
		if wantStatus, ok = models.ParseTaskStatus(in.Status); !ok {
			return nil, fmt.Errorf("client: unknown task status %q", in.Status)
		}
		body["status"] = string(wantStatus)
	}
	if in.Version != nil {
		body["version"] = *in.Version
	}

	return c.mutate(ctx, id, http.MethodPatch, taskPath(id), body, func(t *dto.TaskDTO) bool {
		if t.AssigneeID != in.AssigneeID {
			return false
		}
		if wantDue != "" && (t.DueDate == nil || calendarDate(*t.DueDate) != wantDue) {
			return false
		}
		return wantStatus == "" || t.Status == wantStatus
	})
}

// parseDueDate accepts the layouts the server accepts.
func parseDueDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("client: invalid due date %q, expected YYYY-MM-DD", raw)
}

func calendarDate(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

// DeactivateActor marks an actor obsolete. The server call is idempotent so
// an unconfirmed outcome carries no task state.
func (c *Client) DeactivateActor(ctx context.Context, actorID uint64) (*dto.ActorDeactivationResponse, error) {
	var resp dto.ActorDeactivationResponse
	attempts, err := c.do(ctx, http.MethodPost, "/api/actors/deactivate", map[string]any{"actor_id": actorID}, &resp)
	if err != nil {
		if uncertain(ctx, err, attempts) {
			return nil, &SyncError{Err: err}
		}
		return nil, err
	}
	return &resp, nil
}

// DeactivateCustomer marks a customer obsolete. Without force the server
// refuses while the customer has open tasks.
func (c *Client) DeactivateCustomer(ctx context.Context, customerID uint64, force bool) (*dto.CustomerDeactivationResponse, error) {
	path := fmt.Sprintf("/api/customers/%d", customerID)
	if force {
		path += "?force=true"
	}

	var resp dto.CustomerDeactivationResponse
	attempts, err := c.do(ctx, http.MethodDelete, path, nil, &resp)
	if err != nil {
		if uncertain(ctx, err, attempts) {
			return nil, &SyncError{Err: err}
		}
		return nil, err
	}
	return &resp, nil
}

// mutate performs a task write. When its outcome is uncertain the task is
// read back and applied decides whether the server holds the change.
func (c *Client) mutate(ctx context.Context, id uint64, method, path string, body any, applied func(*dto.TaskDTO) bool) (*TaskResult, error) {
	var task dto.TaskDTO
	attempts, err := c.do(ctx, method, path, body, &task)
	if err == nil {
		return &TaskResult{Task: &task, Outcome: Applied}, nil
	}
	if !uncertain(ctx, err, attempts) {
		return nil, err
	}

	current, readErr := c.GetTask(ctx, id)
	if readErr != nil {
		c.log.Warn("reconciliation read failed",
			zap.Uint64("task_id", id),
			zap.Error(readErr),
		)
		return nil, &SyncError{Err: errors.Join(err, readErr)}
	}

	if applied(current) {
		c.log.Info("write confirmed by reconciliation read",
			zap.Uint64("task_id", id),
			zap.Int("attempts", attempts),
		)
		return &TaskResult{Task: current, Outcome: Synced}, nil
	}

	c.log.Warn("write pending sync",
		zap.Uint64("task_id", id),
		zap.String("server_status", string(current.Status)),
		zap.Error(err),
	)
	return nil, &SyncError{LastKnown: current, Err: err}
}

func taskPath(id uint64) string {
	return fmt.Sprintf("/api/tasks/%d", id)
}
