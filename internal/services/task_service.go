package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/prosync/audit-task-api/internal/models"
	"github.com/prosync/audit-task-api/internal/repository"
	"github.com/prosync/audit-task-api/internal/utils"
	"github.com/prosync/audit-task-api/internal/workflow"
	"go.uber.org/zap"
)

// taskDetail lists the relations loaded for a single task view.
var taskDetail = []string{"Subtasks", "Activity", "Customer", "Assignee", "Reviewer"}

// TaskService handles task business logic
type TaskService struct {
	tasks      repository.TaskRepository
	actors     repository.ActorRepository
	customers  repository.CustomerRepository
	activities repository.ActivityRepository
	machine    *workflow.Machine
	notifier   Notifier
	log        *zap.Logger
	now        func() time.Time
}

// NewTaskService creates a new TaskService
func NewTaskService(
	tasks repository.TaskRepository,
	actors repository.ActorRepository,
	customers repository.CustomerRepository,
	activities repository.ActivityRepository,
	machine *workflow.Machine,
	notifier Notifier,
	log *zap.Logger,
) *TaskService {
	return &TaskService{
		tasks:      tasks,
		actors:     actors,
		customers:  customers,
		activities: activities,
		machine:    machine,
		notifier:   notifier,
		log:        log,
		now:        time.Now,
	}
}

// ListTasksInput represents filters for listing tasks
type ListTasksInput struct {
	ReviewMode  bool
	Status      string
	Criticality string
	AuditorID   *uint64
	CustomerID  *uint64
	Search      string
	Pagination  utils.PaginationParams
}

// CreateTaskInput represents input for creating a task
type CreateTaskInput struct {
	ActivityID  uint64
	CustomerID  uint64
	AssigneeID  uint64
	ReviewerID  *uint64
	TaskName    string
	DueDate     *time.Time
	Criticality string
	Remarks     string
}

// UpdateStatusInput represents a status change requested by a user
type UpdateStatusInput struct {
	TaskID  uint64
	Status  string
	Remarks string
	Version *int
}

// ReviewInput represents a reviewer decision
type ReviewInput struct {
	TaskID  uint64
	Status  string
	Remarks string
	Version *int
}

// ReassignInput represents an administrative reassignment
type ReassignInput struct {
	TaskID     uint64
	AssigneeID uint64
	DueDate    *time.Time
	Status     *string
	Version    *int
}

// AssignReviewerInput represents the choice of a task reviewer
type AssignReviewerInput struct {
	TaskID     uint64
	ReviewerID uint64
	Version    *int
}

// ListTasks returns the tasks visible to the actor. Administrators see every
// task, other actors the tasks assigned to them, or in review mode the tasks
// they review.
func (s *TaskService) ListTasks(ctx context.Context, p Principal, input ListTasksInput) ([]models.Task, int64, error) {
	filter := repository.TaskFilter{
		CustomerID: input.CustomerID,
		Search:     input.Search,
		Pagination: input.Pagination,
	}

	switch {
	case input.ReviewMode:
		filter.ReviewerID = &p.ActorID
	case !p.IsAdmin():
		filter.AssigneeID = &p.ActorID
	case input.AuditorID != nil:
		filter.AssigneeID = input.AuditorID
	}

	if input.Status != "" {
		status, ok := models.ParseTaskStatus(input.Status)
		if !ok {
			return nil, 0, workflow.ErrInvalidStatus
		}
		filter.Status = &status
	}
	if input.Criticality != "" {
		criticality, ok := models.ParseCriticality(input.Criticality)
		if !ok {
			return nil, 0, ErrInvalidCriticality
		}
		filter.Criticality = &criticality
	}

	tasks, total, err := s.tasks.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", storeError(err, ErrTaskNotFound))
	}

	return tasks, total, nil
}

// GetTask returns a task with its relations
func (s *TaskService) GetTask(ctx context.Context, p Principal, taskID uint64) (*models.Task, error) {
	task, err := s.tasks.FindByID(ctx, taskID, taskDetail...)
	if err != nil {
		return nil, storeError(err, ErrTaskNotFound)
	}
	if !canView(p, task) {
		return nil, ErrTaskNotFound
	}
	return task, nil
}

// CreateTask assigns an activity to an auditor for a customer. Subtasks are
// copied from the activity template in order.
func (s *TaskService) CreateTask(ctx context.Context, p Principal, input CreateTaskInput) (*models.Task, error) {
	if !p.IsAdmin() {
		return nil, ErrForbidden
	}

	activity, err := s.activities.FindByID(ctx, input.ActivityID)
	if err != nil {
		return nil, storeError(err, ErrActivityNotFound)
	}
	if !activity.Active() {
		return nil, fmt.Errorf("%w: activity %q", ErrInactive, activity.Name)
	}

	customer, err := s.customers.FindByID(ctx, input.CustomerID)
	if err != nil {
		return nil, storeError(err, ErrCustomerNotFound)
	}
	if !customer.Active() {
		return nil, fmt.Errorf("%w: customer %q", ErrInactive, customer.Name)
	}

	if input.AssigneeID == 0 {
		return nil, workflow.ErrAssigneeRequired
	}
	assignee, err := s.activeActor(ctx, input.AssigneeID)
	if err != nil {
		return nil, err
	}

	if input.ReviewerID != nil {
		if _, err := s.eligibleReviewer(ctx, *input.ReviewerID, assignee.ID); err != nil {
			return nil, err
		}
	}

	criticality := activity.Criticality
	if strings.TrimSpace(input.Criticality) != "" {
		var ok bool
		if criticality, ok = models.ParseCriticality(input.Criticality); !ok {
			return nil, ErrInvalidCriticality
		}
	}
	if criticality == "" {
		criticality = models.CriticalityMedium
	}

	remarks := strings.TrimSpace(input.Remarks)
	if models.IsRejectedRemark(remarks) {
		return nil, workflow.ErrReservedRemarksPrefix
	}

	name := strings.TrimSpace(input.TaskName)
	if name == "" {
		name = activity.Name
	}

	task := &models.Task{
		TaskName:          name,
		ActivityID:        activity.ID,
		CustomerID:        customer.ID,
		AssigneeID:        assignee.ID,
		ReviewerID:        input.ReviewerID,
		Status:            models.TaskStatusYetToStart,
		ReviewerStatus:    models.ReviewerStatusNone,
		DueDate:           input.DueDate,
		Criticality:       criticality,
		Remarks:           remarks,
		AssignedTimestamp: s.now(),
		Version:           1,
		Subtasks:          subtasksFromTemplate(activity.SubActivities),
	}

	audit := models.TaskAudit{
		Action:       models.AuditActionCreated,
		ActorID:      p.ActorID,
		ToStatus:     task.Status,
		ToAssigneeID: task.AssigneeID,
	}
	if err := s.tasks.Create(ctx, task, audit); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", storeError(err, ErrTaskNotFound))
	}

	s.log.Info("task created",
		zap.Uint64("task_id", task.ID),
		zap.Uint64("assignee_id", task.AssigneeID),
		zap.Uint64("actor_id", p.ActorID),
	)
	notify(ctx, s.notifier, s.log, Notification{
		Kind:        NotifyTaskAssigned,
		TaskID:      task.ID,
		TaskName:    task.TaskName,
		RecipientID: task.AssigneeID,
		Message:     fmt.Sprintf("You have been assigned %q for %s", task.TaskName, customer.Name),
	})

	return s.reload(ctx, task.ID)
}

// UpdateStatus applies a status change requested by the assignee or an
// administrator.
func (s *TaskService) UpdateStatus(ctx context.Context, p Principal, input UpdateStatusInput) (*models.Task, error) {
	task, err := s.load(ctx, p, input.TaskID)
	if err != nil {
		return nil, err
	}
	if !p.IsAdmin() && task.AssigneeID != p.ActorID {
		return nil, ErrForbidden
	}

	status, ok := models.ParseTaskStatus(input.Status)
	if !ok {
		return nil, workflow.ErrInvalidStatus
	}
	if !p.IsAdmin() && task.Status == models.TaskStatusCompleted && status != task.Status {
		return nil, ErrForbidden
	}

	res, err := s.apply(ctx, p, task, input.Version, workflow.UserTransition{Status: status, Remarks: input.Remarks}, models.AuditActionStatusChanged)
	if err != nil {
		return nil, err
	}

	if res.StatusChanged() && res.ToStatus == models.TaskStatusCompleted && task.ReviewerID != nil {
		notify(ctx, s.notifier, s.log, Notification{
			Kind:        NotifyReviewRequested,
			TaskID:      task.ID,
			TaskName:    task.TaskName,
			RecipientID: *task.ReviewerID,
			Message:     fmt.Sprintf("%q is ready for review", task.TaskName),
		})
	}

	return s.reload(ctx, task.ID)
}

// SetReviewerStatus records a reviewer decision. Only the assigned reviewer
// or an administrator may decide.
func (s *TaskService) SetReviewerStatus(ctx context.Context, p Principal, input ReviewInput) (*models.Task, error) {
	task, err := s.load(ctx, p, input.TaskID)
	if err != nil {
		return nil, err
	}
	if !p.IsAdmin() && !isReviewer(p, task) {
		return nil, ErrForbidden
	}

	decision, ok := models.ParseReviewerStatus(input.Status)
	if !ok {
		return nil, workflow.ErrInvalidReviewerStatus
	}

	var cmd workflow.Command = workflow.ReviewDecision{Status: decision, Remarks: input.Remarks}
	if decision == models.ReviewerStatusRejected {
		cmd = workflow.ReviewerRejection{Remarks: input.Remarks}
	}

	res, err := s.apply(ctx, p, task, input.Version, cmd, models.AuditActionReviewChanged)
	if err != nil {
		return nil, err
	}

	if res.ReviewChanged() {
		switch res.ToReviewerStatus {
		case models.ReviewerStatusRejected:
			notify(ctx, s.notifier, s.log, Notification{
				Kind:        NotifyTaskRejected,
				TaskID:      task.ID,
				TaskName:    task.TaskName,
				RecipientID: task.AssigneeID,
				Message:     task.Remarks,
			})
		case models.ReviewerStatusAccepted:
			notify(ctx, s.notifier, s.log, Notification{
				Kind:        NotifyTaskAccepted,
				TaskID:      task.ID,
				TaskName:    task.TaskName,
				RecipientID: task.AssigneeID,
				Message:     fmt.Sprintf("%q was accepted", task.TaskName),
			})
		}
	}

	return s.reload(ctx, task.ID)
}

// Reassign hands a task to another auditor, optionally changing its due
// date and status in the same write.
func (s *TaskService) Reassign(ctx context.Context, p Principal, input ReassignInput) (*models.Task, error) {
	if !p.IsAdmin() {
		return nil, ErrForbidden
	}

	task, err := s.load(ctx, p, input.TaskID)
	if err != nil {
		return nil, err
	}

	cmd := workflow.Reassignment{AssigneeID: input.AssigneeID, DueDate: input.DueDate}
	if input.Status != nil {
		status, ok := models.ParseTaskStatus(*input.Status)
		if !ok {
			return nil, workflow.ErrInvalidStatus
		}
		cmd.Status = &status
	}

	if input.AssigneeID != 0 && input.AssigneeID != task.AssigneeID {
		if _, err := s.activeActor(ctx, input.AssigneeID); err != nil {
			return nil, err
		}
		if task.ReviewerID != nil && *task.ReviewerID == input.AssigneeID {
			return nil, ErrReviewerIsAssignee
		}
	}

	res, err := s.apply(ctx, p, task, input.Version, cmd, models.AuditActionReassigned)
	if err != nil {
		return nil, err
	}

	if res.AssigneeChanged() {
		notify(ctx, s.notifier, s.log, Notification{
			Kind:        NotifyTaskAssigned,
			TaskID:      task.ID,
			TaskName:    task.TaskName,
			RecipientID: task.AssigneeID,
			Message:     fmt.Sprintf("%q has been reassigned to you", task.TaskName),
		})
	}

	return s.reload(ctx, task.ID)
}

// AssignReviewer sets the task's reviewer. A completed task that is not yet
// in review enters review immediately.
func (s *TaskService) AssignReviewer(ctx context.Context, p Principal, input AssignReviewerInput) (*models.Task, error) {
	if !p.IsAdmin() {
		return nil, ErrForbidden
	}

	task, err := s.load(ctx, p, input.TaskID)
	if err != nil {
		return nil, err
	}
	if err := checkVersion(task, input.Version); err != nil {
		return nil, err
	}

	reviewer, err := s.eligibleReviewer(ctx, input.ReviewerID, task.AssigneeID)
	if err != nil {
		return nil, err
	}

	expected := task.Version
	previous := task.ReviewerID
	task.ReviewerID = &reviewer.ID

	audit := models.TaskAudit{
		Action:             models.AuditActionReviewerAssigned,
		ActorID:            p.ActorID,
		FromStatus:         task.Status,
		ToStatus:           task.Status,
		FromReviewerStatus: task.ReviewerStatus,
		Comments:           fmt.Sprintf("reviewer set to %s", reviewer.Name),
	}
	if task.Status == models.TaskStatusCompleted && task.ReviewerStatus == models.ReviewerStatusNone {
		if _, err := s.machine.Apply(task, workflow.ReviewDecision{Status: models.ReviewerStatusUnderReview}); err != nil {
			return nil, err
		}
	}
	audit.ToReviewerStatus = task.ReviewerStatus

	if previous != nil && *previous == reviewer.ID && audit.FromReviewerStatus == audit.ToReviewerStatus {
		return s.reload(ctx, task.ID)
	}

	if err := s.tasks.Save(ctx, task, expected, audit); err != nil {
		return nil, s.saveError(task, err)
	}

	s.log.Info("reviewer assigned",
		zap.Uint64("task_id", task.ID),
		zap.Uint64("reviewer_id", reviewer.ID),
		zap.Uint64("actor_id", p.ActorID),
	)
	notify(ctx, s.notifier, s.log, Notification{
		Kind:        NotifyReviewerAssigned,
		TaskID:      task.ID,
		TaskName:    task.TaskName,
		RecipientID: reviewer.ID,
		Message:     fmt.Sprintf("You are the reviewer of %q", task.TaskName),
	})

	return s.reload(ctx, task.ID)
}

// ListSubtasks returns the task's subtasks and completion percentage. A task
// created before its activity had a template gets its subtasks on first read.
func (s *TaskService) ListSubtasks(ctx context.Context, p Principal, taskID uint64) ([]models.Subtask, int, error) {
	task, err := s.tasks.FindByID(ctx, taskID, "Activity")
	if err != nil {
		return nil, 0, storeError(err, ErrTaskNotFound)
	}
	if !canView(p, task) {
		return nil, 0, ErrTaskNotFound
	}

	subtasks, err := s.tasks.ListSubtasks(ctx, task.ID)
	if err != nil {
		return nil, 0, storeError(err, ErrTaskNotFound)
	}
	if len(subtasks) == 0 && len(task.Activity.SubActivities) > 0 {
		subtasks, err = s.tasks.MaterializeSubtasks(ctx, task.ID, subtasksFromTemplate(task.Activity.SubActivities))
		if err != nil {
			return nil, 0, storeError(err, ErrTaskNotFound)
		}
	}

	return subtasks, workflow.ComputeProgress(subtasks), nil
}

// UpdateSubtaskStatus sets a subtask's status and returns the parent task's
// recomputed progress. Subtask transitions are unconstrained.
func (s *TaskService) UpdateSubtaskStatus(ctx context.Context, p Principal, subtaskID uint64, rawStatus string) (*models.Subtask, int, error) {
	status, ok := models.ParseSubtaskStatus(rawStatus)
	if !ok {
		return nil, 0, ErrInvalidSubtaskStatus
	}

	subtask, err := s.tasks.FindSubtask(ctx, subtaskID)
	if err != nil {
		return nil, 0, storeError(err, ErrSubtaskNotFound)
	}

	task, err := s.tasks.FindByID(ctx, subtask.TaskID)
	if err != nil {
		return nil, 0, storeError(err, ErrSubtaskNotFound)
	}
	if !canView(p, task) {
		return nil, 0, ErrSubtaskNotFound
	}
	if !p.IsAdmin() && task.AssigneeID != p.ActorID {
		return nil, 0, ErrForbidden
	}

	if err := s.tasks.UpdateSubtaskStatus(ctx, subtask, status); err != nil {
		return nil, 0, storeError(err, ErrSubtaskNotFound)
	}

	subtasks, err := s.tasks.ListSubtasks(ctx, task.ID)
	if err != nil {
		return nil, 0, storeError(err, ErrSubtaskNotFound)
	}

	return subtask, workflow.ComputeProgress(subtasks), nil
}

// ListAudit returns the task's change history
func (s *TaskService) ListAudit(ctx context.Context, p Principal, taskID uint64) ([]models.TaskAudit, error) {
	if _, err := s.load(ctx, p, taskID); err != nil {
		return nil, err
	}

	audits, err := s.tasks.ListAudits(ctx, taskID)
	if err != nil {
		return nil, storeError(err, ErrTaskNotFound)
	}
	return audits, nil
}

// ListReviewers returns the active actors that may review tasks
func (s *TaskService) ListReviewers(ctx context.Context) ([]models.Actor, error) {
	actors, err := s.actors.ListReviewers(ctx, reviewerRoles)
	if err != nil {
		return nil, storeError(err, ErrActorNotFound)
	}
	return actors, nil
}

// apply runs cmd through the state machine and persists the result guarded
// by the task version. A command that changes nothing is not written.
func (s *TaskService) apply(ctx context.Context, p Principal, task *models.Task, version *int, cmd workflow.Command, action models.AuditAction) (workflow.Result, error) {
	if err := checkVersion(task, version); err != nil {
		return workflow.Result{}, err
	}

	expected := task.Version
	res, err := s.machine.Apply(task, cmd)
	if err != nil {
		return workflow.Result{}, err
	}
	if !res.Changed {
		return res, nil
	}

	audit := models.TaskAudit{
		Action:             action,
		ActorID:            p.ActorID,
		FromStatus:         res.FromStatus,
		ToStatus:           res.ToStatus,
		FromReviewerStatus: res.FromReviewerStatus,
		ToReviewerStatus:   res.ToReviewerStatus,
		Comments:           task.Remarks,
	}
	if res.AssigneeChanged() {
		audit.FromAssigneeID = res.FromAssigneeID
		audit.ToAssigneeID = res.ToAssigneeID
	}

	if err := s.tasks.Save(ctx, task, expected, audit); err != nil {
		return workflow.Result{}, s.saveError(task, err)
	}

	s.log.Info("task updated",
		zap.Uint64("task_id", task.ID),
		zap.String("command", cmd.Kind()),
		zap.String("from_status", string(res.FromStatus)),
		zap.String("to_status", string(res.ToStatus)),
		zap.String("reviewer_status", string(res.ToReviewerStatus)),
		zap.Uint64("actor_id", p.ActorID),
	)
	return res, nil
}

func (s *TaskService) saveError(task *models.Task, err error) error {
	err = storeError(err, ErrTaskNotFound)
	switch {
	case errors.Is(err, ErrConflict):
		s.log.Warn("stale task update rejected", zap.Uint64("task_id", task.ID))
	case errors.Is(err, ErrTransient):
		s.log.Warn("task store unavailable", zap.Uint64("task_id", task.ID), zap.Error(err))
	default:
		s.log.Error("failed to save task", zap.Uint64("task_id", task.ID), zap.Error(err))
	}
	return err
}

// load returns the task if the actor may see it. Tasks outside the actor's
// reach are reported as missing.
func (s *TaskService) load(ctx context.Context, p Principal, taskID uint64) (*models.Task, error) {
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, storeError(err, ErrTaskNotFound)
	}
	if !canView(p, task) {
		return nil, ErrTaskNotFound
	}
	return task, nil
}

func (s *TaskService) reload(ctx context.Context, taskID uint64) (*models.Task, error) {
	task, err := s.tasks.FindByID(ctx, taskID, taskDetail...)
	if err != nil {
		return nil, storeError(err, ErrTaskNotFound)
	}
	return task, nil
}

func (s *TaskService) activeActor(ctx context.Context, id uint64) (*models.Actor, error) {
	actor, err := s.actors.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err, ErrActorNotFound)
	}
	if !actor.Active() {
		return nil, fmt.Errorf("%w: actor %q", ErrInactive, actor.Name)
	}
	return actor, nil
}

func (s *TaskService) eligibleReviewer(ctx context.Context, reviewerID, assigneeID uint64) (*models.Actor, error) {
	if reviewerID == assigneeID {
		return nil, ErrReviewerIsAssignee
	}
	reviewer, err := s.activeActor(ctx, reviewerID)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(reviewerRoles, reviewer.RoleID) {
		return nil, ErrNotEligibleReviewer
	}
	return reviewer, nil
}

func checkVersion(task *models.Task, version *int) error {
	if version != nil && *version != task.Version {
		return ErrConflict
	}
	return nil
}

func canView(p Principal, task *models.Task) bool {
	return p.IsAdmin() || task.AssigneeID == p.ActorID || isReviewer(p, task)
}

func isReviewer(p Principal, task *models.Task) bool {
	return task.ReviewerID != nil && *task.ReviewerID == p.ActorID
}

func subtasksFromTemplate(template []models.SubActivity) []models.Subtask {
	subtasks := make([]models.Subtask, 0, len(template))
	for _, sub := range template {
		if strings.TrimSpace(sub.Name) == "" {
			continue
		}
		subtasks = append(subtasks, models.Subtask{
			Name:          sub.Name,
			Description:   sub.Description,
			EstimatedTime: sub.EstimatedTime,
			Status:        models.SubtaskStatusYetToStart,
		})
	}
	return subtasks
}
