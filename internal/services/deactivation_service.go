package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prosync/audit-task-api/internal/constants"
	"github.com/prosync/audit-task-api/internal/models"
	"github.com/prosync/audit-task-api/internal/repository"
	"github.com/prosync/audit-task-api/internal/workflow"
	"go.uber.org/zap"
)

// CascadeResult reports what a deactivation did to the entity's tasks.
type CascadeResult struct {
	EntityName    string
	AffectedCount int
	AffectedTasks []models.Task
}

// DeactivationService retires actors and customers and moves their open
// tasks to Pending.
type DeactivationService struct {
	tasks      repository.TaskRepository
	actors     repository.ActorRepository
	customers  repository.CustomerRepository
	machine    *workflow.Machine
	notifier   Notifier
	log        *zap.Logger
	maxRetries int
	newBackOff func() backoff.BackOff
}

// NewDeactivationService creates a new DeactivationService. A cascade that
// loses a race with a concurrent task update is retried up to maxRetries
// times.
func NewDeactivationService(
	tasks repository.TaskRepository,
	actors repository.ActorRepository,
	customers repository.CustomerRepository,
	machine *workflow.Machine,
	notifier Notifier,
	log *zap.Logger,
	maxRetries int,
) *DeactivationService {
	return &DeactivationService{
		tasks:      tasks,
		actors:     actors,
		customers:  customers,
		machine:    machine,
		notifier:   notifier,
		log:        log,
		maxRetries: maxRetries,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 50 * time.Millisecond
			b.MaxInterval = time.Second
			return b
		},
	}
}

// DeactivateActor marks the actor obsolete and moves every task assigned to
// them that is not Completed to Pending.
func (s *DeactivationService) DeactivateActor(ctx context.Context, p Principal, actorID uint64) (*CascadeResult, error) {
	if !p.IsAdmin() {
		return nil, ErrForbidden
	}

	actor, err := s.actors.FindByID(ctx, actorID)
	if err != nil {
		return nil, storeError(err, ErrActorNotFound)
	}

	reason := fmt.Sprintf(constants.ActorDeactivatedRemarks, actor.Name)
	return s.cascade(ctx, p, repository.CascadeByAssignee, actor.ID, actor.Name, reason)
}

// DeactivateCustomer marks the customer obsolete. Unless force is set, a
// customer with open tasks is refused with an *OpenTasksError.
func (s *DeactivationService) DeactivateCustomer(ctx context.Context, p Principal, customerID uint64, force bool) (*CascadeResult, error) {
	if !p.IsAdmin() {
		return nil, ErrForbidden
	}

	customer, err := s.customers.FindByID(ctx, customerID)
	if err != nil {
		return nil, storeError(err, ErrCustomerNotFound)
	}

	if !force {
		open, err := s.tasks.CountOpen(ctx, repository.CascadeByCustomer, customer.ID)
		if err != nil {
			return nil, storeError(err, ErrCustomerNotFound)
		}
		if open > 0 {
			return nil, &OpenTasksError{CustomerName: customer.Name, Count: open}
		}
	}

	reason := fmt.Sprintf(constants.CustomerDeactivatedRemarks, customer.Name)
	return s.cascade(ctx, p, repository.CascadeByCustomer, customer.ID, customer.Name, reason)
}

func (s *DeactivationService) cascade(ctx context.Context, p Principal, scope repository.CascadeScope, id uint64, name, reason string) (*CascadeResult, error) {
	apply := func(task *models.Task) (models.TaskAudit, error) {
		res, err := s.machine.Apply(task, workflow.SystemCascade{Reason: reason})
		if err != nil {
			return models.TaskAudit{}, err
		}
		return models.TaskAudit{
			Action:             models.AuditActionCascadePending,
			ActorID:            p.ActorID,
			FromStatus:         res.FromStatus,
			ToStatus:           res.ToStatus,
			FromReviewerStatus: res.FromReviewerStatus,
			ToReviewerStatus:   res.ToReviewerStatus,
			Comments:           reason,
		}, nil
	}

	attempt := 0
	operation := func() ([]models.Task, error) {
		attempt++
		tasks, err := s.tasks.Deactivate(ctx, scope, id, apply)
		if err == nil {
			return tasks, nil
		}
		if errors.Is(err, repository.ErrVersionConflict) || isTransient(err) {
			s.log.Warn("deactivation cascade retrying",
				zap.String("entity", scope.String()),
				zap.Uint64("entity_id", id),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), uint64(s.maxRetries)), ctx)
	tasks, err := backoff.RetryWithData[[]models.Task](operation, policy)
	if err != nil {
		err = storeError(err, ErrTaskNotFound)
		s.log.Error("deactivation cascade failed",
			zap.String("entity", scope.String()),
			zap.Uint64("entity_id", id),
			zap.Error(err),
		)
		return nil, err
	}

	s.log.Info("deactivation cascade completed",
		zap.String("entity", scope.String()),
		zap.Uint64("entity_id", id),
		zap.Int("affected_tasks", len(tasks)),
		zap.Uint64("actor_id", p.ActorID),
	)

	if scope == repository.CascadeByCustomer {
		for _, task := range tasks {
			notify(ctx, s.notifier, s.log, Notification{
				Kind:        NotifyTaskPending,
				TaskID:      task.ID,
				TaskName:    task.TaskName,
				RecipientID: task.AssigneeID,
				Message:     reason,
			})
		}
	}

	return &CascadeResult{
		EntityName:    name,
		AffectedCount: len(tasks),
		AffectedTasks: tasks,
	}, nil
}
