package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/prosync/audit-task-api/internal/models"
	"github.com/prosync/audit-task-api/internal/repository"
	"github.com/prosync/audit-task-api/internal/workflow"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// flakyTaskRepository fails the first Deactivate calls with err and then
// delegates to the wrapped repository.
type flakyTaskRepository struct {
	repository.TaskRepository
	failures int
	err      error
	calls    int
}

func (r *flakyTaskRepository) Deactivate(ctx context.Context, scope repository.CascadeScope, id uint64, apply repository.CascadeFunc) ([]models.Task, error) {
	r.calls++
	if r.calls <= r.failures {
		return nil, r.err
	}
	return r.TaskRepository.Deactivate(ctx, scope, id, apply)
}

type DeactivationServiceTestSuite struct {
	suite.Suite
	f       *serviceFixture
	ctx     context.Context
	logs    *observer.ObservedLogs
	service *DeactivationService
}

func (s *DeactivationServiceTestSuite) SetupTest() {
	s.f = newServiceFixture(&s.Suite)
	s.ctx = context.Background()

	core, logs := observer.New(zap.InfoLevel)
	s.logs = logs
	s.service = s.newService(s.f.tasks, zap.New(core))
}

func (s *DeactivationServiceTestSuite) TearDownTest() {
	s.f.close()
}

func (s *DeactivationServiceTestSuite) newService(tasks repository.TaskRepository, log *zap.Logger) *DeactivationService {
	svc := NewDeactivationService(
		tasks,
		repository.NewActorRepository(s.f.db),
		repository.NewCustomerRepository(s.f.db),
		workflow.NewMachine(),
		s.f.notifier,
		log,
		3,
	)
	svc.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return svc
}

// seed creates one task per status assigned to the auditor.
func (s *DeactivationServiceTestSuite) seed() map[models.TaskStatus]*models.Task {
	tasks := make(map[models.TaskStatus]*models.Task)
	for _, status := range []models.TaskStatus{
		models.TaskStatusYetToStart,
		models.TaskStatusWIP,
		models.TaskStatusPending,
		models.TaskStatusCompleted,
	} {
		task, err := s.f.service.CreateTask(s.ctx, s.f.adminP(), CreateTaskInput{
			ActivityID: s.f.activity.ID,
			CustomerID: s.f.customer.ID,
			AssigneeID: s.f.auditor.ID,
			TaskName:   fmt.Sprintf("task %s", status),
		})
		s.Require().NoError(err)
		if status != models.TaskStatusYetToStart {
			task, err = s.f.service.UpdateStatus(s.ctx, s.f.adminP(), UpdateStatusInput{TaskID: task.ID, Status: string(status), Remarks: "waiting on client"})
			s.Require().NoError(err)
		}
		tasks[status] = task
	}
	return tasks
}

func (s *DeactivationServiceTestSuite) reload(id uint64) *models.Task {
	task, err := s.f.service.GetTask(s.ctx, s.f.adminP(), id)
	s.Require().NoError(err)
	return task
}

func (s *DeactivationServiceTestSuite) TestDeactivateActor_MovesOpenTasksToPending() {
	seeded := s.seed()

	result, err := s.service.DeactivateActor(s.ctx, s.f.adminP(), s.f.auditor.ID)
	s.Require().NoError(err)

	s.Equal("Asha", result.EntityName)
	s.Equal(3, result.AffectedCount)
	s.Len(result.AffectedTasks, 3)

	for _, status := range []models.TaskStatus{models.TaskStatusYetToStart, models.TaskStatusWIP, models.TaskStatusPending} {
		task := s.reload(seeded[status].ID)
		s.Equal(models.TaskStatusPending, task.Status, status)
		s.Equal("Previous assignee Asha was deactivated", task.Remarks, status)
		s.Equal(seeded[status].Version+1, task.Version, status)
	}

	completed := s.reload(seeded[models.TaskStatusCompleted].ID)
	s.Equal(models.TaskStatusCompleted, completed.Status)
	s.Equal(seeded[models.TaskStatusCompleted].Version, completed.Version)

	var actor models.Actor
	s.Require().NoError(s.f.db.First(&actor, s.f.auditor.ID).Error)
	s.Equal(models.StatusObsolete, actor.Status)

	audits, err := s.f.service.ListAudit(s.ctx, s.f.adminP(), seeded[models.TaskStatusWIP].ID)
	s.Require().NoError(err)
	last := audits[len(audits)-1]
	s.Equal(models.AuditActionCascadePending, last.Action)
	s.Equal(models.TaskStatusWIP, last.FromStatus)
	s.Equal(models.TaskStatusPending, last.ToStatus)

	s.NotContains(s.f.notifier.kinds(), NotifyTaskPending)
	s.Equal(1, s.logs.FilterMessage("deactivation cascade completed").Len())
}

func (s *DeactivationServiceTestSuite) TestDeactivateActor_NoOpenTasks() {
	result, err := s.service.DeactivateActor(s.ctx, s.f.adminP(), s.f.other.ID)
	s.Require().NoError(err)
	s.Equal(0, result.AffectedCount)

	var actor models.Actor
	s.Require().NoError(s.f.db.First(&actor, s.f.other.ID).Error)
	s.Equal(models.StatusObsolete, actor.Status)
}

func (s *DeactivationServiceTestSuite) TestDeactivateActor_Errors() {
	_, err := s.service.DeactivateActor(s.ctx, s.f.auditorP(), s.f.other.ID)
	s.ErrorIs(err, ErrForbidden)

	_, err = s.service.DeactivateActor(s.ctx, s.f.adminP(), 999)
	s.ErrorIs(err, ErrActorNotFound)
}

func (s *DeactivationServiceTestSuite) TestDeactivateCustomer_RequiresForce() {
	seeded := s.seed()

	_, err := s.service.DeactivateCustomer(s.ctx, s.f.adminP(), s.f.customer.ID, false)
	s.Require().Error(err)
	s.ErrorIs(err, ErrCustomerHasOpenTasks)

	var open *OpenTasksError
	s.Require().True(errors.As(err, &open))
	s.Equal("Acme Traders", open.CustomerName)
	s.Equal(int64(3), open.Count)

	var customer models.Customer
	s.Require().NoError(s.f.db.First(&customer, s.f.customer.ID).Error)
	s.Equal(models.StatusActive, customer.Status)
	s.Equal(models.TaskStatusWIP, s.reload(seeded[models.TaskStatusWIP].ID).Status)

	result, err := s.service.DeactivateCustomer(s.ctx, s.f.adminP(), s.f.customer.ID, true)
	s.Require().NoError(err)
	s.Equal(3, result.AffectedCount)

	task := s.reload(seeded[models.TaskStatusWIP].ID)
	s.Equal(models.TaskStatusPending, task.Status)
	s.Equal("Auto-marked as pending due to customer 'Acme Traders' deactivation", task.Remarks)

	pending := 0
	for _, kind := range s.f.notifier.kinds() {
		if kind == NotifyTaskPending {
			pending++
		}
	}
	s.Equal(3, pending)
}

func (s *DeactivationServiceTestSuite) TestDeactivateCustomer_WithoutOpenTasks() {
	result, err := s.service.DeactivateCustomer(s.ctx, s.f.adminP(), s.f.customer.ID, false)
	s.Require().NoError(err)
	s.Equal("Acme Traders", result.EntityName)
	s.Equal(0, result.AffectedCount)
}

func (s *DeactivationServiceTestSuite) TestCascade_RetriesVersionConflict() {
	s.seed()
	flaky := &flakyTaskRepository{TaskRepository: s.f.tasks, failures: 1, err: repository.ErrVersionConflict}
	svc := s.newService(flaky, zap.NewNop())

	result, err := svc.DeactivateActor(s.ctx, s.f.adminP(), s.f.auditor.ID)
	s.Require().NoError(err)
	s.Equal(2, flaky.calls)
	s.Equal(3, result.AffectedCount)
}

func (s *DeactivationServiceTestSuite) TestCascade_GivesUpAfterMaxRetries() {
	flaky := &flakyTaskRepository{TaskRepository: s.f.tasks, failures: 10, err: repository.ErrVersionConflict}
	svc := s.newService(flaky, zap.NewNop())

	_, err := svc.DeactivateActor(s.ctx, s.f.adminP(), s.f.auditor.ID)
	s.ErrorIs(err, ErrConflict)
	s.Equal(4, flaky.calls)
}

func (s *DeactivationServiceTestSuite) TestCascade_DoesNotRetryPermanentErrors() {
	flaky := &flakyTaskRepository{TaskRepository: s.f.tasks, failures: 10, err: errors.New("constraint failed")}
	svc := s.newService(flaky, zap.NewNop())

	_, err := svc.DeactivateActor(s.ctx, s.f.adminP(), s.f.auditor.ID)
	s.Require().Error(err)
	s.Equal(1, flaky.calls)
}

func TestDeactivationServiceTestSuite(t *testing.T) {
	suite.Run(t, new(DeactivationServiceTestSuite))
}
