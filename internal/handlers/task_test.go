package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prosync/audit-task-api/internal/config"
	"github.com/prosync/audit-task-api/internal/constants"
	"github.com/prosync/audit-task-api/internal/database"
	"github.com/prosync/audit-task-api/internal/dto"
	apierrors "github.com/prosync/audit-task-api/internal/errors"
	"github.com/prosync/audit-task-api/internal/middleware"
	"github.com/prosync/audit-task-api/internal/models"
	"github.com/prosync/audit-task-api/internal/repository"
	"github.com/prosync/audit-task-api/internal/services"
	"github.com/prosync/audit-task-api/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TaskHandlerTestSuite defines the test suite for the HTTP handlers
type TaskHandlerTestSuite struct {
	suite.Suite
	db     *gorm.DB
	router *gin.Engine

	admin    models.Actor
	auditor  models.Actor
	reviewer models.Actor
	customer models.Customer
	activity models.Activity
}

// SetupTest runs before each test
func (suite *TaskHandlerTestSuite) SetupTest() {
	var err error

	// Create in-memory SQLite database
	suite.db, err = database.Connect(&config.Config{DBDriver: "sqlite", SQLitePath: ":memory:"})
	suite.Require().NoError(err)
	suite.Require().NoError(database.Migrate(suite.db))

	log := zap.NewNop()
	tasks := repository.NewTaskRepository(suite.db)
	actors := repository.NewActorRepository(suite.db)
	customers := repository.NewCustomerRepository(suite.db)
	machine := workflow.NewMachine()
	notifier := services.NewLogNotifier(log)

	taskService := services.NewTaskService(tasks, actors, customers, repository.NewActivityRepository(suite.db), machine, notifier, log)
	deactivation := services.NewDeactivationService(tasks, actors, customers, machine, notifier, log, constants.DefaultCascadeMaxRetries)

	taskHandler := NewTaskHandler(taskService)
	subtaskHandler := NewSubtaskHandler(taskService)
	actorHandler := NewActorHandler(deactivation)
	customerHandler := NewCustomerHandler(deactivation)

	// Set Gin to test mode
	gin.SetMode(gin.TestMode)

	// Create router; the actor comes from test headers instead of a session
	suite.router = gin.New()
	api := suite.router.Group("/api", suite.testActor)
	api.GET("/tasks", taskHandler.ListTasks)
	api.POST("/tasks", middleware.RequireAdmin(), taskHandler.CreateTask)
	api.GET("/tasks/:id", taskHandler.GetTask)
	api.PATCH("/tasks/:id", taskHandler.UpdateTask)
	api.PATCH("/tasks/:id/review-status", taskHandler.UpdateReviewStatus)
	api.POST("/tasks/:id/reviewer", middleware.RequireAdmin(), taskHandler.AssignReviewer)
	api.GET("/tasks/:id/subtasks", taskHandler.ListSubtasks)
	api.GET("/tasks/:id/audit", taskHandler.ListAudit)
	api.PATCH("/subtasks/:id", subtaskHandler.UpdateStatus)
	api.GET("/reviewers", taskHandler.ListReviewers)
	api.POST("/actors/deactivate", middleware.RequireAdmin(), actorHandler.Deactivate)
	api.DELETE("/customers/:id", middleware.RequireAdmin(), customerHandler.Delete)

	suite.admin = suite.createActor("Admin", constants.AdminRoleID)
	suite.auditor = suite.createActor("Asha", constants.AuditorRoleID)
	suite.reviewer = suite.createActor("Meera", constants.AuditorRoleID)

	suite.customer = models.Customer{Name: "Acme Traders", Status: models.StatusActive}
	suite.Require().NoError(suite.db.Create(&suite.customer).Error)

	suite.activity = models.Activity{
		Name:        "GST filing",
		Criticality: models.CriticalityHigh,
		Status:      models.StatusActive,
		SubActivities: []models.SubActivity{
			{Name: "Collect invoices"},
			{Name: "Reconcile ledger"},
			{Name: "File return"},
		},
	}
	suite.Require().NoError(suite.db.Create(&suite.activity).Error)
}

// TearDownTest runs after each test
func (suite *TaskHandlerTestSuite) TearDownTest() {
	sqlDB, err := suite.db.DB()
	suite.Require().NoError(err)
	sqlDB.Close()
}

// testActor stands in for RequireActor
func (suite *TaskHandlerTestSuite) testActor(c *gin.Context) {
	var actor models.Actor
	if err := suite.db.First(&actor, "name = ?", c.GetHeader("X-Test-Actor")).Error; err != nil {
		apierrors.Unauthorized(c, "")
		return
	}
	c.Set(constants.ContextKeyActorID, actor.ID)
	c.Set(constants.ContextKeyRoleID, actor.RoleID)
	c.Next()
}

// Helper functions to create test data
func (suite *TaskHandlerTestSuite) createActor(name string, roleID int) models.Actor {
	actor := models.Actor{Name: name, RoleID: roleID, Status: models.StatusActive}
	suite.Require().NoError(suite.db.Create(&actor).Error)
	return actor
}

func (suite *TaskHandlerTestSuite) do(actor, method, url string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		suite.Require().NoError(err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, url, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-Actor", actor)

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *TaskHandlerTestSuite) createTask() dto.TaskDTO {
	w := suite.do("Admin", http.MethodPost, "/api/tasks", gin.H{
		"activity_id": suite.activity.ID,
		"customer_id": suite.customer.ID,
		"assignee":    suite.auditor.ID,
		"reviewer_id": suite.reviewer.ID,
		"due_date":    "2024-11-15",
	})
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	var task dto.TaskDTO
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &task))
	return task
}

func (suite *TaskHandlerTestSuite) decodeError(w *httptest.ResponseRecorder) apierrors.APIError {
	var apiErr apierrors.APIError
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &apiErr))
	return apiErr
}

func (suite *TaskHandlerTestSuite) url(format string, id uint64) string {
	return "/api" + strings.Replace(format, ":id", strconv.FormatUint(id, 10), 1)
}

// Test CreateTask
func (suite *TaskHandlerTestSuite) TestCreateTask_Success() {
	task := suite.createTask()

	assert.Equal(suite.T(), "GST filing", task.TaskName)
	assert.Equal(suite.T(), models.TaskStatusYetToStart, task.Status)
	assert.Equal(suite.T(), models.CriticalityHigh, task.Criticality)
	assert.Equal(suite.T(), 1, task.Version)
	assert.Equal(suite.T(), 0, task.Progress)
	assert.Len(suite.T(), task.Subtasks, 3)
	suite.Require().NotNil(task.DueDate)
	assert.Equal(suite.T(), "2024-11-15", task.DueDate.Format("2006-01-02"))
	suite.Require().NotNil(task.Assignee)
	assert.Equal(suite.T(), "Asha", task.Assignee.Name)
}

func (suite *TaskHandlerTestSuite) TestCreateTask_RequiresAdmin() {
	w := suite.do("Asha", http.MethodPost, "/api/tasks", gin.H{
		"activity_id": suite.activity.ID,
		"customer_id": suite.customer.ID,
		"assignee":    suite.auditor.ID,
	})
	assert.Equal(suite.T(), http.StatusForbidden, w.Code)
}

func (suite *TaskHandlerTestSuite) TestCreateTask_InvalidBody() {
	w := suite.do("Admin", http.MethodPost, "/api/tasks", gin.H{"activity_id": suite.activity.ID})
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)

	w = suite.do("Admin", http.MethodPost, "/api/tasks", gin.H{
		"activity_id": suite.activity.ID,
		"customer_id": suite.customer.ID,
		"assignee":    suite.auditor.ID,
		"due_date":    "15/11/2024",
	})
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
}

// Test GetTask
func (suite *TaskHandlerTestSuite) TestGetTask_HiddenFromOtherActors() {
	task := suite.createTask()
	suite.createActor("Ravi", constants.AuditorRoleID)

	w := suite.do("Asha", http.MethodGet, suite.url("/tasks/:id", task.ID), nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)

	w = suite.do("Ravi", http.MethodGet, suite.url("/tasks/:id", task.ID), nil)
	assert.Equal(suite.T(), http.StatusNotFound, w.Code)
	assert.Equal(suite.T(), apierrors.ErrCodeNotFound, suite.decodeError(w).Code)

	w = suite.do("Asha", http.MethodGet, "/api/tasks/abc", nil)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
}

// Test ListTasks
func (suite *TaskHandlerTestSuite) TestListTasks_Pagination() {
	for i := 0; i < 3; i++ {
		suite.createTask()
	}

	w := suite.do("Asha", http.MethodGet, "/api/tasks?page=2&limit=2", nil)
	suite.Require().Equal(http.StatusOK, w.Code)

	var resp dto.TaskListResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(suite.T(), resp.Tasks, 1)
	assert.Equal(suite.T(), int64(3), resp.Pagination.Total)
	assert.Equal(suite.T(), 2, resp.Pagination.TotalPages)

	w = suite.do("Asha", http.MethodGet, "/api/tasks?status=Archived", nil)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
	assert.Equal(suite.T(), apierrors.ErrCodeValidation, suite.decodeError(w).Code)

	w = suite.do("Admin", http.MethodGet, "/api/tasks?customer_id=x", nil)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
}

// Test UpdateTask
func (suite *TaskHandlerTestSuite) TestUpdateTask_PendingRequiresRemarks() {
	task := suite.createTask()

	w := suite.do("Asha", http.MethodPatch, suite.url("/tasks/:id", task.ID), gin.H{"status": "Pending"})
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
	apiErr := suite.decodeError(w)
	assert.Equal(suite.T(), apierrors.ErrCodeValidation, apiErr.Code)
	assert.Contains(suite.T(), apiErr.Message, "remarks")

	w = suite.do("Asha", http.MethodPatch, suite.url("/tasks/:id", task.ID), gin.H{"status": "Pending", "remarks": "awaiting bank statement"})
	suite.Require().Equal(http.StatusOK, w.Code)

	var updated dto.TaskDTO
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(suite.T(), models.TaskStatusPending, updated.Status)
	assert.Equal(suite.T(), "awaiting bank statement", updated.Remarks)
	assert.Equal(suite.T(), 2, updated.Version)
}

func (suite *TaskHandlerTestSuite) TestUpdateTask_VersionConflict() {
	task := suite.createTask()

	w := suite.do("Asha", http.MethodPatch, suite.url("/tasks/:id", task.ID), gin.H{"status": "WIP", "version": 1})
	suite.Require().Equal(http.StatusOK, w.Code)

	w = suite.do("Asha", http.MethodPatch, suite.url("/tasks/:id", task.ID), gin.H{"status": "Completed", "version": 1})
	assert.Equal(suite.T(), http.StatusConflict, w.Code)
	assert.Equal(suite.T(), apierrors.ErrCodeVersionConflict, suite.decodeError(w).Code)
}

func (suite *TaskHandlerTestSuite) TestUpdateTask_MissingStatus() {
	task := suite.createTask()

	w := suite.do("Asha", http.MethodPatch, suite.url("/tasks/:id", task.ID), gin.H{"remarks": "hello"})
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
}

func (suite *TaskHandlerTestSuite) TestUpdateTask_DueDateRequiresAssignee() {
	task := suite.createTask()

	w := suite.do("Admin", http.MethodPatch, suite.url("/tasks/:id", task.ID), gin.H{
		"status":   "WIP",
		"due_date": "2024-12-01",
	})
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
	assert.Equal(suite.T(), apierrors.ErrCodeInvalidInput, suite.decodeError(w).Code)

	var stored models.Task
	suite.Require().NoError(suite.db.First(&stored, task.ID).Error)
	assert.Equal(suite.T(), models.TaskStatusYetToStart, stored.Status)
	suite.Require().NotNil(stored.DueDate)
	assert.Equal(suite.T(), "2024-11-15", stored.DueDate.Format("2006-01-02"))
}

func (suite *TaskHandlerTestSuite) TestUpdateTask_Reassignment() {
	task := suite.createTask()
	ravi := suite.createActor("Ravi", constants.AuditorRoleID)

	w := suite.do("Asha", http.MethodPatch, suite.url("/tasks/:id", task.ID), gin.H{"assignee": ravi.ID})
	assert.Equal(suite.T(), http.StatusForbidden, w.Code)

	w = suite.do("Admin", http.MethodPatch, suite.url("/tasks/:id", task.ID), gin.H{
		"assignee": ravi.ID,
		"due_date": "2024-12-01",
	})
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var updated dto.TaskDTO
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(suite.T(), ravi.ID, updated.AssigneeID)
	assert.Equal(suite.T(), models.TaskStatusYetToStart, updated.Status)
	assert.Equal(suite.T(), "2024-12-01", updated.DueDate.Format("2006-01-02"))

	w = suite.do("Asha", http.MethodGet, suite.url("/tasks/:id", task.ID), nil)
	assert.Equal(suite.T(), http.StatusNotFound, w.Code)
}

// Test UpdateReviewStatus
func (suite *TaskHandlerTestSuite) TestReviewFlow() {
	task := suite.createTask()

	w := suite.do("Asha", http.MethodPatch, suite.url("/tasks/:id", task.ID), gin.H{"status": "Completed"})
	suite.Require().Equal(http.StatusOK, w.Code)

	w = suite.do("Asha", http.MethodPatch, suite.url("/tasks/:id/review-status", task.ID), gin.H{"reviewer_status": "accepted"})
	assert.Equal(suite.T(), http.StatusForbidden, w.Code)

	w = suite.do("Meera", http.MethodPatch, suite.url("/tasks/:id/review-status", task.ID), gin.H{"reviewer_status": "rejected"})
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)

	w = suite.do("Meera", http.MethodPatch, suite.url("/tasks/:id/review-status", task.ID), gin.H{
		"reviewer_status": "rejected",
		"comments":        "fix the numbers",
	})
	suite.Require().Equal(http.StatusOK, w.Code)

	var rejected dto.TaskDTO
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &rejected))
	assert.Equal(suite.T(), models.TaskStatusWIP, rejected.Status)
	assert.Equal(suite.T(), models.ReviewerStatusRejected, rejected.ReviewerStatus)
	assert.Equal(suite.T(), "REJECTED: fix the numbers", rejected.Remarks)
	assert.Nil(suite.T(), rejected.ActualDate)

	w = suite.do("Asha", http.MethodPatch, suite.url("/tasks/:id", task.ID), gin.H{"status": "Pending", "remarks": "REJECTED: sneaky"})
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)

	w = suite.do("Admin", http.MethodGet, suite.url("/tasks/:id/audit", task.ID), nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	var history struct {
		Audit []dto.AuditDTO `json:"audit"`
	}
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &history))
	suite.Require().Len(history.Audit, 3)
	assert.Equal(suite.T(), models.AuditActionReviewChanged, history.Audit[2].Action)
}

// Test AssignReviewer
func (suite *TaskHandlerTestSuite) TestAssignReviewer() {
	task := suite.createTask()
	other := suite.createActor("Ravi", constants.AuditorRoleID)

	w := suite.do("Admin", http.MethodPost, suite.url("/tasks/:id/reviewer", task.ID), gin.H{"reviewer_id": other.ID})
	suite.Require().Equal(http.StatusOK, w.Code)

	var updated dto.TaskDTO
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &updated))
	suite.Require().NotNil(updated.Reviewer)
	assert.Equal(suite.T(), "Ravi", updated.Reviewer.Name)

	w = suite.do("Admin", http.MethodPost, suite.url("/tasks/:id/reviewer", task.ID), gin.H{"reviewer_id": 999})
	assert.Equal(suite.T(), http.StatusNotFound, w.Code)
}

// Test subtasks
func (suite *TaskHandlerTestSuite) TestSubtaskProgress() {
	task := suite.createTask()

	w := suite.do("Asha", http.MethodGet, suite.url("/tasks/:id/subtasks", task.ID), nil)
	suite.Require().Equal(http.StatusOK, w.Code)

	var list dto.SubtaskListResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &list))
	suite.Require().Len(list.Subtasks, 3)
	assert.Equal(suite.T(), "Collect invoices", list.Subtasks[0].Name)

	for i, want := range []int{33, 67} {
		w = suite.do("Asha", http.MethodPatch, suite.url("/subtasks/:id", list.Subtasks[i].ID), gin.H{"status": "Completed"})
		suite.Require().Equal(http.StatusOK, w.Code)

		var resp dto.SubtaskUpdateResponse
		suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(suite.T(), want, resp.Progress)
		assert.Equal(suite.T(), models.SubtaskStatusCompleted, resp.Subtask.Status)
	}

	w = suite.do("Asha", http.MethodGet, suite.url("/tasks/:id", task.ID), nil)
	var detail dto.TaskDTO
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &detail))
	assert.Equal(suite.T(), 67, detail.Progress)

	w = suite.do("Asha", http.MethodPatch, suite.url("/subtasks/:id", list.Subtasks[0].ID), gin.H{"status": "Done"})
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
}

// Test ListReviewers
func (suite *TaskHandlerTestSuite) TestListReviewers() {
	w := suite.do("Asha", http.MethodGet, "/api/reviewers", nil)
	suite.Require().Equal(http.StatusOK, w.Code)

	var resp struct {
		Reviewers []dto.ActorDTO `json:"reviewers"`
	}
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(suite.T(), resp.Reviewers, 3)
}

// Test deactivation endpoints
func (suite *TaskHandlerTestSuite) TestDeactivateActor() {
	first := suite.createTask()
	second := suite.createTask()
	done := suite.createTask()
	suite.Require().Equal(http.StatusOK, suite.do("Asha", http.MethodPatch, suite.url("/tasks/:id", second.ID), gin.H{"status": "WIP"}).Code)
	suite.Require().Equal(http.StatusOK, suite.do("Asha", http.MethodPatch, suite.url("/tasks/:id", done.ID), gin.H{"status": "Completed"}).Code)

	w := suite.do("Asha", http.MethodPost, "/api/actors/deactivate", gin.H{"actor_id": suite.auditor.ID})
	assert.Equal(suite.T(), http.StatusForbidden, w.Code)

	w = suite.do("Admin", http.MethodPost, "/api/actors/deactivate", gin.H{"actor_id": suite.auditor.ID})
	suite.Require().Equal(http.StatusOK, w.Code)

	var resp dto.ActorDeactivationResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(suite.T(), "Asha", resp.ActorName)
	assert.Equal(suite.T(), 2, resp.AffectedTasks)
	suite.Require().Len(resp.TaskDetails, 2)
	assert.Equal(suite.T(), first.ID, resp.TaskDetails[0].TaskID)
	assert.Equal(suite.T(), second.ID, resp.TaskDetails[1].TaskID)

	w = suite.do("Admin", http.MethodGet, suite.url("/tasks/:id", second.ID), nil)
	var task dto.TaskDTO
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &task))
	assert.Equal(suite.T(), models.TaskStatusPending, task.Status)
	assert.Equal(suite.T(), "Previous assignee Asha was deactivated", task.Remarks)

	w = suite.do("Admin", http.MethodPost, "/api/actors/deactivate", gin.H{"actor_id": 999})
	assert.Equal(suite.T(), http.StatusNotFound, w.Code)
}

func (suite *TaskHandlerTestSuite) TestDeleteCustomer() {
	suite.createTask()

	w := suite.do("Admin", http.MethodDelete, suite.url("/customers/:id", suite.customer.ID), nil)
	suite.Require().Equal(http.StatusConflict, w.Code)
	apiErr := suite.decodeError(w)
	assert.Equal(suite.T(), apierrors.ErrCodeConflict, apiErr.Code)
	assert.Contains(suite.T(), apiErr.Message, "1 open tasks")

	w = suite.do("Admin", http.MethodDelete, suite.url("/customers/:id", suite.customer.ID)+"?force=yes", nil)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)

	w = suite.do("Admin", http.MethodDelete, suite.url("/customers/:id", suite.customer.ID)+"?force=true", nil)
	suite.Require().Equal(http.StatusOK, w.Code)

	var resp dto.CustomerDeactivationResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(suite.T(), "Acme Traders", resp.CustomerName)
	assert.Equal(suite.T(), 1, resp.AffectedTasks)
}

// TestTaskHandlerTestSuite runs the test suite
func TestTaskHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(TaskHandlerTestSuite))
}
