package main

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/prosync/audit-task-api/internal/config"
	"github.com/prosync/audit-task-api/internal/constants"
	"github.com/prosync/audit-task-api/internal/handlers"
	"github.com/prosync/audit-task-api/internal/middleware"
	"github.com/prosync/audit-task-api/internal/repository"
	"github.com/prosync/audit-task-api/internal/services"
	"github.com/prosync/audit-task-api/internal/workflow"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newRouter(cfg *config.Config, db *gorm.DB, store sessions.Store, log *zap.Logger) *gin.Engine {
	// Initialize repositories and services
	tasks := repository.NewTaskRepository(db)
	actors := repository.NewActorRepository(db)
	customers := repository.NewCustomerRepository(db)
	activities := repository.NewActivityRepository(db)

	machine := workflow.NewMachine()
	notifier := services.NewLogNotifier(log.Named("notify"))

	taskService := services.NewTaskService(tasks, actors, customers, activities, machine, notifier, log.Named("tasks"))
	deactivationService := services.NewDeactivationService(tasks, actors, customers, machine, notifier, log.Named("deactivation"), cfg.CascadeMaxRetries)

	// Initialize handlers
	taskHandler := handlers.NewTaskHandler(taskService)
	subtaskHandler := handlers.NewSubtaskHandler(taskService)
	actorHandler := handlers.NewActorHandler(deactivationService)
	customerHandler := handlers.NewCustomerHandler(deactivationService)

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logging(log.Named("http")), gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSAllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", constants.HeaderRequestID},
		ExposeHeaders:    []string{constants.HeaderRequestID, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(sessions.Sessions(constants.SessionCookieName, store))

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Audit Task API is running",
		})
	})

	jwtSecret := []byte(cfg.JWTSecret)

	// API routes (protected)
	api := r.Group("/api")
	api.Use(middleware.RequireActor(jwtSecret))
	{
		tasksGroup := api.Group("/tasks")
		{
			tasksGroup.GET("", taskHandler.ListTasks)
			tasksGroup.POST("", middleware.RequireAdmin(), taskHandler.CreateTask)
			tasksGroup.GET("/:id", taskHandler.GetTask)
			tasksGroup.PATCH("/:id", taskHandler.UpdateTask)
			tasksGroup.PATCH("/:id/review-status", taskHandler.UpdateReviewStatus)
			tasksGroup.POST("/:id/reviewer", middleware.RequireAdmin(), taskHandler.AssignReviewer)
			tasksGroup.GET("/:id/subtasks", taskHandler.ListSubtasks)
			tasksGroup.GET("/:id/audit", taskHandler.ListAudit)
		}

		api.PATCH("/subtasks/:id", subtaskHandler.UpdateStatus)
		api.GET("/reviewers", taskHandler.ListReviewers)

		api.POST("/actors/deactivate", middleware.RequireAdmin(), actorHandler.Deactivate)
		api.DELETE("/customers/:id", middleware.RequireAdmin(), customerHandler.Delete)
	}

	return r
}
