package main

import (
	"log"
	"net/http"

	"github.com/gin-contrib/sessions"
	redisStore "github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"
	"github.com/prosync/audit-task-api/internal/config"
	"github.com/prosync/audit-task-api/internal/database"
	"github.com/prosync/audit-task-api/internal/logger"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg := config.Load()

	logg, err := logger.New(cfg.LogDevelopment)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logg.Sync()

	if err := cfg.Validate(); err != nil {
		logg.Fatal("invalid configuration", zap.Error(err))
	}

	// Set Gin mode
	gin.SetMode(cfg.GinMode)

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		logg.Fatal("failed to connect to database", zap.String("driver", cfg.DBDriver), zap.Error(err))
	}

	// Run migrations
	if err := database.Migrate(db); err != nil {
		logg.Fatal("failed to run migrations", zap.Error(err))
	}

	// Setup session middleware with Redis; sessions are written by the login service
	redisAddr := cfg.RedisHost + ":" + cfg.RedisPort
	store, err := redisStore.NewStore(
		10,                        // Redis pool size
		"tcp",                     // network type
		redisAddr,                 // Redis address from config
		"",                        // password (empty = no password)
		[]byte(cfg.SessionSecret), // authentication key
	)
	if err != nil {
		logg.Fatal("failed to create Redis store", zap.String("addr", redisAddr), zap.Error(err))
	}
	// Configure session options based on environment
	isProduction := cfg.GinMode == gin.ReleaseMode
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 days
		HttpOnly: true,
		Secure:   isProduction,
		SameSite: http.SameSiteLaxMode,
	})

	r := newRouter(cfg, db, store, logg)

	// Start server
	logg.Info("server starting", zap.String("addr", cfg.ServerAddr), zap.String("db_driver", cfg.DBDriver))
	if err := r.Run(cfg.ServerAddr); err != nil {
		logg.Fatal("failed to start server", zap.Error(err))
	}
}
