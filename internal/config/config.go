package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/prosync/audit-task-api/internal/constants"
)

type Config struct {
	DBDriver           string
	DBHost             string
	DBPort             string
	DBUser             string
	DBPassword         string
	DBName             string
	DBSSLMode          string
	SQLitePath         string
	RedisHost          string
	RedisPort          string
	SessionSecret      string
	JWTSecret          string
	GinMode            string
	ServerAddr         string
	CORSAllowedOrigins []string
	LogDevelopment     bool
	CascadeMaxRetries  int
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		DBDriver:           getEnv("DB_DRIVER", "mysql"),
		DBHost:             getEnv("DB_HOST", "localhost"),
		DBPort:             getEnv("DB_PORT", "3306"),
		DBUser:             getEnv("DB_USER", "audituser"),
		DBPassword:         getEnv("DB_PASSWORD", "auditpassword"),
		DBName:             getEnv("DB_NAME", "audit_tasks"),
		DBSSLMode:          getEnv("DB_SSLMODE", "disable"),
		SQLitePath:         getEnv("SQLITE_PATH", "audit_tasks.db"),
		RedisHost:          getEnv("REDIS_HOST", "localhost"),
		RedisPort:          getEnv("REDIS_PORT", "6379"),
		SessionSecret:      getEnv("SESSION_SECRET", "default-secret-key-change-me"),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		GinMode:            getEnv("GIN_MODE", "debug"),
		ServerAddr:         getEnv("SERVER_ADDR", ":8080"),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		LogDevelopment:     getEnvBool("LOG_DEVELOPMENT", true),
		CascadeMaxRetries:  getEnvInt("CASCADE_MAX_RETRIES", constants.DefaultCascadeMaxRetries),
	}
}

// Validate reports settings the server cannot run without.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil || value < 0 {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
