package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// AppConfig holds everything read from the environment at startup. Fields
// follow the keys named in the wire spec's configuration surface plus the
// ambient additions (port, timeouts, logging, AI depth) every real
// deployment of this server needs.
type AppConfig struct {
	DBName     string
	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string

	ListenPort int
	AdminPort  int

	SessionTimeoutSeconds       int
	SessionSweepIntervalSeconds int

	LogLevel  string
	LogFormat string
	LogFile   string

	AIDefaultDepth int
}

// Load reads a .env file (if present; a missing file is not an error since
// the process environment may already carry the keys) and then the process
// environment, applying defaults for anything absent.
func Load(envFilePath string) (*AppConfig, error) {
	if envFilePath == "" {
		envFilePath = ".env"
	}
	_ = godotenv.Load(envFilePath) // optional; unknown keys in the file are ignored

	cfg := &AppConfig{
		DBName:                      "chess-app",
		DBUser:                      "postgres",
		DBPassword:                  "",
		DBHost:                      "localhost",
		DBPort:                      "5432",
		ListenPort:                  8080,
		AdminPort:                   8081,
		SessionTimeoutSeconds:       1800,
		SessionSweepIntervalSeconds: 60,
		LogLevel:                    "info",
		LogFormat:                   "legacy",
		LogFile:                     "logs/chessd.log",
		AIDefaultDepth:              2,
	}

	if v := strings.TrimSpace(os.Getenv("DB_NAME")); v != "" {
		cfg.DBName = v
	}
	if v := strings.TrimSpace(os.Getenv("DB_USER")); v != "" {
		cfg.DBUser = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.DBPassword = v
	}
	if v := strings.TrimSpace(os.Getenv("DB_HOST")); v != "" {
		cfg.DBHost = v
	}
	if v := strings.TrimSpace(os.Getenv("DB_PORT")); v != "" {
		cfg.DBPort = v
	}

	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ListenPort = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ADMIN_PORT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AdminPort = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("SESSION_TIMEOUT_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SessionTimeoutSeconds = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("SESSION_SWEEP_INTERVAL_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SessionSweepIntervalSeconds = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("LOG_FORMAT")); v != "" {
		cfg.LogFormat = v
	}
	if v := strings.TrimSpace(os.Getenv("LOG_FILE")); v != "" {
		cfg.LogFile = v
	}
	if v := strings.TrimSpace(os.Getenv("AI_DEFAULT_DEPTH")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			if n < 1 {
				n = 1
			}
			if n > 4 {
				n = 4
			}
			cfg.AIDefaultDepth = n
		}
	}

	return cfg, nil
}

// ConnString builds a lib/pq keyword connection string from the individual
// DB_* settings, matching the original's per-key .env convention rather
// than a single DATABASE_URL.
func (c *AppConfig) ConnString() string {
	password := c.DBPassword
	if password == "" {
		return fmt.Sprintf("dbname=%s user=%s host=%s port=%s sslmode=disable",
			c.DBName, c.DBUser, c.DBHost, c.DBPort)
	}
	return fmt.Sprintf("dbname=%s user=%s password=%s host=%s port=%s sslmode=disable",
		c.DBName, c.DBUser, password, c.DBHost, c.DBPort)
}
