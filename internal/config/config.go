package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Lockout  LockoutConfig
	Email    EmailConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

// LockoutConfig holds the progressive lockout schedule and the operational
// knobs around it. Thresholds are validated at load time; an inverted
// schedule is a deployment error, not something the runtime works around.
type LockoutConfig struct {
	SoftThreshold  int           // failures before the short lockout
	HardThreshold  int           // failures before the long lockout
	SoftDuration   time.Duration // short lockout length
	HardDuration   time.Duration // long lockout length
	MaxAttempts    int           // budget reported to callers
	DedupWindow    time.Duration // suppression window for duplicate calls
	CacheTTL       time.Duration // cache-tier entry lifetime
	DurableTimeout time.Duration // per-call budget for durable-tier I/O
	ReaperInterval time.Duration // stale-row sweep cadence
}

type EmailConfig struct {
	Enabled     bool
	AWSRegion   string
	FromAddress string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "bastion"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:     getEnv("PORT", "8080"),
			Env:      env,
			LogLevel: getEnv("LOG_LEVEL", "info"),
		},
		Lockout: LockoutConfig{
			SoftThreshold:  getEnvAsInt("LOCKOUT_SOFT_THRESHOLD", 3),
			HardThreshold:  getEnvAsInt("LOCKOUT_HARD_THRESHOLD", 5),
			SoftDuration:   getEnvAsDuration("LOCKOUT_SOFT_DURATION", 5*time.Minute),
			HardDuration:   getEnvAsDuration("LOCKOUT_HARD_DURATION", 30*time.Minute),
			MaxAttempts:    getEnvAsInt("LOCKOUT_MAX_ATTEMPTS", 5),
			DedupWindow:    getEnvAsDuration("LOCKOUT_DEDUP_WINDOW", 3*time.Second),
			CacheTTL:       getEnvAsDuration("LOCKOUT_CACHE_TTL", 15*time.Minute),
			DurableTimeout: getEnvAsDuration("LOCKOUT_DB_TIMEOUT", 2*time.Second),
			ReaperInterval: getEnvAsDuration("LOCKOUT_REAPER_INTERVAL", 1*time.Hour),
		},
		Email: EmailConfig{
			Enabled:     getEnvAsBool("EMAIL_ENABLED", false),
			AWSRegion:   getEnv("AWS_REGION", "us-east-1"),
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateLockout(&cfg.Lockout); err != nil {
		return nil, err
	}

	if cfg.Email.Enabled && cfg.Email.FromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when EMAIL_ENABLED=true")
	}

	return cfg, nil
}

// validateLockout rejects schedules the policy cannot express
func validateLockout(lc *LockoutConfig) error {
	if lc.SoftThreshold < 1 {
		return fmt.Errorf("LOCKOUT_SOFT_THRESHOLD must be at least 1 (got %d)", lc.SoftThreshold)
	}
	if lc.HardThreshold <= lc.SoftThreshold {
		return fmt.Errorf("LOCKOUT_HARD_THRESHOLD (%d) must be greater than LOCKOUT_SOFT_THRESHOLD (%d)",
			lc.HardThreshold, lc.SoftThreshold)
	}
	if lc.HardDuration <= lc.SoftDuration {
		return fmt.Errorf("LOCKOUT_HARD_DURATION (%s) must be greater than LOCKOUT_SOFT_DURATION (%s)",
			lc.HardDuration, lc.SoftDuration)
	}
	if lc.MaxAttempts < lc.SoftThreshold {
		return fmt.Errorf("LOCKOUT_MAX_ATTEMPTS (%d) must be at least LOCKOUT_SOFT_THRESHOLD (%d)",
			lc.MaxAttempts, lc.SoftThreshold)
	}
	if lc.DedupWindow <= 0 || lc.DurableTimeout <= 0 || lc.CacheTTL <= 0 || lc.ReaperInterval <= 0 {
		return fmt.Errorf("lockout windows and intervals must be positive")
	}
	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}
