package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NewRelic NewRelicConfig
	Engine   EngineConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// EngineConfig holds the trip lifecycle and notification engine knobs.
type EngineConfig struct {
	// ConfirmationDeadlineOffset is how long before the scheduled pickup
	// a confirmation request expires.
	ConfirmationDeadlineOffset time.Duration

	// ExpirySweepInterval is how often the expiry sweeper runs.
	ExpirySweepInterval time.Duration

	// DeliveryTimeout bounds one outbound gateway delivery attempt.
	DeliveryTimeout time.Duration

	// DeliveryWorkers is the size of the notification worker pool.
	DeliveryWorkers int

	// DeliveryQueueSize is the capacity of the pending delivery queue.
	DeliveryQueueSize int

	// TripLockTTL bounds how long a per-trip lock can be held.
	TripLockTTL time.Duration
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "medtransit"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "medtransit-engine"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		Engine: EngineConfig{
			ConfirmationDeadlineOffset: getDurationEnv("CONFIRMATION_DEADLINE_OFFSET", 2*time.Hour),
			ExpirySweepInterval:        getDurationEnv("EXPIRY_SWEEP_INTERVAL", time.Minute),
			DeliveryTimeout:            getDurationEnv("DELIVERY_TIMEOUT", 15*time.Second),
			DeliveryWorkers:            getIntEnv("DELIVERY_WORKERS", 4),
			DeliveryQueueSize:          getIntEnv("DELIVERY_QUEUE_SIZE", 256),
			TripLockTTL:                getDurationEnv("TRIP_LOCK_TTL", 10*time.Second),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
