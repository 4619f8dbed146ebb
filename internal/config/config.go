package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/cyans/todo-app-sub000/internal/logger"
	"gopkg.in/yaml.v3"
)

const (
	// StorageDriverPostgres stores todos in PostgreSQL
	StorageDriverPostgres = "postgres"
	// StorageDriverMemory keeps todos in process memory
	StorageDriverMemory = "memory"
)

// Config holds application configuration
type Config struct {
	DatabaseURL      string        `yaml:"database_url"`
	StorageDriver    string        `yaml:"storage_driver"`
	AutoMigrate      bool          `yaml:"auto_migrate"`
	ServerPort       string        `yaml:"server_port"`
	FrontendURL      string        `yaml:"frontend_url"`
	EnableHSTS       bool          `yaml:"enable_hsts"`
	RedisURL         string        `yaml:"redis_url"`
	RateLimit        string        `yaml:"rate_limit"`
	RabbitMQURL      string        `yaml:"rabbitmq_url"`
	RabbitMQPrefetch int           `yaml:"rabbitmq_prefetch"`
	AutoArchiveAfter time.Duration `yaml:"auto_archive_after"`
	DLQGCInterval    time.Duration `yaml:"dlq_gc_interval"`
	DLQRetention     time.Duration `yaml:"dlq_retention"`
	SearchCacheTTL   time.Duration `yaml:"search_cache_ttl"`
	SearchCacheSize  int           `yaml:"search_cache_size"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	OpenAPIPath      string        `yaml:"openapi_path"`
	WorkerDebugMode  bool          `yaml:"worker_debug_mode"`
	ServerDebugMode  bool          `yaml:"server_debug_mode"`
	LogFormat        string        `yaml:"log_format"`
	OTELEnabled      bool          `yaml:"otel_enabled"`
	OTELEndpoint     string        `yaml:"otel_endpoint"`
	OTELSampleRatio  float64       `yaml:"otel_sample_ratio"`
}

// Defaults returns the configuration used when neither a file nor the
// environment sets a value
func Defaults() *Config {
	return &Config{
		StorageDriver:    StorageDriverPostgres,
		ServerPort:       "8080",
		FrontendURL:      "http://localhost:3000",
		RateLimit:        "100-M",
		RabbitMQPrefetch: 1,
		AutoArchiveAfter: 30 * 24 * time.Hour,
		DLQGCInterval:    time.Hour,
		DLQRetention:     7 * 24 * time.Hour,
		SearchCacheTTL:   5 * time.Minute,
		SearchCacheSize:  100,
		RequestTimeout:   30 * time.Second,
		OpenAPIPath:      "api/openapi/openapi.yaml",
		LogFormat:        logger.FormatJSON,
		OTELSampleRatio:  1.0,
	}
}

// Load loads configuration. Values from the YAML file named by CONFIG_FILE,
// if any, replace the defaults; environment variables replace both.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.StorageDriver = getEnv("STORAGE_DRIVER", cfg.StorageDriver)
	cfg.AutoMigrate = getEnvBool("AUTO_MIGRATE", cfg.AutoMigrate)
	cfg.ServerPort = getEnv("SERVER_PORT", cfg.ServerPort)
	cfg.FrontendURL = getEnv("FRONTEND_URL", cfg.FrontendURL)
	cfg.EnableHSTS = getEnvBool("ENABLE_HSTS", cfg.EnableHSTS)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.RateLimit = getEnv("RATE_LIMIT", cfg.RateLimit)
	cfg.RabbitMQURL = getEnv("RABBITMQ_URL", cfg.RabbitMQURL)
	cfg.RabbitMQPrefetch = getEnvInt("RABBITMQ_PREFETCH", cfg.RabbitMQPrefetch)
	cfg.AutoArchiveAfter = getEnvDuration("AUTO_ARCHIVE_AFTER", cfg.AutoArchiveAfter)
	cfg.DLQGCInterval = getEnvDuration("DLQ_GC_INTERVAL", cfg.DLQGCInterval)
	cfg.DLQRetention = getEnvDuration("DLQ_RETENTION", cfg.DLQRetention)
	cfg.SearchCacheTTL = getEnvDuration("SEARCH_CACHE_TTL", cfg.SearchCacheTTL)
	cfg.SearchCacheSize = getEnvInt("SEARCH_CACHE_SIZE", cfg.SearchCacheSize)
	cfg.RequestTimeout = getEnvDuration("REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.OpenAPIPath = getEnv("OPENAPI_PATH", cfg.OpenAPIPath)
	cfg.WorkerDebugMode = getEnvBool("WORKER_DEBUG_MODE", cfg.WorkerDebugMode)
	cfg.ServerDebugMode = getEnvBool("SERVER_DEBUG_MODE", cfg.ServerDebugMode)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)
	cfg.OTELEnabled = getEnvBool("OTEL_ENABLED", cfg.OTELEnabled)
	cfg.OTELEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTELEndpoint)
	cfg.OTELSampleRatio = getEnvFloat("OTEL_SAMPLE_RATIO", cfg.OTELSampleRatio)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate reports the first invalid setting
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case StorageDriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the %s storage driver", StorageDriverPostgres)
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q (must be %s or %s)", c.StorageDriver, StorageDriverPostgres, StorageDriverMemory)
	}

	if c.SearchCacheSize <= 0 {
		return fmt.Errorf("SEARCH_CACHE_SIZE must be positive, got %d", c.SearchCacheSize)
	}
	if c.SearchCacheTTL < 0 {
		return fmt.Errorf("SEARCH_CACHE_TTL must not be negative, got %s", c.SearchCacheTTL)
	}
	if c.AutoArchiveAfter < 0 {
		return fmt.Errorf("AUTO_ARCHIVE_AFTER must not be negative, got %s", c.AutoArchiveAfter)
	}
	if c.RabbitMQPrefetch <= 0 {
		return fmt.Errorf("RABBITMQ_PREFETCH must be positive, got %d", c.RabbitMQPrefetch)
	}
	if c.OTELSampleRatio < 0 || c.OTELSampleRatio > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATIO must be between 0 and 1, got %v", c.OTELSampleRatio)
	}
	if c.LogFormat != logger.FormatJSON && c.LogFormat != logger.FormatConsole {
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
