package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"parimutuel/database"

	"github.com/go-playground/validator/v10"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL  string `validate:"required"`
	DatabaseName string

	// NATS configuration
	NATSServers string // NATS server addresses (comma-separated); empty keeps events in-process

	// Engine configuration
	LedgerCallTimeout time.Duration `validate:"gt=0"`
	LockWatchInterval time.Duration `validate:"gt=0"`
	MultiplierPlaces  int32         `validate:"gte=1,lte=12"`

	// Logging
	LogLevel string `validate:"oneof=trace debug info warn warning error fatal panic"`

	// OpenTelemetry configuration
	OTelEnabled              bool
	OTelServiceName          string `validate:"required_if=OTelEnabled true"`
	OTelExporterType         string `validate:"oneof=console otlp none"`
	OTelOTLPEndpoint         string `validate:"required_if=OTelExporterType otlp"`
	OTelExportIntervalMillis int    `validate:"gt=0"`

	// Environment
	Environment string `validate:"oneof=development production test"` // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	// If instance is already set (e.g., by tests), return it
	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = Load()
		if err != nil {
			if os.Getenv("GO_TEST") == "1" || os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DatabaseName: os.Getenv("DATABASE_NAME"),

		NATSServers: os.Getenv("NATS_SERVERS"),

		LedgerCallTimeout: 5 * time.Second,
		LockWatchInterval: 5 * time.Second,
		MultiplierPlaces:  4,

		LogLevel: getEnvWithDefault("LOG_LEVEL", "info"),

		OTelEnabled:              os.Getenv("OTEL_ENABLED") == "true",
		OTelServiceName:          getEnvWithDefault("OTEL_SERVICE_NAME", "parimutuel"),
		OTelExporterType:         getEnvWithDefault("OTEL_EXPORTER_TYPE", "console"),
		OTelOTLPEndpoint:         os.Getenv("OTEL_OTLP_ENDPOINT"),
		OTelExportIntervalMillis: 30000,

		Environment: getEnvWithDefault("ENVIRONMENT", "development"),
	}

	var errs []error
	if v := os.Getenv("LEDGER_CALL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("LEDGER_CALL_TIMEOUT: %w", err))
		}
		config.LedgerCallTimeout = d
	}
	if v := os.Getenv("LOCK_WATCH_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("LOCK_WATCH_INTERVAL: %w", err))
		}
		config.LockWatchInterval = d
	}
	if v := os.Getenv("MULTIPLIER_PLACES"); v != "" {
		places, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			errs = append(errs, fmt.Errorf("MULTIPLIER_PLACES: %w", err))
		}
		config.MultiplierPlaces = int32(places)
	}
	if v := os.Getenv("OTEL_EXPORT_INTERVAL_MS"); v != "" {
		interval, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("OTEL_EXPORT_INTERVAL_MS: %w", err))
		}
		config.OTelExportIntervalMillis = interval
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	// If DatabaseName is provided, ensure it's not blank
	if config.DatabaseName != "" && strings.TrimSpace(config.DatabaseName) == "" {
		return nil, fmt.Errorf("DATABASE_NAME cannot be empty when provided")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the configuration. The test environment does not need a
// database.
func (c *Config) Validate() error {
	v := validator.New()
	if c.Environment == "test" {
		err := v.StructExcept(c, "DatabaseURL")
		return formatValidationErrors(err)
	}
	return formatValidationErrors(v.Struct(c))
}

// formatValidationErrors turns validator output into a readable error
func formatValidationErrors(err error) error {
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	messages := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		switch fe.Tag() {
		case "required", "required_if":
			messages = append(messages, fmt.Sprintf("%s is required", fe.Field()))
		case "oneof":
			messages = append(messages, fmt.Sprintf("%s must be one of [%s], got %q", fe.Field(), fe.Param(), fe.Value()))
		default:
			messages = append(messages, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		}
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(messages, "; "))
}

// getEnvWithDefault returns the environment variable value or a default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
// This should only be called from test files
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
// This should only be called from test files
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		LedgerCallTimeout:        time.Second,
		LockWatchInterval:        10 * time.Millisecond,
		MultiplierPlaces:         4,
		LogLevel:                 "debug",
		OTelServiceName:          "parimutuel-test",
		OTelExporterType:         "none",
		OTelExportIntervalMillis: 1000,
		Environment:              "test",
	}
}
