package config

import (
	"os"
	"strconv"
	"time"

	"mlhmc/domain/multilevel"
	"mlhmc/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Storage   StorageConfig
	Sampling  SamplingConfig
	Profiling ProfilingConfig
}

// DatabaseConfig holds run registry connection settings. An empty URL is
// valid: the application falls back to the in-memory registry.
type DatabaseConfig struct {
	URL     string
	SSLMode string
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port            string
	ResultsPort     string
	GinMode         string
	ShutdownTimeout time.Duration
}

// StorageConfig holds result storage locations
type StorageConfig struct {
	OutputDir string
	BadgerDir string
}

// SamplingConfig holds defaults for run execution
type SamplingConfig struct {
	DefaultSeed    int64
	DefaultSamples int
	DefaultTherm   int
	SweepWorkers   int
}

// ProfilingConfig holds performance profiling settings
type ProfilingConfig struct {
	Port    string
	Enabled bool
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Database:  loadDatabaseConfig(),
		Server:    loadServerConfig(),
		Storage:   loadStorageConfig(),
		Sampling:  loadSamplingConfig(),
		Profiling: loadProfilingConfig(),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:     getEnvOrDefault("DATABASE_URL", ""),
		SSLMode: getEnvOrDefault("SSL_MODE", "disable"),
	}
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Port:            getEnvOrDefault("PORT", "8080"),
		ResultsPort:     getEnvOrDefault("RESULTS_PORT", "8081"),
		GinMode:         getEnvOrDefault("GIN_MODE", "debug"),
		ShutdownTimeout: getEnvDurationOrDefault("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func loadStorageConfig() StorageConfig {
	return StorageConfig{
		OutputDir: getEnvOrDefault("OUTPUT_DIR", "./runs"),
		BadgerDir: getEnvOrDefault("BADGER_DIR", ""),
	}
}

func loadSamplingConfig() SamplingConfig {
	return SamplingConfig{
		DefaultSeed:    getEnvInt64OrDefault("DEFAULT_SEED", 42),
		DefaultSamples: getEnvIntOrDefault("DEFAULT_SAMPLES", 1000),
		DefaultTherm:   getEnvIntOrDefault("DEFAULT_THERM", multilevel.DefaultThermalization),
		SweepWorkers:   getEnvIntOrDefault("SWEEP_WORKERS", 4),
	}
}

func loadProfilingConfig() ProfilingConfig {
	return ProfilingConfig{
		Port:    getEnvOrDefault("PPROF_PORT", "6060"),
		Enabled: getEnvBoolOrDefault("PPROF_ENABLED", false),
	}
}

func validateConfig(config *Config) error {
	if config.Server.Port == "" {
		return errors.ConfigInvalid("server port is required")
	}
	if config.Storage.OutputDir == "" {
		return errors.ConfigInvalid("output directory is required")
	}
	if config.Sampling.SweepWorkers < 1 {
		return errors.ConfigInvalid("sweep workers must be at least 1")
	}
	if config.Sampling.DefaultSamples < 0 || config.Sampling.DefaultTherm < 0 {
		return errors.ConfigInvalid("sample counts cannot be negative")
	}
	if config.Server.ShutdownTimeout <= 0 {
		return errors.ConfigInvalid("shutdown timeout must be positive")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
