package config

import (
	"testing"
	"time"

	"mlhmc/domain/multilevel"
	"mlhmc/internal/errors"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"DATABASE_URL", "SSL_MODE", "PORT", "RESULTS_PORT", "GIN_MODE",
		"SHUTDOWN_TIMEOUT", "OUTPUT_DIR", "BADGER_DIR", "DEFAULT_SEED",
		"DEFAULT_SAMPLES", "DEFAULT_THERM", "SWEEP_WORKERS",
		"PPROF_PORT", "PPROF_ENABLED",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load with empty env failed: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("default port = %s", cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Errorf("default shutdown timeout = %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Storage.OutputDir != "./runs" {
		t.Errorf("default output dir = %s", cfg.Storage.OutputDir)
	}
	if cfg.Database.URL != "" {
		t.Errorf("default database URL = %q, want empty", cfg.Database.URL)
	}
	if cfg.Sampling.DefaultSeed != 42 || cfg.Sampling.SweepWorkers != 4 {
		t.Errorf("sampling defaults = %+v", cfg.Sampling)
	}
	if cfg.Sampling.DefaultTherm != multilevel.DefaultThermalization {
		t.Errorf("default therm = %d, want %d", cfg.Sampling.DefaultTherm, multilevel.DefaultThermalization)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_URL", "postgres://localhost/mlhmc")
	t.Setenv("DEFAULT_SEED", "-7")
	t.Setenv("SWEEP_WORKERS", "16")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("PPROF_ENABLED", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != "9000" {
		t.Errorf("port = %s", cfg.Server.Port)
	}
	if cfg.Database.URL != "postgres://localhost/mlhmc" {
		t.Errorf("database URL = %s", cfg.Database.URL)
	}
	if cfg.Sampling.DefaultSeed != -7 {
		t.Errorf("seed = %d", cfg.Sampling.DefaultSeed)
	}
	if cfg.Sampling.SweepWorkers != 16 {
		t.Errorf("workers = %d", cfg.Sampling.SweepWorkers)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("shutdown timeout = %v", cfg.Server.ShutdownTimeout)
	}
	if !cfg.Profiling.Enabled {
		t.Error("profiling not enabled")
	}
}

func TestLoadMalformedValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEFAULT_SAMPLES", "not-a-number")
	t.Setenv("SHUTDOWN_TIMEOUT", "soon")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Sampling.DefaultSamples != 1000 {
		t.Errorf("samples = %d, want default 1000", cfg.Sampling.DefaultSamples)
	}
	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Errorf("shutdown timeout = %v, want default", cfg.Server.ShutdownTimeout)
	}
}

func TestLoadRejectsInvalidWorkers(t *testing.T) {
	clearEnv(t)
	t.Setenv("SWEEP_WORKERS", "0")

	_, err := Load()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if errors.GetCode(err) != errors.CodeConfigInvalid {
		t.Errorf("error code = %s", errors.GetCode(err))
	}
}
