package container

import (
	"context"
	"testing"
	"time"

	"mlhmc/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{
			Port:            "0",
			ResultsPort:     "0",
			ShutdownTimeout: time.Second,
		},
		Storage: config.StorageConfig{
			OutputDir: t.TempDir(),
		},
		Sampling: config.SamplingConfig{
			DefaultSeed:    42,
			DefaultSamples: 10,
			DefaultTherm:   2,
			SweepWorkers:   2,
		},
	}
}

func TestNewWithoutDatabase(t *testing.T) {
	c, err := New(testConfig(t), Options{CodeVersion: "test"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Shutdown(context.Background())

	if c.DB != nil {
		t.Error("expected no database connection without DATABASE_URL")
	}
	if c.Registry == nil {
		t.Error("expected in-memory registry fallback")
	}
	if c.RunService == nil || c.SweepService == nil {
		t.Error("services not wired")
	}
	if c.Hub != nil {
		t.Error("hub attached without WithHub")
	}
}

func TestNewWithHub(t *testing.T) {
	c, err := New(testConfig(t), Options{WithHub: true})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Shutdown(context.Background())

	if c.Hub == nil {
		t.Fatal("hub not attached")
	}
}

func TestNilConfigRejected(t *testing.T) {
	if _, err := New(nil, Options{}); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestFilesystemSinkProvider(t *testing.T) {
	c, err := New(testConfig(t), Options{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Shutdown(context.Background())

	sink, err := c.sinkProvider()("run-1")
	if err != nil {
		t.Fatalf("sink provider failed: %v", err)
	}
	ns, err := sink.Namespace("level0")
	if err != nil {
		t.Fatalf("namespace failed: %v", err)
	}
	if err := ns.WriteSeries("values", []float64{1, 2, 3}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if !sink.Has("level0") {
		t.Error("level0 namespace not visible after write")
	}
}

func TestBadgerSinkProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.BadgerDir = t.TempDir()

	c, err := New(cfg, Options{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Shutdown(context.Background())

	if c.Badger == nil {
		t.Fatal("badger sink not opened")
	}
	sink, err := c.sinkProvider()("run-1")
	if err != nil {
		t.Fatalf("sink provider failed: %v", err)
	}
	ns, err := sink.Namespace("level0")
	if err != nil {
		t.Fatalf("namespace failed: %v", err)
	}
	if err := ns.WriteAttrs(map[string]any{"gamma": 2}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}
