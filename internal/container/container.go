// Package container wires configuration, adapters and services into one
// application graph shared by every entrypoint.
package container

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"mlhmc/adapters/postgres"
	"mlhmc/adapters/rng"
	"mlhmc/adapters/sink/badgersink"
	"mlhmc/adapters/sink/fssink"
	"mlhmc/app"
	"mlhmc/internal"
	"mlhmc/internal/config"
	"mlhmc/internal/sse"
	"mlhmc/internal/testkit"
	"mlhmc/ports"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Log    *internal.Logger

	// Infrastructure. DB is nil when running without a database; the
	// registry then falls back to the in-memory implementation.
	DB     *sqlx.DB
	Badger *badgersink.Sink

	// Ports
	Registry ports.RunRegistry
	RNG      ports.RNGPort
	Hub      *sse.Hub

	// Services
	RunService   *app.RunService
	SweepService *app.SweepService
}

// Options adjust how the container composes its services
type Options struct {
	// CodeVersion is stamped into every run manifest
	CodeVersion string

	// WithHub attaches the SSE hub as the run progress port
	WithHub bool

	// ExportExcel and WriteReport toggle per-run file output
	ExportExcel bool
	WriteReport bool
}

// New builds the application graph from configuration. When the database URL
// is empty the registry is in-memory and runs are not persisted across
// processes; everything else works identically.
func New(cfg *config.Config, opts Options) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	c := &Container{
		Config: cfg,
		Log:    internal.DefaultLogger.Component("Container"),
		RNG:    rng.NewSeededProvider(),
	}

	if cfg.Database.URL != "" {
		db, err := sqlx.Connect("postgres", cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("connect to run registry database: %w", err)
		}
		c.DB = db
		c.Registry = postgres.NewRunRepository(db)
		c.Log.Info("using postgres run registry")
	} else {
		c.Registry = testkit.NewMemoryRegistry()
		c.Log.Info("no DATABASE_URL set, using in-memory run registry")
	}

	if cfg.Storage.BadgerDir != "" {
		b, err := badgersink.Open(cfg.Storage.BadgerDir)
		if err != nil {
			c.close()
			return nil, fmt.Errorf("open badger sink: %w", err)
		}
		c.Badger = b
	}

	var progress ports.ProgressPort
	if opts.WithHub {
		c.Hub = sse.NewHub()
		progress = c.Hub
	}

	c.RunService = app.NewRunService(c.Registry, c.RNG, progress,
		c.sinkProvider(), internal.DefaultLogger, app.RunServiceConfig{
			OutputDir:   cfg.Storage.OutputDir,
			CodeVersion: opts.CodeVersion,
			ExportExcel: opts.ExportExcel,
			WriteReport: opts.WriteReport,
		})

	c.SweepService = app.NewSweepService(c.RunService, internal.DefaultLogger,
		app.SweepServiceConfig{
			OutputDir:   cfg.Storage.OutputDir,
			Workers:     cfg.Sampling.SweepWorkers,
			WriteReport: opts.WriteReport,
		})

	return c, nil
}

// sinkProvider picks the measurement sink per run: a namespace of the shared
// badger store when one is configured, a run directory on disk otherwise.
func (c *Container) sinkProvider() app.SinkProvider {
	return func(runID string) (ports.Sink, error) {
		if c.Badger != nil {
			return c.Badger.Namespace(runID)
		}
		return fssink.New(filepath.Join(c.Config.Storage.OutputDir, runID, "measurements"))
	}
}

// Shutdown releases every held resource
func (c *Container) Shutdown(ctx context.Context) error {
	return c.close()
}

func (c *Container) close() error {
	var first error
	if c.Badger != nil {
		if err := c.Badger.Close(); err != nil && first == nil {
			first = err
		}
		c.Badger = nil
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil && first == nil {
			first = err
		}
		c.DB = nil
	}
	return first
}
