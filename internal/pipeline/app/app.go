// Package app wires configuration, the run store, the Databricks trigger
// and the scheduler behind the pipeline command line.
package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/lakehouse/internal/logging"
	"github.com/dmitrijs2005/lakehouse/internal/pipeline/config"
	"github.com/dmitrijs2005/lakehouse/internal/pipeline/databricks"
	"github.com/dmitrijs2005/lakehouse/internal/pipeline/definition"
	"github.com/dmitrijs2005/lakehouse/internal/pipeline/graph"
	"github.com/dmitrijs2005/lakehouse/internal/pipeline/runner"
	"github.com/dmitrijs2005/lakehouse/internal/pipeline/runstore"
)

// StoreFactory opens the run store; close releases it.
type StoreFactory func(ctx context.Context, cfg *config.Config) (store runstore.Repository, close func() error, err error)

type TriggerFactory func(ctx context.Context, cfg *config.Config, logger logging.Logger) (runner.Trigger, error)

type App struct {
	out    io.Writer
	errOut io.Writer

	openStore  StoreFactory
	newTrigger TriggerFactory
	now        func() time.Time

	cfg    *config.Config
	wf     *graph.Workflow
	logger logging.Logger
}

func New(out, errOut io.Writer) *App {
	return &App{
		out:        out,
		errOut:     errOut,
		openStore:  OpenStore,
		newTrigger: NewDatabricksTrigger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (a *App) WithStoreFactory(f StoreFactory) *App {
	a.openStore = f
	return a
}

// OpenStore returns the Postgres store when a DSN is configured and an
// in-memory store otherwise.
func OpenStore(ctx context.Context, cfg *config.Config) (runstore.Repository, func() error, error) {
	if cfg.DatabaseDSN == "" {
		return runstore.NewMemoryRepository(), func() error { return nil }, nil
	}
	repo, db, err := runstore.OpenPostgres(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, nil, err
	}
	return repo, db.Close, nil
}

func NewDatabricksTrigger(ctx context.Context, cfg *config.Config, logger logging.Logger) (runner.Trigger, error) {
	conns := make(map[string]databricks.Connection, len(cfg.Connections))
	for id, c := range cfg.Connections {
		conns[id] = databricks.Connection{Host: c.Host, Token: c.Token}
	}
	clients, err := databricks.NewConnections(conns)
	if err != nil {
		return nil, err
	}
	logger.Debug(ctx, "databricks connections ready", "count", len(conns))
	return databricks.NewTrigger(clients, cfg.PollInterval, logger), nil
}

// setup loads configuration and builds the workflow. logLevel, when set,
// overrides the configured level.
func (a *App) setup(opts config.Options, logLevel string) error {
	cfg, err := config.Load(opts)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	wf, err := definition.Build(definition.Params{
		Owner:      cfg.Owner,
		ConnID:     definition.DefaultConnID,
		JobIDs:     cfg.JobIDs,
		RetryDelay: cfg.RetryDelay,
	})
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.wf = wf
	a.logger = logging.New(cfg.LogLevel, a.errOut)
	return nil
}

func (a *App) render() error {
	return a.wf.Render(a.out)
}

func (a *App) withRunner(ctx context.Context, fn func(store runstore.Repository, r *runner.Runner) error) error {
	store, closeStore, err := a.openStore(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("open run store: %w", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			a.logger.Warn(ctx, "failed to close run store", "error", err)
		}
	}()

	trigger, err := a.newTrigger(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	return fn(store, runner.New(store, trigger, a.logger))
}
