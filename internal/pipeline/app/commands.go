package app

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/lakehouse/internal/common"
	"github.com/dmitrijs2005/lakehouse/internal/pipeline/config"
	"github.com/dmitrijs2005/lakehouse/internal/pipeline/models"
	"github.com/dmitrijs2005/lakehouse/internal/pipeline/runner"
	"github.com/dmitrijs2005/lakehouse/internal/pipeline/runstore"
	"github.com/dmitrijs2005/lakehouse/internal/pipeline/schedule"
	"github.com/dmitrijs2005/lakehouse/internal/pipeline/scheduler"
	"github.com/urfave/cli/v2"
)

const dateLayout = time.DateOnly

// CLI builds the command tree. Configuration is loaded once in Before.
func (a *App) CLI() *cli.App {
	return &cli.App{
		Name:      "pipeline",
		Usage:     "Run the medallion workflow on Databricks",
		Writer:    a.out,
		ErrWriter: a.errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML or JSON configuration file",
				EnvVars: []string{"PIPELINE_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "envfile",
				Usage:   "dotenv file to load instead of ./.env",
				EnvVars: []string{"PIPELINE_ENVFILE"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
			},
		},
		Before: func(c *cli.Context) error {
			return a.setup(config.Options{
				ConfigFile: c.String("config"),
				EnvFile:    c.String("envfile"),
			}, c.String("log-level"))
		},
		Commands: []*cli.Command{
			{
				Name:  "render",
				Usage: "Print the workflow registration document",
				Action: func(c *cli.Context) error {
					return a.render()
				},
			},
			{
				Name:  "run",
				Usage: "Execute one run now",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "date",
						Usage: "logical date (YYYY-MM-DD); defaults to the latest closed interval",
					},
				},
				Action: func(c *cli.Context) error {
					return a.runOnce(c.Context, c.String("date"))
				},
			},
			{
				Name:  "schedule",
				Usage: "Run the workflow on its schedule until interrupted",
				Action: func(c *cli.Context) error {
					return a.schedule(c.Context)
				},
			},
			{
				Name:  "history",
				Usage: "List recorded runs",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "maximum number of runs to list",
						Value: 10,
					},
				},
				Action: func(c *cli.Context) error {
					return a.history(c.Context, c.Int("limit"))
				},
			},
		},
	}
}

// Run parses args (including the program name) and executes the command.
func (a *App) Run(ctx context.Context, args []string) error {
	return a.CLI().RunContext(ctx, args)
}

// logicalDate resolves --date, defaulting to the latest closed interval.
// An interval that has not closed yet cannot be run.
func (a *App) logicalDate(date string) (time.Time, error) {
	interval, err := schedule.Parse(a.wf.Schedule)
	if err != nil {
		return time.Time{}, err
	}
	due, ok := interval.LatestDue(a.wf.StartDate, a.now())

	if date != "" {
		d, err := time.ParseInLocation(dateLayout, date, time.UTC)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: --date %q: want YYYY-MM-DD", common.ErrInvalidConfig, date)
		}
		if !ok || d.After(due) {
			return time.Time{}, fmt.Errorf("%w: --date %s: interval has not closed yet", common.ErrInvalidConfig, date)
		}
		return d, nil
	}

	if !ok {
		return time.Time{}, fmt.Errorf("no interval of %s has closed yet (starts %s)", a.wf.ID, a.wf.StartDate.Format(dateLayout))
	}
	return due, nil
}

func (a *App) runOnce(ctx context.Context, date string) error {
	logical, err := a.logicalDate(date)
	if err != nil {
		return err
	}

	return a.withRunner(ctx, func(_ runstore.Repository, r *runner.Runner) error {
		run, err := r.Run(ctx, a.wf, logical)
		if run != nil {
			a.printRun(run)
		}
		return err
	})
}

func (a *App) schedule(ctx context.Context) error {
	return a.withRunner(ctx, func(store runstore.Repository, r *runner.Runner) error {
		s, err := scheduler.New(a.wf, store, r, a.logger)
		if err != nil {
			return err
		}
		return s.Start(ctx)
	})
}

func (a *App) history(ctx context.Context, limit int) error {
	store, closeStore, err := a.openStore(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("open run store: %w", err)
	}
	defer func() { _ = closeStore() }()

	runs, err := store.List(ctx, a.wf.ID, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintf(a.out, "No runs recorded for %s.\n", a.wf.ID)
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tLOGICAL DATE\tSTATE\tSTARTED\tTASKS")
	for _, run := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			run.ID, run.LogicalDate.Format(dateLayout), run.State,
			run.StartedAt.Format(time.RFC3339), taskSummary(run))
	}
	return tw.Flush()
}

func (a *App) printRun(run *models.Run) {
	fmt.Fprintf(a.out, "Run %s for %s: %s\n", run.ID, run.LogicalDate.Format(dateLayout), run.State)
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	for _, ti := range run.Tasks {
		fmt.Fprintf(tw, "  %s\t%s\ttries=%d\t%s\n", ti.TaskID, ti.State, ti.TryNumber, ti.RunPageURL)
	}
	_ = tw.Flush()
}

func taskSummary(run *models.Run) string {
	succeeded, open := 0, 0
	for _, ti := range run.Tasks {
		switch {
		case ti.State == models.TaskSuccess:
			succeeded++
		case !ti.State.Finished():
			open++
		}
	}
	s := fmt.Sprintf("%d/%d succeeded", succeeded, len(run.Tasks))
	if open > 0 {
		s += fmt.Sprintf(", %d unfinished", open)
	}
	return s
}

// ExitCode maps a command error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, common.ErrInvalidConfig),
		errors.Is(err, common.ErrInvalidWorkflow),
		errors.Is(err, common.ErrUnknownJob),
		errors.Is(err, common.ErrUnknownConnection):
		return 2
	default:
		return 1
	}
}
