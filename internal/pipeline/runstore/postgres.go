package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/lakehouse/internal/common"
	"github.com/dmitrijs2005/lakehouse/internal/dbx"
	"github.com/dmitrijs2005/lakehouse/internal/pipeline/models"
	"github.com/dmitrijs2005/lakehouse/internal/pipeline/runstore/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepository stores runs in the workflow_runs and task_instances
// tables.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// sqlOpen is a seam for testing sql.Open.
var sqlOpen = sql.Open

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded schema migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}

// OpenPostgres connects with the pgx driver, pings, and migrates. The caller
// owns the returned *sql.DB.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresRepository, *sql.DB, error) {
	db, err := sqlOpen("pgx", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return NewPostgresRepository(db), db, nil
}

const (
	upsertRunQuery = `
		INSERT INTO workflow_runs (id, workflow_id, logical_date, state, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id)
		DO UPDATE SET
			state = EXCLUDED.state,
			ended_at = EXCLUDED.ended_at;
	`
	upsertTaskQuery = `
		INSERT INTO task_instances (run_id, task_id, position, job_id, state, try_number,
			remote_run_id, run_page_url, started_at, ended_at, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (run_id, task_id)
		DO UPDATE SET
			state = EXCLUDED.state,
			try_number = EXCLUDED.try_number,
			remote_run_id = EXCLUDED.remote_run_id,
			run_page_url = EXCLUDED.run_page_url,
			started_at = EXCLUDED.started_at,
			ended_at = EXCLUDED.ended_at,
			error = EXCLUDED.error;
	`
	selectRunsQuery = `
		SELECT id, workflow_id, logical_date, state, started_at, ended_at FROM workflow_runs
		WHERE workflow_id=$1 ORDER BY logical_date DESC, started_at DESC
	`
	selectRunByDateQuery = `
		SELECT id, workflow_id, logical_date, state, started_at, ended_at FROM workflow_runs
		WHERE workflow_id=$1 AND logical_date=$2 ORDER BY started_at DESC LIMIT 1
	`
	selectTasksQuery = `
		SELECT task_id, job_id, state, try_number, remote_run_id, run_page_url, started_at, ended_at, error
		FROM task_instances WHERE run_id=$1 ORDER BY position
	`
)

// Save upserts the run and all its task instances in one transaction.
func (r *PostgresRepository) Save(ctx context.Context, run *models.Run) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, upsertRunQuery,
			run.ID, run.WorkflowID, run.LogicalDate, string(run.State), run.StartedAt, nullTime(run.EndedAt),
		); err != nil {
			return fmt.Errorf("save run: %w", err)
		}

		for i, ti := range run.Tasks {
			if _, err := tx.ExecContext(ctx, upsertTaskQuery,
				run.ID, ti.TaskID, i, ti.JobID, string(ti.State), ti.TryNumber,
				ti.RemoteRunID, ti.RunPageURL, nullTime(ti.StartedAt), nullTime(ti.EndedAt), ti.Error,
			); err != nil {
				return fmt.Errorf("save task %s: %w", ti.TaskID, err)
			}
		}
		return nil
	})
}

func (r *PostgresRepository) Last(ctx context.Context, workflowID string) (*models.Run, error) {
	runs, err := r.List(ctx, workflowID, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, common.ErrNotFound
	}
	return runs[0], nil
}

func (r *PostgresRepository) Get(ctx context.Context, workflowID string, logicalDate time.Time) (*models.Run, error) {
	runs, err := selectRuns(ctx, r.db, selectRunByDateQuery, workflowID, logicalDate)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, common.ErrNotFound
	}

	run := runs[0]
	if run.Tasks, err = selectTasks(ctx, r.db, run.ID); err != nil {
		return nil, err
	}
	return run, nil
}

func (r *PostgresRepository) List(ctx context.Context, workflowID string, limit int) ([]*models.Run, error) {
	query := selectRunsQuery
	args := []any{workflowID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	runs, err := selectRuns(ctx, r.db, query, args...)
	if err != nil {
		return nil, err
	}
	for _, run := range runs {
		if run.Tasks, err = selectTasks(ctx, r.db, run.ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func selectRuns(ctx context.Context, db dbx.DBTX, query string, args ...any) ([]*models.Run, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select runs: %w", err)
	}
	defer rows.Close()

	var result []*models.Run
	for rows.Next() {
		var (
			run   models.Run
			state string
			ended sql.NullTime
		)
		if err := rows.Scan(&run.ID, &run.WorkflowID, &run.LogicalDate, &state, &run.StartedAt, &ended); err != nil {
			return nil, err
		}
		run.State = models.RunState(state)
		run.EndedAt = timePtr(ended)
		result = append(result, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func selectTasks(ctx context.Context, db dbx.DBTX, runID string) ([]*models.TaskInstance, error) {
	rows, err := db.QueryContext(ctx, selectTasksQuery, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to select task instances: %w", err)
	}
	defer rows.Close()

	var result []*models.TaskInstance
	for rows.Next() {
		var (
			ti             models.TaskInstance
			state          string
			started, ended sql.NullTime
		)
		if err := rows.Scan(&ti.TaskID, &ti.JobID, &state, &ti.TryNumber, &ti.RemoteRunID,
			&ti.RunPageURL, &started, &ended, &ti.Error); err != nil {
			return nil, err
		}
		ti.RunID = runID
		ti.State = models.TaskState(state)
		ti.StartedAt = timePtr(started)
		ti.EndedAt = timePtr(ended)
		result = append(result, &ti)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// IsNotFound reports whether err means no run was recorded yet.
func IsNotFound(err error) bool {
	return errors.Is(err, common.ErrNotFound)
}
