package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type sqliteCronStore struct {
	db *sql.DB
}

func (c *sqliteCronStore) Add(ctx context.Context, job *CronJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt == 0 {
		job.CreatedAt = float64(time.Now().UTC().Unix())
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO cron_jobs (
			id, name, enabled, schedule_kind, schedule_at, schedule_every_ms,
			schedule_cron_expr, schedule_tz, payload_kind, payload_text,
			payload_model, payload_timeout_s, target_location,
			next_run, last_run, run_count, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		job.ID, job.Name, boolToInt(job.Enabled), string(job.ScheduleKind),
		job.ScheduleAt, job.ScheduleEveryMS, job.ScheduleCronExpr, job.ScheduleTZ,
		string(job.PayloadKind), job.PayloadText, job.PayloadModel, job.PayloadTimeoutS,
		job.TargetLocation, job.NextRun, job.LastRun, job.RunCount, job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: add cron job: %w", err)
	}
	return nil
}

const cronJobColumns = `id, name, enabled, schedule_kind, schedule_at, schedule_every_ms,
	schedule_cron_expr, schedule_tz, payload_kind, payload_text, payload_model,
	payload_timeout_s, target_location, next_run, last_run, run_count, created_at`

func scanCronJob(row interface{ Scan(dest ...any) error }) (*CronJob, error) {
	var (
		j       CronJob
		enabled int
	)
	err := row.Scan(
		&j.ID, &j.Name, &enabled, &j.ScheduleKind, &j.ScheduleAt, &j.ScheduleEveryMS,
		&j.ScheduleCronExpr, &j.ScheduleTZ, &j.PayloadKind, &j.PayloadText, &j.PayloadModel,
		&j.PayloadTimeoutS, &j.TargetLocation, &j.NextRun, &j.LastRun, &j.RunCount, &j.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	j.Enabled = enabled != 0
	return &j, nil
}

func (c *sqliteCronStore) Get(ctx context.Context, id string) (*CronJob, error) {
	row := c.db.QueryRowContext(ctx, `SELECT `+cronJobColumns+` FROM cron_jobs WHERE id = ?`, id)
	job, err := scanCronJob(row)
	if err == sql.ErrNoRows {
		return nil, ErrCronJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get cron job %s: %w", id, err)
	}
	return job, nil
}

func (c *sqliteCronStore) Remove(ctx context.Context, id string) (bool, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM cron_jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("store: remove cron job %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *sqliteCronStore) List(ctx context.Context) ([]*CronJob, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT `+cronJobColumns+` FROM cron_jobs ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: list cron jobs: %w", err)
	}
	defer rows.Close()

	var out []*CronJob
	for rows.Next() {
		job, err := scanCronJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

func (c *sqliteCronStore) Due(ctx context.Context, now time.Time) ([]*CronJob, error) {
	nowEpoch := float64(now.UTC().Unix())
	rows, err := c.db.QueryContext(ctx,
		`SELECT `+cronJobColumns+` FROM cron_jobs WHERE enabled = 1 AND next_run IS NOT NULL AND next_run <= ? ORDER BY next_run ASC`,
		nowEpoch,
	)
	if err != nil {
		return nil, fmt.Errorf("store: due cron jobs: %w", err)
	}
	defer rows.Close()

	var out []*CronJob
	for rows.Next() {
		job, err := scanCronJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

func (c *sqliteCronStore) UpdateAfterRun(ctx context.Context, job *CronJob) error {
	_, err := c.db.ExecContext(ctx, `
		UPDATE cron_jobs
		SET enabled = ?, next_run = ?, last_run = ?, run_count = ?
		WHERE id = ?
	`, boolToInt(job.Enabled), job.NextRun, job.LastRun, job.RunCount, job.ID)
	if err != nil {
		return fmt.Errorf("store: update cron job %s: %w", job.ID, err)
	}
	return nil
}

func (c *sqliteCronStore) RecordRun(ctx context.Context, run *CronRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO cron_runs (id, job_id, started_at, finished_at, status, result_text, error_text)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.JobID, run.StartedAt, run.FinishedAt, string(run.Status), run.ResultText, run.ErrorText)
	if err != nil {
		return fmt.Errorf("store: record cron run for %s: %w", run.JobID, err)
	}
	return nil
}

func (c *sqliteCronStore) Runs(ctx context.Context, jobID string, limit int) ([]*CronRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, job_id, started_at, finished_at, status, result_text, error_text
		FROM cron_runs WHERE job_id = ? ORDER BY started_at DESC LIMIT ?
	`, jobID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: runs for %s: %w", jobID, err)
	}
	defer rows.Close()

	var out []*CronRun
	for rows.Next() {
		var run CronRun
		if err := rows.Scan(&run.ID, &run.JobID, &run.StartedAt, &run.FinishedAt, &run.Status, &run.ResultText, &run.ErrorText); err != nil {
			return nil, err
		}
		out = append(out, &run)
	}
	return out, rows.Err()
}

func (c *sqliteCronStore) Close() error { return nil }

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
