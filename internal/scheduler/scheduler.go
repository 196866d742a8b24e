// Package scheduler runs the durable cron-like job loop: discover due
// CronJobs, execute them via a caller-supplied executor, and persist the
// outcome. Grounded on cmd/gateway_cron.go's tick->executor calling
// convention and, for the schedule-kind math itself, a direct Go port of
// original_source/plug/cron/scheduler.py.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/loomgate/loomgate/internal/store"
)

// DefaultTickInterval is the spec's default scheduler tick period (§4.6).
const DefaultTickInterval = 15 * time.Second

// Executor runs one due CronJob's payload and returns its result text (or an
// error, classified by the scheduler into a CronRun status).
type Executor func(ctx context.Context, job *store.CronJob) (string, error)

// Scheduler owns the tick loop over a CronStore.
type Scheduler struct {
	cron         store.CronStore
	executor     Executor
	tickInterval time.Duration
	log          *slog.Logger

	mu       sync.Mutex
	ticking  bool
	lastTick time.Time
}

// New creates a Scheduler. tickInterval<=0 uses DefaultTickInterval.
func New(cron store.CronStore, executor Executor, tickInterval time.Duration) *Scheduler {
	if tickInterval <= 0 {
		tickInterval = DefaultTickInterval
	}
	return &Scheduler{
		cron:         cron,
		executor:     executor,
		tickInterval: tickInterval,
		log:          slog.Default().With("component", "scheduler"),
	}
}

// Run blocks, ticking until ctx is cancelled. Graceful shutdown (spec §5)
// is simply ctx cancellation; Run returns once the in-flight tick (if any)
// finishes.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// LastTick returns the time the most recent tick finished, for the health
// endpoint's "last scheduler tick" report. Zero until the first tick runs.
func (s *Scheduler) LastTick() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTick
}

// tick runs exactly one pass: fetch due jobs, execute them serially (spec
// §5, "jobs within a tick execute sequentially"), and skips re-entrantly if
// the previous tick somehow has not returned (overlap guard for O3: never
// more than one in-flight run per job).
func (s *Scheduler) tick(ctx context.Context) {
	s.mu.Lock()
	if s.ticking {
		s.mu.Unlock()
		s.log.Warn("skipping tick: previous tick still running")
		return
	}
	s.ticking = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.ticking = false
		s.lastTick = time.Now()
		s.mu.Unlock()
	}()

	now := time.Now().UTC()
	due, err := s.cron.Due(ctx, now)
	if err != nil {
		s.log.Error("failed to fetch due cron jobs", "error", err)
		return
	}

	for _, job := range due {
		s.runJob(ctx, job, now)
	}
}

func (s *Scheduler) runJob(ctx context.Context, job *store.CronJob, now time.Time) {
	timeout := time.Duration(job.PayloadTimeoutS) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	run := &store.CronRun{
		JobID:     job.ID,
		StartedAt: float64(now.Unix()),
	}

	resultCh := make(chan struct {
		text string
		err  error
	}, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- struct {
					text string
					err  error
				}{"", fmt.Errorf("scheduler: executor panic: %v", r)}
			}
		}()
		text, err := s.executor(runCtx, job)
		resultCh <- struct {
			text string
			err  error
		}{text, err}
	}()

	var result string
	var execErr error
	select {
	case r := <-resultCh:
		result, execErr = r.text, r.err
	case <-runCtx.Done():
		execErr = runCtx.Err()
	}

	finishedAt := float64(time.Now().UTC().Unix())
	run.FinishedAt = &finishedAt

	switch {
	case execErr == nil:
		run.Status = store.CronRunOK
		run.ResultText = &result
	case errors.Is(execErr, context.DeadlineExceeded):
		run.Status = store.CronRunTimeout
		msg := execErr.Error()
		run.ErrorText = &msg
	default:
		run.Status = store.CronRunError
		msg := execErr.Error()
		run.ErrorText = &msg
	}

	if err := s.cron.RecordRun(ctx, run); err != nil {
		s.log.Error("failed to record cron run", "job", job.ID, "error", err)
	}

	s.advance(ctx, job, now)
}

// advance computes and persists a job's post-run state: for "at" jobs,
// disable per invariant I4; for "every"/"cron" jobs, compute the next
// next_run from `now`.
func (s *Scheduler) advance(ctx context.Context, job *store.CronJob, now time.Time) {
	job.RunCount++
	last := float64(now.Unix())
	job.LastRun = &last

	switch job.ScheduleKind {
	case store.ScheduleAt:
		job.Enabled = false
		job.NextRun = nil
	default:
		next, err := ComputeNextRun(job, now)
		if err != nil {
			s.log.Error("failed to compute next run, disabling job", "job", job.ID, "error", err)
			job.Enabled = false
			job.NextRun = nil
		} else {
			job.NextRun = next
		}
	}

	if err := s.cron.UpdateAfterRun(ctx, job); err != nil {
		s.log.Error("failed to persist cron job state", "job", job.ID, "error", err)
	}
}

// ComputeNextRun computes a CronJob's next_run given the schedule kind and
// `after` as the anchor time ("now" during normal operation), mirroring
// original_source/plug/cron/scheduler.py's CronJob.compute_next_run.
func ComputeNextRun(job *store.CronJob, after time.Time) (*float64, error) {
	afterEpoch := float64(after.UTC().Unix())

	switch job.ScheduleKind {
	case store.ScheduleAt:
		if job.ScheduleAt != nil && *job.ScheduleAt > afterEpoch {
			v := *job.ScheduleAt
			return &v, nil
		}
		return nil, nil

	case store.ScheduleEvery:
		if job.ScheduleEveryMS == nil || *job.ScheduleEveryMS <= 0 {
			return nil, nil
		}
		intervalS := float64(*job.ScheduleEveryMS) / 1000.0
		base := afterEpoch
		if job.LastRun != nil {
			base = *job.LastRun
		}
		next := base + intervalS
		return &next, nil

	case store.ScheduleCron:
		if job.ScheduleCronExpr == nil || *job.ScheduleCronExpr == "" {
			return nil, fmt.Errorf("scheduler: cron job %s missing cron expression", job.ID)
		}
		next, err := nextCronTime(*job.ScheduleCronExpr, after)
		if err != nil {
			return nil, err
		}
		v := float64(next.Unix())
		return &v, nil

	default:
		return nil, fmt.Errorf("scheduler: unknown schedule_kind %q", job.ScheduleKind)
	}
}
