package store

import (
	"context"
	"testing"
	"time"
)

func TestCronJobDueAndUpdateAfterRun(t *testing.T) {
	ctx := context.Background()
	cron := openTestStore(t).Cron()

	past := float64(time.Now().Add(-30 * time.Second).UTC().Unix())
	job := &CronJob{
		Name:            "ping",
		Enabled:         true,
		ScheduleKind:    ScheduleAt,
		ScheduleAt:      &past,
		PayloadKind:     PayloadAgentTurn,
		PayloadText:     "ping",
		PayloadTimeoutS: 30,
		NextRun:         &past,
	}
	if err := cron.Add(ctx, job); err != nil {
		t.Fatalf("Add: %v", err)
	}

	due, err := cron.Due(ctx, time.Now())
	if err != nil {
		t.Fatalf("Due: %v", err)
	}
	if len(due) != 1 || due[0].ID != job.ID {
		t.Fatalf("expected job to be due, got %+v", due)
	}

	// Simulate the "at" job's post-run transition (spec invariant I4).
	job.Enabled = false
	job.RunCount = 1
	job.NextRun = nil
	last := float64(time.Now().UTC().Unix())
	job.LastRun = &last
	if err := cron.UpdateAfterRun(ctx, job); err != nil {
		t.Fatalf("UpdateAfterRun: %v", err)
	}

	reloaded, err := cron.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if reloaded.Enabled {
		t.Fatalf("expected at-job to be disabled after running")
	}
	if reloaded.RunCount != 1 {
		t.Fatalf("expected run_count=1, got %d", reloaded.RunCount)
	}
	if reloaded.NextRun != nil {
		t.Fatalf("expected next_run=nil for a completed at-job")
	}

	due, err = cron.Due(ctx, time.Now())
	if err != nil {
		t.Fatalf("Due after run: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("disabled job must not be due, got %+v", due)
	}
}

func TestCronRunRecordingAndHistory(t *testing.T) {
	ctx := context.Background()
	cron := openTestStore(t).Cron()

	job := &CronJob{Name: "tick", Enabled: true, ScheduleKind: ScheduleEvery}
	if err := cron.Add(ctx, job); err != nil {
		t.Fatalf("Add: %v", err)
	}

	for i := 0; i < 3; i++ {
		run := &CronRun{JobID: job.ID, StartedAt: float64(time.Now().UTC().Unix()), Status: CronRunOK}
		if err := cron.RecordRun(ctx, run); err != nil {
			t.Fatalf("RecordRun: %v", err)
		}
	}

	runs, err := cron.Runs(ctx, job.ID, 10)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 recorded runs, got %d", len(runs))
	}
}

func TestCronRemove(t *testing.T) {
	ctx := context.Background()
	cron := openTestStore(t).Cron()

	job := &CronJob{Name: "x", Enabled: true, ScheduleKind: ScheduleEvery}
	_ = cron.Add(ctx, job)

	removed, err := cron.Remove(ctx, job.ID)
	if err != nil || !removed {
		t.Fatalf("Remove: ok=%v err=%v", removed, err)
	}

	if _, err := cron.Get(ctx, job.ID); err != ErrCronJobNotFound {
		t.Fatalf("expected ErrCronJobNotFound, got %v", err)
	}
}
