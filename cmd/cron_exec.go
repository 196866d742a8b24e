package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/loomgate/loomgate/internal/orchestrator"
	"github.com/loomgate/loomgate/internal/store"
)

// newCronExecutor builds the scheduler.Executor that runs one due CronJob's
// payload. A payload_kind=agent_turn job replays its payload text through
// the orchestrator against an isolated cron:{jobID}:run:{runID} location, so
// the run is persisted and chunked like any other conversation turn but
// never collides with a live chat session. payload_kind=system_event jobs
// have no agent turn to run — their only effect is existing in the run
// history (spec §4.6's lightweight heartbeat/marker case).
func newCronExecutor(orch *orchestrator.Orchestrator) func(ctx context.Context, job *store.CronJob) (string, error) {
	return func(ctx context.Context, job *store.CronJob) (string, error) {
		switch job.PayloadKind {
		case store.PayloadSystemEvent:
			return job.PayloadText, nil
		case store.PayloadAgentTurn:
			// The scheduler's own RecordRun call assigns the persisted
			// CronRun.ID after this executor returns, so this run's
			// session-partition key uses its own generated id rather than
			// the run's eventual storage id — it only needs to be unique
			// and stable for this one execution, not to match it.
			location := store.BuildCronLocation(job.ID, uuid.NewString())
			result, err := orch.HandleMessage(ctx, location, job.PayloadText)
			if err != nil {
				return "", err
			}
			if job.TargetLocation != nil && *job.TargetLocation != "" {
				if _, err := orch.HandleMessage(ctx, *job.TargetLocation, fmt.Sprintf("Cron job %q result:\n%s", job.Name, result)); err != nil {
					return result, fmt.Errorf("cron job %s: deliver to target_location: %w", job.ID, err)
				}
			}
			return result, nil
		default:
			return "", fmt.Errorf("cron job %s: unknown payload_kind %q", job.ID, job.PayloadKind)
		}
	}
}
