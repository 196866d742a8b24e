package store

import (
	"context"
	"errors"
	"time"

	"github.com/loomgate/loomgate/internal/chatmodel"
)

// Sentinel errors callers branch on.
var (
	ErrSessionNotFound = errors.New("store: session not found")
	ErrCronJobNotFound = errors.New("store: cron job not found")
)

// StoredMessage is a SessionStore row: a Message plus the bookkeeping fields
// that establish total order within a location and drive compaction.
type StoredMessage struct {
	ID         int64
	Location   string
	Message    chatmodel.Message
	TokenCount int
	Compacted  bool
	CreatedAt  time.Time
}

// SessionInfo summarizes one location's session for listing.
type SessionInfo struct {
	Location     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int
}

// SessionStore is the durable, append-mostly conversation log partitioned by
// location (spec §4.1).
type SessionStore interface {
	// Append creates the SessionRecord on first call for a location, assigns
	// a fresh monotonic ordering key, and updates the location's updated_at.
	Append(ctx context.Context, location string, msg chatmodel.Message, tokenCount int) (int64, error)

	// Messages returns stored messages in append order. When
	// includeCompacted is false (the default view) messages with
	// compacted=true are excluded.
	Messages(ctx context.Context, location string, includeCompacted bool) ([]StoredMessage, error)

	// ActiveIDs returns the ids of non-compacted messages, in order.
	ActiveIDs(ctx context.Context, location string) ([]int64, error)

	// TokenSum returns the sum of token_count over non-compacted messages.
	TokenSum(ctx context.Context, location string) (int, error)

	// MarkCompacted marks every non-compacted message with id <= upToID as
	// compacted, except role=system messages, which must stay visible.
	MarkCompacted(ctx context.Context, location string, upToID int64) (int, error)

	// Clear deletes all messages for a location but keeps the SessionRecord.
	Clear(ctx context.Context, location string) (int, error)

	// Delete removes a location's SessionRecord and all its messages.
	Delete(ctx context.Context, location string) (bool, error)

	// List returns a summary of every known session.
	List(ctx context.Context) ([]SessionInfo, error)

	Close() error
}

// ScheduleKind is the discriminator for CronJob's tagged schedule variant
// (spec §9, "tagged variants for scheduling").
type ScheduleKind string

const (
	ScheduleAt    ScheduleKind = "at"
	ScheduleEvery ScheduleKind = "every"
	ScheduleCron  ScheduleKind = "cron"
)

// PayloadKind discriminates what a due CronJob actually does.
type PayloadKind string

const (
	PayloadSystemEvent PayloadKind = "system_event"
	PayloadAgentTurn   PayloadKind = "agent_turn"
)

// CronJob is a durable scheduled unit of work (spec §3).
type CronJob struct {
	ID      string
	Name    string
	Enabled bool

	ScheduleKind     ScheduleKind
	ScheduleAt       *float64 // epoch seconds, schedule_kind=at
	ScheduleEveryMS  *int64   // schedule_kind=every
	ScheduleCronExpr *string  // schedule_kind=cron
	ScheduleTZ       *string

	PayloadKind      PayloadKind
	PayloadText      string
	PayloadModel     *string
	PayloadTimeoutS  int
	TargetLocation   *string

	NextRun   *float64
	LastRun   *float64
	RunCount  int
	CreatedAt float64
}

// CronRunStatus is the outcome recorded for one execution of a CronJob.
type CronRunStatus string

const (
	CronRunOK      CronRunStatus = "ok"
	CronRunTimeout CronRunStatus = "timeout"
	CronRunError   CronRunStatus = "error"
)

// CronRun records one execution of a CronJob (spec §3).
type CronRun struct {
	ID         string
	JobID      string
	StartedAt  float64
	FinishedAt *float64
	Status     CronRunStatus
	ResultText *string
	ErrorText  *string
}

// CronStore is the durable store for cron jobs and their run history
// (spec §4.6, §6).
type CronStore interface {
	Add(ctx context.Context, job *CronJob) error
	Get(ctx context.Context, id string) (*CronJob, error)
	Remove(ctx context.Context, id string) (bool, error)
	List(ctx context.Context) ([]*CronJob, error)

	// Due returns enabled jobs whose next_run is at or before now.
	Due(ctx context.Context, now time.Time) ([]*CronJob, error)

	// UpdateAfterRun persists a job's post-execution state: last_run,
	// run_count, next_run, and (for "at" jobs) enabled=false.
	UpdateAfterRun(ctx context.Context, job *CronJob) error

	RecordRun(ctx context.Context, run *CronRun) error
	Runs(ctx context.Context, jobID string, limit int) ([]*CronRun, error)

	Close() error
}
