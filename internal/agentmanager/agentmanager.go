// Package agentmanager runs isolated sub-agent turns under a bounded
// concurrency pool, separate from any chat-location session. Grounded on
// internal/tools/subagent.go's SubagentManager (depth/concurrency checks,
// go sm.runTask(...) goroutine dispatch, status constants), generalized to
// spec §4.7's simpler single-tier contract — no spawn-depth or
// children-per-parent limits, since nothing in SPEC_FULL.md's AgentManager
// section asks for nested sub-agent trees.
package agentmanager

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is a SubAgent's lifecycle state.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusTimeout   Status = "timeout"
)

// SubAgent tracks one isolated agent turn.
type SubAgent struct {
	ID             string
	Task           string
	Label          string
	TargetLocation string
	Model          string
	Status         Status
	Result         string
	Error          string
	StartedAt      time.Time
	FinishedAt     time.Time

	cancel context.CancelFunc
}

// TurnExecutor runs one isolated agent turn: a throwaway conversation
// consisting of a system prompt and a single user task, the same loop
// shape as the orchestrator (spec §4.5) but with no SessionStore state.
type TurnExecutor interface {
	RunIsolatedTurn(ctx context.Context, task, model string) (string, error)
}

// Deliverer sends a sub-agent's formatted result back to its originating
// location once the turn completes (or fails/times out/is cancelled).
type Deliverer interface {
	Deliver(ctx context.Context, targetLocation, text string) error
}

// Manager implements spec §4.7.
type Manager struct {
	mu    sync.RWMutex
	tasks map[string]*SubAgent
	sem   chan struct{}

	executor  TurnExecutor
	deliverer Deliverer
	log       *slog.Logger
}

// New builds a Manager with the given concurrency bound.
func New(executor TurnExecutor, deliverer Deliverer, maxConcurrent int) *Manager {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &Manager{
		tasks:     make(map[string]*SubAgent),
		sem:       make(chan struct{}, maxConcurrent),
		executor:  executor,
		deliverer: deliverer,
		log:       slog.Default().With("component", "agentmanager"),
	}
}

// Spawn creates a sub-agent task and returns immediately; the turn executes
// asynchronously in the bounded pool.
func (m *Manager) Spawn(ctx context.Context, task, targetLocation, model string, timeout time.Duration, label string) (*SubAgent, error) {
	if label == "" {
		label = truncate(task, 50)
	}

	sub := &SubAgent{
		ID:             uuid.NewString(),
		Task:           task,
		Label:          label,
		TargetLocation: targetLocation,
		Model:          model,
		Status:         StatusQueued,
	}

	runCtx, cancel := context.WithCancel(context.Background())
	sub.cancel = cancel

	m.mu.Lock()
	m.tasks[sub.ID] = sub
	m.mu.Unlock()

	m.log.Info("subagent spawned", "id", sub.ID, "label", label, "target", targetLocation)
	go m.run(runCtx, sub, timeout)

	return sub, nil
}

func (m *Manager) run(ctx context.Context, sub *SubAgent, timeout time.Duration) {
	select {
	case m.sem <- struct{}{}:
	case <-ctx.Done():
		m.finish(sub, StatusCancelled, "", "cancelled before execution started")
		return
	}
	defer func() { <-m.sem }()

	m.mu.Lock()
	sub.Status = StatusRunning
	sub.StartedAt = time.Now()
	m.mu.Unlock()

	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := m.executor.RunIsolatedTurn(execCtx, sub.Task, sub.Model)

	switch {
	case err == nil:
		m.finish(sub, StatusCompleted, result, "")
		m.deliver(sub, fmt.Sprintf("Sub-agent '%s' completed:\n%s", sub.Label, result))
	case execCtx.Err() == context.Canceled:
		// cancellation marks status only; no output is delivered
		m.finish(sub, StatusCancelled, "", "cancelled")
	case execCtx.Err() == context.DeadlineExceeded:
		m.finish(sub, StatusTimeout, "", "timed out")
		m.deliver(sub, fmt.Sprintf("Sub-agent '%s' timed out.", sub.Label))
	default:
		m.finish(sub, StatusFailed, "", err.Error())
		m.deliver(sub, fmt.Sprintf("Sub-agent '%s' failed: %s", sub.Label, err.Error()))
	}
}

func (m *Manager) finish(sub *SubAgent, status Status, result, errMsg string) {
	m.mu.Lock()
	sub.Status = status
	sub.Result = result
	sub.Error = errMsg
	sub.FinishedAt = time.Now()
	m.mu.Unlock()
}

func (m *Manager) deliver(sub *SubAgent, text string) {
	if m.deliverer == nil || sub.TargetLocation == "" {
		return
	}
	if err := m.deliverer.Deliver(context.Background(), sub.TargetLocation, text); err != nil {
		m.log.Warn("failed to deliver subagent result", "id", sub.ID, "error", err)
	}
}

// Get returns a sub-agent by id.
func (m *Manager) Get(id string) (*SubAgent, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sub, ok := m.tasks[id]
	return sub, ok
}

// List returns sub-agents, optionally filtered to one target location
// (empty string returns all).
func (m *Manager) List(targetLocation string) []*SubAgent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*SubAgent, 0, len(m.tasks))
	for _, sub := range m.tasks {
		if targetLocation == "" || sub.TargetLocation == targetLocation {
			out = append(out, sub)
		}
	}
	return out
}

// ActiveCount reports how many sub-agents are queued or running.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, sub := range m.tasks {
		if sub.Status == StatusQueued || sub.Status == StatusRunning {
			n++
		}
	}
	return n
}

// Cancel cancels a queued or running sub-agent. Returns false if the id is
// unknown or already finished.
func (m *Manager) Cancel(id string) bool {
	m.mu.Lock()
	sub, ok := m.tasks[id]
	if !ok || (sub.Status != StatusQueued && sub.Status != StatusRunning) {
		m.mu.Unlock()
		return false
	}
	m.mu.Unlock()

	sub.cancel()
	return true
}

// CancelAll cancels every queued or running sub-agent.
func (m *Manager) CancelAll() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.tasks))
	for id, sub := range m.tasks {
		if sub.Status == StatusQueued || sub.Status == StatusRunning {
			ids = append(ids, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range ids {
		m.Cancel(id)
	}
}

// Cleanup removes finished (completed/failed/cancelled/timeout) sub-agents
// older than maxAge, keyed off finished_at.
func (m *Manager) Cleanup(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, sub := range m.tasks {
		if sub.Status == StatusQueued || sub.Status == StatusRunning {
			continue
		}
		if sub.FinishedAt.Before(cutoff) {
			delete(m.tasks, id)
			removed++
		}
	}
	return removed
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
