package agentmanager

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeExecutor struct {
	delay  time.Duration
	result string
	err    error
}

func (f *fakeExecutor) RunIsolatedTurn(ctx context.Context, task, model string) (string, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.result, nil
}

type recordingDeliverer struct {
	mu  sync.Mutex
	out []string
}

func (r *recordingDeliverer) Deliver(_ context.Context, location, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out = append(r.out, location+":"+text)
	return nil
}

func (r *recordingDeliverer) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.out...)
}

func waitForStatus(t *testing.T, m *Manager, id string, want Status, timeout time.Duration) *SubAgent {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if sub, ok := m.Get(id); ok && sub.Status == want {
			return sub
		}
		time.Sleep(5 * time.Millisecond)
	}
	sub, _ := m.Get(id)
	t.Fatalf("timed out waiting for status %s, last seen %+v", want, sub)
	return nil
}

func TestSpawnRunsToCompletionAndDelivers(t *testing.T) {
	exec := &fakeExecutor{result: "done"}
	deliverer := &recordingDeliverer{}
	m := New(exec, deliverer, 2)

	sub, err := m.Spawn(context.Background(), "do the thing", "loc-1", "", time.Second, "")
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	waitForStatus(t, m, sub.ID, StatusCompleted, time.Second)

	msgs := deliverer.messages()
	if len(msgs) != 1 || msgs[0] != "loc-1:Sub-agent 'do the thing' completed:\ndone" {
		t.Fatalf("unexpected delivery: %+v", msgs)
	}
}

func TestSpawnReportsFailure(t *testing.T) {
	exec := &fakeExecutor{err: errors.New("boom")}
	m := New(exec, &recordingDeliverer{}, 2)

	sub, _ := m.Spawn(context.Background(), "task", "loc", "", time.Second, "label")
	got := waitForStatus(t, m, sub.ID, StatusFailed, time.Second)
	if got.Error != "boom" {
		t.Fatalf("expected error 'boom', got %q", got.Error)
	}
}

func TestSpawnTimesOut(t *testing.T) {
	exec := &fakeExecutor{delay: 200 * time.Millisecond}
	m := New(exec, &recordingDeliverer{}, 2)

	sub, _ := m.Spawn(context.Background(), "slow task", "loc", "", 20*time.Millisecond, "")
	waitForStatus(t, m, sub.ID, StatusTimeout, time.Second)
}

func TestCancelStopsRunningTask(t *testing.T) {
	exec := &fakeExecutor{delay: time.Second}
	deliverer := &recordingDeliverer{}
	m := New(exec, deliverer, 2)

	sub, _ := m.Spawn(context.Background(), "long task", "loc", "", 5*time.Second, "")
	waitForStatus(t, m, sub.ID, StatusRunning, time.Second)

	if !m.Cancel(sub.ID) {
		t.Fatal("expected Cancel to succeed on a running task")
	}
	waitForStatus(t, m, sub.ID, StatusCancelled, time.Second)

	if m.Cancel(sub.ID) {
		t.Fatal("expected Cancel to return false for an already-finished task")
	}

	time.Sleep(20 * time.Millisecond)
	if msgs := deliverer.messages(); len(msgs) != 0 {
		t.Fatalf("expected cancellation to skip delivery, got %+v", msgs)
	}
}

func TestMaxConcurrentBoundsActiveTasks(t *testing.T) {
	release := make(chan struct{})
	exec := &blockingExecutor{release: release}
	m := New(exec, &recordingDeliverer{}, 1)

	sub1, _ := m.Spawn(context.Background(), "first", "loc", "", time.Second, "")
	waitForStatus(t, m, sub1.ID, StatusRunning, time.Second)

	sub2, _ := m.Spawn(context.Background(), "second", "loc", "", time.Second, "")

	time.Sleep(30 * time.Millisecond)
	if got, _ := m.Get(sub2.ID); got.Status != StatusQueued {
		t.Fatalf("expected second task to remain queued while pool is full, got %s", got.Status)
	}
	if m.ActiveCount() != 2 {
		t.Fatalf("expected active_count to include both queued and running, got %d", m.ActiveCount())
	}

	close(release)
	waitForStatus(t, m, sub1.ID, StatusCompleted, time.Second)
	waitForStatus(t, m, sub2.ID, StatusCompleted, time.Second)
}

type blockingExecutor struct{ release chan struct{} }

func (b *blockingExecutor) RunIsolatedTurn(ctx context.Context, task, model string) (string, error) {
	select {
	case <-b.release:
		return "ok", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestCleanupRemovesOldFinishedTasks(t *testing.T) {
	exec := &fakeExecutor{result: "ok"}
	m := New(exec, &recordingDeliverer{}, 2)

	sub, _ := m.Spawn(context.Background(), "task", "loc", "", time.Second, "")
	waitForStatus(t, m, sub.ID, StatusCompleted, time.Second)

	if removed := m.Cleanup(time.Hour); removed != 0 {
		t.Fatalf("expected nothing removed with a generous max age, got %d", removed)
	}

	m.mu.Lock()
	m.tasks[sub.ID].FinishedAt = time.Now().Add(-time.Hour)
	m.mu.Unlock()

	if removed := m.Cleanup(time.Minute); removed != 1 {
		t.Fatalf("expected 1 task removed, got %d", removed)
	}
	if _, ok := m.Get(sub.ID); ok {
		t.Fatal("expected task to be gone after cleanup")
	}
}
