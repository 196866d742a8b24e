package cmd

import (
	"context"
	"time"

	"github.com/loomgate/loomgate/internal/agentmanager"
)

// spawnerAdapter narrows *agentmanager.Manager down to tools.Spawner's
// (id, error) return shape, since the tool layer only needs the id to
// report back to the model and must not import internal/agentmanager.
type spawnerAdapter struct {
	mgr *agentmanager.Manager
}

func (a *spawnerAdapter) Spawn(ctx context.Context, task, targetLocation, model string, timeout time.Duration, label string) (string, error) {
	sub, err := a.mgr.Spawn(ctx, task, targetLocation, model, timeout, label)
	if err != nil {
		return "", err
	}
	return sub.ID, nil
}
