package docker

import (
	"context"
	"log/slog"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
)

// runMaintenance periodically removes expired finished containers.
func (r *Runner) runMaintenance(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.cleanupExpiredContainers(ctx)
		}
	}
}

// cleanupExpiredContainers removes managed containers that finished more than
// retentionPeriod ago. Finished containers are kept around for a while so
// Describe keeps answering for handles the supervisor has not classified yet.
func (r *Runner) cleanupExpiredContainers(ctx context.Context) {
	now := time.Now()
	logger := slog.With("component", "maintenance")

	containers, err := r.client.ContainerList(ctx, container.ListOptions{
		All: true,
		Filters: filters.NewArgs(
			filters.Arg("label", "managed-by=sizerbatch"),
		),
	})
	if err != nil {
		logger.Warn("Failed to list containers", "error", err)
		return
	}

	var cleaned int
	for i := range containers {
		c := &containers[i]
		if c.State == "running" || c.State == "created" {
			continue
		}

		inspect, err := r.client.ContainerInspect(ctx, c.ID)
		if err != nil {
			continue
		}
		finishedAt, err := time.Parse(time.RFC3339Nano, inspect.State.FinishedAt)
		if err != nil {
			continue
		}
		if now.Sub(finishedAt) <= r.retentionPeriod {
			continue
		}

		if err := r.client.ContainerRemove(ctx, c.ID, container.RemoveOptions{Force: true}); err == nil {
			cleaned++
			logger.Debug("Cleaned up expired container", "handle", c.ID)
		}
	}

	if cleaned > 0 {
		logger.Info("Maintenance complete", "cleaned", cleaned)
	}
}
