// Package docker implements batch.Runner against the local Docker daemon.
//
// Each submission runs as one container. The handle is the container ID, so
// state lives in Docker itself: resubmissions create fresh containers and the
// supervisor's handle-keyed tracking works unchanged. Used for running the
// pipeline without a managed batch service, and for local rehearsal of a
// delivery before submitting it for real.
package docker

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"

	"sizerbatch/internal/apperrors"
	"sizerbatch/internal/batch"
)

// Runner runs batch jobs as local Docker containers.
type Runner struct {
	client          *client.Client
	retentionPeriod time.Duration

	cancelMaintenance context.CancelFunc
}

// Config holds configuration for the Docker runner.
type Config struct {
	RetentionPeriod     time.Duration // How long to keep finished containers (default 15m)
	MaintenanceInterval time.Duration // How often to run cleanup (default 1m)
}

// NewRunner creates a Docker-backed runner.
func NewRunner(ctx context.Context, cfg Config) (*Runner, error) {
	dockerClient, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	retentionPeriod := cfg.RetentionPeriod
	if retentionPeriod <= 0 {
		retentionPeriod = 15 * time.Minute
	}

	maintenanceInterval := cfg.MaintenanceInterval
	if maintenanceInterval <= 0 {
		maintenanceInterval = 1 * time.Minute
	}

	r := &Runner{
		client:          dockerClient,
		retentionPeriod: retentionPeriod,
	}

	maintenanceCtx, cancel := context.WithCancel(context.Background())
	r.cancelMaintenance = cancel
	go r.runMaintenance(maintenanceCtx, maintenanceInterval)

	return r, nil
}

// Submit pulls the definition image if needed, then creates and starts one
// container for the job. The container ID is the submission handle.
func (r *Runner) Submit(ctx context.Context, spec batch.SubmitSpec) (string, error) {
	// Pull with a detached context so a caller timeout doesn't abort a
	// long image download midway.
	pullCtx := context.WithoutCancel(ctx)
	if err := r.pullImageIfNeeded(pullCtx, spec.Definition); err != nil {
		return "", apperrors.Internal("docker.pullImage", err)
	}

	containerConfig := &container.Config{
		Image: spec.Definition,
		Cmd:   spec.Command,
		Labels: map[string]string{
			"sizer.job":  spec.Name,
			"managed-by": "sizerbatch",
		},
	}

	resp, err := r.client.ContainerCreate(ctx, containerConfig, nil, nil, nil, "")
	if err != nil {
		return "", apperrors.Internal("docker.createContainer", err)
	}

	if err := r.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		_ = r.client.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return "", apperrors.Internal("docker.startContainer", err)
	}

	return resp.ID, nil
}

// Describe inspects each handle's container and maps its state to a batch
// status. Exit code 0 is SUCCEEDED, anything else FAILED with the exit code
// and daemon error in the reason.
func (r *Runner) Describe(ctx context.Context, handles []string) ([]batch.JobDetail, error) {
	if len(handles) > batch.DescribeLimit {
		return nil, apperrors.StatusQuery(fmt.Errorf("describe called with %d handles, limit is %d", len(handles), batch.DescribeLimit))
	}

	details := make([]batch.JobDetail, 0, len(handles))
	for _, handle := range handles {
		inspect, err := r.client.ContainerInspect(ctx, handle)
		if err != nil {
			return nil, apperrors.StatusQuery(fmt.Errorf("inspect %s: %w", handle, err))
		}

		detail := batch.JobDetail{Handle: handle}
		switch {
		case inspect.State.Running:
			detail.Status = batch.StatusRunning

		case inspect.State.Status == "created":
			detail.Status = batch.StatusStarting

		default:
			if inspect.State.ExitCode == 0 {
				detail.Status = batch.StatusSucceeded
			} else {
				detail.Status = batch.StatusFailed
				detail.Reason = fmt.Sprintf("exit code %d", inspect.State.ExitCode)
				if inspect.State.Error != "" {
					detail.Reason = fmt.Sprintf("%s: %s", detail.Reason, inspect.State.Error)
				}
			}
		}

		details = append(details, detail)
	}

	return details, nil
}

// Ready checks if the Docker daemon is reachable and responsive.
func (r *Runner) Ready(ctx context.Context) error {
	_, err := r.client.Ping(ctx)
	return err
}

// Close stops background maintenance and releases the client.
// Running containers are left alone.
func (r *Runner) Close() error {
	if r.cancelMaintenance != nil {
		r.cancelMaintenance()
	}
	return r.client.Close()
}

func (r *Runner) pullImageIfNeeded(ctx context.Context, imageName string) error {
	_, err := r.client.ImageInspect(ctx, imageName)
	if err == nil {
		return nil
	}

	reader, err := r.client.ImagePull(ctx, imageName, image.PullOptions{})
	if err != nil {
		return err
	}
	defer reader.Close()

	_, err = io.Copy(io.Discard, reader)
	return err
}
