// Package supervise drives submitted jobs to terminal outcomes.
//
// The supervisor owns the in-flight tracking table: one PendingJob per
// live work unit, keyed by the batch handle of its current submission
// attempt. Polling rounds are strictly sequential; the table is only ever
// touched between the blocking pauses, so no round observes a mutation
// made by another.
package supervise

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sizerbatch/internal/apperrors"
	"sizerbatch/internal/batch"
	"sizerbatch/internal/notify"
	"sizerbatch/internal/observability"
	"sizerbatch/internal/resolve"
	"sizerbatch/pkg/backoff"
)

// PendingJob tracks one in-flight submission attempt for a work unit.
//
// Retries replace: on a retryable failure the entry is deleted and a new
// one inserted under the fresh handle, attempt incremented. A handle's
// identity is never mutated in place - handles belong to the batch runner.
type PendingJob struct {
	Handle         string
	Unit           resolve.WorkUnit
	Attempt        int // prior failed submissions; 0 = first attempt
	FirstSubmitted time.Time
}

// FailedUnit records a unit that exhausted its retry budget.
type FailedUnit struct {
	Unit     resolve.WorkUnit
	Attempts int    // total submissions made
	Reason   string // last-seen failure reason from the runner
}

// Summary is the aggregate outcome of a run.
type Summary struct {
	Succeeded int
	Failed    int
	Retries   int
	Permanent []FailedUnit
}

// Submitter is the submission side the supervisor drives, both for the
// initial fan-out and for resubmissions.
type Submitter interface {
	Submit(ctx context.Context, unit resolve.WorkUnit) (string, error)
}

// Config holds supervision parameters.
type Config struct {
	MaxRetries   int             // resubmissions allowed per unit (default 3)
	PollInterval time.Duration   // pause between rounds (default 5s)
	RetryBackoff *backoff.Config // delay before each resubmission, scaled by attempt
	Queue        string          // queue label for metrics
}

// Supervisor submits work units and polls them to completion.
type Supervisor struct {
	runner    batch.Runner
	submitter Submitter
	config    Config
	metrics   *observability.Metrics
	events    notify.Publisher
	logger    *slog.Logger

	tracked map[string]*PendingJob
}

// New creates a supervisor. A nil events publisher disables notifications.
func New(runner batch.Runner, submitter Submitter, cfg Config, metrics *observability.Metrics, events notify.Publisher) *Supervisor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if events == nil {
		events = notify.Nop{}
	}

	return &Supervisor{
		runner:    runner,
		submitter: submitter,
		config:    cfg,
		metrics:   metrics,
		events:    events,
		logger:    slog.With("component", "supervisor"),
		tracked:   make(map[string]*PendingJob),
	}
}

// SubmitAll submits every unit sequentially and seeds the tracking table.
// The first submission failure aborts the fan-out and propagates.
func (s *Supervisor) SubmitAll(ctx context.Context, units []resolve.WorkUnit) error {
	now := time.Now()
	for _, unit := range units {
		handle, err := s.submitter.Submit(ctx, unit)
		if err != nil {
			return err
		}
		s.tracked[handle] = &PendingJob{
			Handle:         handle,
			Unit:           unit,
			FirstSubmitted: now,
		}
		s.logger.Info("Submitted", "unit", unit.ID, "handle", handle)
	}
	return nil
}

// Tracked returns the number of jobs currently in flight. Equals the number
// of logical units that have not reached a terminal state.
func (s *Supervisor) Tracked() int {
	return len(s.tracked)
}

// Run polls the runner until the tracked set is empty and every unit has
// reached SUCCEEDED or permanent FAILED. Handles are described in groups of
// at most batch.DescribeLimit per call; results are matched back by handle,
// never by position.
//
// A failed describe call aborts supervision immediately - a partial poll
// risks losing track of in-flight jobs, and the runner keeps executing them
// regardless, so a rerun with --ignore-existing disabled will pick up where
// this one stopped.
func (s *Supervisor) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{}

	for len(s.tracked) > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.config.PollInterval):
		}

		if s.metrics != nil {
			s.metrics.RecordPollRound(ctx, len(s.tracked))
		}

		// Snapshot at round start so mid-round replacements are only
		// seen by the next round.
		handles := make([]string, 0, len(s.tracked))
		for handle := range s.tracked {
			handles = append(handles, handle)
		}

		for start := 0; start < len(handles); start += batch.DescribeLimit {
			end := min(start+batch.DescribeLimit, len(handles))

			details, err := s.runner.Describe(ctx, handles[start:end])
			if err != nil {
				if !isClassified(err) {
					err = apperrors.StatusQuery(err)
				}
				return nil, err
			}

			for _, detail := range details {
				if err := s.classify(ctx, summary, detail); err != nil {
					return nil, err
				}
			}
		}
	}

	s.logger.Info("Supervision complete",
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"retries", summary.Retries,
	)
	return summary, nil
}

// classify applies one status report to the tracking table.
func (s *Supervisor) classify(ctx context.Context, summary *Summary, detail batch.JobDetail) error {
	pj, ok := s.tracked[detail.Handle]
	if !ok {
		// Stale report for a handle already classified; nothing to do.
		return nil
	}

	switch detail.Status {
	case batch.StatusSucceeded:
		delete(s.tracked, detail.Handle)
		summary.Succeeded++
		s.logger.Info("Unit succeeded", "unit", pj.Unit.ID, "attempt", pj.Attempt)
		s.events.Publish(notify.EventJobSucceeded, pj.Unit.ID, map[string]any{
			"handle":  pj.Handle,
			"attempt": pj.Attempt,
		})
		if s.metrics != nil {
			s.metrics.RecordUnitCompleted(ctx, s.config.Queue, true, time.Since(pj.FirstSubmitted).Seconds())
		}

	case batch.StatusFailed:
		if pj.Attempt < s.config.MaxRetries {
			return s.resubmit(ctx, summary, pj, detail.Reason)
		}

		delete(s.tracked, detail.Handle)
		summary.Failed++
		summary.Permanent = append(summary.Permanent, FailedUnit{
			Unit:     pj.Unit,
			Attempts: pj.Attempt + 1,
			Reason:   detail.Reason,
		})
		s.logger.Warn("Unit failed permanently",
			"unit", pj.Unit.ID,
			"attempts", pj.Attempt+1,
			"reason", detail.Reason,
		)
		s.events.Publish(notify.EventJobFailed, pj.Unit.ID, map[string]any{
			"handle":   pj.Handle,
			"attempts": pj.Attempt + 1,
			"reason":   detail.Reason,
		})
		if s.metrics != nil {
			s.metrics.RecordUnitCompleted(ctx, s.config.Queue, false, time.Since(pj.FirstSubmitted).Seconds())
		}

	default:
		// Still queued or running; re-polled next round.
	}

	return nil
}

// resubmit replaces a failed entry with a fresh submission of the same unit.
// A short attempt-scaled pause keeps a flapping unit from hammering the
// submission API.
func (s *Supervisor) resubmit(ctx context.Context, summary *Summary, pj *PendingJob, reason string) error {
	attempt := pj.Attempt + 1
	s.logger.Info("Retrying unit",
		"unit", pj.Unit.ID,
		"attempt", fmt.Sprintf("%d/%d", attempt+1, s.config.MaxRetries+1),
		"reason", reason,
	)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(backoff.Exponential(attempt, s.config.RetryBackoff)):
	}

	handle, err := s.submitter.Submit(ctx, pj.Unit)
	if err != nil {
		return err
	}

	delete(s.tracked, pj.Handle)
	s.tracked[handle] = &PendingJob{
		Handle:         handle,
		Unit:           pj.Unit,
		Attempt:        attempt,
		FirstSubmitted: pj.FirstSubmitted,
	}

	summary.Retries++
	s.events.Publish(notify.EventJobRetried, pj.Unit.ID, map[string]any{
		"oldHandle": pj.Handle,
		"newHandle": handle,
		"attempt":   attempt,
		"reason":    reason,
	})
	if s.metrics != nil {
		s.metrics.RecordRetry(ctx, s.config.Queue)
	}

	return nil
}

// isClassified reports whether err already carries an apperrors sentinel.
func isClassified(err error) bool {
	var appErr *apperrors.Error
	return errors.As(err, &appErr)
}
