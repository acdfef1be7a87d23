// Package submit builds and submits one sizer job per work unit.
package submit

import (
	"context"
	"fmt"
	"log/slog"

	"sizerbatch/internal/apperrors"
	"sizerbatch/internal/batch"
	"sizerbatch/internal/observability"
	"sizerbatch/internal/resolve"
)

// Params are the run parameters embedded into every job.
type Params struct {
	JobQueue      string
	JobDefinition string
	ChunkSize     int // reads per output chunk
	ZstdLevel     int // zstd compression level
	DryRun        bool
}

// Submitter submits work units to a batch runner.
//
// One Submit call makes exactly one submission call (none in dry-run mode).
// Failures propagate; retry policy belongs to the supervisor.
type Submitter struct {
	runner  batch.Runner
	params  Params
	metrics *observability.Metrics
	logger  *slog.Logger
}

// New creates a submitter.
func New(runner batch.Runner, params Params, metrics *observability.Metrics) *Submitter {
	return &Submitter{
		runner:  runner,
		params:  params,
		metrics: metrics,
		logger:  slog.With("component", "submitter"),
	}
}

// Submit submits one job for the unit and returns its handle. In dry-run
// mode no call leaves the process and the handle is a stable placeholder
// derived from the unit id.
func (s *Submitter) Submit(ctx context.Context, unit resolve.WorkUnit) (string, error) {
	spec := batch.SubmitSpec{
		Name:       "sizer-" + unit.ID,
		Queue:      s.params.JobQueue,
		Definition: s.params.JobDefinition,
		Command:    Command(unit, s.params),
	}

	if s.params.DryRun {
		s.logger.Info("Dry run, job not submitted", "unit", unit.ID, "command", spec.Command[2])
		return DryRunHandle(unit.ID), nil
	}

	handle, err := s.runner.Submit(ctx, spec)
	if err != nil {
		return "", apperrors.Submit(unit.ID, err)
	}

	if s.metrics != nil {
		s.metrics.RecordSubmission(ctx, s.params.JobQueue)
	}

	return handle, nil
}

// DryRunHandle returns the deterministic placeholder handle for a unit.
// Stable across invocations so dry-run logs and tests line up, and never
// a shape the batch runner would assign.
func DryRunHandle(unitID string) string {
	return "dry-run-" + unitID
}

// Command builds the container command for one unit. The sizer script
// streams both inputs from storage, splits them into interleaved chunks of
// ChunkSize reads, and uploads zstd-compressed output under the unit's
// output path.
func Command(unit resolve.WorkUnit, params Params) []string {
	script := fmt.Sprintf(
		"sizer.sh -s /usr/local/bin/split_interleave_fastqs"+
			" -u /sequence_tools/compress_upload.sh"+
			" -c %d -l %d"+
			" <(aws s3 cp %s - | gunzip)"+
			" <(aws s3 cp %s - | gunzip)"+
			" %s %s%s",
		params.ChunkSize, params.ZstdLevel,
		unit.FastQ1, unit.FastQ2,
		unit.ID, unit.OutDir, unit.ID,
	)
	return []string{"/bin/bash", "-c", script}
}
