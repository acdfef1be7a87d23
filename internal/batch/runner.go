// Package batch defines the Runner interface and job submission types.
package batch

import "context"

// Job status values reported by a Runner. Non-terminal values mean the job
// is somewhere between accepted and finished; the supervisor only acts on
// the two terminal ones.
const (
	StatusSubmitted = "SUBMITTED"
	StatusPending   = "PENDING"
	StatusRunnable  = "RUNNABLE"
	StatusStarting  = "STARTING"
	StatusRunning   = "RUNNING"
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
)

// Terminal reports whether a status is SUCCEEDED or FAILED.
func Terminal(status string) bool {
	return status == StatusSucceeded || status == StatusFailed
}

// DescribeLimit is the maximum number of handles a Runner accepts per
// Describe call. Callers with more in-flight jobs must batch.
const DescribeLimit = 100

// SubmitSpec describes one job submission.
type SubmitSpec struct {
	Name       string   // job name, e.g. "sizer-<unit id>"
	Queue      string   // queue identifier
	Definition string   // job definition or image identifier
	Command    []string // container command override
}

// JobDetail is the reported status of one submission.
type JobDetail struct {
	Handle string // the handle the status belongs to
	Status string
	Reason string // failure reason, when Status is FAILED
}

// Runner executes submitted jobs on some batch backend.
//
// Each Submit call is one submission attempt and yields a fresh opaque
// handle; resubmitting the same work produces a new handle. Describe matches
// results to requests by handle, never by position, and may return them in
// any order.
//
// Implementations must not retry failed jobs themselves. Retry policy lives
// entirely in the supervisor so the retry budget stays observable in one
// place.
type Runner interface {
	// Submit queues one job for execution and returns its handle.
	Submit(ctx context.Context, spec SubmitSpec) (string, error)

	// Describe returns the status of up to DescribeLimit handles.
	// Unknown handles may be omitted from the result.
	Describe(ctx context.Context, handles []string) ([]JobDetail, error)

	// Ready checks that the backend is reachable.
	Ready(ctx context.Context) error

	// Close releases resources held by the runner.
	// Submitted jobs are NOT stopped - they run to completion independently.
	Close() error
}
