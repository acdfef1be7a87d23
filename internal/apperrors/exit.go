package apperrors

import "errors"

// Process exit codes. Kept distinct so wrapper scripts can tell a usage
// problem from a runtime failure.
const (
	ExitOK       = 0
	ExitJobsLost = 1 // run completed but at least one unit failed permanently
	ExitFatal    = 2 // fatal propagated error (listing, submit, status query)
	ExitUsage    = 3 // invalid flags or configuration
)

// ExitCode maps an error to the appropriate process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrValidation):
		return ExitUsage
	case errors.Is(err, ErrListing), errors.Is(err, ErrSubmit), errors.Is(err, ErrStatusQuery):
		return ExitFatal
	default:
		return ExitFatal
	}
}
