package apperrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidation(t *testing.T) {
	t.Parallel()
	err := Validation("chunk-size", "chunk size must be positive")

	if !errors.Is(err, ErrValidation) {
		t.Error("expected error to match ErrValidation")
	}
	if err.Error() != "chunk size must be positive" {
		t.Errorf("expected message 'chunk size must be positive', got %q", err.Error())
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatal("expected error to be *Error")
	}
	if appErr.Field != "chunk-size" {
		t.Errorf("expected field 'chunk-size', got %q", appErr.Field)
	}
}

func TestListing(t *testing.T) {
	t.Parallel()
	cause := fmt.Errorf("access denied")
	err := Listing("s3://bucket/delivery/raw/", cause)

	if !errors.Is(err, ErrListing) {
		t.Error("expected error to match ErrListing")
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatal("expected error to be *Error")
	}
	if appErr.Prefix != "s3://bucket/delivery/raw/" {
		t.Errorf("unexpected prefix %q", appErr.Prefix)
	}
	if appErr.Cause != cause {
		t.Error("expected cause to be preserved")
	}
}

func TestSubmit(t *testing.T) {
	t.Parallel()
	err := Submit("sample-a", fmt.Errorf("queue does not exist"))

	if !errors.Is(err, ErrSubmit) {
		t.Error("expected error to match ErrSubmit")
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatal("expected error to be *Error")
	}
	if appErr.Unit != "sample-a" {
		t.Errorf("expected unit 'sample-a', got %q", appErr.Unit)
	}
	if appErr.Op != "batch.submit" {
		t.Errorf("expected op 'batch.submit', got %q", appErr.Op)
	}
}

func TestStatusQuery(t *testing.T) {
	t.Parallel()
	err := StatusQuery(fmt.Errorf("throttled"))

	if !errors.Is(err, ErrStatusQuery) {
		t.Error("expected error to match ErrStatusQuery")
	}
	if err.Error() != "querying job statuses: throttled" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"validation", Validation("f", "bad"), ExitUsage},
		{"listing", Listing("s3://b/raw/", fmt.Errorf("x")), ExitFatal},
		{"submit", Submit("a", fmt.Errorf("x")), ExitFatal},
		{"status query", StatusQuery(fmt.Errorf("x")), ExitFatal},
		{"internal", Internal("op", fmt.Errorf("x")), ExitFatal},
		{"plain", fmt.Errorf("plain"), ExitFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestWrappedClassification(t *testing.T) {
	t.Parallel()
	err := fmt.Errorf("round 3: %w", StatusQuery(fmt.Errorf("connection reset")))

	if !errors.Is(err, ErrStatusQuery) {
		t.Error("expected wrapped error to still match ErrStatusQuery")
	}
}
