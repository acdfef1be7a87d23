// Package remote implements batch.Runner as a client of a jobs-service HTTP
// API: POST /v1/jobs to submit, GET /v1/jobs/{id} for status. The handle is
// the job ID this client assigns at submission time.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"sizerbatch/internal/apperrors"
	"sizerbatch/internal/batch"
)

// Config holds configuration for the remote runner.
type Config struct {
	BaseURL     string        // e.g. http://jobs.internal:8080
	APIKey      string        // bearer token, empty disables auth header
	HTTPTimeout time.Duration // per-request timeout (default 30s)
}

// Runner submits jobs to a remote jobs service.
type Runner struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewRunner creates a remote runner.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.BaseURL == "" {
		return nil, apperrors.Validation("batch-url", "batch service URL is required")
	}

	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Runner{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// jobRequest is the service's job creation payload.
type jobRequest struct {
	ID      string            `json:"id"`
	Image   string            `json:"image"`
	Command []string          `json:"command"`
	Meta    map[string]string `json:"meta,omitempty"`
}

// jobStatus is the service's status payload.
type jobStatus struct {
	ID       string `json:"id"`
	State    string `json:"status"`
	ExitCode *int   `json:"exitCode,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Submit posts one job. The handle is a fresh unique job ID so a retried
// unit never collides with its earlier attempts on the service side.
func (r *Runner) Submit(ctx context.Context, spec batch.SubmitSpec) (string, error) {
	handle := fmt.Sprintf("%s-%s", spec.Name, uuid.NewString()[:8])

	body, err := json.Marshal(jobRequest{
		ID:      handle,
		Image:   spec.Definition,
		Command: spec.Command,
		Meta:    map[string]string{"queue": spec.Queue},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal job request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/jobs", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	r.authorize(req)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("job rejected: HTTP %d", resp.StatusCode)
	}

	return handle, nil
}

// Describe queries each handle's status. The service has no bulk endpoint,
// so this issues one GET per handle; callers still see one logical call.
func (r *Runner) Describe(ctx context.Context, handles []string) ([]batch.JobDetail, error) {
	if len(handles) > batch.DescribeLimit {
		return nil, apperrors.StatusQuery(fmt.Errorf("describe called with %d handles, limit is %d", len(handles), batch.DescribeLimit))
	}

	details := make([]batch.JobDetail, 0, len(handles))
	for _, handle := range handles {
		status, err := r.getStatus(ctx, handle)
		if err != nil {
			return nil, apperrors.StatusQuery(err)
		}
		details = append(details, mapStatus(handle, status))
	}
	return details, nil
}

func (r *Runner) getStatus(ctx context.Context, handle string) (*jobStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/v1/jobs/"+handle, nil)
	if err != nil {
		return nil, err
	}
	r.authorize(req)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status for %s: HTTP %d", handle, resp.StatusCode)
	}

	var status jobStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode status for %s: %w", handle, err)
	}
	return &status, nil
}

// mapStatus translates jobs-service states into batch statuses.
func mapStatus(handle string, s *jobStatus) batch.JobDetail {
	detail := batch.JobDetail{Handle: handle}

	switch s.State {
	case "accepted":
		detail.Status = batch.StatusSubmitted
	case "running":
		detail.Status = batch.StatusRunning
	case "completed":
		detail.Status = batch.StatusSucceeded
	case "failed":
		detail.Status = batch.StatusFailed
		detail.Reason = s.Error
		if detail.Reason == "" && s.ExitCode != nil {
			detail.Reason = fmt.Sprintf("exit code %d", *s.ExitCode)
		}
	case "cancelled":
		detail.Status = batch.StatusFailed
		detail.Reason = "cancelled"
	default:
		detail.Status = batch.StatusPending
	}

	return detail
}

// Ready checks the service's readiness endpoint.
func (r *Runner) Ready(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/readyz", nil)
	if err != nil {
		return err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("batch service not ready: HTTP %d", resp.StatusCode)
	}
	return nil
}

// Close releases idle connections.
func (r *Runner) Close() error {
	r.client.CloseIdleConnections()
	return nil
}

func (r *Runner) authorize(req *http.Request) {
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}
}
