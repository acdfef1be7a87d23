// sizer-submit discovers paired FASTQ files in object storage, submits one
// sizer batch job per pair, and supervises the jobs to completion.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sizerbatch/internal/apperrors"
	"sizerbatch/internal/batch"
	"sizerbatch/internal/batch/docker"
	"sizerbatch/internal/batch/remote"
	"sizerbatch/internal/config"
	"sizerbatch/internal/health"
	"sizerbatch/internal/manifest"
	"sizerbatch/internal/notify"
	"sizerbatch/internal/observability"
	"sizerbatch/internal/resolve"
	"sizerbatch/internal/storage"
	"sizerbatch/internal/submit"
	"sizerbatch/internal/supervise"
)

// errUnitsFailed marks a run that finished but left permanent failures.
var errUnitsFailed = errors.New("one or more units failed permanently")

type options struct {
	sampleSheet    string
	bucket         string
	delivery       string
	outDir         string
	writeManifest  string
	runnerKind     string
	remoteURL      string
	dryRun         bool
	noSignRequest  bool
	ignoreExisting bool

	cfg *config.RunConfig
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := run(os.Args[1:]); err != nil {
		code := apperrors.ExitCode(err)
		if errors.Is(err, errUnitsFailed) {
			code = apperrors.ExitJobsLost
		}
		slog.Error("Run failed", "error", err)
		os.Exit(code)
	}
}

// parseFlags layers CLI flags over the env-var defaults in RunConfig.
func parseFlags(args []string) (*options, error) {
	cfg := config.LoadRunConfig()
	opts := &options{cfg: cfg}

	fs := flag.NewFlagSet("sizer-submit", flag.ContinueOnError)
	fs.StringVar(&opts.sampleSheet, "sample-sheet", "", "path to a previously written sample manifest CSV")
	fs.StringVar(&opts.bucket, "bucket", "", "bucket holding the delivery")
	fs.StringVar(&opts.delivery, "delivery", "", "delivery folder inside the bucket")
	fs.StringVar(&opts.outDir, "outdir", "", "override the derived output directory (s3:// URI)")
	fs.StringVar(&opts.writeManifest, "write-manifest", "", "write the resolved sample manifest CSV to this path")
	fs.StringVar(&opts.runnerKind, "runner", config.GetEnv("RUNNER", "remote"), "batch backend: remote or docker")
	fs.StringVar(&opts.remoteURL, "remote-url", config.GetEnv("JOBS_API_URL", ""), "jobs service base URL for the remote runner")
	fs.StringVar(&cfg.JobQueue, "job-queue", cfg.JobQueue, "batch queue to submit to")
	fs.StringVar(&cfg.JobDefinition, "job-definition", cfg.JobDefinition, "job definition (or container image) to run")
	fs.IntVar(&cfg.ChunkSize, "chunk-size", cfg.ChunkSize, "reads per output chunk")
	fs.IntVar(&cfg.ZstdLevel, "zstd-level", cfg.ZstdLevel, "zstd compression level")
	fs.IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, "resubmissions allowed per unit")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "pause between supervision rounds")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "resolve and print submissions without calling the backend")
	fs.BoolVar(&opts.noSignRequest, "no-sign-request", false, "list the bucket anonymously")
	fs.BoolVar(&opts.ignoreExisting, "ignore-existing", false, "resubmit units that already have output chunks")

	if err := fs.Parse(args); err != nil {
		return nil, apperrors.Validation("flags", err.Error())
	}

	fromSheet := opts.sampleSheet != ""
	fromBucket := opts.bucket != "" && opts.delivery != ""
	if fromSheet == fromBucket {
		return nil, apperrors.Validation("input", "provide either -sample-sheet or both -bucket and -delivery")
	}
	if cfg.JobQueue == "" {
		return nil, apperrors.Validation("job-queue", "required")
	}
	if cfg.JobDefinition == "" {
		return nil, apperrors.Validation("job-definition", "required")
	}
	if opts.runnerKind != "remote" && opts.runnerKind != "docker" {
		return nil, apperrors.Validation("runner", fmt.Sprintf("unknown backend %q", opts.runnerKind))
	}
	if opts.runnerKind == "remote" && !opts.dryRun && opts.remoteURL == "" {
		return nil, apperrors.Validation("remote-url", "required for the remote runner")
	}

	return opts, nil
}

func run(args []string) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg := opts.cfg

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	units, err := resolveUnits(ctx, opts)
	if err != nil {
		return err
	}

	if opts.writeManifest != "" {
		if err := manifest.Write(opts.writeManifest, units); err != nil {
			return err
		}
		slog.Info("Wrote sample manifest", "path", opts.writeManifest, "units", len(units))
	}

	if len(units) == 0 {
		slog.Info("No samples to process")
		return nil
	}

	params := submit.Params{
		JobQueue:      cfg.JobQueue,
		JobDefinition: cfg.JobDefinition,
		ChunkSize:     cfg.ChunkSize,
		ZstdLevel:     cfg.ZstdLevel,
		DryRun:        opts.dryRun,
	}

	if opts.dryRun {
		return dryRun(ctx, units, params)
	}

	metrics, metricsHandler, err := observability.NewMetrics(ctx)
	if err != nil {
		return err
	}
	if cfg.MetricsPort != "" {
		serveMetrics(cfg.MetricsPort, metricsHandler)
	}

	runner, err := newRunner(ctx, opts)
	if err != nil {
		return err
	}
	defer runner.Close()

	checker := health.NewChecker()
	checker.AddReadiness("batch", runner)
	if report := checker.Run(ctx); !report.IsHealthy() {
		return report.Err()
	}

	var events notify.Publisher = notify.Nop{}
	var webhook *notify.Webhook
	if cfg.WebhookURL != "" {
		webhook = notify.NewWebhook(notify.Config{
			URL:        cfg.WebhookURL,
			SigningKey: cfg.WebhookKey,
		}, metrics)
		events = webhook
	}

	submitter := submit.New(runner, params, metrics)
	supervisor := supervise.New(runner, submitter, supervise.Config{
		MaxRetries:   cfg.MaxRetries,
		PollInterval: cfg.PollInterval,
		Queue:        cfg.JobQueue,
	}, metrics, events)

	slog.Info("Submitting work units",
		"units", len(units),
		"queue", cfg.JobQueue,
		"definition", cfg.JobDefinition,
	)
	if err := supervisor.SubmitAll(ctx, units); err != nil {
		return err
	}

	summary, err := supervisor.Run(ctx)
	if err != nil {
		return err
	}

	events.Publish(notify.EventRunCompleted, opts.delivery, map[string]any{
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
		"retries":   summary.Retries,
	})
	if webhook != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := webhook.Close(closeCtx); err != nil {
			slog.Warn("Notifier shutdown error", "error", err)
		}
		stats := webhook.Stats()
		slog.Info("Notifier stats",
			"delivered", stats.Delivered,
			"failed", stats.Failed,
			"dropped", stats.Dropped,
		)
	}

	for _, failed := range summary.Permanent {
		slog.Error("Unit lost",
			"unit", failed.Unit.ID,
			"attempts", failed.Attempts,
			"reason", failed.Reason,
		)
	}
	if len(summary.Permanent) > 0 {
		return fmt.Errorf("%w: %d of %d", errUnitsFailed, len(summary.Permanent), len(units))
	}

	slog.Info("All units succeeded", "units", summary.Succeeded, "retries", summary.Retries)
	return nil
}

// resolveUnits loads the work list from a manifest or resolves it live.
func resolveUnits(ctx context.Context, opts *options) ([]resolve.WorkUnit, error) {
	if opts.sampleSheet != "" {
		units, err := manifest.Load(opts.sampleSheet)
		if err != nil {
			return nil, err
		}
		slog.Info("Loaded sample manifest", "path", opts.sampleSheet, "units", len(units))
		return units, nil
	}

	lister, err := storage.NewS3Lister(storage.S3Config{
		Endpoint:      opts.cfg.S3Endpoint,
		Region:        opts.cfg.S3Region,
		NoSignRequest: opts.noSignRequest,
	})
	if err != nil {
		return nil, err
	}

	resolver := resolve.New(lister)
	units, err := resolver.Resolve(ctx, opts.bucket, opts.delivery, resolve.Options{
		OutDir:         opts.outDir,
		IgnoreExisting: opts.ignoreExisting,
	})
	if err != nil {
		return nil, err
	}
	slog.Info("Resolved work units", "bucket", opts.bucket, "delivery", opts.delivery, "units", len(units))
	return units, nil
}

// dryRun prints what would be submitted and exits without touching any backend.
func dryRun(ctx context.Context, units []resolve.WorkUnit, params submit.Params) error {
	submitter := submit.New(nil, params, nil)
	for _, unit := range units {
		if _, err := submitter.Submit(ctx, unit); err != nil {
			return err
		}
	}
	slog.Info("Dry run complete", "units", len(units))
	return nil
}

// newRunner builds the selected batch backend.
func newRunner(ctx context.Context, opts *options) (batch.Runner, error) {
	switch opts.runnerKind {
	case "docker":
		return docker.NewRunner(ctx, docker.Config{})
	default:
		return remote.NewRunner(remote.Config{
			BaseURL: opts.remoteURL,
			APIKey:  config.GetSecretFile(config.GetEnv("JOBS_API_KEY_FILE", "")),
		})
	}
}

// serveMetrics exposes the prometheus handler for the duration of the run.
func serveMetrics(port string, handler http.Handler) {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", handler)
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("Starting metrics server", "port", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Warn("Metrics server failed", "error", err)
		}
	}()
}
