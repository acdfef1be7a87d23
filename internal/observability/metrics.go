package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds all application metrics for an orchestration run:
// - Traffic: submissions and retries
// - Errors: permanent failures
// - Latency: per-unit time to a terminal state, poll round duration
// - Saturation: jobs currently in flight
type Metrics struct {
	meter metric.Meter

	// Submission and supervision metrics
	SubmissionsTotal metric.Int64Counter
	RetriesTotal     metric.Int64Counter
	UnitsCompleted   metric.Int64Counter
	UnitDuration     metric.Float64Histogram
	JobsInFlight     metric.Int64UpDownCounter
	PollRoundsTotal  metric.Int64Counter
	PollRoundSize    metric.Int64Gauge

	// Notifier metrics
	NotifierDelivered metric.Int64Counter
	NotifierFailed    metric.Int64Counter
	NotifierDropped   metric.Int64Counter
}

// NewMetrics creates and registers all metrics with a Prometheus exporter.
func NewMetrics(ctx context.Context) (*Metrics, http.Handler, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter("sizerbatch")
	m := &Metrics{meter: meter}

	m.SubmissionsTotal, err = meter.Int64Counter(
		"submissions_total",
		metric.WithDescription("Total job submissions, including resubmissions"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.RetriesTotal, err = meter.Int64Counter(
		"retries_total",
		metric.WithDescription("Total resubmissions after a FAILED status"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.UnitsCompleted, err = meter.Int64Counter(
		"units_completed_total",
		metric.WithDescription("Work units that reached a terminal state"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.UnitDuration, err = meter.Float64Histogram(
		"unit_duration_seconds",
		metric.WithDescription("Time from first submission to terminal state per unit"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(30, 60, 120, 300, 600, 1800, 3600, 7200, 14400),
	)
	if err != nil {
		return nil, nil, err
	}

	m.JobsInFlight, err = meter.Int64UpDownCounter(
		"jobs_in_flight",
		metric.WithDescription("Jobs currently tracked by the supervisor (saturation)"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.PollRoundsTotal, err = meter.Int64Counter(
		"poll_rounds_total",
		metric.WithDescription("Supervision polling rounds completed"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.PollRoundSize, err = meter.Int64Gauge(
		"poll_round_size",
		metric.WithDescription("Tracked handles at the start of the latest polling round"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.NotifierDelivered, err = meter.Int64Counter(
		"notifier_delivered_total",
		metric.WithDescription("Lifecycle events successfully delivered"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.NotifierFailed, err = meter.Int64Counter(
		"notifier_failed_total",
		metric.WithDescription("Lifecycle events failed after retries"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.NotifierDropped, err = meter.Int64Counter(
		"notifier_dropped_total",
		metric.WithDescription("Lifecycle events dropped (buffer full)"),
	)
	if err != nil {
		return nil, nil, err
	}

	return m, promhttp.Handler(), nil
}

// RecordSubmission records one job submission.
func (m *Metrics) RecordSubmission(ctx context.Context, queue string) {
	attrs := metric.WithAttributes(queueAttr(queue))
	m.SubmissionsTotal.Add(ctx, 1, attrs)
	m.JobsInFlight.Add(ctx, 1, attrs)
}

// RecordRetry records a resubmission after a FAILED status.
// The replaced job leaves flight accounting; the resubmission re-enters it
// via RecordSubmission.
func (m *Metrics) RecordRetry(ctx context.Context, queue string) {
	attrs := metric.WithAttributes(queueAttr(queue))
	m.RetriesTotal.Add(ctx, 1, attrs)
	m.JobsInFlight.Add(ctx, -1, attrs)
}

// RecordUnitCompleted records a work unit reaching a terminal state.
func (m *Metrics) RecordUnitCompleted(ctx context.Context, queue string, success bool, durationSeconds float64) {
	m.UnitsCompleted.Add(ctx, 1, metric.WithAttributes(queueAttr(queue), successAttr(success)))
	m.UnitDuration.Record(ctx, durationSeconds, metric.WithAttributes(successAttr(success)))
	m.JobsInFlight.Add(ctx, -1, metric.WithAttributes(queueAttr(queue)))
}

// RecordPollRound records one completed supervision round.
func (m *Metrics) RecordPollRound(ctx context.Context, tracked int) {
	m.PollRoundsTotal.Add(ctx, 1)
	m.PollRoundSize.Record(ctx, int64(tracked))
}

// RecordNotifierDelivered records a successful event delivery.
func (m *Metrics) RecordNotifierDelivered(ctx context.Context) {
	m.NotifierDelivered.Add(ctx, 1)
}

// RecordNotifierFailed records a failed event delivery.
func (m *Metrics) RecordNotifierFailed(ctx context.Context) {
	m.NotifierFailed.Add(ctx, 1)
}

// RecordNotifierDropped records a dropped event.
func (m *Metrics) RecordNotifierDropped(ctx context.Context) {
	m.NotifierDropped.Add(ctx, 1)
}
