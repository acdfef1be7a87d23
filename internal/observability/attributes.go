// Package observability provides metrics and logging utilities.
package observability

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Attribute keys
const (
	attrQueue   = "queue"
	attrSuccess = "success"
)

func queueAttr(queue string) attribute.KeyValue {
	return attribute.String(attrQueue, queue)
}

func successAttr(success bool) attribute.KeyValue {
	return attribute.Bool(attrSuccess, success)
}

// WithQueue returns a metric option with the queue attribute.
func WithQueue(queue string) metric.MeasurementOption {
	return metric.WithAttributes(queueAttr(queue))
}

// WithSuccess returns a metric option with the success attribute.
func WithSuccess(success bool) metric.MeasurementOption {
	return metric.WithAttributes(successAttr(success))
}
