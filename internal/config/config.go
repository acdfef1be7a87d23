// Package config provides configuration loading from environment variables.
// CLI flags layer on top of these values in cmd/sizer-submit.
package config

import (
	"time"
)

// RunConfig holds configuration for one orchestration run.
type RunConfig struct {
	JobQueue      string        // batch queue identifier
	JobDefinition string        // batch job definition identifier
	ChunkSize     int           // reads per output chunk
	ZstdLevel     int           // zstd compression level passed to the sizer
	MaxRetries    int           // resubmissions allowed per unit before permanent failure
	PollInterval  time.Duration // pause between supervision rounds
	MetricsPort   string        // prometheus listener port, empty to disable
	WebhookURL    string        // lifecycle event destination, empty to disable
	WebhookKey    string        // HMAC signing key for webhook events
	S3Endpoint    string        // S3-compatible endpoint for listings
	S3Region      string
}

// LoadRunConfig loads run configuration from environment variables.
func LoadRunConfig() *RunConfig {
	return &RunConfig{
		JobQueue:      GetEnv("JOB_QUEUE", ""),
		JobDefinition: GetEnv("JOB_DEFINITION", ""),
		ChunkSize:     GetIntEnv("CHUNK_SIZE", 1000000),
		ZstdLevel:     GetIntEnv("ZSTD_LEVEL", 5),
		MaxRetries:    GetIntEnv("MAX_RETRIES", 3),
		PollInterval:  GetDurationEnv("POLL_INTERVAL", 5*time.Second),
		MetricsPort:   GetEnv("METRICS_PORT", ""),
		WebhookURL:    GetEnv("WEBHOOK_URL", ""),
		WebhookKey:    GetSecretFile(GetEnv("WEBHOOK_KEY_FILE", "")),
		S3Endpoint:    GetEnv("S3_ENDPOINT", "s3.amazonaws.com"),
		S3Region:      GetEnv("S3_REGION", ""),
	}
}
