package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"sizerbatch/internal/apperrors"
)

// S3Config holds configuration for the S3 lister.
type S3Config struct {
	Endpoint      string // S3-compatible endpoint host (default AWS)
	Region        string
	NoSignRequest bool // anonymous access, for public buckets
	Insecure      bool // plain HTTP, for local S3-compatible stores
}

// S3Lister lists objects in S3-compatible storage.
type S3Lister struct {
	client *minio.Client
}

// NewS3Lister creates a lister against an S3-compatible endpoint.
// Credentials come from the standard AWS environment variables unless
// NoSignRequest is set, in which case requests go out unsigned.
func NewS3Lister(cfg S3Config) (*S3Lister, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "s3.amazonaws.com"
	}

	creds := credentials.NewEnvAWS()
	if cfg.NoSignRequest {
		creds = credentials.NewStaticV4("", "", "")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  creds,
		Secure: !cfg.Insecure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}

	return &S3Lister{client: client}, nil
}

// List returns the bare filenames directly under prefix, which must be an
// s3://bucket/key/ URI. Sub-prefixes (directories) are skipped.
func (l *S3Lister) List(ctx context.Context, prefix string, allowMissing bool) ([]string, error) {
	bucket, key, err := SplitURI(prefix)
	if err != nil {
		return nil, apperrors.Listing(prefix, err)
	}

	names := []string{}
	for obj := range l.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    key,
		Recursive: false,
	}) {
		if obj.Err != nil {
			if allowMissing {
				slog.Warn("Could not list prefix, assuming missing", "prefix", prefix, "error", obj.Err)
				return []string{}, nil
			}
			return nil, apperrors.Listing(prefix, obj.Err)
		}

		name := strings.TrimPrefix(obj.Key, key)
		if name == "" || strings.Contains(name, "/") {
			continue
		}
		names = append(names, name)
	}

	return names, nil
}

// SplitURI splits an s3://bucket/key URI into bucket and key.
func SplitURI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 URI: %q", uri)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("missing bucket in URI: %q", uri)
	}
	return bucket, key, nil
}
