package storage

import (
	"testing"
)

func TestSplitURI(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		uri        string
		wantBucket string
		wantKey    string
		wantErr    bool
	}{
		{
			name:       "bucket and key",
			uri:        "s3://my-bucket/delivery-01/raw/",
			wantBucket: "my-bucket",
			wantKey:    "delivery-01/raw/",
		},
		{
			name:       "bucket only",
			uri:        "s3://my-bucket",
			wantBucket: "my-bucket",
			wantKey:    "",
		},
		{
			name:    "missing scheme",
			uri:     "my-bucket/delivery-01/raw/",
			wantErr: true,
		},
		{
			name:    "empty bucket",
			uri:     "s3:///raw/",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			bucket, key, err := SplitURI(tt.uri)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if bucket != tt.wantBucket {
				t.Errorf("bucket = %q, want %q", bucket, tt.wantBucket)
			}
			if key != tt.wantKey {
				t.Errorf("key = %q, want %q", key, tt.wantKey)
			}
		})
	}
}

func TestNewS3Lister_Anonymous(t *testing.T) {
	t.Parallel()

	lister, err := NewS3Lister(S3Config{NoSignRequest: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lister.client == nil {
		t.Fatal("expected client to be set")
	}
}
