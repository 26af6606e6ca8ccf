package storage

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Backend identifies where a target lives.
type Backend string

const (
	BackendLocal Backend = "local"
	BackendS3    Backend = "s3"
	BackendGCS   Backend = "gcs"
)

// Target is a parsed output location.
type Target struct {
	Backend Backend
	// Bucket and Key are set for cloud targets.
	Bucket string
	Key    string
	// Path is set for local targets.
	Path string
}

// ParseTarget parses a local path or an s3:// / gs:// URL.
func ParseTarget(raw string) (Target, error) {
	if raw == "" {
		return Target{}, fmt.Errorf("empty output target")
	}

	var backend Backend
	var rest string
	switch {
	case strings.HasPrefix(raw, "s3://"):
		backend, rest = BackendS3, strings.TrimPrefix(raw, "s3://")
	case strings.HasPrefix(raw, "gs://"):
		backend, rest = BackendGCS, strings.TrimPrefix(raw, "gs://")
	case strings.Contains(raw, "://"):
		return Target{}, fmt.Errorf("unsupported output scheme in %q", raw)
	default:
		return Target{Backend: BackendLocal, Path: filepath.Clean(raw)}, nil
	}

	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || strings.Trim(key, "/") == "" {
		return Target{}, fmt.Errorf("%s target %q needs a bucket and an object key", backend, raw)
	}
	return Target{Backend: backend, Bucket: bucket, Key: strings.TrimPrefix(key, "/")}, nil
}

func (t Target) String() string {
	switch t.Backend {
	case BackendS3:
		return "s3://" + t.Bucket + "/" + t.Key
	case BackendGCS:
		return "gs://" + t.Bucket + "/" + t.Key
	default:
		return t.Path
	}
}
