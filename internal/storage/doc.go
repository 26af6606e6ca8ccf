// Package storage writes encoded mosaics to their output target.
//
// A target is a local path, an s3://bucket/key URL or a gs://bucket/object
// URL. Local writes are atomic (temp file plus rename) and retry on stale
// NFS handles. Cloud clients are created lazily on first use.
package storage
