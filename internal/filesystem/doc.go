/*
Package filesystem wraps the file operations used on video libraries and
output directories with retry logic for NFS stale file handle errors.

Only ESTALE (errno 116) triggers a retry; every other error is returned at
once. Retries back off exponentially, 50ms → 100ms → 200ms by default:

	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())

WriteFileAtomic writes through a temporary file and a rename, so a
half-written mosaic is never visible under its final name.

Metrics are labelled with a volume name resolved by longest-prefix match
against the configured mounts (see NewVolumeResolver) and reported through
the Observer installed with SetObserver.
*/
package filesystem
