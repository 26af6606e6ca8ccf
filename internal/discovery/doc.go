// Package discovery turns user-supplied paths into mosaic jobs.
//
// Directories are walked (optionally recursively) for files with a known
// video extension; hidden entries are skipped the same way the index walk
// skips them. Directory reads go through filesystem.ReadDirWithRetry so
// network mounts that briefly return ESTALE do not drop whole folders.
//
// Output paths are derived from the input name, the mosaic width and the
// density, so two jobs that differ only in settings never collide:
//
//	/media/holiday.mp4 -> /output/holiday-1920-M.jpg
//
// An output root of the form s3://bucket/prefix or gs://bucket/prefix is
// joined as an object key instead of a file path.
package discovery
