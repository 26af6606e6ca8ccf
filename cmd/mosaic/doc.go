// Command mosaic generates video mosaics from the command line.
//
// It runs the same pipeline as the server in-process: videos are found by
// walking the given paths, queued on a batch orchestrator and rendered with
// the configured index, storage and encoders.
//
// Usage:
//
//	mosaic run [flags] <paths...>
//	mosaic layout [flags]
//	mosaic status [flags]
//
// # run
//
// Paths may be files or directories; directories are scanned recursively
// for video files unless -no-recursive is given. Each mosaic is written
// next to its video as <name>-<width>-<density>.<format> unless -out names
// a directory or an s3:// or gs:// prefix. On a terminal the current job is
// redrawn on one line; otherwise one line is printed per finished job. A
// summary follows. The exit status is 1 when any job failed.
//
//	mosaic run -width 3840 -density XL ~/Videos
//	mosaic run -format webp -out s3://bucket/mosaics film.mkv
//
// # layout
//
// Solves a layout from an aspect ratio and a count or duration without
// reading any video, which is useful for tuning density and strategy.
//
//	mosaic layout -video 1920x1080 -duration 5400 -strategy emphasis
//
// # status
//
// Prints the size of the dedup index and its most recent entries. -vacuum
// compacts a SQLite index first; -prune 720h drops Pebble records older
// than thirty days.
//
// # Configuration
//
// The CLI reads the same MOSAIC_CONFIG file and environment variables as
// the server. Defaults differ: paths are relative to the working directory
// and the index lives in the user cache directory. Library logging is set
// to warn unless LOG_LEVEL or DEBUG is set, or -v is passed to run.
package main
