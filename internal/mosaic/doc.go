// Package mosaic is the engine API: it turns one video into one mosaic.
//
// A job runs through discovery (stat, metadata, dedup), frame extraction and
// compositing, then encoding and writing. Jobs already present in the Index
// are reported as skipped rather than failed, and two concurrent jobs for the
// same key never both compose.
package mosaic
