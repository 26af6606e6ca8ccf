// Package database provides the SQLite-backed mosaic index.
//
// It records every generated mosaic keyed by (content hash, width, density,
// strategy) so that batches can skip videos whose mosaic already exists, and
// keeps a small metadata table for run bookkeeping such as the time of the
// last batch.
//
// The database uses WAL mode for concurrent readers and applies its schema
// and migrations on open.
package database
