// Package handlers provides HTTP request handlers for the mosaic API.
//
// It includes handlers for:
//   - Submitting batches of videos or explicit jobs
//   - Batch state, cancellation of a batch or a single job
//   - A server-sent event stream of job progress and results
//   - Solving layouts without touching video files
//   - Paging through the SQLite dedup index
//   - Health, readiness, version and effective config
package handlers
