// Package batch runs many mosaic jobs under a bounded, pressure-adaptive
// concurrency limit.
//
// A single scheduling goroutine owns the queue, the in-flight set and the
// counters; every other method talks to it through a command channel.
// Events for one job are delivered in order (queued, progress..., terminal)
// and every submitted job gets exactly one terminal event. Cancelled jobs
// release their slot immediately; whatever their goroutine returns later is
// discarded.
package batch
