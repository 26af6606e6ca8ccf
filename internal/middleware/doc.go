// Package middleware provides HTTP middleware for the mosaic API server.
//
// It includes:
//   - Request logging in W3C Extended Log Format
//   - Prometheus request metrics labelled by route template
//   - Panic recovery that answers 500 instead of dropping the connection
package middleware
