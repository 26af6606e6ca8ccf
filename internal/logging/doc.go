// Package logging provides a simple leveled logging interface for the
// mosaic engine and its binaries.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable and can
// be overridden at runtime with SetLevel. Component loggers created with With
// prefix each line, which keeps interleaved output from concurrent batch jobs
// readable.
package logging
