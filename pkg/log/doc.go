// Package log provides structured logging for Ridgeline built on zerolog.
//
// A single global logger is initialized once at process startup via Init and
// consumed through small helpers or component-scoped child loggers
// (WithComponent, WithCluster, WithOperation). Console output is the default;
// JSON output is used when running as a daemon behind the HTTP API.
package log
