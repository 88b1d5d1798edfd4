// Package log records connection lifecycle events for portico listeners.
//
// It is separate from operational logging (slog). Operational logs tell an
// operator that something went wrong; the event log is a complete,
// machine-readable trace of every accept, backoff decision and TLS
// handshake, keyed by connection ID, for later analysis with portico-log.
//
// # Basic Usage
//
//	// Console during development
//	events := log.NewSlogAdapter(slog.Default())
//
//	// Binary file in production
//	events, _ := log.NewFileLogger("/var/log/portico/accept.plog")
//
//	// Both
//	events := log.NewMultiLogger(console, file)
//
// # File Format
//
// Files are a stream of CBOR-encoded Event values with integer keys. The
// .plog extension is conventional.
package log
