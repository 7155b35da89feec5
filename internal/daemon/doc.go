// Package daemon wires the long-running emotrack runtime from configuration.
//
// It builds the credential pools, the inference and generation clients, the
// session archive, the live feed and the HTTP server, then holds a flock on
// the recorder lock so only one process records into a data directory at a
// time. Both the record and serve commands run through a Daemon.
//
// Keep orchestration here: capture, summarisation and storage logic live in
// their own packages while the daemon focuses on startup and shutdown.
package daemon
