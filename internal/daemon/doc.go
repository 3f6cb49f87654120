// Package daemon runs the powderlab station server: it owns the shared
// store handle, enforces single-instance execution with a lock file,
// and serves the HTTP API the stations and the CLI talk to.
package daemon
