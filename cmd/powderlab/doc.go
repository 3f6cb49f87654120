// Package main hosts the powderlab CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into HTTP
// calls against the station daemon: starting inspections, submitting
// measurements, recording blending inputs, tracing lots, and configuration
// scaffolding. It centralizes configuration resolution and API client
// construction so subcommands can focus on rendering.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
