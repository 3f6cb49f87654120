// Package logging builds the slog loggers used across powderlab.
//
// Two output formats are supported: a compact console format for
// interactive station use and JSON for log shipping. Attr helpers and
// standardized field keys keep powder/lot/batch identifiers consistent
// across components so traces can be stitched together from the logs of
// several stations.
package logging
