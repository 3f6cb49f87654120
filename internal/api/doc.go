// Package api defines wire-format types and converters for the HTTP
// API layer. It translates internal inspection, blending, and trace
// models into transport-friendly DTOs so station clients can render
// them without coupling to internal types.
//
// DTOs use camelCase JSON tags. Internal enums (verdicts, inspection
// types, work statuses) are exposed as strings. Timestamps use RFC3339
// with milliseconds. Scalar measurements appear keyed by item name,
// only for analytes that have values.
package api
