// Package preflight provides readiness checks for the filesystem paths
// and database that powderlab depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll before accepting API traffic; a failed
//     check aborts startup instead of surfacing as mid-shift errors.
//   - The CLI "powderlab status" command uses the same checks to
//     display environment health without a running daemon.
package preflight
