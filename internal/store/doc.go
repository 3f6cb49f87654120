// Package store persists powderlab state in a shared SQLite database.
//
// Every station process (daemon or CLI) opens the same WAL-mode
// database file. Each logical operation runs inside one transaction via
// WithTx; on a lock conflict the whole transaction is rolled back and
// retried with exponential backoff, so callers never observe partial
// effects. When the retry budget is exhausted the returned error wraps
// ErrConflict, which callers match with errors.Is rather than by
// message content.
package store
