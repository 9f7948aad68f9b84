// Package repository persists the engine's durable snapshot in MySQL:
// the pending-lot queue, the active lot runtime, locked points, pending
// confirmations, session metadata and the append-only bid history.  The
// engine writes through it after every state-mutating operation; at
// startup the snapshot is loaded to resume a session cut off mid-run.
package repository

import "errors"

// ErrNoSnapshot is returned by loaders when a table holds no row for
// the requested state; callers treat it as "nothing to recover".
var ErrNoSnapshot = errors.New("no persisted snapshot")
