// Package store provides SQLite-backed history of harness runs.
//
// The store is append-only:
//   - Runs: one row per invocation of the runner (UUIDv7 id)
//   - Verdicts: one row per scenario in a run, keyed by (run_id, seq)
//   - Handle events: the child's handle ledger for each verdict
//
// # Ordering
//
// All ordering uses seq INTEGER columns, never timestamps. Runs are listed
// by their insertion seq; verdicts and handle events by the seq the runner
// and the ledger assigned.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// JSON columns (diffs) hold RFC 8785 canonical JSON.
package store
