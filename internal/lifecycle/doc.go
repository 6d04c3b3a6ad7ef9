// Package lifecycle tracks native resource handles for a single scenario run.
//
// A Ledger records every acquire and release of an opaque handle and refuses
// releases that would double-free or target a handle it never saw. A Scope
// runs registered release functions in reverse registration order, so
// dependents are always released before the resources they depend on.
//
// Events are ordered by a logical sequence number, never by wall time, so two
// runs of the same scenario produce identical event logs.
package lifecycle
