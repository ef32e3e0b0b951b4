// Package aggregates defines the write boundaries of the admissions core.
//
// Each contract names the invariants it enforces atomically: ledger balance moves only
// with a usage entry, reports are appended before conflict flags are set, tracked profile
// updates capture one before/after pair, and summaries are replaced by compare-and-set.
package aggregates
