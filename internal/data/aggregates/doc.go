// Package aggregates implements the write boundaries declared in internal/domain/aggregates.
//
// Each aggregate runs its writes through executeWrite: one transaction, errors mapped to
// aggregate codes, and one WriteOutcome delivered to the hooks. Reads that feed
// projections or listings stay on the table repos.
package aggregates
