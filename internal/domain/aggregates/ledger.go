package aggregates

import (
	"context"
	"time"

	"github.com/saarzint/AI-Agents-Geoferry/internal/domain/ledger"
)

var LedgerAggregateContract = Contract{
	Name:   "Accounting.LedgerAggregate",
	Tables: []string{"token_ledger", "user_token_usage"},
	Invariants: []string{
		"token_ledger.balance changes only in the transaction that appends the user_token_usage row explaining it",
		"balance equals initial_grant minus the sum of tokens_used",
	},
}

// LedgerAggregate owns the per-user token balance.
//
// Write method failures return *aggregates.Error with codes:
// CodeValidation, CodeNotFound, CodeConflict, CodeRetryable, CodeInternal.
type LedgerAggregate interface {
	Aggregate

	// Open creates the ledger row for a user with an initial grant. Re-opening is a no-op.
	Open(ctx context.Context, in OpenLedgerInput) (OpenLedgerResult, error)

	// Settle appends a usage entry and decrements the balance by TokensUsed atomically.
	// Negative TokensUsed credits the balance. The balance may go negative.
	Settle(ctx context.Context, in SettleUsageInput) (SettleUsageResult, error)
}

type OpenLedgerInput struct {
	UserID       uint
	InitialGrant int64
}

type OpenLedgerResult struct {
	Ledger  *ledger.TokenLedger
	Created bool
}

type SettleUsageInput struct {
	UserID     uint
	Endpoint   string
	Provider   string
	TokensUsed int64
	At         time.Time
}

type SettleUsageResult struct {
	Entry           *ledger.UsageEntry
	PreviousBalance int64
	Balance         int64
}
