package aggregates

import (
	"context"
	"time"

	"github.com/saarzint/AI-Agents-Geoferry/internal/domain/agents"
	"gorm.io/datatypes"
)

var ReportAggregateContract = Contract{
	Name:   "Reconciliation.ReportAggregate",
	Tables: []string{"agent_reports_log", "agent_report_conflict"},
	Invariants: []string{
		"reports are append-only; only conflict_flag and verified move after insert",
		"both reports of a disagreeing pair are flagged in one transaction",
	},
}

// ReportAggregate owns report appends and the reconciliation-only flags.
type ReportAggregate interface {
	Aggregate

	// Submit appends an unflagged report. Verified is only honoured for reconciliation-originated reports.
	Submit(ctx context.Context, in SubmitReportInput) (SubmitReportResult, error)

	// FlagConflicts compares a stored report against the latest unverified report of every
	// other agent for the same user inside Window and flags both sides of each disagreement.
	FlagConflicts(ctx context.Context, in FlagConflictsInput) (FlagConflictsResult, error)

	// MarkVerified sets verified on a report. Idempotent.
	MarkVerified(ctx context.Context, in MarkVerifiedInput) (MarkVerifiedResult, error)
}

type SubmitReportInput struct {
	AgentName string
	UserID    uint
	Payload   datatypes.JSON
	Timestamp time.Time
	Verified  bool
}

type SubmitReportResult struct {
	Report *agents.AgentReport
}

type FlagConflictsInput struct {
	UserID   uint
	ReportID uint
	Window   time.Duration
	Compare  agents.CompareFunc
}

type FlagConflictsResult struct {
	ConflictingReportIDs []uint
	Conflicts            []*agents.ReportConflict
}

type MarkVerifiedInput struct {
	ReportID uint
	At       time.Time
}

type MarkVerifiedResult struct {
	Report  *agents.AgentReport
	Changed bool
}
