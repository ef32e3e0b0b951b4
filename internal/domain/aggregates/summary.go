package aggregates

import (
	"context"
	"time"

	"github.com/saarzint/AI-Agents-Geoferry/internal/domain/agents"
	"github.com/saarzint/AI-Agents-Geoferry/internal/domain/user"
	"gorm.io/datatypes"
)

var SummaryAggregateContract = Contract{
	Name:    "Reconciliation.SummaryAggregate",
	Tables:  []string{"admissions_summary"},
	Appends: []string{"agent_reports_log"},
	Invariants: []string{
		"one summary row per user, derived from agent_reports_log and user_profile_changes",
		"rows are replaced by compare-and-set on version",
		"an explicit stage event and the summary folding it commit together",
	},
}

// SummaryAggregate owns the single mutable summary row per user.
type SummaryAggregate interface {
	Aggregate

	// Recompute loads the history, runs Project and persists the result in place.
	Recompute(ctx context.Context, in RecomputeSummaryInput) (RecomputeSummaryResult, error)

	// RecordStage appends a verified admissions-counselor stage event and recomputes in
	// the same transaction. A failed recompute leaves no event behind.
	RecordStage(ctx context.Context, in RecordStageInput) (RecordStageResult, error)
}

// ProjectionInput is the full history a summary is derived from.
type ProjectionInput struct {
	UserID   uint
	Previous *agents.AdmissionsSummary
	Reports  []*agents.AgentReport
	Changes  []*user.ProfileChange
	// Conflicts are the stored conflict pairs. nil means pairs were not loaded.
	Conflicts []*agents.ReportConflict
	Now       time.Time
}

// ProjectFunc must be pure: equal inputs give an equal summary (LastUpdated aside).
type ProjectFunc func(in ProjectionInput) *agents.AdmissionsSummary

type RecomputeSummaryInput struct {
	UserID  uint
	Now     time.Time
	Project ProjectFunc
}

type RecordStageInput struct {
	UserID  uint
	Payload datatypes.JSON
	At      time.Time
	Project ProjectFunc
}

type RecordStageResult struct {
	Event *agents.AgentReport
	RecomputeSummaryResult
}

type RecomputeSummaryResult struct {
	Summary *agents.AdmissionsSummary
	Created bool
	Changed bool
}
