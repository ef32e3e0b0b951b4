package aggregates

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/saarzint/AI-Agents-Geoferry/internal/data/repos"
	types "github.com/saarzint/AI-Agents-Geoferry/internal/domain"
	"github.com/saarzint/AI-Agents-Geoferry/internal/domain/agents"
	domainagg "github.com/saarzint/AI-Agents-Geoferry/internal/domain/aggregates"
	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/dbctx"
)

// DefaultConflictWindow bounds how far apart two reports may be and still be compared.
const DefaultConflictWindow = 30 * 24 * time.Hour

type ReportAggregateDeps struct {
	Base BaseDeps

	Profiles  repos.UserProfileRepo
	Reports   repos.AgentReportRepo
	Conflicts repos.ReportConflictRepo
}

type reportAggregate struct {
	deps ReportAggregateDeps
}

func NewReportAggregate(deps ReportAggregateDeps) domainagg.ReportAggregate {
	deps.Base = deps.Base.withDefaults()
	return &reportAggregate{deps: deps}
}

func (a *reportAggregate) Contract() domainagg.Contract {
	return domainagg.ReportAggregateContract
}

func (a *reportAggregate) Submit(ctx context.Context, in domainagg.SubmitReportInput) (domainagg.SubmitReportResult, error) {
	const op = "Reconciliation.Report.Submit"
	var out domainagg.SubmitReportResult
	agent := agents.NormalizeAgentName(in.AgentName)
	if agent == "" {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing agent_name", nil)
	}
	if in.UserID == 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing user_id", nil)
	}
	if !isJSONObject(in.Payload) {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "payload must be a JSON object", nil)
	}
	if a.deps.Profiles == nil || a.deps.Reports == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "report aggregate repos not configured", nil)
	}
	ts := in.Timestamp.UTC()
	if in.Timestamp.IsZero() {
		ts = time.Now().UTC()
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		exists, err := a.deps.Profiles.Exists(dbc.Ctx, dbc.Tx, in.UserID)
		if err != nil {
			return err
		}
		if !exists {
			return NotFoundError(fmt.Sprintf("user %d not found", in.UserID))
		}
		row := &types.AgentReport{
			AgentName:     agent,
			UserProfileID: in.UserID,
			Payload:       in.Payload,
			Timestamp:     ts,
			Verified:      in.Verified,
		}
		if in.Verified {
			row.VerifiedAt = &ts
		}
		created, err := a.deps.Reports.Create(dbc.Ctx, dbc.Tx, row)
		if err != nil {
			return err
		}
		out.Report = created
		return nil
	})
	return out, err
}

func (a *reportAggregate) FlagConflicts(ctx context.Context, in domainagg.FlagConflictsInput) (domainagg.FlagConflictsResult, error) {
	const op = "Reconciliation.Report.FlagConflicts"
	out := domainagg.FlagConflictsResult{
		ConflictingReportIDs: []uint{},
		Conflicts:            []*agents.ReportConflict{},
	}
	if in.ReportID == 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing report_id", nil)
	}
	if in.Compare == nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing comparator", nil)
	}
	if a.deps.Reports == nil || a.deps.Conflicts == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "report aggregate repos not configured", nil)
	}
	window := in.Window
	if window <= 0 {
		window = DefaultConflictWindow
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		report, err := a.deps.Reports.GetByID(dbc.Ctx, dbc.Tx, in.ReportID)
		if err != nil {
			return err
		}
		if in.UserID != 0 && report.UserProfileID != in.UserID {
			return ValidationError("report does not belong to user")
		}
		if report.Verified {
			return nil
		}
		from := report.Timestamp.Add(-window)
		to := report.Timestamp.Add(window)
		candidates, err := a.deps.Reports.ListUnverifiedInWindow(dbc.Ctx, dbc.Tx, report.UserProfileID, report.ID, from, to)
		if err != nil {
			return err
		}

		self := agents.NormalizeAgentName(report.AgentName)
		seenAgent := map[string]bool{}
		flagged := map[uint]bool{}
		var rows []*types.ReportConflict
		// candidates are newest first, so the first hit per agent is its latest report
		for _, other := range candidates {
			otherAgent := agents.NormalizeAgentName(other.AgentName)
			if otherAgent == self || seenAgent[otherAgent] {
				continue
			}
			seenAgent[otherAgent] = true
			for _, fc := range in.Compare(report, other) {
				flagged[report.ID] = true
				flagged[other.ID] = true
				detail := strings.TrimSpace(fc.Detail)
				if detail == "" {
					detail = fmt.Sprintf("%s conflict between %s and %s", fc.Field, self, otherAgent)
				}
				rows = append(rows, &types.ReportConflict{
					UserProfileID: report.UserProfileID,
					ReportID:      report.ID,
					OtherReportID: other.ID,
					Field:         fc.Field,
					AgentName:     self,
					OtherAgent:    otherAgent,
					Value:         fc.Value,
					OtherValue:    fc.OtherValue,
					Detail:        detail,
				})
			}
		}
		if len(flagged) == 0 {
			return nil
		}

		ids := make([]uint, 0, len(flagged))
		for id := range flagged {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		if err := a.deps.Reports.SetConflictFlag(dbc.Ctx, dbc.Tx, ids); err != nil {
			return err
		}
		if _, err := a.deps.Conflicts.Create(dbc.Ctx, dbc.Tx, rows); err != nil {
			return err
		}
		out.ConflictingReportIDs = ids
		out.Conflicts = rows
		return nil
	})
	if err != nil {
		return domainagg.FlagConflictsResult{}, err
	}
	if len(out.Conflicts) > 0 {
		a.deps.Base.Log.Info("agent report conflicts flagged",
			"report_id", in.ReportID,
			"user_id", in.UserID,
			"conflicts", len(out.Conflicts),
			"reports", out.ConflictingReportIDs,
		)
	}
	return out, nil
}

func (a *reportAggregate) MarkVerified(ctx context.Context, in domainagg.MarkVerifiedInput) (domainagg.MarkVerifiedResult, error) {
	const op = "Reconciliation.Report.MarkVerified"
	var out domainagg.MarkVerifiedResult
	if in.ReportID == 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing report_id", nil)
	}
	if a.deps.Reports == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "report aggregate repos not configured", nil)
	}
	at := in.At.UTC()
	if in.At.IsZero() {
		at = time.Now().UTC()
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		if _, err := a.deps.Reports.GetByID(dbc.Ctx, dbc.Tx, in.ReportID); err != nil {
			return err
		}
		changed, err := a.deps.Reports.MarkVerified(dbc.Ctx, dbc.Tx, in.ReportID, at)
		if err != nil {
			return err
		}
		report, err := a.deps.Reports.GetByID(dbc.Ctx, dbc.Tx, in.ReportID)
		if err != nil {
			return err
		}
		out.Report = report
		out.Changed = changed
		return nil
	})
	return out, err
}

func isJSONObject(raw []byte) bool {
	if len(raw) == 0 {
		return false
	}
	var obj map[string]json.RawMessage
	return json.Unmarshal(raw, &obj) == nil && obj != nil
}
