package aggregates

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/saarzint/AI-Agents-Geoferry/internal/data/repos"
	types "github.com/saarzint/AI-Agents-Geoferry/internal/domain"
	domainagg "github.com/saarzint/AI-Agents-Geoferry/internal/domain/aggregates"
	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/dbctx"
	"gorm.io/gorm"
)

type SummaryAggregateDeps struct {
	Base BaseDeps

	Profiles  repos.UserProfileRepo
	Reports   repos.AgentReportRepo
	Changes   repos.ProfileChangeRepo
	Summaries repos.AdmissionsSummaryRepo
	// Conflicts is optional; without it the projection falls back to report flags.
	Conflicts repos.ReportConflictRepo
}

type summaryAggregate struct {
	deps SummaryAggregateDeps
}

func NewSummaryAggregate(deps SummaryAggregateDeps) domainagg.SummaryAggregate {
	deps.Base = deps.Base.withDefaults()
	return &summaryAggregate{deps: deps}
}

func (a *summaryAggregate) Contract() domainagg.Contract {
	return domainagg.SummaryAggregateContract
}

func (a *summaryAggregate) Recompute(ctx context.Context, in domainagg.RecomputeSummaryInput) (domainagg.RecomputeSummaryResult, error) {
	const op = "Reconciliation.Summary.Recompute"
	var out domainagg.RecomputeSummaryResult
	if in.UserID == 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing user_id", nil)
	}
	if in.Project == nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing projection", nil)
	}
	if a.deps.Profiles == nil || a.deps.Reports == nil || a.deps.Changes == nil || a.deps.Summaries == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "summary aggregate repos not configured", nil)
	}
	now := in.Now.UTC()
	if in.Now.IsZero() {
		now = time.Now().UTC()
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		exists, err := a.deps.Profiles.Exists(dbc.Ctx, dbc.Tx, in.UserID)
		if err != nil {
			return err
		}
		if !exists {
			return NotFoundError("user profile not found")
		}
		out, err = a.recomputeTx(dbc, in.UserID, now, in.Project)
		return err
	})
	if err != nil {
		return domainagg.RecomputeSummaryResult{}, err
	}
	return out, nil
}

func (a *summaryAggregate) RecordStage(ctx context.Context, in domainagg.RecordStageInput) (domainagg.RecordStageResult, error) {
	const op = "Reconciliation.Summary.RecordStage"
	var out domainagg.RecordStageResult
	if in.UserID == 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing user_id", nil)
	}
	if in.Project == nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing projection", nil)
	}
	if !isJSONObject(in.Payload) {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "payload must be a JSON object", nil)
	}
	if a.deps.Profiles == nil || a.deps.Reports == nil || a.deps.Changes == nil || a.deps.Summaries == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "summary aggregate repos not configured", nil)
	}
	at := in.At.UTC()
	if in.At.IsZero() {
		at = time.Now().UTC()
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		out = domainagg.RecordStageResult{}
		exists, err := a.deps.Profiles.Exists(dbc.Ctx, dbc.Tx, in.UserID)
		if err != nil {
			return err
		}
		if !exists {
			return NotFoundError("user profile not found")
		}
		event, err := a.deps.Reports.Create(dbc.Ctx, dbc.Tx, &types.AgentReport{
			AgentName:     types.AgentAdmissionsCounselor,
			UserProfileID: in.UserID,
			Payload:       in.Payload,
			Timestamp:     at,
			Verified:      true,
			VerifiedAt:    &at,
		})
		if err != nil {
			return err
		}
		res, err := a.recomputeTx(dbc, in.UserID, at, in.Project)
		if err != nil {
			return err
		}
		out.Event = event
		out.RecomputeSummaryResult = res
		return nil
	})
	if err != nil {
		return domainagg.RecordStageResult{}, err
	}
	return out, nil
}

// recomputeTx projects the history visible to dbc and persists it. The caller has
// already checked that the profile exists.
func (a *summaryAggregate) recomputeTx(dbc dbctx.Context, userID uint, now time.Time, project domainagg.ProjectFunc) (domainagg.RecomputeSummaryResult, error) {
	var out domainagg.RecomputeSummaryResult
	prev, err := a.deps.Summaries.GetByUserID(dbc.Ctx, dbc.Tx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		prev, err = nil, nil
	}
	if err != nil {
		return out, err
	}
	reports, err := a.deps.Reports.ListByUser(dbc.Ctx, dbc.Tx, userID)
	if err != nil {
		return out, err
	}
	changes, err := a.deps.Changes.ListByUser(dbc.Ctx, dbc.Tx, userID)
	if err != nil {
		return out, err
	}
	var pairs []*types.ReportConflict
	if a.deps.Conflicts != nil {
		if pairs, err = a.deps.Conflicts.ListByUser(dbc.Ctx, dbc.Tx, userID); err != nil {
			return out, err
		}
		if pairs == nil {
			pairs = []*types.ReportConflict{}
		}
	}

	next := project(domainagg.ProjectionInput{
		UserID:    userID,
		Previous:  prev,
		Reports:   reports,
		Changes:   changes,
		Conflicts: pairs,
		Now:       now,
	})
	if next == nil {
		return out, InvariantError("projection returned no summary")
	}
	next.UserProfileID = userID
	next.LastUpdated = now

	if prev == nil {
		next.Version = 1
		created, err := a.deps.Summaries.Create(dbc.Ctx, dbc.Tx, next)
		if err != nil {
			return out, err
		}
		return domainagg.RecomputeSummaryResult{Summary: created, Created: true, Changed: true}, nil
	}
	if sameProjection(prev, next) {
		return domainagg.RecomputeSummaryResult{Summary: prev}, nil
	}

	version, err := a.deps.Base.Versions.Advance(dbc, types.AdmissionsSummary{}.TableName(), prev.ID, prev.Version, map[string]any{
		"current_stage":    next.CurrentStage,
		"progress_score":   next.ProgressScore,
		"progress_floor":   next.ProgressFloor,
		"next_steps":       next.NextSteps,
		"active_agents":    next.ActiveAgents,
		"advice":           next.Advice,
		"stress_flags":     next.StressFlags,
		"last_report_id":   next.LastReportID,
		"last_change_id":   next.LastChangeID,
		"report_watermark": next.ReportWatermark,
		"active_since":     next.ActiveSince,
		"last_updated":     next.LastUpdated,
	})
	if err != nil {
		return out, err
	}
	next.ID = prev.ID
	next.Version = version
	return domainagg.RecomputeSummaryResult{Summary: next, Changed: true}, nil
}

type projectionView struct {
	Stage           string
	Score           float64
	Floor           float64
	NextSteps       []types.NextStep
	ActiveAgents    []string
	Advice          string
	Flags           types.StressFlags
	LastReportID    uint
	LastChangeID    uint
	ReportWatermark int64
	ActiveSince     int64
}

// sameProjection compares everything Project derives, ignoring row identity and LastUpdated.
func sameProjection(a, b *types.AdmissionsSummary) bool {
	ja, errA := json.Marshal(viewOf(a))
	jb, errB := json.Marshal(viewOf(b))
	if errA != nil || errB != nil {
		return false
	}
	return string(ja) == string(jb)
}

func viewOf(s *types.AdmissionsSummary) projectionView {
	v := projectionView{
		Stage:        s.CurrentStage,
		Score:        s.ProgressScore,
		Floor:        s.ProgressFloor,
		NextSteps:    append([]types.NextStep{}, s.NextSteps...),
		ActiveAgents: append([]string{}, s.ActiveAgents...),
		Advice:       s.Advice,
		Flags:        s.StressFlags.Data(),
		LastReportID: s.LastReportID,
		LastChangeID: s.LastChangeID,
	}
	if s.ReportWatermark != nil {
		v.ReportWatermark = s.ReportWatermark.UnixNano()
	}
	if s.ActiveSince != nil {
		v.ActiveSince = s.ActiveSince.UnixNano()
	}
	return v
}
