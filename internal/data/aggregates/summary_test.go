package aggregates_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/saarzint/AI-Agents-Geoferry/internal/data/aggregates"
	aggtestutil "github.com/saarzint/AI-Agents-Geoferry/internal/data/aggregates/testutil"
	"github.com/saarzint/AI-Agents-Geoferry/internal/data/repos"
	"github.com/saarzint/AI-Agents-Geoferry/internal/data/repos/testutil"
	"github.com/saarzint/AI-Agents-Geoferry/internal/domain/agents"
	domainagg "github.com/saarzint/AI-Agents-Geoferry/internal/domain/aggregates"
	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/dbctx"
	"gorm.io/datatypes"
)

// countingProjection derives a stage from the number of reports, enough to observe persistence.
func countingProjection(in domainagg.ProjectionInput) *agents.AdmissionsSummary {
	out := &agents.AdmissionsSummary{
		UserProfileID: in.UserID,
		CurrentStage:  fmt.Sprintf("stage-%d", len(in.Reports)),
		ProgressScore: float64(len(in.Reports)) * 10,
		ActiveAgents:  datatypes.JSONSlice[string]{},
		StressFlags:   datatypes.NewJSONType(agents.StressFlags{RecentProfileChanges: len(in.Changes)}),
		LastUpdated:   in.Now,
	}
	for _, r := range in.Reports {
		if r.ID > out.LastReportID {
			out.LastReportID = r.ID
		}
	}
	return out
}

func TestSummaryAggregateRecompute(t *testing.T) {
	db := testutil.SQLite(t)
	log := testutil.Logger(t)
	ctx := context.Background()
	summaries := repos.NewAdmissionsSummaryRepo(db, log)
	agg := aggregates.NewSummaryAggregate(aggregates.SummaryAggregateDeps{
		Base:      aggregates.BaseDeps{DB: db, Log: log},
		Profiles:  repos.NewUserProfileRepo(db, log),
		Reports:   repos.NewAgentReportRepo(db, log),
		Changes:   repos.NewProfileChangeRepo(db, log),
		Summaries: summaries,
	})
	u := testutil.SeedUserProfile(t, ctx, db, "summary@example.com")
	now := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	testutil.SeedReport(t, ctx, db, u.ID, agents.AgentUniversitySearch, now.Add(-time.Hour), `{"universities_found":12}`)

	first, err := agg.Recompute(ctx, domainagg.RecomputeSummaryInput{UserID: u.ID, Now: now, Project: countingProjection})
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if !first.Created || !first.Changed || first.Summary.Version != 1 || first.Summary.CurrentStage != "stage-1" {
		t.Fatalf("Recompute (first): unexpected %+v", first)
	}

	same, err := agg.Recompute(ctx, domainagg.RecomputeSummaryInput{UserID: u.ID, Now: now.Add(time.Minute), Project: countingProjection})
	if err != nil {
		t.Fatalf("Recompute (same): %v", err)
	}
	if same.Created || same.Changed || same.Summary.Version != 1 {
		t.Fatalf("Recompute (same): want unchanged version=1 got created=%v changed=%v version=%d", same.Created, same.Changed, same.Summary.Version)
	}

	testutil.SeedReport(t, ctx, db, u.ID, agents.AgentScholarshipSearch, now, `{"scholarships_found":3}`)
	next, err := agg.Recompute(ctx, domainagg.RecomputeSummaryInput{UserID: u.ID, Now: now.Add(2 * time.Minute), Project: countingProjection})
	if err != nil {
		t.Fatalf("Recompute (next): %v", err)
	}
	if !next.Changed || next.Summary.Version != 2 || next.Summary.CurrentStage != "stage-2" {
		t.Fatalf("Recompute (next): unexpected %+v", next)
	}

	stored, err := summaries.GetByUserID(ctx, nil, u.ID)
	if err != nil {
		t.Fatalf("GetByUserID: %v", err)
	}
	if stored.Version != 2 || stored.CurrentStage != "stage-2" || stored.ProgressScore != 20 {
		t.Fatalf("stored: unexpected %+v", stored)
	}
}

func TestSummaryAggregateUnknownUser(t *testing.T) {
	db := testutil.SQLite(t)
	log := testutil.Logger(t)
	agg := aggregates.NewSummaryAggregate(aggregates.SummaryAggregateDeps{
		Base:      aggregates.BaseDeps{DB: db, Log: log},
		Profiles:  repos.NewUserProfileRepo(db, log),
		Reports:   repos.NewAgentReportRepo(db, log),
		Changes:   repos.NewProfileChangeRepo(db, log),
		Summaries: repos.NewAdmissionsSummaryRepo(db, log),
	})
	_, err := agg.Recompute(context.Background(), domainagg.RecomputeSummaryInput{UserID: 42, Project: countingProjection})
	if !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("Recompute: want code=%s got err=%v", domainagg.CodeNotFound, err)
	}
}

func TestVersionGuardAdvance(t *testing.T) {
	db := testutil.SQLite(t)
	ctx := context.Background()
	u := testutil.SeedUserProfile(t, ctx, db, "cas@example.com")
	row := &agents.AdmissionsSummary{UserProfileID: u.ID, CurrentStage: "Getting Started", Version: 3, LastUpdated: time.Now().UTC()}
	if err := db.Create(row).Error; err != nil {
		t.Fatalf("seed summary: %v", err)
	}
	guard := aggregates.NewVersionGuard(db)
	dbc := dbctx.Context{Ctx: ctx}

	_, err := guard.Advance(dbc, row.TableName(), row.ID, 2, map[string]any{"current_stage": "Profile Review"})
	if !domainagg.IsCode(aggregates.MapError("summary.cas", err), domainagg.CodeConflict) {
		t.Fatalf("stale version: want code=%s got err=%v", domainagg.CodeConflict, err)
	}

	next, err := guard.Advance(dbc, row.TableName(), row.ID, 3, map[string]any{"current_stage": "Profile Review"})
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if next != 4 {
		t.Fatalf("version: want=4 got=%d", next)
	}
	var stored agents.AdmissionsSummary
	if err := db.First(&stored, row.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.Version != 4 || stored.CurrentStage != "Profile Review" {
		t.Fatalf("stored: want version=4 stage=Profile Review got version=%d stage=%s", stored.Version, stored.CurrentStage)
	}

	if _, err := guard.Advance(dbc, row.TableName(), row.ID, 0, nil); !domainagg.IsCode(aggregates.MapError("summary.cas", err), domainagg.CodeValidation) {
		t.Fatalf("zero version: want code=%s got err=%v", domainagg.CodeValidation, err)
	}
}

func newStageAggregate(t *testing.T, runner aggregates.TxRunner) (domainagg.SummaryAggregate, uint, repos.AgentReportRepo, repos.AdmissionsSummaryRepo) {
	t.Helper()
	db := testutil.SQLite(t)
	log := testutil.Logger(t)
	reports := repos.NewAgentReportRepo(db, log)
	summaries := repos.NewAdmissionsSummaryRepo(db, log)
	if runner == nil {
		runner = aggregates.NewGormTxRunner(db, 0)
	} else if fr, ok := runner.(*aggtestutil.FaultRunner); ok && fr.Next == nil {
		fr.Next = aggregates.NewGormTxRunner(db, 0)
	}
	agg := aggregates.NewSummaryAggregate(aggregates.SummaryAggregateDeps{
		Base:      aggregates.BaseDeps{DB: db, Log: log, Runner: runner},
		Profiles:  repos.NewUserProfileRepo(db, log),
		Reports:   reports,
		Changes:   repos.NewProfileChangeRepo(db, log),
		Summaries: summaries,
		Conflicts: repos.NewReportConflictRepo(db, log),
	})
	u := testutil.SeedUserProfile(t, context.Background(), db, "record-stage@example.com")
	return agg, u.ID, reports, summaries
}

func TestSummaryAggregateRecordStageCommitsEventWithSummary(t *testing.T) {
	agg, uid, reports, summaries := newStageAggregate(t, nil)
	ctx := context.Background()
	at := time.Date(2025, 5, 2, 10, 0, 0, 0, time.UTC)

	res, err := agg.RecordStage(ctx, domainagg.RecordStageInput{
		UserID:  uid,
		Payload: datatypes.JSON(`{"event":"stage_update","stage":"Application Preparation","progress_score":85.5}`),
		At:      at,
		Project: countingProjection,
	})
	if err != nil {
		t.Fatalf("RecordStage: %v", err)
	}
	if res.Event == nil || res.Event.ID == 0 || !res.Event.Verified || res.Event.AgentName != agents.AgentAdmissionsCounselor {
		t.Fatalf("RecordStage: unexpected event %+v", res.Event)
	}
	if !res.Created || res.Summary.LastReportID != res.Event.ID || res.Summary.CurrentStage != "stage-1" {
		t.Fatalf("RecordStage: summary did not fold the event, got %+v", res.Summary)
	}

	stored, err := summaries.GetByUserID(ctx, nil, uid)
	if err != nil {
		t.Fatalf("GetByUserID: %v", err)
	}
	if stored.LastReportID != res.Event.ID || stored.Version != 1 {
		t.Fatalf("stored: want last_report_id=%d version=1 got %d/%d", res.Event.ID, stored.LastReportID, stored.Version)
	}
	history, err := reports.ListByUser(ctx, nil, uid)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(history) != 1 || history[0].VerifiedAt == nil || !history[0].Timestamp.Equal(at) {
		t.Fatalf("history: unexpected %+v", history)
	}
}

func TestSummaryAggregateRecordStageRollsBackTogether(t *testing.T) {
	runner := &aggtestutil.FaultRunner{FailCommit: aggregates.ConflictError("admissions_summary row changed concurrently")}
	agg, uid, reports, summaries := newStageAggregate(t, runner)
	ctx := context.Background()

	_, err := agg.RecordStage(ctx, domainagg.RecordStageInput{
		UserID:  uid,
		Payload: datatypes.JSON(`{"event":"stage_update","stage":"Submitted"}`),
		Project: countingProjection,
	})
	if !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("RecordStage: want code=%s got err=%v", domainagg.CodeConflict, err)
	}
	history, err := reports.ListByUser(ctx, nil, uid)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("history after rollback: want=0 got=%d", len(history))
	}
	if _, err := summaries.GetByUserID(ctx, nil, uid); err == nil {
		t.Fatalf("summary after rollback: want none")
	}

	// retrying after the rollback records exactly one event
	runner.FailCommit = nil
	if _, err := agg.RecordStage(ctx, domainagg.RecordStageInput{
		UserID:  uid,
		Payload: datatypes.JSON(`{"event":"stage_update","stage":"Submitted"}`),
		Project: countingProjection,
	}); err != nil {
		t.Fatalf("RecordStage (retry): %v", err)
	}
	history, err = reports.ListByUser(ctx, nil, uid)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history after retry: want=1 got=%d", len(history))
	}
}

func TestSummaryAggregateRecordStageRejects(t *testing.T) {
	agg, uid, _, _ := newStageAggregate(t, nil)
	ctx := context.Background()
	cases := []struct {
		name string
		in   domainagg.RecordStageInput
		code domainagg.ErrorCode
	}{
		{"no user", domainagg.RecordStageInput{Payload: datatypes.JSON(`{}`), Project: countingProjection}, domainagg.CodeValidation},
		{"array payload", domainagg.RecordStageInput{UserID: uid, Payload: datatypes.JSON(`[1]`), Project: countingProjection}, domainagg.CodeValidation},
		{"no projection", domainagg.RecordStageInput{UserID: uid, Payload: datatypes.JSON(`{}`)}, domainagg.CodeValidation},
		{"unknown user", domainagg.RecordStageInput{UserID: uid + 9, Payload: datatypes.JSON(`{}`), Project: countingProjection}, domainagg.CodeNotFound},
	}
	for _, tc := range cases {
		if _, err := agg.RecordStage(ctx, tc.in); !domainagg.IsCode(err, tc.code) {
			t.Fatalf("%s: want code=%s got err=%v", tc.name, tc.code, err)
		}
	}
}

func TestSummaryAggregateLoadsConflictPairs(t *testing.T) {
	db := testutil.SQLite(t)
	log := testutil.Logger(t)
	ctx := context.Background()
	var seen []*agents.ReportConflict
	capture := func(in domainagg.ProjectionInput) *agents.AdmissionsSummary {
		seen = in.Conflicts
		return countingProjection(in)
	}
	agg := aggregates.NewSummaryAggregate(aggregates.SummaryAggregateDeps{
		Base:      aggregates.BaseDeps{DB: db, Log: log},
		Profiles:  repos.NewUserProfileRepo(db, log),
		Reports:   repos.NewAgentReportRepo(db, log),
		Changes:   repos.NewProfileChangeRepo(db, log),
		Summaries: repos.NewAdmissionsSummaryRepo(db, log),
		Conflicts: repos.NewReportConflictRepo(db, log),
	})
	u := testutil.SeedUserProfile(t, ctx, db, "pairs@example.com")
	now := time.Date(2025, 5, 3, 9, 0, 0, 0, time.UTC)

	if _, err := agg.Recompute(ctx, domainagg.RecomputeSummaryInput{UserID: u.ID, Now: now, Project: capture}); err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if seen == nil || len(seen) != 0 {
		t.Fatalf("no pairs: want empty non-nil slice got %#v", seen)
	}

	a := testutil.SeedReport(t, ctx, db, u.ID, agents.AgentUniversitySearch, now, `{"recommended_budget":"20k-30k"}`)
	b := testutil.SeedReport(t, ctx, db, u.ID, agents.AgentScholarshipSearch, now.Add(time.Minute), `{"recommended_budget":"40k-50k"}`)
	pair := &agents.ReportConflict{
		UserProfileID: u.ID, ReportID: b.ID, OtherReportID: a.ID, Field: "recommended_budget",
		AgentName: agents.AgentScholarshipSearch, OtherAgent: agents.AgentUniversitySearch,
		CreatedAt: now.Add(time.Minute),
	}
	if err := db.Create(pair).Error; err != nil {
		t.Fatalf("seed conflict: %v", err)
	}
	if _, err := agg.Recompute(ctx, domainagg.RecomputeSummaryInput{UserID: u.ID, Now: now.Add(time.Hour), Project: capture}); err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if len(seen) != 1 || seen[0].ReportID != b.ID || seen[0].OtherReportID != a.ID {
		t.Fatalf("pairs: unexpected %+v", seen)
	}
}
