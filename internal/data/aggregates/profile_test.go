package aggregates_test

import (
	"context"
	"testing"
	"time"

	"github.com/saarzint/AI-Agents-Geoferry/internal/data/aggregates"
	"github.com/saarzint/AI-Agents-Geoferry/internal/data/repos"
	"github.com/saarzint/AI-Agents-Geoferry/internal/data/repos/testutil"
	domainagg "github.com/saarzint/AI-Agents-Geoferry/internal/domain/aggregates"
	"github.com/saarzint/AI-Agents-Geoferry/internal/domain/user"
	"github.com/saarzint/AI-Agents-Geoferry/internal/modules/changetrack"
)

func newProfileAggregate(t *testing.T) (domainagg.ProfileAggregate, repos.ProfileChangeRepo, repos.UserProfileRepo, func() *user.UserProfile) {
	t.Helper()
	db := testutil.SQLite(t)
	log := testutil.Logger(t)
	profiles := repos.NewUserProfileRepo(db, log)
	changes := repos.NewProfileChangeRepo(db, log)
	agg := aggregates.NewProfileAggregate(aggregates.ProfileAggregateDeps{
		Base:     aggregates.BaseDeps{DB: db, Log: log},
		Profiles: profiles,
		Changes:  changes,
	})
	seed := func() *user.UserProfile {
		return testutil.SeedUserProfile(t, context.Background(), db, "profile@example.com")
	}
	return agg, changes, profiles, seed
}

func TestProfileAggregateRecordsChangedFieldsOnly(t *testing.T) {
	agg, changes, profiles, seed := newProfileAggregate(t)
	ctx := context.Background()
	u := seed()
	at := time.Date(2025, 4, 2, 10, 0, 0, 0, time.UTC)

	res, err := agg.ApplyTrackedUpdate(ctx, domainagg.TrackedUpdateInput{
		UserID: u.ID,
		Patch: user.ProfilePatch{
			GPA:           user.Value(3.8),
			IntendedMajor: user.Value("Computer Science"),
			FullName:      user.Value("Renamed Student"),
		},
		At:   at,
		Diff: changetrack.Diff,
	})
	if err != nil {
		t.Fatalf("ApplyTrackedUpdate: %v", err)
	}
	if len(res.Changes) != 1 {
		t.Fatalf("changes: want=1 got=%d", len(res.Changes))
	}
	c := res.Changes[0]
	if c.FieldName != user.FieldGPA || c.OldValue == nil || *c.OldValue != "3.4" || c.NewValue == nil || *c.NewValue != "3.8" {
		t.Fatalf("change: unexpected %+v", c)
	}
	if !c.ChangedAt.Equal(at) {
		t.Fatalf("changed_at: want=%v got=%v", at, c.ChangedAt)
	}

	stored, err := profiles.GetByID(ctx, nil, u.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.FullName != "Renamed Student" || stored.GPA == nil || *stored.GPA != 3.8 {
		t.Fatalf("stored profile: unexpected %+v", stored)
	}
	rows, err := changes.ListByUser(ctx, nil, u.ID)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("stored changes: want=1 got=%d", len(rows))
	}
}

func TestProfileAggregateNoOpUpdate(t *testing.T) {
	agg, changes, _, seed := newProfileAggregate(t)
	ctx := context.Background()
	u := seed()

	res, err := agg.ApplyTrackedUpdate(ctx, domainagg.TrackedUpdateInput{
		UserID: u.ID,
		Patch:  user.ProfilePatch{Budget: user.Value(30000.0), Extracurriculars: user.Value([]string{"robotics", "debate"})},
		Diff:   changetrack.Diff,
	})
	if err != nil {
		t.Fatalf("ApplyTrackedUpdate: %v", err)
	}
	if len(res.Changes) != 0 {
		t.Fatalf("changes: want=0 got=%d", len(res.Changes))
	}
	rows, err := changes.ListByUser(ctx, nil, u.ID)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("stored changes: want=0 got=%d", len(rows))
	}
}

func TestProfileAggregateClearingFieldRecordsNil(t *testing.T) {
	agg, _, _, seed := newProfileAggregate(t)
	ctx := context.Background()
	u := seed()

	res, err := agg.ApplyTrackedUpdate(ctx, domainagg.TrackedUpdateInput{
		UserID: u.ID,
		Patch:  user.ProfilePatch{IntendedMajor: user.Null[string]()},
		Diff:   changetrack.Diff,
	})
	if err != nil {
		t.Fatalf("ApplyTrackedUpdate: %v", err)
	}
	if len(res.Changes) != 1 || res.Changes[0].NewValue != nil {
		t.Fatalf("changes: want one change with nil new value got %+v", res.Changes)
	}
	if res.After.IntendedMajor != nil {
		t.Fatalf("after: expected intended_major cleared")
	}
}

func TestProfileAggregateRejects(t *testing.T) {
	agg, _, _, seed := newProfileAggregate(t)
	ctx := context.Background()
	u := seed()

	_, err := agg.ApplyTrackedUpdate(ctx, domainagg.TrackedUpdateInput{
		UserID: u.ID,
		Patch:  user.ProfilePatch{GPA: user.Value(-1.0)},
		Diff:   changetrack.Diff,
	})
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("invalid gpa: want code=%s got err=%v", domainagg.CodeValidation, err)
	}
	_, err = agg.ApplyTrackedUpdate(ctx, domainagg.TrackedUpdateInput{
		UserID: u.ID + 100,
		Patch:  user.ProfilePatch{GPA: user.Value(3.0)},
		Diff:   changetrack.Diff,
	})
	if !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("missing user: want code=%s got err=%v", domainagg.CodeNotFound, err)
	}
}
