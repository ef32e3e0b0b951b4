package reference

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/saarzint/AI-Agents-Geoferry/internal/data/repos/testutil"
	types "github.com/saarzint/AI-Agents-Geoferry/internal/domain"
	"gorm.io/datatypes"
)

func TestApplicationRequirementRepoUpsert(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	repo := NewApplicationRequirementRepo(db, testutil.Logger(t))
	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	if _, err := repo.Upsert(ctx, tx, &types.ApplicationRequirement{
		University: "MIT",
		Program:    "Computer  Science",
		Payload:    datatypes.JSON([]byte(`{"essays":2}`)),
		FetchedAt:  first,
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	second := first.Add(40 * 24 * time.Hour)
	updated, err := repo.Upsert(ctx, tx, &types.ApplicationRequirement{
		University: "mit",
		Program:    "computer science",
		Payload:    datatypes.JSON([]byte(`{"essays":3}`)),
		FetchedAt:  second,
	})
	if err != nil {
		t.Fatalf("Upsert (refresh): %v", err)
	}
	if !updated.FetchedAt.Equal(second) {
		t.Fatalf("Upsert (refresh): want fetched_at=%v got %v", second, updated.FetchedAt)
	}

	got, err := repo.Get(ctx, tx, " MIT ", "Computer Science")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(got.Payload, &payload); err != nil {
		t.Fatalf("Get: payload: %v", err)
	}
	if got.ID != updated.ID || payload["essays"] != float64(3) {
		t.Fatalf("Get: unexpected %+v", got)
	}
}

func TestVisaRequirementRepoUpsert(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	repo := NewVisaRequirementRepo(db, testutil.Logger(t))
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if _, err := repo.Upsert(ctx, tx, &types.VisaRequirement{
		Citizenship: "India",
		Destination: "United States",
		Payload:     datatypes.JSON([]byte(`{"visa_type":"F-1"}`)),
		FetchedAt:   at,
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	got, err := repo.Get(ctx, tx, "india", "united states")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Citizenship != "india" || !got.FetchedAt.Equal(at) {
		t.Fatalf("Get: unexpected %+v", got)
	}
}
