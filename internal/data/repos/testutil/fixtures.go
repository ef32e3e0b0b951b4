package testutil

import (
	"context"
	"testing"
	"time"

	types "github.com/saarzint/AI-Agents-Geoferry/internal/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func SeedUserProfile(tb testing.TB, ctx context.Context, tx *gorm.DB, email string) *types.UserProfile {
	tb.Helper()
	gpa := 3.4
	budget := 30000.0
	major := "Computer Science"
	u := &types.UserProfile{
		FullName:           "Test Student",
		Email:              email,
		GPA:                &gpa,
		Budget:             &budget,
		IntendedMajor:      &major,
		Extracurriculars:   datatypes.JSONSlice[string]{"robotics", "debate"},
		CitizenshipCountry: "India",
		DestinationCountry: "United States",
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user profile: %v", err)
	}
	return u
}

func SeedLedger(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uint, grant int64) *types.TokenLedger {
	tb.Helper()
	l := &types.TokenLedger{
		UserProfileID: userID,
		InitialGrant:  grant,
		Balance:       grant,
	}
	if err := tx.WithContext(ctx).Create(l).Error; err != nil {
		tb.Fatalf("seed ledger: %v", err)
	}
	return l
}

func SeedReport(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uint, agent string, at time.Time, payload string) *types.AgentReport {
	tb.Helper()
	r := &types.AgentReport{
		AgentName:     agent,
		UserProfileID: userID,
		Payload:       datatypes.JSON([]byte(payload)),
		Timestamp:     at.UTC(),
	}
	if err := tx.WithContext(ctx).Create(r).Error; err != nil {
		tb.Fatalf("seed report: %v", err)
	}
	return r
}
