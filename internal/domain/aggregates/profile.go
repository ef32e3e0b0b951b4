package aggregates

import (
	"context"
	"time"

	"github.com/saarzint/AI-Agents-Geoferry/internal/domain/user"
)

var ProfileAggregateContract = Contract{
	Name:   "Profiles.TrackedUpdateAggregate",
	Tables: []string{"user_profile", "user_profile_changes"},
	Invariants: []string{
		"every tracked field that changed gets exactly one user_profile_changes row from the same before/after pair",
	},
}

// ProfileAggregate owns tracked profile writes.
type ProfileAggregate interface {
	Aggregate

	// ApplyTrackedUpdate writes the patch and records one change row per tracked field that differs.
	ApplyTrackedUpdate(ctx context.Context, in TrackedUpdateInput) (TrackedUpdateResult, error)
}

// DiffFunc derives change rows from one before/after pair.
type DiffFunc func(before, after *user.UserProfile, at time.Time) []*user.ProfileChange

type TrackedUpdateInput struct {
	UserID uint
	Patch  user.ProfilePatch
	At     time.Time
	Diff   DiffFunc
}

type TrackedUpdateResult struct {
	Before  *user.UserProfile
	After   *user.UserProfile
	Changes []*user.ProfileChange
}
