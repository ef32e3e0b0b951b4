package services

import (
	"context"
	"time"

	"github.com/saarzint/AI-Agents-Geoferry/internal/data/aggregates"
	"github.com/saarzint/AI-Agents-Geoferry/internal/data/repos"
	types "github.com/saarzint/AI-Agents-Geoferry/internal/domain"
	domainagg "github.com/saarzint/AI-Agents-Geoferry/internal/domain/aggregates"
	"github.com/saarzint/AI-Agents-Geoferry/internal/domain/user"
	"github.com/saarzint/AI-Agents-Geoferry/internal/modules/changetrack"
	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/logger"
)

type ProfileUpdateResult struct {
	Profile *types.UserProfile     `json:"profile"`
	Changes []*types.ProfileChange `json:"changes"`
}

// ChangeQuery filters the audit trail. Field restricts to one tracked field and
// ignores Since. Limit keeps the most recent rows.
type ChangeQuery struct {
	Since time.Time
	Field string
	Limit int
}

type ProfileService interface {
	Get(ctx context.Context, userID uint) (*types.UserProfile, error)
	// Update applies a partial update and records tracked-field changes from the same
	// before/after pair.
	Update(ctx context.Context, userID uint, patch user.ProfilePatch) (*ProfileUpdateResult, error)
	// Changes lists audit rows oldest first.
	Changes(ctx context.Context, userID uint, q ChangeQuery) ([]*types.ProfileChange, error)
}

type profileService struct {
	log       *logger.Logger
	profiles  repos.UserProfileRepo
	changes   repos.ProfileChangeRepo
	agg       domainagg.ProfileAggregate
	summaries SummaryService
	now       func() time.Time
}

func NewProfileService(
	log *logger.Logger,
	profiles repos.UserProfileRepo,
	changes repos.ProfileChangeRepo,
	agg domainagg.ProfileAggregate,
	summaries SummaryService,
) ProfileService {
	return &profileService{
		log:       log.With("service", "ProfileService"),
		profiles:  profiles,
		changes:   changes,
		agg:       agg,
		summaries: summaries,
		now:       time.Now,
	}
}

func (s *profileService) Get(ctx context.Context, userID uint) (*types.UserProfile, error) {
	const op = "ProfileService.Get"
	if userID == 0 {
		return nil, aggregates.MapError(op, aggregates.ValidationError("user_id required"))
	}
	p, err := s.profiles.GetByID(ctx, nil, userID)
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	return p, nil
}

func (s *profileService) Update(ctx context.Context, userID uint, patch user.ProfilePatch) (*ProfileUpdateResult, error) {
	res, err := s.agg.ApplyTrackedUpdate(ctx, domainagg.TrackedUpdateInput{
		UserID: userID,
		Patch:  patch,
		At:     s.now().UTC(),
		Diff:   changetrack.Diff,
	})
	if err != nil {
		return nil, err
	}
	out := &ProfileUpdateResult{Profile: res.After, Changes: res.Changes}
	if out.Changes == nil {
		out.Changes = []*types.ProfileChange{}
	}
	if len(res.Changes) > 0 && s.summaries != nil {
		if _, err := s.summaries.Refresh(ctx, userID); err != nil {
			s.log.Warn("summary recompute after profile update failed", "user_id", userID, "error", err)
		}
	}
	return out, nil
}

func (s *profileService) Changes(ctx context.Context, userID uint, q ChangeQuery) ([]*types.ProfileChange, error) {
	const op = "ProfileService.Changes"
	if userID == 0 {
		return nil, aggregates.MapError(op, aggregates.ValidationError("user_id required"))
	}
	ok, err := s.profiles.Exists(ctx, nil, userID)
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	if !ok {
		return nil, aggregates.MapError(op, aggregates.NotFoundError("user profile not found"))
	}
	var out []*types.ProfileChange
	switch {
	case q.Field != "":
		out, err = s.changes.ListByField(ctx, nil, userID, q.Field)
	case q.Since.IsZero():
		out, err = s.changes.ListByUser(ctx, nil, userID)
	default:
		out, err = s.changes.ListByUserSince(ctx, nil, userID, q.Since, 0)
	}
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[len(out)-q.Limit:]
	}
	return out, nil
}
