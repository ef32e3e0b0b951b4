package user

import (
	"context"
	"time"

	types "github.com/saarzint/AI-Agents-Geoferry/internal/domain"
	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/logger"
	"gorm.io/gorm"
)

// ProfileChangeRepo is append-only.
type ProfileChangeRepo interface {
	Create(ctx context.Context, tx *gorm.DB, changes []*types.ProfileChange) ([]*types.ProfileChange, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID uint) ([]*types.ProfileChange, error)
	ListByUserSince(ctx context.Context, tx *gorm.DB, userID uint, since time.Time, limit int) ([]*types.ProfileChange, error)
	ListByField(ctx context.Context, tx *gorm.DB, userID uint, field string) ([]*types.ProfileChange, error)
	MaxIDByUser(ctx context.Context, tx *gorm.DB, userID uint) (uint, error)
	MaxID(ctx context.Context, tx *gorm.DB) (uint, error)
	// ListAfterID is the change feed across all users, oldest first. An empty fields list matches every field.
	ListAfterID(ctx context.Context, tx *gorm.DB, afterID uint, fields []string, limit int) ([]*types.ProfileChange, error)
}

type profileChangeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProfileChangeRepo(db *gorm.DB, baseLog *logger.Logger) ProfileChangeRepo {
	repoLog := baseLog.With("repo", "ProfileChangeRepo")
	return &profileChangeRepo{db: db, log: repoLog}
}

func (r *profileChangeRepo) Create(ctx context.Context, tx *gorm.DB, changes []*types.ProfileChange) ([]*types.ProfileChange, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(changes) == 0 {
		return []*types.ProfileChange{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&changes).Error; err != nil {
		return nil, err
	}
	return changes, nil
}

// ListByUser returns the full audit trail oldest first.
func (r *profileChangeRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uint) ([]*types.ProfileChange, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ProfileChange
	if err := transaction.WithContext(ctx).
		Where("user_profile_id = ?", userID).
		Order("changed_at ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *profileChangeRepo) ListByUserSince(ctx context.Context, tx *gorm.DB, userID uint, since time.Time, limit int) ([]*types.ProfileChange, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(ctx).
		Where("user_profile_id = ?", userID)
	if !since.IsZero() {
		q = q.Where("changed_at >= ?", since)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*types.ProfileChange
	if err := q.Order("changed_at ASC, id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *profileChangeRepo) ListByField(ctx context.Context, tx *gorm.DB, userID uint, field string) ([]*types.ProfileChange, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ProfileChange
	if err := transaction.WithContext(ctx).
		Where("user_profile_id = ? AND field_name = ?", userID, field).
		Order("changed_at ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *profileChangeRepo) MaxIDByUser(ctx context.Context, tx *gorm.DB, userID uint) (uint, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var maxID uint
	if err := transaction.WithContext(ctx).
		Model(&types.ProfileChange{}).
		Where("user_profile_id = ?", userID).
		Select("COALESCE(MAX(id), 0)").
		Scan(&maxID).Error; err != nil {
		return 0, err
	}
	return maxID, nil
}

func (r *profileChangeRepo) MaxID(ctx context.Context, tx *gorm.DB) (uint, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var maxID uint
	if err := transaction.WithContext(ctx).
		Model(&types.ProfileChange{}).
		Select("COALESCE(MAX(id), 0)").
		Scan(&maxID).Error; err != nil {
		return 0, err
	}
	return maxID, nil
}

func (r *profileChangeRepo) ListAfterID(ctx context.Context, tx *gorm.DB, afterID uint, fields []string, limit int) ([]*types.ProfileChange, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(ctx).Where("id > ?", afterID)
	if len(fields) > 0 {
		q = q.Where("field_name IN ?", fields)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*types.ProfileChange
	if err := q.Order("id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
