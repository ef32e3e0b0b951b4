package user

import (
	"context"

	types "github.com/saarzint/AI-Agents-Geoferry/internal/domain"
	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserProfileRepo interface {
	Create(ctx context.Context, tx *gorm.DB, profiles []*types.UserProfile) ([]*types.UserProfile, error)
	GetByID(ctx context.Context, tx *gorm.DB, userID uint) (*types.UserProfile, error)
	// GetByIDForUpdate row-locks the profile on drivers that support it.
	GetByIDForUpdate(ctx context.Context, tx *gorm.DB, userID uint) (*types.UserProfile, error)
	Exists(ctx context.Context, tx *gorm.DB, userID uint) (bool, error)
	UpdateColumns(ctx context.Context, tx *gorm.DB, profile *types.UserProfile, columns []string) error
}

type userProfileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserProfileRepo(db *gorm.DB, baseLog *logger.Logger) UserProfileRepo {
	repoLog := baseLog.With("repo", "UserProfileRepo")
	return &userProfileRepo{db: db, log: repoLog}
}

func (r *userProfileRepo) Create(ctx context.Context, tx *gorm.DB, profiles []*types.UserProfile) ([]*types.UserProfile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(profiles) == 0 {
		return []*types.UserProfile{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *userProfileRepo) GetByID(ctx context.Context, tx *gorm.DB, userID uint) (*types.UserProfile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out types.UserProfile
	if err := transaction.WithContext(ctx).
		Where("id = ?", userID).
		First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *userProfileRepo) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, userID uint) (*types.UserProfile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(ctx)
	if transaction.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var out types.UserProfile
	if err := q.Where("id = ?", userID).First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *userProfileRepo) Exists(ctx context.Context, tx *gorm.DB, userID uint) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.UserProfile{}).
		Where("id = ?", userID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateColumns writes only the named columns from profile, including nil values.
func (r *userProfileRepo) UpdateColumns(ctx context.Context, tx *gorm.DB, profile *types.UserProfile, columns []string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if profile == nil || len(columns) == 0 {
		return nil
	}
	res := transaction.WithContext(ctx).
		Model(profile).
		Select(columns).
		Updates(profile)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
