package agents

import (
	"context"

	types "github.com/saarzint/AI-Agents-Geoferry/internal/domain"
	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/logger"
	"gorm.io/gorm"
)

// AdmissionsSummaryRepo reads the cached projection. Writes go through the summary
// aggregate so every update is version-checked.
type AdmissionsSummaryRepo interface {
	GetByUserID(ctx context.Context, tx *gorm.DB, userID uint) (*types.AdmissionsSummary, error)
	Create(ctx context.Context, tx *gorm.DB, summary *types.AdmissionsSummary) (*types.AdmissionsSummary, error)
	ListUserIDs(ctx context.Context, tx *gorm.DB) ([]uint, error)
}

type admissionsSummaryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAdmissionsSummaryRepo(db *gorm.DB, baseLog *logger.Logger) AdmissionsSummaryRepo {
	repoLog := baseLog.With("repo", "AdmissionsSummaryRepo")
	return &admissionsSummaryRepo{db: db, log: repoLog}
}

func (r *admissionsSummaryRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uint) (*types.AdmissionsSummary, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out types.AdmissionsSummary
	if err := transaction.WithContext(ctx).
		Where("user_profile_id = ?", userID).
		First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *admissionsSummaryRepo) Create(ctx context.Context, tx *gorm.DB, summary *types.AdmissionsSummary) (*types.AdmissionsSummary, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(summary).Error; err != nil {
		return nil, err
	}
	return summary, nil
}

func (r *admissionsSummaryRepo) ListUserIDs(ctx context.Context, tx *gorm.DB) ([]uint, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var ids []uint
	if err := transaction.WithContext(ctx).
		Model(&types.AdmissionsSummary{}).
		Order("user_profile_id ASC").
		Pluck("user_profile_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
