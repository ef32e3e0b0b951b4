package agents

import (
	"context"

	types "github.com/saarzint/AI-Agents-Geoferry/internal/domain"
	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReportConflictRepo interface {
	// Create skips rows already recorded for the same (report, other report, field).
	Create(ctx context.Context, tx *gorm.DB, conflicts []*types.ReportConflict) ([]*types.ReportConflict, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID uint) ([]*types.ReportConflict, error)
	ListByReport(ctx context.Context, tx *gorm.DB, reportID uint) ([]*types.ReportConflict, error)
}

type reportConflictRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReportConflictRepo(db *gorm.DB, baseLog *logger.Logger) ReportConflictRepo {
	repoLog := baseLog.With("repo", "ReportConflictRepo")
	return &reportConflictRepo{db: db, log: repoLog}
}

func (r *reportConflictRepo) Create(ctx context.Context, tx *gorm.DB, conflicts []*types.ReportConflict) ([]*types.ReportConflict, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(conflicts) == 0 {
		return []*types.ReportConflict{}, nil
	}
	if err := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "report_id"}, {Name: "other_report_id"}, {Name: "field"}},
			DoNothing: true,
		}).
		Create(&conflicts).Error; err != nil {
		return nil, err
	}
	return conflicts, nil
}

func (r *reportConflictRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uint) ([]*types.ReportConflict, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ReportConflict
	if err := transaction.WithContext(ctx).
		Where("user_profile_id = ?", userID).
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListByReport returns conflicts where the report is on either side.
func (r *reportConflictRepo) ListByReport(ctx context.Context, tx *gorm.DB, reportID uint) ([]*types.ReportConflict, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ReportConflict
	if err := transaction.WithContext(ctx).
		Where("report_id = ? OR other_report_id = ?", reportID, reportID).
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
