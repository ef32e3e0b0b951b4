package agents

import (
	"context"
	"time"

	types "github.com/saarzint/AI-Agents-Geoferry/internal/domain"
	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/logger"
	"gorm.io/gorm"
)

type AgentReportRepo interface {
	Create(ctx context.Context, tx *gorm.DB, report *types.AgentReport) (*types.AgentReport, error)
	GetByID(ctx context.Context, tx *gorm.DB, reportID uint) (*types.AgentReport, error)
	// ListByUser returns the full history in reconciliation order (timestamp, then id).
	ListByUser(ctx context.Context, tx *gorm.DB, userID uint) ([]*types.AgentReport, error)
	// ListUnverifiedInWindow returns unverified reports for the user, excluding excludeID,
	// with timestamps in [from, to], newest first.
	ListUnverifiedInWindow(ctx context.Context, tx *gorm.DB, userID uint, excludeID uint, from, to time.Time) ([]*types.AgentReport, error)
	SetConflictFlag(ctx context.Context, tx *gorm.DB, reportIDs []uint) error
	// MarkVerified flips verified once and reports whether this call changed the row.
	MarkVerified(ctx context.Context, tx *gorm.DB, reportID uint, at time.Time) (bool, error)
	MaxIDByUser(ctx context.Context, tx *gorm.DB, userID uint) (uint, error)
}

type agentReportRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAgentReportRepo(db *gorm.DB, baseLog *logger.Logger) AgentReportRepo {
	repoLog := baseLog.With("repo", "AgentReportRepo")
	return &agentReportRepo{db: db, log: repoLog}
}

func (r *agentReportRepo) Create(ctx context.Context, tx *gorm.DB, report *types.AgentReport) (*types.AgentReport, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(report).Error; err != nil {
		return nil, err
	}
	return report, nil
}

func (r *agentReportRepo) GetByID(ctx context.Context, tx *gorm.DB, reportID uint) (*types.AgentReport, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out types.AgentReport
	if err := transaction.WithContext(ctx).
		Where("id = ?", reportID).
		First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *agentReportRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uint) ([]*types.AgentReport, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.AgentReport
	if err := transaction.WithContext(ctx).
		Where("user_profile_id = ?", userID).
		Order(`"timestamp" ASC, id ASC`).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *agentReportRepo) ListUnverifiedInWindow(ctx context.Context, tx *gorm.DB, userID uint, excludeID uint, from, to time.Time) ([]*types.AgentReport, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.AgentReport
	if err := transaction.WithContext(ctx).
		Where("user_profile_id = ? AND id <> ? AND verified = ?", userID, excludeID, false).
		Where(`"timestamp" >= ? AND "timestamp" <= ?`, from, to).
		Order(`"timestamp" DESC, id DESC`).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *agentReportRepo) SetConflictFlag(ctx context.Context, tx *gorm.DB, reportIDs []uint) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(reportIDs) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.AgentReport{}).
		Where("id IN ?", reportIDs).
		Update("conflict_flag", true).Error
}

func (r *agentReportRepo) MarkVerified(ctx context.Context, tx *gorm.DB, reportID uint, at time.Time) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.AgentReport{}).
		Where("id = ? AND verified = ?", reportID, false).
		Updates(map[string]any{
			"verified":    true,
			"verified_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *agentReportRepo) MaxIDByUser(ctx context.Context, tx *gorm.DB, userID uint) (uint, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var maxID uint
	if err := transaction.WithContext(ctx).
		Model(&types.AgentReport{}).
		Where("user_profile_id = ?", userID).
		Select("COALESCE(MAX(id), 0)").
		Scan(&maxID).Error; err != nil {
		return 0, err
	}
	return maxID, nil
}
