package ledger

import (
	"context"

	types "github.com/saarzint/AI-Agents-Geoferry/internal/domain"
	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/logger"
	"gorm.io/gorm"
)

// UsageEntryRepo is append-only.
type UsageEntryRepo interface {
	Create(ctx context.Context, tx *gorm.DB, entry *types.UsageEntry) (*types.UsageEntry, error)
	// ListByUser returns entries in replay order (timestamp, then id).
	ListByUser(ctx context.Context, tx *gorm.DB, userID uint) ([]*types.UsageEntry, error)
	ListRecentByUser(ctx context.Context, tx *gorm.DB, userID uint, limit int) ([]*types.UsageEntry, error)
}

type usageEntryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUsageEntryRepo(db *gorm.DB, baseLog *logger.Logger) UsageEntryRepo {
	repoLog := baseLog.With("repo", "UsageEntryRepo")
	return &usageEntryRepo{db: db, log: repoLog}
}

func (r *usageEntryRepo) Create(ctx context.Context, tx *gorm.DB, entry *types.UsageEntry) (*types.UsageEntry, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *usageEntryRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uint) ([]*types.UsageEntry, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.UsageEntry
	if err := transaction.WithContext(ctx).
		Where("user_profile_id = ?", userID).
		Order(`"timestamp" ASC, id ASC`).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *usageEntryRepo) ListRecentByUser(ctx context.Context, tx *gorm.DB, userID uint, limit int) ([]*types.UsageEntry, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 10
	}
	var out []*types.UsageEntry
	if err := transaction.WithContext(ctx).
		Where("user_profile_id = ?", userID).
		Order(`"timestamp" DESC, id DESC`).
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
