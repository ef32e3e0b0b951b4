package ledger

import (
	"context"

	types "github.com/saarzint/AI-Agents-Geoferry/internal/domain"
	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TokenLedgerRepo interface {
	GetByUserID(ctx context.Context, tx *gorm.DB, userID uint) (*types.TokenLedger, error)
	// CreateIfAbsent inserts the ledger unless one already exists for the user and
	// reports whether this call created it.
	CreateIfAbsent(ctx context.Context, tx *gorm.DB, ledger *types.TokenLedger) (bool, error)
	// ApplyDelta subtracts tokensUsed from the balance in a single statement.
	ApplyDelta(ctx context.Context, tx *gorm.DB, userID uint, tokensUsed int64) error
	ListUserIDs(ctx context.Context, tx *gorm.DB) ([]uint, error)
}

type tokenLedgerRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTokenLedgerRepo(db *gorm.DB, baseLog *logger.Logger) TokenLedgerRepo {
	repoLog := baseLog.With("repo", "TokenLedgerRepo")
	return &tokenLedgerRepo{db: db, log: repoLog}
}

func (r *tokenLedgerRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uint) (*types.TokenLedger, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out types.TokenLedger
	if err := transaction.WithContext(ctx).
		Where("user_profile_id = ?", userID).
		First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *tokenLedgerRepo) CreateIfAbsent(ctx context.Context, tx *gorm.DB, ledger *types.TokenLedger) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_profile_id"}},
			DoNothing: true,
		}).
		Create(ledger)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *tokenLedgerRepo) ApplyDelta(ctx context.Context, tx *gorm.DB, userID uint, tokensUsed int64) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.TokenLedger{}).
		Where("user_profile_id = ?", userID).
		Update("balance", gorm.Expr("balance - ?", tokensUsed))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *tokenLedgerRepo) ListUserIDs(ctx context.Context, tx *gorm.DB) ([]uint, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var ids []uint
	if err := transaction.WithContext(ctx).
		Model(&types.TokenLedger{}).
		Order("user_profile_id ASC").
		Pluck("user_profile_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
