package reference

import (
	"context"
	"strings"

	types "github.com/saarzint/AI-Agents-Geoferry/internal/domain"
	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NormalizeKey lowercases and collapses whitespace so lookups are spelling-tolerant.
func NormalizeKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

type ApplicationRequirementRepo interface {
	Get(ctx context.Context, tx *gorm.DB, university, program string) (*types.ApplicationRequirement, error)
	Upsert(ctx context.Context, tx *gorm.DB, req *types.ApplicationRequirement) (*types.ApplicationRequirement, error)
}

type applicationRequirementRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewApplicationRequirementRepo(db *gorm.DB, baseLog *logger.Logger) ApplicationRequirementRepo {
	repoLog := baseLog.With("repo", "ApplicationRequirementRepo")
	return &applicationRequirementRepo{db: db, log: repoLog}
}

func (r *applicationRequirementRepo) Get(ctx context.Context, tx *gorm.DB, university, program string) (*types.ApplicationRequirement, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out types.ApplicationRequirement
	if err := transaction.WithContext(ctx).
		Where("university = ? AND program = ?", NormalizeKey(university), NormalizeKey(program)).
		First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *applicationRequirementRepo) Upsert(ctx context.Context, tx *gorm.DB, req *types.ApplicationRequirement) (*types.ApplicationRequirement, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	req.University = NormalizeKey(req.University)
	req.Program = NormalizeKey(req.Program)
	if err := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "university"}, {Name: "program"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "source_url", "fetched_at"}),
		}).
		Create(req).Error; err != nil {
		return nil, err
	}
	return r.Get(ctx, transaction, req.University, req.Program)
}

type VisaRequirementRepo interface {
	Get(ctx context.Context, tx *gorm.DB, citizenship, destination string) (*types.VisaRequirement, error)
	Upsert(ctx context.Context, tx *gorm.DB, req *types.VisaRequirement) (*types.VisaRequirement, error)
}

type visaRequirementRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVisaRequirementRepo(db *gorm.DB, baseLog *logger.Logger) VisaRequirementRepo {
	repoLog := baseLog.With("repo", "VisaRequirementRepo")
	return &visaRequirementRepo{db: db, log: repoLog}
}

func (r *visaRequirementRepo) Get(ctx context.Context, tx *gorm.DB, citizenship, destination string) (*types.VisaRequirement, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out types.VisaRequirement
	if err := transaction.WithContext(ctx).
		Where("citizenship = ? AND destination = ?", NormalizeKey(citizenship), NormalizeKey(destination)).
		First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *visaRequirementRepo) Upsert(ctx context.Context, tx *gorm.DB, req *types.VisaRequirement) (*types.VisaRequirement, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	req.Citizenship = NormalizeKey(req.Citizenship)
	req.Destination = NormalizeKey(req.Destination)
	if err := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "citizenship"}, {Name: "destination"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "source_url", "fetched_at"}),
		}).
		Create(req).Error; err != nil {
		return nil, err
	}
	return r.Get(ctx, transaction, req.Citizenship, req.Destination)
}
