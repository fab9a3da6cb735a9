package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumenpress/editorial-core/internal/platform/logger"
	"github.com/lumenpress/editorial-core/internal/types"
)

type ProductionCycleRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rows []*types.ProductionCycle) ([]*types.ProductionCycle, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ProductionCycle, error)
	// GetActiveByManuscript returns the single non-terminal cycle, if any.
	GetActiveByManuscript(ctx context.Context, tx *gorm.DB, manuscriptID uuid.UUID) (*types.ProductionCycle, error)
	// GetLatestByManuscript returns the cycle with the highest cycle_no.
	GetLatestByManuscript(ctx context.Context, tx *gorm.DB, manuscriptID uuid.UUID) (*types.ProductionCycle, error)
	MaxCycleNo(ctx context.Context, tx *gorm.DB, manuscriptID uuid.UUID) (int, error)
	// UpdateWhereStatus writes updates only while the cycle still holds the
	// expected status; zero rows affected signals a lost race.
	UpdateWhereStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, expectStatus string, updates map[string]any) (int64, error)
}

type productionCycleRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProductionCycleRepo(db *gorm.DB, baseLog *logger.Logger) ProductionCycleRepo {
	return &productionCycleRepo{db: db, log: baseLog.With("repo", "ProductionCycleRepo")}
}

func (r *productionCycleRepo) handle(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *productionCycleRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.ProductionCycle) ([]*types.ProductionCycle, error) {
	if len(rows) == 0 {
		return []*types.ProductionCycle{}, nil
	}
	if err := r.handle(tx).WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *productionCycleRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ProductionCycle, error) {
	var row types.ProductionCycle
	err := r.handle(tx).WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *productionCycleRepo) GetActiveByManuscript(ctx context.Context, tx *gorm.DB, manuscriptID uuid.UUID) (*types.ProductionCycle, error) {
	var row types.ProductionCycle
	err := r.handle(tx).WithContext(ctx).
		Where("manuscript_id = ?", manuscriptID).
		Where("status NOT IN ?", []string{types.CycleStatusApprovedForPublish, types.CycleStatusCancelled}).
		Order("cycle_no DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *productionCycleRepo) GetLatestByManuscript(ctx context.Context, tx *gorm.DB, manuscriptID uuid.UUID) (*types.ProductionCycle, error) {
	var row types.ProductionCycle
	err := r.handle(tx).WithContext(ctx).
		Where("manuscript_id = ?", manuscriptID).
		Order("cycle_no DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *productionCycleRepo) MaxCycleNo(ctx context.Context, tx *gorm.DB, manuscriptID uuid.UUID) (int, error) {
	var max *int
	err := r.handle(tx).WithContext(ctx).
		Model(&types.ProductionCycle{}).
		Where("manuscript_id = ?", manuscriptID).
		Select("MAX(cycle_no)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}

func (r *productionCycleRepo) UpdateWhereStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, expectStatus string, updates map[string]any) (int64, error) {
	res := r.handle(tx).WithContext(ctx).
		Model(&types.ProductionCycle{}).
		Where("id = ?", id).
		Where("status = ?", expectStatus).
		Updates(updates)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
