package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumenpress/editorial-core/internal/platform/logger"
	"github.com/lumenpress/editorial-core/internal/types"
)

type ValidationRunRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.ValidationRun) (*types.ValidationRun, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ValidationRun, error)
	GetRunningByEnvironment(ctx context.Context, tx *gorm.DB, environment string) (*types.ValidationRun, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]any) error
}

type ValidationCheckRepo interface {
	// ReplaceForPhase deletes all stored checks for (run, phase) and writes
	// the new battery, giving re-runs idempotent semantics.
	ReplaceForPhase(ctx context.Context, tx *gorm.DB, runID uuid.UUID, phase string, checks []*types.ValidationCheck) error
	ListByRun(ctx context.Context, tx *gorm.DB, runID uuid.UUID) ([]*types.ValidationCheck, error)
	ListByPhase(ctx context.Context, tx *gorm.DB, runID uuid.UUID, phase string) ([]*types.ValidationCheck, error)
}

type validationRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewValidationRunRepo(db *gorm.DB, baseLog *logger.Logger) ValidationRunRepo {
	return &validationRunRepo{db: db, log: baseLog.With("repo", "ValidationRunRepo")}
}

func (r *validationRunRepo) handle(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *validationRunRepo) Create(ctx context.Context, tx *gorm.DB, row *types.ValidationRun) (*types.ValidationRun, error) {
	if err := r.handle(tx).WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *validationRunRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ValidationRun, error) {
	var row types.ValidationRun
	err := r.handle(tx).WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *validationRunRepo) GetRunningByEnvironment(ctx context.Context, tx *gorm.DB, environment string) (*types.ValidationRun, error) {
	var row types.ValidationRun
	err := r.handle(tx).WithContext(ctx).
		Where("environment = ? AND status = ?", environment, types.ValidationRunStatusRunning).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *validationRunRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]any) error {
	return r.handle(tx).WithContext(ctx).
		Model(&types.ValidationRun{}).
		Where("id = ?", id).
		Updates(updates).Error
}

type validationCheckRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewValidationCheckRepo(db *gorm.DB, baseLog *logger.Logger) ValidationCheckRepo {
	return &validationCheckRepo{db: db, log: baseLog.With("repo", "ValidationCheckRepo")}
}

func (r *validationCheckRepo) handle(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *validationCheckRepo) ReplaceForPhase(ctx context.Context, tx *gorm.DB, runID uuid.UUID, phase string, checks []*types.ValidationCheck) error {
	h := r.handle(tx)
	if err := h.WithContext(ctx).
		Where("run_id = ? AND phase = ?", runID, phase).
		Delete(&types.ValidationCheck{}).Error; err != nil {
		return err
	}
	if len(checks) == 0 {
		return nil
	}
	return h.WithContext(ctx).Create(&checks).Error
}

func (r *validationCheckRepo) ListByRun(ctx context.Context, tx *gorm.DB, runID uuid.UUID) ([]*types.ValidationCheck, error) {
	var results []*types.ValidationCheck
	if err := r.handle(tx).WithContext(ctx).
		Where("run_id = ?", runID).
		Order("phase ASC, seq ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *validationCheckRepo) ListByPhase(ctx context.Context, tx *gorm.DB, runID uuid.UUID, phase string) ([]*types.ValidationCheck, error) {
	var results []*types.ValidationCheck
	if err := r.handle(tx).WithContext(ctx).
		Where("run_id = ? AND phase = ?", runID, phase).
		Order("seq ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
