package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumenpress/editorial-core/internal/platform/logger"
	"github.com/lumenpress/editorial-core/internal/types"
)

type DecisionLetterRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rows []*types.DecisionLetter) ([]*types.DecisionLetter, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.DecisionLetter, error)
	// GetLatestForEditor returns the editor's most recent letter for the
	// manuscript, draft or final.
	GetLatestForEditor(ctx context.Context, tx *gorm.DB, manuscriptID, editorID uuid.UUID) (*types.DecisionLetter, error)
	GetFinal(ctx context.Context, tx *gorm.DB, manuscriptID uuid.UUID) (*types.DecisionLetter, error)
	ListByManuscript(ctx context.Context, tx *gorm.DB, manuscriptID uuid.UUID) ([]*types.DecisionLetter, error)
	// UpdateWhereUpdatedAt writes updates only when the persisted updated_at
	// still equals expect (the optimistic-lock token). Zero rows affected
	// means another writer won.
	UpdateWhereUpdatedAt(ctx context.Context, tx *gorm.DB, id uuid.UUID, expect time.Time, updates map[string]any) (int64, error)
}

type decisionLetterRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDecisionLetterRepo(db *gorm.DB, baseLog *logger.Logger) DecisionLetterRepo {
	return &decisionLetterRepo{db: db, log: baseLog.With("repo", "DecisionLetterRepo")}
}

func (r *decisionLetterRepo) handle(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *decisionLetterRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.DecisionLetter) ([]*types.DecisionLetter, error) {
	if len(rows) == 0 {
		return []*types.DecisionLetter{}, nil
	}
	if err := r.handle(tx).WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *decisionLetterRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.DecisionLetter, error) {
	var row types.DecisionLetter
	err := r.handle(tx).WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *decisionLetterRepo) GetLatestForEditor(ctx context.Context, tx *gorm.DB, manuscriptID, editorID uuid.UUID) (*types.DecisionLetter, error) {
	var row types.DecisionLetter
	err := r.handle(tx).WithContext(ctx).
		Where("manuscript_id = ? AND editor_id = ?", manuscriptID, editorID).
		Order("updated_at DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *decisionLetterRepo) GetFinal(ctx context.Context, tx *gorm.DB, manuscriptID uuid.UUID) (*types.DecisionLetter, error) {
	var row types.DecisionLetter
	err := r.handle(tx).WithContext(ctx).
		Where("manuscript_id = ? AND status = ?", manuscriptID, types.LetterStatusFinal).
		Order("updated_at DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *decisionLetterRepo) ListByManuscript(ctx context.Context, tx *gorm.DB, manuscriptID uuid.UUID) ([]*types.DecisionLetter, error) {
	var results []*types.DecisionLetter
	if err := r.handle(tx).WithContext(ctx).
		Where("manuscript_id = ?", manuscriptID).
		Order("updated_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *decisionLetterRepo) UpdateWhereUpdatedAt(ctx context.Context, tx *gorm.DB, id uuid.UUID, expect time.Time, updates map[string]any) (int64, error) {
	res := r.handle(tx).WithContext(ctx).
		Model(&types.DecisionLetter{}).
		Where("id = ?", id).
		Where("updated_at = ?", expect).
		Updates(updates)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
