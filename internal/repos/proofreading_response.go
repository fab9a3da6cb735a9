package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumenpress/editorial-core/internal/platform/logger"
	"github.com/lumenpress/editorial-core/internal/types"
)

type ProofreadingResponseRepo interface {
	// Create persists the response together with its ordered correction
	// items.
	Create(ctx context.Context, tx *gorm.DB, resp *types.ProofreadingResponse, items []*types.CorrectionItem) (*types.ProofreadingResponse, error)
	GetLatestByCycle(ctx context.Context, tx *gorm.DB, cycleID uuid.UUID) (*types.ProofreadingResponse, error)
	ListItems(ctx context.Context, tx *gorm.DB, responseID uuid.UUID) ([]*types.CorrectionItem, error)
}

type proofreadingResponseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProofreadingResponseRepo(db *gorm.DB, baseLog *logger.Logger) ProofreadingResponseRepo {
	return &proofreadingResponseRepo{db: db, log: baseLog.With("repo", "ProofreadingResponseRepo")}
}

func (r *proofreadingResponseRepo) handle(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *proofreadingResponseRepo) Create(ctx context.Context, tx *gorm.DB, resp *types.ProofreadingResponse, items []*types.CorrectionItem) (*types.ProofreadingResponse, error) {
	h := r.handle(tx)
	if err := h.WithContext(ctx).Create(resp).Error; err != nil {
		return nil, err
	}
	if len(items) > 0 {
		if err := h.WithContext(ctx).Create(&items).Error; err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func (r *proofreadingResponseRepo) GetLatestByCycle(ctx context.Context, tx *gorm.DB, cycleID uuid.UUID) (*types.ProofreadingResponse, error) {
	var row types.ProofreadingResponse
	err := r.handle(tx).WithContext(ctx).
		Where("production_cycle_id = ?", cycleID).
		Order("submitted_at DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *proofreadingResponseRepo) ListItems(ctx context.Context, tx *gorm.DB, responseID uuid.UUID) ([]*types.CorrectionItem, error) {
	var results []*types.CorrectionItem
	if err := r.handle(tx).WithContext(ctx).
		Where("response_id = ?", responseID).
		Order("seq ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
