package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumenpress/editorial-core/internal/platform/logger"
	"github.com/lumenpress/editorial-core/internal/types"
)

type ReviewReportRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rows []*types.ReviewReport) ([]*types.ReviewReport, error)
	GetByReviewer(ctx context.Context, tx *gorm.DB, manuscriptID, reviewerID uuid.UUID, round int) (*types.ReviewReport, error)
	ListSubmitted(ctx context.Context, tx *gorm.DB, manuscriptID uuid.UUID) ([]*types.ReviewReport, error)
	// DeletePendingShell removes the reviewer's not-yet-submitted report
	// shell for the manuscript, if one exists.
	DeletePendingShell(ctx context.Context, tx *gorm.DB, manuscriptID, reviewerID uuid.UUID) error
}

type reviewReportRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReviewReportRepo(db *gorm.DB, baseLog *logger.Logger) ReviewReportRepo {
	return &reviewReportRepo{db: db, log: baseLog.With("repo", "ReviewReportRepo")}
}

func (r *reviewReportRepo) handle(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *reviewReportRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.ReviewReport) ([]*types.ReviewReport, error) {
	if len(rows) == 0 {
		return []*types.ReviewReport{}, nil
	}
	if err := r.handle(tx).WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *reviewReportRepo) GetByReviewer(ctx context.Context, tx *gorm.DB, manuscriptID, reviewerID uuid.UUID, round int) (*types.ReviewReport, error) {
	var row types.ReviewReport
	err := r.handle(tx).WithContext(ctx).
		Where("manuscript_id = ? AND reviewer_id = ? AND round_number = ?", manuscriptID, reviewerID, round).
		Order("created_at DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *reviewReportRepo) ListSubmitted(ctx context.Context, tx *gorm.DB, manuscriptID uuid.UUID) ([]*types.ReviewReport, error) {
	var results []*types.ReviewReport
	if err := r.handle(tx).WithContext(ctx).
		Where("manuscript_id = ?", manuscriptID).
		Where("status IN ?", types.SubmittedReportStatuses).
		Order("submitted_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *reviewReportRepo) DeletePendingShell(ctx context.Context, tx *gorm.DB, manuscriptID, reviewerID uuid.UUID) error {
	return r.handle(tx).WithContext(ctx).
		Where("manuscript_id = ? AND reviewer_id = ?", manuscriptID, reviewerID).
		Where("status = ?", types.ReportStatusPending).
		Delete(&types.ReviewReport{}).Error
}
