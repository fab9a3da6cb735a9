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

type ReviewAssignmentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rows []*types.ReviewAssignment) ([]*types.ReviewAssignment, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ReviewAssignment, error)
	// GetActive returns the non-cancelled assignment for
	// (manuscript, reviewer, round), if any.
	GetActive(ctx context.Context, tx *gorm.DB, manuscriptID, reviewerID uuid.UUID, round int) (*types.ReviewAssignment, error)
	ListByManuscript(ctx context.Context, tx *gorm.DB, manuscriptID uuid.UUID) ([]*types.ReviewAssignment, error)
	// ListRecentByReviewerJournal returns the reviewer's assignments on
	// manuscripts in the given journal invited at/after since, newest first.
	ListRecentByReviewerJournal(ctx context.Context, tx *gorm.DB, reviewerID, journalID uuid.UUID, since time.Time) ([]*types.ReviewAssignment, error)
	// CountOverdueOpen counts the reviewer's non-terminal assignments across
	// all manuscripts whose due date has passed.
	CountOverdueOpen(ctx context.Context, tx *gorm.DB, reviewerID uuid.UUID, now time.Time) (int64, error)
	// CountOpenForRound counts non-terminal assignments for the round.
	CountOpenForRound(ctx context.Context, tx *gorm.DB, manuscriptID uuid.UUID, round int) (int64, error)
	CountNonCancelled(ctx context.Context, tx *gorm.DB, manuscriptID uuid.UUID) (int64, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string, updates map[string]any) error
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type reviewAssignmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReviewAssignmentRepo(db *gorm.DB, baseLog *logger.Logger) ReviewAssignmentRepo {
	return &reviewAssignmentRepo{db: db, log: baseLog.With("repo", "ReviewAssignmentRepo")}
}

func (r *reviewAssignmentRepo) handle(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *reviewAssignmentRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.ReviewAssignment) ([]*types.ReviewAssignment, error) {
	if len(rows) == 0 {
		return []*types.ReviewAssignment{}, nil
	}
	if err := r.handle(tx).WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *reviewAssignmentRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ReviewAssignment, error) {
	var row types.ReviewAssignment
	err := r.handle(tx).WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *reviewAssignmentRepo) GetActive(ctx context.Context, tx *gorm.DB, manuscriptID, reviewerID uuid.UUID, round int) (*types.ReviewAssignment, error) {
	var row types.ReviewAssignment
	err := r.handle(tx).WithContext(ctx).
		Where("manuscript_id = ? AND reviewer_id = ? AND round_number = ?", manuscriptID, reviewerID, round).
		Where("status <> ?", types.AssignmentStatusCancelled).
		Order("invited_at DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *reviewAssignmentRepo) ListByManuscript(ctx context.Context, tx *gorm.DB, manuscriptID uuid.UUID) ([]*types.ReviewAssignment, error) {
	var results []*types.ReviewAssignment
	if err := r.handle(tx).WithContext(ctx).
		Where("manuscript_id = ?", manuscriptID).
		Order("invited_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *reviewAssignmentRepo) ListRecentByReviewerJournal(ctx context.Context, tx *gorm.DB, reviewerID, journalID uuid.UUID, since time.Time) ([]*types.ReviewAssignment, error) {
	var results []*types.ReviewAssignment
	if err := r.handle(tx).WithContext(ctx).
		Joins("JOIN manuscript ON manuscript.id = review_assignment.manuscript_id").
		Where("review_assignment.reviewer_id = ?", reviewerID).
		Where("manuscript.journal_id = ?", journalID).
		Where("review_assignment.invited_at >= ?", since).
		Order("review_assignment.invited_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *reviewAssignmentRepo) CountOverdueOpen(ctx context.Context, tx *gorm.DB, reviewerID uuid.UUID, now time.Time) (int64, error) {
	var count int64
	err := r.handle(tx).WithContext(ctx).
		Model(&types.ReviewAssignment{}).
		Where("reviewer_id = ?", reviewerID).
		Where("status IN ?", []string{types.AssignmentStatusPending, types.AssignmentStatusAccepted}).
		Where("due_at < ?", now).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *reviewAssignmentRepo) CountOpenForRound(ctx context.Context, tx *gorm.DB, manuscriptID uuid.UUID, round int) (int64, error) {
	var count int64
	err := r.handle(tx).WithContext(ctx).
		Model(&types.ReviewAssignment{}).
		Where("manuscript_id = ? AND round_number = ?", manuscriptID, round).
		Where("status IN ?", []string{types.AssignmentStatusPending, types.AssignmentStatusAccepted}).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *reviewAssignmentRepo) CountNonCancelled(ctx context.Context, tx *gorm.DB, manuscriptID uuid.UUID) (int64, error) {
	var count int64
	err := r.handle(tx).WithContext(ctx).
		Model(&types.ReviewAssignment{}).
		Where("manuscript_id = ?", manuscriptID).
		Where("status <> ?", types.AssignmentStatusCancelled).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *reviewAssignmentRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string, updates map[string]any) error {
	fields := map[string]any{"status": status}
	for k, v := range updates {
		fields[k] = v
	}
	return r.handle(tx).WithContext(ctx).
		Model(&types.ReviewAssignment{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *reviewAssignmentRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	return r.handle(tx).WithContext(ctx).
		Where("id = ?", id).
		Delete(&types.ReviewAssignment{}).Error
}
