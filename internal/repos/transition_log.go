package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumenpress/editorial-core/internal/platform/logger"
	"github.com/lumenpress/editorial-core/internal/types"
)

type TransitionLogRepo interface {
	// Create writes the full projection.
	Create(ctx context.Context, tx *gorm.DB, entry *types.TransitionLogEntry) error
	// CreateWithoutPayload writes an explicit narrower projection that omits
	// the JSON payload column, for stores where that column is absent.
	CreateWithoutPayload(ctx context.Context, tx *gorm.DB, entry *types.TransitionLogEntry) error
	ListByManuscript(ctx context.Context, tx *gorm.DB, manuscriptID uuid.UUID) ([]*types.TransitionLogEntry, error)
	// HasTransition reports whether the manuscript ever recorded a
	// transition into the given status.
	HasTransition(ctx context.Context, tx *gorm.DB, manuscriptID uuid.UUID, toStatus string) (bool, error)
	// Ping is the cheapest reachability probe against the log table.
	Ping(ctx context.Context, tx *gorm.DB) error
}

type transitionLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTransitionLogRepo(db *gorm.DB, baseLog *logger.Logger) TransitionLogRepo {
	return &transitionLogRepo{db: db, log: baseLog.With("repo", "TransitionLogRepo")}
}

func (r *transitionLogRepo) handle(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *transitionLogRepo) Create(ctx context.Context, tx *gorm.DB, entry *types.TransitionLogEntry) error {
	return r.handle(tx).WithContext(ctx).Create(entry).Error
}

func (r *transitionLogRepo) CreateWithoutPayload(ctx context.Context, tx *gorm.DB, entry *types.TransitionLogEntry) error {
	return r.handle(tx).WithContext(ctx).
		Select("ID", "ManuscriptID", "FromStatus", "ToStatus", "ChangedBy", "ChangedByMasked", "Comment", "CreatedAt").
		Create(entry).Error
}

func (r *transitionLogRepo) ListByManuscript(ctx context.Context, tx *gorm.DB, manuscriptID uuid.UUID) ([]*types.TransitionLogEntry, error) {
	var results []*types.TransitionLogEntry
	if err := r.handle(tx).WithContext(ctx).
		Where("manuscript_id = ?", manuscriptID).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *transitionLogRepo) HasTransition(ctx context.Context, tx *gorm.DB, manuscriptID uuid.UUID, toStatus string) (bool, error) {
	var count int64
	err := r.handle(tx).WithContext(ctx).
		Model(&types.TransitionLogEntry{}).
		Where("manuscript_id = ? AND to_status = ?", manuscriptID, toStatus).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *transitionLogRepo) Ping(ctx context.Context, tx *gorm.DB) error {
	var count int64
	return r.handle(tx).WithContext(ctx).
		Model(&types.TransitionLogEntry{}).
		Limit(1).
		Count(&count).Error
}
