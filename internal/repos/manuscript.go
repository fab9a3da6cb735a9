package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumenpress/editorial-core/internal/platform/logger"
	"github.com/lumenpress/editorial-core/internal/types"
)

type ManuscriptRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rows []*types.Manuscript) ([]*types.Manuscript, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Manuscript, error)
	ListByStatuses(ctx context.Context, tx *gorm.DB, statuses []string) ([]*types.Manuscript, error)
	// UpdateWhere applies updates only when the row still matches the
	// expected status (and pre-check sub-stage when given). The affected-row
	// count lets a losing concurrent writer detect the lost race.
	UpdateWhere(ctx context.Context, tx *gorm.DB, id uuid.UUID, expectStatus string, expectPreCheck *string, updates map[string]any) (int64, error)
	// UpdateFields is an unconditional field write, used for best-effort
	// mirrors like final_pdf_path.
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]any) error
	// CountInvariantViolations counts rows breaking the
	// pre_check_status ⟺ pre_check invariant.
	CountInvariantViolations(ctx context.Context, tx *gorm.DB) (int64, error)
}

type manuscriptRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewManuscriptRepo(db *gorm.DB, baseLog *logger.Logger) ManuscriptRepo {
	return &manuscriptRepo{db: db, log: baseLog.With("repo", "ManuscriptRepo")}
}

func (r *manuscriptRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.Manuscript) ([]*types.Manuscript, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return []*types.Manuscript{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *manuscriptRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Manuscript, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.Manuscript
	err := transaction.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *manuscriptRepo) ListByStatuses(ctx context.Context, tx *gorm.DB, statuses []string) ([]*types.Manuscript, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Manuscript
	if len(statuses) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("status IN ?", statuses).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *manuscriptRepo) UpdateWhere(ctx context.Context, tx *gorm.DB, id uuid.UUID, expectStatus string, expectPreCheck *string, updates map[string]any) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(ctx).
		Model(&types.Manuscript{}).
		Where("id = ?", id).
		Where("status = ?", expectStatus)
	if expectPreCheck != nil {
		q = q.Where("pre_check_status = ?", *expectPreCheck)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *manuscriptRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]any) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Manuscript{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *manuscriptRepo) CountInvariantViolations(ctx context.Context, tx *gorm.DB) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	err := transaction.WithContext(ctx).
		Model(&types.Manuscript{}).
		Where("(status = ? AND pre_check_status IS NULL) OR (status <> ? AND pre_check_status IS NOT NULL)",
			types.ManuscriptStatusPreCheck, types.ManuscriptStatusPreCheck).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
