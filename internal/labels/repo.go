package labels

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bintrack-backend/pkg/db/models"
	"github.com/angelmondragon/bintrack-backend/pkg/enums"
	"github.com/angelmondragon/bintrack-backend/pkg/pagination"
)

// Repository persists print jobs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, job *models.PrintJob) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PrintJob, error)
	List(ctx context.Context, opts listQuery) ([]models.PrintJob, error)
	Save(ctx context.Context, job *models.PrintJob) error
	DeletePrintedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type listQuery struct {
	status *enums.PrintJobStatus
	binID  string
	limit  int
	cursor *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, job *models.PrintJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PrintJob, error) {
	var job models.PrintJob
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// List returns jobs oldest first so stations drain the queue in order.
func (r *repository) List(ctx context.Context, opts listQuery) ([]models.PrintJob, error) {
	query := r.db.WithContext(ctx).Model(&models.PrintJob{})
	if opts.status != nil {
		query = query.Where("status = ?", *opts.status)
	}
	if opts.binID != "" {
		query = query.Where("bin_id = ?", opts.binID)
	}

	var rows []models.PrintJob
	err := query.Scopes(pagination.Keyset(opts.cursor, "id", pagination.Asc)).Limit(opts.limit).Find(&rows).Error
	return rows, err
}

func (r *repository) Save(ctx context.Context, job *models.PrintJob) error {
	return r.db.WithContext(ctx).Save(job).Error
}

// DeletePrintedBefore removes printed jobs acknowledged before cutoff.
func (r *repository) DeletePrintedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status = ? AND printed_at < ?", enums.PrintJobStatusPrinted, cutoff).
		Delete(&models.PrintJob{})
	return res.RowsAffected, res.Error
}
