package bins

import (
	"context"
	"time"

	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/bintrack-backend/pkg/db"
	"github.com/angelmondragon/bintrack-backend/pkg/db/models"
	"github.com/angelmondragon/bintrack-backend/pkg/enums"
	"github.com/angelmondragon/bintrack-backend/pkg/pagination"
)

// Repository persists bins and their component records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindBin(ctx context.Context, binID string, forUpdate bool) (*models.Bin, error)
	FindBins(ctx context.Context, binIDs []string, forUpdate bool) ([]models.Bin, error)
	List(ctx context.Context, query listQuery) ([]models.Bin, error)
	ListByJTC(ctx context.Context, jtc string, status *enums.BinStatus) ([]models.Bin, error)
	CountByJTC(ctx context.Context, jtc string) (int64, error)
	CountByStatus(ctx context.Context) (map[enums.BinStatus]int64, error)
	Create(ctx context.Context, bin *models.Bin) error
	Save(ctx context.Context, bin *models.Bin) error
	ListComponents(ctx context.Context, binID string) ([]models.BinComponent, error)
	ReplaceComponents(ctx context.Context, binID string, rows []models.BinComponent) error
	ResetComponents(ctx context.Context, binID string, at time.Time) error
}

type listQuery struct {
	statuses []enums.BinStatus
	location string
	limit    int
	cursor   *pagination.Cursor
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

func (r *repository) FindBin(ctx context.Context, binID string, forUpdate bool) (*models.Bin, error) {
	query := r.db.WithContext(ctx)
	if forUpdate {
		query = dbpkg.ForUpdate(query)
	}
	var bin models.Bin
	if err := query.Where("bin_id = ?", binID).First(&bin).Error; err != nil {
		return nil, err
	}
	return &bin, nil
}

// FindBins returns the bins that exist ordered by id, so concurrent batch
// operations take row locks in the same order.
func (r *repository) FindBins(ctx context.Context, binIDs []string, forUpdate bool) ([]models.Bin, error) {
	var rows []models.Bin
	if len(binIDs) == 0 {
		return rows, nil
	}
	query := r.db.WithContext(ctx)
	if forUpdate {
		query = dbpkg.ForUpdate(query)
	}
	err := query.Where("bin_id IN ?", binIDs).Order("bin_id ASC").Find(&rows).Error
	return rows, err
}

func (r *repository) List(ctx context.Context, opts listQuery) ([]models.Bin, error) {
	query := r.db.WithContext(ctx).Model(&models.Bin{})
	if len(opts.statuses) > 0 {
		query = query.Where("status IN ?", opts.statuses)
	}
	if opts.location != "" {
		query = query.Where("location = ?", opts.location)
	}

	var rows []models.Bin
	err := query.Scopes(pagination.Keyset(opts.cursor, "bin_id", pagination.Desc)).Limit(opts.limit).Find(&rows).Error
	return rows, err
}

func (r *repository) ListByJTC(ctx context.Context, jtc string, status *enums.BinStatus) ([]models.Bin, error) {
	query := r.db.WithContext(ctx).Where("jtc = ?", jtc)
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	var rows []models.Bin
	err := query.Order("bin_id ASC").Find(&rows).Error
	return rows, err
}

func (r *repository) CountByJTC(ctx context.Context, jtc string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Bin{}).Where("jtc = ?", jtc).Count(&count).Error
	return count, err
}

func (r *repository) CountByStatus(ctx context.Context) (map[enums.BinStatus]int64, error) {
	var rows []struct {
		Status enums.BinStatus
		Count  int64
	}
	err := r.db.WithContext(ctx).Model(&models.Bin{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[enums.BinStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

func (r *repository) Create(ctx context.Context, bin *models.Bin) error {
	return r.db.WithContext(ctx).Create(bin).Error
}

// Save writes every column of the bin, including a cleared JTC.
func (r *repository) Save(ctx context.Context, bin *models.Bin) error {
	return r.db.WithContext(ctx).Save(bin).Error
}

func (r *repository) ListComponents(ctx context.Context, binID string) ([]models.BinComponent, error) {
	var rows []models.BinComponent
	err := r.db.WithContext(ctx).Where("bin_id = ?", binID).Order("component_id ASC").Find(&rows).Error
	return rows, err
}

// ReplaceComponents makes rows the bin's complete record set.
func (r *repository) ReplaceComponents(ctx context.Context, binID string, rows []models.BinComponent) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("bin_id = ?", binID).Delete(&models.BinComponent{}).Error; err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	return db.Create(&rows).Error
}

// ResetComponents zeroes the quantities of a returned bin and clears the
// weight and discrepancy columns.
func (r *repository) ResetComponents(ctx context.Context, binID string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.BinComponent{}).
		Where("bin_id = ?", binID).
		Updates(map[string]any{
			"actual_quantity":  0,
			"actual_weight_kg": nil,
			"discrepancy_type": nil,
			"difference":       nil,
			"recorded_at":      at,
		}).Error
}
