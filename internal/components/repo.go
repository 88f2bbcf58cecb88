package components

import (
	"context"
	"time"

	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/bintrack-backend/pkg/db"
	"github.com/angelmondragon/bintrack-backend/pkg/db/models"
)

// Repository reads component masters and the per-bin values last recorded
// for them.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, componentID string) (*models.ComponentMaster, error)
	FindByIDs(ctx context.Context, componentIDs []string) (map[string]models.ComponentMaster, error)
	List(ctx context.Context) ([]models.ComponentMaster, error)
	LockByID(ctx context.Context, componentID string) (*models.ComponentMaster, error)
	UpdateUnitWeight(ctx context.Context, componentID string, grams float64, at time.Time) error
	FindBinRecord(ctx context.Context, binID, componentID string) (*models.BinComponent, error)
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

func (r *repository) FindByID(ctx context.Context, componentID string) (*models.ComponentMaster, error) {
	var row models.ComponentMaster
	if err := r.db.WithContext(ctx).Where("component_id = ?", componentID).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// FindByIDs returns the masters that exist, keyed by id. Missing ids are
// simply absent from the map.
func (r *repository) FindByIDs(ctx context.Context, componentIDs []string) (map[string]models.ComponentMaster, error) {
	out := make(map[string]models.ComponentMaster, len(componentIDs))
	if len(componentIDs) == 0 {
		return out, nil
	}
	var rows []models.ComponentMaster
	if err := r.db.WithContext(ctx).Where("component_id IN ?", componentIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ComponentID] = row
	}
	return out, nil
}

func (r *repository) List(ctx context.Context) ([]models.ComponentMaster, error) {
	var rows []models.ComponentMaster
	err := r.db.WithContext(ctx).Order("component_id ASC").Find(&rows).Error
	return rows, err
}

func (r *repository) LockByID(ctx context.Context, componentID string) (*models.ComponentMaster, error) {
	var row models.ComponentMaster
	if err := dbpkg.ForUpdate(r.db.WithContext(ctx)).Where("component_id = ?", componentID).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) UpdateUnitWeight(ctx context.Context, componentID string, grams float64, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.ComponentMaster{}).
		Where("component_id = ?", componentID).
		Updates(map[string]any{
			"unit_weight_grams":         grams,
			"unit_weight_calibrated_at": at,
			"updated_at":                at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) FindBinRecord(ctx context.Context, binID, componentID string) (*models.BinComponent, error) {
	var row models.BinComponent
	err := r.db.WithContext(ctx).
		Where("bin_id = ? AND component_id = ?", binID, componentID).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}
