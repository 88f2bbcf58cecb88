package checklist

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/bintrack-backend/pkg/db/models"
	"github.com/angelmondragon/bintrack-backend/pkg/enums"
)

// Repository reads the bin state the checklist and the release check project.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ExistingBinIDs(ctx context.Context, binIDs []string) ([]string, error)
	ReleasedBinIDs(ctx context.Context, jtc string) ([]string, error)
	Quantities(ctx context.Context, binIDs []string) ([]BinQuantities, error)
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

func (r *repository) ExistingBinIDs(ctx context.Context, binIDs []string) ([]string, error) {
	var ids []string
	if len(binIDs) == 0 {
		return ids, nil
	}
	err := r.db.WithContext(ctx).Model(&models.Bin{}).
		Where("bin_id IN ?", binIDs).
		Pluck("bin_id", &ids).Error
	return ids, err
}

func (r *repository) ReleasedBinIDs(ctx context.Context, jtc string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.Bin{}).
		Where("jtc = ? AND status = ?", jtc, enums.BinStatusReleased).
		Order("bin_id ASC").
		Pluck("bin_id", &ids).Error
	return ids, err
}

// Quantities returns one entry per requested bin, in request order. Bins
// without records yield an empty quantity map.
func (r *repository) Quantities(ctx context.Context, binIDs []string) ([]BinQuantities, error) {
	out := make([]BinQuantities, 0, len(binIDs))
	if len(binIDs) == 0 {
		return out, nil
	}
	var rows []models.BinComponent
	if err := r.db.WithContext(ctx).
		Where("bin_id IN ?", binIDs).
		Order("bin_id ASC, component_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	byBin := map[string][]models.BinComponent{}
	for _, row := range rows {
		byBin[row.BinID] = append(byBin[row.BinID], row)
	}
	for _, id := range binIDs {
		out = append(out, FromRecords(id, byBin[id]))
	}
	return out, nil
}
