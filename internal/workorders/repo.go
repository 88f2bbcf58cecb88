package workorders

import (
	"context"

	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/bintrack-backend/pkg/db"
	"github.com/angelmondragon/bintrack-backend/pkg/db/models"
)

// Repository reads work orders and their BOM lines.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindWorkOrder(ctx context.Context, jtc string) (*models.WorkOrder, error)
	LockWorkOrder(ctx context.Context, jtc string) (*models.WorkOrder, error)
	ListBomLines(ctx context.Context, revisionID string) ([]models.BomLine, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a work order repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindWorkOrder(ctx context.Context, jtc string) (*models.WorkOrder, error) {
	var wo models.WorkOrder
	if err := r.db.WithContext(ctx).Where("jtc_id = ?", jtc).First(&wo).Error; err != nil {
		return nil, err
	}
	return &wo, nil
}

// LockWorkOrder loads the work order row under FOR UPDATE so concurrent
// releases against the same JTC serialize.
func (r *repository) LockWorkOrder(ctx context.Context, jtc string) (*models.WorkOrder, error) {
	var wo models.WorkOrder
	if err := dbpkg.ForUpdate(r.db.WithContext(ctx)).Where("jtc_id = ?", jtc).First(&wo).Error; err != nil {
		return nil, err
	}
	return &wo, nil
}

func (r *repository) ListBomLines(ctx context.Context, revisionID string) ([]models.BomLine, error) {
	var lines []models.BomLine
	err := r.db.WithContext(ctx).
		Where("revision_id = ?", revisionID).
		Order("line_no ASC").
		Order("component_id ASC").
		Find(&lines).Error
	if err != nil {
		return nil, err
	}
	return lines, nil
}
