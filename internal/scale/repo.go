package scale

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/bintrack-backend/pkg/db/models"
)

// Repository stores the audit trail of pushed readings.
type Repository interface {
	Insert(ctx context.Context, row *models.ScaleReading) error
	Recent(ctx context.Context, stationID string, limit int) ([]models.ScaleReading, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Insert(ctx context.Context, row *models.ScaleReading) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *repository) Recent(ctx context.Context, stationID string, limit int) ([]models.ScaleReading, error) {
	var rows []models.ScaleReading
	err := r.db.WithContext(ctx).
		Where("station_id = ?", stationID).
		Order("read_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("read_at < ?", cutoff).Delete(&models.ScaleReading{})
	return res.RowsAffected, res.Error
}
