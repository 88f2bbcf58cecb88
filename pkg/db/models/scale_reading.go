package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ScaleReading is the audit trail of readings pushed by scale bridges.
type ScaleReading struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	StationID       string    `gorm:"column:station_id;type:text;not null;index" json:"stationId"`
	SerialNo        string    `gorm:"column:serial_no;type:text" json:"serialNo"`
	NetKg           float64   `gorm:"column:net_kg;not null" json:"netKg"`
	PieceCount      int       `gorm:"column:piece_count;not null" json:"pieceCount"`
	UnitWeightGrams float64   `gorm:"column:unit_weight_grams;not null" json:"unitWeightGrams"`
	ReadAt          time.Time `gorm:"column:read_at;not null" json:"readAt"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (ScaleReading) TableName() string { return "scale_readings" }

func (s *ScaleReading) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
