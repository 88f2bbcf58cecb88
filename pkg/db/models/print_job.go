package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bintrack-backend/pkg/enums"
)

// PrintJob is a label waiting for, or handled by, a print station.
type PrintJob struct {
	ID        uuid.UUID            `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	EventID   uuid.UUID            `gorm:"column:event_id;type:uuid;not null;uniqueIndex:ux_print_jobs_event_id" json:"eventId"`
	BinID     string               `gorm:"column:bin_id;type:text;not null;index" json:"binId"`
	JTC       string               `gorm:"column:jtc;type:text;not null" json:"jtc"`
	Kind      enums.LabelKind      `gorm:"column:kind;type:text;not null" json:"kind"`
	Copies    int                  `gorm:"column:copies;not null" json:"copies"`
	Label     json.RawMessage      `gorm:"column:label;type:jsonb;not null" json:"label"`
	Status    enums.PrintJobStatus `gorm:"column:status;type:text;not null;index" json:"status"`
	LastError *string              `gorm:"column:last_error;type:text" json:"lastError"`
	CreatedAt time.Time            `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	PrintedAt *time.Time           `gorm:"column:printed_at" json:"printedAt"`
}

func (PrintJob) TableName() string { return "print_jobs" }

func (p *PrintJob) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
