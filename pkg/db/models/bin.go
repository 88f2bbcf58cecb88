package models

import (
	"time"

	"github.com/angelmondragon/bintrack-backend/pkg/enums"
)

// Bin is a physical container tracked through the release lifecycle.
type Bin struct {
	BinID               string                    `gorm:"column:bin_id;type:text;primaryKey" json:"binId"`
	Status              enums.BinStatus           `gorm:"column:status;type:text;not null;index" json:"status"`
	JTC                 *string                   `gorm:"column:jtc;type:text;index" json:"jtc"`
	QuantityCheckStatus enums.QuantityCheckStatus `gorm:"column:quantity_check_status;type:text;not null" json:"quantityCheckStatus"`
	Location            string                    `gorm:"column:location;type:text" json:"location"`
	WorkcellID          string                    `gorm:"column:workcell_id;type:text" json:"workcellId"`
	StationID           string                    `gorm:"column:station_id;type:text" json:"stationId"`
	Remark              string                    `gorm:"column:remark;type:text" json:"remark"`
	LastUsed            *time.Time                `gorm:"column:last_used" json:"lastUsed"`
	LastUpdated         time.Time                 `gorm:"column:last_updated;not null" json:"lastUpdated"`
	CreatedAt           time.Time                 `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (Bin) TableName() string { return "bins" }

// JTCValue returns the assigned work order or an empty string.
func (b Bin) JTCValue() string {
	if b.JTC == nil {
		return ""
	}
	return *b.JTC
}

// BinComponent is the reconciliation record of one component in one bin.
type BinComponent struct {
	BinID            string                 `gorm:"column:bin_id;type:text;primaryKey" json:"binId"`
	ComponentID      string                 `gorm:"column:component_id;type:text;primaryKey" json:"componentId"`
	ActualQuantity   *int                   `gorm:"column:actual_quantity" json:"actualQuantity"`
	ActualWeightKg   *float64               `gorm:"column:actual_weight_kg" json:"actualWeightKg"`
	UnitWeightGrams  *float64               `gorm:"column:unit_weight_grams" json:"unitWeightGrams"`
	ExpectedQuantity int                    `gorm:"column:expected_quantity;not null" json:"expectedQuantity"`
	DiscrepancyType  *enums.DiscrepancyType `gorm:"column:discrepancy_type;type:text" json:"discrepancyType"`
	Difference       *int                   `gorm:"column:difference" json:"difference"`
	ScaleSerialNo    *string                `gorm:"column:scale_serial_no;type:text" json:"scaleSerialNo"`
	RecordedAt       time.Time              `gorm:"column:recorded_at;not null" json:"recordedAt"`
}

func (BinComponent) TableName() string { return "bin_components" }

// Quantity returns the recorded quantity, treating null as zero.
func (c BinComponent) Quantity() int {
	if c.ActualQuantity == nil {
		return 0
	}
	return *c.ActualQuantity
}
