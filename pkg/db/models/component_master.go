package models

import "time"

// ComponentMaster is the reference record for one component id.
type ComponentMaster struct {
	ComponentID            string     `gorm:"column:component_id;type:text;primaryKey" json:"componentId"`
	ComponentName          string     `gorm:"column:component_name;type:text;not null" json:"componentName"`
	ExpectedQuantityPerBin int        `gorm:"column:expected_quantity_per_bin;not null" json:"expectedQuantityPerBin"`
	UnitWeightGrams        *float64   `gorm:"column:unit_weight_grams" json:"unitWeightGrams"`
	RequiresScale          bool       `gorm:"column:requires_scale;not null" json:"requiresScale"`
	UnitWeightCalibratedAt *time.Time `gorm:"column:unit_weight_calibrated_at" json:"unitWeightCalibratedAt"`
	CreatedAt              time.Time  `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt              time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (ComponentMaster) TableName() string { return "component_masters" }
