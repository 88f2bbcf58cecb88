package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WorkOrder is a JTC. Rows are loaded from the planning system and treated as read-only.
type WorkOrder struct {
	JTCID          string     `gorm:"column:jtc_id;type:text;primaryKey" json:"jtcId"`
	BarcodeID      string     `gorm:"column:barcode_id;type:text" json:"barcodeId"`
	OrderNumber    string     `gorm:"column:order_number;type:text;not null" json:"orderNumber"`
	RevisionID     string     `gorm:"column:revision_id;type:text;not null" json:"revisionId"`
	QuantityNeeded int        `gorm:"column:quantity_needed;not null" json:"quantityNeeded"`
	PartNumber     string     `gorm:"column:part_number;type:text" json:"partNumber"`
	PartName       string     `gorm:"column:part_name;type:text" json:"partName"`
	CONumber       string     `gorm:"column:co_number;type:text" json:"coNumber"`
	Remarks        string     `gorm:"column:remarks;type:text" json:"remarks"`
	DateIssue      *time.Time `gorm:"column:date_issue" json:"dateIssue"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (WorkOrder) TableName() string { return "work_orders" }

// BomLine is one (component, quantity per item) pair of a revision.
type BomLine struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	RevisionID      string    `gorm:"column:revision_id;type:text;not null;uniqueIndex:ux_bom_lines_revision_component" json:"revisionId"`
	ComponentID     string    `gorm:"column:component_id;type:text;not null;uniqueIndex:ux_bom_lines_revision_component" json:"componentId"`
	QuantityPerItem int       `gorm:"column:quantity_per_item;not null" json:"quantityPerItem"`
	LineNo          int       `gorm:"column:line_no;not null" json:"lineNo"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (BomLine) TableName() string { return "bom_lines" }

func (b *BomLine) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
