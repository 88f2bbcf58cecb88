package payloads

import (
	"time"

	"github.com/angelmondragon/bintrack-backend/pkg/enums"
)

// ComponentOutcome summarises one component line after a scan.
type ComponentOutcome struct {
	ComponentID      string                 `json:"componentId"`
	ActualQuantity   *int                   `json:"actualQuantity,omitempty"`
	ExpectedQuantity int                    `json:"expectedQuantity"`
	DiscrepancyType  *enums.DiscrepancyType `json:"discrepancyType,omitempty"`
	Difference       *int                   `json:"difference,omitempty"`
}

// BinScannedEvent is emitted after every committed scan.
type BinScannedEvent struct {
	BinID               string                    `json:"binId"`
	JTC                 *string                   `json:"jtc,omitempty"`
	PreviousStatus      enums.BinStatus           `json:"previousStatus"`
	Status              enums.BinStatus           `json:"status"`
	QuantityCheckStatus enums.QuantityCheckStatus `json:"quantityCheckStatus"`
	Components          []ComponentOutcome        `json:"components"`
	FailedComponents    []string                  `json:"failedComponents,omitempty"`
	ScannedAt           time.Time                 `json:"scannedAt"`
}

// BinStatusChangedEvent records a manual override such as Damaged or Missing.
type BinStatusChangedEvent struct {
	BinID  string          `json:"binId"`
	From   enums.BinStatus `json:"from"`
	To     enums.BinStatus `json:"to"`
	Remark string          `json:"remark,omitempty"`
}

// BinAssignedEvent links a bin to a work order.
type BinAssignedEvent struct {
	BinID       string  `json:"binId"`
	JTC         string  `json:"jtc"`
	PreviousJTC *string `json:"previousJtc,omitempty"`
}

// BinReleasedEvent is emitted when a bin leaves the warehouse for a workcell.
type BinReleasedEvent struct {
	BinID      string    `json:"binId"`
	JTC        string    `json:"jtc"`
	WorkcellID string    `json:"workcellId"`
	ReleasedAt time.Time `json:"releasedAt"`
}

// BinReturnedEvent is emitted when a bin comes back to the warehouse.
type BinReturnedEvent struct {
	BinID       string    `json:"binId"`
	PreviousJTC *string   `json:"previousJtc,omitempty"`
	ReturnedAt  time.Time `json:"returnedAt"`
}

// ComponentCalibratedEvent carries the new master unit weight.
type ComponentCalibratedEvent struct {
	ComponentID   string    `json:"componentId"`
	PreviousGrams *float64  `json:"previousGrams,omitempty"`
	Grams         float64   `json:"grams"`
	CalibratedAt  time.Time `json:"calibratedAt"`
}

// LabelRequestedEvent asks the label worker to queue a print job.
type LabelRequestedEvent struct {
	BinID       string          `json:"binId"`
	JTC         string          `json:"jtc"`
	Kind        enums.LabelKind `json:"kind"`
	Copies      int             `json:"copies"`
	RequestedAt time.Time       `json:"requestedAt"`
}
