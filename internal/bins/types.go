package bins

import (
	"github.com/angelmondragon/bintrack-backend/internal/readiness"
	"github.com/angelmondragon/bintrack-backend/pkg/db/models"
	"github.com/angelmondragon/bintrack-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bintrack-backend/pkg/errors"
	"github.com/angelmondragon/bintrack-backend/pkg/pagination"
)

type RegisterInput struct {
	BinID      string `json:"binId" validate:"required,max=64,scanid"`
	Location   string `json:"location" validate:"max=64"`
	WorkcellID string `json:"workcellId" validate:"max=64"`
	StationID  string `json:"stationId" validate:"max=64"`
	Remark     string `json:"remark" validate:"max=512"`
}

type AssignInput struct {
	JTC             string   `json:"jtc" validate:"required"`
	BinIDs          []string `json:"binIds" validate:"required,min=1,dive,required,max=64,scanid"`
	ConfirmReassign bool     `json:"confirmReassign"`
	Copies          int      `json:"copies" validate:"gte=0,lte=20"`
}

type ReleaseInput struct {
	JTC    string   `json:"jtc" validate:"required"`
	BinIDs []string `json:"binIds" validate:"required,min=1,dive,required,max=64,scanid"`
	// WorkcellID overrides the workcell stored on each bin.
	WorkcellID string `json:"workcellId" validate:"max=64"`
	Copies     int    `json:"copies" validate:"gte=0,lte=20"`
}

type ReturnInput struct {
	BinIDs   []string `json:"binIds" validate:"required,min=1,dive,required,max=64,scanid"`
	Location string   `json:"location" validate:"max=64"`
}

type SetStatusInput struct {
	BinID  string          `json:"binId"`
	Status enums.BinStatus `json:"status" validate:"required"`
	Remark string          `json:"remark" validate:"max=512"`
}

// Outcome is the per-bin result of a batch operation. A refused bin carries
// the error code and the unmet condition; the rest of the batch still runs.
type Outcome struct {
	BinID   string          `json:"binId"`
	Done    bool            `json:"done"`
	Status  enums.BinStatus `json:"status,omitempty"`
	Code    pkgerrors.Code  `json:"code,omitempty"`
	Reason  string          `json:"reason,omitempty"`
	Details any             `json:"details,omitempty"`
}

type BatchResult struct {
	JTC      string    `json:"jtc,omitempty"`
	Outcomes []Outcome `json:"outcomes"`
}

// Succeeded counts the bins the operation applied to.
func (r BatchResult) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Done {
			n++
		}
	}
	return n
}

type ReleaseOutcome struct {
	Outcome
	Components []readiness.Coverage `json:"components,omitempty"`
}

type ReleaseResult struct {
	JTC      string           `json:"jtc"`
	Outcomes []ReleaseOutcome `json:"outcomes"`
}

// Detail is a bin with its current component records.
type Detail struct {
	Bin        models.Bin            `json:"bin"`
	Components []models.BinComponent `json:"components"`
}

type ListParams struct {
	Statuses []enums.BinStatus
	Zone     enums.BinZone
	Location string
	pagination.Params
}

type ListResult struct {
	Items  []models.Bin `json:"items"`
	Cursor string       `json:"cursor"`
}

// ZoneSummary is one area of the warehouse map.
type ZoneSummary struct {
	Zone     enums.BinZone     `json:"zone"`
	Count    int64             `json:"count"`
	Statuses []enums.BinStatus `json:"statuses"`
}

func outcomeFromError(binID string, status enums.BinStatus, err error) Outcome {
	out := Outcome{BinID: binID, Status: status, Code: pkgerrors.CodeInternal, Reason: err.Error()}
	if typed := pkgerrors.As(err); typed != nil {
		out.Code = typed.Code()
		out.Reason = typed.Message()
		out.Details = typed.Details()
	}
	return out
}

func notFoundOutcome(binID string) Outcome {
	return Outcome{
		BinID:  binID,
		Code:   pkgerrors.CodeNotFound,
		Reason: "bin " + binID + " not found",
	}
}
