package controllers

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/angelmondragon/bintrack-backend/api/responses"
	"github.com/angelmondragon/bintrack-backend/api/validators"
	"github.com/angelmondragon/bintrack-backend/internal/bins"
	"github.com/angelmondragon/bintrack-backend/internal/checklist"
	"github.com/angelmondragon/bintrack-backend/internal/workorders"
	"github.com/angelmondragon/bintrack-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bintrack-backend/pkg/errors"
	"github.com/angelmondragon/bintrack-backend/pkg/logger"
)

const (
	maxSessionBins   = 200
	maxBOMQuantity   = 1_000_000
	xlsxContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	checklistFormatXLSX = "xlsx"
)

func GetWorkOrder(svc workorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "work order service unavailable"))
			return
		}
		jtc, err := pathParam(r, "jtc")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		wo, err := svc.GetWorkOrder(r.Context(), jtc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, wo)
	}
}

// GetWorkOrderBOM resolves the BOM of the work order's revision for its quantity.
func GetWorkOrderBOM(svc workorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "work order service unavailable"))
			return
		}
		jtc, err := pathParam(r, "jtc")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		bom, err := svc.ResolveForWorkOrder(r.Context(), jtc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, bom)
	}
}

// ResolveBOM multiplies a revision's BOM by ?quantity= (default 1).
func ResolveBOM(svc workorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "work order service unavailable"))
			return
		}
		revisionID, err := pathParam(r, "revisionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		quantity, err := validators.ParseQueryInt(r, "quantity", 1, 0, maxBOMQuantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		lines, err := svc.Resolve(r.Context(), revisionID, quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"revisionId": revisionID,
			"quantity":   quantity,
			"lines":      lines,
		})
	}
}

// ListWorkOrderBins lists the bins holding the work order, optionally in one status.
func ListWorkOrderBins(svc bins.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bin service unavailable"))
			return
		}
		jtc, err := pathParam(r, "jtc")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var status *enums.BinStatus
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			parsed, err := enums.ParseBinStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			status = &parsed
		}

		rows, err := svc.ListByJTC(r.Context(), jtc, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": rows})
	}
}

func CountWorkOrderBins(svc bins.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bin service unavailable"))
			return
		}
		jtc, err := pathParam(r, "jtc")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		count, err := svc.CountByJTC(r.Context(), jtc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"jtc": jtc, "count": count})
	}
}

// WorkOrderChecklist computes the live release checklist for the bins of the
// current session (?bins=) plus those already released. ?format=xlsx returns
// the printable workbook instead of JSON.
func WorkOrderChecklist(svc checklist.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checklist service unavailable"))
			return
		}
		jtc, err := pathParam(r, "jtc")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sessionBins, err := validators.ParseQueryList(r, "bins", maxSessionBins)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ForWorkOrder(r.Context(), jtc, sessionBins)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if !strings.EqualFold(strings.TrimSpace(r.URL.Query().Get("format")), checklistFormatXLSX) {
			responses.WriteSuccess(w, result)
			return
		}

		book, err := checklist.Workbook(*result)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render checklist"))
			return
		}
		defer book.Close()

		filename := fmt.Sprintf("checklist-%s.xlsx", result.JTC)
		if err := responses.WriteFile(w, xlsxContentType, filename, func(out io.Writer) error {
			return book.Write(out)
		}); err != nil && logg != nil {
			logg.Error(logg.WithJTC(r.Context(), result.JTC), "checklist.xlsx.write_failed", err)
		}
	}
}
