package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/bintrack-backend/api/middleware"
	"github.com/angelmondragon/bintrack-backend/api/responses"
	"github.com/angelmondragon/bintrack-backend/api/validators"
	"github.com/angelmondragon/bintrack-backend/internal/bins"
	"github.com/angelmondragon/bintrack-backend/internal/scans"
	"github.com/angelmondragon/bintrack-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bintrack-backend/pkg/errors"
	"github.com/angelmondragon/bintrack-backend/pkg/logger"
)

const maxStatusFilters = 10

// RegisterBin adds an empty bin to the warehouse.
func RegisterBin(svc bins.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bin service unavailable"))
			return
		}

		var input bins.RegisterInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if input.StationID == "" {
			input.StationID = middleware.StationIDFromContext(r.Context())
		}

		bin, err := svc.Register(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, bin)
	}
}

// ListBins pages through bins filtered by status, map zone or location.
func ListBins(svc bins.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bin service unavailable"))
			return
		}

		page, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := bins.ListParams{Params: page}

		statuses, err := parseStatuses(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.Statuses = statuses

		if raw := strings.TrimSpace(r.URL.Query().Get("zone")); raw != "" {
			zone, err := enums.ParseBinZone(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid zone"))
				return
			}
			params.Zone = zone
		}
		params.Location = validators.SanitizeString(r.URL.Query().Get("location"), maxIDLength)

		resp, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resp)
	}
}

// BinZones summarises the warehouse map.
func BinZones(svc bins.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bin service unavailable"))
			return
		}
		zones, err := svc.Zones(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"zones": zones})
	}
}

func GetBin(svc bins.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bin service unavailable"))
			return
		}
		binID, err := pathParam(r, "binId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		detail, err := svc.Get(r.Context(), binID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

// SaveBinScan reconciles a scan of the bin. Component level failures are
// part of a successful response; the bin is still saved.
func SaveBinScan(svc scans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "scan service unavailable"))
			return
		}
		binID, err := pathParam(r, "binId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var input scans.SaveScanInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input.BinID = binID
		if input.StationID == "" {
			input.StationID = middleware.StationIDFromContext(r.Context())
		}

		result, err := svc.SaveScan(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// SetBinStatus applies a manual override such as Damaged or Missing.
func SetBinStatus(svc bins.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bin service unavailable"))
			return
		}
		binID, err := pathParam(r, "binId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var input bins.SetStatusInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input.BinID = binID

		bin, err := svc.SetStatus(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, bin)
	}
}

func AssignBins(svc bins.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bin service unavailable"))
			return
		}
		var input bins.AssignInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.AssignJTC(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func ReleaseBins(svc bins.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bin service unavailable"))
			return
		}
		var input bins.ReleaseInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Release(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func ReturnBins(svc bins.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bin service unavailable"))
			return
		}
		var input bins.ReturnInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Return(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// parseStatuses reads ?status=, comma separated or repeated.
func parseStatuses(r *http.Request) ([]enums.BinStatus, error) {
	raw, err := validators.ParseQueryList(r, "status", maxStatusFilters)
	if err != nil {
		return nil, err
	}
	out := make([]enums.BinStatus, 0, len(raw))
	for _, value := range raw {
		status, err := enums.ParseBinStatus(value)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").WithDetails(map[string]any{"status": value})
		}
		out = append(out, status)
	}
	return out, nil
}
