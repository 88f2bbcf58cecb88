package controllers

import (
	"net/http"

	"github.com/angelmondragon/bintrack-backend/api/middleware"
	"github.com/angelmondragon/bintrack-backend/api/responses"
	"github.com/angelmondragon/bintrack-backend/api/validators"
	"github.com/angelmondragon/bintrack-backend/internal/scale"
	pkgerrors "github.com/angelmondragon/bintrack-backend/pkg/errors"
	"github.com/angelmondragon/bintrack-backend/pkg/logger"
)

// stationParam prefers ?station= over the station header.
func stationParam(r *http.Request) string {
	if station := validators.SanitizeString(r.URL.Query().Get("station"), maxIDLength); station != "" {
		return station
	}
	return middleware.StationIDFromContext(r.Context())
}

// CurrentScaleReading returns the station's latest reading, polling the
// bridge when nothing fresh is cached.
func CurrentScaleReading(svc scale.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "scale service unavailable"))
			return
		}
		reading, err := svc.Current(r.Context(), stationParam(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, reading)
	}
}

func RecentScaleReadings(svc scale.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "scale service unavailable"))
			return
		}
		rows, err := svc.Recent(r.Context(), stationParam(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": rows})
	}
}

// IngestScaleReading accepts a reading pushed by a station bridge.
func IngestScaleReading(svc scale.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "scale service unavailable"))
			return
		}
		var input scale.IngestInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		reading, err := svc.Ingest(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, reading)
	}
}
