package controllers

import (
	"net/http"

	"github.com/angelmondragon/bintrack-backend/api/responses"
	"github.com/angelmondragon/bintrack-backend/api/validators"
	"github.com/angelmondragon/bintrack-backend/internal/components"
	pkgerrors "github.com/angelmondragon/bintrack-backend/pkg/errors"
	"github.com/angelmondragon/bintrack-backend/pkg/logger"
)

func ListComponents(svc components.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "component service unavailable"))
			return
		}
		items, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": items})
	}
}

// GetComponent returns the master record. With ?binId= it also returns what
// that bin last recorded for the component.
func GetComponent(svc components.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "component service unavailable"))
			return
		}
		componentID, err := pathParam(r, "componentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if binID := validators.SanitizeString(r.URL.Query().Get("binId"), maxIDLength); binID != "" {
			known, err := svc.LastKnown(r.Context(), binID, componentID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccess(w, known)
			return
		}

		master, err := svc.Get(r.Context(), componentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, master)
	}
}

// RecordComponentWeight stores a bulk weighing as the component's unit weight.
func RecordComponentWeight(svc components.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "component service unavailable"))
			return
		}
		componentID, err := pathParam(r, "componentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var input components.RecordWeightInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input.ComponentID = componentID

		result, err := svc.RecordWeight(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
