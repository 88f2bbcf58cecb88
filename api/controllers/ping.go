package controllers

import (
	"net/http"

	"github.com/angelmondragon/bintrack-backend/api/middleware"
	"github.com/angelmondragon/bintrack-backend/api/responses"
)

func Ping() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]string{"status": "ok"}
		if station := middleware.StationIDFromContext(r.Context()); station != "" {
			payload["station_id"] = station
		}
		responses.WriteSuccess(w, payload)
	}
}
