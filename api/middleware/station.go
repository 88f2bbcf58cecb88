package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/bintrack-backend/pkg/logger"
)

const maxStationIDLength = 64

// Station reads the station header into the request context and log fields.
// Requests without one are allowed; the scale source then uses its default
// station.
func Station(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			stationID := strings.TrimSpace(r.Header.Get(StationIDHeader))
			if len(stationID) > maxStationIDLength {
				stationID = stationID[:maxStationIDLength]
			}
			if stationID == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := WithStationID(r.Context(), stationID)
			if logg != nil {
				ctx = logg.WithStationID(ctx, stationID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
