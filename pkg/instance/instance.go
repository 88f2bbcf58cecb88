package instance

import (
	"os"

	"github.com/angelmondragon/bintrack-backend/pkg/env"
)

// ID identifies this process in logs and lock owner tokens. It prefers
// BINTRACK_INSTANCE_ID, then the host name, and falls back to "<kind>-0".
func ID(kind string) string {
	if id := env.Get("BINTRACK_INSTANCE_ID", ""); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return kind + "@" + host
	}
	return kind + "-0"
}
