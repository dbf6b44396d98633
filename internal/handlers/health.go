package handlers

import (
	"net/http"
	"time"
)

// Health reports liveness. Kept dependency-free so it answers even when the
// store is down.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
