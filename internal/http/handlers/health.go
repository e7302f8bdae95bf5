package handlers

import (
	"net/http"
)

// Health reports liveness of the local studio API. The service field lets the
// UI confirm it reached this process and not something else on the port.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "imagestudio",
	})
}
