// Package handlers exposes the studio core to the external UI over a small
// local HTTP API. The core never depends on any UI type; this package is the
// whole boundary.
package handlers

import (
	"encoding/json"
	"net/http"

	"imagestudio/internal/infra"
	"imagestudio/internal/settings"
	"imagestudio/internal/storage"
	"imagestudio/internal/studio"
)

// App bundles the collaborators the handlers need.
type App struct {
	Logger   infra.Logger
	Studio   *studio.Service
	Gallery  *storage.GalleryIndex
	Settings *settings.Store
	// ArtifactsDir confines reveal requests to the store's own directory.
	ArtifactsDir string
}

func NewApp(logger infra.Logger, svc *studio.Service, gallery *storage.GalleryIndex, st *settings.Store, artifactsDir string) *App {
	return &App{
		Logger:       logger,
		Studio:       svc,
		Gallery:      gallery,
		Settings:     st,
		ArtifactsDir: artifactsDir,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]string{"error": code, "message": message})
}
