package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"imagestudio/internal/http/handlers"
	"imagestudio/internal/infra"
	"imagestudio/internal/middleware"
)

// NewRouter assembles the local studio API.
func NewRouter(app *handlers.App, logger infra.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.Recoverer,
		middleware.Logger(logger),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/models", app.Models)
	r.Get("/v1/cooldown", app.CooldownStatus)

	r.Route("/v1/generations", func(r chi.Router) {
		r.Post("/", app.GenerationsCreate)
		r.Get("/{job_id}", app.GenerationStatus)
		r.Post("/{job_id}/cancel", app.GenerationCancel)
	})

	r.Get("/v1/gallery", app.GalleryList)
	r.Post("/v1/gallery/favorite", app.GalleryFavorite)
	r.Post("/v1/artifacts/reveal", app.ArtifactReveal)

	r.Get("/v1/settings", app.SettingsGet)
	r.Put("/v1/settings", app.SettingsPut)

	return r
}
