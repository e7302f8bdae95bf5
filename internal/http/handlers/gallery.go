package handlers

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"imagestudio/internal/settings"
	"imagestudio/internal/storage"
	"imagestudio/internal/studio"
)

const defaultPageSize = 20

type galleryEntryResponse struct {
	Path           string `json:"path"`
	Timestamp      string `json:"timestamp"`
	Kind           string `json:"kind"`
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	Model          string `json:"model"`
	Size           string `json:"size"`
	Service        string `json:"service"`
	AspectRatio    string `json:"aspect_ratio,omitempty"`
	Favorite       bool   `json:"favorite"`
}

type galleryResponse struct {
	Entries  []galleryEntryResponse `json:"entries"`
	Total    int                    `json:"total"`
	Page     int                    `json:"page"`
	PageSize int                    `json:"page_size"`
}

// GalleryList serves one page of the artifact gallery, newest first. The
// service filter, favorites toggle and page are persisted so tab
// re-activation restores the view; a `q` parameter additionally narrows by
// prompt substring.
func (a *App) GalleryList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := query.Get("service")
	if filter == "" {
		filter = a.Settings.GetString(settings.KeyGalleryFilter)
	}
	favoritesOnly := a.Settings.GetBool(settings.KeyGalleryFavorites)
	if raw := query.Get("favorites_only"); raw != "" {
		favoritesOnly = raw == "true" || raw == "1"
	}
	page := intParam(query.Get("page"), a.Settings.GetInt(settings.KeyGalleryPage))
	if page < 1 {
		page = 1
	}
	pageSize := intParam(query.Get("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = defaultPageSize
	}

	entries := a.Gallery.List(filter, favoritesOnly)
	if q := strings.TrimSpace(query.Get("q")); q != "" {
		entries = searchPrompts(entries, q)
	}

	total := len(entries)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	out := make([]galleryEntryResponse, 0, end-start)
	for _, entry := range entries[start:end] {
		out = append(out, galleryEntryResponse{
			Path:           entry.Path,
			Timestamp:      entry.Timestamp,
			Kind:           entry.Meta.Kind.String(),
			Prompt:         entry.Meta.Prompt,
			NegativePrompt: entry.Meta.NegativePrompt,
			Model:          entry.Meta.Model,
			Size:           entry.Meta.Size,
			Service:        entry.Meta.Service,
			AspectRatio:    entry.Meta.AspectRatio,
			Favorite:       entry.Favorite,
		})
	}

	a.Settings.Set(settings.KeyGalleryFilter, filter)
	a.Settings.Set(settings.KeyGalleryPage, page)
	a.Settings.Set(settings.KeyGalleryFavorites, favoritesOnly)
	if err := a.Settings.Save(); err != nil {
		a.Logger.Warn().Err(err).Msg("handlers: persist settings")
	}

	a.json(w, http.StatusOK, galleryResponse{Entries: out, Total: total, Page: page, PageSize: pageSize})
}

// ArtifactReveal opens the platform file manager on a stored artifact. Paths
// outside the artifact directory are rejected.
func (a *App) ArtifactReveal(w http.ResponseWriter, r *http.Request) {
	abs, ok := a.artifactPathFromBody(w, r)
	if !ok {
		return
	}
	if err := studio.RevealArtifact(abs); err != nil {
		a.error(w, http.StatusNotFound, "not_found", "artifact not found on disk")
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GalleryFavorite toggles the favorite flag on a stored artifact and returns
// the new state.
func (a *App) GalleryFavorite(w http.ResponseWriter, r *http.Request) {
	abs, ok := a.artifactPathFromBody(w, r)
	if !ok {
		return
	}
	favorite, err := a.Gallery.ToggleFavorite(abs)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("handlers: persist favorites")
		a.error(w, http.StatusInternalServerError, "internal", "failed to persist favorites")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"path": abs, "favorite": favorite})
}

// artifactPathFromBody decodes a {"path": ...} body and confines it to the
// artifact directory, writing the error response itself on failure.
func (a *App) artifactPathFromBody(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "path is required")
		return "", false
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid path")
		return "", false
	}
	dir, err := filepath.Abs(a.ArtifactsDir)
	if err != nil || filepath.Dir(abs) != dir {
		a.error(w, http.StatusBadRequest, "bad_request", "path is outside the artifact directory")
		return "", false
	}
	return abs, true
}

func intParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func searchPrompts(entries []storage.GalleryEntry, q string) []storage.GalleryEntry {
	q = strings.ToLower(q)
	out := entries[:0:0]
	for _, entry := range entries {
		if strings.Contains(strings.ToLower(entry.Meta.Prompt), q) {
			out = append(out, entry)
		}
	}
	return out
}
