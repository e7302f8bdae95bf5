package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"imagestudio/internal/providers/airforce"
	"imagestudio/internal/settings"
	"imagestudio/internal/studio"
)

type generateRequest struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt"`
	Model          string `json:"model"`
	AspectRatio    string `json:"aspect_ratio"`
}

type jobResponse struct {
	JobID      string `json:"job_id"`
	Model      string `json:"model,omitempty"`
	Status     string `json:"status"`
	Path       string `json:"path,omitempty"`
	Error      string `json:"error,omitempty"`
	ErrorClass string `json:"error_class,omitempty"`
}

// GenerationsCreate starts one generation job and returns its ID immediately;
// the UI polls GenerationStatus for the outcome. The chosen model and aspect
// ratio are persisted so the next session starts where the user left off.
func (a *App) GenerationsCreate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.Model == "" {
		req.Model = a.Settings.GetString(settings.KeyModel)
	}
	if req.Model == airforce.ModelGrokImagineVideo && req.AspectRatio == "" {
		req.AspectRatio = a.Settings.GetString(settings.KeyAspectRatio)
	}

	jobID, err := a.Studio.StartGeneration(airforce.GenerationRequest{
		PositivePrompt: req.Prompt,
		NegativePrompt: req.NegativePrompt,
		Model:          req.Model,
		AspectRatio:    req.AspectRatio,
	})
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	a.Settings.Set(settings.KeyModel, req.Model)
	if req.Model == airforce.ModelGrokImagineVideo {
		a.Settings.Set(settings.KeyAspectRatio, req.AspectRatio)
	}
	if err := a.Settings.Save(); err != nil {
		a.Logger.Warn().Err(err).Msg("handlers: persist settings")
	}

	a.json(w, http.StatusAccepted, jobResponse{JobID: jobID, Model: req.Model, Status: string(studio.StatusRunning)})
}

// GenerationStatus reports the current state of one job.
func (a *App) GenerationStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, ok := a.Studio.Job(jobID)
	if !ok {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	a.json(w, http.StatusOK, jobResponse{
		JobID:      job.ID,
		Model:      job.Model,
		Status:     string(job.Status),
		Path:       job.Path,
		Error:      job.Error,
		ErrorClass: job.ErrorClass,
	})
}

// GenerationCancel requests cooperative cancellation of a running job.
func (a *App) GenerationCancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if err := a.Studio.Cancel(jobID); err != nil {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	a.json(w, http.StatusAccepted, map[string]string{"job_id": jobID, "status": "cancelling"})
}

// CooldownStatus returns the seconds remaining in the shared provider
// cooldown; the UI renders "Generate (N)" while this is non-zero. It is
// informational only and never blocks a generation.
func (a *App) CooldownStatus(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]int{"remaining": a.Studio.Cooldown().Remaining()})
}

// Models lists the selectable models and aspect ratios so the UI dropdowns
// stay in sync with what the core validates.
func (a *App) Models(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{
		"models":        airforce.Models(),
		"aspect_ratios": airforce.AspectRatios(),
		"size":          airforce.FixedSize,
	})
}
