package handlers

import (
	"encoding/json"
	"net/http"

	"imagestudio/internal/settings"
)

// SettingsGet returns the persisted UI preferences.
func (a *App) SettingsGet(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, a.Settings.Snapshot())
}

// SettingsPut updates one or more persisted preferences. Unknown keys are
// rejected so typos do not silently grow the settings file.
func (a *App) SettingsPut(w http.ResponseWriter, r *http.Request) {
	var values map[string]any
	if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	for key := range values {
		if !settings.Known(key) {
			a.error(w, http.StatusBadRequest, "bad_request", "unknown settings key "+key)
			return
		}
	}
	for key, value := range values {
		a.Settings.Set(key, value)
	}
	if err := a.Settings.Save(); err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to persist settings")
		return
	}
	a.json(w, http.StatusOK, a.Settings.Snapshot())
}
