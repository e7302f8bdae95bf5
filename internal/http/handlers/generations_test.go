package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"imagestudio/internal/http/handlers"
	"imagestudio/internal/http/httpapi"
	"imagestudio/internal/mediameta"
	"imagestudio/internal/providers/airforce"
	"imagestudio/internal/settings"
	"imagestudio/internal/storage"
	"imagestudio/internal/studio"
)

type stubGenerator struct {
	result *airforce.GenerationResult
	err    error
}

func (s *stubGenerator) Generate(ctx context.Context, req airforce.GenerationRequest) (*airforce.GenerationResult, error) {
	return s.result, s.err
}

func (s *stubGenerator) Cancel() {}

func stubJPEG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4)), nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// newTestAPI wires the full router around a stubbed provider.
func newTestAPI(t *testing.T, gen studio.Generator) (http.Handler, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewArtifactStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	prefs := settings.NewStore(filepath.Join(dir, "settings.json"))
	svc, err := studio.New(studio.Options{
		Store:        store,
		Settings:     prefs,
		Cooldown:     airforce.NewCooldown(),
		NewGenerator: func() (studio.Generator, error) { return gen, nil },
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	logger := zerolog.New(io.Discard)
	app := handlers.NewApp(logger, svc, storage.NewGalleryIndex(dir), prefs, dir)
	return httpapi.NewRouter(app, logger), dir
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, decoded
}

func TestGenerateThenPollThenGallery(t *testing.T) {
	gen := &stubGenerator{result: &airforce.GenerationResult{Kind: mediameta.KindImage, Bytes: stubJPEG(t)}}
	handler, _ := newTestAPI(t, gen)

	rec, created := doJSON(t, handler, http.MethodPost, "/v1/generations", map[string]any{
		"prompt": "city at night",
		"model":  "grok-imagine",
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	jobID, _ := created["job_id"].(string)
	if jobID == "" {
		t.Fatalf("missing job_id in %v", created)
	}

	var job map[string]any
	deadline := time.Now().Add(5 * time.Second)
	for {
		rec, job = doJSON(t, handler, http.MethodGet, "/v1/generations/"+jobID, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("poll status = %d", rec.Code)
		}
		if job["status"] != "running" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job never finished")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if job["status"] != "done" {
		t.Fatalf("job = %v, want done", job)
	}

	rec, gallery := doJSON(t, handler, http.MethodGet, "/v1/gallery?service=airforce", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("gallery status = %d", rec.Code)
	}
	entries, _ := gallery["entries"].([]any)
	if len(entries) != 1 {
		t.Fatalf("gallery entries = %d, want 1", len(entries))
	}
	entry := entries[0].(map[string]any)
	if entry["prompt"] != "city at night" || entry["service"] != "Airforce" {
		t.Fatalf("gallery entry = %v", entry)
	}

	rec, cooldown := doJSON(t, handler, http.MethodGet, "/v1/cooldown", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cooldown status = %d", rec.Code)
	}
	if cooldown["remaining"] != float64(airforce.CooldownSeconds) {
		t.Fatalf("remaining = %v, want %d", cooldown["remaining"], airforce.CooldownSeconds)
	}
}

func TestGenerateRejectsEmptyPrompt(t *testing.T) {
	handler, _ := newTestAPI(t, &stubGenerator{err: airforce.ErrNoPayload})

	rec, body := doJSON(t, handler, http.MethodPost, "/v1/generations", map[string]any{"prompt": "  "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body %v", rec.Code, body)
	}
}

func TestHealthIdentifiesService(t *testing.T) {
	handler, _ := newTestAPI(t, &stubGenerator{})

	rec, body := doJSON(t, handler, http.MethodGet, "/v1/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body["status"] != "ok" || body["service"] != "imagestudio" {
		t.Fatalf("health body = %v", body)
	}
}

func TestStatusUnknownJob(t *testing.T) {
	handler, _ := newTestAPI(t, &stubGenerator{})

	rec, _ := doJSON(t, handler, http.MethodGet, "/v1/generations/no-such-job", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestSettingsPutRejectsUnknownKey(t *testing.T) {
	handler, _ := newTestAPI(t, &stubGenerator{})

	rec, _ := doJSON(t, handler, http.MethodPut, "/v1/settings", map[string]any{"airforce.seed": 42})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	rec, body := doJSON(t, handler, http.MethodPut, "/v1/settings", map[string]any{"airforce.model": "imagen-4"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body["airforce.model"] != "imagen-4" {
		t.Fatalf("snapshot = %v", body)
	}
}

func TestGalleryFavoriteToggleAndFilter(t *testing.T) {
	gen := &stubGenerator{result: &airforce.GenerationResult{Kind: mediameta.KindImage, Bytes: stubJPEG(t)}}
	handler, _ := newTestAPI(t, gen)

	rec, created := doJSON(t, handler, http.MethodPost, "/v1/generations", map[string]any{
		"prompt": "golden hour",
		"model":  "grok-imagine",
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("create status = %d", rec.Code)
	}
	jobID := created["job_id"].(string)

	var job map[string]any
	deadline := time.Now().Add(5 * time.Second)
	for {
		_, job = doJSON(t, handler, http.MethodGet, "/v1/generations/"+jobID, nil)
		if job["status"] != "running" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job never finished")
		}
		time.Sleep(10 * time.Millisecond)
	}
	path, _ := job["path"].(string)
	if path == "" {
		t.Fatalf("job carries no path: %v", job)
	}

	// Nothing favorited yet.
	rec, gallery := doJSON(t, handler, http.MethodGet, "/v1/gallery?favorites_only=true", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("gallery status = %d", rec.Code)
	}
	if entries, _ := gallery["entries"].([]any); len(entries) != 0 {
		t.Fatalf("favorites before toggle = %d, want 0", len(entries))
	}

	rec, toggled := doJSON(t, handler, http.MethodPost, "/v1/gallery/favorite", map[string]any{"path": path})
	if rec.Code != http.StatusOK {
		t.Fatalf("favorite status = %d", rec.Code)
	}
	if toggled["favorite"] != true {
		t.Fatalf("toggle response = %v, want favorite true", toggled)
	}

	rec, gallery = doJSON(t, handler, http.MethodGet, "/v1/gallery?favorites_only=true", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("gallery status = %d", rec.Code)
	}
	entries, _ := gallery["entries"].([]any)
	if len(entries) != 1 {
		t.Fatalf("favorites after toggle = %d, want 1", len(entries))
	}
	entry := entries[0].(map[string]any)
	if entry["favorite"] != true || entry["prompt"] != "golden hour" {
		t.Fatalf("favorite entry = %v", entry)
	}
}

func TestGalleryFavoriteRejectsPathOutsideArtifactDir(t *testing.T) {
	handler, _ := newTestAPI(t, &stubGenerator{})

	rec, _ := doJSON(t, handler, http.MethodPost, "/v1/gallery/favorite", map[string]any{"path": "/etc/passwd"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestRevealRejectsPathOutsideArtifactDir(t *testing.T) {
	handler, _ := newTestAPI(t, &stubGenerator{})

	rec, _ := doJSON(t, handler, http.MethodPost, "/v1/artifacts/reveal", map[string]any{"path": "/etc/passwd"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
