package airforce

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// newCaptureClient returns a client whose transport records the request body
// and answers with the given status and body.
func newCaptureClient(t *testing.T, status int, body string, captured *[]byte) *Client {
	t.Helper()
	transport := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		data, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
		*captured = data
		return &http.Response{
			StatusCode: status,
			Header:     http.Header{"Content-Type": []string{"text/event-stream"}},
			Body:       io.NopCloser(strings.NewReader(body)),
		}, nil
	})
	client, err := NewClient(Options{
		APIKey:     "test-key",
		HTTPClient: &http.Client{Transport: transport},
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestGenerateVideoPayloadShape(t *testing.T) {
	var captured []byte
	b64 := base64.StdEncoding.EncodeToString([]byte("fake-video"))
	body := fmt.Sprintf("data: {\"data\":[{\"b64_json\":%q}]}\n\ndata: [DONE]\n", b64)
	client := newCaptureClient(t, http.StatusOK, body, &captured)

	res, err := client.Generate(context.Background(), GenerationRequest{
		PositivePrompt: "a rocket launch",
		NegativePrompt: "blurry",
		Model:          ModelGrokImagineVideo,
		AspectRatio:    "2:3",
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Kind.String() != "video" {
		t.Fatalf("kind = %s, want video", res.Kind)
	}
	if string(res.Bytes) != "fake-video" {
		t.Fatalf("bytes = %q, want fake-video", res.Bytes)
	}

	var payload map[string]any
	if err := json.Unmarshal(captured, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	want := map[string]any{
		"model":           ModelGrokImagineVideo,
		"prompt":          "a rocket launch",
		"n":               float64(1),
		"size":            "1024x1024",
		"response_format": "b64_json",
		"sse":             true,
		"mode":            "normal",
		"aspectRatio":     "2:3",
	}
	for key, value := range want {
		if payload[key] != value {
			t.Fatalf("payload[%s] = %v, want %v", key, payload[key], value)
		}
	}
	// The video model never receives a negative prompt and no model ever
	// receives a seed or the reserved image_urls hook.
	for _, absent := range []string{"negative_prompt", "seed", "image_urls"} {
		if _, ok := payload[absent]; ok {
			t.Fatalf("payload should not contain %s", absent)
		}
	}
}

func TestGenerateImagePayloadShape(t *testing.T) {
	var captured []byte
	b64 := base64.StdEncoding.EncodeToString([]byte("fake-image"))
	client := newCaptureClient(t, http.StatusOK, "data: {\"b64_json\":\""+b64+"\"}\n", &captured)

	res, err := client.Generate(context.Background(), GenerationRequest{
		PositivePrompt: "a calm lake",
		NegativePrompt: "people",
		Model:          ModelGrokImagine,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Kind.String() != "image" {
		t.Fatalf("kind = %s, want image", res.Kind)
	}

	var payload map[string]any
	if err := json.Unmarshal(captured, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["negative_prompt"] != "people" {
		t.Fatalf("negative_prompt = %v, want people", payload["negative_prompt"])
	}
	for _, absent := range []string{"mode", "aspectRatio", "seed"} {
		if _, ok := payload[absent]; ok {
			t.Fatalf("payload should not contain %s", absent)
		}
	}
}

func TestGenerateOmitsEmptyNegativePrompt(t *testing.T) {
	var captured []byte
	b64 := base64.StdEncoding.EncodeToString([]byte("x"))
	client := newCaptureClient(t, http.StatusOK, "data: {\"b64_json\":\""+b64+"\"}\n", &captured)

	if _, err := client.Generate(context.Background(), GenerationRequest{
		PositivePrompt: "anything",
		Model:          ModelImagen4,
	}); err != nil {
		t.Fatalf("generate: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(captured, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if _, ok := payload["negative_prompt"]; ok {
		t.Fatalf("empty negative_prompt should be omitted")
	}
}

func TestGenerateWholeBodyFallback(t *testing.T) {
	var captured []byte
	b64 := base64.StdEncoding.EncodeToString([]byte("plain-json"))
	body := "{\n  \"data\": [{\"b64_json\": \"" + b64 + "\"}]\n}\n"
	client := newCaptureClient(t, http.StatusOK, body, &captured)

	res, err := client.Generate(context.Background(), GenerationRequest{
		PositivePrompt: "fallback",
		Model:          ModelGrokImagine,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if string(res.Bytes) != "plain-json" {
		t.Fatalf("bytes = %q, want plain-json", res.Bytes)
	}
}

func TestGenerateNoPayload(t *testing.T) {
	var captured []byte
	body := "data: {\"status\":\"working\"}\nthis body is not json\n"
	client := newCaptureClient(t, http.StatusOK, body, &captured)

	_, err := client.Generate(context.Background(), GenerationRequest{
		PositivePrompt: "nothing comes back",
		Model:          ModelGrokImagine,
	})
	if !errors.Is(err, ErrNoPayload) {
		t.Fatalf("err = %v, want ErrNoPayload", err)
	}
}

func TestGenerateProviderError(t *testing.T) {
	var captured []byte
	client := newCaptureClient(t, http.StatusServiceUnavailable, `{"error":"overloaded"}`, &captured)

	_, err := client.Generate(context.Background(), GenerationRequest{
		PositivePrompt: "anything",
		Model:          ModelGrokImagine,
	})
	var providerErr *ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("err = %v, want *ProviderError", err)
	}
	if providerErr.Status != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", providerErr.Status)
	}
	if !strings.Contains(providerErr.Body, "overloaded") {
		t.Fatalf("body excerpt = %q, want to contain overloaded", providerErr.Body)
	}
}

func TestGenerateMissingAPIKey(t *testing.T) {
	client, err := NewClient(Options{})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.Generate(context.Background(), GenerationRequest{
		PositivePrompt: "anything",
		Model:          ModelGrokImagine,
	})
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("err = %v, want ErrMissingAPIKey", err)
	}
}

// slowStreamServer keeps a generation stream open with keepalives until the
// request context is cancelled or the test finishes.
func slowStreamServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, ok := w.(http.Flusher)
		if !ok {
			t.Errorf("response writer is not a flusher")
			return
		}
		for i := 0; i < 500; i++ {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(10 * time.Millisecond):
			}
			fmt.Fprint(w, "data: : keepalive\n\n")
			flusher.Flush()
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerateCancelMidStream(t *testing.T) {
	srv := slowStreamServer(t)
	client, err := NewClient(Options{APIKey: "test-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := client.Generate(context.Background(), GenerationRequest{
			PositivePrompt: "never finishes",
			Model:          ModelGrokImagine,
		})
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	client.Cancel()

	select {
	case err := <-done:
		if !errors.Is(err, ErrCancelled) {
			t.Fatalf("err = %v, want ErrCancelled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("generate did not observe cancellation")
	}
}

func TestGenerateSecondRequestWhileInFlight(t *testing.T) {
	srv := slowStreamServer(t)
	client, err := NewClient(Options{APIKey: "test-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := client.Generate(context.Background(), GenerationRequest{
			PositivePrompt: "first",
			Model:          ModelGrokImagine,
		})
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	if _, err := client.Generate(context.Background(), GenerationRequest{
		PositivePrompt: "second",
		Model:          ModelGrokImagine,
	}); !errors.Is(err, ErrRequestInFlight) {
		t.Fatalf("err = %v, want ErrRequestInFlight", err)
	}

	client.Cancel()
	<-done
}
