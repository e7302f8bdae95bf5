package airforce

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"imagestudio/internal/infra"
)

const (
	userAgent           = "ImagePrompter/1.0"
	defaultTimeout      = 180 * time.Second
	maxErrorBodyExcerpt = 500
)

// Options configures the Airforce generation client.
type Options struct {
	APIKey         string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs streaming generation calls against the Airforce API.
// A Client owns at most one in-flight request; the owning service is
// responsible for serializing requests per page.
type Client struct {
	apiKey     string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	logger     *infra.Logger

	inFlight  atomic.Bool
	cancelled atomic.Bool
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.airforce/v1"
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		timeout:    timeout,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// Cancel requests cooperative cancellation of the in-flight generation. It is
// safe to call from a different goroutine than Generate; the read loop checks
// the flag once per line and once more before emitting success, so a cancelled
// request never yields a result even if bytes were already decoded.
func (c *Client) Cancel() {
	c.cancelled.Store(true)
}

// generationPayload is the wire request. The provider also accepts an
// image_urls field, reserved for image-to-video input; it is intentionally
// never sent. No model receives a seed field: Airforce has no controllable
// seed.
type generationPayload struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format"`
	SSE            bool   `json:"sse"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	Mode           string `json:"mode,omitempty"`
	AspectRatio    string `json:"aspectRatio,omitempty"`
}

func buildPayload(req GenerationRequest) generationPayload {
	payload := generationPayload{
		Model:          req.Model,
		Prompt:         req.PositivePrompt,
		N:              1,
		Size:           FixedSize,
		ResponseFormat: "b64_json",
		SSE:            true,
	}
	if req.Model == ModelGrokImagineVideo {
		payload.Mode = "normal"
		ratio := req.AspectRatio
		if !ValidAspectRatio(ratio) {
			ratio = DefaultAspectRatio
		}
		payload.AspectRatio = ratio
	} else if neg := strings.TrimSpace(req.NegativePrompt); neg != "" {
		payload.NegativePrompt = neg
	}
	return payload
}

// Generate issues one streaming generation request and blocks until the media
// payload arrives, the stream ends, the timeout elapses or Cancel is called.
// It is intended to run on its own goroutine.
func (c *Client) Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	if strings.TrimSpace(req.PositivePrompt) == "" {
		return nil, errors.New("airforce: prompt is required")
	}
	if !c.inFlight.CompareAndSwap(false, true) {
		return nil, ErrRequestInFlight
	}
	defer c.inFlight.Store(false)
	c.cancelled.Store(false)

	body, err := json.Marshal(buildPayload(req))
	if err != nil {
		return nil, fmt.Errorf("airforce: encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + "/images/generations"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("airforce: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if c.cancelled.Load() {
			return nil, ErrCancelled
		}
		return nil, fmt.Errorf("airforce: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyExcerpt))
		return nil, &ProviderError{Status: resp.StatusCode, Body: strings.TrimSpace(string(excerpt))}
	}

	b64, err := c.readStream(resp.Body)
	if err != nil {
		return nil, err
	}

	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("airforce: decode payload: %w", err)
	}

	// Cancellation wins over a payload that was already decoded.
	if c.cancelled.Load() {
		return nil, ErrCancelled
	}

	kind := KindForModel(req.Model)
	c.logger.Debug().
		Str("model", req.Model).
		Str("kind", kind.String()).
		Int("bytes", len(data)).
		Msg("airforce: generation finished")
	return &GenerationResult{Kind: kind, Bytes: data}, nil
}

// readStream drives the frame scanner until the first payload, checking the
// cancel flag between lines. When the stream drains without a payload the
// whole accumulated body is parsed once as a fallback.
func (c *Client) readStream(r io.Reader) (string, error) {
	scanner := newFrameScanner(r)
	for {
		if c.cancelled.Load() {
			return "", ErrCancelled
		}
		frame, more, err := scanner.next()
		if err != nil {
			if c.cancelled.Load() {
				return "", ErrCancelled
			}
			return "", fmt.Errorf("airforce: read stream: %w", err)
		}
		if !more {
			break
		}
		if frame == nil {
			continue
		}
		if b64 := frame.payload(); b64 != "" {
			return b64, nil
		}
	}
	if c.cancelled.Load() {
		return "", ErrCancelled
	}
	if b64 := scanner.fallback(); b64 != "" {
		return b64, nil
	}
	return "", ErrNoPayload
}
