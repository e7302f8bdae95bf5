// Package studio orchestrates one provider generation end to end: run the
// client on its own goroutine, persist the artifact with embedded provenance,
// restart the shared cooldown, and track the job so the UI can poll or cancel
// it.
package studio

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"imagestudio/internal/infra"
	"imagestudio/internal/mediameta"
	"imagestudio/internal/providers/airforce"
	"imagestudio/internal/settings"
	"imagestudio/internal/storage"
)

// Generator is the slice of the provider client the service drives. A fresh
// one is created per job because a client owns at most one in-flight request.
type Generator interface {
	Generate(ctx context.Context, req airforce.GenerationRequest) (*airforce.GenerationResult, error)
	Cancel()
}

// Status of a tracked job.
type Status string

const (
	StatusRunning   Status = "running"
	StatusDone      Status = "done"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// JobView is an immutable snapshot of a job for the HTTP surface.
type JobView struct {
	ID         string
	Model      string
	Status     Status
	Path       string
	Error      string
	ErrorClass string
}

type job struct {
	id    string
	model string
	gen   Generator

	status     Status
	path       string
	err        string
	errorClass string
}

// Options wires the service's collaborators.
type Options struct {
	Logger       *infra.Logger
	Store        *storage.ArtifactStore
	Settings     *settings.Store
	Cooldown     *airforce.Cooldown
	NewGenerator func() (Generator, error)
}

// Service owns the in-flight generation jobs for one provider key.
type Service struct {
	logger       *infra.Logger
	store        *storage.ArtifactStore
	settings     *settings.Store
	cooldown     *airforce.Cooldown
	newGenerator func() (Generator, error)

	mu   sync.Mutex
	jobs map[string]*job
}

// New constructs the orchestration service.
func New(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, errors.New("studio: artifact store is required")
	}
	if opts.Cooldown == nil {
		return nil, errors.New("studio: cooldown is required")
	}
	if opts.NewGenerator == nil {
		return nil, errors.New("studio: generator factory is required")
	}
	return &Service{
		logger:       opts.Logger,
		store:        opts.Store,
		settings:     opts.Settings,
		cooldown:     opts.Cooldown,
		newGenerator: opts.NewGenerator,
		jobs:         make(map[string]*job),
	}, nil
}

// Cooldown exposes the shared countdown for read-only observers.
func (s *Service) Cooldown() *airforce.Cooldown {
	return s.cooldown
}

// StartGeneration validates the request, registers a job and runs the
// generation on its own goroutine. It returns immediately with the job ID.
func (s *Service) StartGeneration(req airforce.GenerationRequest) (string, error) {
	if strings.TrimSpace(req.PositivePrompt) == "" {
		return "", errors.New("studio: positive prompt cannot be empty")
	}
	if req.Model == "" {
		req.Model = airforce.ModelGrokImagine
	}
	if !airforce.ValidModel(req.Model) {
		return "", errors.New("studio: unsupported model " + req.Model)
	}
	req.Size = airforce.FixedSize
	if req.Model == airforce.ModelGrokImagineVideo && !airforce.ValidAspectRatio(req.AspectRatio) {
		req.AspectRatio = airforce.DefaultAspectRatio
	}

	gen, err := s.newGenerator()
	if err != nil {
		return "", err
	}

	j := &job{
		id:     uuid.NewString(),
		model:  req.Model,
		gen:    gen,
		status: StatusRunning,
	}
	s.mu.Lock()
	s.jobs[j.id] = j
	s.mu.Unlock()

	go s.run(j, req)
	return j.id, nil
}

// Cancel requests cooperative cancellation of a running job.
func (s *Service) Cancel(jobID string) error {
	s.mu.Lock()
	j, ok := s.jobs[jobID]
	running := ok && j.status == StatusRunning
	s.mu.Unlock()
	if !ok {
		return errors.New("studio: unknown job " + jobID)
	}
	if running {
		j.gen.Cancel()
	}
	return nil
}

// Job returns a snapshot of the given job.
func (s *Service) Job(jobID string) (JobView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return JobView{}, false
	}
	return JobView{
		ID:         j.id,
		Model:      j.model,
		Status:     j.status,
		Path:       j.path,
		Error:      j.err,
		ErrorClass: j.errorClass,
	}, true
}

func (s *Service) run(j *job, req airforce.GenerationRequest) {
	res, err := j.gen.Generate(context.Background(), req)
	if err != nil {
		s.finishWithError(j, err)
		return
	}

	aspect := ""
	if res.Kind == mediameta.KindVideo {
		aspect = req.AspectRatio
	}
	meta := mediameta.ArtifactMetadata{
		Prompt:         req.PositivePrompt,
		NegativePrompt: req.NegativePrompt,
		Model:          req.Model,
		Size:           req.Size,
		Service:        airforce.ServiceName,
		AspectRatio:    aspect,
		Kind:           res.Kind,
	}
	path, err := s.store.Save(context.Background(), res.Bytes, res.Kind, meta)
	if err != nil {
		s.finishWithError(j, err)
		return
	}

	// The shared window restarts on successful completion; when two jobs
	// finish out of order the cooldown reflects whichever completed last.
	s.cooldown.Start()

	if s.settings != nil {
		s.settings.Set(settings.KeyLastArtifact, path)
		if err := s.settings.Save(); err != nil && s.logger != nil {
			s.logger.Warn().Err(err).Msg("studio: persist settings")
		}
	}

	s.mu.Lock()
	j.status = StatusDone
	j.path = path
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.Info().
			Str("job_id", j.id).
			Str("model", j.model).
			Str("path", path).
			Msg("studio: generation saved")
	}
}

func (s *Service) finishWithError(j *job, err error) {
	status := StatusFailed
	if errors.Is(err, airforce.ErrCancelled) {
		status = StatusCancelled
	}

	s.mu.Lock()
	j.status = status
	j.err = err.Error()
	j.errorClass = ErrorClass(err)
	s.mu.Unlock()

	if s.logger == nil {
		return
	}
	if status == StatusCancelled {
		// User-initiated, not a failure.
		s.logger.Info().Str("job_id", j.id).Msg("studio: generation cancelled")
		return
	}
	s.logger.Error().
		Str("job_id", j.id).
		Str("class", j.errorClass).
		Err(err).
		Msg("studio: generation failed")
}

// ErrorClass maps provider errors onto the taxonomy the UI distinguishes.
func ErrorClass(err error) string {
	var providerErr *airforce.ProviderError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, airforce.ErrCancelled):
		return "cancelled"
	case errors.Is(err, airforce.ErrMissingAPIKey):
		return "auth_missing"
	case errors.Is(err, airforce.ErrNoPayload):
		return "no_payload"
	case errors.As(err, &providerErr):
		return "provider"
	default:
		return "transport"
	}
}
