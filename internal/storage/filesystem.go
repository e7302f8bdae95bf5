package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"imagestudio/internal/mediameta"
)

// ArtifactStore persists generated media onto the local filesystem with the
// provenance record embedded in the file itself. It writes exactly one file
// per artifact, never a sidecar.
type ArtifactStore struct {
	dir string
	now func() time.Time

	// mu makes the collision check and the write one atomic unit relative
	// to other Save calls in this process.
	mu sync.Mutex
}

// NewArtifactStore initializes a store rooted at dir, creating it if needed.
func NewArtifactStore(dir string) (*ArtifactStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("storage: artifact directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure artifact directory: %w", err)
	}
	return &ArtifactStore{dir: dir, now: time.Now}, nil
}

// Dir returns the configured artifact directory.
func (s *ArtifactStore) Dir() string {
	if s == nil {
		return ""
	}
	return s.dir
}

// Save embeds meta into data and writes the result under a timestamped name,
// returning the final path. Names collide within one clock second; the
// deterministic _1, _2, ... suffix policy keeps tests able to assert exact
// names given a fixed clock.
func (s *ArtifactStore) Save(ctx context.Context, data []byte, kind mediameta.Kind, meta mediameta.ArtifactMetadata) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stamp := s.now().Format("2006-01-02_15-04-05")
	path := filepath.Join(s.dir, stamp+kind.Ext())
	for n := 1; fileExists(path); n++ {
		path = filepath.Join(s.dir, fmt.Sprintf("%s_%d%s", stamp, n, kind.Ext()))
	}

	// Embedding falls back to the raw bytes on failure; metadata loss is
	// acceptable here, losing the artifact is not.
	embedded := mediameta.Embed(data, kind, meta)
	if err := os.WriteFile(path, embedded, 0o644); err != nil {
		return "", fmt.Errorf("storage: write artifact: %w", err)
	}
	return path, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
