// Package settings persists the handful of UI preferences the studio keeps
// between runs. It is a plain key-value surface (load by key with a default,
// set by key, save) so no caller needs to know the on-disk format.
package settings

import (
	"fmt"
	"os"
	"sync"

	"github.com/spf13/viper"
)

// Keys the studio reads and writes. Anything else in the file is preserved
// but ignored.
const (
	KeyModel            = "airforce.model"
	KeyAspectRatio      = "airforce.aspect_ratio"
	KeyLastArtifact     = "airforce.last_artifact"
	KeyGalleryFilter    = "gallery.filter"
	KeyGalleryPage      = "gallery.page"
	KeyGalleryFavorites = "gallery.favorites_only"
)

// Store wraps a viper instance bound to one JSON settings file.
type Store struct {
	mu   sync.Mutex
	v    *viper.Viper
	path string
}

// Defaults applied when a key has never been written.
var defaults = map[string]any{
	KeyModel:            "grok-imagine",
	KeyAspectRatio:      "1:1",
	KeyLastArtifact:     "",
	KeyGalleryFilter:    "All",
	KeyGalleryPage:      1,
	KeyGalleryFavorites: false,
}

// NewStore opens the settings file at path, tolerating a missing or unreadable
// file by falling back to defaults, the same way the GUI's previous config
// loader did.
func NewStore(path string) *Store {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	if _, err := os.Stat(path); err == nil {
		_ = v.ReadInConfig()
	}
	return &Store{v: v, path: path}
}

// GetString returns the string value for key, or its default.
func (s *Store) GetString(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v.GetString(key)
}

// GetInt returns the integer value for key, or its default.
func (s *Store) GetInt(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v.GetInt(key)
}

// GetBool returns the boolean value for key, or its default.
func (s *Store) GetBool(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v.GetBool(key)
}

// Set records a value in memory; it is not durable until Save.
func (s *Store) Set(key string, value any) {
	s.mu.Lock()
	s.v.Set(key, value)
	s.mu.Unlock()
}

// Save writes the current values back to the settings file.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("settings: write %s: %w", s.path, err)
	}
	return nil
}

// Snapshot returns the studio's known keys and their current values.
func (s *Store) Snapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(defaults))
	for key := range defaults {
		out[key] = s.v.Get(key)
	}
	return out
}

// Known reports whether key is one the studio persists.
func Known(key string) bool {
	_, ok := defaults[key]
	return ok
}
