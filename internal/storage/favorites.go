package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

const favoritesFile = "favorites.json"

// Favorites persists the set of favorited artifacts as a JSON list of
// filenames stored inside the artifact directory itself, so the gallery and
// its favorites travel together when the directory is copied. Entries are
// keyed by base name; a stale entry for a deleted file is harmless.
type Favorites struct {
	mu   sync.Mutex
	path string
	set  map[string]struct{}
}

// NewFavorites loads the favorites file from dir, tolerating a missing or
// corrupt file by starting empty.
func NewFavorites(dir string) *Favorites {
	f := &Favorites{
		path: filepath.Join(dir, favoritesFile),
		set:  make(map[string]struct{}),
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return f
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return f
	}
	for _, name := range names {
		f.set[name] = struct{}{}
	}
	return f
}

// Toggle flips the favorite state of the artifact at path and persists the
// set, returning the new state.
func (f *Favorites) Toggle(path string) (bool, error) {
	name := filepath.Base(path)

	f.mu.Lock()
	defer f.mu.Unlock()
	_, fav := f.set[name]
	if fav {
		delete(f.set, name)
	} else {
		f.set[name] = struct{}{}
	}
	if err := f.save(); err != nil {
		return !fav, err
	}
	return !fav, nil
}

// IsFavorite reports whether the artifact at path is favorited.
func (f *Favorites) IsFavorite(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.set[filepath.Base(path)]
	return ok
}

func (f *Favorites) save() error {
	names := make([]string, 0, len(f.set))
	for name := range f.set {
		names = append(names, name)
	}
	sort.Strings(names)
	data, err := json.Marshal(names)
	if err != nil {
		return fmt.Errorf("storage: encode favorites: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0o644); err != nil {
		return fmt.Errorf("storage: write favorites: %w", err)
	}
	return nil
}
