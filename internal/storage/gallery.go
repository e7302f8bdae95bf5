package storage

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"imagestudio/internal/mediameta"
)

// FilterAll is the sentinel service filter meaning "no filter".
const FilterAll = "All"

// GalleryEntry is one artifact as served to the gallery view. Entries are
// always derived from the directory; the index can be rebuilt from the
// artifact files alone.
type GalleryEntry struct {
	Path      string
	Meta      mediameta.ArtifactMetadata
	Timestamp string
	Favorite  bool
}

type galleryCacheEntry struct {
	modTime time.Time
	meta    mediameta.ArtifactMetadata
}

// GalleryIndex enumerates stored artifacts and serves filtered views over
// their embedded metadata. Parsed metadata is cached per path and reused as
// long as the file's modification time is unchanged; that is the only cache
// discipline, there is no TTL and no explicit invalidation.
type GalleryIndex struct {
	dir       string
	favorites *Favorites
	mu        sync.Mutex
	cache     map[string]galleryCacheEntry
}

// NewGalleryIndex builds an index over the given artifact directory.
func NewGalleryIndex(dir string) *GalleryIndex {
	return &GalleryIndex{
		dir:       dir,
		favorites: NewFavorites(dir),
		cache:     make(map[string]galleryCacheEntry),
	}
}

// ToggleFavorite flips the favorite flag of the artifact at path and returns
// the new state.
func (g *GalleryIndex) ToggleFavorite(path string) (bool, error) {
	return g.favorites.Toggle(path)
}

// List scans the directory and returns entries newest first, optionally
// restricted to one service by exact case-insensitive match and to favorites.
// Pass "" or FilterAll as the service to get everything. Pagination is the
// caller's job.
func (g *GalleryIndex) List(filter string, favoritesOnly bool) []GalleryEntry {
	g.mu.Lock()
	defer g.mu.Unlock()

	dirEntries, err := os.ReadDir(g.dir)
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{}, len(dirEntries))
	entries := make([]GalleryEntry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		kind, ok := kindForFilename(name)
		if !ok {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(g.dir, name)
		seen[path] = struct{}{}

		cached, ok := g.cache[path]
		if !ok || !cached.modTime.Equal(info.ModTime()) {
			cached = galleryCacheEntry{modTime: info.ModTime(), meta: g.parse(path, kind)}
			g.cache[path] = cached
		}

		if !matchesService(cached.meta.Service, filter) {
			continue
		}
		favorite := g.favorites.IsFavorite(path)
		if favoritesOnly && !favorite {
			continue
		}
		entries = append(entries, GalleryEntry{
			Path:      path,
			Meta:      cached.meta,
			Timestamp: strings.TrimSuffix(name, filepath.Ext(name)),
			Favorite:  favorite,
		})
	}

	// Purge cache entries for deleted files.
	for path := range g.cache {
		if _, ok := seen[path]; !ok {
			delete(g.cache, path)
		}
	}

	// Filenames are timestamp-prefixed, so descending name order is newest
	// first without a separate timestamp comparison.
	sort.Slice(entries, func(i, j int) bool {
		return filepath.Base(entries[i].Path) > filepath.Base(entries[j].Path)
	})
	return entries
}

func (g *GalleryIndex) parse(path string, kind mediameta.Kind) mediameta.ArtifactMetadata {
	data, err := os.ReadFile(path)
	if err != nil {
		return mediameta.ArtifactMetadata{Kind: kind}
	}
	meta, ok := mediameta.Extract(data, kind)
	if !ok {
		return mediameta.ArtifactMetadata{Kind: kind}
	}
	return meta
}

func kindForFilename(name string) (mediameta.Kind, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return mediameta.KindImage, true
	case ".mp4":
		return mediameta.KindVideo, true
	default:
		return 0, false
	}
}

func matchesService(service, filter string) bool {
	if filter == "" || strings.EqualFold(filter, FilterAll) {
		return true
	}
	return strings.EqualFold(service, filter)
}
