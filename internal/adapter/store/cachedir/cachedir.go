// Package cachedir owns the on-disk layout of per-dataset topology and artifact caches.
package cachedir

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// File names inside a dataset cache directory.
const (
	TopologyFile = "topology.gob"
	StampFile    = "topology.stamp"
	ArtifactDir  = "artifacts"
)

// Root is the cache root shared by the topology store and the artifact cache.
type Root struct {
	dir   string
	locks *Locks
}

// New creates a cache root at dir.
func New(dir string) (*Root, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir %s: %w", dir, err)
	}
	return &Root{dir: dir, locks: NewLocks()}, nil
}

// Dir returns the root directory.
func (r *Root) Dir() string { return r.dir }

// Locks returns the per-dataset lock table.
func (r *Root) Locks() *Locks { return r.locks }

// Handle returns the cache handle of a dataset.
func (r *Root) Handle(slug string) Handle {
	return Handle{Slug: slug, Dir: filepath.Join(r.dir, safeName(slug))}
}

// Datasets lists the dataset directories present on disk.
func (r *Root) Datasets() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache dir: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

// safeName maps a slug to a directory name. Slugs that needed rewriting get a hash of
// the raw slug appended so that distinct slugs never share a directory.
func safeName(slug string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, slug)
	if name == slug && name != "" && name != "." && name != ".." {
		return name
	}
	return fmt.Sprintf("%s~%016x", name, xxhash.Sum64String(slug))
}

// Handle locates one dataset's cache directory.
type Handle struct {
	Slug string
	Dir  string
}

// TopologyPath is the serialized topology file.
func (h Handle) TopologyPath() string { return filepath.Join(h.Dir, TopologyFile) }

// StampPath records the source modification time the topology was built from.
func (h Handle) StampPath() string { return filepath.Join(h.Dir, StampFile) }

// ArtifactPath is the artifact cache directory.
func (h Handle) ArtifactPath() string { return filepath.Join(h.Dir, ArtifactDir) }

// Exists reports whether both topology and stamp are present.
func (h Handle) Exists() bool {
	for _, p := range []string{h.TopologyPath(), h.StampPath()} {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}

// Clear removes the dataset's cache directory. Clearing a missing cache is not an error.
func (h Handle) Clear() error {
	if err := os.RemoveAll(h.Dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to clear cache for %s: %w", h.Slug, err)
	}
	return nil
}

// WriteFileAtomic writes data to a temp file in the target directory and renames it into
// place, so readers see either the old file or the complete new one.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("failed to sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return fmt.Errorf("failed to rename into %s: %w", path, err)
	}
	return nil
}

// Locks is a keyed lock table. Entries are dropped when no goroutine holds or waits on them.
type Locks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewLocks returns an empty lock table.
func NewLocks() *Locks {
	return &Locks{locks: make(map[string]*keyLock)}
}

// Lock acquires the lock for key and returns its release function.
func (l *Locks) Lock(key string) (unlock func()) {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	kl.mu.Lock()
	return func() {
		kl.mu.Unlock()
		l.mu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

// Len returns the number of live keys.
func (l *Locks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
