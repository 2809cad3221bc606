package topology

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"go.ngs.io/ocean-wms/internal/adapter/classify"
	"go.ngs.io/ocean-wms/internal/adapter/store/cachedir"
	"go.ngs.io/ocean-wms/internal/domain"
)

// RebuildHook runs after a dataset's topology is rebuilt, e.g. to drop rendered artifacts.
type RebuildHook func(h cachedir.Handle) error

// Store serves topologies from memory, then disk, rebuilding when the source file changed.
type Store struct {
	root   *cachedir.Root
	memo   *lru.Cache[string, *Topology]
	group  singleflight.Group
	parses atomic.Int64
	logger *slog.Logger

	mu    sync.RWMutex
	hooks []RebuildHook

	classify func(uri string) domain.TypeVariant
}

// NewStore creates a store over root keeping up to memoryEntries topologies in memory.
func NewStore(root *cachedir.Root, memoryEntries int, logger *slog.Logger) (*Store, error) {
	if memoryEntries < 1 {
		memoryEntries = 1
	}
	memo, err := lru.New[string, *Topology](memoryEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to create topology memo: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		root:     root,
		memo:     memo,
		logger:   logger.With("component", "topology"),
		classify: classify.Classify,
	}, nil
}

// OnRebuild registers a hook run after every rebuild.
func (s *Store) OnRebuild(hook RebuildHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
}

// Parses returns how many times a source file has been parsed.
func (s *Store) Parses() int64 { return s.parses.Load() }

// Handle returns the cache handle of a dataset.
func (s *Store) Handle(ds domain.Dataset) cachedir.Handle { return s.root.Handle(ds.Slug) }

// Get returns the topology matching the dataset file's current modification time.
func (s *Store) Get(ctx context.Context, ds domain.Dataset) (*Topology, error) {
	modTime, err := sourceModTime(ds.URI)
	if err != nil {
		return nil, domain.RebuildError(ds.Slug, err)
	}
	if t, ok := s.memo.Get(ds.Slug); ok && t.SourceModTime == modTime {
		return t, nil
	}
	return s.load(ctx, ds, modTime, false)
}

// Build rebuilds the topology from source regardless of cache state.
func (s *Store) Build(ctx context.Context, ds domain.Dataset) (*Topology, error) {
	modTime, err := sourceModTime(ds.URI)
	if err != nil {
		return nil, domain.RebuildError(ds.Slug, err)
	}
	return s.load(ctx, ds, modTime, true)
}

// HasCache reports whether a serialized topology exists on disk.
func (s *Store) HasCache(ds domain.Dataset) bool {
	return s.root.Handle(ds.Slug).Exists()
}

// ClearCache removes the dataset's cache directory and in-memory copy.
func (s *Store) ClearCache(ds domain.Dataset) error {
	unlock := s.root.Locks().Lock(ds.Slug)
	defer unlock()
	s.memo.Remove(ds.Slug)
	return s.root.Handle(ds.Slug).Clear()
}

// load coalesces concurrent loads of one dataset version. The shared load is detached
// from any single caller; each caller only stops waiting when its own context ends.
func (s *Store) load(ctx context.Context, ds domain.Dataset, modTime int64, force bool) (*Topology, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := ds.Slug + "@" + strconv.FormatInt(modTime, 10)
	if force {
		key += "!"
	}
	ch := s.group.DoChan(key, func() (any, error) {
		unlock := s.root.Locks().Lock(ds.Slug)
		defer unlock()

		h := s.root.Handle(ds.Slug)
		if !force {
			if t, ok := s.readDisk(h, modTime); ok {
				s.memo.Add(ds.Slug, t)
				return t, nil
			}
		}
		t, err := s.rebuild(ds, h, modTime)
		if err != nil {
			return nil, err
		}
		s.memo.Add(ds.Slug, t)
		return t, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Topology), nil
	}
}

// readDisk returns the cached topology if its stamp matches modTime.
func (s *Store) readDisk(h cachedir.Handle, modTime int64) (*Topology, bool) {
	stamp, err := os.ReadFile(h.StampPath())
	if err != nil {
		return nil, false
	}
	recorded, err := parseStamp(stamp)
	if err != nil || recorded != modTime {
		return nil, false
	}
	data, err := os.ReadFile(h.TopologyPath())
	if err != nil {
		return nil, false
	}
	t, err := Decode(data)
	if err != nil || t.SourceModTime != modTime {
		s.logger.Warn("discarding unreadable topology cache", "dataset", h.Slug, "error", err)
		return nil, false
	}
	return t, true
}

func (s *Store) rebuild(ds domain.Dataset, h cachedir.Handle, modTime int64) (*Topology, error) {
	start := time.Now()
	variant := ds.Type
	if variant == domain.Unidentified {
		variant = s.classify(ds.URI)
		if variant == domain.Unidentified {
			return nil, domain.UnsupportedTypeError(ds.Slug)
		}
	}

	s.parses.Add(1)
	t, err := Parse(ds.URI, ds.Slug, variant, modTime)
	if err != nil {
		if domain.KindOf(err) != "" {
			return nil, err
		}
		return nil, domain.RebuildError(ds.Slug, err)
	}
	data, err := Encode(t)
	if err != nil {
		return nil, domain.RebuildError(ds.Slug, err)
	}
	// Topology first, stamp last: a stamp never vouches for an older topology file.
	if err := cachedir.WriteFileAtomic(h.TopologyPath(), data); err != nil {
		return nil, domain.RebuildError(ds.Slug, err)
	}
	if err := cachedir.WriteFileAtomic(h.StampPath(), formatStamp(modTime)); err != nil {
		return nil, domain.RebuildError(ds.Slug, err)
	}

	s.mu.RLock()
	hooks := s.hooks
	s.mu.RUnlock()
	for _, hook := range hooks {
		if err := hook(h); err != nil {
			s.logger.Error("rebuild hook failed", "dataset", ds.Slug, "error", err)
		}
	}
	s.logger.Info("topology built",
		"dataset", ds.Slug,
		"variant", variant.String(),
		"nodes", len(t.NodeX),
		"triangles", len(t.Tris),
		"bytes", len(data),
		"duration", time.Since(start))
	return t, nil
}

func sourceModTime(uri string) (int64, error) {
	info, err := os.Stat(uri)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("source %s does not exist", uri)
		}
		return 0, fmt.Errorf("failed to stat %s: %w", uri, err)
	}
	return domain.ModTime(info.ModTime()), nil
}
