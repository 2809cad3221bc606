// Package artifact memoizes rendered outputs on disk, keyed by a fingerprint of the dataset
// version and the normalized render job.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"go.ngs.io/ocean-wms/internal/adapter/store/cachedir"
	"go.ngs.io/ocean-wms/internal/domain"
)

const (
	dataExt = ".bin"
	typeExt = ".type"
)

// Artifact is a rendered output.
type Artifact struct {
	Data        []byte
	ContentType string
}

// RenderFunc produces an artifact on a cache miss.
type RenderFunc func(ctx context.Context) (Artifact, error)

// Fingerprint hashes the dataset identity, its version, the resolved layers with their
// color-scale defaults and every normalized job field.
func Fingerprint(slug string, version int64, layers []domain.Layer, defaults []domain.LayerDefaults, job *domain.RenderJob) string {
	var b strings.Builder
	field := func(k string, v any) {
		fmt.Fprintf(&b, "%s=%v\n", k, v)
	}
	field("dataset", slug)
	field("version", version)
	for i, l := range layers {
		field("layer."+strconv.Itoa(i), l.VarName)
	}
	for i, d := range defaults {
		field("defaults."+strconv.Itoa(i), fmt.Sprintf("%s,%s,%s", optFloat(d.Min), optFloat(d.Max), optBool(d.LogScale)))
	}
	field("op", job.Operation)
	field("crs", job.CRS)
	field("bbox", fmt.Sprintf("%.12g,%.12g,%.12g,%.12g", job.BBox.MinX, job.BBox.MinY, job.BBox.MaxX, job.BBox.MaxY))
	field("size", fmt.Sprintf("%dx%d", job.Width, job.Height))
	field("times", ints(job.TimeIndex))
	if job.Time.Start != nil {
		field("time.start", job.Time.Start.UTC().Format(time.RFC3339Nano))
	}
	if job.Time.End != nil {
		field("time.end", job.Time.End.UTC().Format(time.RFC3339Nano))
	}
	field("depth", job.DepthIndex)
	if job.Elevation != nil {
		field("elevation", *job.Elevation)
	}
	if job.Style != nil {
		field("style", job.Style.Code())
	}
	field("format", job.Format)
	field("transparent", job.Transparent)
	if job.NumContours != nil {
		field("numcontours", *job.NumContours)
	}
	if job.VectorScale != nil {
		field("vectorscale", *job.VectorScale)
	}
	if job.VectorStep != nil {
		field("vectorstep", *job.VectorStep)
	}
	if job.ColorRange != nil {
		field("colorscalerange", fmt.Sprintf("%g,%g", job.ColorRange[0], job.ColorRange[1]))
	}
	if job.LogScale != nil {
		field("logscale", *job.LogScale)
	}
	field("xy", fmt.Sprintf("%d,%d", job.X, job.Y))
	field("item", job.Item)
	return strconv.FormatUint(xxhash.Sum64String(b.String()), 16)
}

func optFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

func optBool(v *bool) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatBool(*v)
}

func ints(v []int) string {
	s := make([]string, len(v))
	for i, x := range v {
		s[i] = strconv.Itoa(x)
	}
	return strings.Join(s, ",")
}

// Cache stores artifacts under each dataset's cache directory.
type Cache struct {
	logger *slog.Logger
}

// New creates an artifact cache.
func New(logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{logger: logger.With("component", "artifact")}
}

// Get returns a stored artifact.
func (c *Cache) Get(h cachedir.Handle, fingerprint string) (Artifact, bool) {
	base := filepath.Join(h.ArtifactPath(), fingerprint)
	ct, err := os.ReadFile(base + typeExt)
	if err != nil {
		return Artifact{}, false
	}
	data, err := os.ReadFile(base + dataExt)
	if err != nil {
		return Artifact{}, false
	}
	return Artifact{Data: data, ContentType: strings.TrimSpace(string(ct))}, true
}

// GetOrRender returns the stored artifact or renders and stores it. Nothing is stored when
// render fails or ctx is done by the time it returns. Concurrent misses may render twice
// but converge on one entry.
func (c *Cache) GetOrRender(ctx context.Context, h cachedir.Handle, fingerprint string, render RenderFunc) (Artifact, bool, error) {
	if a, ok := c.Get(h, fingerprint); ok {
		return a, true, nil
	}
	a, err := render(ctx)
	if err != nil {
		return Artifact{}, false, err
	}
	if err := ctx.Err(); err != nil {
		return Artifact{}, false, domain.TimeoutError(err)
	}
	base := filepath.Join(h.ArtifactPath(), fingerprint)
	// The content type marker is written last; Get treats its absence as a miss.
	if err := cachedir.WriteFileAtomic(base+dataExt, a.Data); err != nil {
		c.logger.Warn("failed to store artifact", "dataset", h.Slug, "error", err)
		return a, false, nil
	}
	if err := cachedir.WriteFileAtomic(base+typeExt, []byte(a.ContentType)); err != nil {
		c.logger.Warn("failed to store artifact type", "dataset", h.Slug, "error", err)
	}
	return a, false, nil
}

// Clear removes every artifact of a dataset.
func (c *Cache) Clear(h cachedir.Handle) error {
	if err := os.RemoveAll(h.ArtifactPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to clear artifacts for %s: %w", h.Slug, err)
	}
	c.logger.Debug("artifacts cleared", "dataset", h.Slug)
	return nil
}

// Entries lists stored fingerprints.
func (c *Cache) Entries(h cachedir.Handle) ([]string, error) {
	entries, err := os.ReadDir(h.ArtifactPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), typeExt); ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}
