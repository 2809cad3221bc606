// Package catalog reads dataset records from a YAML file.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"go.ngs.io/ocean-wms/internal/adapter/store"
	"go.ngs.io/ocean-wms/internal/domain"
)

// ErrNotFound is returned for an unknown dataset slug.
var ErrNotFound = store.ErrNotFound

type record struct {
	domain.Dataset `yaml:",inline"`
	Type           string `yaml:"type"`
}

type file struct {
	Datasets []record `yaml:"datasets"`
}

// Catalog is an in-memory dataset catalog loaded from YAML.
type Catalog struct {
	mu       sync.RWMutex
	path     string
	datasets map[string]domain.Dataset
}

var _ store.DatasetCatalog = (*Catalog)(nil)

// Load reads the catalog file. A missing file yields an empty catalog.
func Load(path string) (*Catalog, error) {
	c := &Catalog{path: path, datasets: make(map[string]domain.Dataset)}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	if err := c.parse(data); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}
	return c, nil
}

func (c *Catalog) parse(data []byte) error {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return err
	}
	for i, r := range f.Datasets {
		if r.Slug == "" {
			return fmt.Errorf("dataset %d: missing slug", i)
		}
		if r.URI == "" {
			return fmt.Errorf("dataset %s: missing uri", r.Slug)
		}
		if _, dup := c.datasets[r.Slug]; dup {
			return fmt.Errorf("dataset %s: duplicate slug", r.Slug)
		}
		variant, err := domain.ParseTypeVariant(r.Type)
		if err != nil {
			return fmt.Errorf("dataset %s: %w", r.Slug, err)
		}
		ds := r.Dataset
		ds.Type = variant
		if ds.Name == "" {
			ds.Name = ds.Slug
		}
		c.datasets[ds.Slug] = ds
	}
	return nil
}

// Dataset returns the dataset with the given slug.
func (c *Catalog) Dataset(_ context.Context, slug string) (domain.Dataset, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ds, ok := c.datasets[slug]
	if !ok {
		return domain.Dataset{}, fmt.Errorf("%s: %w", slug, ErrNotFound)
	}
	return ds, nil
}

// List returns every dataset ordered by slug.
func (c *Catalog) List(_ context.Context) ([]domain.Dataset, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Dataset, 0, len(c.datasets))
	for _, ds := range c.datasets {
		out = append(out, ds)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

// SetType records a dataset's classified type and persists the catalog.
func (c *Catalog) SetType(_ context.Context, slug string, variant domain.TypeVariant) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	ds, ok := c.datasets[slug]
	if !ok {
		return fmt.Errorf("%s: %w", slug, ErrNotFound)
	}
	if ds.Type == variant {
		return nil
	}
	ds.Type = variant
	c.datasets[slug] = ds
	return c.save()
}

func (c *Catalog) save() error {
	f := file{Datasets: make([]record, 0, len(c.datasets))}
	for _, ds := range c.datasets {
		f.Datasets = append(f.Datasets, record{Dataset: ds, Type: ds.Type.String()})
	}
	sort.Slice(f.Datasets, func(i, j int) bool { return f.Datasets[i].Slug < f.Datasets[j].Slug })
	data, err := yaml.Marshal(&f)
	if err != nil {
		return err
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil { //nolint:gosec // catalog is not secret
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	return os.Rename(tmp, c.path)
}
