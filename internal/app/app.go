// Package app wires the stores and the map service from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.ngs.io/ocean-wms/internal/adapter/store/artifact"
	"go.ngs.io/ocean-wms/internal/adapter/store/cachedir"
	"go.ngs.io/ocean-wms/internal/adapter/store/catalog"
	"go.ngs.io/ocean-wms/internal/adapter/store/csv"
	"go.ngs.io/ocean-wms/internal/adapter/store/registry"
	"go.ngs.io/ocean-wms/internal/adapter/store/topology"
	"go.ngs.io/ocean-wms/internal/config"
	"go.ngs.io/ocean-wms/internal/usecase"
)

// App holds the wired components.
type App struct {
	Config     config.Config
	Catalog    *catalog.Catalog
	Registry   *registry.Registry
	Cache      *cachedir.Root
	Topologies *topology.Store
	Artifacts  *artifact.Cache
	Service    *usecase.Service
	logger     *slog.Logger
}

// New opens the catalog, registry and cache named by cfg.
func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cat, err := catalog.Load(cfg.DatasetsFile)
	if err != nil {
		return nil, err
	}
	reg, err := registry.Open(cfg.RegistryPath)
	if err != nil {
		return nil, err
	}
	root, err := cachedir.New(cfg.CacheDir)
	if err != nil {
		_ = reg.Close()
		return nil, err
	}
	topos, err := topology.NewStore(root, cfg.TopologyMemoryEntries, logger)
	if err != nil {
		_ = reg.Close()
		return nil, err
	}
	arts := artifact.New(logger)
	svc := usecase.NewService(cat, reg, topos, arts, usecase.Options{
		Limits:        usecase.Limits{MaxWidth: cfg.MaxWidth, MaxHeight: cfg.MaxHeight},
		RenderTimeout: cfg.RenderTimeout,
	}, logger)

	return &App{
		Config:     cfg,
		Catalog:    cat,
		Registry:   reg,
		Cache:      root,
		Topologies: topos,
		Artifacts:  arts,
		Service:    svc,
		logger:     logger.With("component", "app"),
	}, nil
}

// Close releases the registry.
func (a *App) Close() error { return a.Registry.Close() }

// ImportDefaults loads global variable defaults from a CSV file into the registry.
func (a *App) ImportDefaults(ctx context.Context, path string) (int, error) {
	defaults, err := csv.LoadVariableDefaults(path)
	if err != nil {
		return 0, err
	}
	if err := a.Registry.PutVariableDefaults(ctx, defaults...); err != nil {
		return 0, fmt.Errorf("failed to store variable defaults: %w", err)
	}
	return len(defaults), nil
}

// RegisterAll registers every catalog dataset. Failures are logged and joined so one bad
// file does not keep the others from serving.
func (a *App) RegisterAll(ctx context.Context) error {
	datasets, err := a.Catalog.List(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for _, ds := range datasets {
		layers, err := a.Service.Register(ctx, ds)
		if err != nil {
			a.logger.Error("dataset registration failed", "dataset", ds.Slug, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", ds.Slug, err))
			continue
		}
		a.logger.Info("dataset ready", "dataset", ds.Slug, "layers", len(layers))
	}
	return errors.Join(errs...)
}
