package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.ngs.io/ocean-wms/internal/adapter/store"
	"go.ngs.io/ocean-wms/internal/domain"
)

// Resolver maps requested layer names to stored or derived layers.
type Resolver struct {
	layers store.LayerRegistry
	logger *slog.Logger
}

// NewResolver creates a layer resolver.
func NewResolver(layers store.LayerRegistry, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{layers: layers, logger: logger.With("component", "resolver")}
}

// Resolve returns layers in request order. A comma separated request such as "u,v" is first
// tried as a single vector layer before its parts are resolved one by one.
func (r *Resolver) Resolve(ctx context.Context, ds domain.Dataset, names []string) ([]domain.Layer, error) {
	if len(names) > 1 {
		l, err := r.resolveOne(ctx, ds, strings.Join(names, ","))
		if err == nil {
			return []domain.Layer{l}, nil
		}
		if domain.KindOf(err) != domain.KindUnresolvableLayer {
			return nil, err
		}
	}
	out := make([]domain.Layer, 0, len(names))
	for _, name := range names {
		l, err := r.resolveOne(ctx, ds, name)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func (r *Resolver) resolveOne(ctx context.Context, ds domain.Dataset, name string) (domain.Layer, error) {
	l, err := r.layers.Layer(ctx, ds.Slug, name)
	if err == nil {
		return l, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.Layer{}, err
	}
	if !ds.Type.SupportsVirtualLayers() {
		return domain.Layer{}, domain.UnresolvableLayerError(name, err)
	}
	v, err := r.virtual(ctx, ds, name)
	if err != nil {
		return domain.Layer{}, domain.UnresolvableLayerError(name, err)
	}
	return v, nil
}

// virtual builds and registers a vector layer from an explicit "u,v" pair or from the
// stripped standard name shared by exactly one eastward/northward pair.
func (r *Resolver) virtual(ctx context.Context, ds domain.Dataset, name string) (domain.Layer, error) {
	all, err := r.layers.Layers(ctx, ds.Slug)
	if err != nil {
		return domain.Layer{}, err
	}
	direct := make([]domain.Layer, 0, len(all))
	for _, l := range all {
		if l.Kind == domain.Direct {
			direct = append(direct, l)
		}
	}

	var (
		u, v domain.Layer
		key  string
	)
	switch parts := domain.SplitVarNames(name); len(parts) {
	case 1:
		key = parts[0]
		if u, v, err = domain.FindVectorPair(direct, key); err != nil {
			return domain.Layer{}, err
		}
	case 2:
		var foundU, foundV bool
		for _, l := range direct {
			switch l.VarName {
			case parts[0]:
				u, foundU = l, true
			case parts[1]:
				v, foundV = l, true
			}
		}
		if !foundU || !foundV {
			return domain.Layer{}, fmt.Errorf("components of %q are not direct layers", name)
		}
		var ok bool
		if key, ok = domain.VectorPairs(u, v); !ok {
			return domain.Layer{}, fmt.Errorf("%s and %s do not form a vector pair", u.VarName, v.VarName)
		}
	default:
		return domain.Layer{}, fmt.Errorf("cannot derive a layer from %q", name)
	}

	stored, err := r.layers.RegisterVirtualLayer(ctx, domain.NewVectorLayer(ds.Slug, u, v, key))
	if err != nil {
		return domain.Layer{}, err
	}
	r.logger.Debug("resolved virtual layer", "dataset", ds.Slug, "request", name, "layer", stored.VarName)
	return stored, nil
}

// Defaults returns the effective color-scale defaults of each layer.
func (r *Resolver) Defaults(ctx context.Context, layers []domain.Layer) ([]domain.LayerDefaults, error) {
	out := make([]domain.LayerDefaults, len(layers))
	for i, l := range layers {
		global, err := r.layers.VariableDefault(ctx, l.StdName, l.Units)
		if err != nil {
			return nil, err
		}
		out[i] = l.Defaults(global)
	}
	return out, nil
}
