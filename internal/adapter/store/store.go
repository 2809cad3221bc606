// Package store declares the persistence collaborators the map service depends on.
package store

import (
	"context"
	"errors"

	"go.ngs.io/ocean-wms/internal/domain"
)

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errors.New("not found")

// DatasetCatalog is the interface for looking up dataset records
type DatasetCatalog interface {
	// Dataset returns the record for a slug, or an error wrapping ErrNotFound
	Dataset(ctx context.Context, slug string) (domain.Dataset, error)

	// List returns every registered dataset
	List(ctx context.Context) ([]domain.Dataset, error)

	// SetType records the classified type of a dataset
	SetType(ctx context.Context, slug string, variant domain.TypeVariant) error
}

// LayerRegistry is the interface for stored layer records and variable defaults
type LayerRegistry interface {
	Layer(ctx context.Context, dataset, varName string) (domain.Layer, error)
	Layers(ctx context.Context, dataset string) ([]domain.Layer, error)
	UpsertLayer(ctx context.Context, l domain.Layer) (domain.Layer, error)

	// RegisterVirtualLayer stores a derived layer once and returns the stored record
	RegisterVirtualLayer(ctx context.Context, l domain.Layer) (domain.Layer, error)
	DeleteDataset(ctx context.Context, dataset string) error

	// VariableDefault returns global defaults for (std_name, units), or nil
	VariableDefault(ctx context.Context, stdName, units string) (*domain.VariableDefault, error)
}
