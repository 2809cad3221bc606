package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.ngs.io/ocean-wms/internal/domain"
)

const sample = `
datasets:
  - slug: gom
    name: Gulf of Maine
    uri: /data/gom.nc
    type: ugrid
    title: Gulf of Maine FVCOM
  - slug: global
    uri: /data/global.nc
`

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "datasets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	c, err := Load(writeCatalog(t, sample))
	require.NoError(t, err)
	ctx := context.Background()

	gom, err := c.Dataset(ctx, "gom")
	require.NoError(t, err)
	assert.Equal(t, domain.UnstructuredMesh, gom.Type)
	assert.Equal(t, "Gulf of Maine", gom.Name)
	assert.Equal(t, "Gulf of Maine FVCOM", gom.Title)

	global, err := c.Dataset(ctx, "global")
	require.NoError(t, err)
	assert.Equal(t, domain.Unidentified, global.Type)
	assert.Equal(t, "global", global.Name)

	_, err = c.Dataset(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "global", list[0].Slug)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"missing uri":  "datasets:\n  - slug: a\n",
		"missing slug": "datasets:\n  - uri: /a.nc\n",
		"duplicate":    "datasets:\n  - {slug: a, uri: /a.nc}\n  - {slug: a, uri: /b.nc}\n",
		"bad type":     "datasets:\n  - {slug: a, uri: /a.nc, type: hexgrid}\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeCatalog(t, content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	list, err := c.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSetType_Persists(t *testing.T) {
	path := writeCatalog(t, sample)
	c, err := Load(path)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.SetType(ctx, "global", domain.StructuredRectilinear))

	reloaded, err := Load(path)
	require.NoError(t, err)
	ds, err := reloaded.Dataset(ctx, "global")
	require.NoError(t, err)
	assert.Equal(t, domain.StructuredRectilinear, ds.Type)

	assert.ErrorIs(t, c.SetType(ctx, "missing", domain.UnstructuredMesh), ErrNotFound)
}
