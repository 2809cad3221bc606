package variables

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.ngs.io/ocean-wms/internal/adapter/store/topology"
	"go.ngs.io/ocean-wms/internal/domain"
	"go.ngs.io/ocean-wms/internal/testutil/ncfixture"
)

func parse(t *testing.T, path string, variant domain.TypeVariant) (domain.Dataset, *topology.Topology) {
	t.Helper()
	topo, err := topology.Parse(path, "fixture", variant, 1)
	require.NoError(t, err)
	return domain.Dataset{Slug: "fixture", URI: path, Type: variant}, topo
}

func TestRead_MeshLocations(t *testing.T) {
	ds, topo := parse(t, ncfixture.UGrid(t, t.TempDir()), domain.UnstructuredMesh)
	r := NewReader(nil)
	ctx := context.Background()

	zeta, err := r.Read(ctx, ds, topo, "zeta", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, OnNode, zeta.Location)
	require.Len(t, zeta.Values, ncfixture.NodeCount)
	assert.True(t, math.IsNaN(zeta.Values[8]), "fill value must be NaN")
	assert.Equal(t, ncfixture.UGridZeta(0, 3), zeta.Values[3])
	assert.True(t, zeta.Time.Equal(ncfixture.Epoch))

	temp, err := r.Read(ctx, ds, topo, "temp", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, OnFace, temp.Location)
	assert.Equal(t, ncfixture.UGridTemp(2, 5), temp.Values[5])

	_, err = r.Read(ctx, ds, topo, "nope", 0, 0)
	assert.Error(t, err)
}

func TestSeries_ExactValuesWithoutInterpolation(t *testing.T) {
	ds, topo := parse(t, ncfixture.UGrid(t, t.TempDir()), domain.UnstructuredMesh)
	r := NewReader(nil)

	el, ok := topo.Locate(-70.2, 41.1)
	require.True(t, ok)
	got, err := r.Series(context.Background(), ds, topo, "temp", el, []int{0, 1, 2}, 0)
	require.NoError(t, err)
	assert.Equal(t, OnFace, got.Location)
	assert.Equal(t, []float64{ncfixture.UGridTemp(0, 0), ncfixture.UGridTemp(1, 0), ncfixture.UGridTemp(2, 0)}, got.Values)
}

func TestRead_Structured(t *testing.T) {
	dir := t.TempDir()
	r := NewReader(nil)
	ctx := context.Background()

	ds, topo := parse(t, ncfixture.SGrid(t, dir), domain.StructuredCurvilinear)
	field, err := r.Read(ctx, ds, topo, "temp", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, OnGrid, field.Location)
	el := topology.Element{J: 2, I: 3, Node: -1, Face: -1, Tri: -1}
	assert.Equal(t, ncfixture.SGridTemp(1, 1, 2, 3), field.At(topo, el))

	first, err := r.Read(ctx, ds, topo, "temp", 0, 0)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(first.Values[0]))

	ds, topo = parse(t, ncfixture.RGrid(t, dir), domain.StructuredRectilinear)
	field, err = r.Read(ctx, ds, topo, "temp", 1, 2)
	require.NoError(t, err)
	el = topology.Element{J: 1, I: 3}
	assert.Equal(t, ncfixture.RGridTemp(1, 2, 1, 3), field.At(topo, el))

	series, err := r.Series(ctx, ds, topo, "temp", el, []int{0, 1}, 0)
	require.NoError(t, err)
	assert.Equal(t, OnGrid, series.Location)
	assert.Equal(t, []float64{ncfixture.RGridTemp(0, 0, 1, 3), ncfixture.RGridTemp(1, 0, 1, 3)}, series.Values)
}

func TestRead_LayeredVelocityUsesDepthLevel(t *testing.T) {
	ds, topo := parse(t, ncfixture.FVCOM(t, t.TempDir()), domain.UnstructuredMesh)
	field, err := NewReader(nil).Read(context.Background(), ds, topo, "u", 1, topo.SurfaceIndex())
	require.NoError(t, err)
	assert.Equal(t, OnFace, field.Location)
	require.Len(t, field.Values, ncfixture.FaceCount)
	assert.InDelta(t, 0.3, field.Values[0], 1e-6)
}

func TestTide_Synthesis(t *testing.T) {
	ds, topo := parse(t, ncfixture.Tide(t, t.TempDir()), domain.TideHarmonicMesh)
	at := time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC)

	field, err := NewReader(nil).Tide(context.Background(), ds, topo, "amp", at)
	require.NoError(t, err)
	assert.Equal(t, OnNode, field.Location)
	require.Len(t, field.Values, ncfixture.NodeCount)

	var harmonics []domain.Harmonic
	for _, c := range ncfixture.TideConstituents {
		speed, ok := domain.ConstituentSpeed(c.Name)
		require.True(t, ok)
		harmonics = append(harmonics, domain.Harmonic{Name: c.Name, Amplitude: c.Amplitude, PhaseDeg: c.PhaseDeg, SpeedDegPerHr: speed})
	}
	want := domain.Synthesize(at, harmonics, domain.HarmonicParams{Reference: HarmonicEpoch})
	for _, v := range field.Values {
		assert.InDelta(t, want, v, 1e-9)
	}
}
