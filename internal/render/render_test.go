package render

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.ngs.io/ocean-wms/internal/adapter/geo"
	"go.ngs.io/ocean-wms/internal/adapter/store/topology"
	"go.ngs.io/ocean-wms/internal/adapter/store/variables"
	"go.ngs.io/ocean-wms/internal/domain"
	"go.ngs.io/ocean-wms/internal/testutil/ncfixture"
)

type readerSource struct {
	r    *variables.Reader
	ds   domain.Dataset
	topo *topology.Topology
}

func (s readerSource) Field(ctx context.Context, name string, timeIdx int) (*variables.Field, error) {
	return s.r.Read(ctx, s.ds, s.topo, name, timeIdx, s.topo.SurfaceIndex())
}

func (s readerSource) Series(ctx context.Context, name string, el topology.Element, timeIdxs []int) (*variables.Series, error) {
	return s.r.Series(ctx, s.ds, s.topo, name, el, timeIdxs, s.topo.SurfaceIndex())
}

type fixture struct {
	topo *topology.Topology
	src  readerSource
}

func load(t *testing.T, path string, variant domain.TypeVariant) fixture {
	t.Helper()
	topo, err := topology.Parse(path, "fixture", variant, 1)
	require.NoError(t, err)
	ds := domain.Dataset{Slug: "fixture", URI: path, Type: variant}
	return fixture{topo: topo, src: readerSource{r: variables.NewReader(nil), ds: ds, topo: topo}}
}

func (f fixture) input(job *domain.RenderJob, layers ...domain.Layer) Input {
	return Input{Job: job, Topology: f.topo, Layers: layers, Source: f.src}
}

func mapJob(bbox domain.BBox, w, h int, style string) *domain.RenderJob {
	s, err := domain.ParseStyle(style)
	if err != nil {
		panic(err)
	}
	return &domain.RenderJob{
		Operation: domain.OpGetMap,
		CRS:       "EPSG:4326",
		BBox:      bbox,
		Width:     w,
		Height:    h,
		TimeIndex: []int{2},
		Style:     &s,
		Format:    domain.FormatPNG,
	}
}

func decode(t *testing.T, out Output) *image.NRGBA {
	t.Helper()
	require.Equal(t, "image/png", out.ContentType)
	img, err := png.Decode(bytes.NewReader(out.Data))
	require.NoError(t, err)
	nrgba, ok := img.(*image.NRGBA)
	require.True(t, ok, "expected NRGBA image, got %T", img)
	return nrgba
}

func countOpaque(img *image.NRGBA) int {
	n := 0
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 0 {
			n++
		}
	}
	return n
}

var meshBBox = domain.BBox{MinX: -71, MinY: 41, MaxX: -69, MaxY: 43}

func TestGetMap_PcolorFaceValues(t *testing.T) {
	f := load(t, ncfixture.UGrid(t, t.TempDir()), domain.UnstructuredMesh)
	job := mapJob(meshBBox, 16, 16, "pcolor_gray")
	job.Transparent = true
	job.ColorRange = &[2]float64{10, 20}

	out, err := New(nil).Render(context.Background(), f.input(job, domain.Layer{VarName: "temp"}))
	require.NoError(t, err)
	img := decode(t, out)
	assert.Equal(t, image.Rect(0, 0, 16, 16), img.Rect)

	for _, px := range [][2]int{{1, 14}, {12, 15}, {8, 3}, {14, 1}} {
		x, y := geo.PixelMapper{BBox: job.BBox, Width: job.Width, Height: job.Height}.Center(px[0], px[1])
		tri, ok := f.topo.ContainingTriangle(x, y)
		require.True(t, ok)
		want := gray((ncfixture.UGridTemp(2, int(f.topo.TriFace[tri])) - 10) / 10)
		assert.Equal(t, want, img.NRGBAAt(px[0], px[1]), "pixel %v", px)
	}
}

func TestGetMap_OutsideEnvelopeIsTransparent(t *testing.T) {
	f := load(t, ncfixture.UGrid(t, t.TempDir()), domain.UnstructuredMesh)
	job := mapJob(domain.BBox{MinX: 10, MinY: 10, MaxX: 11, MaxY: 11}, 8, 4, "pcolor_jet")

	out, err := New(nil).Render(context.Background(), f.input(job, domain.Layer{VarName: "temp"}))
	require.NoError(t, err)
	img := decode(t, out)
	assert.Equal(t, 8, img.Rect.Dx())
	assert.Equal(t, 4, img.Rect.Dy())
	assert.Zero(t, countOpaque(img))
}

func TestGetMap_OpaqueBackground(t *testing.T) {
	f := load(t, ncfixture.UGrid(t, t.TempDir()), domain.UnstructuredMesh)
	job := mapJob(domain.BBox{MinX: -72, MinY: 40, MaxX: -68, MaxY: 44}, 8, 8, "pcolor_jet")

	out, err := New(nil).Render(context.Background(), f.input(job, domain.Layer{VarName: "temp"}))
	require.NoError(t, err)
	img := decode(t, out)
	assert.Equal(t, uint8(255), img.NRGBAAt(0, 0).R)
	assert.Equal(t, uint8(255), img.NRGBAAt(0, 0).A)
	assert.Equal(t, 64, countOpaque(img))
}

func TestGetMap_PlotTypes(t *testing.T) {
	dir := t.TempDir()
	mesh := load(t, ncfixture.UGrid(t, dir), domain.UnstructuredMesh)
	fvcom := load(t, ncfixture.FVCOM(t, dir), domain.UnstructuredMesh)
	sgrid := load(t, ncfixture.SGrid(t, dir), domain.StructuredCurvilinear)
	rgrid := load(t, ncfixture.RGrid(t, dir), domain.StructuredRectilinear)

	vectors := domain.Layer{Kind: domain.Virtual, VarName: "u,v"}
	tests := []struct {
		name  string
		f     fixture
		style string
		layer domain.Layer
		bbox  domain.BBox
	}{
		{"mesh contours", mesh, "contours_cubehelix", domain.Layer{VarName: "zeta"}, meshBBox},
		{"mesh filled contours", mesh, "filledcontours_viridis", domain.Layer{VarName: "zeta"}, meshBBox},
		{"mesh facets", mesh, "facets_rainbow", domain.Layer{VarName: "temp"}, meshBBox},
		{"mesh vectors", mesh, "vectors_cubehelix", vectors, meshBBox},
		{"fvcom vectors", fvcom, "vectors_jet", vectors, meshBBox},
		{"fvcom magnitude", fvcom, "pcolor_jet", vectors, meshBBox},
		{"sgrid pcolor", sgrid, "pcolor_cubehelix", domain.Layer{VarName: "temp"}, domain.BBox{MinX: -75, MinY: 35, MaxX: -65, MaxY: 45}},
		{"rgrid filled contours", rgrid, "filledcontours_jet", domain.Layer{VarName: "temp"}, domain.BBox{MinX: -72, MinY: 40, MaxX: -69, MaxY: 42}},
		{"rgrid vectors", rgrid, "vectors_gray", domain.Layer{Kind: domain.Virtual, VarName: "uwnd,vwnd"}, domain.BBox{MinX: -72.5, MinY: 39.5, MaxX: -68.5, MaxY: 42.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := mapJob(tt.bbox, 32, 32, tt.style)
			job.TimeIndex = []int{1}
			job.Transparent = true
			out, err := New(nil).Render(context.Background(), tt.f.input(job, tt.layer))
			require.NoError(t, err)
			assert.NotZero(t, countOpaque(decode(t, out)))
		})
	}
}

func TestGetMap_VectorsNeedTwoComponents(t *testing.T) {
	f := load(t, ncfixture.UGrid(t, t.TempDir()), domain.UnstructuredMesh)
	job := mapJob(meshBBox, 8, 8, "vectors_cubehelix")
	_, err := New(nil).Render(context.Background(), f.input(job, domain.Layer{VarName: "temp"}))
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestGetMap_UnknownColormap(t *testing.T) {
	f := load(t, ncfixture.UGrid(t, t.TempDir()), domain.UnstructuredMesh)
	job := mapJob(meshBBox, 8, 8, "pcolor_plasma")
	_, err := New(nil).Render(context.Background(), f.input(job, domain.Layer{VarName: "temp"}))
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestRender_Timeout(t *testing.T) {
	f := load(t, ncfixture.UGrid(t, t.TempDir()), domain.UnstructuredMesh)
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	_, err := New(nil).Render(ctx, f.input(mapJob(meshBBox, 64, 64, "pcolor_jet"), domain.Layer{VarName: "temp"}))
	assert.Equal(t, domain.KindRenderTimeout, domain.KindOf(err))
}

func gfiJob(format domain.OutputFormat) *domain.RenderJob {
	return &domain.RenderJob{
		Operation: domain.OpGetFeatureInfo,
		CRS:       "EPSG:4326",
		BBox:      domain.BBox{MinX: -72, MinY: 40, MaxX: -69, MaxY: 42},
		Width:     30,
		Height:    20,
		X:         11, // lon -70.9
		Y:         9,  // lat 41.1
		TimeIndex: []int{0, 1},
		Format:    format,
	}
}

func TestGetFeatureInfo_CSVExactValues(t *testing.T) {
	f := load(t, ncfixture.RGrid(t, t.TempDir()), domain.StructuredRectilinear)
	in := f.input(gfiJob(domain.FormatCSV), domain.Layer{VarName: "temp", Units: "degC"})
	in.Times = f.topo.Times

	out, err := New(nil).Render(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", out.ContentType)

	lines := strings.Split(strings.TrimSpace(string(out.Data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "time,x,y,temp", lines[0])
	// x and y locate the grid point that supplied the values, not the queried point.
	assert.Equal(t, "2025-01-01T00:00:00Z,-71,41,21.25", lines[1])
	assert.Equal(t, "2025-01-01T06:00:00Z,-71,41,22.25", lines[2])
}

func TestGetFeatureInfo_TSVVirtualLayer(t *testing.T) {
	f := load(t, ncfixture.RGrid(t, t.TempDir()), domain.StructuredRectilinear)
	in := f.input(gfiJob(domain.FormatTSV), domain.Layer{Kind: domain.Virtual, VarName: "uwnd,vwnd"})

	out, err := New(nil).Render(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "text/tsv", out.ContentType)
	lines := strings.Split(strings.TrimSpace(string(out.Data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "time\tx\ty\tuwnd\tvwnd", lines[0])
	assert.True(t, strings.HasSuffix(lines[1], "\t3\t4"), lines[1])
}

func TestGetFeatureInfo_JSON(t *testing.T) {
	f := load(t, ncfixture.UGrid(t, t.TempDir()), domain.UnstructuredMesh)
	job := gfiJob(domain.FormatJSON)
	job.BBox = meshBBox
	job.Width, job.Height = 20, 20
	job.X, job.Y = 8, 19 // lon -70.2, lat 41.1
	job.TimeIndex = []int{0, 1, 2}
	in := f.input(job, domain.Layer{VarName: "temp", Units: "degC"})
	in.Times = f.topo.Times

	out, err := New(nil).Render(context.Background(), in)
	require.NoError(t, err)

	var doc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties struct {
				Time []string `json:"time"`
				Temp struct {
					Units  string     `json:"units"`
					Values []*float64 `json:"values"`
				} `json:"temp"`
			} `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(out.Data, &doc))
	assert.Equal(t, "FeatureCollection", doc.Type)
	require.Len(t, doc.Features, 1)
	// The face centre of the containing triangle.
	coords := doc.Features[0].Geometry.Coordinates
	require.Len(t, coords, 2)
	assert.InDelta(t, -70-1.0/3, coords[0], 1e-9)
	assert.InDelta(t, 41+1.0/3, coords[1], 1e-9)
	props := doc.Features[0].Properties
	assert.Len(t, props.Time, 3)
	assert.Equal(t, "degC", props.Temp.Units)
	require.Len(t, props.Temp.Values, 3)
	for step, v := range props.Temp.Values {
		require.NotNil(t, v)
		assert.Equal(t, ncfixture.UGridTemp(step, 0), *v)
	}
}

func TestGetFeatureInfo_OffMeshUsesNearestElement(t *testing.T) {
	f := load(t, ncfixture.UGrid(t, t.TempDir()), domain.UnstructuredMesh)
	job := gfiJob(domain.FormatCSV)
	// Far east of the mesh; node 2 (-69, 41) is closest and belongs only to face 2.
	job.BBox = domain.BBox{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}

	out, err := New(nil).Render(context.Background(), f.input(job, domain.Layer{VarName: "temp"}))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out.Data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "time,x,y,temp", lines[0])
	for step, line := range lines[1:] {
		cols := strings.Split(line, ",")
		require.Len(t, cols, 4)
		x, err := strconv.ParseFloat(cols[1], 64)
		require.NoError(t, err)
		y, err := strconv.ParseFloat(cols[2], 64)
		require.NoError(t, err)
		assert.InDelta(t, -69-1.0/3, x, 1e-9)
		assert.InDelta(t, 41+1.0/3, y, 1e-9)
		assert.Equal(t, strconv.FormatFloat(ncfixture.UGridTemp(step, 2), 'g', -1, 64), cols[3])
	}
}

func TestGetFeatureInfo_OffMeshNodeVariable(t *testing.T) {
	f := load(t, ncfixture.UGrid(t, t.TempDir()), domain.UnstructuredMesh)
	job := gfiJob(domain.FormatJSON)
	job.BBox = domain.BBox{MinX: -75, MinY: 44, MaxX: -74, MaxY: 45}
	job.TimeIndex = []int{0}

	out, err := New(nil).Render(context.Background(), f.input(job, domain.Layer{VarName: "zeta"}))
	require.NoError(t, err)
	var doc struct {
		Features []struct {
			Geometry struct {
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]json.RawMessage `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(out.Data, &doc))
	require.Len(t, doc.Features, 1)
	// North-west of the mesh: node 6 (-71, 43).
	assert.Equal(t, []float64{-71, 43}, doc.Features[0].Geometry.Coordinates)
	var zeta struct {
		Values []*float64 `json:"values"`
	}
	require.NoError(t, json.Unmarshal(doc.Features[0].Properties["zeta"], &zeta))
	require.Len(t, zeta.Values, 1)
	require.NotNil(t, zeta.Values[0])
	assert.Equal(t, ncfixture.UGridZeta(0, 6), *zeta.Values[0])
}

func TestGetMetadata_MinMax(t *testing.T) {
	f := load(t, ncfixture.UGrid(t, t.TempDir()), domain.UnstructuredMesh)
	job := mapJob(meshBBox, 64, 64, "pcolor_jet")
	job.Operation = domain.OpGetMetadata
	job.Item = "minmax"

	out, err := New(nil).Render(context.Background(), f.input(job, domain.Layer{VarName: "temp"}))
	require.NoError(t, err)
	var mm MinMax
	require.NoError(t, json.Unmarshal(out.Data, &mm))
	require.NotNil(t, mm.Min)
	require.NotNil(t, mm.Max)
	assert.Equal(t, ncfixture.UGridTemp(2, 0), *mm.Min)
	assert.Equal(t, ncfixture.UGridTemp(2, ncfixture.FaceCount-1), *mm.Max)

	job.BBox = domain.BBox{MinX: 10, MinY: 10, MaxX: 11, MaxY: 11}
	out, err = New(nil).Render(context.Background(), f.input(job, domain.Layer{VarName: "temp"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"min":null,"max":null}`, string(out.Data))

	job.Item = "timesteps"
	_, err = New(nil).Render(context.Background(), f.input(job, domain.Layer{VarName: "temp"}))
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}
