// Package render turns render jobs into map images, feature tables and metadata.
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/go-spatial/geom"

	"go.ngs.io/ocean-wms/internal/adapter/geo"
	"go.ngs.io/ocean-wms/internal/adapter/interp"
	"go.ngs.io/ocean-wms/internal/adapter/store/topology"
	"go.ngs.io/ocean-wms/internal/adapter/store/variables"
	"go.ngs.io/ocean-wms/internal/domain"
)

// Rendering defaults.
const (
	DefaultNumContours = 8
	DefaultVectorScale = 30.0 // Longest arrow spans width/scale pixels.
	DefaultVectorStep  = 1
)

// FieldSource supplies variable values for the job's dataset at the job's depth.
type FieldSource interface {
	Field(ctx context.Context, name string, timeIdx int) (*variables.Field, error)
	Series(ctx context.Context, name string, el topology.Element, timeIdxs []int) (*variables.Series, error)
}

// Input is everything a render needs.
type Input struct {
	Job      *domain.RenderJob
	Topology *topology.Topology
	Layers   []domain.Layer
	Defaults []domain.LayerDefaults // Parallel to Layers.
	Times    []time.Time            // Instants of Job.TimeIndex.
	Source   FieldSource
}

func (in Input) defaults(i int) domain.LayerDefaults {
	if i < len(in.Defaults) {
		return in.Defaults[i]
	}
	return domain.LayerDefaults{}
}

func (in Input) logScale(i int) bool {
	if in.Job.LogScale != nil {
		return *in.Job.LogScale
	}
	if d := in.defaults(i); d.LogScale != nil {
		return *d.LogScale
	}
	return false
}

// Output is a rendered artifact.
type Output struct {
	Data        []byte
	ContentType string
}

// Engine renders jobs.
type Engine struct {
	logger *slog.Logger
}

// New creates an engine.
func New(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger.With("component", "render")}
}

// Render executes a GetMap, GetFeatureInfo or GetMetadata job. An expired context yields a
// render_timeout error.
func (e *Engine) Render(ctx context.Context, in Input) (Output, error) {
	if in.Job == nil || in.Topology == nil || in.Source == nil {
		return Output{}, errors.New("incomplete render input")
	}
	if len(in.Layers) == 0 {
		return Output{}, domain.ValidationError("layers", "no layers to render")
	}
	var (
		out Output
		err error
	)
	switch in.Job.Operation {
	case domain.OpGetMap:
		out, err = e.getMap(ctx, in)
	case domain.OpGetFeatureInfo:
		out, err = e.featureInfo(ctx, in)
	case domain.OpGetMetadata:
		out, err = e.metadata(ctx, in)
	default:
		return Output{}, domain.ValidationError("request", "operation %s does not render", in.Job.Operation)
	}
	if err != nil {
		return Output{}, asTimeout(err)
	}
	return out, nil
}

func asTimeout(err error) error {
	if domain.KindOf(err) == "" && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
		return domain.TimeoutError(err)
	}
	return err
}

func alive(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return domain.TimeoutError(err)
	}
	return nil
}

// view relates image pixels to native dataset coordinates.
type view struct {
	job    *domain.RenderJob
	topo   *topology.Topology
	mapper geo.PixelMapper
	ext    *geom.Extent // Request bbox in lon/lat.
}

func newView(in Input) (*view, error) {
	ext, err := geo.ExtentToLonLat(in.Job.CRS, in.Job.BBox)
	if err != nil {
		return nil, domain.ValidationError("crs", "%v", err)
	}
	return &view{
		job:    in.Job,
		topo:   in.Topology,
		mapper: geo.PixelMapper{BBox: in.Job.BBox, Width: in.Job.Width, Height: in.Job.Height},
		ext:    ext,
	}, nil
}

func (v *view) visible() bool { return v.topo.Intersects(v.ext) }

// native returns the dataset lon/lat at the centre of a pixel.
func (v *view) native(px, py int) (float64, float64, bool) {
	x, y := v.mapper.Center(px, py)
	lon, lat, err := geo.ToLonLat(v.job.CRS, x, y)
	if err != nil {
		return 0, 0, false
	}
	return v.topo.NativeLon(lon), lat, true
}

// pixel returns the image position of a dataset lon/lat and whether it is on the image.
func (v *view) pixel(lon, lat float64) (float64, float64, bool) {
	lon = geo.LonForAxis(v.ext.MinX(), v.ext.MaxX(), lon)
	x, y, err := geo.FromLonLat(v.job.CRS, lon, lat)
	if err != nil {
		return 0, 0, false
	}
	px, py := v.mapper.Pixel(x, y)
	return px, py, px >= 0 && py >= 0 && px < float64(v.mapper.Width) && py < float64(v.mapper.Height)
}

// sampler evaluates a field at a native point; NaN means no data.
type sampler func(lon, lat float64) float64

// newSampler builds the per-pixel lookup for a field. Smooth samplers interpolate between
// nodes; raw samplers return cell values.
func newSampler(t *topology.Topology, f *variables.Field, smooth bool) sampler {
	if t.Variant == domain.StructuredRectilinear {
		var grid *interp.Grid2D
		if smooth {
			g := &interp.Grid2D{X: t.LonAxis, Y: t.LatAxis, Values: f.Values}
			if g.Validate() == nil {
				grid = g
			}
		}
		return func(lon, lat float64) float64 {
			el, ok := t.Locate(lon, lat)
			if !ok {
				return math.NaN()
			}
			if grid != nil {
				if v, ok := grid.InterpolateAt(lon, lat); ok {
					return v
				}
			}
			return f.At(t, el)
		}
	}

	value := func(i int) float64 {
		if i < 0 || i >= len(f.Values) {
			return math.NaN()
		}
		return f.Values[i]
	}
	curvilinear := t.Variant == domain.StructuredCurvilinear
	return func(lon, lat float64) float64 {
		tri, ok := t.ContainingTriangle(lon, lat)
		if !ok {
			return math.NaN()
		}
		if f.Location == variables.OnFace {
			return value(int(t.TriFace[tri]))
		}
		tr := t.Triangle(tri, value)
		switch {
		case smooth:
			return interp.Barycentric(tr, lon, lat)
		case curvilinear:
			return nearestVertex(tr, lon, lat)
		default:
			return (tr.V[0] + tr.V[1] + tr.V[2]) / 3
		}
	}
}

func nearestVertex(tr interp.Triangle, x, y float64) float64 {
	best, bestD := 0, math.Inf(1)
	for k := range tr.X {
		if d := math.Hypot(tr.X[k]-x, tr.Y[k]-y); d < bestD {
			best, bestD = k, d
		}
	}
	return tr.V[best]
}

// raster holds one sampled value per pixel.
type raster struct {
	w, h int
	v    []float64
}

func (r *raster) at(x, y int) float64 { return r.v[y*r.w+x] }

func sample(ctx context.Context, vw *view, s sampler) (*raster, error) {
	r := &raster{w: vw.mapper.Width, h: vw.mapper.Height}
	r.v = make([]float64, r.w*r.h)
	for py := 0; py < r.h; py++ {
		if err := alive(ctx); err != nil {
			return nil, err
		}
		for px := 0; px < r.w; px++ {
			lon, lat, ok := vw.native(px, py)
			if !ok {
				r.v[py*r.w+px] = math.NaN()
				continue
			}
			r.v[py*r.w+px] = s(lon, lat)
		}
	}
	return r, nil
}

// positions returns the coordinates of the elements a field's values sit on.
func positions(t *topology.Topology, loc variables.Location) (xs, ys []float64) {
	switch loc {
	case variables.OnFace:
		return t.FaceX, t.FaceY
	case variables.OnNode:
		return t.NodeX, t.NodeY
	case variables.OnGrid:
		if len(t.NodeX) == t.NY*t.NX {
			return t.NodeX, t.NodeY
		}
		xs, ys = make([]float64, t.NY*t.NX), make([]float64, t.NY*t.NX)
		for j := 0; j < t.NY; j++ {
			for i := 0; i < t.NX; i++ {
				xs[j*t.NX+i], ys[j*t.NX+i] = t.LonAxis[i], t.LatAxis[j]
			}
		}
	}
	return xs, ys
}

// magnitude combines vector components into their speed.
func magnitude(u, v *variables.Field) (*variables.Field, error) {
	if len(u.Values) != len(v.Values) || u.Location != v.Location {
		return nil, fmt.Errorf("vector components %s and %s are not on the same grid", u.Name, v.Name)
	}
	out := &variables.Field{Name: u.Name + "," + v.Name, Location: u.Location, Time: u.Time, Values: make([]float64, len(u.Values))}
	for i := range u.Values {
		out.Values[i] = math.Hypot(u.Values[i], v.Values[i])
	}
	return out, nil
}

func mapTimeIndex(job *domain.RenderJob) int {
	if n := len(job.TimeIndex); n > 0 {
		return job.TimeIndex[n-1]
	}
	return 0
}

// scalarField loads a layer's field; virtual layers become their magnitude.
func scalarField(ctx context.Context, in Input, l domain.Layer, timeIdx int) (*variables.Field, error) {
	names := l.Constituents()
	if len(names) == 0 {
		return nil, domain.UnresolvableLayerError(l.VarName, nil)
	}
	f, err := in.Source.Field(ctx, names[0], timeIdx)
	if err != nil || len(names) < 2 {
		return f, err
	}
	g, err := in.Source.Field(ctx, names[1], timeIdx)
	if err != nil {
		return nil, err
	}
	return magnitude(f, g)
}
