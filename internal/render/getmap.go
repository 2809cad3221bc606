package render

import (
	"context"
	"fmt"
	"math"

	"github.com/RoaringBitmap/roaring"

	"go.ngs.io/ocean-wms/internal/adapter/store/variables"
	"go.ngs.io/ocean-wms/internal/domain"
)

const contentTypePNG = "image/png"

func (e *Engine) getMap(ctx context.Context, in Input) (Output, error) {
	job := in.Job
	vw, err := newView(in)
	if err != nil {
		return Output{}, err
	}
	if !vw.visible() {
		c := newCanvas(job.Width, job.Height, true)
		data, err := c.png()
		return Output{Data: data, ContentType: contentTypePNG}, err
	}

	c := newCanvas(job.Width, job.Height, job.Transparent)
	timeIdx := mapTimeIndex(job)
	for i, l := range in.Layers {
		style := l.DefaultStyle()
		if job.Style != nil {
			style = *job.Style
		}
		cmap, ok := LookupColormap(style.Colormap)
		if !ok {
			return Output{}, domain.ValidationError("styles", "unknown colormap %q", style.Colormap)
		}
		p := paint{canvas: c, view: vw, cmap: cmap, explicit: job.ColorRange, defaults: in.defaults(i), log: in.logScale(i)}

		if style.PlotType == domain.PlotVectors {
			err = e.drawVectors(ctx, in, l, timeIdx, p)
		} else {
			err = e.drawScalar(ctx, in, l, timeIdx, style.PlotType, p)
		}
		if err != nil {
			return Output{}, err
		}
	}
	if err := alive(ctx); err != nil {
		return Output{}, err
	}
	data, err := c.png()
	if err != nil {
		return Output{}, err
	}
	return Output{Data: data, ContentType: contentTypePNG}, nil
}

type paint struct {
	canvas   *canvas
	view     *view
	cmap     Colormap
	explicit *[2]float64
	defaults domain.LayerDefaults
	log      bool
}

func (p paint) scale(values []float64) (Scale, bool) {
	return ResolveScale(p.explicit, p.defaults, p.log, values)
}

func numContours(job *domain.RenderJob) int {
	if job.NumContours != nil && *job.NumContours > 0 {
		return *job.NumContours
	}
	return DefaultNumContours
}

func (e *Engine) drawScalar(ctx context.Context, in Input, l domain.Layer, timeIdx int, plot domain.PlotType, p paint) error {
	field, err := scalarField(ctx, in, l, timeIdx)
	if err != nil {
		return err
	}
	if plot == domain.PlotFacets {
		return drawFacets(ctx, in, field, p)
	}

	r, err := sample(ctx, p.view, newSampler(in.Topology, field, plot != domain.PlotPcolor))
	if err != nil {
		return err
	}
	scale, ok := p.scale(r.v)
	if !ok {
		return nil
	}
	n := numContours(in.Job)
	for y := 0; y < r.h; y++ {
		for x := 0; x < r.w; x++ {
			v := r.at(x, y)
			switch plot {
			case domain.PlotPcolor:
				if t, ok := scale.Normalize(v); ok {
					p.canvas.set(x, y, p.cmap(t))
				}
			case domain.PlotFilledContours:
				if b, ok := scale.Band(v, n); ok {
					p.canvas.set(x, y, p.cmap((float64(b)+0.5)/float64(n)))
				}
			case domain.PlotContours:
				if level, ok := contourLevel(r, scale, n, x, y); ok {
					p.canvas.set(x, y, p.cmap(float64(level)/float64(n)))
				}
			}
		}
	}
	return nil
}

// contourLevel reports whether a level boundary passes between a pixel and its right or
// lower neighbour, and which level it is.
func contourLevel(r *raster, scale Scale, n, x, y int) (int, bool) {
	b, ok := scale.Band(r.at(x, y), n)
	if !ok {
		return 0, false
	}
	for _, nb := range [][2]int{{x + 1, y}, {x, y + 1}} {
		if nb[0] >= r.w || nb[1] >= r.h {
			continue
		}
		if b2, ok := scale.Band(r.at(nb[0], nb[1]), n); ok && b2 != b {
			return max(b, b2), true
		}
	}
	return 0, false
}

type mark struct {
	x, y float64
	v    float64
	u, w float64 // Vector components.
}

// visibleMarks collects the elements that land on the image, keeping every step-th one.
// Node-located marks on indexed topologies only visit the index candidates.
func visibleMarks(ctx context.Context, vw *view, loc variables.Location, step int, value func(i int) mark) ([]mark, error) {
	xs, ys := positions(vw.topo, loc)
	var (
		out  []mark
		seen int
		iter roaring.IntIterable
	)
	n := len(xs)
	if loc != variables.OnFace && len(xs) == len(vw.topo.NodeX) {
		if cand, ok := vw.topo.Candidates(vw.ext); ok {
			n, iter = int(cand.GetCardinality()), cand.Iterator()
		}
	}
	for k := 0; k < n; k++ {
		i := k
		if iter != nil {
			i = int(iter.Next())
		}
		if k%4096 == 0 {
			if err := alive(ctx); err != nil {
				return nil, err
			}
		}
		px, py, ok := vw.pixel(xs[i], ys[i])
		if !ok {
			continue
		}
		seen++
		if (seen-1)%step != 0 {
			continue
		}
		m := value(i)
		if math.IsNaN(m.v) {
			continue
		}
		m.x, m.y = px, py
		out = append(out, m)
	}
	return out, nil
}

func markValues(marks []mark) []float64 {
	values := make([]float64, len(marks))
	for i, m := range marks {
		values[i] = m.v
	}
	return values
}

func fieldValue(values []float64, i int) float64 {
	if i < len(values) {
		return values[i]
	}
	return math.NaN()
}

// drawFacets places a marker on every visible element colored by its value.
func drawFacets(ctx context.Context, in Input, field *variables.Field, p paint) error {
	marks, err := visibleMarks(ctx, p.view, field.Location, 1, func(i int) mark {
		return mark{v: fieldValue(field.Values, i)}
	})
	if err != nil {
		return err
	}
	scale, ok := p.scale(markValues(marks))
	if !ok {
		return nil
	}
	for _, m := range marks {
		if t, ok := scale.Normalize(m.v); ok {
			p.canvas.marker(m.x, m.y, 1, p.cmap(t))
		}
	}
	return nil
}

// drawVectors draws an arrow per visible element, subsampled by the vector step. Arrow
// length is proportional to speed with the fastest arrow spanning width/vectorscale pixels.
func (e *Engine) drawVectors(ctx context.Context, in Input, l domain.Layer, timeIdx int, p paint) error {
	names := l.Constituents()
	if len(names) < 2 {
		return domain.ValidationError("styles", "layer %s has no vector components", l.VarName)
	}
	u, err := in.Source.Field(ctx, names[0], timeIdx)
	if err != nil {
		return err
	}
	v, err := in.Source.Field(ctx, names[1], timeIdx)
	if err != nil {
		return err
	}
	if len(u.Values) != len(v.Values) {
		return fmt.Errorf("vector components %s and %s are not on the same grid", u.Name, v.Name)
	}

	job := in.Job
	step := DefaultVectorStep
	if job.VectorStep != nil && *job.VectorStep > 0 {
		step = *job.VectorStep
	}
	vscale := DefaultVectorScale
	if job.VectorScale != nil && *job.VectorScale > 0 {
		vscale = *job.VectorScale
	}

	marks, err := visibleMarks(ctx, p.view, u.Location, step, func(i int) mark {
		uu, vv := fieldValue(u.Values, i), fieldValue(v.Values, i)
		return mark{v: math.Hypot(uu, vv), u: uu, w: vv}
	})
	if err != nil {
		return err
	}
	speeds := markValues(marks)
	scale, ok := p.scale(speeds)
	if !ok {
		return nil
	}
	_, fastest, _ := DataRange(speeds, false)
	maxLen := float64(job.Width) / vscale
	for _, m := range marks {
		t, ok := scale.Normalize(m.v)
		if !ok {
			continue
		}
		var dx, dy float64
		if m.v > 0 && fastest > 0 {
			length := maxLen * m.v / fastest
			dx, dy = m.u/m.v*length, -m.w/m.v*length
		}
		p.canvas.arrow(m.x, m.y, dx, dy, p.cmap(t))
	}
	return nil
}
