// Package variables reads variable values laid out on a dataset topology.
package variables

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"go.ngs.io/ocean-wms/internal/adapter/ncfile"
	"go.ngs.io/ocean-wms/internal/adapter/store/topology"
	"go.ngs.io/ocean-wms/internal/domain"
)

// Location is where a variable's values sit on the grid.
type Location int

// Value locations.
const (
	Unlocated Location = iota
	OnNode
	OnFace
	OnGrid
)

func (l Location) String() string {
	switch l {
	case OnNode:
		return "node"
	case OnFace:
		return "face"
	case OnGrid:
		return "grid"
	}
	return "unlocated"
}

// Field is one variable at one time and depth. Grid values are row-major with rows
// ascending in latitude; missing values are NaN.
type Field struct {
	Name     string
	Location Location
	Values   []float64
	Time     time.Time
}

// Series is one variable's values at a located element, one per requested step.
type Series struct {
	Location Location
	Values   []float64
}

// At returns the value of the field for a located element, or NaN.
func (f *Field) At(t *topology.Topology, el topology.Element) float64 {
	idx := -1
	switch f.Location {
	case OnNode:
		idx = el.Node
	case OnFace:
		idx = el.Face
	case OnGrid:
		if el.J >= 0 && el.I >= 0 {
			idx = el.J*t.NX + el.I
		}
	}
	if idx < 0 || idx >= len(f.Values) {
		return math.NaN()
	}
	return f.Values[idx]
}

// Reader reads fields from dataset files.
type Reader struct {
	logger *slog.Logger
}

// NewReader creates a reader.
func NewReader(logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{logger: logger.With("component", "variables")}
}

// Locate returns where a variable's values sit.
func Locate(t *topology.Topology, v *ncfile.VarInfo) Location {
	switch {
	case t.Structured() && v.HasDim(t.YDim) && v.HasDim(t.XDim):
		return OnGrid
	case t.NodeDim != "" && v.HasDim(t.NodeDim):
		return OnNode
	case t.FaceDim != "" && v.HasDim(t.FaceDim):
		return OnFace
	}
	return Unlocated
}

// selection fixes the index of every non-spatial dimension.
type selection struct {
	time, depth int
}

// hyperslab builds start/count for a variable; spatial dims are read whole unless pinned.
func hyperslab(t *topology.Topology, v *ncfile.VarInfo, sel selection, pin map[string]int) ([]int, []int) {
	start := make([]int, len(v.Dims))
	count := make([]int, len(v.Dims))
	for i, d := range v.Dims {
		count[i] = 1
		switch d {
		case t.TimeDim:
			start[i] = clamp(sel.time, v.Shape[i])
		case t.DepthDim:
			start[i] = clamp(sel.depth, v.Shape[i])
		case t.NodeDim, t.FaceDim, t.YDim, t.XDim:
			if p, ok := pin[d]; ok {
				start[i] = p
			} else {
				count[i] = v.Shape[i]
			}
		}
	}
	return start, count
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// Read returns a variable at a time step and depth level.
func (r *Reader) Read(ctx context.Context, ds domain.Dataset, t *topology.Topology, name string, timeIdx, depthIdx int) (*Field, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := ncfile.Open(ds.URI)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	v := f.Header.Var(name)
	if v == nil {
		return nil, fmt.Errorf("variable %s not found in %s", name, ds.Slug)
	}
	loc := Locate(t, v)
	if loc == Unlocated {
		return nil, fmt.Errorf("variable %s is not defined on the %s grid", name, t.Variant)
	}
	start, count := hyperslab(t, v, selection{time: timeIdx, depth: depthIdx}, nil)
	values, err := f.Slice(name, start, count)
	if err != nil {
		return nil, err
	}
	if loc == OnGrid {
		values = normalizeGrid(t, v, values)
	}
	field := &Field{Name: name, Location: loc, Values: values}
	if v.HasDim(t.TimeDim) && len(t.Times) > 0 {
		field.Time = t.Times[clamp(timeIdx, len(t.Times))]
	}
	return field, nil
}

// Series reads a variable at one element for each requested time step.
func (r *Reader) Series(ctx context.Context, ds domain.Dataset, t *topology.Topology, name string, el topology.Element, timeIdxs []int, depthIdx int) (*Series, error) {
	f, err := ncfile.Open(ds.URI)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	v := f.Header.Var(name)
	if v == nil {
		return nil, fmt.Errorf("variable %s not found in %s", name, ds.Slug)
	}
	pin := map[string]int{}
	loc := Locate(t, v)
	switch loc {
	case OnNode:
		pin[t.NodeDim] = el.Node
	case OnFace:
		pin[t.FaceDim] = el.Face
	case OnGrid:
		pin[t.YDim], pin[t.XDim] = t.SourceRow(el.J), el.I
	default:
		return nil, fmt.Errorf("variable %s is not defined on the %s grid", name, t.Variant)
	}
	for d, idx := range pin {
		if idx < 0 {
			return nil, fmt.Errorf("no %s element for variable %s", d, name)
		}
	}
	if len(timeIdxs) == 0 || !v.HasDim(t.TimeDim) {
		timeIdxs = []int{0}
	}
	out := make([]float64, 0, len(timeIdxs))
	for _, ti := range timeIdxs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start, count := hyperslab(t, v, selection{time: ti, depth: depthIdx}, pin)
		vals, err := f.Slice(name, start, count)
		if err != nil {
			return nil, err
		}
		out = append(out, vals[0])
	}
	return &Series{Location: loc, Values: out}, nil
}

// normalizeGrid reorders a (y, x) or (x, y) slab to row-major, ascending-latitude order.
func normalizeGrid(t *topology.Topology, v *ncfile.VarInfo, values []float64) []float64 {
	yPos, xPos := -1, -1
	for i, d := range v.Dims {
		switch d {
		case t.YDim:
			yPos = i
		case t.XDim:
			xPos = i
		}
	}
	ny, nx := t.NY, t.NX
	if xPos < yPos {
		transposed := make([]float64, len(values))
		for i := 0; i < nx; i++ {
			for j := 0; j < ny; j++ {
				transposed[j*nx+i] = values[i*ny+j]
			}
		}
		values = transposed
	}
	if t.LatDescending {
		for j := 0; j < ny/2; j++ {
			a, b := values[j*nx:(j+1)*nx], values[(ny-1-j)*nx:(ny-j)*nx]
			for i := range a {
				a[i], b[i] = b[i], a[i]
			}
		}
	}
	return values
}

// Tide synthesizes the elevation described by an amplitude variable and its phase
// companion at an instant.
func (r *Reader) Tide(ctx context.Context, ds domain.Dataset, t *topology.Topology, ampName string, at time.Time) (*Field, error) {
	f, err := ncfile.Open(ds.URI)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	amp := f.Header.Var(ampName)
	if amp == nil {
		return nil, fmt.Errorf("variable %s not found in %s", ampName, ds.Slug)
	}
	pha := PhaseCompanion(f.Header, amp)
	if pha == nil {
		return nil, fmt.Errorf("no phase variable pairs with %s", ampName)
	}
	loc := Locate(t, amp)
	if loc == Unlocated || len(amp.Dims) != 2 || amp.Dims[0] != t.ConstituentDim {
		return nil, fmt.Errorf("variable %s is not laid out as (%s, element)", ampName, t.ConstituentDim)
	}
	amps, err := f.Float64s(amp.Name)
	if err != nil {
		return nil, err
	}
	phases, err := f.Float64s(pha.Name)
	if err != nil {
		return nil, err
	}
	nc, n := amp.Shape[0], amp.Shape[1]
	if len(phases) != len(amps) {
		return nil, fmt.Errorf("%s and %s differ in size", amp.Name, pha.Name)
	}

	speeds := make([]float64, nc)
	for c := 0; c < nc && c < len(t.Constituents); c++ {
		s, ok := domain.ConstituentSpeed(t.Constituents[c])
		if !ok {
			r.logger.Warn("skipping unknown constituent", "dataset", ds.Slug, "constituent", t.Constituents[c])
			speeds[c] = math.NaN()
			continue
		}
		speeds[c] = s
	}

	params := domain.HarmonicParams{Reference: HarmonicEpoch}
	values := make([]float64, n)
	harmonics := make([]domain.Harmonic, 0, nc)
	for e := 0; e < n; e++ {
		if e%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		harmonics = harmonics[:0]
		for c := 0; c < nc; c++ {
			a, p := amps[c*n+e], phases[c*n+e]
			if math.IsNaN(speeds[c]) || math.IsNaN(a) || math.IsNaN(p) {
				continue
			}
			harmonics = append(harmonics, domain.Harmonic{
				Name: t.Constituents[c], Amplitude: a, PhaseDeg: p, SpeedDegPerHr: speeds[c],
			})
		}
		if len(harmonics) == 0 {
			values[e] = math.NaN()
			continue
		}
		values[e] = domain.Synthesize(at, harmonics, params)
	}
	return &Field{Name: ampName, Location: loc, Values: values, Time: at}, nil
}

// HarmonicEpoch is the instant harmonic phases are referenced to.
var HarmonicEpoch = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// PhaseCompanion finds the phase variable paired with an amplitude variable.
func PhaseCompanion(h *ncfile.Header, amp *ncfile.VarInfo) *ncfile.VarInfo {
	if std := amp.Attr("standard_name"); strings.Contains(std, "amplitude") {
		if v := h.FindStdName(strings.Replace(std, "amplitude", "phase", 1)); v != nil {
			return v
		}
	}
	for _, suffix := range [][2]string{{"amp", "phase"}, {"amp", "pha"}, {"_amplitude", "_phase"}} {
		if strings.HasSuffix(amp.Name, suffix[0]) {
			if v := h.Var(strings.TrimSuffix(amp.Name, suffix[0]) + suffix[1]); v != nil {
				return v
			}
		}
	}
	return nil
}

// IsTideAmplitude reports whether a variable is the amplitude half of a tide pair.
func IsTideAmplitude(h *ncfile.Header, v *ncfile.VarInfo) bool {
	return PhaseCompanion(h, v) != nil
}
