// Package topology builds, caches and queries the connectivity and coordinate structure
// of grid datasets.
package topology

import (
	"math"
	"sort"
	"time"

	"github.com/RoaringBitmap/roaring"
	"github.com/go-spatial/geom"

	"go.ngs.io/ocean-wms/internal/adapter/geo"
	"go.ngs.io/ocean-wms/internal/adapter/interp"
	"go.ngs.io/ocean-wms/internal/domain"
)

// Topology is the parsed structure of one dataset version.
//
// Unstructured meshes store their nodes and triangulated faces. Curvilinear grids are
// stored the same way with one node per grid point (id j*NX+i) and two triangles per cell.
// Rectilinear grids keep only their 1-D axes.
type Topology struct {
	Dataset       string
	Variant       domain.TypeVariant
	SourceModTime int64 // Unix nanoseconds of the source file at build time.

	NodeX, NodeY []float64
	Tris         [][3]int32
	TriFace      []int32 // Original face of each triangle; quads contribute two.
	FaceX, FaceY []float64
	NodeDim      string
	FaceDim      string

	NY, NX        int
	YDim, XDim    string
	LonAxis       []float64 // Ascending.
	LatAxis       []float64 // Ascending.
	LatDescending bool      // Source rows run north to south.

	Envelope geom.Extent

	TimeDim string
	Times   []time.Time

	DepthDim      string
	Depths        []float64
	DepthPositive string

	ConstituentDim string
	Constituents   []string

	Index *SpatialIndex
}

// Element identifies the grid element under a point. Structured rows count from the
// southernmost row.
type Element struct {
	Tri  int // Triangle id, or -1.
	Face int // Original mesh face, or -1.
	Node int // Nearest node (mesh) or grid point (curvilinear), or -1.
	J, I int // Structured cell, or -1.
}

// HasMesh reports whether the topology is node/triangle based.
func (t *Topology) HasMesh() bool { return len(t.NodeX) > 0 }

// Structured reports whether values are laid out on a (y, x) grid.
func (t *Topology) Structured() bool {
	return t.Variant == domain.StructuredCurvilinear || t.Variant == domain.StructuredRectilinear
}

// NumFaces returns the number of original mesh faces.
func (t *Topology) NumFaces() int { return len(t.FaceX) }

// EnvelopeExtent returns a copy of the envelope.
func (t *Topology) EnvelopeExtent() *geom.Extent {
	e := t.Envelope
	return &e
}

// NativeLon converts a longitude to the dataset's convention.
func (t *Topology) NativeLon(lon float64) float64 {
	return geo.LonForAxis(t.Envelope.MinX(), t.Envelope.MaxX(), lon)
}

// Contains reports whether a lon/lat point falls inside the envelope.
func (t *Topology) Contains(lon, lat float64) bool {
	return t.Envelope.ContainsPoint([2]float64{t.NativeLon(lon), lat})
}

// Intersects reports whether a lon/lat extent overlaps the envelope.
func (t *Topology) Intersects(ext *geom.Extent) bool {
	lo, hi := t.NativeLon(ext.MinX()), t.NativeLon(ext.MaxX())
	if hi < lo {
		// Wrapped request; compare in the request's own convention.
		lo, hi = ext.MinX(), ext.MaxX()
	}
	native := geom.NewExtent([2]float64{lo, ext.MinY()}, [2]float64{hi, ext.MaxY()})
	_, ok := t.Envelope.Intersect(native)
	return ok
}

// Candidates returns the ids of nodes that may lie inside a lon/lat extent. It reports
// false when the index cannot narrow the search, as for rectilinear grids or requests that
// wrap the dataset's longitude seam.
func (t *Topology) Candidates(ext *geom.Extent) (*roaring.Bitmap, bool) {
	if t.Index == nil || !t.HasMesh() {
		return nil, false
	}
	lo, hi := t.NativeLon(ext.MinX()), t.NativeLon(ext.MaxX())
	if hi < lo {
		return nil, false
	}
	return t.Index.PointsIn(geom.NewExtent([2]float64{lo, ext.MinY()}, [2]float64{hi, ext.MaxY()})), true
}

// Triangle returns triangle id with vertex coordinates and the given node values.
func (t *Topology) Triangle(id int, values func(node int) float64) interp.Triangle {
	var tr interp.Triangle
	for k, n := range t.Tris[id] {
		tr.X[k], tr.Y[k] = t.NodeX[n], t.NodeY[n]
		if values != nil {
			tr.V[k] = values(int(n))
		}
	}
	return tr
}

// ContainingTriangle finds the triangle containing a native point.
func (t *Topology) ContainingTriangle(x, y float64) (int, bool) {
	if t.Index == nil || len(t.Tris) == 0 {
		return -1, false
	}
	it := t.Index.TrianglesAt(x, y).Iterator()
	for it.HasNext() {
		id := int(it.Next())
		if t.Triangle(id, nil).Contains(x, y) {
			return id, true
		}
	}
	return -1, false
}

// NearestNode returns the node closest to a native point.
func (t *Topology) NearestNode(x, y float64) (int, bool) {
	if t.Index == nil {
		return -1, false
	}
	return t.Index.Nearest(x, y, t.NodeX, t.NodeY)
}

// Locate finds the element under a lon/lat point. ok is false outside the grid.
func (t *Topology) Locate(lon, lat float64) (Element, bool) {
	x, y := t.NativeLon(lon), lat
	el := Element{Tri: -1, Face: -1, Node: -1, J: -1, I: -1}
	if !t.Envelope.ContainsPoint([2]float64{x, y}) {
		return el, false
	}
	if t.Variant == domain.StructuredRectilinear {
		el.J = interp.NearestIndex(t.LatAxis, y)
		el.I = interp.NearestIndex(t.LonAxis, x)
		return el, true
	}
	tri, inside := t.ContainingTriangle(x, y)
	if !inside {
		return el, false
	}
	el.Tri = tri
	el.Face = int(t.TriFace[tri])
	bestD := math.Inf(1)
	for _, n := range t.Tris[tri] {
		if d := math.Hypot(t.NodeX[n]-x, t.NodeY[n]-y); d < bestD {
			el.Node, bestD = int(n), d
		}
	}
	if t.Variant == domain.StructuredCurvilinear {
		el.J, el.I = el.Node/t.NX, el.Node%t.NX
	}
	return el, true
}

// Nearest returns the element under a lon/lat point, or the closest one when no element
// contains it: the nearest node and the adjoining face whose centre is closest on meshes,
// the nearest row and column on rectilinear grids.
func (t *Topology) Nearest(lon, lat float64) (Element, bool) {
	if el, ok := t.Locate(lon, lat); ok {
		return el, true
	}
	x, y := t.NativeLon(lon), lat
	el := Element{Tri: -1, Face: -1, Node: -1, J: -1, I: -1}
	if t.Variant == domain.StructuredRectilinear {
		if len(t.LonAxis) == 0 || len(t.LatAxis) == 0 {
			return el, false
		}
		el.J = interp.NearestIndex(t.LatAxis, y)
		el.I = interp.NearestIndex(t.LonAxis, x)
		return el, true
	}
	n, ok := t.NearestNode(x, y)
	if !ok {
		return el, false
	}
	el.Node = n
	el.Tri, el.Face = t.faceAround(n, x, y)
	if t.Variant == domain.StructuredCurvilinear {
		el.J, el.I = n/t.NX, n%t.NX
	}
	return el, true
}

// faceAround returns the triangle and face touching node n whose centre is closest to
// (x, y). Every such triangle is listed in the bin holding the node.
func (t *Topology) faceAround(n int, x, y float64) (int, int) {
	tri, face, bestD := -1, -1, math.Inf(1)
	it := t.Index.TrianglesAt(t.NodeX[n], t.NodeY[n]).Iterator()
	for it.HasNext() {
		id := int(it.Next())
		corners := t.Tris[id]
		if int(corners[0]) != n && int(corners[1]) != n && int(corners[2]) != n {
			continue
		}
		f := int(t.TriFace[id])
		cx, cy := t.FaceCenter(id)
		if d := math.Hypot(cx-x, cy-y); d < bestD {
			tri, face, bestD = id, f, d
		}
	}
	return tri, face
}

// FaceCenter returns the centre of the face owning triangle id: the stored face centre
// when there is one, else the triangle centroid.
func (t *Topology) FaceCenter(id int) (float64, float64) {
	if f := int(t.TriFace[id]); f < len(t.FaceX) && !math.IsNaN(t.FaceX[f]) {
		return t.FaceX[f], t.FaceY[f]
	}
	var cx, cy float64
	for _, n := range t.Tris[id] {
		cx += t.NodeX[n]
		cy += t.NodeY[n]
	}
	return cx / 3, cy / 3
}

// SourceRow maps an ascending-latitude row to the row index used in the file.
func (t *Topology) SourceRow(j int) int {
	if t.LatDescending {
		return t.NY - 1 - j
	}
	return j
}

// NearestTime returns the index of the step closest to want.
func (t *Topology) NearestTime(want time.Time) int {
	if len(t.Times) == 0 {
		return 0
	}
	i := sort.Search(len(t.Times), func(i int) bool { return !t.Times[i].Before(want) })
	switch {
	case i == 0:
		return 0
	case i == len(t.Times):
		return len(t.Times) - 1
	case want.Sub(t.Times[i-1]) <= t.Times[i].Sub(want):
		return i - 1
	default:
		return i
	}
}

// TimeRange returns the indexes of steps within [start, end].
func (t *Topology) TimeRange(start, end time.Time) []int {
	var out []int
	for i, ts := range t.Times {
		if !ts.Before(start) && !ts.After(end) {
			out = append(out, i)
		}
	}
	return out
}

// LatestTime returns the index of the most recent step.
func (t *Topology) LatestTime() int {
	if len(t.Times) == 0 {
		return 0
	}
	return len(t.Times) - 1
}

// SurfaceIndex returns the depth level closest to the surface.
func (t *Topology) SurfaceIndex() int {
	if len(t.Depths) == 0 {
		return 0
	}
	best := 0
	for i, d := range t.Depths {
		if t.DepthPositive == "up" {
			if d > t.Depths[best] {
				best = i
			}
		} else if math.Abs(d) < math.Abs(t.Depths[best]) {
			best = i
		}
	}
	return best
}

// NearestDepth returns the level closest to an elevation.
func (t *Topology) NearestDepth(elevation float64) int {
	best, bestD := 0, math.Inf(1)
	for i, d := range t.Depths {
		if diff := math.Abs(d - elevation); diff < bestD {
			best, bestD = i, diff
		}
	}
	return best
}
