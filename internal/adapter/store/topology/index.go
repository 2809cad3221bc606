package topology

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"

	"github.com/RoaringBitmap/roaring"
	"github.com/go-spatial/geom"
)

const maxBinsPerAxis = 256

// SpatialIndex buckets points and triangles into a uniform grid of bins over the envelope.
// Each bin holds a bitmap of point ids and a bitmap of triangle ids that overlap it.
type SpatialIndex struct {
	MinX, MinY float64
	BinW, BinH float64
	NX, NY     int

	points []*roaring.Bitmap
	tris   []*roaring.Bitmap
}

func binsFor(n int) int {
	b := int(math.Sqrt(float64(n) / 4))
	if b < 1 {
		return 1
	}
	if b > maxBinsPerAxis {
		return maxBinsPerAxis
	}
	return b
}

func newIndex(env *geom.Extent, n int) *SpatialIndex {
	nb := binsFor(n)
	w, h := env.XSpan(), env.YSpan()
	if w <= 0 {
		w = 1
	}
	if h <= 0 {
		h = 1
	}
	idx := &SpatialIndex{
		MinX: env.MinX(), MinY: env.MinY(),
		BinW: w / float64(nb), BinH: h / float64(nb),
		NX: nb, NY: nb,
		points: make([]*roaring.Bitmap, nb*nb),
		tris:   make([]*roaring.Bitmap, nb*nb),
	}
	for i := range idx.points {
		idx.points[i] = roaring.New()
		idx.tris[i] = roaring.New()
	}
	return idx
}

// buildIndex indexes points and triangles. NaN points are skipped.
func buildIndex(env *geom.Extent, xs, ys []float64, tris [][3]int32) *SpatialIndex {
	idx := newIndex(env, len(xs))
	for i := range xs {
		if math.IsNaN(xs[i]) || math.IsNaN(ys[i]) {
			continue
		}
		bx, by := idx.bin(xs[i], ys[i])
		idx.points[by*idx.NX+bx].Add(uint32(i)) //nolint:gosec // G115: element ids fit in uint32.
	}
	for t, tri := range tris {
		minX, minY := math.Inf(1), math.Inf(1)
		maxX, maxY := math.Inf(-1), math.Inf(-1)
		for _, n := range tri {
			minX, maxX = math.Min(minX, xs[n]), math.Max(maxX, xs[n])
			minY, maxY = math.Min(minY, ys[n]), math.Max(maxY, ys[n])
		}
		x0, y0 := idx.bin(minX, minY)
		x1, y1 := idx.bin(maxX, maxY)
		for by := y0; by <= y1; by++ {
			for bx := x0; bx <= x1; bx++ {
				idx.tris[by*idx.NX+bx].Add(uint32(t)) //nolint:gosec // G115: element ids fit in uint32.
			}
		}
	}
	for i := range idx.points {
		idx.points[i].RunOptimize()
		idx.tris[i].RunOptimize()
	}
	return idx
}

func (idx *SpatialIndex) bin(x, y float64) (int, int) {
	bx := int((x - idx.MinX) / idx.BinW)
	by := int((y - idx.MinY) / idx.BinH)
	return clamp(bx, 0, idx.NX-1), clamp(by, 0, idx.NY-1)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// TrianglesAt returns triangles whose bounding box overlaps the bin containing (x, y).
func (idx *SpatialIndex) TrianglesAt(x, y float64) *roaring.Bitmap {
	bx, by := idx.bin(x, y)
	return idx.tris[by*idx.NX+bx]
}

// PointsIn returns point ids in bins overlapping ext. The result is a superset of the
// points inside ext.
func (idx *SpatialIndex) PointsIn(ext *geom.Extent) *roaring.Bitmap {
	x0, y0 := idx.bin(ext.MinX(), ext.MinY())
	x1, y1 := idx.bin(ext.MaxX(), ext.MaxY())
	parts := make([]*roaring.Bitmap, 0, (x1-x0+1)*(y1-y0+1))
	for by := y0; by <= y1; by++ {
		for bx := x0; bx <= x1; bx++ {
			parts = append(parts, idx.points[by*idx.NX+bx])
		}
	}
	return roaring.FastOr(parts...)
}

// pointsInRing returns point ids in the square ring of bins at distance r from (bx, by).
func (idx *SpatialIndex) pointsInRing(bx, by, r int) *roaring.Bitmap {
	var parts []*roaring.Bitmap
	for y := by - r; y <= by+r; y++ {
		for x := bx - r; x <= bx+r; x++ {
			if x < 0 || y < 0 || x >= idx.NX || y >= idx.NY {
				continue
			}
			if r > 0 && x != bx-r && x != bx+r && y != by-r && y != by+r {
				continue
			}
			parts = append(parts, idx.points[y*idx.NX+x])
		}
	}
	return roaring.FastOr(parts...)
}

// Nearest returns the indexed point closest to (x, y).
func (idx *SpatialIndex) Nearest(x, y float64, xs, ys []float64) (int, bool) {
	bx, by := idx.bin(x, y)
	best, bestD := -1, math.Inf(1)
	maxR := idx.NX
	if idx.NY > maxR {
		maxR = idx.NY
	}
	for r := 0; r <= maxR; r++ {
		it := idx.pointsInRing(bx, by, r).Iterator()
		for it.HasNext() {
			i := int(it.Next())
			if d := math.Hypot(xs[i]-x, ys[i]-y); d < bestD {
				best, bestD = i, d
			}
		}
		// Unscanned rings lie at least r bins away.
		if best >= 0 && float64(r)*math.Min(idx.BinW, idx.BinH) >= bestD {
			break
		}
	}
	return best, best >= 0
}

type indexWire struct {
	MinX, MinY, BinW, BinH float64
	NX, NY                 int
	Points, Tris           [][]byte
}

// GobEncode serializes the bins with roaring's portable format.
func (idx *SpatialIndex) GobEncode() ([]byte, error) {
	w := indexWire{MinX: idx.MinX, MinY: idx.MinY, BinW: idx.BinW, BinH: idx.BinH, NX: idx.NX, NY: idx.NY}
	for i := range idx.points {
		p, err := idx.points[i].MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("marshal point bin %d: %w", i, err)
		}
		t, err := idx.tris[i].MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("marshal triangle bin %d: %w", i, err)
		}
		w.Points = append(w.Points, p)
		w.Tris = append(w.Tris, t)
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(w); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode restores an index written by GobEncode.
func (idx *SpatialIndex) GobDecode(data []byte) error {
	var w indexWire
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&w); err != nil {
		return err
	}
	if len(w.Points) != w.NX*w.NY || len(w.Tris) != w.NX*w.NY {
		return fmt.Errorf("index has %d/%d bins, want %d", len(w.Points), len(w.Tris), w.NX*w.NY)
	}
	*idx = SpatialIndex{MinX: w.MinX, MinY: w.MinY, BinW: w.BinW, BinH: w.BinH, NX: w.NX, NY: w.NY}
	idx.points = make([]*roaring.Bitmap, len(w.Points))
	idx.tris = make([]*roaring.Bitmap, len(w.Tris))
	for i := range w.Points {
		idx.points[i] = roaring.New()
		if err := idx.points[i].UnmarshalBinary(w.Points[i]); err != nil {
			return fmt.Errorf("unmarshal point bin %d: %w", i, err)
		}
		idx.tris[i] = roaring.New()
		if err := idx.tris[i].UnmarshalBinary(w.Tris[i]); err != nil {
			return fmt.Errorf("unmarshal triangle bin %d: %w", i, err)
		}
	}
	return nil
}
