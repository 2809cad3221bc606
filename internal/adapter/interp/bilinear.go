package interp

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Grid2D is a rectilinear field sampled on increasing X (longitude) and Y (latitude) axes.
// Values are row-major: Values[j*len(X)+i] is the value at (X[i], Y[j]).
type Grid2D struct {
	X      []float64
	Y      []float64
	Values []float64
}

// Validate checks axis ordering and the value count. Run it once before repeated
// InterpolateAt calls.
func (g *Grid2D) Validate() error {
	if len(g.X) < 2 || len(g.Y) < 2 {
		return fmt.Errorf("grid needs at least 2x2 points, got %dx%d", len(g.X), len(g.Y))
	}
	if want := len(g.X) * len(g.Y); len(g.Values) != want {
		return fmt.Errorf("grid has %d values, want %d", len(g.Values), want)
	}
	if !increasing(g.X) {
		return errors.New("grid x axis is not strictly increasing")
	}
	if !increasing(g.Y) {
		return errors.New("grid y axis is not strictly increasing")
	}
	return nil
}

func increasing(axis []float64) bool {
	for i := 1; i < len(axis); i++ {
		if !(axis[i] > axis[i-1]) {
			return false
		}
	}
	return true
}

// At returns the node value at column i, row j.
func (g *Grid2D) At(i, j int) float64 { return g.Values[j*len(g.X)+i] }

// InterpolateAt blends the four nodes around (x, y). It reports false outside the grid;
// a NaN node yields NaN.
func (g *Grid2D) InterpolateAt(x, y float64) (float64, bool) {
	i, ok := Locate(g.X, x)
	if !ok {
		return math.NaN(), false
	}
	j, ok := Locate(g.Y, y)
	if !ok {
		return math.NaN(), false
	}
	t := unit((x - g.X[i]) / (g.X[i+1] - g.X[i]))
	u := unit((y - g.Y[j]) / (g.Y[j+1] - g.Y[j]))
	v := (1-t)*(1-u)*g.At(i, j) +
		t*(1-u)*g.At(i+1, j) +
		(1-t)*u*g.At(i, j+1) +
		t*u*g.At(i+1, j+1)
	return v, true
}

func unit(v float64) float64 { return math.Max(0, math.Min(1, v)) }

// Locate returns i such that axis[i] <= v <= axis[i+1] on a strictly increasing axis.
func Locate(axis []float64, v float64) (int, bool) {
	n := len(axis)
	if n < 2 || v < axis[0] || v > axis[n-1] {
		return -1, false
	}
	i := sort.SearchFloat64s(axis, v)
	if i > 0 && (i == n || axis[i] > v) {
		i--
	}
	return min(i, n-2), true
}

// NearestIndex returns the index of the axis value closest to target. The axis may be
// ascending or descending.
func NearestIndex(axis []float64, target float64) int {
	n := len(axis)
	if n == 0 {
		return 0
	}
	desc := n > 1 && axis[0] > axis[n-1]
	i := sort.Search(n, func(k int) bool {
		if desc {
			return axis[k] <= target
		}
		return axis[k] >= target
	})
	switch {
	case i == n:
		return n - 1
	case i > 0 && math.Abs(axis[i-1]-target) < math.Abs(axis[i]-target):
		return i - 1
	}
	return i
}
