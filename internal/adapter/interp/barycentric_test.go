package interp

import (
	"math"
	"testing"
)

// TestBarycentric tests interpolation within a mesh face
func TestBarycentric(t *testing.T) {
	tr := Triangle{
		X: [3]float64{0, 1, 0},
		Y: [3]float64{0, 0, 1},
		V: [3]float64{1, 2, 3},
	}

	tests := []struct {
		name     string
		x, y     float64
		expected float64
	}{
		{"vertex 0", 0, 0, 1},
		{"vertex 1", 1, 0, 2},
		{"vertex 2", 0, 1, 3},
		{"edge midpoint", 0.5, 0, 1.5},
		{"centroid", 1.0 / 3, 1.0 / 3, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Barycentric(tr, tt.x, tt.y)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("expected %.10f, got %.10f", tt.expected, got)
			}
		})
	}

	if !math.IsNaN(Barycentric(tr, 1, 1)) {
		t.Error("expected NaN outside the triangle")
	}
	if tr.Contains(-0.1, 0.5) {
		t.Error("point left of the triangle should not be contained")
	}
}

// TestBarycentric_Degenerate tests that collinear vertices never contain a point
func TestBarycentric_Degenerate(t *testing.T) {
	tr := Triangle{X: [3]float64{0, 1, 2}, Y: [3]float64{0, 1, 2}}
	if tr.Contains(1, 1) {
		t.Error("degenerate triangle should contain nothing")
	}
}
