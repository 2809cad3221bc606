package interp

import "math"

// Triangle is a mesh face with vertex coordinates and values.
type Triangle struct {
	X, Y [3]float64
	V    [3]float64
}

// Weights returns the barycentric weights of (x, y). All weights are within [0, 1] when the
// point lies inside the triangle.
func (tr Triangle) Weights(x, y float64) (w [3]float64, ok bool) {
	det := (tr.Y[1]-tr.Y[2])*(tr.X[0]-tr.X[2]) + (tr.X[2]-tr.X[1])*(tr.Y[0]-tr.Y[2])
	if det == 0 {
		return w, false
	}
	w[0] = ((tr.Y[1]-tr.Y[2])*(x-tr.X[2]) + (tr.X[2]-tr.X[1])*(y-tr.Y[2])) / det
	w[1] = ((tr.Y[2]-tr.Y[0])*(x-tr.X[2]) + (tr.X[0]-tr.X[2])*(y-tr.Y[2])) / det
	w[2] = 1 - w[0] - w[1]
	const epsilon = 1e-9
	for _, v := range w {
		if v < -epsilon || v > 1+epsilon {
			return w, false
		}
	}
	return w, true
}

// Contains reports whether (x, y) lies inside or on the triangle.
func (tr Triangle) Contains(x, y float64) bool {
	_, ok := tr.Weights(x, y)
	return ok
}

// Barycentric interpolates the vertex values at (x, y). Points outside the triangle or a
// NaN vertex value yield NaN.
func Barycentric(tr Triangle, x, y float64) float64 {
	w, ok := tr.Weights(x, y)
	if !ok {
		return math.NaN()
	}
	return w[0]*tr.V[0] + w[1]*tr.V[1] + w[2]*tr.V[2]
}
