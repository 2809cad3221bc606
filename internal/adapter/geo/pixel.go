package geo

import "go.ngs.io/ocean-wms/internal/domain"

// PixelMapper maps between image pixels and coordinates of a bbox. Row 0 is the top edge.
type PixelMapper struct {
	BBox   domain.BBox
	Width  int
	Height int
}

// Center returns the coordinate at the center of pixel (px, py).
func (m PixelMapper) Center(px, py int) (float64, float64) {
	return m.Coord(float64(px)+0.5, float64(py)+0.5)
}

// Coord returns the coordinate at fractional pixel position (i, j). Integer positions fall on
// pixel edges, so i == Width is the right edge of the image.
func (m PixelMapper) Coord(i, j float64) (float64, float64) {
	x := m.BBox.MinX + i*m.BBox.Width()/float64(m.Width)
	y := m.BBox.MaxY - j*m.BBox.Height()/float64(m.Height)
	return x, y
}

// Pixel returns the fractional pixel position of a coordinate.
func (m PixelMapper) Pixel(x, y float64) (float64, float64) {
	i := (x - m.BBox.MinX) / m.BBox.Width() * float64(m.Width)
	j := (m.BBox.MaxY - y) / m.BBox.Height() * float64(m.Height)
	return i, j
}
