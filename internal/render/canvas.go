package render

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
)

type canvas struct {
	img *image.NRGBA
}

func newCanvas(w, h int, transparent bool) *canvas {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	if !transparent {
		for i := 0; i < len(img.Pix); i += 4 {
			img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 255, 255, 255, 255
		}
	}
	return &canvas{img: img}
}

func (c *canvas) set(x, y int, col color.NRGBA) {
	if image.Pt(x, y).In(c.img.Rect) {
		c.img.SetNRGBA(x, y, col)
	}
}

// line draws a one pixel wide segment with Bresenham's algorithm.
func (c *canvas) line(x0, y0, x1, y1 float64, col color.NRGBA) {
	ax, ay := int(math.Round(x0)), int(math.Round(y0))
	bx, by := int(math.Round(x1)), int(math.Round(y1))
	dx, dy := abs(bx-ax), -abs(by-ay)
	sx, sy := sign(bx-ax), sign(by-ay)
	err := dx + dy
	for {
		c.set(ax, ay, col)
		if ax == bx && ay == by {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			ax += sx
		}
		if e2 <= dx {
			err += dx
			ay += sy
		}
	}
}

// arrow draws a shaft from (x, y) along (dx, dy) with a two-stroke head at the tip.
func (c *canvas) arrow(x, y, dx, dy float64, col color.NRGBA) {
	length := math.Hypot(dx, dy)
	if length < 1 {
		c.marker(x, y, 0, col)
		return
	}
	tx, ty := x+dx, y+dy
	c.line(x, y, tx, ty, col)
	head := math.Max(3, 0.3*length)
	angle := math.Atan2(dy, dx)
	for _, side := range []float64{-1, 1} {
		a := angle + math.Pi - side*math.Pi/7
		c.line(tx, ty, tx+head*math.Cos(a), ty+head*math.Sin(a), col)
	}
}

// marker fills a square of half-width r centred on (x, y).
func (c *canvas) marker(x, y float64, r int, col color.NRGBA) {
	cx, cy := int(math.Floor(x)), int(math.Floor(y))
	for j := cy - r; j <= cy+r; j++ {
		for i := cx - r; i <= cx+r; i++ {
			c.set(i, j, col)
		}
	}
}

func (c *canvas) png() ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, c.img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
