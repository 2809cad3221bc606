package interp

import (
	"math"
	"testing"
)

func seaSurfaceGrid() *Grid2D {
	// Values follow the plane lon + 2*lat - 150.
	return &Grid2D{
		X:      []float64{-72, -71, -70},
		Y:      []float64{40, 41},
		Values: []float64{-142, -141, -140, -140, -139, -138},
	}
}

func TestGrid2D_InterpolateAt(t *testing.T) {
	g := seaSurfaceGrid()
	if err := g.Validate(); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		lon, lat float64
		want     float64
	}{
		{"south-west node", -72, 40, -142},
		{"north-east node", -70, 41, -138},
		{"cell center", -71.5, 40.5, -140.5},
		{"east edge", -70, 40.25, -139.5},
		{"plane is reproduced", -70.2, 40.9, -70.2 + 2*40.9 - 150},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := g.InterpolateAt(tt.lon, tt.lat)
			if !ok {
				t.Fatalf("InterpolateAt(%v, %v) reported outside", tt.lon, tt.lat)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("InterpolateAt(%v, %v) = %v, want %v", tt.lon, tt.lat, got, tt.want)
			}
		})
	}
}

func TestGrid2D_Outside(t *testing.T) {
	g := seaSurfaceGrid()
	for _, p := range [][2]float64{{-72.1, 40.5}, {-69.9, 40.5}, {-71, 39.9}, {-71, 41.1}} {
		if v, ok := g.InterpolateAt(p[0], p[1]); ok || !math.IsNaN(v) {
			t.Errorf("InterpolateAt(%v) = %v,%v, want NaN,false", p, v, ok)
		}
	}
}

func TestGrid2D_FillValueIsNotBlended(t *testing.T) {
	g := &Grid2D{
		X:      []float64{0, 1},
		Y:      []float64{0, 1},
		Values: []float64{1, math.NaN(), 3, 4},
	}
	v, ok := g.InterpolateAt(0.5, 0.5)
	if !ok {
		t.Fatal("point inside grid reported outside")
	}
	if !math.IsNaN(v) {
		t.Errorf("got %v, want NaN", v)
	}
}

func TestGrid2D_Validate(t *testing.T) {
	tests := []struct {
		name    string
		grid    Grid2D
		wantErr bool
	}{
		{"valid", *seaSurfaceGrid(), false},
		{"single column", Grid2D{X: []float64{0}, Y: []float64{0, 1}, Values: []float64{1, 2}}, true},
		{"short values", Grid2D{X: []float64{0, 1}, Y: []float64{0, 1}, Values: []float64{1, 2, 3}}, true},
		{"descending x", Grid2D{X: []float64{1, 0}, Y: []float64{0, 1}, Values: []float64{1, 2, 3, 4}}, true},
		{"repeated y", Grid2D{X: []float64{0, 1}, Y: []float64{1, 1}, Values: []float64{1, 2, 3, 4}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.grid.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLocate(t *testing.T) {
	depths := []float64{0, 5, 10, 20}
	tests := []struct {
		v    float64
		want int
		ok   bool
	}{
		{0, 0, true},
		{2.5, 0, true},
		{5, 1, true},
		{19, 2, true},
		{20, 2, true},
		{-1, -1, false},
		{21, -1, false},
	}
	for _, tt := range tests {
		got, ok := Locate(depths, tt.v)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Locate(%v) = %d,%v want %d,%v", tt.v, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNearestIndex(t *testing.T) {
	up := []float64{0, 10, 20, 30}
	down := []float64{30, 20, 10, 0}
	tests := []struct {
		name   string
		axis   []float64
		target float64
		want   int
	}{
		{"exact", up, 20, 2},
		{"between", up, 14, 1},
		{"tie takes upper", up, 15, 2},
		{"below", up, -5, 0},
		{"above", up, 99, 3},
		{"descending between", down, 14, 2},
		{"descending above", down, 99, 0},
		{"descending below", down, -3, 3},
		{"empty", nil, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NearestIndex(tt.axis, tt.target); got != tt.want {
				t.Errorf("NearestIndex(%v) = %d, want %d", tt.target, got, tt.want)
			}
		})
	}
}
