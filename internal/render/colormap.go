package render

import (
	"image/color"
	"math"
	"sort"
)

// Colormap maps a normalized value in [0, 1] to a color.
type Colormap func(t float64) color.NRGBA

var colormaps = map[string]Colormap{
	"cubehelix": cubehelix,
	"jet":       jet,
	"gray":      gray,
	"viridis":   viridis,
	"rainbow":   rainbow,
}

// LookupColormap returns the named colormap.
func LookupColormap(name string) (Colormap, bool) {
	cm, ok := colormaps[name]
	return cm, ok
}

// Colormaps lists the available colormap names.
func Colormaps() []string {
	names := make([]string, 0, len(colormaps))
	for name := range colormaps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func unit(v float64) float64 { return math.Max(0, math.Min(1, v)) }

func rgb(r, g, b float64) color.NRGBA {
	return color.NRGBA{R: uint8(math.Round(unit(r) * 255)), G: uint8(math.Round(unit(g) * 255)), B: uint8(math.Round(unit(b) * 255)), A: 255}
}

// cubehelix is Green's (2011) scheme with start 0.5, rotations -1.5, hue 1 and gamma 1.
func cubehelix(t float64) color.NRGBA {
	t = unit(t)
	a := t * (1 - t) / 2
	phi := 2 * math.Pi * (0.5/3 - 1.5*t)
	c, s := math.Cos(phi), math.Sin(phi)
	return rgb(
		t+a*(-0.14861*c+1.78277*s),
		t+a*(-0.29227*c-0.90649*s),
		t+a*(1.97294*c),
	)
}

func jet(t float64) color.NRGBA {
	t = unit(t)
	return rgb(1.5-math.Abs(4*t-3), 1.5-math.Abs(4*t-2), 1.5-math.Abs(4*t-1))
}

func gray(t float64) color.NRGBA {
	t = unit(t)
	return rgb(t, t, t)
}

func rainbow(t float64) color.NRGBA {
	t = unit(t)
	return rgb(math.Abs(2*t-0.5), math.Sin(math.Pi*t), math.Cos(math.Pi*t/2))
}

var viridisStops = [][3]float64{
	{68, 1, 84}, {71, 45, 123}, {59, 82, 139}, {44, 114, 142}, {33, 145, 140},
	{40, 174, 128}, {94, 201, 98}, {173, 220, 48}, {253, 231, 37},
}

func viridis(t float64) color.NRGBA {
	pos := unit(t) * float64(len(viridisStops)-1)
	i := int(pos)
	if i >= len(viridisStops)-1 {
		i = len(viridisStops) - 2
	}
	f := pos - float64(i)
	lo, hi := viridisStops[i], viridisStops[i+1]
	return rgb(
		(lo[0]+(hi[0]-lo[0])*f)/255,
		(lo[1]+(hi[1]-lo[1])*f)/255,
		(lo[2]+(hi[2]-lo[2])*f)/255,
	)
}
