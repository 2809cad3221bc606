package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// LayerKind tags a layer as a projection of one variable or of several.
type LayerKind int

const (
	// Direct layers project exactly one physical variable.
	Direct LayerKind = iota
	// Virtual layers combine an ordered set of physical variables (e.g. vector components).
	Virtual
)

func (k LayerKind) String() string {
	if k == Virtual {
		return "virtual"
	}
	return "direct"
}

var varNamePattern = regexp.MustCompile(`[^*,]+`)

// SplitVarNames splits a stored variable name such as "u,v" into its constituents.
func SplitVarNames(varName string) []string {
	names := varNamePattern.FindAllString(varName, -1)
	out := names[:0]
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// Layer is a named, renderable projection of dataset variables.
type Layer struct {
	ID          int64
	Dataset     string
	Kind        LayerKind
	VarName     string // Constituent names joined with "," for virtual layers.
	StdName     string
	Units       string
	Description string
	Active      bool
	LogScale    *bool
	DefaultMin  *float64
	DefaultMax  *float64
	Styles      []Style
}

// Constituents returns the physical variable names in declared order.
func (l Layer) Constituents() []string {
	if l.Kind == Direct {
		return []string{l.VarName}
	}
	return SplitVarNames(l.VarName)
}

// AccessName is the representative variable used for bound, time and depth queries.
func (l Layer) AccessName() string {
	names := l.Constituents()
	if len(names) == 0 {
		return l.VarName
	}
	return names[0]
}

// DefaultStyle returns the first configured style, falling back by kind.
func (l Layer) DefaultStyle() Style {
	if len(l.Styles) > 0 {
		return l.Styles[0]
	}
	if l.Kind == Virtual {
		return Style{PlotType: PlotVectors, Colormap: DefaultColormap}
	}
	return Style{PlotType: PlotPcolor, Colormap: DefaultColormap}
}

// HasStyle reports whether the style is configured for the layer.
func (l Layer) HasStyle(s Style) bool {
	for _, ls := range l.Styles {
		if ls == s {
			return true
		}
	}
	return false
}

func (l Layer) String() string {
	s := l.VarName
	if l.StdName != "" {
		s += fmt.Sprintf(" (%s)", l.StdName)
	}
	return s + fmt.Sprintf(" - Active: %t", l.Active)
}

// VariableDefault holds global color-scale defaults keyed by standard name and units.
type VariableDefault struct {
	StdName    string
	Units      string
	DefaultMin *float64
	DefaultMax *float64
	LogScale   *bool
}

// LayerDefaults is the effective color-scale configuration of a layer.
type LayerDefaults struct {
	Min      *float64
	Max      *float64
	LogScale *bool
}

// Defaults merges the layer's own defaults with a matching global variable default.
// Zero global min/max values are treated as unset.
func (l Layer) Defaults(global *VariableDefault) LayerDefaults {
	d := LayerDefaults{Min: l.DefaultMin, Max: l.DefaultMax, LogScale: l.LogScale}
	if global == nil {
		return d
	}
	if d.Min == nil && global.DefaultMin != nil && *global.DefaultMin != 0 {
		d.Min = global.DefaultMin
	}
	if d.Max == nil && global.DefaultMax != nil && *global.DefaultMax != 0 {
		d.Max = global.DefaultMax
	}
	if d.LogScale == nil && global.LogScale != nil {
		d.LogScale = global.LogScale
	}
	return d
}
