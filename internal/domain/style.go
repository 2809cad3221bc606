package domain

import (
	"fmt"
	"strings"
)

// PlotType selects the rendering algorithm.
type PlotType string

// Supported plot types.
const (
	PlotPcolor         PlotType = "pcolor"
	PlotContours       PlotType = "contours"
	PlotFilledContours PlotType = "filledcontours"
	PlotFacets         PlotType = "facets"
	PlotVectors        PlotType = "vectors"
)

// DefaultColormap is used when a style names no colormap.
const DefaultColormap = "cubehelix"

var plotTypes = []PlotType{PlotPcolor, PlotContours, PlotFilledContours, PlotFacets, PlotVectors}

// Style pairs a plot type with a colormap.
type Style struct {
	PlotType PlotType
	Colormap string
}

// Code returns the WMS style code, e.g. "pcolor_cubehelix".
func (s Style) Code() string {
	return string(s.PlotType) + "_" + s.Colormap
}

// ParseStyle parses "<plot>_<colormap>". A bare plot type uses the default colormap.
func ParseStyle(code string) (Style, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return Style{}, fmt.Errorf("empty style")
	}
	plot, cmap, _ := strings.Cut(code, "_")
	for _, p := range plotTypes {
		if string(p) == plot {
			if cmap == "" {
				cmap = DefaultColormap
			}
			return Style{PlotType: p, Colormap: cmap}, nil
		}
	}
	return Style{}, fmt.Errorf("unknown plot type %q", plot)
}
