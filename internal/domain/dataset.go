package domain

import (
	"fmt"
	"strings"
	"time"
)

// TypeVariant identifies the grid topology model of a dataset.
type TypeVariant int

const (
	// Unidentified marks a registered data source whose grid could not be classified.
	Unidentified TypeVariant = iota
	// UnstructuredMesh is a UGRID-style triangular (or mixed) mesh.
	UnstructuredMesh
	// StructuredCurvilinear is an SGRID-style logically rectangular grid with 2-D coordinates.
	StructuredCurvilinear
	// StructuredRectilinear is a regular grid with 1-D longitude and latitude axes.
	StructuredRectilinear
	// TideHarmonicMesh is an unstructured mesh carrying tidal constituent amplitude/phase.
	TideHarmonicMesh
)

var variantNames = map[TypeVariant]string{
	Unidentified:          "unidentified",
	UnstructuredMesh:      "ugrid",
	StructuredCurvilinear: "sgrid",
	StructuredRectilinear: "rgrid",
	TideHarmonicMesh:      "ugrid_tide",
}

// String returns the short type code used in dataset records.
func (v TypeVariant) String() string {
	if name, ok := variantNames[v]; ok {
		return name
	}
	return fmt.Sprintf("variant(%d)", int(v))
}

// ParseTypeVariant parses a dataset type code. An empty code is Unidentified.
func ParseTypeVariant(code string) (TypeVariant, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return Unidentified, nil
	}
	for v, name := range variantNames {
		if name == code {
			return v, nil
		}
	}
	return Unidentified, fmt.Errorf("unknown dataset type %q", code)
}

// IsMesh reports whether the variant is node/face based.
func (v TypeVariant) IsMesh() bool {
	return v == UnstructuredMesh || v == TideHarmonicMesh
}

// SupportsVirtualLayers reports whether derived vector layers may be built for the variant.
func (v TypeVariant) SupportsVirtualLayers() bool {
	switch v {
	case UnstructuredMesh, StructuredCurvilinear, StructuredRectilinear:
		return true
	default:
		return false
	}
}

// Dataset is the resolved dataset record handed to the core by the persistence layer.
type Dataset struct {
	Slug         string      `yaml:"slug" json:"slug"`
	Name         string      `yaml:"name" json:"name"`
	URI          string      `yaml:"uri" json:"uri"`
	Type         TypeVariant `yaml:"-" json:"-"`
	Title        string      `yaml:"title" json:"title,omitempty"`
	Abstract     string      `yaml:"abstract" json:"abstract,omitempty"`
	DefaultStyle string      `yaml:"default_style" json:"default_style,omitempty"`
}

// BBox is an axis-aligned bounding box in some CRS.
type BBox struct {
	MinX, MinY, MaxX, MaxY float64
}

// Width returns the x extent.
func (b BBox) Width() float64 { return b.MaxX - b.MinX }

// Height returns the y extent.
func (b BBox) Height() float64 { return b.MaxY - b.MinY }

// ModTime is a convenience for comparing dataset versions at nanosecond precision.
func ModTime(t time.Time) int64 {
	return t.UTC().UnixNano()
}
