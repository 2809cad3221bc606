package domain

import "time"

// Operation is a supported map-service request.
type Operation string

// Supported operations.
const (
	OpGetCapabilities Operation = "GetCapabilities"
	OpGetMap          Operation = "GetMap"
	OpGetFeatureInfo  Operation = "GetFeatureInfo"
	OpGetMetadata     Operation = "GetMetadata"
)

// OutputFormat is the content type of a rendered artifact.
type OutputFormat string

// Supported output formats.
const (
	FormatPNG  OutputFormat = "image/png"
	FormatCSV  OutputFormat = "text/csv"
	FormatTSV  OutputFormat = "text/tsv"
	FormatJSON OutputFormat = "application/json"
)

// TimeSelector selects an instant, a range, or (when empty) the latest available step.
type TimeSelector struct {
	Start *time.Time
	End   *time.Time
}

// IsZero reports whether no time was requested.
func (t TimeSelector) IsZero() bool { return t.Start == nil && t.End == nil }

// IsRange reports whether the selector spans more than one instant.
func (t TimeSelector) IsRange() bool {
	return t.Start != nil && t.End != nil && !t.Start.Equal(*t.End)
}

// RenderJob is the normalized, request-scoped description of one render.
type RenderJob struct {
	Operation   Operation
	Version     string
	LayerNames  []string
	CRS         string
	BBox        BBox
	Width       int
	Height      int
	Time        TimeSelector
	TimeIndex   []int // Resolved time steps; filled by the service.
	Elevation   *float64
	DepthIndex  int // Resolved depth level; filled by the service.
	Style       *Style
	Format      OutputFormat
	Transparent bool
	NumContours *int
	VectorScale *float64
	VectorStep  *int
	ColorRange  *[2]float64
	LogScale    *bool
	X, Y        int    // GetFeatureInfo pixel.
	Item        string // GetMetadata item.
}
