package render

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"math"
	"strconv"
	"time"

	"go.ngs.io/ocean-wms/internal/adapter/geo"
	"go.ngs.io/ocean-wms/internal/adapter/store/topology"
	"go.ngs.io/ocean-wms/internal/adapter/store/variables"
	"go.ngs.io/ocean-wms/internal/domain"
)

// column is one variable's values at the located element.
type column struct {
	name   string
	units  string
	values []float64
}

func (e *Engine) featureInfo(ctx context.Context, in Input) (Output, error) {
	job := in.Job
	format := job.Format
	if format != domain.FormatTSV && format != domain.FormatJSON {
		format = domain.FormatCSV
	}

	mapper := geo.PixelMapper{BBox: job.BBox, Width: job.Width, Height: job.Height}
	x, y := mapper.Coord(float64(job.X), float64(job.Y))
	lon, lat, err := geo.ToLonLat(job.CRS, x, y)
	if err != nil {
		return Output{}, domain.ValidationError("crs", "%v", err)
	}

	var cols []column
	if el, ok := in.Topology.Nearest(lon, lat); ok {
		located := false
		for _, l := range in.Layers {
			for _, name := range l.Constituents() {
				series, err := in.Source.Series(ctx, name, el, job.TimeIndex)
				if err != nil {
					return Output{}, err
				}
				if !located {
					lon, lat = elementPosition(in.Topology, el, series.Location, lon, lat)
					located = true
				}
				cols = append(cols, column{name: name, units: l.Units, values: series.Values})
			}
		}
	} else {
		e.logger.Debug("feature info point has no element", "dataset", in.Topology.Dataset, "lon", lon, "lat", lat)
	}
	if err := alive(ctx); err != nil {
		return Output{}, err
	}

	var data []byte
	switch format {
	case domain.FormatJSON:
		data, err = featureJSON(lon, lat, in.Times, cols)
	default:
		data, err = featureTable(format, lon, lat, in.Times, in.Layers, cols)
	}
	if err != nil {
		return Output{}, err
	}
	return Output{Data: data, ContentType: string(format)}, nil
}

// elementPosition returns the coordinates of the element that supplies values at loc,
// falling back to the queried point.
func elementPosition(t *topology.Topology, el topology.Element, loc variables.Location, lon, lat float64) (float64, float64) {
	switch {
	case loc == variables.OnNode && el.Node >= 0:
		return t.NodeX[el.Node], t.NodeY[el.Node]
	case loc == variables.OnFace && el.Tri >= 0:
		return t.FaceCenter(el.Tri)
	case loc == variables.OnGrid && el.J >= 0 && el.I >= 0:
		if t.Variant == domain.StructuredRectilinear {
			return t.LonAxis[el.I], t.LatAxis[el.J]
		}
		n := el.J*t.NX + el.I
		return t.NodeX[n], t.NodeY[n]
	}
	return lon, lat
}

func rowCount(cols []column) int {
	n := 0
	for _, c := range cols {
		n = max(n, len(c.values))
	}
	return n
}

func timeAt(times []time.Time, i int) string {
	if i < len(times) && !times[i].IsZero() {
		return times[i].UTC().Format(time.RFC3339)
	}
	return ""
}

func formatFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// featureTable writes "time,x,y,<variables>" rows, one per time step, where x and y locate
// the element that supplied the values. A grid with no elements yields the header only.
func featureTable(format domain.OutputFormat, lon, lat float64, times []time.Time, layers []domain.Layer, cols []column) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if format == domain.FormatTSV {
		w.Comma = '\t'
	}
	header := []string{"time", "x", "y"}
	if len(cols) > 0 {
		for _, c := range cols {
			header = append(header, c.name)
		}
	} else {
		for _, l := range layers {
			header = append(header, l.Constituents()...)
		}
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for i := 0; i < rowCount(cols); i++ {
		row := []string{timeAt(times, i), formatFloat(lon), formatFloat(lat)}
		for _, c := range cols {
			v := math.NaN()
			if i < len(c.values) {
				v = c.values[i]
			}
			row = append(row, formatFloat(v))
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	Type       string         `json:"type"`
	Geometry   pointGeometry  `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

type pointGeometry struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

type variableSeries struct {
	Units  string     `json:"units"`
	Values []*float64 `json:"values"`
}

func featureJSON(lon, lat float64, times []time.Time, cols []column) ([]byte, error) {
	fc := featureCollection{Type: "FeatureCollection", Features: []feature{}}
	if len(cols) > 0 {
		props := map[string]any{}
		stamps := make([]string, rowCount(cols))
		for i := range stamps {
			stamps[i] = timeAt(times, i)
		}
		props["time"] = stamps
		for _, c := range cols {
			s := variableSeries{Units: c.units, Values: make([]*float64, len(c.values))}
			for i, v := range c.values {
				if !math.IsNaN(v) && !math.IsInf(v, 0) {
					s.Values[i] = &c.values[i]
				}
			}
			props[c.name] = s
		}
		fc.Features = append(fc.Features, feature{
			Type:       "Feature",
			Geometry:   pointGeometry{Type: "Point", Coordinates: [2]float64{lon, lat}},
			Properties: props,
		})
	}
	return json.Marshal(fc)
}
