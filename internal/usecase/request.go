package usecase

import (
	"errors"
	"maps"
	"net/url"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"go.ngs.io/ocean-wms/internal/adapter/geo"
	"go.ngs.io/ocean-wms/internal/domain"
)

// Limits bounds the size of a render.
type Limits struct {
	MaxWidth  int
	MaxHeight int
}

// DefaultLimits are used when no limits are configured.
var DefaultLimits = Limits{MaxWidth: 4096, MaxHeight: 4096}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("param")
	})
	return v
}

// numericParams are the optional numeric overrides of a request.
type numericParams struct {
	NumContours *int     `param:"numcontours" validate:"omitempty,gt=0,lte=256"`
	VectorScale *float64 `param:"vectorscale" validate:"omitempty,gt=0"`
	VectorStep  *int     `param:"vectorstep" validate:"omitempty,gt=0"`
}

// viewParams describe the rendered area.
type viewParams struct {
	Width  int `param:"width" validate:"gt=0"`
	Height int `param:"height" validate:"gt=0"`
}

// pointParams locate a GetFeatureInfo pixel.
type pointParams struct {
	X int `param:"x" validate:"gte=0"`
	Y int `param:"y" validate:"gte=0"`
}

// fromValidator converts the first validator failure into a validation error.
func fromValidator(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Param() != "" {
			return domain.ValidationError(fe.Field(), "must satisfy %s=%s", fe.Tag(), fe.Param())
		}
		return domain.ValidationError(fe.Field(), "must satisfy %s", fe.Tag())
	}
	return err
}

// params is a case-insensitive view of request parameters.
type params map[string]string

// newParams folds keys to lower case. When several spellings of a key are sent, the
// spelling that sorts first wins.
func newParams(values url.Values) params {
	p := make(params, len(values))
	for _, k := range slices.Sorted(maps.Keys(values)) {
		v := values[k]
		key := strings.ToLower(k)
		if _, dup := p[key]; dup || len(v) == 0 {
			continue
		}
		p[key] = strings.TrimSpace(v[0])
	}
	return p
}

// first returns the first non-empty value among aliases.
func (p params) first(keys ...string) (string, string) {
	for _, k := range keys {
		if v := p[k]; v != "" {
			return k, v
		}
	}
	return keys[0], ""
}

func (p params) required(keys ...string) (string, error) {
	key, v := p.first(keys...)
	if v == "" {
		return "", domain.ValidationError(key, "missing required parameter")
	}
	return v, nil
}

func (p params) int(key string, required bool) (*int, error) {
	v := p[key]
	if v == "" {
		if required {
			return nil, domain.ValidationError(key, "missing required parameter")
		}
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, domain.ValidationError(key, "invalid integer %q", v)
	}
	return &n, nil
}

func (p params) float(key string) (*float64, error) {
	v := p[key]
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, domain.ValidationError(key, "invalid number %q", v)
	}
	return &f, nil
}

func (p params) bool(key string) (*bool, error) {
	v := p[key]
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(strings.ToLower(v))
	if err != nil {
		return nil, domain.ValidationError(key, "invalid boolean %q", v)
	}
	return &b, nil
}

var operations = []domain.Operation{domain.OpGetCapabilities, domain.OpGetMap, domain.OpGetFeatureInfo, domain.OpGetMetadata}

// ParseRequest validates raw WMS parameters into a render job. Keys are case-insensitive
// and unknown keys are ignored. Time, depth and style defaults that depend on the dataset
// are filled later.
func ParseRequest(values url.Values, limits Limits) (*domain.RenderJob, error) {
	p := newParams(values)
	raw, err := p.required("request")
	if err != nil {
		return nil, err
	}
	job := &domain.RenderJob{Version: "1.1.1"}
	for _, op := range operations {
		if strings.EqualFold(raw, string(op)) {
			job.Operation = op
		}
	}
	if job.Operation == "" {
		return nil, domain.ValidationError("request", "unsupported operation %q", raw)
	}
	if v := p["version"]; v != "" {
		job.Version = v
	}
	if job.Operation == domain.OpGetCapabilities {
		return job, nil
	}

	layerKeys := []string{"layers"}
	if job.Operation != domain.OpGetMap {
		layerKeys = []string{"query_layers", "layers"}
	}
	layers, err := p.required(layerKeys...)
	if err != nil {
		return nil, err
	}
	for _, name := range strings.Split(layers, ",") {
		if name = strings.TrimSpace(name); name != "" {
			job.LayerNames = append(job.LayerNames, name)
		}
	}
	if len(job.LayerNames) == 0 {
		return nil, domain.ValidationError(layerKeys[0], "no layer names")
	}

	if job.Operation == domain.OpGetMetadata {
		if job.Item, err = p.required("item"); err != nil {
			return nil, err
		}
		job.Item = strings.ToLower(job.Item)
		if job.Item != "minmax" {
			return nil, domain.ValidationError("item", "unsupported metadata item %q", job.Item)
		}
	}

	if err := parseView(p, job, limits); err != nil {
		return nil, err
	}
	if err := parseSelectors(p, job); err != nil {
		return nil, err
	}
	if err := parseStyleParams(p, job); err != nil {
		return nil, err
	}
	if err := parseFormat(p, job); err != nil {
		return nil, err
	}

	if job.Operation == domain.OpGetFeatureInfo {
		pt := pointParams{}
		for _, axis := range []struct {
			keys []string
			dst  *int
		}{{[]string{"x", "i"}, &pt.X}, {[]string{"y", "j"}, &pt.Y}} {
			key, v := p.first(axis.keys...)
			n, err := params{key: v}.int(key, true)
			if err != nil {
				return nil, err
			}
			*axis.dst = *n
		}
		if err := validate.Struct(pt); err != nil {
			return nil, fromValidator(err)
		}
		if pt.X > job.Width {
			return nil, domain.ValidationError("x", "outside image width %d", job.Width)
		}
		if pt.Y > job.Height {
			return nil, domain.ValidationError("y", "outside image height %d", job.Height)
		}
		job.X, job.Y = pt.X, pt.Y
	}
	return job, nil
}

// parseView reads crs, bbox, width and height.
func parseView(p params, job *domain.RenderJob, limits Limits) error {
	key, rawCRS := p.first("crs", "srs")
	if rawCRS == "" {
		return domain.ValidationError(key, "missing required parameter")
	}
	crs, ok := geo.NormalizeCRS(rawCRS)
	if !ok {
		return domain.ValidationError(key, "unsupported CRS %q", rawCRS)
	}
	job.CRS = crs

	rawBBox, err := p.required("bbox")
	if err != nil {
		return err
	}
	parts := strings.Split(rawBBox, ",")
	if len(parts) != 4 {
		return domain.ValidationError("bbox", "expected 4 comma separated numbers, got %d", len(parts))
	}
	var b [4]float64
	for i, s := range parts {
		if b[i], err = strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
			return domain.ValidationError("bbox", "invalid number %q", s)
		}
	}
	// WMS 1.3.0 orders EPSG:4326 as lat,lon.
	if job.Version == "1.3.0" && crs == geo.EPSG4326 {
		b = [4]float64{b[1], b[0], b[3], b[2]}
	}
	job.BBox = domain.BBox{MinX: b[0], MinY: b[1], MaxX: b[2], MaxY: b[3]}
	if job.BBox.MinX >= job.BBox.MaxX || job.BBox.MinY >= job.BBox.MaxY {
		return domain.ValidationError("bbox", "minimum must be less than maximum")
	}

	w, err := p.int("width", true)
	if err != nil {
		return err
	}
	h, err := p.int("height", true)
	if err != nil {
		return err
	}
	view := viewParams{Width: *w, Height: *h}
	if err := validate.Struct(view); err != nil {
		return fromValidator(err)
	}
	if limits.MaxWidth > 0 && view.Width > limits.MaxWidth {
		return domain.ValidationError("width", "exceeds maximum %d", limits.MaxWidth)
	}
	if limits.MaxHeight > 0 && view.Height > limits.MaxHeight {
		return domain.ValidationError("height", "exceeds maximum %d", limits.MaxHeight)
	}
	job.Width, job.Height = view.Width, view.Height
	return nil
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, domain.ValidationError("time", "invalid time %q", s)
}

// parseSelectors reads the time and elevation selectors.
func parseSelectors(p params, job *domain.RenderJob) error {
	if raw := p["time"]; raw != "" && !strings.EqualFold(raw, "current") {
		startRaw, endRaw, isRange := strings.Cut(raw, "/")
		start, err := parseTime(startRaw)
		if err != nil {
			return err
		}
		job.Time.Start = &start
		if isRange {
			end, err := parseTime(endRaw)
			if err != nil {
				return err
			}
			if end.Before(start) {
				return domain.ValidationError("time", "range end precedes start")
			}
			job.Time.End = &end
		}
	}
	var err error
	job.Elevation, err = p.float("elevation")
	return err
}

// parseStyleParams reads styles and the numeric rendering overrides.
func parseStyleParams(p params, job *domain.RenderJob) error {
	if raw := p["styles"]; raw != "" {
		first, _, _ := strings.Cut(raw, ",")
		if first = strings.TrimSpace(first); first != "" && !strings.EqualFold(first, "default") {
			s, err := domain.ParseStyle(first)
			if err != nil {
				return domain.ValidationError("styles", "%v", err)
			}
			job.Style = &s
		}
	}

	var (
		num numericParams
		err error
	)
	if num.NumContours, err = p.int("numcontours", false); err != nil {
		return err
	}
	if num.VectorScale, err = p.float("vectorscale"); err != nil {
		return err
	}
	if num.VectorStep, err = p.int("vectorstep", false); err != nil {
		return err
	}
	if err := validate.Struct(num); err != nil {
		return fromValidator(err)
	}
	job.NumContours, job.VectorScale, job.VectorStep = num.NumContours, num.VectorScale, num.VectorStep

	if raw := p["colorscalerange"]; raw != "" && !strings.EqualFold(raw, "auto") {
		lo, hi, ok := strings.Cut(raw, ",")
		if !ok {
			return domain.ValidationError("colorscalerange", "expected min,max")
		}
		minV, err1 := strconv.ParseFloat(strings.TrimSpace(lo), 64)
		maxV, err2 := strconv.ParseFloat(strings.TrimSpace(hi), 64)
		if err1 != nil || err2 != nil {
			return domain.ValidationError("colorscalerange", "invalid range %q", raw)
		}
		if minV >= maxV {
			return domain.ValidationError("colorscalerange", "minimum must be less than maximum")
		}
		job.ColorRange = &[2]float64{minV, maxV}
	}

	if job.LogScale, err = p.bool("logscale"); err != nil {
		return err
	}
	transparent, err := p.bool("transparent")
	if err != nil {
		return err
	}
	job.Transparent = transparent != nil && *transparent
	return nil
}

// parseFormat picks the output format for the operation.
func parseFormat(p params, job *domain.RenderJob) error {
	switch job.Operation {
	case domain.OpGetMap:
		f := p["format"]
		if f != "" && !strings.EqualFold(f, string(domain.FormatPNG)) {
			return domain.ValidationError("format", "unsupported format %q", f)
		}
		job.Format = domain.FormatPNG
	case domain.OpGetFeatureInfo:
		f := strings.ToLower(p["info_format"])
		switch domain.OutputFormat(f) {
		case "":
			job.Format = domain.FormatCSV
		case domain.FormatCSV, domain.FormatTSV, domain.FormatJSON:
			job.Format = domain.OutputFormat(f)
		default:
			return domain.ValidationError("info_format", "unsupported format %q", f)
		}
	case domain.OpGetMetadata:
		job.Format = domain.FormatJSON
	}
	return nil
}
