package usecase

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.ngs.io/ocean-wms/internal/domain"
)

func getMap(extra ...string) url.Values {
	v := url.Values{
		"service": {"WMS"},
		"request": {"GetMap"},
		"layers":  {"temp"},
		"crs":     {"epsg:4326"},
		"bbox":    {"-71,41,-69,43"},
		"width":   {"256"},
		"height":  {"128"},
	}
	for i := 0; i+1 < len(extra); i += 2 {
		v.Set(extra[i], extra[i+1])
	}
	return v
}

func TestParseRequest_GetMap(t *testing.T) {
	job, err := ParseRequest(getMap(
		"styles", "filledcontours_jet",
		"time", "2025-01-01T06:00:00Z",
		"elevation", "-5",
		"numcontours", "12",
		"colorscalerange", "0,30",
		"logscale", "FALSE",
		"transparent", "TRUE",
	), DefaultLimits)
	require.NoError(t, err)

	assert.Equal(t, domain.OpGetMap, job.Operation)
	assert.Equal(t, "1.1.1", job.Version)
	assert.Equal(t, []string{"temp"}, job.LayerNames)
	assert.Equal(t, "EPSG:4326", job.CRS)
	assert.Equal(t, domain.BBox{MinX: -71, MinY: 41, MaxX: -69, MaxY: 43}, job.BBox)
	assert.Equal(t, 256, job.Width)
	assert.Equal(t, 128, job.Height)
	require.NotNil(t, job.Style)
	assert.Equal(t, domain.Style{PlotType: domain.PlotFilledContours, Colormap: "jet"}, *job.Style)
	require.NotNil(t, job.Time.Start)
	assert.Equal(t, time.Date(2025, 1, 1, 6, 0, 0, 0, time.UTC), *job.Time.Start)
	assert.False(t, job.Time.IsRange())
	assert.Equal(t, -5.0, *job.Elevation)
	assert.Equal(t, 12, *job.NumContours)
	assert.Equal(t, [2]float64{0, 30}, *job.ColorRange)
	assert.False(t, *job.LogScale)
	assert.True(t, job.Transparent)
	assert.Equal(t, domain.FormatPNG, job.Format)
}

func TestParseRequest_KeysAreCaseInsensitive(t *testing.T) {
	job, err := ParseRequest(url.Values{
		"REQUEST": {"getmap"},
		"Layers":  {"zeta"},
		"SRS":     {"EPSG:3857"},
		"BBox":    {"0,0,100,100"},
		"WIDTH":   {"10"},
		"Height":  {"10"},
	}, DefaultLimits)
	require.NoError(t, err)
	assert.Equal(t, domain.OpGetMap, job.Operation)
	assert.Equal(t, []string{"zeta"}, job.LayerNames)
	assert.Equal(t, "EPSG:3857", job.CRS)
}

func TestParseRequest_RepeatedKeySpellingsAreDeterministic(t *testing.T) {
	for i := 0; i < 20; i++ {
		v := getMap()
		v["LAYERS"] = []string{"zeta"}
		v["Layers"] = []string{"u"}
		job, err := ParseRequest(v, DefaultLimits)
		require.NoError(t, err)
		require.Equal(t, []string{"zeta"}, job.LayerNames, "upper case spelling sorts first")
	}
}

func TestParseRequest_Defaults(t *testing.T) {
	job, err := ParseRequest(getMap("styles", "default", "colorscalerange", "auto", "time", "current"), DefaultLimits)
	require.NoError(t, err)
	assert.Nil(t, job.Style)
	assert.Nil(t, job.ColorRange)
	assert.True(t, job.Time.IsZero())
	assert.Nil(t, job.LogScale)
	assert.False(t, job.Transparent)
}

func TestParseRequest_Version130SwapsGeographicAxes(t *testing.T) {
	job, err := ParseRequest(getMap("version", "1.3.0", "bbox", "41,-71,43,-69"), DefaultLimits)
	require.NoError(t, err)
	assert.Equal(t, domain.BBox{MinX: -71, MinY: 41, MaxX: -69, MaxY: 43}, job.BBox)

	job, err = ParseRequest(getMap("version", "1.3.0", "crs", "EPSG:3857", "bbox", "-7900000,5000000,-7700000,5300000"), DefaultLimits)
	require.NoError(t, err)
	assert.Equal(t, -7900000.0, job.BBox.MinX)
}

func TestParseRequest_TimeRange(t *testing.T) {
	job, err := ParseRequest(getMap("time", "2025-01-01/2025-01-02T12:00"), DefaultLimits)
	require.NoError(t, err)
	require.True(t, job.Time.IsRange())
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), *job.Time.Start)
	assert.Equal(t, time.Date(2025, 1, 2, 12, 0, 0, 0, time.UTC), *job.Time.End)
}

func TestParseRequest_GetFeatureInfo(t *testing.T) {
	v := getMap("request", "GetFeatureInfo", "query_layers", "u,v", "info_format", "application/json", "i", "10", "j", "20")
	job, err := ParseRequest(v, DefaultLimits)
	require.NoError(t, err)
	assert.Equal(t, domain.OpGetFeatureInfo, job.Operation)
	assert.Equal(t, []string{"u", "v"}, job.LayerNames)
	assert.Equal(t, domain.FormatJSON, job.Format)
	assert.Equal(t, 10, job.X)
	assert.Equal(t, 20, job.Y)

	v = getMap("request", "GetFeatureInfo", "x", "0", "y", "128")
	job, err = ParseRequest(v, DefaultLimits)
	require.NoError(t, err)
	assert.Equal(t, domain.FormatCSV, job.Format)
	assert.Equal(t, 128, job.Y)
}

func TestParseRequest_GetCapabilitiesNeedsNothingElse(t *testing.T) {
	job, err := ParseRequest(url.Values{"request": {"getcapabilities"}}, DefaultLimits)
	require.NoError(t, err)
	assert.Equal(t, domain.OpGetCapabilities, job.Operation)
}

func TestParseRequest_GetMetadata(t *testing.T) {
	job, err := ParseRequest(getMap("request", "GetMetadata", "item", "MinMax"), DefaultLimits)
	require.NoError(t, err)
	assert.Equal(t, "minmax", job.Item)
	assert.Equal(t, domain.FormatJSON, job.Format)
}

func TestParseRequest_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		values url.Values
		field  string
	}{
		{"missing request", url.Values{"layers": {"temp"}}, "request"},
		{"unknown request", getMap("request", "GetLegendGraphic"), "request"},
		{"missing layers", getMap("layers", ""), "layers"},
		{"missing crs", getMap("crs", ""), "crs"},
		{"unsupported crs", getMap("crs", "EPSG:32619"), "crs"},
		{"short bbox", getMap("bbox", "1,2,3"), "bbox"},
		{"non numeric bbox", getMap("bbox", "a,2,3,4"), "bbox"},
		{"inverted bbox", getMap("bbox", "-69,41,-71,43"), "bbox"},
		{"zero width", getMap("width", "0"), "width"},
		{"huge height", getMap("height", "5000"), "height"},
		{"bad time", getMap("time", "yesterday"), "time"},
		{"backwards range", getMap("time", "2025-01-02/2025-01-01"), "time"},
		{"bad elevation", getMap("elevation", "deep"), "elevation"},
		{"bad style", getMap("styles", "sparkles_jet"), "styles"},
		{"too many contours", getMap("numcontours", "1000"), "numcontours"},
		{"negative vectorscale", getMap("vectorscale", "-1"), "vectorscale"},
		{"zero vectorstep", getMap("vectorstep", "0"), "vectorstep"},
		{"bad color range", getMap("colorscalerange", "10"), "colorscalerange"},
		{"inverted color range", getMap("colorscalerange", "10,1"), "colorscalerange"},
		{"bad logscale", getMap("logscale", "maybe"), "logscale"},
		{"jpeg", getMap("format", "image/jpeg"), "format"},
		{"xml info", getMap("request", "GetFeatureInfo", "info_format", "text/xml", "x", "1", "y", "1"), "info_format"},
		{"missing x", getMap("request", "GetFeatureInfo", "y", "1"), "x"},
		{"x outside", getMap("request", "GetFeatureInfo", "x", "300", "y", "1"), "x"},
		{"negative y", getMap("request", "GetFeatureInfo", "x", "1", "y", "-1"), "y"},
		{"metadata item", getMap("request", "GetMetadata", "item", "histogram"), "item"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRequest(tt.values, DefaultLimits)
			require.Error(t, err)
			var de *domain.Error
			require.ErrorAs(t, err, &de)
			assert.Equal(t, domain.KindValidation, de.Kind)
			assert.Equal(t, tt.field, de.Field)
		})
	}
}
