// Package geo converts between request and native coordinate systems and maps image pixels
// to coordinates.
package geo

import (
	"fmt"
	"math"
	"strings"

	"github.com/go-spatial/geom"

	"go.ngs.io/ocean-wms/internal/domain"
)

// Supported CRS codes.
const (
	EPSG4326   = "EPSG:4326"
	CRS84      = "CRS:84"
	EPSG3857   = "EPSG:3857"
	EPSG900913 = "EPSG:900913"
	EPSG102100 = "EPSG:102100"
)

const (
	earthRadius = 6378137.0
	// MaxMercatorLat is the latitude at which spherical Web Mercator becomes square.
	MaxMercatorLat = 85.0511287798
)

// NormalizeCRS upper-cases a CRS code and reports whether it is supported.
func NormalizeCRS(crs string) (string, bool) {
	c := strings.ToUpper(strings.TrimSpace(crs))
	switch c {
	case EPSG4326, CRS84, EPSG3857, EPSG900913, EPSG102100:
		return c, true
	}
	return c, false
}

// IsGeographic reports whether the CRS is lon/lat degrees.
func IsGeographic(crs string) bool {
	c, _ := NormalizeCRS(crs)
	return c == EPSG4326 || c == CRS84
}

// MercatorForward projects lon/lat degrees to spherical Web Mercator meters.
func MercatorForward(lon, lat float64) (float64, float64) {
	lat = math.Max(-MaxMercatorLat, math.Min(MaxMercatorLat, lat))
	x := earthRadius * domain.Deg2Rad(lon)
	y := earthRadius * math.Log(math.Tan(math.Pi/4+domain.Deg2Rad(lat)/2))
	return x, y
}

// MercatorInverse converts Web Mercator meters to lon/lat degrees.
func MercatorInverse(x, y float64) (float64, float64) {
	lon := domain.Rad2Deg(x / earthRadius)
	lat := domain.Rad2Deg(2*math.Atan(math.Exp(y/earthRadius)) - math.Pi/2)
	return lon, lat
}

// ToLonLat converts a point in crs to lon/lat.
func ToLonLat(crs string, x, y float64) (float64, float64, error) {
	c, ok := NormalizeCRS(crs)
	if !ok {
		return 0, 0, fmt.Errorf("unsupported crs %q", crs)
	}
	if IsGeographic(c) {
		return x, y, nil
	}
	lon, lat := MercatorInverse(x, y)
	return lon, lat, nil
}

// FromLonLat converts lon/lat to a point in crs.
func FromLonLat(crs string, lon, lat float64) (float64, float64, error) {
	c, ok := NormalizeCRS(crs)
	if !ok {
		return 0, 0, fmt.Errorf("unsupported crs %q", crs)
	}
	if IsGeographic(c) {
		return lon, lat, nil
	}
	x, y := MercatorForward(lon, lat)
	return x, y, nil
}

// ExtentToLonLat reprojects a request bbox into a lon/lat envelope.
func ExtentToLonLat(crs string, b domain.BBox) (*geom.Extent, error) {
	minLon, minLat, err := ToLonLat(crs, b.MinX, b.MinY)
	if err != nil {
		return nil, err
	}
	maxLon, maxLat, err := ToLonLat(crs, b.MaxX, b.MaxY)
	if err != nil {
		return nil, err
	}
	return geom.NewExtent([2]float64{minLon, minLat}, [2]float64{maxLon, maxLat}), nil
}

// NormalizeLon180 wraps a longitude into [-180, 180).
func NormalizeLon180(lon float64) float64 {
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}

// NormalizeLon360 wraps a longitude into [0, 360).
func NormalizeLon360(lon float64) float64 {
	lon = math.Mod(lon, 360)
	if lon < 0 {
		lon += 360
	}
	return lon
}

// LonAxisIs360 reports whether longitudes run 0..360 rather than -180..180.
func LonAxisIs360(minLon, maxLon float64) bool {
	if minLon > maxLon {
		minLon, maxLon = maxLon, minLon
	}
	return minLon >= 0 && maxLon > 180
}

// LonForAxis brings a request longitude into the convention of a dataset envelope.
func LonForAxis(minLon, maxLon, lon float64) float64 {
	if LonAxisIs360(minLon, maxLon) {
		return NormalizeLon360(lon)
	}
	if lon > 180 {
		return NormalizeLon180(lon)
	}
	return lon
}
