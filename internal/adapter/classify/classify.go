// Package classify identifies the grid model of a NetCDF file from its structure.
package classify

import (
	"strings"

	"go.ngs.io/ocean-wms/internal/adapter/ncfile"
	"go.ngs.io/ocean-wms/internal/domain"
)

// handler recognises one grid model.
type handler struct {
	variant domain.TypeVariant
	match   func(*ncfile.Header) bool
}

// handlers run in priority order; the most specific structure wins.
var handlers = []handler{
	{domain.TideHarmonicMesh, isTideMesh},
	{domain.UnstructuredMesh, isMesh},
	{domain.StructuredCurvilinear, isCurvilinear},
	{domain.StructuredRectilinear, isRectilinear},
}

var (
	tideDims  = []string{"ntides", "nconstituents", "constituent", "constituents", "nfreq"}
	tideNames = []string{"tidenames", "constituent_names", "con", "const"}
	lonNames  = []string{"lon", "longitude", "x", "nav_lon"}
	latNames  = []string{"lat", "latitude", "y", "nav_lat"}
)

// Classify probes the file at uri. Any failure, including a panic in the NetCDF layer,
// yields Unidentified.
func Classify(uri string) (variant domain.TypeVariant) {
	defer func() {
		if r := recover(); r != nil {
			variant = domain.Unidentified
		}
	}()
	f, err := ncfile.Open(uri)
	if err != nil {
		return domain.Unidentified
	}
	defer f.Close()
	return ClassifyHeader(f.Header)
}

// ClassifyHeader picks the first matching variant for an inspected header.
func ClassifyHeader(h *ncfile.Header) domain.TypeVariant {
	if h == nil {
		return domain.Unidentified
	}
	for _, hd := range handlers {
		if hd.match(h) {
			return hd.variant
		}
	}
	return domain.Unidentified
}

// MeshConnectivity returns the face-node connectivity variable of a mesh header, or nil.
func MeshConnectivity(h *ncfile.Header) *ncfile.VarInfo {
	if mesh := h.FindAttr("cf_role", "mesh_topology"); mesh != nil {
		if c := h.Var(mesh.Attr("face_node_connectivity")); c != nil && len(c.Shape) == 2 {
			return c
		}
	}
	if nv := h.Find("nv", "ele", "element"); nv != nil && len(nv.Shape) == 2 && hasNodeCoords(h) {
		return nv
	}
	return nil
}

// ConstituentDim returns the name of the tidal constituent dimension, or "".
func ConstituentDim(h *ncfile.Header) string {
	for _, d := range tideDims {
		if _, ok := h.Dims[d]; ok {
			return d
		}
	}
	if v := h.Find(tideNames...); v != nil && len(v.Dims) > 0 {
		return v.Dims[0]
	}
	return ""
}

func hasNodeCoords(h *ncfile.Header) bool {
	lon, lat := h.Find(lonNames...), h.Find(latNames...)
	return lon != nil && lat != nil && len(lon.Dims) == 1 && len(lat.Dims) == 1 && lon.Dims[0] == lat.Dims[0]
}

func isMesh(h *ncfile.Header) bool {
	return MeshConnectivity(h) != nil
}

func isTideMesh(h *ncfile.Header) bool {
	return isMesh(h) && ConstituentDim(h) != ""
}

// coordPair finds longitude/latitude variables by standard name, then by common names.
func coordPair(h *ncfile.Header) (lon, lat *ncfile.VarInfo) {
	lon, lat = h.FindStdName("longitude"), h.FindStdName("latitude")
	if lon == nil || lat == nil {
		lon, lat = h.Find(append(lonNames, "lon_rho")...), h.Find(append(latNames, "lat_rho")...)
	}
	return lon, lat
}

func isCurvilinear(h *ncfile.Header) bool {
	if h.FindAttr("cf_role", "grid_topology") != nil {
		return true
	}
	lon, lat := coordPair(h)
	return lon != nil && lat != nil && len(lon.Dims) == 2 && len(lat.Dims) == 2 &&
		strings.Join(lon.Dims, ",") == strings.Join(lat.Dims, ",")
}

func isRectilinear(h *ncfile.Header) bool {
	lon, lat := coordPair(h)
	if lon == nil || lat == nil || len(lon.Dims) != 1 || len(lat.Dims) != 1 || lon.Dims[0] == lat.Dims[0] {
		return false
	}
	// Some data variable must span both axes.
	for _, name := range h.Order {
		v := h.Vars[name]
		if v.HasDim(lon.Dims[0]) && v.HasDim(lat.Dims[0]) {
			return true
		}
	}
	return false
}
