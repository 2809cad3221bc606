package topology

import (
	"fmt"
	"math"
	"strings"

	"github.com/go-spatial/geom"

	"go.ngs.io/ocean-wms/internal/adapter/classify"
	"go.ngs.io/ocean-wms/internal/adapter/ncfile"
	"go.ngs.io/ocean-wms/internal/domain"
)

type builderFunc func(f *ncfile.File, t *Topology) error

// builders holds one structural parser per variant. Unidentified has none.
var builders = map[domain.TypeVariant]builderFunc{
	domain.UnstructuredMesh:      buildMesh,
	domain.TideHarmonicMesh:      buildTideMesh,
	domain.StructuredCurvilinear: buildCurvilinear,
	domain.StructuredRectilinear: buildRectilinear,
}

// Parse reads the structure of the file at path for the given variant.
func Parse(path, slug string, variant domain.TypeVariant, modTime int64) (*Topology, error) {
	build, ok := builders[variant]
	if !ok {
		return nil, domain.UnsupportedTypeError(slug)
	}
	f, err := ncfile.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t := &Topology{Dataset: slug, Variant: variant, SourceModTime: modTime}
	if err := build(f, t); err != nil {
		return nil, fmt.Errorf("failed to build %s topology: %w", variant, err)
	}
	if err := readTime(f, t); err != nil {
		return nil, err
	}
	readDepth(f, t)
	if err := finish(t); err != nil {
		return nil, err
	}
	return t, nil
}

var (
	lonCandidates = []string{"lon", "longitude", "x", "mesh_node_x", "nav_lon", "lon_rho"}
	latCandidates = []string{"lat", "latitude", "y", "mesh_node_y", "nav_lat", "lat_rho"}
)

func nodeCoords(h *ncfile.Header) (*ncfile.VarInfo, *ncfile.VarInfo, error) {
	if mesh := h.FindAttr("cf_role", "mesh_topology"); mesh != nil {
		names := strings.Fields(mesh.Attr("node_coordinates"))
		if len(names) == 2 && h.Var(names[0]) != nil && h.Var(names[1]) != nil {
			return h.Var(names[0]), h.Var(names[1]), nil
		}
	}
	x, y := h.Find(lonCandidates...), h.Find(latCandidates...)
	if x == nil || y == nil {
		return nil, nil, fmt.Errorf("no node coordinate variables")
	}
	return x, y, nil
}

func buildMesh(f *ncfile.File, t *Topology) error {
	h := f.Header
	xv, yv, err := nodeCoords(h)
	if err != nil {
		return err
	}
	if len(xv.Dims) != 1 {
		return fmt.Errorf("node coordinate %s is not 1-D", xv.Name)
	}
	if t.NodeX, err = f.Float64s(xv.Name); err != nil {
		return err
	}
	if t.NodeY, err = f.Float64s(yv.Name); err != nil {
		return err
	}
	t.NodeDim = xv.Dims[0]

	conn := classify.MeshConnectivity(h)
	if conn == nil {
		return fmt.Errorf("no face-node connectivity")
	}
	raw, err := f.Ints(conn.Name)
	if err != nil {
		return err
	}

	// Connectivity is [face, corner] in UGRID and [corner, face] in FVCOM.
	nFace, nCorner := conn.Shape[0], conn.Shape[1]
	t.FaceDim = conn.Dims[0]
	transposed := nFace <= 4 && nCorner > 4
	if transposed {
		nFace, nCorner = nCorner, nFace
		t.FaceDim = conn.Dims[1]
	}
	at := func(face, k int) int {
		if transposed {
			return raw[k*nFace+face]
		}
		return raw[face*nCorner+k]
	}

	start := startIndex(conn, raw)
	nNodes := len(t.NodeX)
	t.FaceX = make([]float64, nFace)
	t.FaceY = make([]float64, nFace)
	for face := 0; face < nFace; face++ {
		corners := make([]int32, 0, nCorner)
		for k := 0; k < nCorner; k++ {
			n := at(face, k)
			if n < 0 {
				continue
			}
			n -= start
			if n < 0 || n >= nNodes {
				return fmt.Errorf("face %d references node %d of %d", face, n, nNodes)
			}
			corners = append(corners, int32(n)) //nolint:gosec // G115: node ids fit in int32.
		}
		var sx, sy float64
		for _, n := range corners {
			sx += t.NodeX[n]
			sy += t.NodeY[n]
		}
		if len(corners) > 0 {
			t.FaceX[face], t.FaceY[face] = sx/float64(len(corners)), sy/float64(len(corners))
		} else {
			t.FaceX[face], t.FaceY[face] = math.NaN(), math.NaN()
		}
		// Fan-triangulate polygons.
		for k := 1; k+1 < len(corners); k++ {
			t.addTri(corners[0], corners[k], corners[k+1], face)
		}
	}
	return nil
}

func (t *Topology) addTri(a, b, c int32, face int) {
	for _, n := range []int32{a, b, c} {
		if math.IsNaN(t.NodeX[n]) || math.IsNaN(t.NodeY[n]) {
			return
		}
	}
	t.Tris = append(t.Tris, [3]int32{a, b, c})
	t.TriFace = append(t.TriFace, int32(face)) //nolint:gosec // G115: face ids fit in int32.
}

// startIndex honours the start_index attribute, else infers 1-based numbering when no
// zero index appears.
func startIndex(conn *ncfile.VarInfo, raw []int) int {
	if v, ok := conn.NumAttr("start_index"); ok {
		return int(v)
	}
	for _, n := range raw {
		if n == 0 {
			return 0
		}
	}
	return 1
}

func buildTideMesh(f *ncfile.File, t *Topology) error {
	if err := buildMesh(f, t); err != nil {
		return err
	}
	h := f.Header
	t.ConstituentDim = classify.ConstituentDim(h)
	if t.ConstituentDim == "" {
		return fmt.Errorf("no constituent dimension")
	}
	for _, name := range []string{"tidenames", "constituent_names", "con", "const"} {
		if v := h.Var(name); v != nil && len(v.Shape) == 2 {
			names, err := f.Strings(name)
			if err != nil {
				return err
			}
			t.Constituents = names
			return nil
		}
	}
	return fmt.Errorf("no constituent names")
}

func buildCurvilinear(f *ncfile.File, t *Topology) error {
	h := f.Header
	xv, yv := h.FindStdName("longitude"), h.FindStdName("latitude")
	if xv == nil || len(xv.Shape) != 2 {
		xv = h.Find("lon_rho", "nav_lon", "lon", "longitude")
	}
	if yv == nil || len(yv.Shape) != 2 {
		yv = h.Find("lat_rho", "nav_lat", "lat", "latitude")
	}
	if xv == nil || yv == nil || len(xv.Shape) != 2 || len(yv.Shape) != 2 {
		return fmt.Errorf("no 2-D coordinate variables")
	}
	var err error
	if t.NodeX, err = f.Float64s(xv.Name); err != nil {
		return err
	}
	if t.NodeY, err = f.Float64s(yv.Name); err != nil {
		return err
	}
	t.NY, t.NX = xv.Shape[0], xv.Shape[1]
	t.YDim, t.XDim = xv.Dims[0], xv.Dims[1]

	cells := 0
	for j := 0; j < t.NY-1; j++ {
		for i := 0; i < t.NX-1; i++ {
			n00 := int32(j*t.NX + i) //nolint:gosec // G115: grid ids fit in int32.
			n10, n01 := n00+1, n00+int32(t.NX) //nolint:gosec // G115: grid ids fit in int32.
			n11 := n01 + 1
			t.addTri(n00, n10, n11, cells)
			t.addTri(n00, n11, n01, cells)
			cells++
		}
	}
	return nil
}

func buildRectilinear(f *ncfile.File, t *Topology) error {
	h := f.Header
	xv, yv := h.FindStdName("longitude"), h.FindStdName("latitude")
	if xv == nil || yv == nil {
		xv, yv = h.Find(lonCandidates...), h.Find(latCandidates...)
	}
	if xv == nil || yv == nil || len(xv.Shape) != 1 || len(yv.Shape) != 1 {
		return fmt.Errorf("no 1-D coordinate axes")
	}
	lon, err := f.Float64s(xv.Name)
	if err != nil {
		return err
	}
	lat, err := f.Float64s(yv.Name)
	if err != nil {
		return err
	}
	if len(lon) < 2 || len(lat) < 2 {
		return fmt.Errorf("axes need at least 2 points, got %d x %d", len(lon), len(lat))
	}
	if lat[0] > lat[len(lat)-1] {
		reverse(lat)
		t.LatDescending = true
	}
	if lon[0] > lon[len(lon)-1] {
		return fmt.Errorf("descending longitude axis is not supported")
	}
	t.LonAxis, t.LatAxis = lon, lat
	t.NY, t.NX = len(lat), len(lon)
	t.YDim, t.XDim = yv.Dims[0], xv.Dims[0]
	return nil
}

func reverse(s []float64) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func readTime(f *ncfile.File, t *Topology) error {
	h := f.Header
	var tv *ncfile.VarInfo
	for _, name := range h.Order {
		v := h.Vars[name]
		if len(v.Dims) != 1 || !strings.Contains(v.Attr("units"), " since ") {
			continue
		}
		if v.Attr("standard_name") == "time" || v.Attr("axis") == "T" || v.Name == v.Dims[0] ||
			strings.Contains(strings.ToLower(v.Name), "time") {
			tv = v
			break
		}
	}
	if tv == nil {
		return nil
	}
	raw, err := f.Float64s(tv.Name)
	if err != nil {
		return err
	}
	times, err := ncfile.DecodeTimes(raw, tv.Attr("units"))
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", tv.Name, err)
	}
	t.TimeDim, t.Times = tv.Dims[0], times
	return nil
}

// readDepth picks the first 1-D vertical coordinate. Missing depth is not an error.
func readDepth(f *ncfile.File, t *Topology) {
	h := f.Header
	for _, name := range h.Order {
		v := h.Vars[name]
		if len(v.Dims) != 1 || v.Dims[0] == t.TimeDim {
			continue
		}
		pos := strings.ToLower(v.Attr("positive"))
		if pos == "" && v.Attr("axis") != "Z" {
			continue
		}
		depths, err := f.Float64s(v.Name)
		if err != nil {
			continue
		}
		if pos == "" {
			pos = "down"
		}
		t.DepthDim, t.Depths, t.DepthPositive = v.Dims[0], depths, pos
		return
	}
}

// finish computes the envelope and spatial index.
func finish(t *Topology) error {
	var env *geom.Extent
	add := func(x, y float64) {
		if math.IsNaN(x) || math.IsNaN(y) {
			return
		}
		if env == nil {
			env = geom.NewExtent([2]float64{x, y})
			return
		}
		env.AddPoints([2]float64{x, y})
	}
	if t.Variant == domain.StructuredRectilinear {
		add(t.LonAxis[0], t.LatAxis[0])
		add(t.LonAxis[len(t.LonAxis)-1], t.LatAxis[len(t.LatAxis)-1])
	} else {
		for i := range t.NodeX {
			add(t.NodeX[i], t.NodeY[i])
		}
	}
	if env == nil {
		return fmt.Errorf("grid has no valid coordinates")
	}
	t.Envelope = *env
	if t.HasMesh() {
		t.Index = buildIndex(env, t.NodeX, t.NodeY, t.Tris)
	}
	return nil
}
