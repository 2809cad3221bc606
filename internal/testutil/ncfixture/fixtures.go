package ncfixture

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/fhs/go-netcdf/netcdf"
)

// Mesh layout shared by the unstructured fixtures: a 3x3 node lattice over
// lon -71..-69, lat 41..43 with two triangles per lattice cell.
var (
	MeshLons = []float64{-71, -70, -69}
	MeshLats = []float64{41, 42, 43}
)

// Time axis shared by the fixtures.
var (
	Epoch    = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	NumSteps = 3
)

// FillValue marks missing data in every fixture.
const FillValue = float32(-999)

// NodeCount and FaceCount describe the mesh fixtures.
const (
	NodeCount = 9
	FaceCount = 8
)

// MeshNode returns the lon/lat of node n.
func MeshNode(n int) (float64, float64) {
	return MeshLons[n%3], MeshLats[n/3]
}

// MeshFaces returns the 0-based triangle connectivity.
func MeshFaces() [][3]int {
	faces := make([][3]int, 0, FaceCount)
	for r := 0; r < 2; r++ {
		for c := 0; c < 2; c++ {
			n00, n10 := r*3+c, r*3+c+1
			n01, n11 := (r+1)*3+c, (r+1)*3+c+1
			faces = append(faces, [3]int{n00, n10, n11}, [3]int{n00, n11, n01})
		}
	}
	return faces
}

// UGridZeta is the node value of "zeta" at a step. Node 8 at step 0 is a fill value.
func UGridZeta(step, node int) float64 {
	if step == 0 && node == 8 {
		return math.NaN()
	}
	return float64(step*100 + node)
}

// UGridTemp is the face value of "temp" at a step.
func UGridTemp(step, face int) float64 {
	return 10 + float64(step) + 0.5*float64(face)
}

func meshNodes(b *builder, nodeDim, xName, yName string) {
	xs := make([]float64, NodeCount)
	ys := make([]float64, NodeCount)
	for n := 0; n < NodeCount; n++ {
		xs[n], ys[n] = MeshNode(n)
	}
	b.variable(xName, netcdf.DOUBLE, []string{nodeDim}, Attrs{"standard_name": "longitude", "units": "degrees_east"}, xs)
	b.variable(yName, netcdf.DOUBLE, []string{nodeDim}, Attrs{"standard_name": "latitude", "units": "degrees_north"}, ys)
}

func hourlySeconds(b *builder, dim, name string) {
	b.dim(dim, NumSteps)
	ts := make([]float64, NumSteps)
	for i := range ts {
		ts[i] = float64(i * 3600)
	}
	b.variable(name, netcdf.DOUBLE, []string{dim}, Attrs{
		"standard_name": "time", "units": "seconds since 2025-01-01 00:00:00",
	}, ts)
}

// UGrid writes a UGRID-convention mesh with node and face variables.
func UGrid(t testing.TB, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "ugrid.nc")
	b := create(t, path)
	b.global(Attrs{"Conventions": "CF-1.6, UGRID-1.0", "title": "mesh fixture"})
	b.dim("nMesh_node", NodeCount)
	b.dim("nMesh_face", FaceCount)
	b.dim("nMaxMesh_face_nodes", 3)
	hourlySeconds(b, "time", "time")

	b.variable("mesh", netcdf.INT, nil, Attrs{
		"cf_role":                "mesh_topology",
		"topology_dimension":     int32(2),
		"node_coordinates":       "mesh_node_x mesh_node_y",
		"face_node_connectivity": "mesh_face_nodes",
	}, nil)
	meshNodes(b, "nMesh_node", "mesh_node_x", "mesh_node_y")

	conn := make([]int32, 0, FaceCount*3)
	for _, f := range MeshFaces() {
		conn = append(conn, int32(f[0]), int32(f[1]), int32(f[2])) //nolint:gosec // G115: small ids.
	}
	b.variable("mesh_face_nodes", netcdf.INT, []string{"nMesh_face", "nMaxMesh_face_nodes"}, Attrs{
		"cf_role": "face_node_connectivity", "start_index": int32(0),
	}, conn)

	zeta := make([]float32, NumSteps*NodeCount)
	temp := make([]float64, NumSteps*FaceCount)
	u := make([]float64, NumSteps*FaceCount)
	v := make([]float64, NumSteps*FaceCount)
	for s := 0; s < NumSteps; s++ {
		for n := 0; n < NodeCount; n++ {
			z := UGridZeta(s, n)
			if math.IsNaN(z) {
				zeta[s*NodeCount+n] = FillValue
			} else {
				zeta[s*NodeCount+n] = float32(z)
			}
		}
		for f := 0; f < FaceCount; f++ {
			temp[s*FaceCount+f] = UGridTemp(s, f)
			u[s*FaceCount+f] = 1.0
			v[s*FaceCount+f] = 0.5
		}
	}
	b.variable("zeta", netcdf.FLOAT, []string{"time", "nMesh_node"}, Attrs{
		"standard_name": "sea_surface_height_above_geoid", "units": "m",
		"mesh": "mesh", "location": "node", "_FillValue": FillValue,
	}, zeta)
	b.variable("temp", netcdf.DOUBLE, []string{"time", "nMesh_face"}, Attrs{
		"standard_name": "sea_water_temperature", "units": "degC", "mesh": "mesh", "location": "face",
	}, temp)
	b.variable("u", netcdf.DOUBLE, []string{"time", "nMesh_face"}, Attrs{
		"standard_name": "eastward_sea_water_velocity", "units": "m s-1", "mesh": "mesh", "location": "face",
	}, u)
	b.variable("v", netcdf.DOUBLE, []string{"time", "nMesh_face"}, Attrs{
		"standard_name": "northward_sea_water_velocity", "units": "m s-1", "mesh": "mesh", "location": "face",
	}, v)
	b.close()
	return path
}

// FVCOM writes an FVCOM-style mesh: 1-based "nv" connectivity, layered velocities and a
// barotropic velocity pair.
func FVCOM(t testing.TB, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "fvcom.nc")
	b := create(t, path)
	b.global(Attrs{"title": "fvcom fixture", "source": "FVCOM_3.0"})
	b.dim("node", NodeCount)
	b.dim("nele", FaceCount)
	b.dim("three", 3)
	b.dim("siglay", 2)
	b.dim("time", 2)

	meshNodes(b, "node", "lon", "lat")
	nv := make([]int32, 3*FaceCount)
	lonc := make([]float64, FaceCount)
	latc := make([]float64, FaceCount)
	for f, tri := range MeshFaces() {
		for k := 0; k < 3; k++ {
			nv[k*FaceCount+f] = int32(tri[k] + 1) //nolint:gosec // G115: small ids.
			x, y := MeshNode(tri[k])
			lonc[f] += x / 3
			latc[f] += y / 3
		}
	}
	b.variable("nv", netcdf.INT, []string{"three", "nele"}, Attrs{"long_name": "nodes surrounding element"}, nv)
	b.variable("lonc", netcdf.DOUBLE, []string{"nele"}, Attrs{"units": "degrees_east"}, lonc)
	b.variable("latc", netcdf.DOUBLE, []string{"nele"}, Attrs{"units": "degrees_north"}, latc)
	b.variable("siglay", netcdf.DOUBLE, []string{"siglay"}, Attrs{
		"standard_name": "ocean_sigma_coordinate", "positive": "up",
	}, []float64{-0.25, -0.75})
	b.variable("time", netcdf.DOUBLE, []string{"time"}, Attrs{
		"units": "days since 1858-11-17 00:00:00",
	}, []float64{60676.0, 60676.5})

	layered := func(val float64) []float32 {
		out := make([]float32, 2*2*FaceCount)
		for i := range out {
			out[i] = float32(val)
		}
		return out
	}
	flat := func(val float64) []float32 {
		out := make([]float32, 2*FaceCount)
		for i := range out {
			out[i] = float32(val)
		}
		return out
	}
	b.variable("u", netcdf.FLOAT, []string{"time", "siglay", "nele"}, Attrs{
		"standard_name": "eastward_sea_water_velocity", "units": "meters s-1",
	}, layered(0.3))
	b.variable("v", netcdf.FLOAT, []string{"time", "siglay", "nele"}, Attrs{
		"standard_name": "northward_sea_water_velocity", "units": "meters s-1",
	}, layered(0.4))
	b.variable("ua", netcdf.FLOAT, []string{"time", "nele"}, Attrs{
		"standard_name": "barotropic_eastward_sea_water_velocity", "units": "meters s-1",
	}, flat(0.6))
	b.variable("va", netcdf.FLOAT, []string{"time", "nele"}, Attrs{
		"standard_name": "barotropic_northward_sea_water_velocity", "units": "meters s-1",
	}, flat(0.8))
	b.close()
	return path
}

// SGrid dimensions.
const (
	SGridEta = 4
	SGridXi  = 5
)

// SGridCoord returns the lon/lat of rho point (j, i).
func SGridCoord(j, i int) (float64, float64) {
	return -72 + float64(i)*0.5 + float64(j)*0.1, 40 + float64(j)*0.5 + float64(i)*0.05
}

// SGridTemp is the value of "temp" at (step, level, j, i). (0, 0, 0, 0) is a fill value.
func SGridTemp(step, k, j, i int) float64 {
	if step == 0 && k == 0 && j == 0 && i == 0 {
		return math.NaN()
	}
	return float64(step*1000 + k*100 + j*10 + i)
}

// SGrid writes a ROMS-like curvilinear grid with an SGRID topology variable.
func SGrid(t testing.TB, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "sgrid.nc")
	b := create(t, path)
	b.global(Attrs{"Conventions": "CF-1.6, SGRID-0.3"})
	b.dim("eta_rho", SGridEta)
	b.dim("xi_rho", SGridXi)
	b.dim("s_rho", 2)
	hourlySeconds(b, "ocean_time", "ocean_time")

	lon := make([]float64, SGridEta*SGridXi)
	lat := make([]float64, SGridEta*SGridXi)
	for j := 0; j < SGridEta; j++ {
		for i := 0; i < SGridXi; i++ {
			lon[j*SGridXi+i], lat[j*SGridXi+i] = SGridCoord(j, i)
		}
	}
	b.variable("grid", netcdf.INT, nil, Attrs{
		"cf_role": "grid_topology", "topology_dimension": int32(2),
		"face_dimensions": "xi_rho: xi_psi (padding: both) eta_rho: eta_psi (padding: both)",
	}, nil)
	b.variable("lon_rho", netcdf.DOUBLE, []string{"eta_rho", "xi_rho"}, Attrs{
		"standard_name": "longitude", "units": "degree_east",
	}, lon)
	b.variable("lat_rho", netcdf.DOUBLE, []string{"eta_rho", "xi_rho"}, Attrs{
		"standard_name": "latitude", "units": "degree_north",
	}, lat)
	b.variable("s_rho", netcdf.DOUBLE, []string{"s_rho"}, Attrs{
		"standard_name": "ocean_s_coordinate_g2", "positive": "up",
	}, []float64{-0.875, -0.125})

	temp := make([]float32, NumSteps*2*SGridEta*SGridXi)
	idx := 0
	for s := 0; s < NumSteps; s++ {
		for k := 0; k < 2; k++ {
			for j := 0; j < SGridEta; j++ {
				for i := 0; i < SGridXi; i++ {
					v := SGridTemp(s, k, j, i)
					if math.IsNaN(v) {
						temp[idx] = FillValue
					} else {
						temp[idx] = float32(v)
					}
					idx++
				}
			}
		}
	}
	b.variable("temp", netcdf.FLOAT, []string{"ocean_time", "s_rho", "eta_rho", "xi_rho"}, Attrs{
		"standard_name": "sea_water_potential_temperature", "units": "Celsius",
		"coordinates": "lon_rho lat_rho s_rho ocean_time", "_FillValue": FillValue,
	}, temp)
	b.close()
	return path
}

// Rectilinear axes.
var (
	RGridLats   = []float64{40, 41, 42}
	RGridLons   = []float64{-72, -71, -70, -69}
	RGridDepths = []float64{0, 10, 50}
)

// RGridTemp is the value of "temp" at (step, depth, lat, lon).
func RGridTemp(step, k, j, i int) float64 {
	return 20 - 2*float64(k) + float64(step) + float64(j) + 0.25*float64(i)
}

// RGrid writes a regular lat/lon grid with depth levels and a wind vector pair.
func RGrid(t testing.TB, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "rgrid.nc")
	b := create(t, path)
	nt, nk, nj, ni := 2, len(RGridDepths), len(RGridLats), len(RGridLons)
	b.dim("time", nt)
	b.dim("depth", nk)
	b.dim("lat", nj)
	b.dim("lon", ni)
	b.variable("time", netcdf.DOUBLE, []string{"time"}, Attrs{"units": "hours since 2025-01-01"}, []float64{0, 6})
	b.variable("depth", netcdf.DOUBLE, []string{"depth"}, Attrs{"units": "m", "positive": "down", "axis": "Z"}, RGridDepths)
	b.variable("lat", netcdf.DOUBLE, []string{"lat"}, Attrs{"standard_name": "latitude", "units": "degrees_north"}, RGridLats)
	b.variable("lon", netcdf.DOUBLE, []string{"lon"}, Attrs{"standard_name": "longitude", "units": "degrees_east"}, RGridLons)

	temp := make([]float64, 0, nt*nk*nj*ni)
	for s := 0; s < nt; s++ {
		for k := 0; k < nk; k++ {
			for j := 0; j < nj; j++ {
				for i := 0; i < ni; i++ {
					temp = append(temp, RGridTemp(s, k, j, i))
				}
			}
		}
	}
	b.variable("temp", netcdf.DOUBLE, []string{"time", "depth", "lat", "lon"}, Attrs{
		"standard_name": "sea_water_temperature", "units": "degC",
	}, temp)

	wind := func(val float32) []float32 {
		out := make([]float32, nt*nj*ni)
		for i := range out {
			out[i] = val
		}
		return out
	}
	b.variable("uwnd", netcdf.FLOAT, []string{"time", "lat", "lon"}, Attrs{
		"standard_name": "eastward_wind", "units": "m s-1",
	}, wind(3))
	b.variable("vwnd", netcdf.FLOAT, []string{"time", "lat", "lon"}, Attrs{
		"standard_name": "northward_wind", "units": "m s-1",
	}, wind(4))
	b.close()
	return path
}

// TideConstituents are the constituents stored in the tide fixture, with amplitude and phase.
var TideConstituents = []struct {
	Name      string
	Amplitude float64
	PhaseDeg  float64
}{
	{"M2", 1.0, 0},
	{"K1", 0.5, 90},
}

// Tide writes an unstructured mesh carrying tidal amplitude and phase per constituent.
func Tide(t testing.TB, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "tide.nc")
	b := create(t, path)
	nc := len(TideConstituents)
	b.dim("node", NodeCount)
	b.dim("nele", FaceCount)
	b.dim("three", 3)
	b.dim("ntides", nc)
	b.dim("namelen", 8)

	b.variable("mesh", netcdf.INT, nil, Attrs{
		"cf_role": "mesh_topology", "topology_dimension": int32(2),
		"node_coordinates": "lon lat", "face_node_connectivity": "ele",
	}, nil)
	meshNodes(b, "node", "lon", "lat")
	ele := make([]int32, 0, 3*FaceCount)
	for _, f := range MeshFaces() {
		ele = append(ele, int32(f[0]+1), int32(f[1]+1), int32(f[2]+1)) //nolint:gosec // G115: small ids.
	}
	b.variable("ele", netcdf.INT, []string{"nele", "three"}, Attrs{
		"cf_role": "face_node_connectivity", "start_index": int32(1),
	}, ele)

	names := make([]string, nc)
	amp := make([]float64, 0, nc*NodeCount)
	pha := make([]float64, 0, nc*NodeCount)
	for i, c := range TideConstituents {
		names[i] = c.Name
		for n := 0; n < NodeCount; n++ {
			amp = append(amp, c.Amplitude)
			pha = append(pha, c.PhaseDeg)
		}
	}
	b.variable("tidenames", netcdf.CHAR, []string{"ntides", "namelen"}, nil, chars(names, 8))
	b.variable("amp", netcdf.DOUBLE, []string{"ntides", "node"}, Attrs{
		"standard_name": "sea_surface_height_amplitude", "units": "m", "location": "node",
	}, amp)
	b.variable("phase", netcdf.DOUBLE, []string{"ntides", "node"}, Attrs{
		"standard_name": "sea_surface_height_phase", "units": "degrees", "location": "node",
	}, pha)
	b.close()
	return path
}

// Unrelated writes a station table with no grid structure.
func Unrelated(t testing.TB, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "stations.nc")
	b := create(t, path)
	b.dim("station", 3)
	b.variable("station_id", netcdf.INT, []string{"station"}, nil, []int32{101, 102, 103})
	b.variable("water_level", netcdf.DOUBLE, []string{"station"}, Attrs{"units": "m"}, []float64{0.1, 0.2, 0.3})
	b.close()
	return path
}
