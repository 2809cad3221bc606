package ncfile

import (
	"math"
	"testing"
	"time"

	"go.ngs.io/ocean-wms/internal/testutil/ncfixture"
)

func TestOpen_InspectsHeader(t *testing.T) {
	path := ncfixture.UGrid(t, t.TempDir())
	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	h := f.Header
	if h.Dims["nMesh_node"] != ncfixture.NodeCount || h.Dims["nMesh_face"] != ncfixture.FaceCount {
		t.Errorf("unexpected dims %v", h.Dims)
	}
	mesh := h.FindAttr("cf_role", "mesh_topology")
	if mesh == nil || mesh.Name != "mesh" {
		t.Fatalf("expected mesh topology variable, got %+v", mesh)
	}
	if got := mesh.Attr("face_node_connectivity"); got != "mesh_face_nodes" {
		t.Errorf("face_node_connectivity: got %q", got)
	}
	if v, ok := h.Var("mesh_face_nodes").NumAttr("start_index"); !ok || v != 0 {
		t.Errorf("start_index: got %v, %v", v, ok)
	}
	zeta := h.Var("zeta")
	if zeta == nil || zeta.Attr("location") != "node" || !zeta.HasDim("time") {
		t.Errorf("unexpected zeta info %+v", zeta)
	}
	if h.Global["title"] != "mesh fixture" {
		t.Errorf("global title: got %q", h.Global["title"])
	}
	if h.FindStdName("sea_water_temperature") == nil {
		t.Error("FindStdName should locate temp")
	}
}

func TestFile_Float64sMasksFill(t *testing.T) {
	f, err := Open(ncfixture.UGrid(t, t.TempDir()))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	zeta, err := f.Float64s("zeta")
	if err != nil {
		t.Fatal(err)
	}
	if len(zeta) != ncfixture.NumSteps*ncfixture.NodeCount {
		t.Fatalf("got %d values", len(zeta))
	}
	if !math.IsNaN(zeta[8]) {
		t.Errorf("expected fill at step 0 node 8 to be NaN, got %v", zeta[8])
	}
	if zeta[ncfixture.NodeCount+4] != ncfixture.UGridZeta(1, 4) {
		t.Errorf("step 1 node 4: got %v", zeta[ncfixture.NodeCount+4])
	}

	slice, err := f.Slice("temp", []int{2, 0}, []int{1, ncfixture.FaceCount})
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range slice {
		if v != ncfixture.UGridTemp(2, i) {
			t.Errorf("temp[2][%d]: got %v", i, v)
		}
	}
	if _, err := f.Slice("temp", []int{3, 0}, []int{1, 1}); err == nil {
		t.Error("expected out of range error")
	}
}

func TestFile_IntsAndStrings(t *testing.T) {
	f, err := Open(ncfixture.Tide(t, t.TempDir()))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	ele, err := f.Ints("ele")
	if err != nil {
		t.Fatal(err)
	}
	if len(ele) != 3*ncfixture.FaceCount || ele[0] != 1 {
		t.Errorf("unexpected connectivity %v", ele[:3])
	}
	names, err := f.Strings("tidenames")
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "M2" || names[1] != "K1" {
		t.Errorf("tidenames: got %q", names)
	}
}

func TestDecodeTimes(t *testing.T) {
	tests := []struct {
		name  string
		units string
		value float64
		want  time.Time
	}{
		{"seconds", "seconds since 2025-01-01 00:00:00", 3600, time.Date(2025, 1, 1, 1, 0, 0, 0, time.UTC)},
		{"hours date only", "hours since 2025-01-01", 6, time.Date(2025, 1, 1, 6, 0, 0, 0, time.UTC)},
		{"modified julian days", "days since 1858-11-17 00:00:00", 60676.5, time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)},
		{"iso reference", "minutes since 2025-01-01T00:00:00Z", 90, time.Date(2025, 1, 1, 1, 30, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeTimes([]float64{tt.value}, tt.units)
			if err != nil {
				t.Fatal(err)
			}
			if !got[0].Equal(tt.want) {
				t.Errorf("got %v, want %v", got[0], tt.want)
			}
		})
	}
	if _, err := DecodeTimes([]float64{1}, "fortnights since 2000-01-01"); err == nil {
		t.Error("expected unsupported unit error")
	}
	if _, err := DecodeTimes([]float64{1}, "seconds"); err == nil {
		t.Error("expected missing reference error")
	}
}
