// Package ncfixture writes small NetCDF files shaped like the grid models the service reads.
package ncfixture

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fhs/go-netcdf/netcdf"
)

// Attrs maps attribute names to string, float64, float32 or int32 values.
type Attrs map[string]any

type builder struct {
	t    testing.TB
	ds   netcdf.Dataset
	dims map[string]netcdf.Dim
	vars map[string]netcdf.Var
	data []func() error
}

func create(t testing.TB, path string) *builder {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	ds, err := netcdf.CreateFile(path, netcdf.CLOBBER)
	if err != nil {
		t.Fatalf("create nc: %v", err)
	}
	return &builder{t: t, ds: ds, dims: map[string]netcdf.Dim{}, vars: map[string]netcdf.Var{}}
}

func (b *builder) dim(name string, n int) {
	b.t.Helper()
	d, err := b.ds.AddDim(name, uint64(n)) //nolint:gosec // G115: fixture sizes are small.
	if err != nil {
		b.t.Fatalf("add dim %s: %v", name, err)
	}
	b.dims[name] = d
}

func (b *builder) global(attrs Attrs) {
	b.t.Helper()
	for k, v := range attrs {
		writeAttr(b.t, b.ds.Attr(k), k, v)
	}
}

// variable declares a variable and queues its data; data is []float64, []float32, []int32 or []byte.
func (b *builder) variable(name string, t netcdf.Type, dims []string, attrs Attrs, data any) {
	b.t.Helper()
	if len(dims) == 0 {
		// Container variables get a length-1 dimension instead of being true scalars.
		if _, ok := b.dims["one"]; !ok {
			b.dim("one", 1)
		}
		dims = []string{"one"}
	}
	ds := make([]netcdf.Dim, len(dims))
	for i, d := range dims {
		dim, ok := b.dims[d]
		if !ok {
			b.t.Fatalf("variable %s: unknown dim %s", name, d)
		}
		ds[i] = dim
	}
	v, err := b.ds.AddVar(name, t, ds)
	if err != nil {
		b.t.Fatalf("add var %s: %v", name, err)
	}
	for k, a := range attrs {
		writeAttr(b.t, v.Attr(k), name+"."+k, a)
	}
	b.vars[name] = v
	if data == nil {
		return
	}
	b.data = append(b.data, func() error {
		switch d := data.(type) {
		case []float64:
			return v.WriteFloat64s(d)
		case []float32:
			return v.WriteFloat32s(d)
		case []int32:
			return v.WriteInt32s(d)
		case []byte:
			return v.WriteBytes(d)
		}
		return nil
	})
}

func (b *builder) close() {
	b.t.Helper()
	if err := b.ds.EndDef(); err != nil {
		b.t.Fatalf("enddef: %v", err)
	}
	for _, w := range b.data {
		if err := w(); err != nil {
			b.t.Fatalf("write data: %v", err)
		}
	}
	if err := b.ds.Close(); err != nil {
		b.t.Fatalf("close: %v", err)
	}
}

func writeAttr(t testing.TB, a netcdf.Attr, name string, v any) {
	t.Helper()
	var err error
	switch x := v.(type) {
	case string:
		err = a.WriteBytes([]byte(x))
	case float64:
		err = a.WriteFloat64s([]float64{x})
	case float32:
		err = a.WriteFloat32s([]float32{x})
	case int32:
		err = a.WriteInt32s([]int32{x})
	case int:
		err = a.WriteInt32s([]int32{int32(x)}) //nolint:gosec // G115: fixture values are small.
	}
	if err != nil {
		t.Fatalf("write attr %s: %v", name, err)
	}
}

// chars pads names into a fixed-width character block.
func chars(names []string, width int) []byte {
	out := make([]byte, len(names)*width)
	for i, n := range names {
		copy(out[i*width:], n)
	}
	return out
}
