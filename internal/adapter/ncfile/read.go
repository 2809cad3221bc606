package ncfile

import (
	"fmt"
	"math"
	"strings"

	"github.com/fhs/go-netcdf/netcdf"
)

// File is an open NetCDF dataset with its inspected header.
type File struct {
	ds     netcdf.Dataset
	Header *Header
}

// Open opens path read-only and inspects its header.
func Open(path string) (*File, error) {
	ds, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	if err != nil {
		return nil, fmt.Errorf("failed to open NetCDF file %s: %w", path, err)
	}
	h, err := Inspect(ds)
	if err != nil {
		ds.Close()
		return nil, fmt.Errorf("failed to inspect %s: %w", path, err)
	}
	return &File{ds: ds, Header: h}, nil
}

// Close releases the dataset.
func (f *File) Close() error {
	return f.ds.Close()
}

// Float64s reads a whole variable as float64 with scale_factor/add_offset applied and fill
// values replaced by NaN.
func (f *File) Float64s(name string) ([]float64, error) {
	info := f.Header.Var(name)
	if info == nil {
		return nil, fmt.Errorf("variable %s not found", name)
	}
	v, err := f.ds.Var(name)
	if err != nil {
		return nil, fmt.Errorf("failed to get variable %s: %w", name, err)
	}
	data, err := readAll(v, info.Type, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	unpack(info, data)
	return data, nil
}

// Slice reads a hyperslab of a variable. start and count have one entry per dimension.
func (f *File) Slice(name string, start, count []int) ([]float64, error) {
	info := f.Header.Var(name)
	if info == nil {
		return nil, fmt.Errorf("variable %s not found", name)
	}
	if len(start) != len(info.Dims) || len(count) != len(info.Dims) {
		return nil, fmt.Errorf("variable %s has %d dimensions, got start/count of %d/%d",
			name, len(info.Dims), len(start), len(count))
	}
	v, err := f.ds.Var(name)
	if err != nil {
		return nil, fmt.Errorf("failed to get variable %s: %w", name, err)
	}
	total := 1
	st := make([]uint64, len(start))
	ct := make([]uint64, len(count))
	for i := range start {
		if start[i] < 0 || count[i] < 1 || start[i]+count[i] > info.Shape[i] {
			return nil, fmt.Errorf("slice [%d:+%d] out of range for dimension %s of %s",
				start[i], count[i], info.Dims[i], name)
		}
		//nolint:gosec // G115: Safe int to uint64 conversion for NetCDF indices.
		st[i], ct[i] = uint64(start[i]), uint64(count[i])
		total *= count[i]
	}
	data, err := readSlice(v, info.Type, total, st, ct)
	if err != nil {
		return nil, fmt.Errorf("failed to read subset of %s: %w", name, err)
	}
	unpack(info, data)
	return data, nil
}

// Ints reads an integer variable such as a connectivity array. Fill values become -1.
func (f *File) Ints(name string) ([]int, error) {
	info := f.Header.Var(name)
	if info == nil {
		return nil, fmt.Errorf("variable %s not found", name)
	}
	v, err := f.ds.Var(name)
	if err != nil {
		return nil, fmt.Errorf("failed to get variable %s: %w", name, err)
	}
	data, err := readAll(v, info.Type, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	fill, hasFill := fillValue(info)
	out := make([]int, len(data))
	for i, x := range data {
		if (hasFill && x == fill) || math.IsNaN(x) {
			out[i] = -1
			continue
		}
		out[i] = int(x)
	}
	return out, nil
}

func fillValue(info *VarInfo) (float64, bool) {
	for _, name := range []string{"_FillValue", "missing_value"} {
		if v, ok := info.NumAttr(name); ok {
			return v, true
		}
	}
	return 0, false
}

// unpack masks fill values and applies CF packing attributes in place.
func unpack(info *VarInfo, data []float64) {
	fill, hasFill := fillValue(info)
	scale, hasScale := info.NumAttr("scale_factor")
	offset, _ := info.NumAttr("add_offset")
	for i, x := range data {
		switch {
		case hasFill && (x == fill || (fill != 0 && math.Abs(x-fill) <= math.Abs(fill)*1e-6)):
			data[i] = math.NaN()
		case hasScale:
			data[i] = x*scale + offset
		default:
			data[i] = x + offset
		}
	}
}

func readAll(v netcdf.Var, t netcdf.Type, n int) ([]float64, error) {
	switch t {
	case netcdf.DOUBLE:
		data := make([]float64, n)
		if err := v.ReadFloat64s(data); err != nil {
			return nil, err
		}
		return data, nil
	case netcdf.FLOAT:
		tmp := make([]float32, n)
		if err := v.ReadFloat32s(tmp); err != nil {
			return nil, err
		}
		return widen(tmp), nil
	case netcdf.INT:
		tmp := make([]int32, n)
		if err := v.ReadInt32s(tmp); err != nil {
			return nil, err
		}
		return widen(tmp), nil
	case netcdf.SHORT:
		tmp := make([]int16, n)
		if err := v.ReadInt16s(tmp); err != nil {
			return nil, err
		}
		return widen(tmp), nil
	case netcdf.INT64:
		tmp := make([]int64, n)
		if err := v.ReadInt64s(tmp); err != nil {
			return nil, err
		}
		return widen(tmp), nil
	default:
		return nil, fmt.Errorf("unsupported var type: %v", t)
	}
}

func readSlice(v netcdf.Var, t netcdf.Type, n int, start, count []uint64) ([]float64, error) {
	switch t {
	case netcdf.DOUBLE:
		data := make([]float64, n)
		if err := v.ReadFloat64Slice(data, start, count); err != nil {
			return nil, err
		}
		return data, nil
	case netcdf.FLOAT:
		tmp := make([]float32, n)
		if err := v.ReadFloat32Slice(tmp, start, count); err != nil {
			return nil, err
		}
		return widen(tmp), nil
	case netcdf.INT:
		tmp := make([]int32, n)
		if err := v.ReadInt32Slice(tmp, start, count); err != nil {
			return nil, err
		}
		return widen(tmp), nil
	case netcdf.SHORT:
		tmp := make([]int16, n)
		if err := v.ReadInt16Slice(tmp, start, count); err != nil {
			return nil, err
		}
		return widen(tmp), nil
	default:
		return nil, fmt.Errorf("unsupported var type: %v", t)
	}
}

func widen[T float32 | int16 | int32 | int64](in []T) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

// Strings reads a 2-D character variable as one trimmed string per row.
func (f *File) Strings(name string) ([]string, error) {
	info := f.Header.Var(name)
	if info == nil {
		return nil, fmt.Errorf("variable %s not found", name)
	}
	if info.Type != netcdf.CHAR || len(info.Shape) != 2 {
		return nil, fmt.Errorf("variable %s is not a 2-D character array", name)
	}
	v, err := f.ds.Var(name)
	if err != nil {
		return nil, fmt.Errorf("failed to get variable %s: %w", name, err)
	}
	buf := make([]byte, info.Size())
	if err := v.ReadBytes(buf); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	rows, width := info.Shape[0], info.Shape[1]
	out := make([]string, rows)
	for i := range out {
		out[i] = strings.TrimRight(string(buf[i*width:(i+1)*width]), "\x00 ")
	}
	return out, nil
}
