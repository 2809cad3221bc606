// Package ncfile reads NetCDF structure and values for the classifier, topology builders and
// variable readers.
package ncfile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fhs/go-netcdf/netcdf"
)

// Attributes captured from every variable.
var knownAttrs = []string{
	"standard_name", "long_name", "units", "cf_role", "topology_dimension",
	"face_node_connectivity", "node_coordinates", "face_coordinates", "edge_node_connectivity",
	"location", "mesh", "axis", "positive", "coordinates", "calendar", "start_index",
	"_FillValue", "missing_value", "scale_factor", "add_offset",
}

var knownGlobalAttrs = []string{"Conventions", "title", "source", "institution"}

// VarInfo describes one variable.
type VarInfo struct {
	Name  string
	Type  netcdf.Type
	Dims  []string
	Shape []int
	Attrs map[string]string
}

// Attr returns a text (or formatted numeric) attribute, or "".
func (v *VarInfo) Attr(name string) string {
	if v == nil {
		return ""
	}
	return v.Attrs[name]
}

// NumAttr parses a numeric attribute.
func (v *VarInfo) NumAttr(name string) (float64, bool) {
	s := v.Attr(name)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.Fields(s)[0], 64)
	return f, err == nil
}

// HasDim reports whether the variable spans the named dimension.
func (v *VarInfo) HasDim(name string) bool {
	for _, d := range v.Dims {
		if d == name {
			return true
		}
	}
	return false
}

// Size returns the number of values in the variable.
func (v *VarInfo) Size() int {
	n := 1
	for _, s := range v.Shape {
		n *= s
	}
	return n
}

// Header is the structural signature of a NetCDF file.
type Header struct {
	Vars   map[string]*VarInfo
	Order  []string // Variable names in file order.
	Dims   map[string]int
	Global map[string]string
}

// Var returns the named variable or nil.
func (h *Header) Var(name string) *VarInfo {
	return h.Vars[name]
}

// Find returns the first existing variable among candidates.
func (h *Header) Find(candidates ...string) *VarInfo {
	for _, c := range candidates {
		if v, ok := h.Vars[c]; ok {
			return v
		}
	}
	return nil
}

// FindAttr returns the first variable (in file order) whose attribute equals value.
func (h *Header) FindAttr(attr, value string) *VarInfo {
	for _, name := range h.Order {
		if v := h.Vars[name]; strings.EqualFold(v.Attrs[attr], value) {
			return v
		}
	}
	return nil
}

// FindStdName returns the first variable with one of the given standard names.
func (h *Header) FindStdName(names ...string) *VarInfo {
	for _, n := range names {
		if v := h.FindAttr("standard_name", n); v != nil {
			return v
		}
	}
	return nil
}

// Inspect reads the header of an open dataset.
func Inspect(ds netcdf.Dataset) (h *Header, err error) {
	defer func() {
		if r := recover(); r != nil {
			h, err = nil, fmt.Errorf("malformed header: %v", r)
		}
	}()
	n, err := ds.NVars()
	if err != nil {
		return nil, fmt.Errorf("failed to count variables: %w", err)
	}
	h = &Header{
		Vars:   make(map[string]*VarInfo, n),
		Dims:   make(map[string]int),
		Global: make(map[string]string),
	}
	for i := 0; i < n; i++ {
		v := ds.VarN(i)
		info, err := inspectVar(v)
		if err != nil {
			return nil, err
		}
		for j, d := range info.Dims {
			h.Dims[d] = info.Shape[j]
		}
		h.Vars[info.Name] = info
		h.Order = append(h.Order, info.Name)
	}
	for _, name := range knownGlobalAttrs {
		if s, ok := readAttr(ds.Attr(name)); ok {
			h.Global[name] = s
		}
	}
	return h, nil
}

func inspectVar(v netcdf.Var) (*VarInfo, error) {
	name, err := v.Name()
	if err != nil {
		return nil, fmt.Errorf("failed to get variable name: %w", err)
	}
	t, err := v.Type()
	if err != nil {
		return nil, fmt.Errorf("failed to get type of %s: %w", name, err)
	}
	dims, err := v.Dims()
	if err != nil {
		return nil, fmt.Errorf("failed to get dimensions of %s: %w", name, err)
	}
	info := &VarInfo{Name: name, Type: t, Attrs: make(map[string]string)}
	for _, d := range dims {
		dn, err := d.Name()
		if err != nil {
			return nil, fmt.Errorf("failed to get dimension name of %s: %w", name, err)
		}
		dl, err := d.Len()
		if err != nil {
			return nil, fmt.Errorf("failed to get dimension length of %s: %w", name, err)
		}
		info.Dims = append(info.Dims, dn)
		info.Shape = append(info.Shape, int(dl)) //nolint:gosec // G115: dimension lengths fit in int.
	}
	for _, a := range knownAttrs {
		if s, ok := readAttr(v.Attr(a)); ok {
			info.Attrs[a] = s
		}
	}
	return info, nil
}

// readAttr reads a text attribute, or formats a numeric one. Missing attributes report false.
func readAttr(a netcdf.Attr) (string, bool) {
	n, err := a.Len()
	if err != nil || n == 0 {
		return "", false
	}
	t, err := a.Type()
	if err != nil {
		return "", false
	}
	switch t {
	case netcdf.CHAR:
		buf := make([]byte, n)
		if err := a.ReadBytes(buf); err != nil {
			return "", false
		}
		return strings.TrimRight(string(buf), "\x00 "), true
	case netcdf.DOUBLE:
		buf := make([]float64, n)
		if err := a.ReadFloat64s(buf); err != nil {
			return "", false
		}
		return joinNums(buf), true
	case netcdf.FLOAT:
		buf := make([]float32, n)
		if err := a.ReadFloat32s(buf); err != nil {
			return "", false
		}
		out := make([]float64, n)
		for i, x := range buf {
			out[i] = float64(x)
		}
		return joinNums(out), true
	case netcdf.INT:
		buf := make([]int32, n)
		if err := a.ReadInt32s(buf); err != nil {
			return "", false
		}
		out := make([]float64, n)
		for i, x := range buf {
			out[i] = float64(x)
		}
		return joinNums(out), true
	case netcdf.SHORT:
		buf := make([]int16, n)
		if err := a.ReadInt16s(buf); err != nil {
			return "", false
		}
		out := make([]float64, n)
		for i, x := range buf {
			out[i] = float64(x)
		}
		return joinNums(out), true
	default:
		return "", false
	}
}

func joinNums(vals []float64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, " ")
}
