package domain

import (
	"reflect"
	"testing"
)

func f64(v float64) *float64 { return &v }
func boolp(v bool) *bool     { return &v }

func TestSplitVarNames(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"u", []string{"u"}},
		{"u,v", []string{"u", "v"}},
		{"u*v", []string{"u", "v"}},
		{" ua , va ", []string{"ua", "va"}},
		{",,", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := SplitVarNames(tt.in)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitVarNames(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLayer_AccessNameAndConstituents(t *testing.T) {
	direct := Layer{Kind: Direct, VarName: "temp"}
	if direct.AccessName() != "temp" {
		t.Errorf("direct access name: got %q", direct.AccessName())
	}
	if got := direct.Constituents(); !reflect.DeepEqual(got, []string{"temp"}) {
		t.Errorf("direct constituents: got %v", got)
	}

	virtual := Layer{Kind: Virtual, VarName: "u,v"}
	if virtual.AccessName() != "u" {
		t.Errorf("virtual access name: got %q, want u", virtual.AccessName())
	}
	if got := virtual.Constituents(); !reflect.DeepEqual(got, []string{"u", "v"}) {
		t.Errorf("virtual constituents: got %v", got)
	}
}

func TestLayer_DefaultStyle(t *testing.T) {
	if s := (Layer{Kind: Direct}).DefaultStyle(); s.Code() != "pcolor_cubehelix" {
		t.Errorf("direct default style: got %s", s.Code())
	}
	if s := (Layer{Kind: Virtual}).DefaultStyle(); s.Code() != "vectors_cubehelix" {
		t.Errorf("virtual default style: got %s", s.Code())
	}
	l := Layer{Styles: []Style{{PlotType: PlotContours, Colormap: "jet"}}}
	if s := l.DefaultStyle(); s.Code() != "contours_jet" {
		t.Errorf("configured default style: got %s", s.Code())
	}
	if !l.HasStyle(Style{PlotType: PlotContours, Colormap: "jet"}) {
		t.Error("HasStyle should report the configured style")
	}
}

func TestLayer_Defaults(t *testing.T) {
	global := &VariableDefault{
		StdName:    "sea_water_temperature",
		Units:      "degC",
		DefaultMin: f64(0),
		DefaultMax: f64(30),
		LogScale:   boolp(true),
	}

	t.Run("layer values win", func(t *testing.T) {
		l := Layer{DefaultMin: f64(5), DefaultMax: f64(10), LogScale: boolp(false)}
		d := l.Defaults(global)
		if *d.Min != 5 || *d.Max != 10 || *d.LogScale {
			t.Errorf("got min=%v max=%v log=%v", *d.Min, *d.Max, *d.LogScale)
		}
	})

	t.Run("falls back to global", func(t *testing.T) {
		d := Layer{}.Defaults(global)
		if d.LogScale == nil || !*d.LogScale {
			t.Error("expected global logscale")
		}
		if d.Max == nil || *d.Max != 30 {
			t.Errorf("expected global max 30, got %v", d.Max)
		}
		// A zero global bound is treated as unset.
		if d.Min != nil {
			t.Errorf("expected zero global min to be ignored, got %v", *d.Min)
		}
	})

	t.Run("no global", func(t *testing.T) {
		d := Layer{}.Defaults(nil)
		if d.Min != nil || d.Max != nil || d.LogScale != nil {
			t.Errorf("expected empty defaults, got %+v", d)
		}
	})
}
