package domain

import "testing"

func TestParseStyle(t *testing.T) {
	tests := []struct {
		code    string
		want    string
		wantErr bool
	}{
		{"pcolor_jet", "pcolor_jet", false},
		{"FilledContours_viridis", "filledcontours_viridis", false},
		{"vectors", "vectors_cubehelix", false},
		{"facets_", "facets_cubehelix", false},
		{"", "", true},
		{"hexbin_jet", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			s, err := ParseStyle(tt.code)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q", tt.code)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s.Code() != tt.want {
				t.Errorf("got %q, want %q", s.Code(), tt.want)
			}
		})
	}
}

func TestParseTypeVariant(t *testing.T) {
	for _, v := range []TypeVariant{Unidentified, UnstructuredMesh, StructuredCurvilinear, StructuredRectilinear, TideHarmonicMesh} {
		got, err := ParseTypeVariant(v.String())
		if err != nil || got != v {
			t.Errorf("round trip of %s: got %s, %v", v, got, err)
		}
	}
	if v, err := ParseTypeVariant(""); err != nil || v != Unidentified {
		t.Errorf("empty code: got %s, %v", v, err)
	}
	if _, err := ParseTypeVariant("mystery"); err == nil {
		t.Error("expected error for unknown code")
	}
	if TideHarmonicMesh.SupportsVirtualLayers() {
		t.Error("tide meshes carry no vector components")
	}
}
