package domain

import (
	"math"
	"testing"
	"time"
)

// TestSynthesize_SingleConstituent checks a pure M2 signal at known phases of its period.
func TestSynthesize_SingleConstituent(t *testing.T) {
	ref := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	harmonics := []Harmonic{{Name: "M2", Amplitude: 1.0, PhaseDeg: 0, SpeedDegPerHr: 28.9841042}}
	params := HarmonicParams{Reference: ref}

	if h := Synthesize(ref, harmonics, params); math.Abs(h-1.0) > 1e-9 {
		t.Errorf("Height at t=0: expected 1.0, got %.10f", h)
	}

	// Quarter period of M2 is 12.4206012/4 hours.
	quarter := ref.Add(time.Duration(3.10515 * float64(time.Hour)))
	if h := Synthesize(quarter, harmonics, params); math.Abs(h) > 1e-6 {
		t.Errorf("Height at quarter period: expected ~0, got %.10f", h)
	}

	half := ref.Add(time.Duration(6.2103 * float64(time.Hour)))
	if h := Synthesize(half, harmonics, params); math.Abs(h+1.0) > 1e-6 {
		t.Errorf("Height at half period: expected -1.0, got %.10f", h)
	}
}

// TestSynthesize_PhaseAndOffset checks that phase lag and offset are applied.
func TestSynthesize_PhaseAndOffset(t *testing.T) {
	ref := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	harmonics := []Harmonic{
		{Name: "M2", Amplitude: 0.5, PhaseDeg: 90, SpeedDegPerHr: 28.9841042},
		{Name: "S2", Amplitude: 0.2, PhaseDeg: 0, SpeedDegPerHr: 30.0},
	}
	// cos(-90°) = 0, cos(0) = 1.
	h := Synthesize(ref, harmonics, HarmonicParams{Reference: ref, Offset: 0.3})
	if math.Abs(h-0.5) > 1e-9 {
		t.Errorf("expected 0.5, got %.10f", h)
	}
}

type halfAmplitude struct{}

func (halfAmplitude) Factors(string, float64) (float64, float64) { return 0.5, 0 }

func TestSynthesize_NodalCorrection(t *testing.T) {
	ref := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	harmonics := []Harmonic{{Name: "K1", Amplitude: 2.0, SpeedDegPerHr: 15.0410686}}
	h := Synthesize(ref, harmonics, HarmonicParams{Reference: ref, Nodal: halfAmplitude{}})
	if math.Abs(h-1.0) > 1e-9 {
		t.Errorf("expected nodal factor to halve amplitude, got %.10f", h)
	}
}

func TestConstituentSpeed(t *testing.T) {
	tests := []struct {
		name string
		ok   bool
	}{
		{"M2", true},
		{"m2", true},
		{" k1 ", true},
		{"Mf", true},
		{"XX9", false},
	}
	for _, tt := range tests {
		if _, ok := ConstituentSpeed(tt.name); ok != tt.ok {
			t.Errorf("ConstituentSpeed(%q): expected ok=%v", tt.name, tt.ok)
		}
	}
}

// TestDeg2Rad tests degree to radian conversion.
func TestDeg2Rad(t *testing.T) {
	tests := []struct {
		deg      float64
		expected float64
	}{
		{0, 0},
		{90, math.Pi / 2},
		{180, math.Pi},
		{360, 2 * math.Pi},
		{-90, -math.Pi / 2},
	}

	for _, tt := range tests {
		result := Deg2Rad(tt.deg)
		if math.Abs(result-tt.expected) > 1e-9 {
			t.Errorf("Deg2Rad(%.1f): expected %.10f, got %.10f", tt.deg, tt.expected, result)
		}
		if back := Rad2Deg(result); math.Abs(back-tt.deg) > 1e-9 {
			t.Errorf("Rad2Deg(Deg2Rad(%.1f)) = %.10f", tt.deg, back)
		}
	}
}
