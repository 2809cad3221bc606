package domain

import (
	"math"
	"strings"
	"time"
)

// StandardConstituents maps tidal constituent names to angular speeds (deg/hour).
// Reference: https://www.pmel.noaa.gov/pubs/PDF/park2589/park2589.pdf
var StandardConstituents = map[string]float64{
	// Semidiurnal.
	"M2": 28.9841042,
	"S2": 30.0000000,
	"N2": 28.4397295,
	"K2": 30.0821373,

	// Diurnal.
	"K1": 15.0410686,
	"O1": 13.9430356,
	"P1": 14.9589314,
	"Q1": 13.3986609,

	// Shallow water.
	"M4":  57.9682084,
	"M6":  86.9523127,
	"MK3": 44.0251729,
	"S4":  60.0000000,
	"MN4": 57.4238337,
	"MS4": 58.9841042,

	// Long period.
	"MF":  1.0980331,
	"MM":  0.5443747,
	"SSA": 0.0821373,
	"SA":  0.0410686,
}

// ConstituentSpeed returns the angular speed of a constituent, case-insensitively.
func ConstituentSpeed(name string) (float64, bool) {
	speed, ok := StandardConstituents[strings.ToUpper(strings.TrimSpace(name))]
	return speed, ok
}

// Harmonic is one constituent's amplitude and phase at a point.
type Harmonic struct {
	Name          string
	Amplitude     float64 // Native units of the variable.
	PhaseDeg      float64
	SpeedDegPerHr float64
}

// NodalCorrection supplies amplitude factor f and phase correction u (degrees).
type NodalCorrection interface {
	Factors(constituent string, hours float64) (f, u float64)
}

// IdentityNodalCorrection applies no correction.
type IdentityNodalCorrection struct{}

// Factors returns f=1, u=0.
func (IdentityNodalCorrection) Factors(string, float64) (float64, float64) { return 1, 0 }

// HarmonicParams configures harmonic synthesis.
type HarmonicParams struct {
	Reference time.Time
	Nodal     NodalCorrection
	Offset    float64
}

// Synthesize computes η(t) = offset + Σ f_k A_k cos(ω_k Δt + u_k − φ_k).
func Synthesize(t time.Time, harmonics []Harmonic, p HarmonicParams) float64 {
	nodal := p.Nodal
	if nodal == nil {
		nodal = IdentityNodalCorrection{}
	}
	hours := t.Sub(p.Reference).Hours()
	h := p.Offset
	for _, c := range harmonics {
		f, u := nodal.Factors(c.Name, hours)
		angle := c.SpeedDegPerHr*hours + u - c.PhaseDeg
		h += f * c.Amplitude * math.Cos(Deg2Rad(angle))
	}
	return h
}

// Deg2Rad converts degrees to radians.
func Deg2Rad(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// Rad2Deg converts radians to degrees.
func Rad2Deg(rad float64) float64 {
	return rad * 180.0 / math.Pi
}
