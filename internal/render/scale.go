package render

import (
	"math"

	"go.ngs.io/ocean-wms/internal/domain"
)

// Scale maps data values onto [0, 1].
type Scale struct {
	Min, Max float64
	Log      bool
}

// Normalize returns the position of v on the scale, clamped to [0, 1]. Missing values and,
// on a log scale, non-positive values are rejected.
func (s Scale) Normalize(v float64) (float64, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	if s.Log {
		if v <= 0 {
			return 0, false
		}
		return unit((math.Log10(v) - math.Log10(s.Min)) / (math.Log10(s.Max) - math.Log10(s.Min))), true
	}
	return unit((v - s.Min) / (s.Max - s.Min)), true
}

// Band returns which of n equal bands v falls in.
func (s Scale) Band(v float64, n int) (int, bool) {
	t, ok := s.Normalize(v)
	if !ok {
		return 0, false
	}
	b := int(t * float64(n))
	if b >= n {
		b = n - 1
	}
	return b, true
}

// DataRange returns the finite min and max of values, skipping non-positive values when
// positive is set.
func DataRange(values []float64, positive bool) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) || (positive && v <= 0) {
			continue
		}
		lo, hi = math.Min(lo, v), math.Max(hi, v)
		ok = true
	}
	return lo, hi, ok
}

// ResolveScale picks the color scale: an explicit range, then the layer defaults, then the
// range of the data. ok is false when there is nothing to scale.
func ResolveScale(explicit *[2]float64, defaults domain.LayerDefaults, log bool, data []float64) (Scale, bool) {
	s := Scale{Log: log}
	dataLo, dataHi, haveData := DataRange(data, log)

	switch {
	case explicit != nil:
		s.Min, s.Max = explicit[0], explicit[1]
	default:
		if defaults.Min != nil {
			s.Min = *defaults.Min
		} else if haveData {
			s.Min = dataLo
		} else {
			return s, false
		}
		if defaults.Max != nil {
			s.Max = *defaults.Max
		} else if haveData {
			s.Max = dataHi
		} else {
			return s, false
		}
	}
	if s.Max < s.Min {
		s.Min, s.Max = s.Max, s.Min
	}
	if log && s.Min <= 0 {
		if !haveData {
			return s, false
		}
		s.Min = dataLo
		if s.Max < s.Min {
			s.Max = dataHi
		}
	}
	if s.Max == s.Min {
		if log {
			s.Max = s.Min * 10
		} else {
			s.Max = s.Min + 1
		}
	}
	return s, true
}
