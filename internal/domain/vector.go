package domain

import (
	"fmt"
	"strings"
)

var (
	eastwardTokens  = []string{"x", "eastward"}
	northwardTokens = []string{"y", "northward"}
)

// stripTokens removes directional tokens from an underscore separated standard name.
func stripTokens(stdName string, drop []string) string {
	parts := strings.Split(stdName, "_")
	kept := parts[:0]
	for _, p := range parts {
		skip := false
		for _, d := range drop {
			if p == d {
				skip = true
				break
			}
		}
		if !skip {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "_")
}

// EastwardKey strips x/eastward tokens from a u-component standard name.
func EastwardKey(stdName string) string { return stripTokens(stdName, eastwardTokens) }

// NorthwardKey strips y/northward tokens from a v-component standard name.
func NorthwardKey(stdName string) string { return stripTokens(stdName, northwardTokens) }

func hasToken(stdName string, tokens []string) bool {
	for _, p := range strings.Split(stdName, "_") {
		for _, t := range tokens {
			if p == t {
				return true
			}
		}
	}
	return false
}

// IsEastward reports whether a standard name carries an x/eastward token.
func IsEastward(stdName string) bool { return hasToken(stdName, eastwardTokens) }

// IsNorthward reports whether a standard name carries a y/northward token.
func IsNorthward(stdName string) bool { return hasToken(stdName, northwardTokens) }

// VectorPairs reports whether u and v form a vector pair and returns the shared key: the
// u name without x/eastward tokens must equal the v name without y/northward tokens.
func VectorPairs(u, v Layer) (string, bool) {
	if u.StdName == "" || v.StdName == "" {
		return "", false
	}
	uk, vk := EastwardKey(u.StdName), NorthwardKey(v.StdName)
	return uk, uk == vk
}

// NewVectorLayer builds the virtual layer record pairing u and v.
func NewVectorLayer(dataset string, u, v Layer, stdName string) Layer {
	units := u.Units
	if units == "" {
		units = v.Units
	}
	return Layer{
		Dataset:     dataset,
		Kind:        Virtual,
		VarName:     fmt.Sprintf("%s,%s", u.VarName, v.VarName),
		StdName:     stdName,
		Units:       units,
		Description: fmt.Sprintf("U (%s) and V (%s) vectors", u.VarName, v.VarName),
		Active:      true,
		Styles:      []Style{{PlotType: PlotVectors, Colormap: DefaultColormap}},
	}
}

// VectorPair is one u/v pairing found among a dataset's direct layers.
type VectorPair struct {
	Key  string
	U, V Layer
}

// candidatePairs lists every pairing between a directional u candidate and a directional
// v candidate, in layer order.
func candidatePairs(layers []Layer) []VectorPair {
	var out []VectorPair
	for _, cu := range layers {
		if cu.Kind != Direct || !IsEastward(cu.StdName) {
			continue
		}
		for _, cv := range layers {
			if cv.Kind != Direct || cv.VarName == cu.VarName || !IsNorthward(cv.StdName) {
				continue
			}
			if k, ok := VectorPairs(cu, cv); ok {
				out = append(out, VectorPair{Key: k, U: cu, V: cv})
			}
		}
	}
	return out
}

// FindVectorPair searches direct layers for the single u/v pair whose stripped standard
// names equal key. Zero or several pairings are reported as not found.
func FindVectorPair(layers []Layer, key string) (u, v Layer, err error) {
	var found int
	for _, p := range candidatePairs(layers) {
		if p.Key == key {
			u, v = p.U, p.V
			found++
		}
	}
	switch found {
	case 0:
		return Layer{}, Layer{}, fmt.Errorf("no vector components pair to %q", key)
	case 1:
		return u, v, nil
	default:
		return Layer{}, Layer{}, fmt.Errorf("%d ambiguous vector pairings for %q", found, key)
	}
}

// UniqueVectorPairs returns the pairings whose key is matched by exactly one u/v
// combination. Keys with several pairings are left out.
func UniqueVectorPairs(layers []Layer) []VectorPair {
	all := candidatePairs(layers)
	count := make(map[string]int, len(all))
	for _, p := range all {
		count[p.Key]++
	}
	var out []VectorPair
	for _, p := range all {
		if count[p.Key] == 1 {
			out = append(out, p)
		}
	}
	return out
}
