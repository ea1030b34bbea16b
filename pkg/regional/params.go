package regional

import (
	"math"

	"github.com/rotisserie/eris"
)

// Param is a non-negative distance parameter, either a single scalar or a
// per-region-identifier mapping. Values carry kilometers for geographic
// reference systems and coordinate units otherwise.
type Param struct {
	set       bool
	def       float64
	perRegion map[string]float64
}

// Scalar returns a Param holding one value for every region.
func Scalar(v float64) Param {
	return Param{set: true, def: v}
}

// PerRegion returns a Param with per-region values. Regions absent from the
// map fall back to def.
func PerRegion(values map[string]float64, def float64) Param {
	m := make(map[string]float64, len(values))
	for k, v := range values {
		m[k] = v
	}
	return Param{set: true, def: def, perRegion: m}
}

// IsSet reports whether the parameter was supplied at all.
func (p Param) IsSet() bool { return p.set }

// For returns the value for a region identifier.
func (p Param) For(regionID string) float64 {
	if v, ok := p.perRegion[regionID]; ok {
		return v
	}
	return p.def
}

// Validate rejects negative or NaN values. name labels the parameter in the
// error message.
func (p Param) Validate(name string) error {
	if !p.set {
		return nil
	}
	if bad(p.def) {
		return eris.Wrapf(ErrInvalidParameter, "%s: %v", name, p.def)
	}
	for id, v := range p.perRegion {
		if bad(v) {
			return eris.Wrapf(ErrInvalidParameter, "%s[%s]: %v", name, id, v)
		}
	}
	return nil
}

func bad(v float64) bool {
	return math.IsNaN(v) || v < 0
}
