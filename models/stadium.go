package models

// Roof types.
const (
	RoofOpen        = "open"
	RoofRetractable = "retractable"
	RoofDome        = "dome"
	RoofIndoor      = "indoor"
	RoofFixed       = "fixed"
)

// Stadium describes a ballpark and how it plays.
type Stadium struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Latitude  float64     `json:"latitude"`
	Longitude float64     `json:"longitude"`
	Altitude  int         `json:"altitude"` // feet
	RoofType  string      `json:"roof_type"`
	Factors   ParkFactors `json:"park_factors"`
}

// IsIndoor reports whether the park plays under controlled conditions.
// Retractable roofs are treated as outdoor so forecasts stay realistic.
func (s *Stadium) IsIndoor() bool {
	switch s.RoofType {
	case RoofDome, RoofIndoor, RoofFixed:
		return true
	}
	return false
}

// HasCoordinates reports whether the park has a usable location for
// forecast lookup.
func (s *Stadium) HasCoordinates() bool {
	return s.Latitude != 0 || s.Longitude != 0
}

// ParkFactors represents how a stadium affects outcome rates.
// 100 = neutral, >100 favors the outcome, <100 suppresses it.
type ParkFactors struct {
	HRFactor      float64 `json:"hr_factor"`
	HitsFactor    float64 `json:"hits_factor"`
	DoublesFactor float64 `json:"doubles_factor"`
	TriplesFactor float64 `json:"triples_factor"`

	// Handedness splits
	LHBHRFactor float64 `json:"lhb_hr_factor"`
	RHBHRFactor float64 `json:"rhb_hr_factor"`
}

// Multiplier returns the park factor for a specific outcome as a rate
// multiplier. Unset factors are neutral.
func (pf *ParkFactors) Multiplier(outcome Outcome, batterHand string) float64 {
	switch outcome {
	case OutcomeHomeRun:
		if batterHand == "L" && pf.LHBHRFactor > 0 {
			return pf.LHBHRFactor / 100.0
		}
		if batterHand == "R" && pf.RHBHRFactor > 0 {
			return pf.RHBHRFactor / 100.0
		}
		if pf.HRFactor > 0 {
			return pf.HRFactor / 100.0
		}
	case OutcomeDouble:
		if pf.DoublesFactor > 0 {
			return pf.DoublesFactor / 100.0
		}
	case OutcomeTriple:
		if pf.TriplesFactor > 0 {
			return pf.TriplesFactor / 100.0
		}
	case OutcomeSingle:
		if pf.HitsFactor > 0 {
			return pf.HitsFactor / 100.0
		}
	}
	return 1.0
}

// AltitudeEffect returns the home run boost from altitude. High altitude
// parks like Coors Field (5280 ft) see roughly a 10-15% boost.
func AltitudeEffect(altitude int) float64 {
	if altitude <= 1000 {
		return 1.0
	}

	// ~2% per 1000 feet above 1000 feet, capped at 20%.
	boost := float64(altitude-1000) / 1000.0 * 0.02
	if boost > 0.20 {
		boost = 0.20
	}
	return 1.0 + boost
}

// DefaultParkFactors returns neutral park factors.
func DefaultParkFactors() ParkFactors {
	return ParkFactors{
		HRFactor:      100.0,
		HitsFactor:    100.0,
		DoublesFactor: 100.0,
		TriplesFactor: 100.0,
		LHBHRFactor:   100.0,
		RHBHRFactor:   100.0,
	}
}
