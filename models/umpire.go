package models

// Umpire identifies a home-plate umpire and their tendencies.
type Umpire struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Tendencies UmpireTendencies `json:"tendencies"`
}

// UmpireTendencies represents an umpire's historical strike zone and game
// management tendencies.
type UmpireTendencies struct {
	// Strike zone size relative to average (100 = average, >100 = larger zone)
	StrikeZoneSize float64 `json:"strike_zone_size"`

	// Home team favor (positive = calls lean toward the home team's pitcher)
	HomeTeamFavor float64 `json:"home_team_favor"`

	// Consistency (0-100 scale, higher = more consistent calls)
	Consistency float64 `json:"consistency"`
}

// ZoneExpansion returns the signed fraction by which this umpire's zone
// deviates from average. Positive means a larger zone.
func (ut *UmpireTendencies) ZoneExpansion() float64 {
	if ut.StrikeZoneSize <= 0 {
		return 0
	}
	return (ut.StrikeZoneSize - 100.0) / 100.0
}

// StrikeoutMultiplier returns the K-rate multiplier for this umpire.
// A larger zone produces more strikeouts.
func (ut *UmpireTendencies) StrikeoutMultiplier() float64 {
	return 1.0 + ut.ZoneExpansion()*0.05*ut.consistencyWeight()
}

// WalkMultiplier returns the BB-rate multiplier for this umpire.
// A larger zone produces fewer walks.
func (ut *UmpireTendencies) WalkMultiplier() float64 {
	return 1.0 - ut.ZoneExpansion()*0.05*ut.consistencyWeight()
}

// HomeFavorShift returns the signed K/BB bias applied when the home team is
// pitching; the inverse applies when the away team is pitching.
func (ut *UmpireTendencies) HomeFavorShift() float64 {
	return ut.HomeTeamFavor * 0.01
}

// consistencyWeight damps an inconsistent umpire's tendencies toward
// neutral.
func (ut *UmpireTendencies) consistencyWeight() float64 {
	switch {
	case ut.Consistency >= 80:
		return 1.0
	case ut.Consistency >= 60:
		return 0.95
	case ut.Consistency >= 40:
		return 0.90
	case ut.Consistency > 0:
		return 0.85
	default:
		return 1.0
	}
}

// DefaultUmpireTendencies returns league average umpire tendencies.
func DefaultUmpireTendencies() UmpireTendencies {
	return UmpireTendencies{
		StrikeZoneSize: 100.0,
		HomeTeamFavor:  0.0,
		Consistency:    70.0,
	}
}
