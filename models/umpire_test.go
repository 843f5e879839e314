package models

import "testing"

// TestStrikeoutMultiplier tests zone size effect on K rate.
func TestStrikeoutMultiplier(t *testing.T) {
	tests := []struct {
		name       string
		umpire     UmpireTendencies
		expectMore bool
	}{
		{"large zone", UmpireTendencies{StrikeZoneSize: 110, Consistency: 90}, true},
		{"small zone", UmpireTendencies{StrikeZoneSize: 90, Consistency: 90}, false},
		{"average zone", UmpireTendencies{StrikeZoneSize: 100, Consistency: 90}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mult := tt.umpire.StrikeoutMultiplier()
			if tt.expectMore && mult <= 1.0 {
				t.Errorf("Expected multiplier above 1.0, got %f", mult)
			}
			if !tt.expectMore && mult > 1.0 {
				t.Errorf("Expected multiplier at or below 1.0, got %f", mult)
			}
		})
	}
}

// TestWalkMultiplierOpposesStrikeouts tests that a larger zone cuts walks
// as it adds strikeouts.
func TestWalkMultiplierOpposesStrikeouts(t *testing.T) {
	ump := UmpireTendencies{StrikeZoneSize: 108, Consistency: 85}
	if ump.StrikeoutMultiplier() <= 1.0 {
		t.Error("Large zone should raise strikeouts")
	}
	if ump.WalkMultiplier() >= 1.0 {
		t.Error("Large zone should lower walks")
	}
}

// TestConsistencyDamping tests that inconsistent umpires trend neutral.
func TestConsistencyDamping(t *testing.T) {
	consistent := UmpireTendencies{StrikeZoneSize: 110, Consistency: 90}
	erratic := UmpireTendencies{StrikeZoneSize: 110, Consistency: 30}

	if erratic.StrikeoutMultiplier() >= consistent.StrikeoutMultiplier() {
		t.Errorf("Erratic umpire should have a damped multiplier: %f vs %f",
			erratic.StrikeoutMultiplier(), consistent.StrikeoutMultiplier())
	}
}

// TestDefaultUmpireTendencies tests the neutral defaults.
func TestDefaultUmpireTendencies(t *testing.T) {
	ump := DefaultUmpireTendencies()
	if ump.StrikeoutMultiplier() != 1.0 {
		t.Errorf("Default umpire should be K-neutral, got %f", ump.StrikeoutMultiplier())
	}
	if ump.WalkMultiplier() != 1.0 {
		t.Errorf("Default umpire should be BB-neutral, got %f", ump.WalkMultiplier())
	}
	if ump.HomeFavorShift() != 0 {
		t.Errorf("Default umpire should have no home favor, got %f", ump.HomeFavorShift())
	}
}

// TestAltitudeEffect tests home run boost at altitude.
func TestAltitudeEffect(t *testing.T) {
	tests := []struct {
		altitude int
		min, max float64
	}{
		{0, 1.0, 1.0},
		{1000, 1.0, 1.0},
		{5280, 1.05, 1.15},
		{20000, 1.20, 1.20},
	}
	for _, tt := range tests {
		got := AltitudeEffect(tt.altitude)
		if got < tt.min || got > tt.max {
			t.Errorf("AltitudeEffect(%d) = %f, want within [%f, %f]", tt.altitude, got, tt.min, tt.max)
		}
	}
}

// TestParkFactorsMultiplier tests outcome and handedness resolution.
func TestParkFactorsMultiplier(t *testing.T) {
	pf := ParkFactors{
		HRFactor:      110,
		HitsFactor:    102,
		DoublesFactor: 95,
		TriplesFactor: 120,
		LHBHRFactor:   120,
		RHBHRFactor:   104,
	}

	tests := []struct {
		outcome  Outcome
		hand     string
		expected float64
	}{
		{OutcomeHomeRun, "L", 1.20},
		{OutcomeHomeRun, "R", 1.04},
		{OutcomeSingle, "R", 1.02},
		{OutcomeDouble, "L", 0.95},
		{OutcomeTriple, "R", 1.20},
		{OutcomeStrikeout, "R", 1.0},
		{OutcomeWalk, "L", 1.0},
	}
	for _, tt := range tests {
		if got := pf.Multiplier(tt.outcome, tt.hand); got != tt.expected {
			t.Errorf("Multiplier(%s, %s) = %f, want %f", tt.outcome, tt.hand, got, tt.expected)
		}
	}
}

// TestParkFactorsUnset tests that unset factors are neutral.
func TestParkFactorsUnset(t *testing.T) {
	var pf ParkFactors
	for _, o := range Outcomes {
		if got := pf.Multiplier(o, "R"); got != 1.0 {
			t.Errorf("Unset factor for %s should be neutral, got %f", o, got)
		}
	}
}

// TestStadiumIsIndoor tests roof classification.
func TestStadiumIsIndoor(t *testing.T) {
	tests := []struct {
		roof     string
		expected bool
	}{
		{RoofDome, true},
		{RoofIndoor, true},
		{RoofFixed, true},
		{RoofRetractable, false},
		{RoofOpen, false},
		{"", false},
	}
	for _, tt := range tests {
		s := Stadium{RoofType: tt.roof}
		if got := s.IsIndoor(); got != tt.expected {
			t.Errorf("IsIndoor(%q) = %v, want %v", tt.roof, got, tt.expected)
		}
	}
}
