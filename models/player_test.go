package models

import (
	"math"
	"testing"
)

// TestRateBlockNormalize tests that normalization preserves shape and sums
// to one.
func TestRateBlockNormalize(t *testing.T) {
	rb := RateBlock{
		Strikeout: 2.0,
		Walk:      1.0,
		Single:    1.0,
	}
	rb.Normalize()

	if math.Abs(rb.Sum()-1.0) > 1e-9 {
		t.Errorf("Expected sum 1.0 after normalize, got %f", rb.Sum())
	}
	if math.Abs(rb.Strikeout-0.5) > 1e-9 {
		t.Errorf("Expected strikeout 0.5, got %f", rb.Strikeout)
	}
}

// TestRateBlockNormalizeZero tests that a zero block is left untouched.
func TestRateBlockNormalizeZero(t *testing.T) {
	var rb RateBlock
	rb.Normalize()
	if rb.Sum() != 0 {
		t.Errorf("Zero block should stay zero, got sum %f", rb.Sum())
	}
}

// TestRateBlockValidate tests rejection of malformed blocks.
func TestRateBlockValidate(t *testing.T) {
	tests := []struct {
		name    string
		block   RateBlock
		wantErr bool
	}{
		{"league average", LeagueAverageRates(), false},
		{"negative rate", RateBlock{Strikeout: -0.1, InPlayOut: 1.1}, true},
		{"empty block", RateBlock{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.block.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestLeagueAverageRatesSum tests the baseline distribution sums to one.
func TestLeagueAverageRatesSum(t *testing.T) {
	league := LeagueAverageRates()
	if math.Abs(league.Sum()-1.0) > 1e-9 {
		t.Errorf("League rates should sum to 1.0, got %f", league.Sum())
	}
}

// TestGetSetRoundTrip tests outcome accessors cover every outcome.
func TestGetSetRoundTrip(t *testing.T) {
	var rb RateBlock
	for i, o := range Outcomes {
		rb.Set(o, float64(i+1))
	}
	for i, o := range Outcomes {
		if got := rb.Get(o); got != float64(i+1) {
			t.Errorf("Get(%s) = %f, want %f", o, got, float64(i+1))
		}
	}
}

// TestBatsAgainst tests switch hitter resolution.
func TestBatsAgainst(t *testing.T) {
	tests := []struct {
		bats        string
		pitcherHand string
		expected    string
	}{
		{"L", "R", "L"},
		{"R", "L", "R"},
		{"S", "L", "R"},
		{"S", "R", "L"},
	}

	for _, tt := range tests {
		p := Player{Bats: tt.bats}
		if got := p.BatsAgainst(tt.pitcherHand); got != tt.expected {
			t.Errorf("BatsAgainst(%s vs %s) = %s, want %s", tt.bats, tt.pitcherHand, got, tt.expected)
		}
	}
}

// TestAllowedRates tests pitcher per-9 conversion.
func TestAllowedRates(t *testing.T) {
	pr := PitchingRates{
		KPercent:  30.0,
		BBPercent: 5.0,
		HRPer9:    1.0,
		HitsPer9:  7.0,
	}
	rb := pr.AllowedRates()

	if math.Abs(rb.Sum()-1.0) > 1e-9 {
		t.Errorf("Allowed rates should sum to 1.0, got %f", rb.Sum())
	}
	if rb.Strikeout <= LeagueAverageRates().Strikeout {
		t.Errorf("High-K pitcher should exceed league K rate, got %f", rb.Strikeout)
	}
	if rb.InPlayOut < 0.05 {
		t.Errorf("In-play-out floor violated: %f", rb.InPlayOut)
	}
}

// TestAllowedRatesEmpty tests that a zero rates block falls back to league
// average.
func TestAllowedRatesEmpty(t *testing.T) {
	var pr PitchingRates
	if pr.AllowedRates() != LeagueAverageRates() {
		t.Error("Empty pitching rates should resolve to league average")
	}
}

// TestOutcomeClassification tests hit and out predicates.
func TestOutcomeClassification(t *testing.T) {
	hits := []Outcome{OutcomeSingle, OutcomeDouble, OutcomeTriple, OutcomeHomeRun}
	for _, o := range hits {
		if !o.IsHit() {
			t.Errorf("%s should be a hit", o)
		}
		if o.IsOut() {
			t.Errorf("%s should not be an out", o)
		}
	}
	outs := []Outcome{OutcomeStrikeout, OutcomeInPlayOut}
	for _, o := range outs {
		if !o.IsOut() {
			t.Errorf("%s should be an out", o)
		}
	}
	if OutcomeWalk.IsHit() || OutcomeWalk.IsOut() {
		t.Error("Walk is neither hit nor out")
	}
}
