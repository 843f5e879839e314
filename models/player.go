package models

import "fmt"

// Plate appearance outcomes drawn by the sampler.
type Outcome string

const (
	OutcomeStrikeout  Outcome = "strikeout"
	OutcomeWalk       Outcome = "walk"
	OutcomeHitByPitch Outcome = "hit_by_pitch"
	OutcomeSingle     Outcome = "single"
	OutcomeDouble     Outcome = "double"
	OutcomeTriple     Outcome = "triple"
	OutcomeHomeRun    Outcome = "home_run"
	OutcomeInPlayOut  Outcome = "in_play_out"
)

// Outcomes lists every plate appearance outcome in draw order.
var Outcomes = []Outcome{
	OutcomeStrikeout,
	OutcomeWalk,
	OutcomeHitByPitch,
	OutcomeSingle,
	OutcomeDouble,
	OutcomeTriple,
	OutcomeHomeRun,
	OutcomeInPlayOut,
}

// IsHit reports whether the outcome puts the batter on base via a hit.
func (o Outcome) IsHit() bool {
	switch o {
	case OutcomeSingle, OutcomeDouble, OutcomeTriple, OutcomeHomeRun:
		return true
	}
	return false
}

// IsOut reports whether the outcome retires the batter.
func (o Outcome) IsOut() bool {
	return o == OutcomeStrikeout || o == OutcomeInPlayOut
}

// Player roles.
const (
	RoleBatter  = "batter"
	RolePitcher = "pitcher"
	RoleTwoWay  = "two_way"
)

// Player represents a baseball player with seasonal outcome rates.
// Immutable within a simulation run.
type Player struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Position string        `json:"position"`
	TeamID   string        `json:"team_id"`
	Bats     string        `json:"bats"`   // "L", "R" or "S"
	Throws   string        `json:"throws"` // "L" or "R"
	Role     string        `json:"role"`   // batter, pitcher, two_way
	Batting  RateBlock     `json:"batting"`
	Pitching PitchingRates `json:"pitching"`

	// Defaulted is set when seasonal rates were missing and league-average
	// rates were substituted.
	Defaulted bool `json:"defaulted,omitempty"`
}

// BatsAgainst resolves a switch hitter to the side they bat from against
// the given pitcher hand.
func (p *Player) BatsAgainst(pitcherHand string) string {
	if p.Bats != "S" {
		return p.Bats
	}
	if pitcherHand == "L" {
		return "R"
	}
	return "L"
}

// RateBlock holds per plate appearance outcome probabilities. A valid block
// has non-negative rates that sum to roughly 1.
type RateBlock struct {
	Strikeout  float64 `json:"strikeout"`
	Walk       float64 `json:"walk"`
	HitByPitch float64 `json:"hit_by_pitch"`
	Single     float64 `json:"single"`
	Double     float64 `json:"double"`
	Triple     float64 `json:"triple"`
	HomeRun    float64 `json:"home_run"`
	InPlayOut  float64 `json:"in_play_out"`
}

// Get returns the rate for the given outcome.
func (rb *RateBlock) Get(o Outcome) float64 {
	switch o {
	case OutcomeStrikeout:
		return rb.Strikeout
	case OutcomeWalk:
		return rb.Walk
	case OutcomeHitByPitch:
		return rb.HitByPitch
	case OutcomeSingle:
		return rb.Single
	case OutcomeDouble:
		return rb.Double
	case OutcomeTriple:
		return rb.Triple
	case OutcomeHomeRun:
		return rb.HomeRun
	case OutcomeInPlayOut:
		return rb.InPlayOut
	}
	return 0
}

// Set assigns the rate for the given outcome.
func (rb *RateBlock) Set(o Outcome, v float64) {
	switch o {
	case OutcomeStrikeout:
		rb.Strikeout = v
	case OutcomeWalk:
		rb.Walk = v
	case OutcomeHitByPitch:
		rb.HitByPitch = v
	case OutcomeSingle:
		rb.Single = v
	case OutcomeDouble:
		rb.Double = v
	case OutcomeTriple:
		rb.Triple = v
	case OutcomeHomeRun:
		rb.HomeRun = v
	case OutcomeInPlayOut:
		rb.InPlayOut = v
	}
}

// Sum returns the total probability mass of the block.
func (rb *RateBlock) Sum() float64 {
	return rb.Strikeout + rb.Walk + rb.HitByPitch + rb.Single +
		rb.Double + rb.Triple + rb.HomeRun + rb.InPlayOut
}

// Normalize scales the block so its rates sum to 1. A zero block is left
// untouched.
func (rb *RateBlock) Normalize() {
	total := rb.Sum()
	if total <= 0 {
		return
	}
	for _, o := range Outcomes {
		rb.Set(o, rb.Get(o)/total)
	}
}

// Validate rejects blocks with negative rates or no probability mass.
func (rb *RateBlock) Validate() error {
	for _, o := range Outcomes {
		if rb.Get(o) < 0 {
			return fmt.Errorf("negative rate for %s: %f", o, rb.Get(o))
		}
	}
	if rb.Sum() <= 0 {
		return fmt.Errorf("rate block has no probability mass")
	}
	return nil
}

// PitchingRates holds a pitcher's seasonal allowed rates, park and altitude
// independent.
type PitchingRates struct {
	KPercent  float64 `json:"k_percent"`  // strikeouts per batter faced, 0-100
	BBPercent float64 `json:"bb_percent"` // walks per batter faced, 0-100
	HRPer9    float64 `json:"hr_per_9"`
	HitsPer9  float64 `json:"hits_per_9"`
}

// battersPer9 is the approximate number of batters a pitcher faces over
// nine innings, used to convert per-9 rates into per-PA rates.
const battersPer9 = 38.3

// AllowedRates converts the pitcher's seasonal rates into a per plate
// appearance outcome block. Non home run hits are split into singles,
// doubles and triples by league shape.
func (pr *PitchingRates) AllowedRates() RateBlock {
	league := LeagueAverageRates()
	if pr.KPercent <= 0 && pr.BBPercent <= 0 && pr.HitsPer9 <= 0 {
		return league
	}

	k := pr.KPercent / 100.0
	bb := pr.BBPercent / 100.0
	hr := pr.HRPer9 / battersPer9
	hits := pr.HitsPer9 / battersPer9

	nonHRHits := hits - hr
	if nonHRHits < 0 {
		nonHRHits = 0
	}

	// League shape of non-HR hits: roughly 74.5% singles, 23.2% doubles,
	// 2.3% triples.
	rb := RateBlock{
		Strikeout:  k,
		Walk:       bb,
		HitByPitch: league.HitByPitch,
		Single:     nonHRHits * 0.745,
		Double:     nonHRHits * 0.232,
		Triple:     nonHRHits * 0.023,
		HomeRun:    hr,
	}

	remainder := 1.0 - rb.Sum()
	if remainder < 0.05 {
		remainder = 0.05
	}
	rb.InPlayOut = remainder
	rb.Normalize()
	return rb
}

// LeagueAverageRates returns the league-average plate appearance outcome
// distribution used both as the odds-ratio baseline and as the default
// block for players with missing seasonal data.
func LeagueAverageRates() RateBlock {
	return RateBlock{
		Strikeout:  0.224,
		Walk:       0.082,
		HitByPitch: 0.011,
		Single:     0.140,
		Double:     0.044,
		Triple:     0.004,
		HomeRun:    0.031,
		InPlayOut:  0.464,
	}
}

// LeagueAveragePitching returns league-average pitcher allowed rates.
func LeagueAveragePitching() PitchingRates {
	return PitchingRates{
		KPercent:  22.4,
		BBPercent: 8.2,
		HRPer9:    1.2,
		HitsPer9:  8.4,
	}
}
