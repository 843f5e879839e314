package simulation

import (
	"math/rand"

	"diamond-sim/models"
)

// Matchup bundles everything the sampler needs for one plate appearance.
type Matchup struct {
	Batter  *models.Player
	Pitcher *models.Player
	Stadium *models.Stadium
	Umpire  *models.Umpire
	Weather models.Weather

	// HomePitching is true when the home team is in the field, which is
	// how umpire home favor knows which way to lean.
	HomePitching bool
}

// Sampler draws plate appearance outcomes by blending batter and pitcher
// seasonal rates against the league average and applying environment
// modifiers. Stateless and safe for concurrent use.
type Sampler struct {
	league models.RateBlock
}

// NewSampler creates a sampler with the league-average baseline.
func NewSampler() *Sampler {
	return &Sampler{league: models.LeagueAverageRates()}
}

// Distribution computes the normalized outcome distribution for a matchup.
// Pure: the same matchup always yields the same distribution.
func (s *Sampler) Distribution(m Matchup) models.RateBlock {
	batterHand := m.Batter.BatsAgainst(m.Pitcher.Throws)
	batting := m.Batter.Batting
	pitching := m.Pitcher.Pitching.AllowedRates()

	// Odds-ratio blend against the league baseline.
	var rates models.RateBlock
	for _, o := range models.Outcomes {
		leagueRate := s.league.Get(o)
		if leagueRate <= 0 {
			continue
		}
		rates.Set(o, batting.Get(o)*pitching.Get(o)/leagueRate)
	}

	s.applyPark(&rates, m, batterHand)
	s.applyWeather(&rates, m.Weather)
	s.applyUmpire(&rates, m)
	s.applyPlatoon(&rates, batterHand, m.Pitcher.Throws)

	rates.Normalize()
	if rates.Sum() <= 0 {
		rates = s.league
	}
	return rates
}

// Sample draws one outcome for the matchup from the given RNG.
func (s *Sampler) Sample(rng *rand.Rand, m Matchup) models.Outcome {
	rates := s.Distribution(m)

	draw := rng.Float64()
	cumulative := 0.0
	for _, o := range models.Outcomes {
		cumulative += rates.Get(o)
		if draw < cumulative {
			return o
		}
	}
	// Floating point slack on the last breakpoint.
	return models.OutcomeInPlayOut
}

func (s *Sampler) applyPark(rates *models.RateBlock, m Matchup, batterHand string) {
	if m.Stadium == nil {
		return
	}
	for _, o := range []models.Outcome{models.OutcomeSingle, models.OutcomeDouble, models.OutcomeTriple, models.OutcomeHomeRun} {
		rates.Set(o, rates.Get(o)*m.Stadium.Factors.Multiplier(o, batterHand))
	}
	rates.HomeRun *= models.AltitudeEffect(m.Stadium.Altitude)
}

func (s *Sampler) applyWeather(rates *models.RateBlock, w models.Weather) {
	switch w.WindDir {
	case "out":
		rates.HomeRun *= 1.0 + 0.02*float64(w.WindSpeed)
	case "in":
		rates.HomeRun /= 1.0 + 0.02*float64(w.WindSpeed)
	}

	if w.Temperature > 80 {
		heat := 1.0 + 0.003*float64(w.Temperature-80)
		rates.HomeRun *= heat
		rates.Single *= heat
		rates.Double *= heat
		rates.Triple *= heat
	}

	// Dry air and low pressure both carry the ball a little farther.
	// Each factor is clamped to +/-1.5% so the pair stays within 3%.
	humidityFactor := 1.0 + clamp(float64(50-w.Humidity)/50.0*0.015, -0.015, 0.015)
	pressureFactor := 1.0 + clamp((29.92-w.Pressure)*0.01, -0.015, 0.015)
	rates.HomeRun *= humidityFactor * pressureFactor
}

func (s *Sampler) applyUmpire(rates *models.RateBlock, m Matchup) {
	if m.Umpire == nil {
		return
	}
	t := m.Umpire.Tendencies
	rates.Strikeout *= t.StrikeoutMultiplier()
	rates.Walk *= t.WalkMultiplier()

	// Home favor leans the K/BB split toward the home side's pitcher and
	// against them when the home side is batting.
	shift := t.HomeFavorShift()
	if shift != 0 {
		if m.HomePitching {
			rates.Strikeout *= 1.0 + shift
			rates.Walk *= 1.0 - shift
		} else {
			rates.Strikeout *= 1.0 - shift
			rates.Walk *= 1.0 + shift
		}
	}
}

func (s *Sampler) applyPlatoon(rates *models.RateBlock, batterHand, pitcherHand string) {
	sameHand := batterHand == pitcherHand
	hitFactor, kFactor := 1.05, 0.95
	if sameHand {
		hitFactor, kFactor = 0.95, 1.05
	}
	rates.Strikeout *= kFactor
	rates.Single *= hitFactor
	rates.Double *= hitFactor
	rates.Triple *= hitFactor
	rates.HomeRun *= hitFactor
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
