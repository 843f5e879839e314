package simulation

import (
	"math/rand"
	"time"

	"diamond-sim/models"
)

// highLeverageThreshold marks the plate appearances worth recording.
const highLeverageThreshold = 1.5

// Driver plays single games to completion. Stateless; per-trial state lives
// on the stack so drivers are safe to share across workers.
type Driver struct {
	sampler *Sampler
}

// NewDriver creates a trial driver over the given sampler.
func NewDriver(sampler *Sampler) *Driver {
	return &Driver{sampler: sampler}
}

// trialState carries the per-trial bookkeeping that is not part of the
// game state proper.
type trialState struct {
	rng      *rand.Rand
	homeIdx  int
	awayIdx  int
	pitches  int
	batting  map[string]*models.BattingLine
	pitching map[string]*models.PitchingLine
	events   []models.GameEvent
}

// PlayTrial simulates one complete game and returns its result. The RNG is
// owned by the caller; a fixed seed replays the identical game.
func (d *Driver) PlayTrial(rng *rand.Rand, gc *models.GameContext, home, away *models.Roster, capInnings int, runID string, trialNumber int) models.TrialResult {
	if capInnings <= 0 {
		capInnings = models.DefaultTrialCapInnings
	}

	state := models.NewGameState(gc.GameID, runID)
	ts := &trialState{
		rng:      rng,
		batting:  make(map[string]*models.BattingLine),
		pitching: make(map[string]*models.PitchingLine),
	}

	for !state.IsGameOver(capInnings) {
		d.playHalfInning(state, ts, gc, home, away, capInnings)
		if state.IsGameOver(capInnings) {
			break
		}
		state.AdvanceInning()
	}

	finalInning := state.Inning
	if finalInning > capInnings {
		finalInning = capInnings
	}

	extraInnings := 0
	if finalInning > 9 {
		extraInnings = finalInning - 9
	}

	return models.TrialResult{
		RunID:           runID,
		TrialNumber:     trialNumber,
		HomeScore:       state.HomeScore,
		AwayScore:       state.AwayScore,
		Winner:          state.Winner(),
		TotalPitches:    ts.pitches,
		DurationMinutes: 150 + rng.Intn(61) + 20*extraInnings,
		FinalInning:     finalInning,
		KeyEvents:       ts.events,
		Batting:         ts.batting,
		Pitching:        ts.pitching,
		CreatedAt:       time.Now().UTC(),
	}
}

func (d *Driver) playHalfInning(state *models.GameState, ts *trialState, gc *models.GameContext, home, away *models.Roster, capInnings int) {
	for !state.IsInningOver() {
		var (
			battingTeam  *models.Roster
			fieldingTeam *models.Roster
			lineupIdx    *int
			homePitching bool
		)
		if state.InningHalf == models.HalfTop {
			battingTeam, fieldingTeam = away, home
			lineupIdx = &ts.awayIdx
			homePitching = true
		} else {
			battingTeam, fieldingTeam = home, away
			lineupIdx = &ts.homeIdx
			homePitching = false
		}

		batter := &battingTeam.Lineup[*lineupIdx%models.LineupSize]
		pitcher := &fieldingTeam.StartingPitcher
		*lineupIdx++

		leverage := state.CalculateLeverage()
		state.CurrentAB = models.AtBat{
			BatterID:    batter.ID,
			BatterName:  batter.Name,
			PitcherID:   pitcher.ID,
			PitcherName: pitcher.Name,
			BatterHand:  batter.BatsAgainst(pitcher.Throws),
			PitcherHand: pitcher.Throws,
			Leverage:    leverage,
		}
		state.Count = models.Count{}

		outcome := d.sampler.Sample(ts.rng, Matchup{
			Batter:       batter,
			Pitcher:      pitcher,
			Stadium:      &gc.Stadium,
			Umpire:       &gc.Umpire,
			Weather:      gc.Weather,
			HomePitching: homePitching,
		})

		ts.pitches += ts.rng.Intn(6) + 3

		runs := d.applyOutcome(state, ts, outcome, batter, pitcher)
		d.recordStats(ts, outcome, batter, pitcher, runs)

		if leverage >= highLeverageThreshold && (runs > 0 || outcome == models.OutcomeHomeRun) {
			ts.events = append(ts.events, models.GameEvent{
				Type:       string(outcome),
				Inning:     state.Inning,
				InningHalf: state.InningHalf,
				BatterID:   batter.ID,
				PitcherID:  pitcher.ID,
				Runs:       runs,
				Leverage:   leverage,
			})
		}

		// Walk-off: a home lead in the bottom of the 9th or later ends the
		// game mid-inning.
		if state.InningHalf == models.HalfBottom && state.IsGameOver(capInnings) {
			return
		}
	}
}

// applyOutcome advances runners per the outcome and returns the number of
// runs that scored.
func (d *Driver) applyOutcome(state *models.GameState, ts *trialState, outcome models.Outcome, batter, pitcher *models.Player) int {
	bases := &state.Bases
	runner := &models.BaseRunner{PlayerID: batter.ID, Name: batter.Name}
	var scored []*models.BaseRunner

	switch outcome {
	case models.OutcomeStrikeout, models.OutcomeInPlayOut:
		state.Outs++
		return 0

	case models.OutcomeWalk, models.OutcomeHitByPitch:
		if bases.First != nil {
			if bases.Second != nil {
				if bases.Third != nil {
					scored = append(scored, bases.Third)
				}
				bases.Third = bases.Second
			}
			bases.Second = bases.First
		}
		bases.First = runner

	case models.OutcomeSingle:
		if bases.Third != nil {
			scored = append(scored, bases.Third)
			bases.Third = nil
		}
		if bases.Second != nil {
			if ts.rng.Float64() < 0.85 {
				scored = append(scored, bases.Second)
			} else {
				bases.Third = bases.Second
			}
			bases.Second = nil
		}
		if bases.First != nil {
			if bases.Third == nil && ts.rng.Float64() < 0.15 {
				bases.Third = bases.First
			} else {
				bases.Second = bases.First
			}
			bases.First = nil
		}
		bases.First = runner

	case models.OutcomeDouble:
		if bases.Third != nil {
			scored = append(scored, bases.Third)
			bases.Third = nil
		}
		if bases.Second != nil {
			scored = append(scored, bases.Second)
			bases.Second = nil
		}
		if bases.First != nil {
			if ts.rng.Float64() < 0.75 {
				scored = append(scored, bases.First)
			} else {
				bases.Third = bases.First
			}
			bases.First = nil
		}
		bases.Second = runner

	case models.OutcomeTriple:
		for _, r := range []**models.BaseRunner{&bases.Third, &bases.Second, &bases.First} {
			if *r != nil {
				scored = append(scored, *r)
				*r = nil
			}
		}
		bases.Third = runner

	case models.OutcomeHomeRun:
		for _, r := range []**models.BaseRunner{&bases.Third, &bases.Second, &bases.First} {
			if *r != nil {
				scored = append(scored, *r)
				*r = nil
			}
		}
		scored = append(scored, runner)
	}

	for _, r := range scored {
		ts.battingLine(r.PlayerID).RunsScored++
	}
	runs := len(scored)
	if runs > 0 {
		state.AddRuns(runs)
		ts.pitchingLine(pitcher.ID).RunsAllowed += runs
	}
	return runs
}

func (d *Driver) recordStats(ts *trialState, outcome models.Outcome, batter, pitcher *models.Player, runs int) {
	bl := ts.battingLine(batter.ID)
	pl := ts.pitchingLine(pitcher.ID)

	bl.PlateAppear++
	pl.BattersFaced++
	bl.RunsBattedIn += runs

	switch outcome {
	case models.OutcomeStrikeout:
		bl.Strikeouts++
		pl.Strikeouts++
	case models.OutcomeWalk:
		bl.Walks++
		pl.Walks++
	case models.OutcomeHitByPitch:
		bl.HitByPitch++
	case models.OutcomeSingle:
		bl.Hits++
		pl.HitsAllowed++
	case models.OutcomeDouble:
		bl.Hits++
		bl.Doubles++
		pl.HitsAllowed++
	case models.OutcomeTriple:
		bl.Hits++
		bl.Triples++
		pl.HitsAllowed++
	case models.OutcomeHomeRun:
		bl.Hits++
		bl.HomeRuns++
		pl.HitsAllowed++
		pl.HomeRunsAllowed++
	}
}

func (ts *trialState) battingLine(playerID string) *models.BattingLine {
	if line, ok := ts.batting[playerID]; ok {
		return line
	}
	line := &models.BattingLine{PlayerID: playerID}
	ts.batting[playerID] = line
	return line
}

func (ts *trialState) pitchingLine(playerID string) *models.PitchingLine {
	if line, ok := ts.pitching[playerID]; ok {
		return line
	}
	line := &models.PitchingLine{PlayerID: playerID}
	ts.pitching[playerID] = line
	return line
}
