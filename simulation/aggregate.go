package simulation

import (
	"sort"
	"time"

	"diamond-sim/models"
)

// maxHighLeverageEvents bounds the event list carried on the aggregate.
const maxHighLeverageEvents = 50

// Over/under lines reported on every aggregate.
var overUnderLines = []struct {
	key  string
	line float64
}{
	{"8.5", 8.5},
	{"9.5", 9.5},
	{"10.5", 10.5},
}

// Accumulator folds trial results into an aggregate. All intermediate
// totals are integers, so the finalized aggregate is identical regardless
// of the order trials arrive in. Not safe for concurrent use; the
// coordinator feeds it from a single goroutine.
type Accumulator struct {
	trials        int
	erroredTrials int

	homeWins int
	awayWins int
	ties     int

	homeScoreSum   int
	awayScoreSum   int
	homeScoreSqSum int
	awayScoreSqSum int

	homeScoreDist  map[int]int
	awayScoreDist  map[int]int
	totalScoreDist map[int]int

	durationSum int
	pitchesSum  int

	oneRunGames     int
	shutouts        int
	blowouts        int
	highScoringGames int

	events []models.GameEvent

	batting  map[string]*battingTotals
	pitching map[string]*pitchingTotals
}

type battingTotals struct {
	trials     int
	pa         int
	hits       int
	homeRuns   int
	walks      int
	strikeouts int
	rbi        int
	runs       int
}

type pitchingTotals struct {
	trials       int
	battersFaced int
	strikeouts   int
	walks        int
	hits         int
	runs         int
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		homeScoreDist:  make(map[int]int),
		awayScoreDist:  make(map[int]int),
		totalScoreDist: make(map[int]int),
		batting:        make(map[string]*battingTotals),
		pitching:       make(map[string]*pitchingTotals),
	}
}

// Add folds one trial result in.
func (a *Accumulator) Add(res *models.TrialResult) {
	a.trials++
	if res.Errored {
		a.erroredTrials++
	}

	switch res.Winner {
	case models.WinnerHome:
		a.homeWins++
	case models.WinnerAway:
		a.awayWins++
	default:
		a.ties++
	}

	a.homeScoreSum += res.HomeScore
	a.awayScoreSum += res.AwayScore
	a.homeScoreSqSum += res.HomeScore * res.HomeScore
	a.awayScoreSqSum += res.AwayScore * res.AwayScore

	a.homeScoreDist[res.HomeScore]++
	a.awayScoreDist[res.AwayScore]++
	total := res.HomeScore + res.AwayScore
	a.totalScoreDist[total]++

	a.durationSum += res.DurationMinutes
	a.pitchesSum += res.TotalPitches

	margin := res.HomeScore - res.AwayScore
	if margin < 0 {
		margin = -margin
	}
	if margin == 1 {
		a.oneRunGames++
	}
	if margin >= 5 {
		a.blowouts++
	}
	if !res.Errored && (res.HomeScore == 0 || res.AwayScore == 0) {
		a.shutouts++
	}
	if total >= 10 {
		a.highScoringGames++
	}

	a.events = append(a.events, res.KeyEvents...)

	for id, line := range res.Batting {
		bt := a.batting[id]
		if bt == nil {
			bt = &battingTotals{}
			a.batting[id] = bt
		}
		bt.trials++
		bt.pa += line.PlateAppear
		bt.hits += line.Hits
		bt.homeRuns += line.HomeRuns
		bt.walks += line.Walks
		bt.strikeouts += line.Strikeouts
		bt.rbi += line.RunsBattedIn
		bt.runs += line.RunsScored
	}
	for id, line := range res.Pitching {
		pt := a.pitching[id]
		if pt == nil {
			pt = &pitchingTotals{}
			a.pitching[id] = pt
		}
		pt.trials++
		pt.battersFaced += line.BattersFaced
		pt.strikeouts += line.Strikeouts
		pt.walks += line.Walks
		pt.hits += line.HitsAllowed
		pt.runs += line.RunsAllowed
	}
}

// Trials returns the number of results folded in so far.
func (a *Accumulator) Trials() int {
	return a.trials
}

// ErroredTrials returns the number of errored results folded in so far.
func (a *Accumulator) ErroredTrials() int {
	return a.erroredTrials
}

// Finalize computes the aggregate. The accumulator may keep receiving
// results afterward, though the coordinator never does that.
func (a *Accumulator) Finalize(runID string) *models.AggregatedResult {
	n := float64(a.trials)
	if n == 0 {
		n = 1
	}

	agg := &models.AggregatedResult{
		RunID:                 runID,
		TotalSimulations:      a.trials,
		HomeWins:              a.homeWins,
		AwayWins:              a.awayWins,
		Ties:                  a.ties,
		ErroredTrials:         a.erroredTrials,
		HomeWinProbability:    float64(a.homeWins) / n,
		AwayWinProbability:    float64(a.awayWins) / n,
		TieProbability:        float64(a.ties) / n,
		ExpectedHomeScore:     float64(a.homeScoreSum) / n,
		ExpectedAwayScore:     float64(a.awayScoreSum) / n,
		HomeScoreDistribution: a.homeScoreDist,
		AwayScoreDistribution: a.awayScoreDist,
		AverageGameDuration:   float64(a.durationSum) / n,
		AveragePitches:        float64(a.pitchesSum) / n,
		HighLeverageEvents:    a.topEvents(),
		Statistics: map[string]float64{
			"one_run_game_pct":    float64(a.oneRunGames) / n * 100,
			"shutout_pct":         float64(a.shutouts) / n * 100,
			"blowout_pct":         float64(a.blowouts) / n * 100,
			"high_scoring_pct":    float64(a.highScoringGames) / n * 100,
			"home_score_variance": variance(a.homeScoreSum, a.homeScoreSqSum, a.trials),
			"away_score_variance": variance(a.awayScoreSum, a.awayScoreSqSum, a.trials),
		},
		OverUnder: a.overUnder(),
		CreatedAt: time.Now().UTC(),
	}

	if len(a.batting) > 0 {
		agg.PlayerBatting = make(map[string]*models.BattingAverages, len(a.batting))
		for id, bt := range a.batting {
			t := float64(bt.trials)
			agg.PlayerBatting[id] = &models.BattingAverages{
				PlayerID:     id,
				Trials:       bt.trials,
				PlateAppear:  float64(bt.pa) / t,
				Hits:         float64(bt.hits) / t,
				HomeRuns:     float64(bt.homeRuns) / t,
				Walks:        float64(bt.walks) / t,
				Strikeouts:   float64(bt.strikeouts) / t,
				RunsBattedIn: float64(bt.rbi) / t,
				RunsScored:   float64(bt.runs) / t,
			}
		}
	}
	if len(a.pitching) > 0 {
		agg.PlayerPitching = make(map[string]*models.PitchingAverages, len(a.pitching))
		for id, pt := range a.pitching {
			t := float64(pt.trials)
			agg.PlayerPitching[id] = &models.PitchingAverages{
				PlayerID:     id,
				Trials:       pt.trials,
				BattersFaced: float64(pt.battersFaced) / t,
				Strikeouts:   float64(pt.strikeouts) / t,
				Walks:        float64(pt.walks) / t,
				HitsAllowed:  float64(pt.hits) / t,
				RunsAllowed:  float64(pt.runs) / t,
			}
		}
	}

	return agg
}

// overUnder computes the probability the combined score clears each line.
func (a *Accumulator) overUnder() map[string]float64 {
	n := float64(a.trials)
	if n == 0 {
		return nil
	}
	out := make(map[string]float64, len(overUnderLines))
	for _, ou := range overUnderLines {
		over := 0
		for total, count := range a.totalScoreDist {
			if float64(total) > ou.line {
				over += count
			}
		}
		out[ou.key] = float64(over) / n
	}
	return out
}

// topEvents sorts collected events by leverage and keeps the top slice.
// The sort key is total over all fields so the result does not depend on
// arrival order.
func (a *Accumulator) topEvents() []models.GameEvent {
	if len(a.events) == 0 {
		return nil
	}
	events := make([]models.GameEvent, len(a.events))
	copy(events, a.events)

	sort.Slice(events, func(i, j int) bool {
		ei, ej := events[i], events[j]
		if ei.Leverage != ej.Leverage {
			return ei.Leverage > ej.Leverage
		}
		if ei.Inning != ej.Inning {
			return ei.Inning < ej.Inning
		}
		if ei.InningHalf != ej.InningHalf {
			return ei.InningHalf < ej.InningHalf
		}
		if ei.Runs != ej.Runs {
			return ei.Runs > ej.Runs
		}
		if ei.BatterID != ej.BatterID {
			return ei.BatterID < ej.BatterID
		}
		if ei.PitcherID != ej.PitcherID {
			return ei.PitcherID < ej.PitcherID
		}
		return ei.Type < ej.Type
	})

	if len(events) > maxHighLeverageEvents {
		events = events[:maxHighLeverageEvents]
	}
	return events
}

func variance(sum, sqSum, n int) float64 {
	if n == 0 {
		return 0
	}
	mean := float64(sum) / float64(n)
	return float64(sqSum)/float64(n) - mean*mean
}
