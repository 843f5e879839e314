package simulation

import (
	"math"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"diamond-sim/models"
)

func generateTrials(n int, seed int64) []models.TrialResult {
	driver := NewDriver(NewSampler())
	gc := testGameContext("G1")
	home := testRoster("HOME", "R")
	away := testRoster("AWAY", "L")

	trials := make([]models.TrialResult, n)
	for i := 0; i < n; i++ {
		rng := rand.New(rand.NewSource(seed + int64(i)))
		trials[i] = driver.PlayTrial(rng, gc, home, away, 30, "RUN", i+1)
	}
	return trials
}

func accumulate(trials []models.TrialResult) *models.AggregatedResult {
	acc := NewAccumulator()
	for i := range trials {
		acc.Add(&trials[i])
	}
	agg := acc.Finalize("RUN")
	// CreatedAt is wall clock; blank it for comparisons.
	agg.CreatedAt = time.Time{}
	return agg
}

// TestAggregateCounts tests the win/tie partition.
func TestAggregateCounts(t *testing.T) {
	trials := generateTrials(300, 11)
	agg := accumulate(trials)

	if agg.TotalSimulations != 300 {
		t.Errorf("Expected 300 simulations, got %d", agg.TotalSimulations)
	}
	if agg.HomeWins+agg.AwayWins+agg.Ties != agg.TotalSimulations {
		t.Errorf("Wins %d + %d + ties %d != total %d",
			agg.HomeWins, agg.AwayWins, agg.Ties, agg.TotalSimulations)
	}

	probSum := agg.HomeWinProbability + agg.AwayWinProbability + agg.TieProbability
	if math.Abs(probSum-1.0) > 1e-9 {
		t.Errorf("Probabilities sum to %f, want 1.0", probSum)
	}
}

// TestAggregateCommutativity tests that trial arrival order does not
// change the final aggregate.
func TestAggregateCommutativity(t *testing.T) {
	trials := generateTrials(200, 23)

	shuffled := make([]models.TrialResult, len(trials))
	copy(shuffled, trials)
	rng := rand.New(rand.NewSource(1))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	forward := accumulate(trials)
	scrambled := accumulate(shuffled)

	if !reflect.DeepEqual(forward, scrambled) {
		t.Error("Aggregates differ depending on trial order")
	}
}

// TestAggregateDistributions tests score distribution bookkeeping.
func TestAggregateDistributions(t *testing.T) {
	trials := generateTrials(150, 31)
	agg := accumulate(trials)

	homeTotal, awayTotal := 0, 0
	for _, count := range agg.HomeScoreDistribution {
		homeTotal += count
	}
	for _, count := range agg.AwayScoreDistribution {
		awayTotal += count
	}
	if homeTotal != len(trials) || awayTotal != len(trials) {
		t.Errorf("Distribution masses %d/%d, want %d", homeTotal, awayTotal, len(trials))
	}

	expectedHome := 0.0
	for score, count := range agg.HomeScoreDistribution {
		expectedHome += float64(score) * float64(count)
	}
	expectedHome /= float64(len(trials))
	if math.Abs(expectedHome-agg.ExpectedHomeScore) > 1e-9 {
		t.Errorf("Expected home score %f disagrees with distribution mean %f",
			agg.ExpectedHomeScore, expectedHome)
	}
}

// TestAggregateSingleTrial tests the N=1 boundary.
func TestAggregateSingleTrial(t *testing.T) {
	trials := generateTrials(1, 47)
	agg := accumulate(trials)

	if agg.TotalSimulations != 1 {
		t.Fatalf("Expected 1 simulation, got %d", agg.TotalSimulations)
	}
	if len(agg.HomeScoreDistribution) != 1 || len(agg.AwayScoreDistribution) != 1 {
		t.Error("Single trial should produce exactly one bucket per team")
	}
	if agg.HomeWins+agg.AwayWins+agg.Ties != 1 {
		t.Error("Single trial should produce exactly one result")
	}
}

// TestAggregateOverUnder tests over/under consistency with distributions.
func TestAggregateOverUnder(t *testing.T) {
	trials := generateTrials(250, 53)
	agg := accumulate(trials)

	for _, key := range []string{"8.5", "9.5", "10.5"} {
		p, ok := agg.OverUnder[key]
		if !ok {
			t.Fatalf("Missing over/under line %s", key)
		}
		if p < 0 || p > 1 {
			t.Errorf("Over %s probability out of range: %f", key, p)
		}
	}
	if agg.OverUnder["8.5"] < agg.OverUnder["10.5"] {
		t.Error("Over 8.5 cannot be less likely than over 10.5")
	}
}

// TestAggregateErroredTrials tests errored trial accounting.
func TestAggregateErroredTrials(t *testing.T) {
	acc := NewAccumulator()
	good := generateTrials(5, 61)
	for i := range good {
		acc.Add(&good[i])
	}
	errored := models.TrialResult{
		RunID:       "RUN",
		TrialNumber: 6,
		Winner:      models.WinnerTie,
		Errored:     true,
	}
	acc.Add(&errored)

	agg := acc.Finalize("RUN")
	if agg.ErroredTrials != 1 {
		t.Errorf("Expected 1 errored trial, got %d", agg.ErroredTrials)
	}
	if agg.TotalSimulations != 6 {
		t.Errorf("Errored trials still count toward the total, got %d", agg.TotalSimulations)
	}
	if agg.Ties < 1 {
		t.Error("Errored trial should count as a tie")
	}
}

// TestAggregateTopEvents tests the high-leverage event cap and ordering.
func TestAggregateTopEvents(t *testing.T) {
	acc := NewAccumulator()
	for i := 0; i < 200; i++ {
		res := models.TrialResult{
			RunID:       "RUN",
			TrialNumber: i + 1,
			Winner:      models.WinnerHome,
			HomeScore:   1,
			KeyEvents: []models.GameEvent{{
				Type:     string(models.OutcomeHomeRun),
				Inning:   9,
				Runs:     1,
				BatterID: "b1",
				Leverage: 1.5 + float64(i%10)*0.1,
			}},
		}
		acc.Add(&res)
	}

	agg := acc.Finalize("RUN")
	if len(agg.HighLeverageEvents) != maxHighLeverageEvents {
		t.Fatalf("Expected %d events, got %d", maxHighLeverageEvents, len(agg.HighLeverageEvents))
	}
	for i := 1; i < len(agg.HighLeverageEvents); i++ {
		if agg.HighLeverageEvents[i].Leverage > agg.HighLeverageEvents[i-1].Leverage {
			t.Fatal("Events not sorted by descending leverage")
		}
	}
}
