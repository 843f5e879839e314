package simulation

import (
	"math/rand"
	"strings"
	"testing"

	"diamond-sim/models"
)

// TestPlayTrialInvariants tests structural invariants over many games.
func TestPlayTrialInvariants(t *testing.T) {
	driver := NewDriver(NewSampler())
	gc := testGameContext("G1")
	home := testRoster("HOME", "R")
	away := testRoster("AWAY", "L")

	for seed := int64(0); seed < 200; seed++ {
		rng := rand.New(rand.NewSource(seed))
		res := driver.PlayTrial(rng, gc, home, away, models.DefaultTrialCapInnings, "RUN", int(seed)+1)

		if res.HomeScore < 0 || res.AwayScore < 0 {
			t.Fatalf("Seed %d: negative score %d-%d", seed, res.HomeScore, res.AwayScore)
		}
		if res.FinalInning < 9 {
			t.Fatalf("Seed %d: game ended in inning %d", seed, res.FinalInning)
		}
		if res.FinalInning > models.DefaultTrialCapInnings {
			t.Fatalf("Seed %d: game exceeded inning cap: %d", seed, res.FinalInning)
		}

		switch {
		case res.HomeScore > res.AwayScore:
			if res.Winner != models.WinnerHome {
				t.Fatalf("Seed %d: winner %s with score %d-%d", seed, res.Winner, res.HomeScore, res.AwayScore)
			}
		case res.AwayScore > res.HomeScore:
			if res.Winner != models.WinnerAway {
				t.Fatalf("Seed %d: winner %s with score %d-%d", seed, res.Winner, res.HomeScore, res.AwayScore)
			}
		default:
			if res.Winner != models.WinnerTie {
				t.Fatalf("Seed %d: winner %s in a tie", seed, res.Winner)
			}
			if res.FinalInning != models.DefaultTrialCapInnings {
				t.Fatalf("Seed %d: tie before the inning cap, inning %d", seed, res.FinalInning)
			}
		}

		if res.TotalPitches <= 0 {
			t.Fatalf("Seed %d: no pitches recorded", seed)
		}
		if res.DurationMinutes < 150 {
			t.Fatalf("Seed %d: implausible duration %d", seed, res.DurationMinutes)
		}
		if res.Errored {
			t.Fatalf("Seed %d: clean trial flagged errored", seed)
		}
	}
}

// TestPlayTrialDeterminism tests replay with a fixed seed.
func TestPlayTrialDeterminism(t *testing.T) {
	driver := NewDriver(NewSampler())
	gc := testGameContext("G1")
	home := testRoster("HOME", "R")
	away := testRoster("AWAY", "L")

	first := driver.PlayTrial(rand.New(rand.NewSource(99)), gc, home, away, 30, "RUN", 1)
	second := driver.PlayTrial(rand.New(rand.NewSource(99)), gc, home, away, 30, "RUN", 1)

	if first.HomeScore != second.HomeScore || first.AwayScore != second.AwayScore {
		t.Errorf("Same seed produced different scores: %d-%d vs %d-%d",
			first.HomeScore, first.AwayScore, second.HomeScore, second.AwayScore)
	}
	if first.TotalPitches != second.TotalPitches {
		t.Errorf("Same seed produced different pitch counts: %d vs %d",
			first.TotalPitches, second.TotalPitches)
	}
	if first.FinalInning != second.FinalInning {
		t.Errorf("Same seed produced different final innings: %d vs %d",
			first.FinalInning, second.FinalInning)
	}
}

// TestExtraInningsSymmetry tests that two identical teams split wins
// evenly, in extra innings in particular, and that the home team bats in
// the final inning of every away win.
func TestExtraInningsSymmetry(t *testing.T) {
	driver := NewDriver(NewSampler())
	gc := testGameContext("G1")
	home := testRoster("HOME", "R")
	away := testRoster("AWAY", "R")

	const trials = 30000
	var homeWins, awayWins, extraHome, extraAway int
	for i := 0; i < trials; i++ {
		rng := rand.New(rand.NewSource(int64(i)))
		res := driver.PlayTrial(rng, gc, home, away, models.DefaultTrialCapInnings, "RUN", i+1)

		switch res.Winner {
		case models.WinnerHome:
			homeWins++
		case models.WinnerAway:
			awayWins++
		}
		if res.FinalInning <= 9 {
			continue
		}
		switch res.Winner {
		case models.WinnerHome:
			extraHome++
		case models.WinnerAway:
			extraAway++
			// The home team gets the bottom of every inning in an away
			// win, so it bats at least three times per inning.
			homePA := 0
			for id, line := range res.Batting {
				if strings.HasPrefix(id, "HOME-") {
					homePA += line.PlateAppear
				}
			}
			if homePA < 3*res.FinalInning {
				t.Fatalf("Trial %d: away won in %d innings but home batted only %d times; the last home half was skipped",
					i+1, res.FinalInning, homePA)
			}
		}
	}

	if diff := homeWins - awayWins; diff < -trials/30 || diff > trials/30 {
		t.Errorf("Identical teams should split wins evenly: home %d, away %d", homeWins, awayWins)
	}

	decided := extraHome + extraAway
	if decided == 0 {
		t.Fatal("Sample produced no extra-inning decisions")
	}
	if diff := extraHome - extraAway; diff < -decided/12 || diff > decided/12 {
		t.Errorf("Extra-inning decisions skewed: home %d, away %d of %d", extraHome, extraAway, decided)
	}
}

// TestPlayTrialStatLines tests batting and pitching line consistency.
func TestPlayTrialStatLines(t *testing.T) {
	driver := NewDriver(NewSampler())
	gc := testGameContext("G1")
	home := testRoster("HOME", "R")
	away := testRoster("AWAY", "L")

	res := driver.PlayTrial(rand.New(rand.NewSource(5)), gc, home, away, 30, "RUN", 1)

	totalPA := 0
	totalRuns := 0
	for _, line := range res.Batting {
		totalPA += line.PlateAppear
		totalRuns += line.RunsScored
		if line.Hits > line.PlateAppear {
			t.Errorf("Player %s has more hits than plate appearances", line.PlayerID)
		}
	}
	if totalRuns != res.HomeScore+res.AwayScore {
		t.Errorf("Individual runs %d do not match final score total %d",
			totalRuns, res.HomeScore+res.AwayScore)
	}

	totalBF := 0
	runsAllowed := 0
	for _, line := range res.Pitching {
		totalBF += line.BattersFaced
		runsAllowed += line.RunsAllowed
	}
	if totalBF != totalPA {
		t.Errorf("Batters faced %d does not match plate appearances %d", totalBF, totalPA)
	}
	if runsAllowed != res.HomeScore+res.AwayScore {
		t.Errorf("Runs allowed %d do not match final score total %d",
			runsAllowed, res.HomeScore+res.AwayScore)
	}

	if len(res.Pitching) != 2 {
		t.Errorf("Only the two starters should pitch, got %d lines", len(res.Pitching))
	}
}

// TestPlayTrialKeyEvents tests event recording thresholds.
func TestPlayTrialKeyEvents(t *testing.T) {
	driver := NewDriver(NewSampler())
	gc := testGameContext("G1")
	home := testRoster("HOME", "R")
	away := testRoster("AWAY", "L")

	for seed := int64(0); seed < 50; seed++ {
		res := driver.PlayTrial(rand.New(rand.NewSource(seed)), gc, home, away, 30, "RUN", 1)
		for _, ev := range res.KeyEvents {
			if ev.Leverage < highLeverageThreshold {
				t.Fatalf("Recorded event below leverage threshold: %f", ev.Leverage)
			}
			if ev.Runs == 0 && ev.Type != string(models.OutcomeHomeRun) {
				t.Fatalf("Recorded event with no runs and no homer: %+v", ev)
			}
			if ev.Inning < 1 {
				t.Fatalf("Event with invalid inning: %+v", ev)
			}
		}
	}
}

// TestPlayTrialDefaultedPitchers tests that league-default pitchers still
// produce complete games.
func TestPlayTrialDefaultedPitchers(t *testing.T) {
	driver := NewDriver(NewSampler())
	gc := testGameContext("G1")
	home := testRoster("HOME", "R")
	away := testRoster("AWAY", "L")
	home.StartingPitcher.Pitching = models.PitchingRates{}
	home.StartingPitcher.Defaulted = true
	away.StartingPitcher.Pitching = models.PitchingRates{}
	away.StartingPitcher.Defaulted = true

	res := driver.PlayTrial(rand.New(rand.NewSource(3)), gc, home, away, 30, "RUN", 1)
	if res.FinalInning < 9 {
		t.Errorf("Game with defaulted pitchers ended early: inning %d", res.FinalInning)
	}
	if res.Errored {
		t.Error("Game with defaulted pitchers should not error")
	}
}
