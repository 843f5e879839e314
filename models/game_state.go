package models

import "time"

// Inning halves.
const (
	HalfTop    = "top"
	HalfBottom = "bottom"
)

// Winners.
const (
	WinnerHome = "home"
	WinnerAway = "away"
	WinnerTie  = "tie"
)

// DefaultTrialCapInnings bounds extra innings per trial.
const DefaultTrialCapInnings = 30

// Weather represents game conditions.
type Weather struct {
	Temperature int     `json:"temperature"` // Fahrenheit
	WindSpeed   int     `json:"wind_speed"`  // MPH
	WindDir     string  `json:"wind_dir"`    // "in", "out", "left", "right", "calm", "varies"
	Humidity    int     `json:"humidity"`    // Percentage
	Pressure    float64 `json:"pressure"`    // Inches of mercury
}

// DefaultConditions returns neutral conditions used when no forecast source
// is configured.
func DefaultConditions() Weather {
	return Weather{
		Temperature: 72,
		WindSpeed:   5,
		WindDir:     "calm",
		Humidity:    50,
		Pressure:    29.92,
	}
}

// GameContext bundles everything a trial needs about the identified game.
type GameContext struct {
	GameID       string    `json:"game_id"`
	HomeTeamID   string    `json:"home_team_id"`
	AwayTeamID   string    `json:"away_team_id"`
	HomeTeamName string    `json:"home_team"`
	AwayTeamName string    `json:"away_team"`
	Stadium      Stadium   `json:"stadium"`
	Umpire       Umpire    `json:"umpire"`
	StartTime    time.Time `json:"start_time"`
	Weather      Weather   `json:"weather"`
}

// GameState represents the current state of one simulated game.
type GameState struct {
	GameID     string    `json:"game_id"`
	RunID      string    `json:"run_id"`
	Inning     int       `json:"inning"`
	InningHalf string    `json:"inning_half"`
	Outs       int       `json:"outs"`
	HomeScore  int       `json:"home_score"`
	AwayScore  int       `json:"away_score"`
	Bases      BaseState `json:"bases"`
	Count      Count     `json:"count"`
	CurrentAB  AtBat     `json:"current_at_bat"`
}

// BaseState represents which bases are occupied.
type BaseState struct {
	First  *BaseRunner `json:"first,omitempty"`
	Second *BaseRunner `json:"second,omitempty"`
	Third  *BaseRunner `json:"third,omitempty"`
}

// BaseRunner represents a player on base.
type BaseRunner struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
}

// Count represents balls and strikes.
type Count struct {
	Balls   int `json:"balls"`
	Strikes int `json:"strikes"`
}

// AtBat represents the current plate appearance.
type AtBat struct {
	BatterID    string  `json:"batter_id"`
	BatterName  string  `json:"batter_name"`
	PitcherID   string  `json:"pitcher_id"`
	PitcherName string  `json:"pitcher_name"`
	BatterHand  string  `json:"batter_hand"`
	PitcherHand string  `json:"pitcher_hand"`
	Leverage    float64 `json:"leverage"`
}

// NewGameState creates the initial state: top of the 1st, no outs, empty
// bases, 0-0.
func NewGameState(gameID, runID string) *GameState {
	return &GameState{
		GameID:     gameID,
		RunID:      runID,
		Inning:     1,
		InningHalf: HalfTop,
	}
}

// IsInningOver checks if the current half-inning is over.
func (gs *GameState) IsInningOver() bool {
	return gs.Outs >= 3
}

// IsGameOver checks if the game has ended. capInnings bounds extra innings;
// a game still tied after the cap ends as a tie.
func (gs *GameState) IsGameOver(capInnings int) bool {
	if capInnings > 0 && gs.Inning > capInnings {
		return true
	}
	if gs.Inning < 9 {
		return false
	}
	if gs.InningHalf != HalfBottom {
		// The home team always gets its half; a game never ends in the
		// top of an inning.
		return false
	}
	// Walk-off: the home team taking the lead in the bottom of the 9th
	// or later ends the game immediately. This branch also skips the
	// bottom half entirely when the home team already leads.
	if gs.HomeScore > gs.AwayScore {
		return true
	}
	// Away team still ahead once the bottom half is complete.
	return gs.Outs >= 3 && gs.AwayScore > gs.HomeScore
}

// AdvanceInning moves to the next half-inning or inning, resetting outs,
// count and bases.
func (gs *GameState) AdvanceInning() {
	gs.Outs = 0
	gs.Count = Count{}
	gs.Bases = BaseState{}

	if gs.InningHalf == HalfTop {
		gs.InningHalf = HalfBottom
	} else {
		gs.InningHalf = HalfTop
		gs.Inning++
	}
}

// AddRuns credits runs to the batting team.
func (gs *GameState) AddRuns(runs int) {
	if gs.InningHalf == HalfTop {
		gs.AwayScore += runs
	} else {
		gs.HomeScore += runs
	}
}

// Winner returns the result from the final score.
func (gs *GameState) Winner() string {
	switch {
	case gs.HomeScore > gs.AwayScore:
		return WinnerHome
	case gs.AwayScore > gs.HomeScore:
		return WinnerAway
	default:
		return WinnerTie
	}
}

// RunnerCount returns the number of runners on base.
func (bs *BaseState) RunnerCount() int {
	count := 0
	if bs.First != nil {
		count++
	}
	if bs.Second != nil {
		count++
	}
	if bs.Third != nil {
		count++
	}
	return count
}

// IsEmpty checks if all bases are empty.
func (bs *BaseState) IsEmpty() bool {
	return bs.First == nil && bs.Second == nil && bs.Third == nil
}

// CalculateLeverage estimates the leverage index for the current situation.
// Always at least 1.0; grows in late innings, close games, with runners on
// and with two outs.
func (gs *GameState) CalculateLeverage() float64 {
	leverage := 1.0

	if gs.Inning >= 7 {
		leverage += float64(gs.Inning-6) * 0.3
	}

	scoreDiff := gs.HomeScore - gs.AwayScore
	if scoreDiff < 0 {
		scoreDiff = -scoreDiff
	}
	if scoreDiff <= 3 {
		leverage += (4 - float64(scoreDiff)) * 0.2
	}

	leverage += float64(gs.Bases.RunnerCount()) * 0.1

	if gs.Outs == 2 {
		leverage += 0.3
	}

	if gs.Inning >= 9 {
		leverage += 0.5
	}

	return leverage
}
