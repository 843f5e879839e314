package models

import "time"

// Run statuses.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusError     = "error"
)

// ValidTransition reports whether a run status change is legal. Statuses
// only advance pending -> running -> {completed, error}; terminal states
// never change.
func ValidTransition(from, to string) bool {
	switch to {
	case StatusRunning:
		return from == StatusPending
	case StatusCompleted:
		return from == StatusRunning
	case StatusError:
		return from == StatusPending || from == StatusRunning
	}
	return false
}

// Run is the persistent record of one simulation invocation.
type Run struct {
	RunID         string     `json:"run_id"`
	GameID        string     `json:"game_id"`
	Status        string     `json:"status"`
	TotalRuns     int        `json:"total_runs"`
	CompletedRuns int        `json:"completed_runs"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// GameEvent records a notable plate appearance within a trial.
type GameEvent struct {
	Type       string  `json:"type"`
	Inning     int     `json:"inning"`
	InningHalf string  `json:"inning_half"`
	BatterID   string  `json:"batter_id"`
	PitcherID  string  `json:"pitcher_id"`
	Runs       int     `json:"runs,omitempty"`
	Leverage   float64 `json:"leverage"`
}

// BattingLine accumulates one player's offensive line over a single trial.
type BattingLine struct {
	PlayerID       string `json:"player_id"`
	PlateAppear    int    `json:"pa"`
	Hits           int    `json:"hits"`
	Doubles        int    `json:"doubles"`
	Triples        int    `json:"triples"`
	HomeRuns       int    `json:"home_runs"`
	Walks          int    `json:"walks"`
	HitByPitch     int    `json:"hit_by_pitch"`
	Strikeouts     int    `json:"strikeouts"`
	RunsBattedIn   int    `json:"rbi"`
	RunsScored     int    `json:"runs"`
}

// PitchingLine accumulates one pitcher's line over a single trial.
type PitchingLine struct {
	PlayerID        string `json:"player_id"`
	BattersFaced    int    `json:"batters_faced"`
	Strikeouts      int    `json:"strikeouts"`
	Walks           int    `json:"walks"`
	HitsAllowed     int    `json:"hits_allowed"`
	HomeRunsAllowed int    `json:"home_runs_allowed"`
	RunsAllowed     int    `json:"runs_allowed"`
}

// TrialResult is the outcome of one complete game playthrough.
type TrialResult struct {
	RunID           string                   `json:"run_id"`
	TrialNumber     int                      `json:"trial_number"`
	HomeScore       int                      `json:"home_score"`
	AwayScore       int                      `json:"away_score"`
	Winner          string                   `json:"winner"`
	TotalPitches    int                      `json:"total_pitches"`
	DurationMinutes int                      `json:"duration_minutes"`
	FinalInning     int                      `json:"final_inning"`
	KeyEvents       []GameEvent              `json:"key_events,omitempty"`
	Batting         map[string]*BattingLine  `json:"batting,omitempty"`
	Pitching        map[string]*PitchingLine `json:"pitching,omitempty"`
	Errored         bool                     `json:"errored,omitempty"`
	CreatedAt       time.Time                `json:"created_at"`
}

// BattingAverages is a player's mean offensive line across all trials.
type BattingAverages struct {
	PlayerID   string  `json:"player_id"`
	Trials     int     `json:"trials"`
	PlateAppear float64 `json:"pa"`
	Hits       float64 `json:"hits"`
	HomeRuns   float64 `json:"home_runs"`
	Walks      float64 `json:"walks"`
	Strikeouts float64 `json:"strikeouts"`
	RunsBattedIn float64 `json:"rbi"`
	RunsScored float64 `json:"runs"`
}

// PitchingAverages is a pitcher's mean line across all trials.
type PitchingAverages struct {
	PlayerID     string  `json:"player_id"`
	Trials       int     `json:"trials"`
	BattersFaced float64 `json:"batters_faced"`
	Strikeouts   float64 `json:"strikeouts"`
	Walks        float64 `json:"walks"`
	HitsAllowed  float64 `json:"hits_allowed"`
	RunsAllowed  float64 `json:"runs_allowed"`
}

// AggregatedResult represents the combined results of all trials in a run.
type AggregatedResult struct {
	RunID                 string                       `json:"run_id"`
	TotalSimulations      int                          `json:"total_simulations"`
	HomeWins              int                          `json:"home_wins"`
	AwayWins              int                          `json:"away_wins"`
	Ties                  int                          `json:"ties"`
	ErroredTrials         int                          `json:"errored_trials,omitempty"`
	HomeWinProbability    float64                      `json:"home_win_probability"`
	AwayWinProbability    float64                      `json:"away_win_probability"`
	TieProbability        float64                      `json:"tie_probability"`
	ExpectedHomeScore     float64                      `json:"expected_home_score"`
	ExpectedAwayScore     float64                      `json:"expected_away_score"`
	HomeScoreDistribution map[int]int                  `json:"home_score_distribution"`
	AwayScoreDistribution map[int]int                  `json:"away_score_distribution"`
	AverageGameDuration   float64                      `json:"average_game_duration"`
	AveragePitches        float64                      `json:"average_pitches"`
	HighLeverageEvents    []GameEvent                  `json:"high_leverage_events,omitempty"`
	Statistics            map[string]float64           `json:"statistics"`
	OverUnder             map[string]float64           `json:"total_score_over_under,omitempty"`
	PlayerBatting         map[string]*BattingAverages  `json:"player_batting,omitempty"`
	PlayerPitching        map[string]*PitchingAverages `json:"player_pitching,omitempty"`
	CreatedAt             time.Time                    `json:"created_at"`
}

// ScheduledGame identifies one game on a date's slate.
type ScheduledGame struct {
	GameID   string `json:"game_id"`
	HomeTeam string `json:"home_team"`
	AwayTeam string `json:"away_team"`
}
