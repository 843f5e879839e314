package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"diamond-sim/models"
)

// trialInsertBatchSize bounds how many trial rows go into one INSERT.
// Batches never span runs.
const trialInsertBatchSize = 100

// DB is the subset of pgxpool.Pool the repository needs. pgxmock satisfies
// it in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// Repository provides typed access to games, rosters, simulation runs and
// their results.
type Repository struct {
	db  DB
	log *logrus.Logger
}

// New creates a repository over the given connection pool.
func New(db DB, log *logrus.Logger) *Repository {
	return &Repository{db: db, log: log}
}

// Ping verifies store connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// classify maps low-level pgx errors to the repository taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%w: %s", ErrNotFound, pgErr.ConstraintName)
		}
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// LoadGame resolves a game's teams, stadium and umpire into a GameContext.
// The weather block is left for the caller to fill.
func (r *Repository) LoadGame(ctx context.Context, gameID string) (*models.GameContext, error) {
	query := `
		SELECT g.game_id, g.home_team_id, g.away_team_id,
		       ht.name, at.name,
		       g.game_time,
		       s.stadium_id, s.name, s.latitude, s.longitude, s.altitude, s.roof_type, s.park_factors,
		       u.umpire_id, u.name, u.tendencies
		FROM games g
		JOIN teams ht ON g.home_team_id = ht.team_id
		JOIN teams at ON g.away_team_id = at.team_id
		LEFT JOIN stadiums s ON g.stadium_id = s.stadium_id
		LEFT JOIN umpires u ON g.umpire_id = u.umpire_id
		WHERE g.game_id = $1
	`

	var (
		gc              models.GameContext
		stadiumID       *string
		stadiumName     *string
		latitude        *float64
		longitude       *float64
		altitude        *int
		roofType        *string
		parkFactorsJSON []byte
		umpireID        *string
		umpireName      *string
		tendenciesJSON  []byte
	)

	err := r.db.QueryRow(ctx, query, gameID).Scan(
		&gc.GameID, &gc.HomeTeamID, &gc.AwayTeamID,
		&gc.HomeTeamName, &gc.AwayTeamName,
		&gc.StartTime,
		&stadiumID, &stadiumName, &latitude, &longitude, &altitude, &roofType, &parkFactorsJSON,
		&umpireID, &umpireName, &tendenciesJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("load game %s: %w", gameID, classify(err))
	}

	gc.Stadium.Factors = models.DefaultParkFactors()
	if stadiumID != nil {
		gc.Stadium.ID = *stadiumID
		if stadiumName != nil {
			gc.Stadium.Name = *stadiumName
		}
		if latitude != nil {
			gc.Stadium.Latitude = *latitude
		}
		if longitude != nil {
			gc.Stadium.Longitude = *longitude
		}
		if altitude != nil {
			gc.Stadium.Altitude = *altitude
		}
		if roofType != nil {
			gc.Stadium.RoofType = *roofType
		}
		if len(parkFactorsJSON) > 0 {
			if err := json.Unmarshal(parkFactorsJSON, &gc.Stadium.Factors); err != nil {
				r.log.WithError(err).WithField("game_id", gameID).Warn("Failed to parse park factors, using neutral")
				gc.Stadium.Factors = models.DefaultParkFactors()
			}
		}
	}

	gc.Umpire.Tendencies = models.DefaultUmpireTendencies()
	if umpireID != nil {
		gc.Umpire.ID = *umpireID
		if umpireName != nil {
			gc.Umpire.Name = *umpireName
		}
		if len(tendenciesJSON) > 0 {
			if err := json.Unmarshal(tendenciesJSON, &gc.Umpire.Tendencies); err != nil {
				r.log.WithError(err).WithField("game_id", gameID).Warn("Failed to parse umpire tendencies, using defaults")
				gc.Umpire.Tendencies = models.DefaultUmpireTendencies()
			}
		}
	}

	return &gc, nil
}

// GameExists reports whether a game is known.
func (r *Repository) GameExists(ctx context.Context, gameID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM games WHERE game_id = $1)", gameID).Scan(&exists)
	if err != nil {
		return false, classify(err)
	}
	return exists, nil
}

// LoadRoster returns a team's batting order and starting pitcher. Players
// with no seasonal rates get league-average blocks and are marked
// Defaulted. Rosters that violate model invariants fail as DataCorrupt.
func (r *Repository) LoadRoster(ctx context.Context, teamID string) (*models.Roster, error) {
	season := time.Now().Year()

	query := `
		SELECT p.player_id, p.full_name, p.position, p.bats, p.throws, p.role,
		       p.lineup_spot, p.is_starting_pitcher,
		       psr.batting, psr.pitching
		FROM players p
		LEFT JOIN player_season_rates psr
		       ON psr.player_id = p.player_id AND psr.season = $2
		WHERE p.team_id = $1 AND (p.lineup_spot IS NOT NULL OR p.is_starting_pitcher)
		ORDER BY p.lineup_spot NULLS LAST
	`

	rows, err := r.db.Query(ctx, query, teamID, season)
	if err != nil {
		return nil, fmt.Errorf("load roster %s: %w", teamID, classify(err))
	}
	defer rows.Close()

	roster := &models.Roster{TeamID: teamID}
	for rows.Next() {
		var (
			p            models.Player
			lineupSpot   *int
			isStarter    bool
			battingJSON  []byte
			pitchingJSON []byte
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Position, &p.Bats, &p.Throws, &p.Role,
			&lineupSpot, &isStarter, &battingJSON, &pitchingJSON); err != nil {
			return nil, fmt.Errorf("load roster %s: %w", teamID, classify(err))
		}
		p.TeamID = teamID

		if len(battingJSON) > 0 {
			if err := json.Unmarshal(battingJSON, &p.Batting); err != nil {
				return nil, fmt.Errorf("roster %s player %s batting rates: %w", teamID, p.ID, ErrDataCorrupt)
			}
		}
		if len(pitchingJSON) > 0 {
			if err := json.Unmarshal(pitchingJSON, &p.Pitching); err != nil {
				return nil, fmt.Errorf("roster %s player %s pitching rates: %w", teamID, p.ID, ErrDataCorrupt)
			}
		}

		if p.Batting.Sum() == 0 {
			p.Batting = models.LeagueAverageRates()
			p.Defaulted = true
		} else if err := p.Batting.Validate(); err != nil {
			return nil, fmt.Errorf("roster %s player %s: %v: %w", teamID, p.ID, err, ErrDataCorrupt)
		}
		if isStarter && p.Pitching == (models.PitchingRates{}) {
			p.Pitching = models.LeagueAveragePitching()
			p.Defaulted = true
		}

		switch {
		case lineupSpot != nil:
			roster.Lineup = append(roster.Lineup, p)
			if isStarter {
				// Two-way player batting in the lineup and starting on
				// the mound.
				roster.StartingPitcher = p
			}
		case isStarter:
			roster.StartingPitcher = p
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load roster %s: %w", teamID, classify(err))
	}

	if len(roster.Lineup) == 0 && roster.StartingPitcher.ID == "" {
		return nil, fmt.Errorf("roster %s: %w", teamID, ErrNotFound)
	}
	if err := roster.Validate(); err != nil {
		return nil, fmt.Errorf("roster %s: %v: %w", teamID, err, ErrDataCorrupt)
	}

	return roster, nil
}

// CreateRun inserts a pending run record. A duplicate run ID fails with
// Conflict; an unknown game fails with NotFound.
func (r *Repository) CreateRun(ctx context.Context, runID, gameID string, config json.RawMessage, totalRuns int) error {
	if len(config) == 0 {
		config = json.RawMessage("{}")
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO simulation_runs (run_id, game_id, config, total_runs, completed_runs, status, created_at)
		VALUES ($1, $2, $3, $4, 0, 'pending', NOW())
	`, runID, gameID, config, totalRuns)
	if err != nil {
		return fmt.Errorf("create run %s: %w", runID, classify(err))
	}
	return nil
}

// allowedPriorStatuses returns the statuses a run may be in before moving
// to the target status.
func allowedPriorStatuses(to string) []string {
	switch to {
	case models.StatusRunning:
		return []string{models.StatusPending}
	case models.StatusCompleted:
		return []string{models.StatusRunning}
	case models.StatusError:
		return []string{models.StatusPending, models.StatusRunning}
	}
	return nil
}

// UpdateRunStatus advances a run's status. Transitions only move forward;
// illegal transitions fail with Conflict. Pass completedRuns < 0 to leave
// the counter unchanged.
func (r *Repository) UpdateRunStatus(ctx context.Context, runID, status string, completedRuns int) error {
	priors := allowedPriorStatuses(status)
	if priors == nil {
		return fmt.Errorf("update run %s: illegal target status %q: %w", runID, status, ErrConflict)
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE simulation_runs
		SET status = $2,
		    completed_runs = CASE WHEN $3 >= 0 THEN $3 ELSE completed_runs END,
		    completed_at = CASE WHEN $2 IN ('completed', 'error') THEN NOW() ELSE completed_at END
		WHERE run_id = $1 AND status = ANY($4)
	`, runID, status, completedRuns, priors)
	if err != nil {
		return fmt.Errorf("update run %s: %w", runID, classify(err))
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetRun(ctx, runID); err != nil {
			return err
		}
		return fmt.Errorf("update run %s: transition to %q not allowed: %w", runID, status, ErrConflict)
	}
	return nil
}

// UpdateRunProgress bumps the completed counter of a running run.
func (r *Repository) UpdateRunProgress(ctx context.Context, runID string, completedRuns int) error {
	_, err := r.db.Exec(ctx, `
		UPDATE simulation_runs SET completed_runs = $2
		WHERE run_id = $1 AND status = 'running'
	`, runID, completedRuns)
	if err != nil {
		return fmt.Errorf("update progress %s: %w", runID, classify(err))
	}
	return nil
}

// PersistTrialResults appends trial rows. Inserts are idempotent on
// (run_id, trial_number) and chunked so no statement exceeds the batch
// size. All results must belong to the same run.
func (r *Repository) PersistTrialResults(ctx context.Context, results []models.TrialResult) error {
	for start := 0; start < len(results); start += trialInsertBatchSize {
		end := start + trialInsertBatchSize
		if end > len(results) {
			end = len(results)
		}
		if err := r.insertTrialBatch(ctx, results[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) insertTrialBatch(ctx context.Context, results []models.TrialResult) error {
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`
		INSERT INTO simulation_results
			(run_id, trial_number, home_score, away_score, total_pitches, duration_minutes, key_events, errored, created_at)
		VALUES `)

	for i, res := range results {
		keyEventsJSON, err := json.Marshal(res.KeyEvents)
		if err != nil {
			return fmt.Errorf("marshal key events: %w", err)
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 9
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9)
		args = append(args,
			res.RunID, res.TrialNumber, res.HomeScore, res.AwayScore,
			res.TotalPitches, res.DurationMinutes, keyEventsJSON, res.Errored, res.CreatedAt)
	}
	sb.WriteString(" ON CONFLICT (run_id, trial_number) DO NOTHING")

	if _, err := r.db.Exec(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("persist trial results: %w", classify(err))
	}
	return nil
}

// GetTrialResult loads one persisted trial row.
func (r *Repository) GetTrialResult(ctx context.Context, runID string, trialNumber int) (*models.TrialResult, error) {
	var (
		res           models.TrialResult
		keyEventsJSON []byte
	)
	err := r.db.QueryRow(ctx, `
		SELECT run_id, trial_number, home_score, away_score, total_pitches,
		       duration_minutes, key_events, errored, created_at
		FROM simulation_results
		WHERE run_id = $1 AND trial_number = $2
	`, runID, trialNumber).Scan(
		&res.RunID, &res.TrialNumber, &res.HomeScore, &res.AwayScore,
		&res.TotalPitches, &res.DurationMinutes, &keyEventsJSON, &res.Errored, &res.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("trial %s/%d: %w", runID, trialNumber, classify(err))
	}
	if len(keyEventsJSON) > 0 {
		if err := json.Unmarshal(keyEventsJSON, &res.KeyEvents); err != nil {
			return nil, fmt.Errorf("trial %s/%d key events: %w", runID, trialNumber, ErrDataCorrupt)
		}
	}
	switch {
	case res.HomeScore > res.AwayScore:
		res.Winner = models.WinnerHome
	case res.AwayScore > res.HomeScore:
		res.Winner = models.WinnerAway
	default:
		res.Winner = models.WinnerTie
	}
	return &res, nil
}

// PersistAggregate writes a run's aggregate, replacing any prior write for
// the same run.
func (r *Repository) PersistAggregate(ctx context.Context, agg *models.AggregatedResult) error {
	homeDistJSON, err := json.Marshal(agg.HomeScoreDistribution)
	if err != nil {
		return fmt.Errorf("marshal home score distribution: %w", err)
	}
	awayDistJSON, err := json.Marshal(agg.AwayScoreDistribution)
	if err != nil {
		return fmt.Errorf("marshal away score distribution: %w", err)
	}
	statsJSON, err := json.Marshal(agg.Statistics)
	if err != nil {
		return fmt.Errorf("marshal statistics: %w", err)
	}
	overUnderJSON, err := json.Marshal(agg.OverUnder)
	if err != nil {
		return fmt.Errorf("marshal over/under: %w", err)
	}
	playerJSON, err := json.Marshal(struct {
		Batting  map[string]*models.BattingAverages  `json:"batting,omitempty"`
		Pitching map[string]*models.PitchingAverages `json:"pitching,omitempty"`
	}{agg.PlayerBatting, agg.PlayerPitching})
	if err != nil {
		return fmt.Errorf("marshal player performance: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO simulation_aggregates (
			run_id, total_simulations, home_wins, away_wins, ties, errored_trials,
			home_win_probability, away_win_probability,
			expected_home_score, expected_away_score,
			home_score_distribution, away_score_distribution,
			average_game_duration, average_pitches,
			statistics, total_score_over_under, player_performance, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, NOW())
		ON CONFLICT (run_id) DO UPDATE SET
			total_simulations = EXCLUDED.total_simulations,
			home_wins = EXCLUDED.home_wins,
			away_wins = EXCLUDED.away_wins,
			ties = EXCLUDED.ties,
			errored_trials = EXCLUDED.errored_trials,
			home_win_probability = EXCLUDED.home_win_probability,
			away_win_probability = EXCLUDED.away_win_probability,
			expected_home_score = EXCLUDED.expected_home_score,
			expected_away_score = EXCLUDED.expected_away_score,
			home_score_distribution = EXCLUDED.home_score_distribution,
			away_score_distribution = EXCLUDED.away_score_distribution,
			average_game_duration = EXCLUDED.average_game_duration,
			average_pitches = EXCLUDED.average_pitches,
			statistics = EXCLUDED.statistics,
			total_score_over_under = EXCLUDED.total_score_over_under,
			player_performance = EXCLUDED.player_performance
	`, agg.RunID, agg.TotalSimulations, agg.HomeWins, agg.AwayWins, agg.Ties, agg.ErroredTrials,
		agg.HomeWinProbability, agg.AwayWinProbability,
		agg.ExpectedHomeScore, agg.ExpectedAwayScore,
		homeDistJSON, awayDistJSON,
		agg.AverageGameDuration, agg.AveragePitches,
		statsJSON, overUnderJSON, playerJSON)
	if err != nil {
		return fmt.Errorf("persist aggregate %s: %w", agg.RunID, classify(err))
	}
	return nil
}

// GetRun loads a run record.
func (r *Repository) GetRun(ctx context.Context, runID string) (*models.Run, error) {
	var run models.Run
	err := r.db.QueryRow(ctx, `
		SELECT run_id, game_id, status, total_runs, completed_runs, created_at, completed_at
		FROM simulation_runs
		WHERE run_id = $1
	`, runID).Scan(&run.RunID, &run.GameID, &run.Status, &run.TotalRuns,
		&run.CompletedRuns, &run.CreatedAt, &run.CompletedAt)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, classify(err))
	}
	return &run, nil
}

// GetAggregate loads a run's persisted aggregate.
func (r *Repository) GetAggregate(ctx context.Context, runID string) (*models.AggregatedResult, error) {
	var (
		agg           models.AggregatedResult
		homeDistJSON  []byte
		awayDistJSON  []byte
		statsJSON     []byte
		overUnderJSON []byte
		playerJSON    []byte
	)
	err := r.db.QueryRow(ctx, `
		SELECT run_id, total_simulations, home_wins, away_wins, ties, errored_trials,
		       home_win_probability, away_win_probability,
		       expected_home_score, expected_away_score,
		       home_score_distribution, away_score_distribution,
		       average_game_duration, average_pitches,
		       statistics, total_score_over_under, player_performance, created_at
		FROM simulation_aggregates
		WHERE run_id = $1
	`, runID).Scan(&agg.RunID, &agg.TotalSimulations, &agg.HomeWins, &agg.AwayWins, &agg.Ties, &agg.ErroredTrials,
		&agg.HomeWinProbability, &agg.AwayWinProbability,
		&agg.ExpectedHomeScore, &agg.ExpectedAwayScore,
		&homeDistJSON, &awayDistJSON,
		&agg.AverageGameDuration, &agg.AveragePitches,
		&statsJSON, &overUnderJSON, &playerJSON, &agg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", runID, classify(err))
	}

	agg.TieProbability = 1.0 - agg.HomeWinProbability - agg.AwayWinProbability

	if err := json.Unmarshal(homeDistJSON, &agg.HomeScoreDistribution); err != nil {
		return nil, fmt.Errorf("aggregate %s home distribution: %w", runID, ErrDataCorrupt)
	}
	if err := json.Unmarshal(awayDistJSON, &agg.AwayScoreDistribution); err != nil {
		return nil, fmt.Errorf("aggregate %s away distribution: %w", runID, ErrDataCorrupt)
	}
	if len(statsJSON) > 0 {
		if err := json.Unmarshal(statsJSON, &agg.Statistics); err != nil {
			r.log.WithError(err).WithField("run_id", runID).Warn("Failed to parse aggregate statistics")
			agg.Statistics = map[string]float64{}
		}
	}
	if len(overUnderJSON) > 0 {
		if err := json.Unmarshal(overUnderJSON, &agg.OverUnder); err != nil {
			r.log.WithError(err).WithField("run_id", runID).Warn("Failed to parse over/under block")
		}
	}
	if len(playerJSON) > 0 {
		var perf struct {
			Batting  map[string]*models.BattingAverages  `json:"batting"`
			Pitching map[string]*models.PitchingAverages `json:"pitching"`
		}
		if err := json.Unmarshal(playerJSON, &perf); err == nil {
			agg.PlayerBatting = perf.Batting
			agg.PlayerPitching = perf.Pitching
		}
	}

	return &agg, nil
}

// ListScheduledGames returns the games scheduled on the given date, ordered
// by start time.
func (r *Repository) ListScheduledGames(ctx context.Context, date time.Time) ([]models.ScheduledGame, error) {
	rows, err := r.db.Query(ctx, `
		SELECT g.game_id, ht.name, at.name
		FROM games g
		JOIN teams ht ON g.home_team_id = ht.team_id
		JOIN teams at ON g.away_team_id = at.team_id
		WHERE g.game_date = $1 AND g.status = 'scheduled'
		ORDER BY g.game_time
	`, date)
	if err != nil {
		return nil, fmt.Errorf("list games on %s: %w", date.Format("2006-01-02"), classify(err))
	}
	defer rows.Close()

	var games []models.ScheduledGame
	for rows.Next() {
		var g models.ScheduledGame
		if err := rows.Scan(&g.GameID, &g.HomeTeam, &g.AwayTeam); err != nil {
			return nil, fmt.Errorf("list games: %w", classify(err))
		}
		games = append(games, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list games: %w", classify(err))
	}
	return games, nil
}
