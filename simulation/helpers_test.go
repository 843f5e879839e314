package simulation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"diamond-sim/models"
	"diamond-sim/repository"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testRoster(teamID string, bats string) *models.Roster {
	positions := []string{"C", "1B", "2B", "3B", "SS", "LF", "CF", "RF", "OF"}
	lineup := make([]models.Player, models.LineupSize)
	for i, pos := range positions {
		lineup[i] = models.Player{
			ID:       fmt.Sprintf("%s-b%d", teamID, i+1),
			Name:     fmt.Sprintf("%s Batter %d", teamID, i+1),
			Position: pos,
			TeamID:   teamID,
			Bats:     bats,
			Role:     models.RoleBatter,
			Batting:  models.LeagueAverageRates(),
		}
	}
	return &models.Roster{
		TeamID: teamID,
		Lineup: lineup,
		StartingPitcher: models.Player{
			ID:       teamID + "-sp",
			Name:     teamID + " Starter",
			Position: "P",
			TeamID:   teamID,
			Throws:   "R",
			Role:     models.RolePitcher,
			Pitching: models.LeagueAveragePitching(),
		},
	}
}

func testGameContext(gameID string) *models.GameContext {
	return &models.GameContext{
		GameID:       gameID,
		HomeTeamID:   "HOME",
		AwayTeamID:   "AWAY",
		HomeTeamName: "Home Nine",
		AwayTeamName: "Away Nine",
		Stadium: models.Stadium{
			ID:       "PARK",
			Name:     "Test Park",
			RoofType: models.RoofOpen,
			Factors:  models.DefaultParkFactors(),
		},
		Umpire: models.Umpire{
			ID:         "UMP",
			Name:       "Test Umpire",
			Tendencies: models.DefaultUmpireTendencies(),
		},
		StartTime: time.Now(),
		Weather:   models.DefaultConditions(),
	}
}

// memStore is an in-memory Store for coordinator tests.
type memStore struct {
	mu         sync.Mutex
	games      map[string]*models.GameContext
	rosters    map[string]*models.Roster
	runs       map[string]*models.Run
	trials     map[string]map[int]models.TrialResult
	aggregates map[string]*models.AggregatedResult
	scheduled  map[string][]models.ScheduledGame
}

func newMemStore() *memStore {
	return &memStore{
		games:      make(map[string]*models.GameContext),
		rosters:    make(map[string]*models.Roster),
		runs:       make(map[string]*models.Run),
		trials:     make(map[string]map[int]models.TrialResult),
		aggregates: make(map[string]*models.AggregatedResult),
		scheduled:  make(map[string][]models.ScheduledGame),
	}
}

func (m *memStore) addGame(gc *models.GameContext, home, away *models.Roster) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games[gc.GameID] = gc
	m.rosters[gc.HomeTeamID] = home
	m.rosters[gc.AwayTeamID] = away
}

func (m *memStore) LoadGame(ctx context.Context, gameID string) (*models.GameContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	gc, ok := m.games[gameID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *gc
	return &clone, nil
}

func (m *memStore) LoadRoster(ctx context.Context, teamID string) (*models.Roster, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rosters[teamID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r, nil
}

func (m *memStore) GameExists(ctx context.Context, gameID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.games[gameID]
	return ok, nil
}

func (m *memStore) CreateRun(ctx context.Context, runID, gameID string, config json.RawMessage, totalRuns int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.runs[runID]; exists {
		return repository.ErrConflict
	}
	if _, ok := m.games[gameID]; !ok {
		return repository.ErrNotFound
	}
	m.runs[runID] = &models.Run{
		RunID:     runID,
		GameID:    gameID,
		Status:    models.StatusPending,
		TotalRuns: totalRuns,
		CreatedAt: time.Now().UTC(),
	}
	return nil
}

func (m *memStore) UpdateRunStatus(ctx context.Context, runID, status string, completedRuns int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return repository.ErrNotFound
	}
	if !models.ValidTransition(run.Status, status) {
		return repository.ErrConflict
	}
	run.Status = status
	if completedRuns >= 0 {
		run.CompletedRuns = completedRuns
	}
	if status == models.StatusCompleted || status == models.StatusError {
		now := time.Now().UTC()
		run.CompletedAt = &now
	}
	return nil
}

func (m *memStore) UpdateRunProgress(ctx context.Context, runID string, completedRuns int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run, ok := m.runs[runID]; ok && run.Status == models.StatusRunning {
		run.CompletedRuns = completedRuns
	}
	return nil
}

func (m *memStore) PersistTrialResults(ctx context.Context, results []models.TrialResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, res := range results {
		byTrial := m.trials[res.RunID]
		if byTrial == nil {
			byTrial = make(map[int]models.TrialResult)
			m.trials[res.RunID] = byTrial
		}
		if _, exists := byTrial[res.TrialNumber]; exists {
			continue
		}
		byTrial[res.TrialNumber] = res
	}
	return nil
}

func (m *memStore) PersistAggregate(ctx context.Context, agg *models.AggregatedResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aggregates[agg.RunID] = agg
	return nil
}

func (m *memStore) GetRun(ctx context.Context, runID string) (*models.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *run
	return &clone, nil
}

func (m *memStore) GetAggregate(ctx context.Context, runID string) (*models.AggregatedResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	agg, ok := m.aggregates[runID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return agg, nil
}

func (m *memStore) ListScheduledGames(ctx context.Context, date time.Time) ([]models.ScheduledGame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scheduled[date.Format("2006-01-02")], nil
}

func (m *memStore) trialCount(runID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.trials[runID])
}

// fixedForecaster returns the same conditions for every lookup.
type fixedForecaster struct {
	weather models.Weather
}

func (f *fixedForecaster) GetWeatherForGame(ctx context.Context, stadium models.Stadium, gameTime time.Time) (models.Weather, error) {
	return f.weather, nil
}
