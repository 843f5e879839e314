package simulation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"diamond-sim/models"
	"diamond-sim/repository"
)

const (
	// flushThreshold is the write-behind buffer size that forces a flush.
	flushThreshold = 100

	// flushInterval flushes a partially filled buffer.
	flushInterval = time.Second

	// runRetention is how long terminal runs stay in the in-memory
	// registry before cleanup.
	runRetention = 24 * time.Hour
)

// retrySchedule is the backoff applied to transient store write failures.
var retrySchedule = []time.Duration{100 * time.Millisecond, 400 * time.Millisecond, 1600 * time.Millisecond}

// Store is the persistence surface the coordinator drives.
type Store interface {
	LoadGame(ctx context.Context, gameID string) (*models.GameContext, error)
	LoadRoster(ctx context.Context, teamID string) (*models.Roster, error)
	GameExists(ctx context.Context, gameID string) (bool, error)
	CreateRun(ctx context.Context, runID, gameID string, config json.RawMessage, totalRuns int) error
	UpdateRunStatus(ctx context.Context, runID, status string, completedRuns int) error
	UpdateRunProgress(ctx context.Context, runID string, completedRuns int) error
	PersistTrialResults(ctx context.Context, results []models.TrialResult) error
	PersistAggregate(ctx context.Context, agg *models.AggregatedResult) error
	GetRun(ctx context.Context, runID string) (*models.Run, error)
	GetAggregate(ctx context.Context, runID string) (*models.AggregatedResult, error)
	ListScheduledGames(ctx context.Context, date time.Time) ([]models.ScheduledGame, error)
}

// Forecaster resolves game-time weather. Implementations fall back to
// defaults internally; the coordinator still defends against errors.
type Forecaster interface {
	GetWeatherForGame(ctx context.Context, stadium models.Stadium, gameTime time.Time) (models.Weather, error)
}

// RunConfig is the per-run tuning block accepted on the start endpoints.
// Unknown keys in the raw config are ignored.
type RunConfig struct {
	TrialCapInnings    int
	ErrorRateTolerance float64
	PersistTrials      bool
	Seed               int64
}

// ParseRunConfig applies defaults and reads recognized keys from the raw
// config block. Unknown keys and malformed values are ignored. The seed is
// decoded as json.Number so the full 64-bit range survives; a float64
// round-trip would silently drop bits above 2^53.
func ParseRunConfig(raw json.RawMessage) RunConfig {
	cfg := RunConfig{
		TrialCapInnings:    models.DefaultTrialCapInnings,
		ErrorRateTolerance: 0.10,
		PersistTrials:      true,
		Seed:               time.Now().UnixNano(),
	}
	if len(raw) == 0 {
		return cfg
	}

	var body struct {
		TrialCapInnings    *float64    `json:"trial_cap_innings"`
		ErrorRateTolerance *float64    `json:"error_rate_tolerance"`
		PersistTrials      *bool       `json:"persist_trials"`
		Seed               json.Number `json:"seed"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return cfg
	}

	if body.TrialCapInnings != nil && *body.TrialCapInnings >= 9 {
		cfg.TrialCapInnings = int(*body.TrialCapInnings)
	}
	if body.ErrorRateTolerance != nil && *body.ErrorRateTolerance >= 0 && *body.ErrorRateTolerance <= 1 {
		cfg.ErrorRateTolerance = *body.ErrorRateTolerance
	}
	if body.PersistTrials != nil {
		cfg.PersistTrials = *body.PersistTrials
	}
	if body.Seed != "" {
		if i, err := body.Seed.Int64(); err == nil {
			cfg.Seed = i
		} else if u, err := strconv.ParseUint(body.Seed.String(), 10, 64); err == nil {
			cfg.Seed = int64(u)
		}
	}
	return cfg
}

// StatusSnapshot is a point-in-time view of a run's progress.
type StatusSnapshot struct {
	RunID         string     `json:"run_id"`
	GameID        string     `json:"game_id"`
	Status        string     `json:"status"`
	TotalRuns     int        `json:"total_runs"`
	CompletedRuns int        `json:"completed_runs"`
	Progress      float64    `json:"progress"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// Result pairs a run's aggregate with the game context it was simulated
// under. Aggregate is nil while the run is still in flight.
type Result struct {
	Run       *models.Run
	Aggregate *models.AggregatedResult
	Context   *models.GameContext
}

// DailySimulation describes one game's entry in a daily batch.
type DailySimulation struct {
	GameID   string `json:"game_id"`
	HomeTeam string `json:"home_team,omitempty"`
	AwayTeam string `json:"away_team,omitempty"`
	RunID    string `json:"run_id,omitempty"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

// DailyBatch is the response for a start-daily request.
type DailyBatch struct {
	Date        string            `json:"date"`
	GamesCount  int               `json:"games_count"`
	Simulations []DailySimulation `json:"simulations"`
}

// runState is the in-memory registry entry for one run.
type runState struct {
	runID     string
	gameID    string
	totalRuns int
	completed atomic.Int64
	createdAt time.Time

	mu          sync.Mutex
	status      string
	completedAt *time.Time
	gameCtx     *models.GameContext
	aggregate   *models.AggregatedResult
}

func (rs *runState) setStatus(status string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if !models.ValidTransition(rs.status, status) {
		return
	}
	rs.status = status
	if status == models.StatusCompleted || status == models.StatusError {
		now := time.Now().UTC()
		rs.completedAt = &now
	}
}

func (rs *runState) snapshot() StatusSnapshot {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	completed := int(rs.completed.Load())
	progress := 0.0
	if rs.totalRuns > 0 {
		progress = float64(completed) / float64(rs.totalRuns)
	}
	return StatusSnapshot{
		RunID:         rs.runID,
		GameID:        rs.gameID,
		Status:        rs.status,
		TotalRuns:     rs.totalRuns,
		CompletedRuns: completed,
		Progress:      progress,
		CreatedAt:     rs.createdAt,
		CompletedAt:   rs.completedAt,
	}
}

// Coordinator fans runs out over a fixed worker pool and owns the
// in-memory run registry.
type Coordinator struct {
	store      Store
	forecaster Forecaster
	driver     *Driver
	log        *logrus.Logger
	workers    int

	mu   sync.RWMutex
	runs map[string]*runState

	wg   sync.WaitGroup
	done chan struct{}
	once sync.Once
}

// NewCoordinator creates a coordinator with the given worker pool size.
func NewCoordinator(store Store, forecaster Forecaster, workers int, log *logrus.Logger) *Coordinator {
	if workers < 1 {
		workers = 1
	}
	return &Coordinator{
		store:      store,
		forecaster: forecaster,
		driver:     NewDriver(NewSampler()),
		log:        log,
		workers:    workers,
		runs:       make(map[string]*runState),
		done:       make(chan struct{}),
	}
}

// Launch creates a pending run for the game and starts it. Returns the
// new run ID.
func (c *Coordinator) Launch(ctx context.Context, gameID string, totalTrials int, config json.RawMessage) (string, error) {
	exists, err := c.store.GameExists(ctx, gameID)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fmt.Errorf("game %s: %w", gameID, repository.ErrNotFound)
	}

	rawConfig := config
	if len(rawConfig) == 0 {
		rawConfig = json.RawMessage("{}")
	}

	runID := uuid.New().String()
	if err := c.store.CreateRun(ctx, runID, gameID, rawConfig, totalTrials); err != nil {
		return "", err
	}
	if err := c.Start(ctx, runID, gameID, totalTrials, config); err != nil {
		return "", err
	}
	return runID, nil
}

// Start transitions a pending run to running, loads its context and spawns
// the worker pool. Returns once the run loop is launched.
func (c *Coordinator) Start(ctx context.Context, runID, gameID string, totalTrials int, config json.RawMessage) error {
	cfg := ParseRunConfig(config)

	// Transition first so a duplicate Start on the same run fails fast.
	if err := c.store.UpdateRunStatus(ctx, runID, models.StatusRunning, 0); err != nil {
		return err
	}

	gc, home, away, err := c.loadContext(ctx, gameID)
	if err != nil {
		c.markError(runID, nil, 0)
		return err
	}

	rs := &runState{
		runID:     runID,
		gameID:    gameID,
		totalRuns: totalTrials,
		createdAt: time.Now().UTC(),
		status:    models.StatusRunning,
		gameCtx:   gc,
	}
	c.mu.Lock()
	c.runs[runID] = rs
	c.mu.Unlock()

	c.log.WithFields(logrus.Fields{
		"run_id":  runID,
		"game_id": gameID,
		"trials":  totalTrials,
		"workers": c.workers,
	}).Info("Starting simulation run")

	c.wg.Add(1)
	go c.runLoop(rs, gc, home, away, cfg)
	return nil
}

func (c *Coordinator) loadContext(ctx context.Context, gameID string) (*models.GameContext, *models.Roster, *models.Roster, error) {
	gc, err := c.store.LoadGame(ctx, gameID)
	if err != nil {
		return nil, nil, nil, err
	}

	home, err := c.store.LoadRoster(ctx, gc.HomeTeamID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("home roster: %w", err)
	}
	away, err := c.store.LoadRoster(ctx, gc.AwayTeamID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("away roster: %w", err)
	}

	weather, err := c.forecaster.GetWeatherForGame(ctx, gc.Stadium, gc.StartTime)
	if err != nil {
		c.log.WithError(err).WithField("game_id", gameID).Warn("Weather lookup failed, using defaults")
		weather = models.DefaultConditions()
	}
	gc.Weather = weather

	return gc, home, away, nil
}

// runLoop drives one run to completion. Runs detached; shutdown is
// cooperative through the coordinator's done channel.
func (c *Coordinator) runLoop(rs *runState, gc *models.GameContext, home, away *models.Roster, cfg RunConfig) {
	defer c.wg.Done()

	trials := make(chan int, c.workers)
	results := make(chan models.TrialResult, c.workers*4)

	// Trial numbers are assigned on enqueue so the (run, trial) key is
	// stable no matter which worker finishes first.
	go func() {
		defer close(trials)
		for i := 1; i <= rs.totalRuns; i++ {
			select {
			case trials <- i:
			case <-c.done:
				return
			}
		}
	}()

	var workerWG sync.WaitGroup
	for w := 0; w < c.workers; w++ {
		workerWG.Add(1)
		go func() {
			defer workerWG.Done()
			for trial := range trials {
				results <- c.runTrial(rs.runID, trial, gc, home, away, cfg)
			}
		}()
	}
	go func() {
		workerWG.Wait()
		close(results)
	}()

	acc, ok := c.collectResults(rs, cfg, results)
	if !ok {
		return
	}
	completed := int(rs.completed.Load())

	if tolerance := cfg.ErrorRateTolerance; float64(acc.ErroredTrials()) > tolerance*float64(rs.totalRuns) {
		c.log.WithFields(logrus.Fields{
			"run_id":  rs.runID,
			"errored": acc.ErroredTrials(),
			"total":   rs.totalRuns,
		}).Error("Errored trial rate over tolerance")
		c.markError(rs.runID, rs, completed)
		return
	}

	agg := acc.Finalize(rs.runID)
	if err := c.withRetry(func() error {
		return c.store.PersistAggregate(context.Background(), agg)
	}); err != nil {
		c.log.WithError(err).WithField("run_id", rs.runID).Error("Aggregate persistence failed after retries")
		c.markError(rs.runID, rs, completed)
		return
	}

	if err := c.store.UpdateRunStatus(context.Background(), rs.runID, models.StatusCompleted, completed); err != nil {
		c.log.WithError(err).WithField("run_id", rs.runID).Error("Failed to mark run completed")
		c.markError(rs.runID, rs, completed)
		return
	}

	rs.mu.Lock()
	rs.aggregate = agg
	rs.mu.Unlock()
	rs.setStatus(models.StatusCompleted)

	c.log.WithFields(logrus.Fields{
		"run_id":    rs.runID,
		"trials":    completed,
		"home_wins": agg.HomeWins,
		"away_wins": agg.AwayWins,
	}).Info("Simulation run completed")
}

// collectResults owns the write-behind buffer: it accumulates worker
// results and flushes every flushThreshold trials or flushInterval,
// whichever comes first, so buffered trials never outlive the interval
// when the results stream stalls. Returns false when the run should not
// be finalized (persistence failure or shutdown interruption).
func (c *Coordinator) collectResults(rs *runState, cfg RunConfig, results <-chan models.TrialResult) (*Accumulator, bool) {
	acc := NewAccumulator()
	buffer := make([]models.TrialResult, 0, flushThreshold)
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	flush := func() bool {
		if len(buffer) == 0 {
			return true
		}
		batch := buffer
		buffer = make([]models.TrialResult, 0, flushThreshold)
		if err := c.withRetry(func() error {
			return c.store.PersistTrialResults(context.Background(), batch)
		}); err != nil {
			c.log.WithError(err).WithField("run_id", rs.runID).Error("Trial persistence failed after retries")
			return false
		}
		c.store.UpdateRunProgress(context.Background(), rs.runID, int(rs.completed.Load()))
		return true
	}

collect:
	for {
		select {
		case res, open := <-results:
			if !open {
				break collect
			}
			acc.Add(&res)
			rs.completed.Add(1)

			if cfg.PersistTrials {
				buffer = append(buffer, res)
				if len(buffer) >= flushThreshold && !flush() {
					c.markError(rs.runID, rs, int(rs.completed.Load()))
					c.drain(results)
					return acc, false
				}
			}
		case <-ticker.C:
			if cfg.PersistTrials && !flush() {
				c.markError(rs.runID, rs, int(rs.completed.Load()))
				c.drain(results)
				return acc, false
			}
		}
	}

	completed := int(rs.completed.Load())
	if completed < rs.totalRuns {
		// Shutdown interrupted the run; leave it running for a recovery
		// pass on next start.
		c.log.WithFields(logrus.Fields{
			"run_id":    rs.runID,
			"completed": completed,
			"total":     rs.totalRuns,
		}).Warn("Run interrupted before completion")
		if cfg.PersistTrials {
			flush()
		}
		return acc, false
	}

	if cfg.PersistTrials && !flush() {
		c.markError(rs.runID, rs, completed)
		return acc, false
	}
	return acc, true
}

// runTrial plays one trial, converting a panic into an errored tie so a
// bad trial never takes the run down.
func (c *Coordinator) runTrial(runID string, trial int, gc *models.GameContext, home, away *models.Roster, cfg RunConfig) (res models.TrialResult) {
	defer func() {
		if r := recover(); r != nil {
			c.log.WithFields(logrus.Fields{
				"run_id": runID,
				"trial":  trial,
				"panic":  fmt.Sprint(r),
			}).Error("Trial panicked")
			res = models.TrialResult{
				RunID:       runID,
				TrialNumber: trial,
				Winner:      models.WinnerTie,
				FinalInning: 9,
				Errored:     true,
				CreatedAt:   time.Now().UTC(),
			}
		}
	}()

	// Seeding by trial number keeps runs replayable no matter how trials
	// land on workers.
	rng := rand.New(rand.NewSource(cfg.Seed + int64(trial)))
	return c.driver.PlayTrial(rng, gc, home, away, cfg.TrialCapInnings, runID, trial)
}

func (c *Coordinator) drain(results <-chan models.TrialResult) {
	for range results {
	}
}

func (c *Coordinator) withRetry(op func() error) error {
	err := op()
	for _, delay := range retrySchedule {
		if err == nil {
			return nil
		}
		time.Sleep(delay)
		err = op()
	}
	return err
}

func (c *Coordinator) markError(runID string, rs *runState, completed int) {
	if err := c.store.UpdateRunStatus(context.Background(), runID, models.StatusError, completed); err != nil {
		c.log.WithError(err).WithField("run_id", runID).Error("Failed to mark run errored")
	}
	if rs != nil {
		rs.setStatus(models.StatusError)
	}
}

// GetStatus returns a run's progress, from memory when the run is live and
// from the store otherwise.
func (c *Coordinator) GetStatus(ctx context.Context, runID string) (*StatusSnapshot, error) {
	c.mu.RLock()
	rs, ok := c.runs[runID]
	c.mu.RUnlock()
	if ok {
		snap := rs.snapshot()
		return &snap, nil
	}

	run, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	progress := 0.0
	if run.TotalRuns > 0 {
		progress = float64(run.CompletedRuns) / float64(run.TotalRuns)
	}
	return &StatusSnapshot{
		RunID:         run.RunID,
		GameID:        run.GameID,
		Status:        run.Status,
		TotalRuns:     run.TotalRuns,
		CompletedRuns: run.CompletedRuns,
		Progress:      progress,
		CreatedAt:     run.CreatedAt,
		CompletedAt:   run.CompletedAt,
	}, nil
}

// GetResult returns a run's aggregate enriched with game context. The
// aggregate is nil until the run completes; a completed run with no
// persisted aggregate is an internal inconsistency surfaced to the caller.
func (c *Coordinator) GetResult(ctx context.Context, runID string) (*Result, error) {
	run, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	result := &Result{Run: run}

	c.mu.RLock()
	rs, live := c.runs[runID]
	c.mu.RUnlock()
	if live {
		rs.mu.Lock()
		result.Aggregate = rs.aggregate
		result.Context = rs.gameCtx
		rs.mu.Unlock()
	}

	if run.Status != models.StatusCompleted {
		return result, nil
	}

	if result.Aggregate == nil {
		agg, err := c.store.GetAggregate(ctx, runID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("run %s completed but aggregate missing", runID)
			}
			return nil, err
		}
		result.Aggregate = agg
	}

	if result.Context == nil {
		gc, err := c.store.LoadGame(ctx, run.GameID)
		if err == nil {
			if weather, werr := c.forecaster.GetWeatherForGame(ctx, gc.Stadium, gc.StartTime); werr == nil {
				gc.Weather = weather
			} else {
				gc.Weather = models.DefaultConditions()
			}
			result.Context = gc
		}
	}

	return result, nil
}

// StartDaily launches one run per game scheduled on the date. Individual
// failures are reported per game; the batch itself only fails when the
// slate cannot be listed.
func (c *Coordinator) StartDaily(ctx context.Context, date time.Time, totalTrials int, config json.RawMessage) (*DailyBatch, error) {
	games, err := c.store.ListScheduledGames(ctx, date)
	if err != nil {
		return nil, err
	}

	batch := &DailyBatch{
		Date:        date.Format("2006-01-02"),
		GamesCount:  len(games),
		Simulations: make([]DailySimulation, 0, len(games)),
	}

	for _, game := range games {
		sim := DailySimulation{
			GameID:   game.GameID,
			HomeTeam: game.HomeTeam,
			AwayTeam: game.AwayTeam,
		}
		runID, err := c.Launch(ctx, game.GameID, totalTrials, config)
		if err != nil {
			sim.Status = models.StatusError
			sim.Error = err.Error()
			c.log.WithError(err).WithField("game_id", game.GameID).Error("Failed to start daily simulation")
		} else {
			sim.RunID = runID
			sim.Status = "started"
		}
		batch.Simulations = append(batch.Simulations, sim)
	}

	return batch, nil
}

// CleanupOldRuns drops terminal registry entries older than the retention
// window. The store remains the source of truth for them.
func (c *Coordinator) CleanupOldRuns() {
	cutoff := time.Now().Add(-runRetention)

	c.mu.Lock()
	defer c.mu.Unlock()
	for id, rs := range c.runs {
		rs.mu.Lock()
		terminal := rs.status == models.StatusCompleted || rs.status == models.StatusError
		old := rs.completedAt != nil && rs.completedAt.Before(cutoff)
		rs.mu.Unlock()
		if terminal && old {
			delete(c.runs, id)
		}
	}
}

// StartCleanup launches the hourly registry sweeper. Shutdown stops it.
func (c *Coordinator) StartCleanup() {
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.CleanupOldRuns()
			case <-c.done:
				return
			}
		}
	}()
}

// Shutdown stops queueing new trials and waits for in-flight runs to
// drain, up to the context deadline.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.once.Do(func() { close(c.done) })

	drained := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
