package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"diamond-sim/models"
	"diamond-sim/repository"
	"diamond-sim/simulation"
	"diamond-sim/weather"
)

// Server wires the HTTP control surface to the run coordinator.
type Server struct {
	db          *pgxpool.Pool
	repo        *repository.Repository
	coordinator *simulation.Coordinator
	weather     *weather.Service
	router      *mux.Router
	httpServer  *http.Server
	config      *Config
	log         *logrus.Logger
}

// SimulationRequest starts one run. SimulationRuns distinguishes absent
// (server default) from explicit zero (rejected). Config stays raw so
// large seeds are not rounded through float64.
type SimulationRequest struct {
	GameID         string          `json:"game_id"`
	SimulationRuns *int            `json:"simulation_runs,omitempty"`
	Config         json.RawMessage `json:"config,omitempty"`
}

// SimulationResponse acknowledges a started run.
type SimulationResponse struct {
	RunID     string    `json:"run_id"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// DailySimulationRequest starts one run per scheduled game on a date.
type DailySimulationRequest struct {
	Date           string          `json:"date,omitempty"` // YYYY-MM-DD, defaults to today
	SimulationRuns *int            `json:"simulation_runs,omitempty"`
	Config         json.RawMessage `json:"config,omitempty"`
}

// SimulationResult is the /result response shape: the aggregate enriched
// with the context the run was simulated under.
type SimulationResult struct {
	RunID                 string                               `json:"run_id"`
	GameID                string                               `json:"game_id"`
	HomeTeam              string                               `json:"home_team,omitempty"`
	AwayTeam              string                               `json:"away_team,omitempty"`
	TotalSimulations      int                                  `json:"total_simulations"`
	HomeWins              int                                  `json:"home_wins"`
	AwayWins              int                                  `json:"away_wins"`
	Ties                  int                                  `json:"ties"`
	HomeWinProbability    float64                              `json:"home_win_probability"`
	AwayWinProbability    float64                              `json:"away_win_probability"`
	TieProbability        float64                              `json:"tie_probability"`
	ExpectedHomeScore     float64                              `json:"expected_home_score"`
	ExpectedAwayScore     float64                              `json:"expected_away_score"`
	HomeScoreDistribution map[int]int                          `json:"home_score_distribution"`
	AwayScoreDistribution map[int]int                          `json:"away_score_distribution"`
	OverUnder             map[string]float64                   `json:"total_score_over_under,omitempty"`
	PlayerBatting         map[string]*models.BattingAverages   `json:"player_batting,omitempty"`
	PlayerPitching        map[string]*models.PitchingAverages  `json:"player_pitching,omitempty"`
	HighLeverageEvents    []models.GameEvent                   `json:"high_leverage_events,omitempty"`
	Weather               *models.Weather                      `json:"weather,omitempty"`
	ParkFactors           *models.ParkFactors                  `json:"park_factors,omitempty"`
	Umpire                *models.Umpire                       `json:"umpire,omitempty"`
	Metadata              map[string]interface{}               `json:"metadata,omitempty"`
}

// NewServer builds the router and handler set.
func NewServer(config *Config, db *pgxpool.Pool, repo *repository.Repository, coordinator *simulation.Coordinator, weatherSvc *weather.Service, log *logrus.Logger) *Server {
	s := &Server{
		db:          db,
		repo:        repo,
		coordinator: coordinator,
		weather:     weatherSvc,
		router:      mux.NewRouter(),
		config:      config,
		log:         log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.healthHandler).Methods("GET")

	s.router.HandleFunc("/simulate", s.simulateHandler).Methods("POST")
	s.router.HandleFunc("/simulation/{id}/status", s.simulationStatusHandler).Methods("GET")
	s.router.HandleFunc("/simulation/{id}/result", s.simulationResultHandler).Methods("GET")
	s.router.HandleFunc("/simulate/daily", s.simulateDailyHandler).Methods("POST")

	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.recoveryMiddleware)
}

// Start begins serving. Write timeout is long because daily batches do
// synchronous store work before responding.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      corsHandler(s.router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown stops the HTTP listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":   "healthy",
		"time":     time.Now().UTC(),
		"workers":  s.config.Workers,
		"database": "connected",
	}
	if s.weather != nil {
		health["weather_cache"] = s.weather.GetCacheStats()
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.repo.Ping(ctx); err != nil {
		health["database"] = "disconnected"
		health["status"] = "unhealthy"
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	s.writeJSON(w, health)
}

func (s *Server) simulateHandler(w http.ResponseWriter, r *http.Request) {
	var req SimulationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.GameID == "" {
		s.writeError(w, http.StatusBadRequest, "game_id is required")
		return
	}

	totalRuns := s.config.SimulationRuns
	if req.SimulationRuns != nil {
		if *req.SimulationRuns < 1 {
			s.writeError(w, http.StatusBadRequest, "simulation_runs must be positive")
			return
		}
		totalRuns = *req.SimulationRuns
	}

	runID, err := s.coordinator.Launch(r.Context(), req.GameID, totalRuns, req.Config)
	if err != nil {
		s.writeRepoError(w, err)
		return
	}

	s.writeJSON(w, SimulationResponse{
		RunID:     runID,
		Status:    "started",
		CreatedAt: time.Now().UTC(),
	})
}

func (s *Server) simulationStatusHandler(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]

	status, err := s.coordinator.GetStatus(r.Context(), runID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "Simulation not found")
			return
		}
		s.writeRepoError(w, err)
		return
	}
	s.writeJSON(w, status)
}

func (s *Server) simulationResultHandler(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]

	result, err := s.coordinator.GetResult(r.Context(), runID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "Simulation not found")
			return
		}
		if errors.Is(err, repository.ErrDataCorrupt) || errors.Is(err, repository.ErrUnavailable) {
			s.writeRepoError(w, err)
			return
		}
		s.log.WithError(err).WithField("run_id", runID).Error("Failed to load simulation result")
		s.writeError(w, http.StatusInternalServerError, "Results not available")
		return
	}

	switch result.Run.Status {
	case models.StatusCompleted:
	case models.StatusError:
		s.writeError(w, http.StatusInternalServerError, "Simulation failed")
		return
	default:
		s.writeError(w, http.StatusAccepted, "Simulation not yet complete")
		return
	}

	agg := result.Aggregate
	resp := SimulationResult{
		RunID:                 agg.RunID,
		GameID:                result.Run.GameID,
		TotalSimulations:      agg.TotalSimulations,
		HomeWins:              agg.HomeWins,
		AwayWins:              agg.AwayWins,
		Ties:                  agg.Ties,
		HomeWinProbability:    agg.HomeWinProbability,
		AwayWinProbability:    agg.AwayWinProbability,
		TieProbability:        agg.TieProbability,
		ExpectedHomeScore:     agg.ExpectedHomeScore,
		ExpectedAwayScore:     agg.ExpectedAwayScore,
		HomeScoreDistribution: agg.HomeScoreDistribution,
		AwayScoreDistribution: agg.AwayScoreDistribution,
		OverUnder:             agg.OverUnder,
		PlayerBatting:         agg.PlayerBatting,
		PlayerPitching:        agg.PlayerPitching,
		HighLeverageEvents:    agg.HighLeverageEvents,
		Metadata: map[string]interface{}{
			"average_game_duration": agg.AverageGameDuration,
			"average_pitches":       agg.AveragePitches,
			"errored_trials":        agg.ErroredTrials,
			"statistics":            agg.Statistics,
		},
	}

	if gc := result.Context; gc != nil {
		resp.HomeTeam = gc.HomeTeamName
		resp.AwayTeam = gc.AwayTeamName
		resp.Weather = &gc.Weather
		resp.ParkFactors = &gc.Stadium.Factors
		resp.Umpire = &gc.Umpire
		resp.Metadata["stadium"] = map[string]interface{}{
			"name":     gc.Stadium.Name,
			"altitude": gc.Stadium.Altitude,
			"roof":     gc.Stadium.RoofType,
		}
	}

	s.writeJSON(w, resp)
}

func (s *Server) simulateDailyHandler(w http.ResponseWriter, r *http.Request) {
	var req DailySimulationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// Empty body means defaults.
		req = DailySimulationRequest{}
	}

	targetDate := time.Now()
	if req.Date != "" {
		var err error
		targetDate, err = time.Parse("2006-01-02", req.Date)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "Invalid date format, use YYYY-MM-DD")
			return
		}
	}

	totalRuns := s.config.SimulationRuns
	if req.SimulationRuns != nil {
		if *req.SimulationRuns < 1 {
			s.writeError(w, http.StatusBadRequest, "simulation_runs must be positive")
			return
		}
		totalRuns = *req.SimulationRuns
	}

	batch, err := s.coordinator.StartDaily(r.Context(), targetDate, totalRuns, req.Config)
	if err != nil {
		s.writeRepoError(w, err)
		return
	}
	s.writeJSON(w, batch)
}

// writeRepoError maps the repository error taxonomy to HTTP codes.
// DataCorrupt reads as NotFound to clients; the detail stays in the logs.
func (s *Server) writeRepoError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "Game not found")
	case errors.Is(err, repository.ErrConflict):
		s.writeError(w, http.StatusConflict, "Simulation run already exists")
	case errors.Is(err, repository.ErrDataCorrupt):
		s.log.WithError(err).Error("Corrupt record encountered")
		s.writeError(w, http.StatusNotFound, "Game not found")
	case errors.Is(err, repository.ErrUnavailable):
		s.writeError(w, http.StatusServiceUnavailable, "Data store unavailable")
	default:
		s.log.WithError(err).Error("Unhandled error")
		s.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.WithError(err).Error("Error encoding JSON response")
	}
}
