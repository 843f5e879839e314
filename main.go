package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/viper"

	"diamond-sim/logger"
	"diamond-sim/repository"
	"diamond-sim/simulation"
	"diamond-sim/weather"
)

// Config holds everything the process reads from the environment.
type Config struct {
	Port           string
	DBHost         string
	DBPort         string
	DBUser         string
	DBPassword     string
	DBName         string
	Workers        int
	SimulationRuns int
	WeatherAPIKey  string
	LogLevel       string
	Environment    string
}

// NewConfig reads configuration from the environment with defaults.
func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8081")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "baseball_user")
	v.SetDefault("DB_PASSWORD", "baseball_pass")
	v.SetDefault("DB_NAME", "baseball_sim")
	v.SetDefault("WORKERS", runtime.NumCPU())
	v.SetDefault("SIMULATION_RUNS", 1000)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("ENV", "production")

	return &Config{
		Port:           v.GetString("PORT"),
		DBHost:         v.GetString("DB_HOST"),
		DBPort:         v.GetString("DB_PORT"),
		DBUser:         v.GetString("DB_USER"),
		DBPassword:     v.GetString("DB_PASSWORD"),
		DBName:         v.GetString("DB_NAME"),
		Workers:        v.GetInt("WORKERS"),
		SimulationRuns: v.GetInt("SIMULATION_RUNS"),
		WeatherAPIKey:  v.GetString("OPENWEATHER_API_KEY"),
		LogLevel:       v.GetString("LOG_LEVEL"),
		Environment:    v.GetString("ENV"),
	}
}

func newDBPool(config *Config) (*pgxpool.Pool, error) {
	dbURL := fmt.Sprintf("postgresql://%s:%s@%s:%s/%s",
		config.DBUser, config.DBPassword, config.DBHost, config.DBPort, config.DBName)

	dbConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse db config: %w", err)
	}

	maxConns := config.Workers * 2
	if maxConns < 10 {
		maxConns = 10
	}
	dbConfig.MaxConns = int32(maxConns)
	dbConfig.MinConns = int32(config.Workers / 2)
	dbConfig.MaxConnLifetime = time.Hour
	dbConfig.MaxConnIdleTime = 30 * time.Minute

	db, err := pgxpool.NewWithConfig(context.Background(), dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func main() {
	config := NewConfig()
	log := logger.Init(config.LogLevel, config.Environment != "production")

	db, err := newDBPool(config)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}

	repo := repository.New(db, log)

	weatherService := weather.NewService(config.WeatherAPIKey, log)
	weatherService.StartCacheCleanup()
	if config.WeatherAPIKey != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := weatherService.ValidateAPIKey(ctx); err != nil {
			log.WithError(err).Warn("Weather API key validation failed, simulations will use default weather")
		} else {
			log.Info("Weather service initialized")
		}
		cancel()
	} else {
		log.Info("No OPENWEATHER_API_KEY configured, simulations will use default weather")
	}

	coordinator := simulation.NewCoordinator(repo, weatherService, config.Workers, log)
	coordinator.StartCleanup()

	server := NewServer(config, db, repo, coordinator, weatherService, log)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Info("Shutting down simulation engine")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.WithError(err).Error("HTTP server shutdown failed")
		}
		if err := coordinator.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("Coordinator did not drain before deadline")
		}
		weatherService.Close()
		db.Close()
		log.Info("Shutdown complete")
	}()

	log.WithFields(map[string]interface{}{
		"port":    config.Port,
		"workers": config.Workers,
	}).Info("Starting simulation engine")

	if err := server.Start(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("Server failed to start")
	}
}
