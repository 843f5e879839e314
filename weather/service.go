package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"diamond-sim/models"
)

const (
	// OpenWeatherMap 5-day forecast endpoint
	openWeatherAPIURL = "https://api.openweathermap.org/data/2.5/forecast"

	// Cache duration for weather forecasts
	cacheDuration = 30 * time.Minute

	// Timeout for upstream requests
	requestTimeout = 10 * time.Second

	// Sweep interval for expired cache entries
	sweepInterval = 15 * time.Minute
)

// Service fetches game-time forecasts with a time-bucketed cache, an
// upstream circuit breaker and default-on-failure semantics. Failures never
// propagate to callers; they fall through to seasonal defaults.
type Service struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	log        *logrus.Logger

	cache *forecastCache
	stop  chan struct{}
	once  sync.Once
}

type forecastCache struct {
	mu   sync.RWMutex
	data map[string]*cachedForecast
}

type cachedForecast struct {
	weather   models.Weather
	expiresAt time.Time
}

// openWeatherEntry is one 3-hour forecast slot.
type openWeatherEntry struct {
	Dt   int64 `json:"dt"`
	Main struct {
		Temp     float64 `json:"temp"`
		Pressure float64 `json:"pressure"`
		Humidity int     `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
		Deg   int     `json:"deg"`
	} `json:"wind"`
}

// openWeatherResponse is the subset of the forecast payload the service
// reads.
type openWeatherResponse struct {
	List []openWeatherEntry `json:"list"`
}

// NewService creates a weather service. An empty API key is allowed; every
// lookup then resolves to seasonal defaults.
func NewService(apiKey string, log *logrus.Logger) *Service {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "openweather",
		Timeout: 60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Weather circuit breaker state change")
		},
	})

	return &Service{
		apiKey:  apiKey,
		baseURL: openWeatherAPIURL,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		breaker: breaker,
		log:     log,
		cache: &forecastCache{
			data: make(map[string]*cachedForecast),
		},
		stop: make(chan struct{}),
	}
}

// GetWeatherForGame resolves conditions for a game. Indoor parks get
// controlled conditions; parks without coordinates and all fetch failures
// get seasonal defaults. The returned error is always nil; the signature
// keeps room for future policies that do surface failures.
func (s *Service) GetWeatherForGame(ctx context.Context, stadium models.Stadium, gameTime time.Time) (models.Weather, error) {
	if stadium.IsIndoor() {
		s.log.WithField("stadium", stadium.Name).Debug("Indoor park, using controlled conditions")
		return controlledConditions(), nil
	}

	if !stadium.HasCoordinates() {
		s.log.WithField("stadium", stadium.Name).Warn("No coordinates for stadium, using default weather")
		return s.defaultWeather(stadium), nil
	}

	cacheKey := cacheKey(stadium, gameTime)
	if cached, ok := s.getCachedForecast(cacheKey); ok {
		return cached, nil
	}

	weather, err := s.fetchForecast(ctx, stadium, gameTime)
	if err != nil {
		s.log.WithError(err).WithField("stadium", stadium.Name).Warn("Forecast fetch failed, using default weather")
		return s.defaultWeather(stadium), nil
	}

	s.cacheForecast(cacheKey, weather)
	return weather, nil
}

// controlledConditions are the fixed conditions under a closed roof.
func controlledConditions() models.Weather {
	return models.Weather{
		Temperature: 72,
		WindSpeed:   0,
		WindDir:     "calm",
		Humidity:    50,
		Pressure:    29.92,
	}
}

// defaultWeather returns seasonal outdoor conditions for when no forecast
// is available.
func (s *Service) defaultWeather(stadium models.Stadium) models.Weather {
	month := time.Now().Month()

	temp := 72
	if month >= time.April && month <= time.September {
		temp = 75
	} else {
		temp = 55
	}

	// Pressure drops roughly 1 inHg per 1000 feet.
	pressure := 29.92
	if stadium.Altitude > 0 {
		pressure -= float64(stadium.Altitude) / 1000.0
	}

	return models.Weather{
		Temperature: temp,
		WindSpeed:   8,
		WindDir:     "varies",
		Humidity:    55,
		Pressure:    pressure,
	}
}

// fetchForecast calls the upstream API through the circuit breaker.
func (s *Service) fetchForecast(ctx context.Context, stadium models.Stadium, gameTime time.Time) (models.Weather, error) {
	if s.apiKey == "" {
		return models.Weather{}, fmt.Errorf("weather API key not configured")
	}

	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.doFetch(ctx, stadium, gameTime)
	})
	if err != nil {
		return models.Weather{}, err
	}
	return result.(models.Weather), nil
}

func (s *Service) doFetch(ctx context.Context, stadium models.Stadium, gameTime time.Time) (models.Weather, error) {
	params := url.Values{}
	params.Add("lat", fmt.Sprintf("%.4f", stadium.Latitude))
	params.Add("lon", fmt.Sprintf("%.4f", stadium.Longitude))
	params.Add("appid", s.apiKey)
	params.Add("units", "imperial")
	params.Add("cnt", "40") // 5 days of 3-hour slots

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return models.Weather{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return models.Weather{}, fmt.Errorf("forecast request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return models.Weather{}, fmt.Errorf("forecast API returned status %d: %s", resp.StatusCode, string(body))
	}

	var weatherResp openWeatherResponse
	if err := json.NewDecoder(resp.Body).Decode(&weatherResp); err != nil {
		return models.Weather{}, fmt.Errorf("failed to parse forecast response: %w", err)
	}

	return closestForecast(weatherResp, gameTime, stadium)
}

// closestForecast picks the forecast slot nearest to game time and converts
// it into the simulation's weather model.
func closestForecast(resp openWeatherResponse, gameTime time.Time, stadium models.Stadium) (models.Weather, error) {
	if len(resp.List) == 0 {
		return models.Weather{}, fmt.Errorf("no forecast data available")
	}

	var closest *openWeatherEntry
	minDiff := time.Duration(1<<63 - 1)
	for i := range resp.List {
		entry := &resp.List[i]
		diff := gameTime.Sub(time.Unix(entry.Dt, 0))
		if diff < 0 {
			diff = -diff
		}
		if diff < minDiff {
			minDiff = diff
			closest = entry
		}
	}

	weather := models.Weather{
		Temperature: int(closest.Main.Temp),
		WindSpeed:   int(closest.Wind.Speed),
		WindDir:     degreesToDirection(closest.Wind.Deg),
		Humidity:    closest.Main.Humidity,
		Pressure:    closest.Main.Pressure,
	}

	if stadium.Altitude > 0 {
		weather.Pressure -= float64(stadium.Altitude) / 1000.0
	}

	return weather, nil
}

// degreesToDirection buckets meteorological wind degrees into directions
// relative to a park oriented home plate to center field.
//
//	"out"  = blowing toward the outfield (helps hitters)
//	"in"   = blowing toward home plate (hurts hitters)
//	"left"/"right" = cross winds
func degreesToDirection(degrees int) string {
	degrees = degrees % 360
	if degrees < 0 {
		degrees += 360
	}

	switch {
	case degrees >= 338 || degrees < 23:
		return "out"
	case degrees < 113:
		return "right"
	case degrees < 203:
		return "in"
	case degrees < 293:
		return "left"
	default:
		return "out"
	}
}

// cacheKey buckets lookups to the nearest hour per stadium.
func cacheKey(stadium models.Stadium, gameTime time.Time) string {
	rounded := gameTime.Round(time.Hour)
	return fmt.Sprintf("%s_%s", stadium.ID, rounded.UTC().Format("2006-01-02T15"))
}

func (s *Service) getCachedForecast(key string) (models.Weather, bool) {
	s.cache.mu.RLock()
	defer s.cache.mu.RUnlock()

	if cached, ok := s.cache.data[key]; ok && time.Now().Before(cached.expiresAt) {
		return cached.weather, true
	}
	return models.Weather{}, false
}

func (s *Service) cacheForecast(key string, weather models.Weather) {
	s.cache.mu.Lock()
	defer s.cache.mu.Unlock()

	s.cache.data[key] = &cachedForecast{
		weather:   weather,
		expiresAt: time.Now().Add(cacheDuration),
	}
}

// CleanExpiredCache removes expired cache entries.
func (s *Service) CleanExpiredCache() {
	s.cache.mu.Lock()
	defer s.cache.mu.Unlock()

	now := time.Now()
	for key, cached := range s.cache.data {
		if now.After(cached.expiresAt) {
			delete(s.cache.data, key)
		}
	}
}

// StartCacheCleanup starts the background cache sweeper. Close stops it.
func (s *Service) StartCacheCleanup() {
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.CleanExpiredCache()
				s.log.WithField("entries", s.cacheSize()).Debug("Weather cache swept")
			case <-s.stop:
				return
			}
		}
	}()
}

// Close stops the background sweeper. Safe to call more than once.
func (s *Service) Close() {
	s.once.Do(func() { close(s.stop) })
}

func (s *Service) cacheSize() int {
	s.cache.mu.RLock()
	defer s.cache.mu.RUnlock()
	return len(s.cache.data)
}

// GetCacheStats returns cache statistics for monitoring.
func (s *Service) GetCacheStats() map[string]interface{} {
	return map[string]interface{}{
		"entries": s.cacheSize(),
	}
}

// ValidateAPIKey makes a one-slot test request to verify the configured
// key. Called at startup; a failure is logged but not fatal.
func (s *Service) ValidateAPIKey(ctx context.Context) error {
	if s.apiKey == "" {
		return fmt.Errorf("API key is empty")
	}

	params := url.Values{}
	params.Add("lat", "40.7128")
	params.Add("lon", "-74.0060")
	params.Add("appid", s.apiKey)
	params.Add("cnt", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("API key validation request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized:
		return fmt.Errorf("invalid API key")
	default:
		return fmt.Errorf("API key validation failed with status %d", resp.StatusCode)
	}
}
