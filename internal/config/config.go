package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/i474232898/weather-feed-aggregation/internal/weather"
	"github.com/i474232898/weather-feed-aggregation/internal/weather/providers"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// FeedConfig is the endpoint of one feed.
type FeedConfig struct {
	Enabled    bool
	BaseURL    string
	ServiceKey string
}

type AppConfig struct {
	AppEnv   string
	LogLevel slog.Level
	Port     string

	// HTTPTimeout bounds a single outbound request.
	HTTPTimeout time.Duration

	// Transport retry policy shared by every feed.
	RetryMax       int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	// CircuitThreshold is the number of consecutive failed fetches that
	// opens a feed's circuit breaker; 0 derives it from RetryMax, negative
	// disables the breaker.
	CircuitThreshold int
	CircuitCooldown  time.Duration

	// FetchInterval controls how often we collect every location.
	FetchInterval time.Duration

	Feeds map[weather.Feed]FeedConfig

	// DustInformCode restricts the dust forecast to one pollutant; empty
	// means all.
	DustInformCode   string
	SensibleTempCode string

	Locations []weather.Location

	StoreDriver     string
	StoreDSN        string
	StoreMaxHistory int           // max number of snapshots per location (0 = unlimited)
	StoreMaxAge     time.Duration // max age of snapshots (0 = unlimited)
}

var defaultBaseURLs = map[weather.Feed]string{
	weather.FeedWeather:       providers.DefaultNowcastURL,
	weather.FeedDust:          providers.DefaultDustURL,
	weather.FeedUV:            providers.DefaultUVURL,
	weather.FeedSensibleTemp:  providers.DefaultSensibleTempURL,
	weather.FeedAirStagnation: providers.DefaultAirStagnationURL,
}

const defaultLocations = "seoul|1100000000|60|127|서울"

// Load reads configuration from the environment, after .env if present.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}
	return FromEnv()
}

// FromEnv reads configuration from the environment with sensible defaults.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{}
	var err error

	cfg.AppEnv = getenvDefault("APP_ENV", "dev")
	switch cfg.AppEnv {
	case "dev", "prod":
	default:
		return nil, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", cfg.AppEnv)
	}

	if cfg.LogLevel, err = parseLogLevel(getenvDefault("LOG_LEVEL", "info")); err != nil {
		return nil, err
	}
	cfg.Port = getenvDefault("PORT", "8080")

	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	cfg.RetryMax = getenvInt("RETRY_MAX", 3)
	if cfg.RetryMax < 0 {
		return nil, fmt.Errorf("invalid RETRY_MAX %d: must not be negative", cfg.RetryMax)
	}
	if cfg.RetryBaseDelay, err = getenvDuration("RETRY_BASE_DELAY", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.RetryMaxDelay, err = getenvDuration("RETRY_MAX_DELAY", 30*time.Second); err != nil {
		return nil, err
	}
	cfg.CircuitThreshold = getenvInt("CIRCUIT_THRESHOLD", 0)
	if cfg.CircuitThreshold > 0 && cfg.CircuitThreshold <= cfg.RetryMax+1 {
		return nil, fmt.Errorf("invalid CIRCUIT_THRESHOLD %d: must exceed the %d fetches of one call", cfg.CircuitThreshold, cfg.RetryMax+1)
	}
	if cfg.CircuitCooldown, err = getenvDuration("CIRCUIT_COOLDOWN", 2*time.Minute); err != nil {
		return nil, err
	}

	// Scheduler interval: default 1 hour, the feeds' publication cadence.
	if cfg.FetchInterval, err = getenvDuration("FETCH_INTERVAL", time.Hour); err != nil {
		return nil, err
	}

	if cfg.Feeds, err = loadFeeds(); err != nil {
		return nil, err
	}
	cfg.DustInformCode = strings.TrimSpace(os.Getenv("DUST_INFORM_CODE"))
	cfg.SensibleTempCode = getenvDefault("SENSIBLE_TEMP_CODE", providers.DefaultSensibleTempCode)

	if cfg.Locations, err = ParseLocations(getenvDefault("LOCATIONS", defaultLocations)); err != nil {
		return nil, err
	}

	cfg.StoreDriver = strings.ToLower(getenvDefault("STORE_DRIVER", DriverMemory))
	cfg.StoreDSN = strings.TrimSpace(os.Getenv("STORE_DSN"))
	switch cfg.StoreDriver {
	case DriverMemory:
	case DriverSQLite:
		if cfg.StoreDSN == "" {
			cfg.StoreDSN = "file:weather.db?_busy_timeout=5000"
		}
	case DriverPostgres:
		if cfg.StoreDSN == "" {
			return nil, errors.New("STORE_DSN is required for the postgres store")
		}
	default:
		return nil, fmt.Errorf("invalid STORE_DRIVER %q (allowed: memory, sqlite, postgres)", cfg.StoreDriver)
	}

	// Store retention.
	cfg.StoreMaxHistory = getenvInt("STORE_MAX_HISTORY", 48) // two days at hourly intervals
	if cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", 48*time.Hour); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFeeds resolves the enabled feed set and their endpoints. Base URLs
// default to the public endpoints; an enabled feed without a service key is
// an error.
func loadFeeds() (map[weather.Feed]FeedConfig, error) {
	enabled := make(map[weather.Feed]bool)
	if raw := strings.TrimSpace(os.Getenv("FEEDS")); raw != "" && raw != "all" {
		for _, name := range strings.Split(raw, ",") {
			if strings.TrimSpace(name) == "" {
				continue
			}
			f, err := weather.ParseFeed(name)
			if err != nil {
				return nil, fmt.Errorf("invalid FEEDS: %w", err)
			}
			enabled[f] = true
		}
	} else {
		for _, f := range weather.AllFeeds() {
			enabled[f] = true
		}
	}

	sharedKey := strings.TrimSpace(os.Getenv("DATA_GO_KR_SERVICE_KEY"))
	feeds := make(map[weather.Feed]FeedConfig, len(enabled))
	var errs []error
	for _, f := range weather.AllFeeds() {
		prefix := envPrefix(f)
		fc := FeedConfig{
			Enabled:    enabled[f],
			BaseURL:    getenvDefault(prefix+"_BASE_URL", defaultBaseURLs[f]),
			ServiceKey: getenvDefault(prefix+"_SERVICE_KEY", sharedKey),
		}
		if fc.Enabled && fc.ServiceKey == "" {
			errs = append(errs, fmt.Errorf("%s_SERVICE_KEY (or DATA_GO_KR_SERVICE_KEY) is required for feed %s", prefix, f))
		}
		feeds[f] = fc
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return feeds, nil
}

// envPrefix turns "sensible-temp" into "SENSIBLE_TEMP".
func envPrefix(f weather.Feed) string {
	return strings.ToUpper(strings.ReplaceAll(string(f), "-", "_"))
}

// ParseLocations reads "name|areaNo|nx|ny|dustRegion" entries separated by
// ';'. The dust region is optional.
func ParseLocations(raw string) ([]weather.Location, error) {
	var locs []weather.Location
	seen := make(map[string]bool)
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, "|")
		if len(parts) < 4 || len(parts) > 5 {
			return nil, fmt.Errorf("invalid location %q: want name|areaNo|nx|ny|dustRegion", entry)
		}
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid location %q: name and area number are required", entry)
		}
		nx, errX := strconv.Atoi(parts[2])
		ny, errY := strconv.Atoi(parts[3])
		if err := errors.Join(errX, errY); err != nil {
			return nil, fmt.Errorf("invalid location %q grid: %w", entry, err)
		}
		if nx <= 0 || ny <= 0 {
			return nil, fmt.Errorf("invalid location %q: grid must be positive", entry)
		}
		if seen[strings.ToLower(parts[0])] {
			return nil, fmt.Errorf("duplicate location %q", parts[0])
		}
		seen[strings.ToLower(parts[0])] = true

		loc := weather.Location{Name: parts[0], AreaNo: parts[1], NX: nx, NY: ny}
		if len(parts) == 5 {
			loc.DustRegion = parts[4]
		}
		locs = append(locs, loc)
	}
	if len(locs) == 0 {
		return nil, errors.New("LOCATIONS must name at least one location")
	}
	return locs, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: %s is negative", key, d)
	}
	return d, nil
}
