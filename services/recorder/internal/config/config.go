package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported sinks. They mirror the dashboard backends.
const (
	BackendFirebase = "firebase"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

const (
	defaultLivePath       = "USMLibrary/Desk01"
	defaultLogPath        = "USMLibrary/Desk01Logs"
	defaultInterval       = 2 * time.Second
	defaultMinInterval    = 30 * time.Second
	defaultRequestTimeout = 10 * time.Second
)

// Config holds runtime configuration for the recorder service.
type Config struct {
	Backend  string
	LivePath string
	LogPath  string

	FirebaseDatabaseURL string
	FirebaseCredentials string
	DatabaseURL         string
	RedisAddr           string
	RedisPassword       string
	RedisDB             int

	// NodeURL is polled for the node's JSON record. Empty means synthetic
	// readings.
	NodeURL        string
	Interval       time.Duration
	MinInterval    time.Duration
	RequestTimeout time.Duration
	RunOnce        bool
	DryRun         bool

	MetricsAddr string
	LogLevel    string
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load(".env")

	cfg := Config{
		Backend:  strings.ToLower(envOr("BACKEND", BackendPostgres)),
		LivePath: envOr("LIVE_PATH", defaultLivePath),
		LogPath:  envOr("LOG_PATH", defaultLogPath),

		FirebaseDatabaseURL: env("FIREBASE_DATABASE_URL"),
		FirebaseCredentials: env("FIREBASE_CREDENTIALS"),
		DatabaseURL:         env("DATABASE_URL"),
		RedisAddr:           envOr("REDIS_ADDR", "localhost:6379"),
		RedisPassword:       env("REDIS_PASSWORD"),

		NodeURL:     env("NODE_URL"),
		MetricsAddr: env("METRICS_ADDR"),
		LogLevel:    envOr("LOG_LEVEL", "info"),
	}

	if v := env("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid REDIS_DB: %w", err)
		}
		cfg.RedisDB = n
	}

	var err error
	if cfg.Interval, err = duration("INTERVAL", defaultInterval); err != nil {
		return cfg, err
	}
	if cfg.MinInterval, err = duration("MIN_INTERVAL", defaultMinInterval); err != nil {
		return cfg, err
	}
	if cfg.RequestTimeout, err = duration("REQUEST_TIMEOUT", defaultRequestTimeout); err != nil {
		return cfg, err
	}
	if cfg.Interval <= 0 {
		return cfg, errors.New("INTERVAL must be positive")
	}

	cfg.RunOnce = flag("RUN_ONCE")
	cfg.DryRun = flag("DRY_RUN")

	switch cfg.Backend {
	case BackendPostgres:
		if cfg.DatabaseURL == "" && !cfg.DryRun {
			return cfg, errors.New("DATABASE_URL is required")
		}
	case BackendFirebase:
		if cfg.FirebaseDatabaseURL == "" && !cfg.DryRun {
			return cfg, errors.New("FIREBASE_DATABASE_URL is required")
		}
	case BackendRedis:
	default:
		return cfg, fmt.Errorf("invalid BACKEND %q", cfg.Backend)
	}

	return cfg, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envOr(key, fallback string) string {
	if v := env(key); v != "" {
		return v
	}
	return fallback
}

func duration(key string, fallback time.Duration) (time.Duration, error) {
	v := env(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func flag(key string) bool {
	v := env(key)
	return v == "1" || strings.EqualFold(v, "true")
}
