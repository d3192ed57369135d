package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/02loveslollipop/Smart-study-space-monitor/internal/history"
	"github.com/02loveslollipop/Smart-study-space-monitor/internal/live"
	"github.com/02loveslollipop/Smart-study-space-monitor/internal/viewmodel"
)

// Supported external store backends.
const (
	BackendFirebase = "firebase"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

const (
	defaultLivePath   = "USMLibrary/Desk01"
	defaultLogPath    = "USMLibrary/Desk01Logs"
	defaultKafkaTopic = "study-space.live"
)

// Config holds settings for the dashboard service. Values come from an
// optional YAML file (CONFIG_FILE) and are then overridden by the
// environment (optionally .env).
type Config struct {
	Port    int    `yaml:"port"`
	Backend string `yaml:"backend"`

	FirebaseDatabaseURL string `yaml:"firebase_database_url"`
	FirebaseCredentials string `yaml:"firebase_credentials"`
	FirebaseAuthToken   string `yaml:"firebase_auth_token"`
	LivePath            string `yaml:"live_path"`
	LogPath             string `yaml:"log_path"`

	DatabaseURL   string `yaml:"database_url"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	HistoryLimit      int           `yaml:"history_limit"`
	OnlineTimeout     time.Duration `yaml:"online_timeout"`
	SyntheticInterval time.Duration `yaml:"synthetic_interval"`
	FreshnessInterval time.Duration `yaml:"freshness_interval"`
	FetchTimeout      time.Duration `yaml:"fetch_timeout"`
	WindowOptions     []int         `yaml:"window_options"`
	DefaultWindow     int           `yaml:"default_window"`
	DefaultMode       string        `yaml:"default_mode"`
	DefaultView       string        `yaml:"default_view"`
	Timezone          string        `yaml:"timezone"`

	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`

	CORSOrigins []string `yaml:"cors_origins"`
	LogLevel    string   `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:              8080,
		Backend:           BackendFirebase,
		LivePath:          defaultLivePath,
		LogPath:           defaultLogPath,
		HistoryLimit:      history.DefaultLimit,
		OnlineTimeout:     live.DefaultOnlineTimeout,
		SyntheticInterval: live.DefaultSyntheticInterval,
		FreshnessInterval: viewmodel.DefaultFreshnessInterval,
		FetchTimeout:      viewmodel.DefaultFetchTimeout,
		WindowOptions:     slices.Clone(viewmodel.DefaultWindowOptions),
		DefaultWindow:     viewmodel.DefaultWindowMinutes,
		DefaultMode:       string(live.ModeExternal),
		DefaultView:       string(viewmodel.ViewLive),
		KafkaTopic:        defaultKafkaTopic,
		CORSOrigins:       []string{"*"},
		LogLevel:          "info",
	}
}

// Load reads configuration from CONFIG_FILE and environment variables.
func Load() (Config, error) {
	_ = godotenv.Load() // ignore missing file

	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read CONFIG_FILE: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse CONFIG_FILE: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) error {
	if portStr := os.Getenv("PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
			cfg.Port = port
		} else {
			return fmt.Errorf("invalid PORT: %s", portStr)
		}
	}

	setString(&cfg.Backend, "BACKEND")
	setString(&cfg.FirebaseDatabaseURL, "FIREBASE_DATABASE_URL")
	setString(&cfg.FirebaseCredentials, "FIREBASE_CREDENTIALS")
	setString(&cfg.FirebaseAuthToken, "FIREBASE_AUTH_TOKEN")
	setString(&cfg.LivePath, "LIVE_PATH")
	setString(&cfg.LogPath, "LOG_PATH")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.RedisPassword, "REDIS_PASSWORD")
	setString(&cfg.DefaultMode, "DEFAULT_MODE")
	setString(&cfg.DefaultView, "DEFAULT_VIEW")
	setString(&cfg.Timezone, "TIMEZONE")
	setString(&cfg.KafkaTopic, "KAFKA_TOPIC")
	setString(&cfg.LogLevel, "LOG_LEVEL")

	if v := strings.TrimSpace(os.Getenv("REDIS_DB")); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil || db < 0 {
			return fmt.Errorf("invalid REDIS_DB: %s", v)
		}
		cfg.RedisDB = db
	}

	if v := strings.TrimSpace(os.Getenv("HISTORY_LIMIT")); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			return fmt.Errorf("invalid HISTORY_LIMIT: %s", v)
		}
		cfg.HistoryLimit = limit
	}

	if v := strings.TrimSpace(os.Getenv("DEFAULT_WINDOW")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid DEFAULT_WINDOW: %s", v)
		}
		cfg.DefaultWindow = n
	}

	if v := strings.TrimSpace(os.Getenv("WINDOW_OPTIONS")); v != "" {
		opts, err := parseInts(v)
		if err != nil {
			return fmt.Errorf("invalid WINDOW_OPTIONS: %w", err)
		}
		cfg.WindowOptions = opts
	}

	for key, dst := range map[string]*time.Duration{
		"ONLINE_TIMEOUT":     &cfg.OnlineTimeout,
		"SYNTHETIC_INTERVAL": &cfg.SyntheticInterval,
		"FRESHNESS_INTERVAL": &cfg.FreshnessInterval,
		"FETCH_TIMEOUT":      &cfg.FetchTimeout,
	} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				return fmt.Errorf("invalid %s: %s", key, v)
			}
			*dst = d
		}
	}

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = splitCSV(v)
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitCSV(v)
	}
	return nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendFirebase:
		if c.FirebaseDatabaseURL == "" {
			return errors.New("FIREBASE_DATABASE_URL is required for the firebase backend")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres backend")
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			return errors.New("REDIS_ADDR is required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid BACKEND: %s", c.Backend)
	}

	if c.LivePath == "" || c.LogPath == "" {
		return errors.New("LIVE_PATH and LOG_PATH must not be empty")
	}
	if _, ok := live.ParseMode(c.DefaultMode); !ok {
		return fmt.Errorf("invalid DEFAULT_MODE: %s", c.DefaultMode)
	}
	if _, ok := viewmodel.ParseView(c.DefaultView); !ok {
		return fmt.Errorf("invalid DEFAULT_VIEW: %s", c.DefaultView)
	}
	if len(c.WindowOptions) == 0 {
		return errors.New("WINDOW_OPTIONS must not be empty")
	}
	for _, n := range c.WindowOptions {
		if n <= 0 {
			return fmt.Errorf("invalid WINDOW_OPTIONS %v: windows must be positive", c.WindowOptions)
		}
	}
	if !slices.Contains(c.WindowOptions, c.DefaultWindow) {
		return fmt.Errorf("DEFAULT_WINDOW %d is not one of WINDOW_OPTIONS %v", c.DefaultWindow, c.WindowOptions)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	return nil
}

// Mode returns the parsed initial live mode.
func (c Config) Mode() live.Mode {
	m, _ := live.ParseMode(c.DefaultMode)
	return m
}

// View returns the parsed initial tab.
func (c Config) View() viewmodel.View {
	v, _ := viewmodel.ParseView(c.DefaultView)
	return v
}

// Location returns the zone chart labels are rendered in.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// ExternalLabel names the external source in the mode selector.
func (c Config) ExternalLabel() string {
	switch c.Backend {
	case BackendPostgres:
		return "PostgreSQL"
	case BackendRedis:
		return "Redis"
	default:
		return "Firebase (RTDB)"
	}
}

// MirrorEnabled reports whether live readings are mirrored to Kafka.
func (c Config) MirrorEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// ListenAddr returns the host:port string for the HTTP server.
func (c Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func parseInts(value string) ([]int, error) {
	parts := splitCSV(value)
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("bad value %q", p)
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, errors.New("no values")
	}
	return out, nil
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	var result []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}
