package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/02loveslollipop/Smart-study-space-monitor/internal/history"
	"github.com/02loveslollipop/Smart-study-space-monitor/internal/live"
	"github.com/02loveslollipop/Smart-study-space-monitor/internal/logger"
	"github.com/02loveslollipop/Smart-study-space-monitor/internal/metrics"
	"github.com/02loveslollipop/Smart-study-space-monitor/internal/mirror"
	"github.com/02loveslollipop/Smart-study-space-monitor/internal/reading"
	"github.com/02loveslollipop/Smart-study-space-monitor/internal/redisstore"
	"github.com/02loveslollipop/Smart-study-space-monitor/internal/rtdb"
	"github.com/02loveslollipop/Smart-study-space-monitor/internal/viewmodel"
	"github.com/02loveslollipop/Smart-study-space-monitor/services/dashboard/config"
	"github.com/02loveslollipop/Smart-study-space-monitor/services/dashboard/db"
	httpserver "github.com/02loveslollipop/Smart-study-space-monitor/services/dashboard/http"
)

// backend is an external store: a live source plus the reading log.
type backend interface {
	live.Source
	FetchRecent(ctx context.Context, limit int) ([]reading.Entry, error)
}

func main() {
	if err := run(); err != nil {
		logger.GetDefault().Error("dashboard stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	log := logger.New(cfg.LogLevel)
	logger.SetDefault(log)
	metrics.Init()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, pinger, closeStore, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	sources := map[live.Mode]live.Source{
		live.ModeExternal:  store,
		live.ModeSynthetic: live.NewSyntheticSource(cfg.SyntheticInterval, nil),
	}
	aggregator := history.NewAggregator(store, history.WithLimit(cfg.HistoryLimit))

	dash, err := viewmodel.New(sources, aggregator, viewmodel.Config{
		Mode:              cfg.Mode(),
		View:              cfg.View(),
		WindowOptions:     cfg.WindowOptions,
		WindowMinutes:     cfg.DefaultWindow,
		OnlineTimeout:     cfg.OnlineTimeout,
		FetchTimeout:      cfg.FetchTimeout,
		FreshnessInterval: cfg.FreshnessInterval,
		ModeLabels:        map[live.Mode]string{live.ModeExternal: cfg.ExternalLabel()},
		Logger:            log,
	})
	if err != nil {
		return fmt.Errorf("dashboard error: %w", err)
	}

	dashErr := make(chan error, 1)
	go func() {
		err := dash.Run(ctx)
		if err != nil {
			cancel()
		}
		dashErr <- err
	}()

	if cfg.MirrorEnabled() {
		producer, err := mirror.NewProducer(mirror.DefaultProducerConfig(cfg.KafkaBrokers))
		if err != nil {
			// the mirror is optional; the dashboard keeps serving without it
			log.Warn("kafka mirror disabled", "error", err)
		} else {
			m := mirror.New(producer, cfg.KafkaTopic, cfg.LivePath)
			snapshots, stop := dash.Watch()
			go func() {
				defer stop()
				defer m.Close()
				m.Run(ctx, snapshots)
			}()
			log.Info("kafka mirror enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
		}
	}

	srv := httpserver.New(cfg, dash, pinger, log)
	log.Info("dashboard listening",
		"addr", cfg.ListenAddr(),
		"backend", cfg.Backend,
		"mode", cfg.Mode(),
		"timezone", loc.String(),
	)

	srvErr := srv.Run(ctx)
	cancel()
	if err := <-dashErr; err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("dashboard error: %w", err)
	}
	if srvErr != nil {
		return fmt.Errorf("server error: %w", srvErr)
	}
	return nil
}

// openBackend connects the configured store. The returned pinger is nil for
// backends without a health probe.
func openBackend(ctx context.Context, cfg config.Config) (backend, httpserver.Pinger, func(), error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		store, err := db.New(ctx, cfg.DatabaseURL, cfg.LivePath, cfg.LogPath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("db connection error: %w", err)
		}
		return store, store, store.Close, nil
	case config.BackendRedis:
		store, err := redisstore.New(ctx, redisstore.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			LivePath: cfg.LivePath,
			LogPath:  cfg.LogPath,
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("redis connection error: %w", err)
		}
		return store, store, func() { _ = store.Close() }, nil
	default:
		client, err := rtdb.New(ctx, rtdb.Config{
			DatabaseURL:     cfg.FirebaseDatabaseURL,
			LivePath:        cfg.LivePath,
			LogPath:         cfg.LogPath,
			CredentialsFile: cfg.FirebaseCredentials,
			AuthToken:       cfg.FirebaseAuthToken,
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("firebase error: %w", err)
		}
		return client, nil, func() { _ = client.Close() }, nil
	}
}
