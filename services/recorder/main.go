package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/02loveslollipop/Smart-study-space-monitor/internal/live"
	"github.com/02loveslollipop/Smart-study-space-monitor/internal/logger"
	"github.com/02loveslollipop/Smart-study-space-monitor/internal/metrics"
	"github.com/02loveslollipop/Smart-study-space-monitor/internal/reading"
	"github.com/02loveslollipop/Smart-study-space-monitor/internal/redisstore"
	"github.com/02loveslollipop/Smart-study-space-monitor/internal/rtdb"
	"github.com/02loveslollipop/Smart-study-space-monitor/services/recorder/internal/config"
	"github.com/02loveslollipop/Smart-study-space-monitor/services/recorder/internal/db"
	"github.com/02loveslollipop/Smart-study-space-monitor/services/recorder/internal/models"
	"github.com/02loveslollipop/Smart-study-space-monitor/services/recorder/internal/node"
	"github.com/02loveslollipop/Smart-study-space-monitor/services/recorder/internal/utils"
)

// sink stores readings the way the node does.
type sink interface {
	WriteLive(ctx context.Context, r reading.Reading) error
	AppendLog(ctx context.Context, r reading.Reading) (string, error)
	Close() error
}

func main() {
	if err := run(); err != nil {
		logger.GetDefault().Error("recorder failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	log := logger.New(cfg.LogLevel).WithComponent("recorder").With("run", runID)
	logger.SetDefault(log)
	metrics.Init()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.Handler(), ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("metrics listener stopped", "error", err)
			}
		}()
		defer srv.Close()
	}

	var out sink
	if !cfg.DryRun {
		out, err = openSink(ctx, cfg)
		if err != nil {
			return err
		}
		defer out.Close()
	}

	sample := sampler(cfg)
	var last *models.LastLogged

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	log.Info("recorder started",
		"backend", cfg.Backend,
		"live_path", cfg.LivePath,
		"source", sourceName(cfg),
		"interval", cfg.Interval.String(),
		"dry_run", cfg.DryRun,
	)

	for {
		s, err := sample(ctx)
		if err != nil {
			log.WarnContext(ctx, "sample failed", "error", err)
		} else {
			last = record(ctx, log, cfg, out, s, last)
		}

		if cfg.RunOnce {
			return nil
		}
		select {
		case <-ctx.Done():
			log.Info("recorder stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// record writes s and reports the reading that is now last in the log.
func record(ctx context.Context, log *logger.Logger, cfg config.Config, out sink, s models.Sample, last *models.LastLogged) *models.LastLogged {
	appendLog := utils.ShouldLog(s, last, cfg.MinInterval)

	if cfg.DryRun {
		log.Info("dry-run: would write reading", "reading", utils.Describe(s.Reading), "append_log", appendLog)
		if appendLog {
			return &models.LastLogged{Reading: s.Reading, At: s.FetchedAt}
		}
		return last
	}

	err := out.WriteLive(ctx, s.Reading)
	metrics.IncRecorderWrite("live", err)
	if err != nil {
		log.WarnContext(ctx, "live write failed", "error", err)
	}

	if !appendLog {
		return last
	}
	key, err := out.AppendLog(ctx, s.Reading)
	metrics.IncRecorderWrite("log", err)
	if err != nil {
		log.WarnContext(ctx, "log append failed", "error", err)
		return last
	}
	log.DebugContext(ctx, "reading logged", "key", key, "reading", utils.Describe(s.Reading))
	return &models.LastLogged{Reading: s.Reading, At: s.FetchedAt}
}

func sampler(cfg config.Config) func(context.Context) (models.Sample, error) {
	if cfg.NodeURL == "" {
		seed := uint64(time.Now().UnixNano())
		rng := rand.New(rand.NewPCG(seed, seed>>1))
		return func(context.Context) (models.Sample, error) {
			now := time.Now()
			return models.Sample{Reading: live.Synthesize(rng, now), Source: "synthetic", FetchedAt: now}, nil
		}
	}

	client := &http.Client{Timeout: cfg.RequestTimeout}
	return func(ctx context.Context) (models.Sample, error) {
		now := time.Now()
		r, err := node.FetchReading(ctx, client, cfg.NodeURL, now)
		if err != nil {
			return models.Sample{}, err
		}
		return models.Sample{Reading: r, Source: "node", FetchedAt: now}, nil
	}
}

func sourceName(cfg config.Config) string {
	if cfg.NodeURL == "" {
		return "synthetic"
	}
	return cfg.NodeURL
}

func openSink(ctx context.Context, cfg config.Config) (sink, error) {
	switch cfg.Backend {
	case config.BackendFirebase:
		client, err := rtdb.New(ctx, rtdb.Config{
			DatabaseURL:     cfg.FirebaseDatabaseURL,
			LivePath:        cfg.LivePath,
			LogPath:         cfg.LogPath,
			CredentialsFile: cfg.FirebaseCredentials,
		})
		if err != nil {
			return nil, fmt.Errorf("firebase error: %w", err)
		}
		return client, nil
	case config.BackendRedis:
		store, err := redisstore.New(ctx, redisstore.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			LivePath: cfg.LivePath,
			LogPath:  cfg.LogPath,
		})
		if err != nil {
			return nil, fmt.Errorf("redis connection error: %w", err)
		}
		return store, nil
	default:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("db connection error: %w", err)
		}
		if err := db.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return db.NewWriter(pool, cfg.LivePath, cfg.LogPath), nil
	}
}
