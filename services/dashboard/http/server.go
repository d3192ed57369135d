package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/02loveslollipop/Smart-study-space-monitor/internal/logger"
	"github.com/02loveslollipop/Smart-study-space-monitor/internal/viewmodel"
	"github.com/02loveslollipop/Smart-study-space-monitor/services/dashboard/config"
)

// Pinger reports whether the external store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server bundles router and dependencies for the dashboard API.
type Server struct {
	cfg    config.Config
	dash   *viewmodel.Dashboard
	store  Pinger
	loc    *time.Location
	log    *logger.Logger
	now    func() time.Time
	engine *gin.Engine
}

// New constructs a server with routes and middleware. store may be nil when
// the backend has no cheap health probe.
func New(cfg config.Config, dash *viewmodel.Dashboard, store Pinger, log *logger.Logger) *Server {
	if gin.Mode() == gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}
	if log == nil {
		log = logger.GetDefault()
	}
	loc, err := cfg.Location()
	if err != nil {
		loc = time.Local
	}

	engine := gin.New()
	engine.Use(requestLogger(log), gin.Recovery())
	engine.Use(cors.New(corsConfig(cfg.CORSOrigins)))

	server := &Server{
		cfg:    cfg,
		dash:   dash,
		store:  store,
		loc:    loc,
		log:    log,
		now:    time.Now,
		engine: engine,
	}
	server.registerRoutes()
	server.registerV1Routes()
	return server
}

// Engine exposes the underlying gin engine (for tests).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run starts the HTTP server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr(),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (s *Server) handleHealth(c *gin.Context) {
	select {
	case <-s.dash.Done():
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "stopped"})
		return
	default:
	}

	if s.store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unhealthy",
				"backend": s.cfg.Backend,
				"error":   err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "backend": s.cfg.Backend})
}

func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.LogHTTPRequest(c, time.Since(start))
	}
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Length", "Content-Type"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition", "X-API-Version"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
