package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/02loveslollipop/Smart-study-space-monitor/internal/live"
	"github.com/02loveslollipop/Smart-study-space-monitor/internal/viewmodel"
)

const commandTimeout = 5 * time.Second

type setModeRequest struct {
	Mode string `json:"mode" binding:"required"`
}

type setTabRequest struct {
	View string `json:"view" binding:"required"`
}

type setWindowRequest struct {
	WindowMinutes int `json:"windowMinutes" binding:"required,gt=0"`
}

// handleV1GetView returns the current dashboard snapshot
// GET /api/v1/view
func (s *Server) handleV1GetView(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": s.dash.Snapshot()})
}

// handleV1SetMode switches the active data source
// PUT /api/v1/view/mode {"mode": "fake" | "external"}
func (s *Server) handleV1SetMode(c *gin.Context) {
	var req setModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	mode, ok := live.ParseMode(req.Mode)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": viewmodel.ErrInvalidMode.Error(), "mode": req.Mode})
		return
	}
	s.runCommand(c, func(ctx context.Context) error {
		return s.dash.SetMode(ctx, mode)
	})
}

// handleV1SetTab switches between the live and history views
// PUT /api/v1/view/tab {"view": "live" | "history"}
func (s *Server) handleV1SetTab(c *gin.Context) {
	var req setTabRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	view, ok := viewmodel.ParseView(req.View)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": viewmodel.ErrInvalidView.Error(), "view": req.View})
		return
	}
	s.runCommand(c, func(ctx context.Context) error {
		return s.dash.SetActiveView(ctx, view)
	})
}

// handleV1SetWindow selects the history window length
// PUT /api/v1/view/window {"windowMinutes": 60}
func (s *Server) handleV1SetWindow(c *gin.Context) {
	var req setWindowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.runCommand(c, func(ctx context.Context) error {
		return s.dash.SetWindowMinutes(ctx, req.WindowMinutes)
	})
}

// handleV1RefreshHistory reloads the history window
// POST /api/v1/history/refresh
func (s *Server) handleV1RefreshHistory(c *gin.Context) {
	s.runCommand(c, s.dash.RefreshHistory)
}

// runCommand applies cmd and replies with the resulting snapshot.
func (s *Server) runCommand(c *gin.Context, cmd func(context.Context) error) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), commandTimeout)
	defer cancel()

	if err := cmd(ctx); err != nil {
		c.JSON(commandStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": s.dash.Snapshot()})
}

func commandStatus(err error) int {
	switch {
	case errors.Is(err, viewmodel.ErrInvalidMode),
		errors.Is(err, viewmodel.ErrInvalidView),
		errors.Is(err, viewmodel.ErrInvalidWindow):
		return http.StatusBadRequest
	case errors.Is(err, viewmodel.ErrStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
