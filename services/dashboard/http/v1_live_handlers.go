package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/02loveslollipop/Smart-study-space-monitor/internal/charts"
	"github.com/02loveslollipop/Smart-study-space-monitor/internal/metrics"
)

const streamHeartbeat = 15 * time.Second

// handleV1Live returns the live state and its card projection
// GET /api/v1/live
func (s *Server) handleV1Live(c *gin.Context) {
	snap := s.dash.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"state": snap.Live,
			"card":  charts.NewLiveCard(snap.Live, s.now(), s.loc),
		},
		"meta": gin.H{
			"mode":      snap.Mode,
			"modeLabel": snap.ModeLabel,
			"version":   snap.Version,
		},
	})
}

// handleV1LiveStream pushes every published snapshot as a server-sent event
// GET /api/v1/live/stream
func (s *Server) handleV1LiveStream(c *gin.Context) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}

	snapshots, stop := s.dash.Watch()
	defer stop()

	clientID := uuid.NewString()
	metrics.AddStreamClients(1)
	defer metrics.AddStreamClients(-1)
	s.log.Debug("stream client connected", "client", clientID)
	defer s.log.Debug("stream client disconnected", "client", clientID)

	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	fmt.Fprintf(c.Writer, "event: ready\ndata: {\"client\":%q}\n\n", clientID)
	flusher.Flush()

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(c.Writer, ": ping\n\n")
			flusher.Flush()
		case snap, ok := <-snapshots:
			if !ok {
				fmt.Fprint(c.Writer, "event: closed\ndata: {}\n\n")
				flusher.Flush()
				return
			}
			payload, err := json.Marshal(gin.H{
				"snapshot": snap,
				"card":     charts.NewLiveCard(snap.Live, s.now(), s.loc),
			})
			if err != nil {
				s.log.Warn("failed to encode snapshot", "error", err)
				continue
			}
			fmt.Fprintf(c.Writer, "id: %d\nevent: snapshot\ndata: %s\n\n", snap.Version, payload)
			flusher.Flush()
		}
	}
}
