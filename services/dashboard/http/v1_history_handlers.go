package http

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/02loveslollipop/Smart-study-space-monitor/internal/charts"
	"github.com/02loveslollipop/Smart-study-space-monitor/internal/export"
	"github.com/02loveslollipop/Smart-study-space-monitor/internal/history"
	"github.com/02loveslollipop/Smart-study-space-monitor/internal/metrics"
	"github.com/02loveslollipop/Smart-study-space-monitor/internal/viewmodel"
)

// handleV1History returns the committed history window with derived charts.
// A failed load is reported in meta.error with an empty window.
// GET /api/v1/history
func (s *Server) handleV1History(c *gin.Context) {
	snap := s.dash.Snapshot()
	w := snap.History.Window

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"window": w,
			"charts": charts.Build(w, s.loc),
		},
		"meta": historyMeta(snap),
	})
}

// handleV1ExportXLSX downloads the committed window as a spreadsheet
// GET /api/v1/history/export.xlsx
func (s *Server) handleV1ExportXLSX(c *gin.Context) {
	w := s.dash.Snapshot().History.Window
	body, err := export.BuildXLSX(w, s.loc)
	s.sendExport(c, w, export.FormatXLSX, export.ContentTypeXLSX, body, err)
}

// handleV1ExportPDF downloads a PDF summary of the committed window
// GET /api/v1/history/export.pdf
func (s *Server) handleV1ExportPDF(c *gin.Context) {
	w := s.dash.Snapshot().History.Window
	body, err := export.BuildPDF(w, s.loc, s.now())
	s.sendExport(c, w, export.FormatPDF, export.ContentTypePDF, body, err)
}

func (s *Server) sendExport(c *gin.Context, w history.Window, format, contentType string, body []byte, err error) {
	metrics.IncExport(format, err)
	if err != nil {
		s.log.Error("export failed", "format", format, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	filename := export.Filename(w, format, s.now())
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, body)
}

func historyMeta(snap viewmodel.Snapshot) gin.H {
	meta := gin.H{
		"windowMinutes": snap.WindowMinutes,
		"count":         snap.History.Window.Len(),
		"loading":       snap.History.Loading,
		"mode":          snap.Mode,
		"view":          snap.View,
	}
	if snap.History.Err != "" {
		meta["error"] = snap.History.Err
	}
	if snap.History.FetchedAt != nil {
		meta["fetchedAt"] = snap.History.FetchedAt
	}
	return meta
}
