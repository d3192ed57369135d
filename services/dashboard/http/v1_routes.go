package http

import "github.com/gin-gonic/gin"

// registerV1Routes sets up the v1 API.
// Groups: /api/v1/view, /api/v1/live, /api/v1/history
func (s *Server) registerV1Routes() {
	v1 := s.engine.Group("/api/v1")
	v1.Use(apiVersionMiddleware()) // Add X-API-Version: v1 header

	// View endpoints - selector state and commands
	view := v1.Group("/view")
	{
		view.GET("", s.handleV1GetView)
		view.PUT("/mode", s.handleV1SetMode)
		view.PUT("/tab", s.handleV1SetTab)
		view.PUT("/window", s.handleV1SetWindow)
	}

	// Live endpoints - current reading and snapshot stream
	liveGroup := v1.Group("/live")
	{
		liveGroup.GET("", s.handleV1Live)
		liveGroup.GET("/stream", s.handleV1LiveStream)
	}

	// History endpoints - committed window, charts and exports
	hist := v1.Group("/history")
	{
		hist.GET("", s.handleV1History)
		hist.POST("/refresh", s.handleV1RefreshHistory)
		hist.GET("/export.xlsx", s.handleV1ExportXLSX)
		hist.GET("/export.pdf", s.handleV1ExportPDF)
	}
}

func apiVersionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-API-Version", "v1")
		c.Next()
	}
}
