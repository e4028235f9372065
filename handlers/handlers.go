package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"nutriscan/analyzer"
	"nutriscan/metrics"
	"nutriscan/models"
	"nutriscan/version"
)

// Handlers contains HTTP handlers for the nutriscan service
type Handlers struct {
	analyzer *analyzer.Analyzer
}

// NewHandlers creates a new handlers instance
func NewHandlers(a *analyzer.Analyzer) *Handlers {
	return &Handlers{analyzer: a}
}

// AnalyzeUpload handles POST /api/v1/analyze/upload, for photos picked from the library.
func (h *Handlers) AnalyzeUpload(c *gin.Context) {
	h.analyze(c, analyzer.RouteUpload)
}

// AnalyzeCamera handles POST /api/v1/analyze/camera, for photos taken in-app.
func (h *Handlers) AnalyzeCamera(c *gin.Context) {
	h.analyze(c, analyzer.RouteCamera)
}

func (h *Handlers) analyze(c *gin.Context, route analyzer.Route) {
	start := time.Now()
	result := "error"
	defer func() {
		metrics.RequestsTotal.WithLabelValues(string(route), result).Inc()
		metrics.AnalyzeDurationSeconds.WithLabelValues(string(route), result).Observe(time.Since(start).Seconds())
	}()

	var req models.AnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			result = "too_large"
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return
		}
		req.DataURL = ""
	}
	if strings.TrimSpace(req.DataURL) == "" {
		result = "bad_request"
		c.JSON(http.StatusBadRequest, gin.H{"error": "dataURL is required"})
		return
	}

	analysis, err := h.analyzer.Run(c.Request.Context(), route, req.DataURL)
	if err != nil {
		switch {
		case errors.Is(err, analyzer.ErrNotConfigured):
			result = "not_configured"
			log.WithField("route", route).Error("analyze.not_configured")
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		default:
			result = "exhausted"
			log.WithFields(log.Fields{"route": route, "error": err.Error()}).Error("analyze.exhausted")
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		}
		return
	}

	result = "success"
	c.JSON(http.StatusOK, analysis)
}

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": version.ServiceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Version reports build information.
func (h *Handlers) Version(c *gin.Context) {
	c.JSON(http.StatusOK, version.Get())
}
