package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"CryptoLens/internal/collector"
	"CryptoLens/internal/model"
)

func timeframeParam(c *gin.Context) string {
	if tf := c.Query("timeframe"); tf != "" {
		return tf
	}
	return c.Query("tf")
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(c *gin.Context) {
	body := gin.H{
		"status":    "OK",
		"service":   ServiceName,
		"version":   ServiceVersion,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"providers": s.source.Providers(),
		"breakers":  s.source.BreakerStates(),
	}
	if s.hub != nil {
		body["ws_clients"] = s.hub.ClientCount()
	}
	c.JSON(http.StatusOK, body)
}

// GetPairs handles GET /api/pairs.
func (s *Server) GetPairs(c *gin.Context) {
	pairs := model.SupportedPairs()
	names := make([]string, len(pairs))
	for i, p := range pairs {
		names[i] = p.String()
	}
	c.JSON(http.StatusOK, gin.H{
		"pairs":      names,
		"timeframes": model.AllTimeframes(),
	})
}

// GetSeries handles GET /api/series.
func (s *Server) GetSeries(c *gin.Context) {
	pair, tf, limit, err := s.validator.ValidateSeriesRequest(c.Query("pair"), timeframeParam(c), c.Query("limit"))
	if err != nil {
		s.handleValidationError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), DefaultTimeout)
	defer cancel()
	series, err := s.source.GetCryptoData(ctx, pair, tf, limit)
	if err != nil {
		s.handlePipelineError(c, err)
		return
	}
	c.JSON(http.StatusOK, series)
}

// GetAnalysis handles GET /api/analysis.
func (s *Server) GetAnalysis(c *gin.Context) {
	pair, tf, limit, err := s.validator.ValidateSeriesRequest(c.Query("pair"), timeframeParam(c), c.Query("limit"))
	if err != nil {
		s.handleValidationError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), DefaultTimeout)
	defer cancel()
	report, err := s.analyzer.Analyze(ctx, pair, tf, limit)
	if err != nil {
		s.handlePipelineError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetMultiTimeframe handles GET /api/mtf.
func (s *Server) GetMultiTimeframe(c *gin.Context) {
	pair, err := s.validator.ValidatePair(c.Query("pair"))
	if err != nil {
		s.handleValidationError(c, err)
		return
	}
	tf, err := s.validator.ValidateTimeframe(timeframeParam(c))
	if err != nil {
		s.handleValidationError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), DefaultTimeout)
	defer cancel()
	report, err := s.analyzer.MultiTimeframe(ctx, pair, tf)
	if err != nil {
		s.handlePipelineError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetHistory handles GET /api/history.
func (s *Server) GetHistory(c *gin.Context) {
	pair, err := s.validator.ValidatePair(c.Query("pair"))
	if err != nil {
		s.handleValidationError(c, err)
		return
	}
	tf, err := s.validator.ValidateTimeframe(timeframeParam(c))
	if err != nil {
		s.handleValidationError(c, err)
		return
	}
	n, err := s.validator.ValidateLimit(c.Query("limit"), DefaultHistory, MaxHistory)
	if err != nil {
		s.handleValidationError(c, err)
		return
	}

	records, err := s.history.RecentAnalyses(pair.String(), string(tf), n)
	if err != nil {
		s.handleError(c, err, http.StatusInternalServerError, "Internal server error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"pair": pair.String(), "timeframe": tf, "analyses": records})
}

// DeleteCache handles DELETE /api/cache.
func (s *Server) DeleteCache(c *gin.Context) {
	pair, err := s.validator.ValidatePair(c.Query("pair"))
	if err != nil {
		s.handleValidationError(c, err)
		return
	}
	tf, err := s.validator.ValidateTimeframe(timeframeParam(c))
	if err != nil {
		s.handleValidationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": s.source.Invalidate(pair, tf)})
}

// handlePipelineError maps pipeline failures onto HTTP statuses. Exhaustion
// is reported as 503 with fallback=true so clients can show a placeholder.
func (s *Server) handlePipelineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, collector.ErrNoProviderSucceeded):
		log.Printf("[WARN] request_id=%s %s %s: %v", requestID(c), c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":      "market data is temporarily unavailable from all providers",
			"fallback":   true,
			"request_id": requestID(c),
		})
	case errors.Is(err, context.DeadlineExceeded):
		s.handleError(c, err, http.StatusGatewayTimeout, "Request timed out")
	default:
		s.handleError(c, err, http.StatusInternalServerError, "Internal server error")
	}
}

// handleError logs the error and sends the response.
func (s *Server) handleError(c *gin.Context, err error, statusCode int, userMessage string) {
	id := requestID(c)
	log.Printf("[ERROR] request_id=%s %s %s status=%d: %v", id, c.Request.Method, c.Request.URL.Path, statusCode, err)
	c.JSON(statusCode, gin.H{
		"error":      userMessage,
		"request_id": id,
	})
}

func (s *Server) handleValidationError(c *gin.Context, err error) {
	s.handleError(c, err, http.StatusBadRequest, err.Error())
}
