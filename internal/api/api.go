// Package api exposes the analysis pipeline over HTTP and websocket using gin.
//
// Files:
//   - api.go: server dependencies and routing
//   - handler.go: HTTP request handlers
//   - middleware.go: request id, access log and CORS middleware
//   - validator.go: query validation
//   - hub.go, client.go: websocket fan-out of published analyses
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"CryptoLens/internal/analysis"
	"CryptoLens/internal/metrics"
	"CryptoLens/internal/model"
	"CryptoLens/internal/recorder"
)

const (
	DefaultTimeout      = 30 * time.Second
	ServiceName         = "cryptolens"
	ServiceVersion      = "1.0.0"
	RequestIDContextKey = "request_id"
	RequestIDHeaderKey  = "X-Request-ID"
)

// SeriesSource is the cached provider chain.
type SeriesSource interface {
	GetCryptoData(ctx context.Context, pair model.AssetPair, tf model.Timeframe, limit int) (*model.PriceSeries, error)
	Invalidate(pair model.AssetPair, tf model.Timeframe) bool
	Providers() []string
	BreakerStates() map[string]string
}

// Analyzer produces single and multi-timeframe reports.
type Analyzer interface {
	Analyze(ctx context.Context, pair model.AssetPair, tf model.Timeframe, limit int) (*analysis.Report, error)
	MultiTimeframe(ctx context.Context, pair model.AssetPair, tf model.Timeframe) (*analysis.MTFReport, error)
}

// Server handles HTTP requests using gin.
type Server struct {
	source    SeriesSource
	analyzer  Analyzer
	history   recorder.Recorder
	metrics   *metrics.Metrics
	hub       *Hub
	validator *Validator
	started   time.Time
}

// NewServer wires the handlers. history, m and hub may be nil.
func NewServer(source SeriesSource, analyzer Analyzer, history recorder.Recorder, m *metrics.Metrics, hub *Hub) *Server {
	if history == nil {
		history = recorder.NewNoopRecorder()
	}
	return &Server{
		source:    source,
		analyzer:  analyzer,
		history:   history,
		metrics:   m,
		hub:       hub,
		validator: NewValidator(),
		started:   time.Now(),
	}
}

// SetupRoutes configures all routes.
func (s *Server) SetupRoutes() *gin.Engine {
	router := gin.New()

	router.Use(requestIDMiddleware())
	router.Use(ginLoggerMiddleware())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	router.GET("/health", s.HealthCheck)
	if s.metrics != nil {
		router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
	if s.hub != nil {
		router.GET("/ws", func(c *gin.Context) { s.hub.ServeWS(c.Writer, c.Request) })
	}

	v1 := router.Group("/api")
	v1.GET("/pairs", s.GetPairs)
	v1.GET("/series", s.GetSeries)
	v1.GET("/analysis", s.GetAnalysis)
	v1.GET("/mtf", s.GetMultiTimeframe)
	v1.GET("/history", s.GetHistory)
	v1.DELETE("/cache", s.DeleteCache)

	return router
}

// NewHTTPServer builds the http.Server for addr.
func (s *Server) NewHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}
