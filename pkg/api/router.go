package api

import (
	"context"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mbras/feedpulse/pkg/ingest"
	"github.com/mbras/feedpulse/pkg/storage"
)

// Server is the HTTP API server.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	handlers   *Handlers
}

// NewServer builds a Server with routes registered, wiring the online
// analytic engine and bulk ingestion fast path behind POST /analyze-feed
// and the persistence layer behind GET /messages (§6).
func NewServer(ginMode string, store *storage.Client, ingestEngine *ingest.Engine, publisher Publisher) *Server {
	gin.SetMode(ginMode)
	engine := gin.New()

	s := &Server{
		engine:   engine,
		handlers: NewHandlers(store, ingestEngine, publisher),
	}

	engine.Use(gin.Recovery())
	engine.Use(securityHeaders())
	engine.Use(correlationID())

	engine.GET("/health", Health)
	engine.GET("/ready", Ready(store))
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := engine.Group("/api/v1")
	v1.POST("/analyze-feed", s.handlers.AnalyzeFeed)
	v1.GET("/messages", s.handlers.ListMessages)

	return s
}

// Start serves the API on addr, blocking until the server stops.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.engine}
	return s.httpServer.ListenAndServe()
}

// StartWithListener serves the API on a pre-created listener, used by test
// infrastructure to bind a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.engine}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
