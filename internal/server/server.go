package server

import (
	"log/slog"
	"net/http"
	"sync"

	glog "github.com/gin-contrib/slog"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hansbyte/pairgate/internal/config"
	"github.com/hansbyte/pairgate/internal/observability"
	"github.com/hansbyte/pairgate/internal/session"
)

// Server implements the HTTP API server for the pairing service
type Server struct {
	orc     *session.Orchestrator
	hub     *session.Hub
	cfg     *config.Config
	sockets map[*Client]struct{}
	mu      sync.Mutex
}

// NewServer creates a new HTTP API server
func NewServer(
	orc *session.Orchestrator, hub *session.Hub, cfg *config.Config,
) *Server {
	return &Server{
		orc:     orc,
		hub:     hub,
		cfg:     cfg,
		sockets: map[*Client]struct{}{},
	}
}

// SetupRoutes configures and returns the HTTP router with all endpoints
func (s *Server) SetupRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(glog.SetLogger(
		glog.WithLogger(func(c *gin.Context, l *slog.Logger) *slog.Logger {
			return slog.Default()
		}),
	))
	router.Use(observability.RequestMetrics())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set(
			"Access-Control-Allow-Methods",
			"GET, OPTIONS",
		)
		c.Writer.Header().Set(
			"Access-Control-Allow-Headers",
			"Content-Type, Authorization",
		)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})

	// Pairing page
	router.GET("/", s.handleIndex)

	// Pairing code issuance
	router.GET("/code", s.handleCode)
	router.GET("/pair", s.handleCode)

	// Health and metrics
	router.GET("/health", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Session event stream
	router.GET("/events", s.handleEvents)

	return router
}

func (s *Server) registerWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets[c] = struct{}{}
}

func (s *Server) unregisterWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sockets, c)
}

// CloseWebSockets closes all active WebSocket connections.
func (s *Server) CloseWebSockets() {
	s.mu.Lock()
	conns := make([]*Client, 0, len(s.sockets))
	for c := range s.sockets {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}
