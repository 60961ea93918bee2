package server

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"verbatim/internal/config"
	"verbatim/internal/endpoints"

	"github.com/gin-gonic/gin"
)

// Server wraps the HTTP server
type Server struct {
	httpServer *http.Server
	router     *gin.Engine
}

// NewServer creates a new HTTP server instance
func NewServer(port string, deps endpoints.Deps) *Server {
	// Set Gin mode based on environment
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add essential middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Setup all routes
	endpoints.SetupRoutes(router, deps)

	// Uploads run into the hours on slow links; only the read timeout on
	// headers is bounded.
	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
	}
}

// Start starts the HTTP server, with TLS when a certificate is configured.
func (s *Server) Start() error {
	if config.SSLCertFile != "" && config.SSLKeyFile != "" {
		slog.Info("Starting HTTPS server", "address", s.httpServer.Addr)
		return s.httpServer.ListenAndServeTLS(config.SSLCertFile, config.SSLKeyFile)
	}
	slog.Info("Starting HTTP server", "address", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
