// Package api provides the local HTTP server: the OAuth callback listener
// and a session-aware proxy for the task API.
package api

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/Tommy-ui-del/Vue3FastAPI-To-Do/internal/analytics"
	"github.com/Tommy-ui-del/Vue3FastAPI-To-Do/internal/auth"
	"github.com/Tommy-ui-del/Vue3FastAPI-To-Do/internal/config"
	"github.com/Tommy-ui-del/Vue3FastAPI-To-Do/internal/tasks"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Server represents the local HTTP server.
type Server struct {
	cfg        *config.Config
	engine     *gin.Engine
	httpServer *http.Server
	session    *auth.Session
	tasks      *tasks.Client
	tracker    analytics.Tracker

	// limiters stores a *rate.Limiter per API key or client IP.
	limiters sync.Map

	googleDone chan error
}

// NewServer creates a new server instance.
func NewServer(cfg *config.Config, session *auth.Session, taskClient *tasks.Client) *Server {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())
	engine.Use(requestLogger())

	s := &Server{
		cfg:        cfg,
		engine:     engine,
		session:    session,
		tasks:      taskClient,
		tracker:    session.Tracker(),
		googleDone: make(chan error, 1),
	}
	s.setupRoutes()
	s.httpServer = &http.Server{
		Addr:    cfg.Addr(),
		Handler: engine,
	}

	return s
}

// Handler returns the HTTP handler serving all routes.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// setupRoutes configures all routes.
func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.healthHandler)

	// The browser lands here after Google sign-in; it cannot carry an API key.
	s.engine.GET("/callback", s.callbackPageHandler)
	s.engine.POST("/callback/token", s.callbackTokenHandler)

	protected := s.engine.Group("/")
	protected.Use(s.apiKeyAuth(), s.rateLimitMiddleware())

	authGroup := protected.Group("/auth")
	{
		authGroup.GET("/status", s.statusHandler)
		authGroup.POST("/login", s.loginHandler)
		authGroup.POST("/register", s.registerHandler)
		authGroup.POST("/logout", s.logoutHandler)
		authGroup.POST("/clear-error", s.clearErrorHandler)
		authGroup.GET("/google", s.googleHandler)
	}

	taskGroup := protected.Group("/api/tasks")
	{
		taskGroup.GET("", s.listTasksHandler)
		taskGroup.POST("", s.createTaskHandler)
		taskGroup.PATCH("/order", s.updateOrderHandler)
		taskGroup.PATCH("/:id", s.updateTaskHandler)
		taskGroup.DELETE("/:id", s.deleteTaskHandler)
	}
}

// WaitForGoogleLogin blocks until the callback route has completed a Google
// sign-in, returning the login result.
func (s *Server) WaitForGoogleLogin(ctx context.Context) error {
	select {
	case err := <-s.googleDone:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) notifyGoogleLogin(err error) {
	select {
	case s.googleDone <- err:
	default:
	}
}

// Start begins listening for HTTP requests. It returns nil once Shutdown has
// been called, including when Shutdown ran first.
func (s *Server) Start() error {
	log.Infof("Starting server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
