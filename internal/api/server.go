// Package api provides the HTTP API server for Mycelium.
// It uses the Echo framework to serve REST endpoints for patches, spores,
// integrations and violations, plus a WebSocket feed of engine events.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"
	"golang.org/x/time/rate"

	_ "evalgo.org/mycelium/docs" // Register API docs
	"evalgo.org/mycelium/internal/auth"
	"evalgo.org/mycelium/internal/config"
	"evalgo.org/mycelium/internal/engine"
	"evalgo.org/mycelium/internal/logging"
	"evalgo.org/mycelium/internal/metrics"
	"evalgo.org/mycelium/internal/version"
)

// Server represents the Mycelium API server.
type Server struct {
	echo       *echo.Echo
	http       *http.Server
	engine     *engine.Engine
	config     *config.Config
	wsHub      *Hub // WebSocket hub for engine events
	authMiddle *auth.Middleware
	logger     *slog.Logger
}

// New creates a new API server instance.
func New(cfg *config.Config, eng *engine.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()

	// Configure Echo
	e.HideBanner = true
	e.HidePort = true
	e.Debug = cfg.Server.Debug

	// Set custom error handler
	e.HTTPErrorHandler = HTTPErrorHandler

	hub := NewHub(logger)

	server := &Server{
		echo:       e,
		engine:     eng,
		config:     cfg,
		wsHub:      hub,
		authMiddle: auth.NewMiddleware(cfg),
		logger:     logger.With("component", "api"),
	}

	// Start WebSocket hub in background
	go hub.Run()

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures Echo middleware.
func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogMethod:    true,
		LogURI:       true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				s.logger.Warn("request failed", append(attrs, "error", v.Error)...)
				return nil
			}
			s.logger.Debug("request", attrs...)
			return nil
		},
	}))

	s.echo.Use(middleware.Recover())
	s.echo.Use(SecurityHeaders)

	if len(s.config.Security.AllowedOrigins) > 0 {
		s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: s.config.Security.AllowedOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, auth.HeaderAPIKey},
		}))
	}

	s.echo.Use(middleware.RequestID())
	s.echo.Use(s.requestLogger)

	if s.config.Security.RateLimit > 0 {
		s.echo.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(
			rate.Limit(s.config.Security.RateLimit),
		)))
	}

	s.echo.Use(ValidateContentType)
}

// requestLogger carries a logger tagged with the request id in the request
// context so engine logs can be matched to the call that caused them.
func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Response().Header().Get(echo.HeaderXRequestID)
		if id == "" {
			return next(c)
		}
		req := c.Request()
		ctx := logging.WithLogger(req.Context(), s.logger.With("request_id", id))
		c.SetRequest(req.WithContext(ctx))
		return next(c)
	}
}

// setupRoutes configures API routes.
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/docs/*", echoSwagger.WrapHandler)

	v1 := s.echo.Group("/api/v1")
	v1.GET("/version", s.getVersion)

	patches := v1.Group("/patches")
	patches.Use(ValidateQueryParams)
	patches.GET("", s.listPatches, s.authMiddle.RequireRead)
	patches.POST("", s.createPatch, s.authMiddle.RequireWrite)
	patches.POST("/jsonld", s.createPatchDocument, ValidateJSONLD, s.authMiddle.RequireWrite)
	patches.GET("/:id", s.getPatch, ValidateIDFormat, s.authMiddle.RequireRead)
	patches.POST("/:id/submit", s.submitPatch, ValidateIDFormat, s.authMiddle.RequireWrite)
	patches.POST("/:id/apply", s.applyPatch, ValidateIDFormat, s.authMiddle.RequireWrite)
	patches.POST("/:id/rollback", s.rollbackPatch, ValidateIDFormat, s.authMiddle.RequireWrite)
	patches.POST("/:id/rebase", s.rebasePatch, ValidateIDFormat, s.authMiddle.RequireWrite)

	spores := v1.Group("/spores")
	spores.GET("", s.listSpores, s.authMiddle.RequireRead)
	spores.POST("", s.createSpore, s.authMiddle.RequireWrite)
	spores.POST("/jsonld", s.createSporeDocument, ValidateJSONLD, s.authMiddle.RequireWrite)
	spores.GET("/:id", s.getSpore, ValidateIDFormat, s.authMiddle.RequireRead)
	spores.GET("/:id/validate", s.validateSpore, ValidateIDFormat, s.authMiddle.RequireRead)
	spores.POST("/:id/migrate", s.migrateSpore, ValidateIDFormat, s.authMiddle.RequireWrite)

	v1.POST("/integrate", s.integrate, s.authMiddle.RequireWrite)
	v1.POST("/plan", s.plan, s.authMiddle.RequireRead)

	violations := v1.Group("/violations")
	violations.Use(ValidateQueryParams)
	violations.GET("", s.queryViolations, s.authMiddle.RequireRead)
	violations.POST("", s.recordViolation, s.authMiddle.RequireWrite)
	violations.GET("/:id", s.getViolation, ValidateIDFormat, s.authMiddle.RequireRead)
	violations.POST("/:id/resolve", s.resolveViolation, ValidateIDFormat, s.authMiddle.RequireWrite)

	graphs := v1.Group("/graphs")
	graphs.GET("", s.listGraphs, s.authMiddle.RequireRead)
	graphs.GET("/:id/version", s.graphVersion, s.authMiddle.RequireRead)
	graphs.GET("/:id/history", s.versionHistory, s.authMiddle.RequireRead)
	graphs.GET("/:id/export", s.exportGraph, s.authMiddle.RequireRead)
	graphs.PUT("/:id", s.importGraph, s.authMiddle.RequireAdmin)
	graphs.GET("/:id/violations", s.violationHistory, s.authMiddle.RequireRead)
	graphs.GET("/:id/statistics", s.violationStatistics, s.authMiddle.RequireRead)
	graphs.POST("/:id/conformance", s.checkConformance, s.authMiddle.RequireWrite)
	graphs.GET("/:id/archive", s.archivedVersions, s.authMiddle.RequireRead)
	graphs.GET("/:id/report", s.violationReport, s.authMiddle.RequireRead)

	ws := v1.Group("/ws")
	ws.GET("/events", s.HandleWebSocket, s.authMiddle.RequireRead)
	ws.GET("/stats", s.GetWebSocketStats, s.authMiddle.RequireRead)
}

// Handler returns the root HTTP handler. The metrics endpoint is mounted
// beside the Echo router so scrapes skip auth and rate limiting.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	if s.config.Metrics.Enabled {
		r.Handle(s.config.Metrics.Path, metrics.Handler()).Methods(http.MethodGet)
	}
	r.PathPrefix("/").Handler(s.echo)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	s.logger.Info("starting Mycelium API server",
		"address", addr,
		"storage", s.config.Storage.Driver,
		"blob", s.config.Blob.Driver,
		"auth", s.config.Security.AuthEnabled,
		"debug", s.config.Server.Debug,
	)

	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
	}

	var err error
	if s.config.Server.TLSEnabled {
		err = s.http.ListenAndServeTLS(s.config.Server.TLSCert, s.config.Server.TLSKey)
	} else {
		err = s.http.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server and closes the engine.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down Mycelium API server")

	if s.http != nil {
		if err := s.http.Shutdown(ctx); err != nil {
			return fmt.Errorf("error shutting down server: %w", err)
		}
	}
	s.wsHub.Stop()

	if err := s.engine.Close(); err != nil {
		return fmt.Errorf("error closing engine: %w", err)
	}

	s.logger.Info("server shutdown complete")
	return nil
}

// healthCheck handles health check requests.
// @Summary Health check
// @Tags system
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} APIError
// @Router /health [get]
func (s *Server) healthCheck(c echo.Context) error {
	graphs, err := s.engine.ListGraphs(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
			"status":  "unhealthy",
			"error":   "storage unavailable",
			"details": err.Error(),
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "mycelium",
		"version": version.Version,
		"storage": s.config.Storage.Driver,
		"graphs":  len(graphs),
	})
}

// getVersion returns build information.
// @Summary Build information
// @Tags system
// @Produce json
// @Success 200 {object} version.Info
// @Router /version [get]
func (s *Server) getVersion(c echo.Context) error {
	return c.JSON(http.StatusOK, version.Get())
}

// BroadcastEvent sends an engine event to all WebSocket clients.
func (s *Server) BroadcastEvent(eventType EventType, data interface{}) {
	if err := s.wsHub.BroadcastEvent(Event{Type: eventType, Data: data}); err != nil {
		s.logger.Error("failed to broadcast event", "type", eventType, "error", err)
	}
}

// ServeHTTP allows Server to implement http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Handler().ServeHTTP(w, r)
}
