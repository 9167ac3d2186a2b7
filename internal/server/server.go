// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jdcruz/wmsgate/internal/auth"
	"github.com/jdcruz/wmsgate/internal/backend"
	"github.com/jdcruz/wmsgate/internal/catalog"
	"github.com/jdcruz/wmsgate/internal/config"
	"github.com/jdcruz/wmsgate/internal/digest"
	"github.com/jdcruz/wmsgate/internal/health"
	"github.com/jdcruz/wmsgate/internal/inventory"
	"github.com/jdcruz/wmsgate/internal/logging"
	"github.com/jdcruz/wmsgate/internal/metrics"
	"github.com/jdcruz/wmsgate/internal/ratelimit"
	"github.com/jdcruz/wmsgate/internal/realtime"
	"github.com/jdcruz/wmsgate/internal/receiving"
	"github.com/jdcruz/wmsgate/internal/reports"
	"github.com/jdcruz/wmsgate/internal/security"
	"github.com/jdcruz/wmsgate/internal/session"
	"github.com/jdcruz/wmsgate/internal/traces"
	"github.com/jdcruz/wmsgate/internal/validation"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// drainDelay is how long a production shutdown waits for load balancers to
// drop the instance before closing listeners.
const drainDelay = 5 * time.Second

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg           *config.Config
	client        *backend.Client
	reportsStore  *reports.Store
	digestService *digest.Service
	realtimeHub   *realtime.Hub
	healthReg     *health.Registry
	rateLimiter   *ratelimit.Limiter
	loginLimiter  *ratelimit.Limiter
	router        *gin.Engine
	httpSrv       *http.Server
	logger        *slog.Logger
	tracesStop    func(context.Context) error
	cancelRunCtx  context.CancelFunc // cancels background goroutines started in Run

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithBackendClient sets a custom RPC client (for testing against httptest)
func WithBackendClient(client *backend.Client) Option {
	return func(s *Server) {
		s.client = client
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, "json"),
	}

	// Apply options first (may set client/logger)
	for _, opt := range opts {
		opt(s)
	}

	// RPC client against the legacy backend
	if s.client == nil {
		s.client = backend.New(backend.Config{
			BaseURL:    cfg.BackendURL,
			ObjectCode: cfg.BackendObjectCode,
		})
	}
	if cfg.BackendURL == "" {
		s.logger.Warn("BACKEND_URL not set; backend routes will answer missing_config")
	} else {
		s.logger.Info("legacy backend configured", "url", cfg.BackendURL, "objectcode", cfg.BackendObjectCode)
	}

	// Reports database (optional; the endpoint answers 503 when absent)
	s.reportsStore = reports.NewStore(cfg.DatabaseURL)
	if s.reportsStore.Enabled() {
		s.logger.Info("reports database configured")
	} else {
		s.logger.Info("no reports database; /api/reports/activity disabled")
	}

	// Realtime hub for dashboard WebSocket streaming
	s.realtimeHub = realtime.NewHub(logging.Component(s.logger, "realtime"))

	// Digest service with the log-backed sender; deployments that need real
	// delivery swap the sender behind an SMTP relay in front of the gateway.
	s.digestService = digest.NewService(s.client, digest.LogSender{Logger: logging.Component(s.logger, "digest")}).
		WithEvents(&digestEventEmitter{hub: s.realtimeHub, store: s.reportsStore, logger: s.logger})

	// Health checkers
	s.healthReg = health.NewRegistry()
	s.healthReg.Register("backend", s.backendChecker())
	if s.reportsStore.Enabled() {
		s.healthReg.Register("reports_db", s.reportsChecker())
	}

	// Configure gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS
	s.router.Use(security.CORSMiddleware(s.cfg.AllowedOrigins))

	// Request size limit (1MB)
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Rate limiting
	s.rateLimiter = ratelimit.New(ratelimit.Config{
		RequestsPerMinute: s.cfg.RateLimitRPM,
		BurstSize:         20,
		CleanupInterval:   time.Minute,
	})
	s.router.Use(s.rateLimiter.Middleware())

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())

	// Access routing: /login and /dashboard redirects from cookie state.
	// Runs after logging so redirects show up in the request log.
	s.router.Use(session.EdgeGate(s.cfg.CookieSecure))
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		// Add to context
		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		// Set response header
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		// Log level based on status code
		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// PAGES - the browser entry points guarded by the edge gate
	s.router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/dashboard")
	})
	s.router.GET("/login", loginPageHandler)
	s.router.GET("/dashboard", dashboardPageHandler)
	s.router.GET("/dashboard/*rest", dashboardPageHandler)

	// WebSocket for real-time streaming
	s.router.GET("/ws", func(c *gin.Context) {
		s.realtimeHub.HandleWebSocket(c.Writer, c.Request)
	})

	api := s.router.Group("/api")
	api.GET("/health", s.healthHandler) // dashboard polls this path

	// AUTH ROUTES (public; login gets the stricter bucket since it relays
	// credentials to the backend)
	authHandler := auth.NewHandler(s.client, s.cfg.CookieSecure)
	s.loginLimiter = ratelimit.New(ratelimit.LoginConfig(s.cfg.LoginRateRPM))
	api.POST("/auth/login", s.loginLimiter.Middleware(), authHandler.Login)
	authHandler.RegisterRoutes(api)

	// PROTECTED ROUTES (require a passing session cookie)
	protected := api.Group("")
	protected.Use(session.RequireSession())
	{
		catalog.NewHandler(s.client).RegisterRoutes(protected)
		inventory.NewHandler(s.client).RegisterRoutes(protected)

		receivingHandler := receiving.NewHandler(s.client).
			WithEvents(&receivingEventEmitter{hub: s.realtimeHub, store: s.reportsStore, logger: s.logger})
		receivingHandler.RegisterRoutes(protected)

		digest.NewHandler(s.digestService).RegisterRoutes(protected)
		reports.NewHandler(s.reportsStore).RegisterRoutes(protected)
	}
}

// -----------------------------------------------------------------------------
// Health handlers
// -----------------------------------------------------------------------------

// HealthResponse for health check endpoints
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp string            `json:"timestamp"`
}

// backendChecker probes the legacy backend with a ping command. A rejected
// ping still means the PHP side is up and answering; only transport failure
// or missing configuration counts as unhealthy.
func (s *Server) backendChecker() health.Checker {
	return func(ctx context.Context) health.Status {
		res := s.client.Call(ctx, backend.Command{Type: "ping"})
		switch res.Kind {
		case backend.KindUnreachable:
			return health.Unhealthy("backend", "unreachable")
		case backend.KindMissingConfig:
			return health.Unhealthy("backend", "not configured")
		}
		return health.Healthy("backend")
	}
}

func (s *Server) reportsChecker() health.Checker {
	return func(ctx context.Context) health.Status {
		if err := s.reportsStore.Ping(ctx); err != nil {
			return health.Unhealthy("reports_db", err.Error())
		}
		return health.Healthy("reports_db")
	}
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	healthy, statuses := s.healthReg.CheckAll(ctx)

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   "0.1.0",
		Checks:    health.Summarize(statuses),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	// Create a cancellable context for background goroutines so Shutdown() can stop them.
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	// Tracing (no-op without an OTLP endpoint)
	stop, err := traces.Init(runCtx, s.cfg.OTLPEndpoint, s.logger)
	if err != nil {
		s.logger.Warn("tracing init failed, continuing without", "error", err)
	} else {
		s.tracesStop = stop
	}

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Channel to catch server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		s.logger.Info("starting server",
			"port", s.cfg.Port,
			"env", s.cfg.Env,
		)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Start realtime hub
	go s.realtimeHub.Run(runCtx)

	// The reports pool opens lazily on first query; start sampling its
	// stats once it exists.
	if s.reportsStore.Enabled() {
		go s.startDBStatsWhenReady(runCtx)
	}

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

func (s *Server) startDBStatsWhenReady(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if db := s.reportsStore.DB(); db != nil {
				metrics.StartDBStatsCollector(ctx, db, 15*time.Second)
				return
			}
		}
	}
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Cancel the context for all background goroutines (hub, collectors)
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	// Give load balancers time to stop sending traffic. Skipped outside
	// production so dev and test shutdowns stay instant.
	if s.cfg.IsProduction() {
		time.Sleep(drainDelay)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	// Stop rate limiter cleanup goroutines
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	if s.loginLimiter != nil {
		s.loginLimiter.Stop()
	}

	// Flush traces
	if s.tracesStop != nil {
		if err := s.tracesStop(ctx); err != nil {
			s.logger.Error("traces shutdown error", "error", err)
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func generateRequestID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}

// -----------------------------------------------------------------------------
// Realtime adapters
// -----------------------------------------------------------------------------

// receivingEventEmitter adapts realtime.Hub (and the activity log) to
// receiving.EventEmitter.
type receivingEventEmitter struct {
	hub    *realtime.Hub
	store  *reports.Store
	logger *slog.Logger
}

func (e *receivingEventEmitter) EmitConfirmed(company, branch, documentNo, confirmedBy string) {
	if e.hub != nil {
		e.hub.BroadcastReceivingConfirmed(company, branch, documentNo, confirmedBy)
	}
	if e.store != nil && e.store.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		detail := fmt.Sprintf("document %s (%s/%s)", documentNo, company, branch)
		if err := e.store.RecordActivity(ctx, confirmedBy, "receiving_confirmed", detail); err != nil {
			e.logger.Warn("activity record failed", "error", err)
		}
	}
}

// digestEventEmitter adapts realtime.Hub (and the activity log) to
// digest.EventEmitter.
type digestEventEmitter struct {
	hub    *realtime.Hub
	store  *reports.Store
	logger *slog.Logger
}

func (e *digestEventEmitter) EmitDigestSent(company, branch string, flagged int) {
	if e.hub != nil {
		e.hub.BroadcastDigestSent(company, branch, flagged)
	}
	if e.store != nil && e.store.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		detail := fmt.Sprintf("%d item(s) flagged (%s/%s)", flagged, company, branch)
		if err := e.store.RecordActivity(ctx, "system", "digest_sent", detail); err != nil {
			e.logger.Warn("activity record failed", "error", err)
		}
	}
}
