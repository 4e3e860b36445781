// Package api exposes the labeling workflow over an HTTP JSON API.
package api

import (
	"crypto/rand"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/huelab/huelab-go/internal/classifier"
	"github.com/huelab/huelab-go/internal/conf"
	"github.com/huelab/huelab-go/internal/datastore"
	"github.com/huelab/huelab-go/internal/errors"
	"github.com/huelab/huelab-go/internal/logging"
	"github.com/huelab/huelab-go/internal/observability"
)

// Controller manages the API routes and handlers.
type Controller struct {
	Echo       *echo.Echo
	Group      *echo.Group
	DS         datastore.Interface
	Settings   *conf.Settings
	Classifier classifier.Classifier

	apiLogger *slog.Logger
	logCloser func() error
	metrics   *observability.Metrics

	// Re-analysis run state. One run at a time.
	runMutex  sync.Mutex
	activeRun *runState

	startTime time.Time
}

// New creates the API controller and registers all routes under /api/v1.
func New(e *echo.Echo, ds datastore.Interface, settings *conf.Settings,
	clf classifier.Classifier, metrics *observability.Metrics) (*Controller, error) {
	if ds == nil {
		return nil, errors.Newf("api requires a datastore").
			Component("api").
			Category(errors.CategoryConfiguration).
			Build()
	}

	c := &Controller{
		Echo:       e,
		DS:         ds,
		Settings:   settings,
		Classifier: clf,
		apiLogger:  logging.ForService("api"),
		metrics:    metrics,
		startTime:  time.Now(),
	}

	// The API keeps its own rotated log file when file logging is enabled.
	if settings != nil && settings.Main.Log.Enabled {
		level := slog.LevelInfo
		if settings.Debug {
			level = slog.LevelDebug
		}
		fileLogger, closeFn, err := logging.NewFileLogger("logs/api.log", "api", level)
		if err != nil {
			c.apiLogger.Warn("Failed to open API log file, logging to default output", "error", err)
		} else {
			c.apiLogger = fileLogger
			c.logCloser = closeFn
		}
	}

	e.Use(middleware.Recover())
	c.Group = e.Group("/api/v1")
	c.initRoutes()
	return c, nil
}

func (c *Controller) initRoutes() {
	c.Group.GET("/health", c.HealthCheck)

	c.initRecordRoutes()
	c.initHierarchyRoutes()
	c.initReanalysisRoutes()
	c.initCatalogRoutes()

	if c.metrics != nil {
		c.Echo.GET("/metrics", echo.WrapHandler(c.metrics.Handler()))
	}
}

// Shutdown releases resources held by the controller.
func (c *Controller) Shutdown() {
	if c.logCloser != nil {
		_ = c.logCloser()
	}
}

// HealthCheck reports service and database health.
func (c *Controller) HealthCheck(ctx echo.Context) error {
	response := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(c.startTime).String(),
	}

	dbStatus := "connected"
	if _, err := c.DS.CountByStatus(); err != nil {
		dbStatus = "disconnected"
		response["status"] = "degraded"
		response["database_error"] = err.Error()
	}
	response["database_status"] = dbStatus

	return ctx.JSON(http.StatusOK, response)
}

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// generateCorrelationID returns a short random ID for cross-referencing error
// responses with log lines.
func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "err-rand"
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}

// HandleError logs the error and returns a JSON error response. Not-found and
// validation failures map to their natural HTTP codes regardless of the
// suggested code.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	switch {
	case errors.HasCategory(err, errors.CategoryNotFound):
		code = http.StatusNotFound
	case errors.HasCategory(err, errors.CategoryValidation):
		code = http.StatusBadRequest
	case errors.HasCategory(err, errors.CategoryState):
		code = http.StatusConflict
	}

	resp := ErrorResponse{
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
	if err != nil {
		resp.Error = err.Error()
	}

	c.apiLogger.Error("API error",
		"correlation_id", resp.CorrelationID,
		"message", message,
		"error", resp.Error,
		"code", code,
		"path", ctx.Request().URL.Path,
		"method", ctx.Request().Method)

	return ctx.JSON(code, resp)
}
