// Package handlers contains HTTP handler functions for the server.
//
// Go Pattern: Handlers in Gin receive a *gin.Context which provides:
// - Request data (params, query, body, headers)
// - Response methods (JSON, String, Status)
// - Middleware data (c.Get/c.Set)
//
// We group related handlers into a struct (Handler) that holds shared
// dependencies instead of reaching for globals.
package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jerin288/jdt-tool-web/internal/database"
	"github.com/jerin288/jdt-tool-web/internal/middleware"
	"github.com/jerin288/jdt-tool-web/internal/models"
	"github.com/jerin288/jdt-tool-web/internal/services/accounts"
	"github.com/jerin288/jdt-tool-web/internal/services/cleanup"
	"github.com/jerin288/jdt-tool-web/internal/services/ledger"
	"github.com/jerin288/jdt-tool-web/internal/services/mailer"
	"github.com/jerin288/jdt-tool-web/internal/services/progress"
	"github.com/jerin288/jdt-tool-web/internal/services/worker"
)

// Settings are the plain values handlers need from the config.
type Settings struct {
	Version           string
	BaseURL           string
	WorkDir           string
	MaxUploadBytes    int64
	DownloadRetention time.Duration
}

// Handler holds shared dependencies for all HTTP handlers.
// Go Pattern: Dependency injection via struct fields. Instead of global
// variables or service locators, we pass dependencies explicitly.
// This makes testing easy: just create a Handler with test dependencies.
type Handler struct {
	DB       *database.DB
	Accounts *accounts.Service
	Ledger   *ledger.Ledger
	Tasks    progress.Store
	Worker   *worker.Pool
	Auth     *middleware.Auth
	Mailer   *mailer.Service
	Janitor  *cleanup.Janitor
	Settings Settings

	// pendingRemoval holds output files with a scheduled deletion, so
	// repeated downloads do not stack timers.
	pendingRemoval sync.Map
}

// NewHandler creates a new handler with all dependencies.
func NewHandler(db *database.DB, accts *accounts.Service, l *ledger.Ledger, tasks progress.Store,
	wp *worker.Pool, auth *middleware.Auth, mail *mailer.Service, janitor *cleanup.Janitor, settings Settings) *Handler {
	return &Handler{
		DB:       db,
		Accounts: accts,
		Ledger:   l,
		Tasks:    tasks,
		Worker:   wp,
		Auth:     auth,
		Mailer:   mail,
		Janitor:  janitor,
		Settings: settings,
	}
}

// respondError writes the standard error body.
func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, models.ErrorResponse{Error: code, Message: message, Code: status})
}

// HealthCheck returns the server health status.
// GET /api/v1/health
func (h *Handler) HealthCheck(c *gin.Context) {
	// Check database connectivity
	status := "ok"
	dbStatus := "healthy"
	if err := h.DB.HealthCheck(c.Request.Context()); err != nil {
		dbStatus = "unhealthy: " + err.Error()
		status = "degraded"
	}

	c.JSON(http.StatusOK, models.HealthResponse{
		Status:      status,
		Version:     h.Settings.Version,
		Database:    dbStatus,
		Workers:     h.Worker.WorkerCount(),
		QueueLength: h.Worker.QueueSize(),
		TaskStore:   h.Tasks.Name(),
	})
}
