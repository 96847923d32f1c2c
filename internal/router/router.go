// Package router sets up all HTTP routes for the server.
package router

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/jerin288/jdt-tool-web/internal/handlers"
	"github.com/jerin288/jdt-tool-web/internal/logging"
	"github.com/jerin288/jdt-tool-web/internal/middleware"
)

// Options configure route-level behaviour that is not part of a handler.
type Options struct {
	AdminKey       string
	AllowedOrigins []string
	StaticDir      string
}

// Setup creates and configures the Gin router with all routes.
func Setup(h *handlers.Handler, auth *middleware.Auth, limiter *middleware.RateLimiter, opts Options) *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = 8 << 20 // larger uploads spill to temp files
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(logging.RequestLogger())
	r.Use(middleware.CORS(opts.AllowedOrigins))

	mountStatic(r, opts.StaticDir)

	// --- Public Routes (no auth required) ---
	r.GET("/api/v1/health", h.HealthCheck)
	r.GET("/cleanup", h.Cleanup)
	r.GET("/admin/test", h.AdminTest)

	// --- Auth Routes (public, rate limited per client) ---
	authGroup := r.Group("/auth")
	authGroup.Use(limiter.RateLimit("auth"))
	{
		authGroup.POST("/signup", h.Signup)
		authGroup.POST("/login", h.Login)
		authGroup.POST("/logout", h.Logout)
		authGroup.POST("/magic-link", h.RequestMagicLink)
		authGroup.GET("/magic/:token", h.MagicLogin)
	}

	// --- Session or Bearer token required ---
	r.POST("/upload", limiter.RateLimit("upload"), auth.RequireUser(), h.Upload)

	protected := r.Group("/")
	protected.Use(auth.RequireUser())
	{
		protected.GET("/progress/:task_id", h.Progress)
		protected.GET("/preview-data/:task_id", h.PreviewData)
		protected.GET("/download/:filename", h.Download)
		protected.GET("/history", h.History)
	}

	// user-status must answer anonymous visitors too
	r.GET("/api/user-status", auth.OptionalUser(), h.UserStatus)

	api := r.Group("/api")
	api.Use(auth.RequireUser())
	{
		api.GET("/credits", h.Credits)
		api.GET("/referral-stats", h.ReferralStats)
		api.GET("/profile", h.Profile)
		api.GET("/credit-history", h.CreditHistory)
	}

	// --- Admin Routes (admin key in body or X-Admin-Key) ---
	admin := r.Group("/admin")
	admin.Use(middleware.AdminAuth(opts.AdminKey))
	{
		admin.POST("/add_credits", h.AddCredits)
		admin.POST("/check_credits", h.CheckCredits)
	}

	return r
}

// mountStatic serves the bundled front end when its directory exists.
func mountStatic(r *gin.Engine, dir string) {
	index := filepath.Join(dir, "index.html")
	if dir == "" {
		mountPlaceholder(r)
		return
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		logging.Warn("⚠️  Static directory not found, front end disabled", "dir", dir)
		mountPlaceholder(r)
		return
	}

	r.Static("/static", dir)
	if _, err := os.Stat(index); err == nil {
		r.StaticFile("/", index)
	} else {
		mountPlaceholder(r)
	}
	logging.Info("✅ Serving front end", "dir", dir)
}

func mountPlaceholder(r *gin.Engine) {
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "JDT PDF Converter"})
	})
}
