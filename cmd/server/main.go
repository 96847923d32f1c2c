// Package main is the entry point for the JDT PDF converter server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/jerin288/jdt-tool-web/internal/config"
	"github.com/jerin288/jdt-tool-web/internal/database"
	"github.com/jerin288/jdt-tool-web/internal/handlers"
	"github.com/jerin288/jdt-tool-web/internal/logging"
	"github.com/jerin288/jdt-tool-web/internal/middleware"
	"github.com/jerin288/jdt-tool-web/internal/router"
	"github.com/jerin288/jdt-tool-web/internal/services/accounts"
	"github.com/jerin288/jdt-tool-web/internal/services/cleanup"
	"github.com/jerin288/jdt-tool-web/internal/services/converter"
	"github.com/jerin288/jdt-tool-web/internal/services/ledger"
	"github.com/jerin288/jdt-tool-web/internal/services/mailer"
	"github.com/jerin288/jdt-tool-web/internal/services/pdf"
	"github.com/jerin288/jdt-tool-web/internal/services/progress"
	"github.com/jerin288/jdt-tool-web/internal/services/worker"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func fatal(msg string, err error) {
	logging.Error(msg, "error", err)
	os.Exit(1)
}

func main() {
	// Step 1: Load Configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logging.InitLogger(cfg.Logger.File, cfg.Logger.MaxSizeMB, cfg.Logger.MaxBackups,
		cfg.Logger.MaxAgeDays, cfg.Logger.Compress, cfg.Logger.Level)
	logging.Info("🚀 JDT PDF Converter starting", "version", Version)
	logging.Info("📋 Config loaded", "port", cfg.Port, "workers", cfg.WorkerCount, "gin_mode", cfg.GinMode)

	gin.SetMode(cfg.GinMode)

	// Step 2: Connect to Database
	db, err := database.New(cfg.DatabaseURL, cfg.DatabaseDriver)
	if err != nil {
		fatal("❌ Failed to connect to database", err)
	}
	defer db.Close()
	logging.Info("✅ Database connected", "driver", db.DriverName())

	if err := db.RunMigrations(); err != nil {
		fatal("❌ Migration failed", err)
	}

	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		fatal("❌ Failed to create work directory", err)
	}

	// Step 3: Task store and rate limiter. Redis lets several instances
	// share both; without it everything stays in this process.
	var (
		tasks   progress.Store
		limiter *middleware.RateLimiter
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			fatal("❌ Invalid REDIS_URL", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			fatal("❌ Failed to connect to Redis", err)
		}
		tasks = progress.NewRedisStore(rdb, cfg.TaskMaxAge)
		limiter = middleware.NewRedisRateLimiter(rdb, cfg.AuthRateLimit)
		logging.Info("✅ Redis connected (shared task store and rate limits)")
	} else {
		tasks = progress.NewMemoryStore()
		limiter = middleware.NewRateLimiter(cfg.AuthRateLimit)
		logging.Warn("⚠️  No REDIS_URL set, tasks and rate limits are kept in memory")
	}
	defer limiter.Stop()

	// Step 4: Create Services
	l := ledger.New(db, ledger.Policy{
		SignupBonus:    cfg.SignupBonusCredits,
		ReferralBonus:  cfg.ReferralBonusCredits,
		DailyAllowance: cfg.DailyFreeCredits,
	})
	accts := accounts.New(db, l)
	conv := converter.New(pdf.LibraryOpener{}, cfg.WorkDir)

	sender := mailer.NewSender(cfg.SMTP)
	if cfg.SMTP.Enabled() {
		logging.Info("✅ SMTP configured, magic links will be emailed", "host", cfg.SMTP.Host)
	} else {
		logging.Warn("⚠️  SMTP not configured, magic links are only logged")
	}
	mail := mailer.NewService(sender)

	if cfg.AdminKey == "" {
		logging.Warn("⚠️  No ADMIN_KEY set, admin endpoints are disabled")
	}

	// Step 5: Create and Start Worker Pool
	wp := worker.NewPool(cfg.WorkerCount, cfg.JobQueueSize, conv, tasks, db, l)
	wp.Start()

	janitor := cleanup.New(cfg.WorkDir, cfg.FileMaxAge, cfg.TaskMaxAge, tasks, db, l)
	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	janitorDone := janitor.Start(janitorCtx, cfg.CleanupInterval)

	// Step 6: Setup HTTP Router
	auth := middleware.NewAuth(db, cfg.JWTSecret, cfg.SessionSecret, cfg.SessionMaxAge, cfg.GinMode == gin.ReleaseMode)
	h := handlers.NewHandler(db, accts, l, tasks, wp, auth, mail, janitor, handlers.Settings{
		Version:           Version,
		BaseURL:           cfg.BaseURL,
		WorkDir:           cfg.WorkDir,
		MaxUploadBytes:    cfg.MaxUploadBytes(),
		DownloadRetention: cfg.DownloadRetention,
	})
	r := router.Setup(h, auth, limiter, router.Options{
		AdminKey:       cfg.AdminKey,
		AllowedOrigins: cfg.AllowedOrigins,
		StaticDir:      cfg.StaticDir,
	})

	// Step 7: Start the HTTP Server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logging.Info("🌐 Server listening", "url", "http://localhost:"+cfg.Port)
		logging.Info("📖 Health check", "url", "http://localhost:"+cfg.Port+"/api/v1/health")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("❌ Server failed", err)
		}
	}()

	// Step 8: Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	logging.Info("🛑 Shutting down gracefully", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("⚠️  Server forced to shutdown", "error", err)
	}

	// Queued conversions finish before the database closes.
	wp.Stop(ctx)
	stopJanitor()
	<-janitorDone
	mail.Shutdown()

	logging.Info("👋 Server stopped. Goodbye!")
}
