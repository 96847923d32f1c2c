// Package config handles application configuration.
//
// Go Pattern: Configuration via environment variables with sensible defaults.
// An optional YAML file (CONFIG_PATH) is read first; environment variables
// always win over it, so a container can override a single value without
// rewriting the file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Development defaults that must never reach production.
const (
	devJWTSecret     = "dev-jwt-secret-change-in-production"
	devSessionSecret = "dev-session-secret-change-in-production"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port      string `yaml:"port"`
	GinMode   string `yaml:"gin_mode"` // "debug", "release", or "test"
	BaseURL   string `yaml:"base_url"` // Public URL used in emailed links
	StaticDir string `yaml:"static_dir"`

	// Database settings
	DatabaseURL    string `yaml:"database_url"`
	DatabaseDriver string `yaml:"database_driver"` // "postgres", "pgx" or "sqlite"; empty = infer from URL

	// Authentication
	JWTSecret     string        `yaml:"jwt_secret"`
	SessionSecret string        `yaml:"session_secret"`
	SessionMaxAge time.Duration `yaml:"session_max_age"`
	AdminKey      string        `yaml:"admin_key"`

	// Conversion settings
	WorkDir           string        `yaml:"work_dir"`
	MaxUploadMB       int           `yaml:"max_upload_mb"`
	WorkerCount       int           `yaml:"worker_count"`
	JobQueueSize      int           `yaml:"job_queue_size"`
	TaskMaxAge        time.Duration `yaml:"task_max_age"`
	FileMaxAge        time.Duration `yaml:"file_max_age"`
	DownloadRetention time.Duration `yaml:"download_retention"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval"`

	// Credits
	SignupBonusCredits   int `yaml:"signup_bonus_credits"`
	ReferralBonusCredits int `yaml:"referral_bonus_credits"`
	DailyFreeCredits     int `yaml:"daily_free_credits"`

	// Redis is optional: shared task store and rate limiting
	RedisURL      string `yaml:"redis_url"`
	AuthRateLimit int    `yaml:"auth_rate_limit"` // Requests per minute per client

	// CORS
	AllowedOrigins []string `yaml:"allowed_origins"`

	SMTP   SMTPConfig   `yaml:"smtp"`
	Logger LoggerConfig `yaml:"logger"`
}

// SMTPConfig configures outgoing mail for magic links.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// Enabled reports whether enough SMTP settings are present to send mail.
func (s SMTPConfig) Enabled() bool {
	return s.Host != "" && s.From != ""
}

// LoggerConfig configures zerolog output and lumberjack rotation.
type LoggerConfig struct {
	File       string `yaml:"file"`
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		Port:      "5000",
		GinMode:   "debug",
		BaseURL:   "http://localhost:5000",
		StaticDir: "static",

		DatabaseURL: "sqlite://jdt_users.db",

		JWTSecret:     devJWTSecret,
		SessionSecret: devSessionSecret,
		SessionMaxAge: time.Hour,

		WorkDir:           filepath.Join(os.TempDir(), "jdt-tool"),
		MaxUploadMB:       50,
		WorkerCount:       3,
		JobQueueSize:      100,
		TaskMaxAge:        time.Hour,
		FileMaxAge:        time.Hour,
		DownloadRetention: 30 * time.Second,
		CleanupInterval:   10 * time.Minute,

		SignupBonusCredits:   20,
		ReferralBonusCredits: 10,
		DailyFreeCredits:     3,

		AuthRateLimit: 30,

		AllowedOrigins: []string{"http://localhost:5000"},

		SMTP: SMTPConfig{Port: 587},
		Logger: LoggerConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
	}
}

// Load reads CONFIG_PATH (if set), then environment variables, then validates.
//
// Go Pattern: Functions that can fail return (value, error). The caller
// decides whether a bad config is fatal (it always is in main).
func Load() (*Config, error) {
	cfg := Defaults()

	if path := getEnv("CONFIG_PATH", ""); path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile overlays a YAML file on top of cfg. Keys missing from the file
// keep their current values.
func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.GinMode = getEnv("GIN_MODE", cfg.GinMode)
	cfg.BaseURL = strings.TrimRight(getEnv("BASE_URL", cfg.BaseURL), "/")
	cfg.StaticDir = getEnv("STATIC_DIR", cfg.StaticDir)

	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.DatabaseDriver = getEnv("DATABASE_DRIVER", cfg.DatabaseDriver)

	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	// SECRET_KEY is the name older deployments used for the session secret.
	cfg.SessionSecret = getEnv("SESSION_SECRET", getEnv("SECRET_KEY", cfg.SessionSecret))
	cfg.SessionMaxAge = getEnvDuration("SESSION_MAX_AGE", cfg.SessionMaxAge)
	cfg.AdminKey = getEnv("ADMIN_KEY", cfg.AdminKey)

	cfg.WorkDir = getEnv("WORK_DIR", cfg.WorkDir)
	cfg.MaxUploadMB = getEnvInt("MAX_UPLOAD_MB", cfg.MaxUploadMB)
	cfg.WorkerCount = getEnvInt("WORKER_COUNT", cfg.WorkerCount)
	cfg.JobQueueSize = getEnvInt("JOB_QUEUE_SIZE", cfg.JobQueueSize)
	cfg.TaskMaxAge = getEnvDuration("TASK_MAX_AGE", cfg.TaskMaxAge)
	cfg.FileMaxAge = getEnvDuration("FILE_MAX_AGE", cfg.FileMaxAge)
	cfg.DownloadRetention = getEnvDuration("DOWNLOAD_RETENTION", cfg.DownloadRetention)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", cfg.CleanupInterval)

	cfg.SignupBonusCredits = getEnvInt("SIGNUP_BONUS_CREDITS", cfg.SignupBonusCredits)
	cfg.ReferralBonusCredits = getEnvInt("REFERRAL_BONUS_CREDITS", cfg.ReferralBonusCredits)
	cfg.DailyFreeCredits = getEnvInt("DAILY_FREE_CREDITS", cfg.DailyFreeCredits)

	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.AuthRateLimit = getEnvInt("AUTH_RATE_LIMIT", cfg.AuthRateLimit)

	if origins := getEnv("CORS_ORIGIN", ""); origins != "" {
		cfg.AllowedOrigins = splitList(origins)
	}

	cfg.SMTP.Host = getEnv("SMTP_HOST", cfg.SMTP.Host)
	cfg.SMTP.Port = getEnvInt("SMTP_PORT", cfg.SMTP.Port)
	cfg.SMTP.Username = getEnv("SMTP_USERNAME", cfg.SMTP.Username)
	cfg.SMTP.Password = getEnv("SMTP_PASSWORD", cfg.SMTP.Password)
	cfg.SMTP.From = getEnv("SMTP_FROM", cfg.SMTP.From)

	cfg.Logger.File = getEnv("LOG_FILE", cfg.Logger.File)
	cfg.Logger.Level = getEnv("LOG_LEVEL", cfg.Logger.Level)
	cfg.Logger.MaxSizeMB = getEnvInt("LOG_MAX_SIZE_MB", cfg.Logger.MaxSizeMB)
	cfg.Logger.MaxBackups = getEnvInt("LOG_MAX_BACKUPS", cfg.Logger.MaxBackups)
	cfg.Logger.MaxAgeDays = getEnvInt("LOG_MAX_AGE_DAYS", cfg.Logger.MaxAgeDays)
	cfg.Logger.Compress = getEnvBool("LOG_COMPRESS", cfg.Logger.Compress)
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.WorkerCount < 1 {
		return fmt.Errorf("WORKER_COUNT must be at least 1, got %d", c.WorkerCount)
	}
	if c.JobQueueSize < 1 {
		return fmt.Errorf("JOB_QUEUE_SIZE must be at least 1, got %d", c.JobQueueSize)
	}
	if c.MaxUploadMB < 1 {
		return fmt.Errorf("MAX_UPLOAD_MB must be at least 1, got %d", c.MaxUploadMB)
	}
	if c.SignupBonusCredits < 0 || c.ReferralBonusCredits < 0 || c.DailyFreeCredits < 0 {
		return fmt.Errorf("credit amounts must not be negative")
	}
	if c.TaskMaxAge <= 0 || c.FileMaxAge <= 0 {
		return fmt.Errorf("TASK_MAX_AGE and FILE_MAX_AGE must be positive")
	}
	if c.CleanupInterval <= 0 {
		return fmt.Errorf("CLEANUP_INTERVAL must be positive, got %s", c.CleanupInterval)
	}
	if c.DownloadRetention <= 0 {
		return fmt.Errorf("DOWNLOAD_RETENTION must be positive, got %s", c.DownloadRetention)
	}
	switch c.DatabaseDriver {
	case "", "postgres", "pgx", "sqlite":
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}

	// Security: secrets MUST be set in production mode.
	// In release mode, we refuse to start with the development defaults.
	if c.GinMode == "release" {
		if c.JWTSecret == devJWTSecret {
			return fmt.Errorf("JWT_SECRET must be set in production; refusing to start with default secret")
		}
		if c.SessionSecret == devSessionSecret {
			return fmt.Errorf("SESSION_SECRET must be set in production; refusing to start with default secret")
		}
		if c.AdminKey == "" {
			return fmt.Errorf("ADMIN_KEY must be set in production; it protects credit adjustment")
		}
	}
	return nil
}

// MaxUploadBytes is the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// getEnv reads an environment variable with a fallback default.
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// getEnvInt reads an integer environment variable with a fallback.
func getEnvInt(key string, fallback int) int {
	str := getEnv(key, "")
	if str == "" {
		return fallback
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return fallback
	}
	return val
}

// getEnvDuration accepts Go durations ("90s", "1h") or plain seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	str := getEnv(key, "")
	if str == "" {
		return fallback
	}
	if d, err := time.ParseDuration(str); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(str); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	str := getEnv(key, "")
	if str == "" {
		return fallback
	}
	val, err := strconv.ParseBool(str)
	if err != nil {
		return fallback
	}
	return val
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
