package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.MaxUploadMB)
	assert.Equal(t, int64(50<<20), cfg.MaxUploadBytes())
	assert.Equal(t, 20, cfg.SignupBonusCredits)
	assert.Equal(t, 10, cfg.ReferralBonusCredits)
	assert.Equal(t, time.Hour, cfg.TaskMaxAge)
	assert.Equal(t, 30*time.Second, cfg.DownloadRetention)
}

func TestLoad_FileThenEnvOverride(t *testing.T) {
	p := writeConfig(t, `port: "9000"
database_url: "postgres://file"
worker_count: 7
task_max_age: 2h
smtp:
  host: smtp.example.com
  from: noreply@example.com
logger:
  level: debug
`)
	t.Setenv("CONFIG_PATH", p)
	t.Setenv("WORKER_COUNT", "2")
	t.Setenv("DOWNLOAD_RETENTION", "45")
	t.Setenv("CORS_ORIGIN", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "postgres://file", cfg.DatabaseURL)
	assert.Equal(t, 2, cfg.WorkerCount, "env wins over file")
	assert.Equal(t, 2*time.Hour, cfg.TaskMaxAge)
	assert.Equal(t, 45*time.Second, cfg.DownloadRetention, "plain seconds are accepted")
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.True(t, cfg.SMTP.Enabled())
	assert.Equal(t, "debug", cfg.Logger.Level)
}

func TestLoad_RejectsZeroCleanupInterval(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("CLEANUP_INTERVAL", "0")
	_, err := Load()
	assert.ErrorContains(t, err, "CLEANUP_INTERVAL")
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "zero workers", mutate: func(c *Config) { c.WorkerCount = 0 }, wantErr: true},
		{name: "negative bonus", mutate: func(c *Config) { c.ReferralBonusCredits = -1 }, wantErr: true},
		{name: "zero cleanup interval", mutate: func(c *Config) { c.CleanupInterval = 0 }, wantErr: true},
		{name: "negative cleanup interval", mutate: func(c *Config) { c.CleanupInterval = -time.Minute }, wantErr: true},
		{name: "zero download retention", mutate: func(c *Config) { c.DownloadRetention = 0 }, wantErr: true},
		{name: "unknown driver", mutate: func(c *Config) { c.DatabaseDriver = "mysql" }, wantErr: true},
		{name: "release with default jwt secret", mutate: func(c *Config) {
			c.GinMode = "release"
			c.SessionSecret = "s"
			c.AdminKey = "a"
		}, wantErr: true},
		{name: "release without admin key", mutate: func(c *Config) {
			c.GinMode = "release"
			c.JWTSecret = "j"
			c.SessionSecret = "s"
		}, wantErr: true},
		{name: "release fully configured", mutate: func(c *Config) {
			c.GinMode = "release"
			c.JWTSecret = "j"
			c.SessionSecret = "s"
			c.AdminKey = "a"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
