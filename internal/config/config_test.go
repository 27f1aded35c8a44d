package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var envKeys = []string{
	"BOOKBAZAAR_CONFIG", "APP_ENV", "PORT", "LOG_LEVEL", "DATABASE_URL", "JWT_SECRET",
	"REDIS_ADDR", "REDIS_PASSWORD", "MINIO_ENDPOINT", "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY",
	"MINIO_BUCKET", "MINIO_USE_SSL", "BOOKBAZAAR_CORS_ORIGINS", "BOOKBAZAAR_TRUSTED_PROXY_CIDRS",
	"BOOKBAZAAR_LOGIN_RATE_LIMIT_PER_MINUTE", "BOOKBAZAAR_REGISTER_RATE_LIMIT_PER_MINUTE",
	"BOOKBAZAAR_MAX_COVER_BYTES", "BOOKBAZAAR_SEED_ON_READ", "BOOKBAZAAR_SEED_QUEUE_ENABLED",
	"BOOKBAZAAR_SEED_QUEUE_STREAM", "BOOKBAZAAR_SEED_WORKERS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDevelopmentDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode != ModeDevelopment || cfg.Port != "8080" || cfg.LogLevel != "info" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.JWTSecret == "" {
		t.Fatalf("expected generated development secret")
	}
	if !cfg.SeedsOnRead() {
		t.Fatalf("seedOnRead should default to true")
	}
	if cfg.MaxCoverBytes != 5<<20 || cfg.LoginRateLimitPerMinute != 10 || cfg.RegisterRateLimitPerMinute != 5 {
		t.Fatalf("unexpected limits: %+v", cfg)
	}
	if len(cfg.Warnings) != 3 {
		t.Fatalf("expected database, secret and redis warnings, got %v", cfg.Warnings)
	}
}

func TestLoadProductionRequiresDatabaseAndSecret(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "missing database",
			env:     map[string]string{"APP_ENV": "production", "JWT_SECRET": "s3cret"},
			wantErr: "databaseURL is required",
		},
		{
			name:    "missing secret",
			env:     map[string]string{"APP_ENV": "production", "DATABASE_URL": "postgres://db/bookbazaar"},
			wantErr: "jwtSecret is required",
		},
		{
			name: "complete",
			env: map[string]string{
				"APP_ENV":      "Production",
				"DATABASE_URL": "postgres://db/bookbazaar",
				"JWT_SECRET":   "s3cret",
				"REDIS_ADDR":   "localhost:6379",
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if !cfg.IsProduction() || cfg.JWTSecret != "s3cret" || len(cfg.Warnings) != 0 {
				t.Fatalf("unexpected production config: %+v", cfg)
			}
		})
	}
}

func TestLoadFileWithEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
appEnv: development
port: "9090"
databaseURL: postgres://file/bookbazaar
jwtSecret: from-file
redisAddr: localhost:6379
corsOrigins: ["http://localhost:3000"]
seedOnRead: false
minioEndpoint: localhost:9000
minioBucket: covers
`)
	t.Setenv("BOOKBAZAAR_CONFIG", path)
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("BOOKBAZAAR_TRUSTED_PROXY_CIDRS", "10.0.0.0/8, ,192.168.1.1")
	t.Setenv("BOOKBAZAAR_LOGIN_RATE_LIMIT_PER_MINUTE", "3")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9090" || cfg.JWTSecret != "from-env" || cfg.DatabaseURL != "postgres://file/bookbazaar" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.SeedsOnRead() {
		t.Fatalf("seedOnRead false in file should disable seeding on read")
	}
	if len(cfg.TrustedProxyCIDRs) != 2 || cfg.LoginRateLimitPerMinute != 3 {
		t.Fatalf("unexpected env overrides: %+v", cfg)
	}
	if !cfg.MinioConfigured() || len(cfg.CORSOrigins) != 1 {
		t.Fatalf("unexpected file values: %+v", cfg)
	}
	if len(cfg.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", cfg.Warnings)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "unknown mode", body: "appEnv: staging\n"},
		{name: "negative rate limit", body: "loginRateLimitPerMinute: -1\n"},
		{name: "queue without redis", body: "seedQueueEnabled: true\n"},
		{name: "bad yaml", body: "port: [\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			if _, err := Load(writeConfig(t, tc.body)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
