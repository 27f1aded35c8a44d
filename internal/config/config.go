package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigPath is read when Load gets an empty path and BOOKBAZAAR_CONFIG is unset.
const ConfigPath = "config.yaml"

const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

const (
	defaultPort              = "8080"
	defaultMaxCoverBytes     = 5 << 20
	defaultLoginPerMinute    = 10
	defaultRegisterPerMinute = 5
	defaultSeedWorkers       = 2
)

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Mode                       string   `yaml:"appEnv"`
	Port                       string   `yaml:"port"`
	LogLevel                   string   `yaml:"logLevel"`
	DatabaseURL                string   `yaml:"databaseURL"`
	JWTSecret                  string   `yaml:"jwtSecret"`
	CORSOrigins                []string `yaml:"corsOrigins"`
	RedisAddr                  string   `yaml:"redisAddr"`
	RedisPassword              string   `yaml:"redisPassword"`
	TrustedProxyCIDRs          []string `yaml:"trustedProxyCidrs"`
	LoginRateLimitPerMinute    int      `yaml:"loginRateLimitPerMinute"`
	RegisterRateLimitPerMinute int      `yaml:"registerRateLimitPerMinute"`
	MinioEndpoint              string   `yaml:"minioEndpoint"`
	MinioAccessKey             string   `yaml:"minioAccessKey"`
	MinioSecretKey             string   `yaml:"minioSecretKey"`
	MinioBucket                string   `yaml:"minioBucket"`
	MinioUseSSL                bool     `yaml:"minioUseSSL"`
	MaxCoverBytes              int64    `yaml:"maxCoverBytes"`
	SeedOnRead                 *bool    `yaml:"seedOnRead"`
	SeedQueueEnabled           bool     `yaml:"seedQueueEnabled"`
	SeedQueueStream            string   `yaml:"seedQueueStream"`
	SeedWorkers                int      `yaml:"seedWorkers"`

	// Warnings collects non-fatal problems found in development mode.
	Warnings []string `yaml:"-"`
}

// IsProduction reports whether the service runs with production guarantees.
func (c FileConfig) IsProduction() bool {
	return c.Mode == ModeProduction
}

// SeedsOnRead reports whether listing sales may seed demo data.
func (c FileConfig) SeedsOnRead() bool {
	return c.SeedOnRead == nil || *c.SeedOnRead
}

// MinioConfigured reports whether cover storage settings are present.
func (c FileConfig) MinioConfigured() bool {
	return strings.TrimSpace(c.MinioEndpoint) != "" && strings.TrimSpace(c.MinioBucket) != ""
}

// Load reads config from path, then applies environment overrides.
// An empty path falls back to BOOKBAZAAR_CONFIG and then ConfigPath; a
// missing file is allowed so deployments can configure through env only.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = strings.TrimSpace(os.Getenv("BOOKBAZAAR_CONFIG"))
	}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	setString(&cfg.Mode, "APP_ENV")
	setString(&cfg.Port, "PORT")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.JWTSecret, "JWT_SECRET")
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.RedisPassword, "REDIS_PASSWORD")
	setString(&cfg.MinioEndpoint, "MINIO_ENDPOINT")
	setString(&cfg.MinioAccessKey, "MINIO_ACCESS_KEY")
	setString(&cfg.MinioSecretKey, "MINIO_SECRET_KEY")
	setString(&cfg.MinioBucket, "MINIO_BUCKET")
	setString(&cfg.SeedQueueStream, "BOOKBAZAAR_SEED_QUEUE_STREAM")
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.MinioUseSSL = b
		}
	}
	if v := os.Getenv("BOOKBAZAAR_CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitCSV(v)
	}
	if v := os.Getenv("BOOKBAZAAR_TRUSTED_PROXY_CIDRS"); v != "" {
		cfg.TrustedProxyCIDRs = splitCSV(v)
	}
	if v := os.Getenv("BOOKBAZAAR_LOGIN_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.LoginRateLimitPerMinute = n
		}
	}
	if v := os.Getenv("BOOKBAZAAR_REGISTER_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.RegisterRateLimitPerMinute = n
		}
	}
	if v := os.Getenv("BOOKBAZAAR_MAX_COVER_BYTES"); v != "" {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			cfg.MaxCoverBytes = n
		}
	}
	if v := os.Getenv("BOOKBAZAAR_SEED_ON_READ"); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.SeedOnRead = &b
		}
	}
	if v := os.Getenv("BOOKBAZAAR_SEED_QUEUE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.SeedQueueEnabled = b
		}
	}
	if v := os.Getenv("BOOKBAZAAR_SEED_WORKERS"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.SeedWorkers = n
		}
	}
}

func applyDefaults(cfg *FileConfig) {
	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	if cfg.Mode == "" {
		cfg.Mode = ModeDevelopment
	}
	if strings.TrimSpace(cfg.Port) == "" {
		cfg.Port = defaultPort
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LoginRateLimitPerMinute == 0 {
		cfg.LoginRateLimitPerMinute = defaultLoginPerMinute
	}
	if cfg.RegisterRateLimitPerMinute == 0 {
		cfg.RegisterRateLimitPerMinute = defaultRegisterPerMinute
	}
	if cfg.MaxCoverBytes == 0 {
		cfg.MaxCoverBytes = defaultMaxCoverBytes
	}
	if cfg.SeedWorkers == 0 {
		cfg.SeedWorkers = defaultSeedWorkers
	}
}

func validateConfig(cfg *FileConfig) error {
	if cfg.Mode != ModeDevelopment && cfg.Mode != ModeProduction {
		return fmt.Errorf("config: appEnv must be %q or %q, got %q", ModeDevelopment, ModeProduction, cfg.Mode)
	}
	if cfg.LoginRateLimitPerMinute < 0 || cfg.RegisterRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	if cfg.MaxCoverBytes < 0 {
		return errors.New("config: maxCoverBytes must be >= 0")
	}
	if cfg.SeedWorkers < 0 {
		return errors.New("config: seedWorkers must be >= 0")
	}
	if cfg.SeedQueueEnabled && strings.TrimSpace(cfg.RedisAddr) == "" {
		return errors.New("config: redisAddr is required when seedQueueEnabled is set")
	}

	if cfg.IsProduction() {
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return errors.New("config: databaseURL is required in production (set in config.yaml or DATABASE_URL)")
		}
		if strings.TrimSpace(cfg.JWTSecret) == "" {
			return errors.New("config: jwtSecret is required in production (set in config.yaml or JWT_SECRET)")
		}
	} else {
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			cfg.Warnings = append(cfg.Warnings, "config: databaseURL not set, using in-memory store")
		}
		if strings.TrimSpace(cfg.JWTSecret) == "" {
			secret, err := randomSecret()
			if err != nil {
				return fmt.Errorf("config: generate jwt secret: %w", err)
			}
			cfg.JWTSecret = secret
			cfg.Warnings = append(cfg.Warnings, "config: jwtSecret not set, sessions will not survive a restart")
		}
	}
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		cfg.Warnings = append(cfg.Warnings, "config: redisAddr not set, login and register rate limiting disabled")
	}
	return nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = strings.TrimSpace(v)
	}
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
