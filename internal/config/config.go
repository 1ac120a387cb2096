// Package config centralizes how the service reads environment variables and
// exposes them as strongly typed Go values.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ResponseFormat selects how the legacy form endpoint answers the browser.
type ResponseFormat string

const (
	// ResponseJSON answers POST /formation with a JSON body.
	ResponseJSON ResponseFormat = "json"
	// ResponseRedirect answers with a redirect back to the form page carrying
	// a message or error query parameter for the page script to display.
	ResponseRedirect ResponseFormat = "redirect"
)

// Config represents runtime configuration for the service.
type Config struct {
	Address     string
	StaticDir   string
	MaxFileSize int64

	DatabaseURL string
	AdminKey    string

	S3Endpoint   string
	S3AccessKey  string
	S3SecretKey  string
	S3UseSSL     bool
	S3Region     string
	Bucket       string
	PublicBase   string
	SignedURLTTL time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RequireProof   bool
	TrackStatus    bool
	ResponseFormat ResponseFormat

	SweepInterval time.Duration
	SweepGrace    time.Duration
	Workers       int
}

const (
	defaultAddress     = ":8080"
	defaultStaticDir   = "web"
	defaultMaxFileSize = 10 << 20 // 10 MiB
	defaultBucket      = "preuves-paiement"
	defaultSignedTTL   = 15 * time.Minute
	defaultRedisAddr   = "localhost:6379"
	defaultSweepEvery  = time.Hour
	defaultSweepGrace  = 24 * time.Hour
	defaultWorkerCount = 2
)

// ErrMissingConfig marks a required variable that was absent; callers treat it
// as fatal at startup.
var ErrMissingConfig = errors.New("missing required configuration")

// Load reads configuration from environment variables falling back to
// defaults. DATABASE_URL and ADMIN_CLE are always required; the object store
// variables are required only while proof uploads are mandatory, otherwise
// their absence degrades to skipping the upload step.
func Load() (*Config, error) {
	cfg := &Config{
		Address:     readEnv("INSCRIPTIO_ADDRESS", defaultAddress),
		StaticDir:   readEnv("INSCRIPTIO_STATIC_DIR", defaultStaticDir),
		MaxFileSize: parseInt64("INSCRIPTIO_MAX_FILE_BYTES", defaultMaxFileSize),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		AdminKey:    os.Getenv("ADMIN_CLE"),

		S3Endpoint:   os.Getenv("S3_ENDPOINT"),
		S3AccessKey:  os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:  os.Getenv("S3_SECRET_KEY"),
		S3UseSSL:     parseBool("S3_USE_SSL", false),
		S3Region:     readEnv("S3_REGION", "us-east-1"),
		Bucket:       readEnv("S3_BUCKET", defaultBucket),
		PublicBase:   os.Getenv("S3_PUBLIC_BASE"),
		SignedURLTTL: parseDuration("INSCRIPTIO_SIGNED_TTL", defaultSignedTTL),

		RedisAddr:     readEnv("REDIS_ADDR", defaultRedisAddr),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       parseInt("REDIS_DB", 0),

		RequireProof:   parseBool("INSCRIPTIO_REQUIRE_PROOF", true),
		TrackStatus:    parseBool("INSCRIPTIO_TRACK_STATUS", true),
		ResponseFormat: parseFormat("INSCRIPTIO_RESPONSE_FORMAT", ResponseJSON),

		SweepInterval: parseDuration("INSCRIPTIO_SWEEP_INTERVAL", defaultSweepEvery),
		SweepGrace:    parseDuration("INSCRIPTIO_SWEEP_GRACE", defaultSweepGrace),
		Workers:       parseInt("INSCRIPTIO_WORKERS", defaultWorkerCount),
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL: %w", ErrMissingConfig)
	}
	if cfg.AdminKey == "" {
		return nil, fmt.Errorf("ADMIN_CLE: %w", ErrMissingConfig)
	}
	if cfg.RequireProof && cfg.S3Endpoint == "" {
		return nil, fmt.Errorf("S3_ENDPOINT (required while INSCRIPTIO_REQUIRE_PROOF is set): %w", ErrMissingConfig)
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = defaultMaxFileSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkerCount
	}
	return cfg, nil
}

// ObjectStoreConfigured reports whether the blob store can be constructed.
func (c *Config) ObjectStoreConfigured() bool {
	return c.S3Endpoint != ""
}

func readEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func parseInt64(key string, def int64) int64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			return parsed
		}
	}
	return def
}

func parseInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseFormat(key string, def ResponseFormat) ResponseFormat {
	switch strings.ToLower(os.Getenv(key)) {
	case string(ResponseJSON):
		return ResponseJSON
	case string(ResponseRedirect):
		return ResponseRedirect
	default:
		return def
	}
}
