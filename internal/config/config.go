// Package config provides application configuration management through environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/allisson/go-env"
	"github.com/joho/godotenv"

	"github.com/allisson/vaultcore/internal/crypto/nonce"
)

// Config holds all application configuration.
type Config struct {
	// Server configuration
	ServerHost string
	ServerPort int

	// CORS (disabled by default; this is a server-to-server API)
	CORSEnabled      bool
	CORSAllowOrigins string

	// Metrics server
	MetricsEnabled   bool
	MetricsHost      string
	MetricsPort      int
	MetricsNamespace string

	// Logging
	LogLevel string

	// Master key KMS unwrap. Empty KMSProvider means master keys are read
	// as plaintext base64 from MASTER_KEYS (legacy/local-dev mode).
	KMSProvider string
	KMSKeyURI   string

	// Nonce manager (C4)
	NonceStrategy   string
	RotationThreshold uint64
	WarnThreshold     uint64

	// Key manager (C8)
	RotationDueAfter   time.Duration
	TombstoneRetention time.Duration

	// KDF (C7)
	KDFIterationsFloor int

	// Security gate (C9)
	SessionTimeout      time.Duration
	PermissionsEnforced bool
}

// Load loads configuration from environment variables. It first attempts
// to load a .env file by searching recursively from the current directory
// up to the root directory, then validates the nonce warn/rotate ordering
// invariant before returning.
func Load() (*Config, error) {
	loadDotEnv()

	cfg := &Config{
		// Server configuration
		ServerHost: env.GetString("SERVER_HOST", "0.0.0.0"),
		ServerPort: env.GetInt("SERVER_PORT", 8080),

		// CORS
		CORSEnabled:      getBool("CORS_ENABLED", false),
		CORSAllowOrigins: env.GetString("CORS_ALLOW_ORIGINS", ""),

		// Metrics server
		MetricsEnabled:   getBool("METRICS_ENABLED", true),
		MetricsHost:      env.GetString("METRICS_HOST", "0.0.0.0"),
		MetricsPort:      env.GetInt("METRICS_PORT", 9090),
		MetricsNamespace: env.GetString("METRICS_NAMESPACE", "vaultcore"),

		// Logging
		LogLevel: env.GetString("LOG_LEVEL", "info"),

		// Master key KMS unwrap
		KMSProvider: env.GetString("KMS_PROVIDER", ""),
		KMSKeyURI:   env.GetString("KMS_KEY_URI", ""),

		// Nonce manager (C4)
		NonceStrategy:     env.GetString("NONCE_STRATEGY", string(nonce.Random)),
		RotationThreshold: uint64(env.GetInt("ROTATION_THRESHOLD", int(nonce.DefaultRotateThreshold))),
		WarnThreshold:     uint64(env.GetInt("WARN_THRESHOLD", int(nonce.DefaultWarnThreshold))),

		// Key manager (C8): 90 days (in hours), the same default the field key manager uses
		RotationDueAfter:   env.GetDuration("ROTATION_DUE_AFTER", 90*24, time.Hour),
		TombstoneRetention: env.GetDuration("TOMBSTONE_RETENTION", 90*24, time.Hour),

		// KDF (C7)
		KDFIterationsFloor: env.GetInt("KDF_ITERATIONS_FLOOR", 120000),

		// Security gate (C9)
		SessionTimeout:      env.GetDuration("SESSION_TIMEOUT", 60, time.Minute),
		PermissionsEnforced: getBool("PERMISSIONS_ENFORCED", false),
	}

	if cfg.WarnThreshold >= cfg.RotationThreshold {
		return nil, fmt.Errorf(
			"config: WARN_THRESHOLD (%d) must be less than ROTATION_THRESHOLD (%d)",
			cfg.WarnThreshold, cfg.RotationThreshold,
		)
	}
	return cfg, nil
}

// getBool reads a boolean environment variable via env.GetString, since
// github.com/allisson/go-env does not export a GetBool helper.
func getBool(key string, def bool) bool {
	raw := env.GetString(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

// loadDotEnv searches for a .env file recursively from the current directory
// up to the root directory and loads it if found.
func loadDotEnv() {
	// Get current working directory
	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	// Search for .env file recursively up the directory tree
	dir := cwd
	for {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			// .env file found, load it
			_ = godotenv.Load(envPath)
			return
		}

		// Move to parent directory
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root directory
			break
		}
		dir = parent
	}
}
