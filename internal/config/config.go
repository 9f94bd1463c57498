package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port        string
	Environment string
	DatabaseURL string
	TablePrefix string
	JWKSURL     string
	CORSOrigins string

	// Redis holds the per-tenant sync leases. Empty = in-process locks.
	RedisURL    string
	SyncLockTTL time.Duration
	// SyncRunTimeout bounds one run, manual or scheduled
	SyncRunTimeout time.Duration

	// Object storage for attached binaries and assets
	MinIO MinIOConfig

	// Remote drive
	GoogleCredentialsFile  string
	DriveRequestsPerSecond float64
	DriveBurst             int
	DriveMaxRetries        int

	// TenantsFile lists the tenants synced by the background scheduler
	TenantsFile string

	// Logging
	LogDir      string
	LogMaxFiles int

	// Debug flags
	Debug bool
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Enabled reports whether an object store endpoint is configured.
func (c MinIOConfig) Enabled() bool {
	return c.Endpoint != ""
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")

	return &Config{
		Port:           getEnv("PORT", "8080"),
		Environment:    env,
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		TablePrefix:    getTablePrefix(env),
		JWKSURL:        getEnv("JWKS_URL", ""),
		CORSOrigins:    getEnv("CORS_ORIGINS", "http://localhost:3000"),
		RedisURL:       getEnv("REDIS_URL", ""),
		SyncLockTTL:    getEnvDuration("SYNC_LOCK_TTL", 30*time.Minute),
		SyncRunTimeout: getEnvDuration("SYNC_RUN_TIMEOUT", 20*time.Minute),
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", "drivemirror"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		GoogleCredentialsFile:  getEnv("GOOGLE_CREDENTIALS_FILE", ""),
		DriveRequestsPerSecond: getEnvFloat("DRIVE_RPS", 10),
		DriveBurst:             getEnvInt("DRIVE_BURST", 20),
		DriveMaxRetries:        getEnvInt("DRIVE_MAX_RETRIES", 3),
		TenantsFile:            getEnv("TENANTS_FILE", ""),
		LogDir:                 getEnv("LOG_DIR", ""),
		LogMaxFiles:            getEnvInt("LOG_MAX_FILES", 10),
		// Debug flags - default to true in dev/test, false in production
		Debug: getEnv("DEBUG", getDefaultDebug(env)) == "true",
	}
}

// getDefaultDebug returns the default debug setting based on environment
func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true"
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	// Allow manual override via TABLE_PREFIX env var
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
