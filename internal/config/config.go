// Package config loads yroomd's runtime configuration from the environment,
// following the same godotenv.Load()-then-os.Getenv convention the backend
// this project generalizes from used in its cmd/ entry points.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// StoreBackend selects which internal/ystore implementation cmd/yroomd
// wires up.
type StoreBackend string

const (
	StoreBackendFile   StoreBackend = "file"
	StoreBackendSQLite StoreBackend = "sqlite"
	StoreBackendNone   StoreBackend = "none"
)

// Config holds every environment-tunable setting for the yroomd binary.
type Config struct {
	// Port is the HTTP listen port serving health/stats and the WebSocket
	// upgrade endpoint.
	Port string
	// LogLevel gates internal/logger output (DEBUG, INFO, WARN, ERROR).
	LogLevel string

	// StoreBackend selects the YStore implementation.
	StoreBackend StoreBackend
	// StoreDir is FileStore's base directory.
	StoreDir string
	// StoreDBPath is SQLiteStore's database file path.
	StoreDBPath string
	// DocumentTTL is the SQLiteStore squash threshold; zero disables it.
	DocumentTTL time.Duration

	// RedisURL, if set, enables internal/metadata.Redis, which attaches the
	// blob stored under one fixed key to every stored update. Empty disables
	// it.
	RedisURL string

	// RoomIdleTimeout is how long a room with no connected clients is kept
	// alive before auto-cleanup.
	RoomIdleTimeout time.Duration
}

// Load reads a .env file if present, then builds a Config from YROOMD_*
// environment variables, falling back to defaults for anything unset. It
// never returns an error: a missing .env file is not fatal, matching
// godotenv.Load()'s own fire-and-forget use in the original cmd/ entry
// points.
func Load() *Config {
	godotenv.Load()

	cfg := &Config{
		Port:            getEnv("YROOMD_PORT", "8081"),
		LogLevel:        getEnv("YROOMD_LOG_LEVEL", "INFO"),
		StoreBackend:    StoreBackend(getEnv("YROOMD_STORE_BACKEND", string(StoreBackendFile))),
		StoreDir:        getEnv("YROOMD_STORE_DIR", "./data/rooms"),
		StoreDBPath:     getEnv("YROOMD_STORE_DB_PATH", "./data/ystore.db"),
		DocumentTTL:     getEnvDuration("YROOMD_DOCUMENT_TTL", 0),
		RedisURL:        os.Getenv("YROOMD_REDIS_URL"),
		RoomIdleTimeout: getEnvDuration("YROOMD_ROOM_IDLE_TIMEOUT", 5*time.Minute),
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
