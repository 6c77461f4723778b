package config

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultListenAddr     = ":8080"
	defaultDBPath         = "spreads.db"
	defaultVenueAddr      = "127.0.0.1:7497"
	defaultClientID       = 1
	defaultPollInterval   = 3 * time.Second
	defaultConnectTimeout = 30 * time.Second

	envListenAddr     = "SCS_LISTEN_ADDR"
	envDBPath         = "SCS_DB_PATH"
	envLogLevel       = "SCS_LOG_LEVEL"
	envVenueAddr      = "SCS_VENUE_ADDR"
	envClientID       = "SCS_CLIENT_ID"
	envPollInterval   = "SCS_POLL_INTERVAL"
	envConnectTimeout = "SCS_CONNECT_TIMEOUT"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	ListenAddr     string
	DBPath         string
	LogLevel       slog.Level
	VenueAddr      string
	ClientID       int
	PollInterval   time.Duration
	ConnectTimeout time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
// The venue defaults match a local paper-trading gateway.
func Load() Config {
	cfg := Config{
		ListenAddr:     defaultListenAddr,
		DBPath:         defaultDBPath,
		LogLevel:       slog.LevelInfo,
		VenueAddr:      defaultVenueAddr,
		ClientID:       defaultClientID,
		PollInterval:   defaultPollInterval,
		ConnectTimeout: defaultConnectTimeout,
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	if v := os.Getenv(envVenueAddr); v != "" {
		cfg.VenueAddr = v
	}
	if v := os.Getenv(envClientID); v != "" {
		if id, err := strconv.Atoi(v); err == nil && id > 0 {
			cfg.ClientID = id
		}
	}
	if v := os.Getenv(envPollInterval); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.PollInterval = d
		}
	}
	if v := os.Getenv(envConnectTimeout); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.ConnectTimeout = d
		}
	}

	return cfg
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
