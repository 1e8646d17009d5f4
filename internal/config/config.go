package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	ServerPort     string
	AllowedOrigins []string
	LogLevel       slog.Level
	SettingsURL    string
	SettingsFile   string
	Snapcast       struct {
		Host string
		Port int
	}
}

// Load loads the configuration from environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}

	cfg := &Config{}

	cfg.SettingsURL = os.Getenv("SETTINGS_URL")
	cfg.SettingsFile = os.Getenv("SETTINGS_FILE")

	cfg.Snapcast.Host = os.Getenv("SNAPCAST_HOST")
	if port, err := strconv.Atoi(os.Getenv("SNAPCAST_PORT")); err == nil {
		cfg.Snapcast.Port = port
	}

	cfg.ServerPort = os.Getenv("SERVER_PORT")
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins != "" {
		cfg.AllowedOrigins = strings.Split(allowedOrigins, ",")
	}

	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		cfg.LogLevel = slog.LevelDebug
	case "warn":
		cfg.LogLevel = slog.LevelWarn
	case "error":
		cfg.LogLevel = slog.LevelError
	default:
		cfg.LogLevel = slog.LevelInfo
	}

	return cfg, nil
}
