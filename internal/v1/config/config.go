package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DefaultPort is used when PORT is not set.
const DefaultPort = "5000"

// DefaultDataDir is the per-room snapshot directory, relative to the
// working directory.
const DefaultDataDir = ".canvas-data"

// Config holds validated environment configuration
type Config struct {
	Port    string
	DataDir string

	GoEnv           string
	LogLevel        string
	DevelopmentMode bool
	AllowedOrigins  string

	// Redis backs the rate limiter store when enabled; the server itself
	// is single-instance.
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string

	// Rate limits (ulule/limiter formatted, e.g. "100-M")
	RateLimitWsIP string

	// RoomMaxUsers caps participants per room.
	RoomMaxUsers int

	// Tracing
	TracingEnabled bool
	OTLPEndpoint   string
}

// ValidateEnv validates all environment variables and returns a Config object.
// Returns an error if any variable is present but invalid.
func ValidateEnv() (*Config, error) {
	cfg := &Config{}
	var errs []string

	// Optional: PORT (defaults to 5000)
	cfg.Port = os.Getenv("PORT")
	if cfg.Port == "" {
		cfg.Port = DefaultPort
	} else {
		port, err := strconv.Atoi(cfg.Port)
		if err != nil || port < 0 || port > 65535 {
			errs = append(errs, fmt.Sprintf("PORT must be a valid port number between 0 and 65535 (got '%s')", cfg.Port))
		}
	}

	// Optional: DATA_DIR (defaults to .canvas-data)
	cfg.DataDir = getEnvOrDefault("DATA_DIR", DefaultDataDir)

	// Optional: GO_ENV (defaults to "production")
	cfg.GoEnv = getEnvOrDefault("GO_ENV", "production")

	// Optional: LOG_LEVEL (defaults to "info")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	cfg.DevelopmentMode = os.Getenv("DEVELOPMENT_MODE") == "true"
	cfg.AllowedOrigins = os.Getenv("ALLOWED_ORIGINS")

	// Conditional: REDIS_ADDR (used by the rate limiter store if REDIS_ENABLED=true)
	cfg.RedisEnabled = os.Getenv("REDIS_ENABLED") == "true"
	if cfg.RedisEnabled {
		cfg.RedisAddr = getEnvOrDefault("REDIS_ADDR", "localhost:6379")
		if !isValidHostPort(cfg.RedisAddr) {
			errs = append(errs, fmt.Sprintf("REDIS_ADDR must be in format 'host:port' (got '%s')", cfg.RedisAddr))
		}
		cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	}

	// Rate limits (Defaults: M = Minute, H = Hour)
	cfg.RateLimitWsIP = getEnvOrDefault("RATE_LIMIT_WS_IP", "100-M")

	// Optional: ROOM_MAX_USERS (defaults to 50)
	maxUsers := getEnvOrDefault("ROOM_MAX_USERS", "50")
	if n, err := strconv.Atoi(maxUsers); err != nil || n < 1 {
		errs = append(errs, fmt.Sprintf("ROOM_MAX_USERS must be a positive integer (got '%s')", maxUsers))
	} else {
		cfg.RoomMaxUsers = n
	}

	// Tracing
	cfg.TracingEnabled = os.Getenv("TRACING_ENABLED") == "true"
	cfg.OTLPEndpoint = getEnvOrDefault("OTEL_COLLECTOR_ADDR", "localhost:4317")

	if len(errs) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return cfg, nil
}

// isValidHostPort checks if a string is in the format "host:port"
func isValidHostPort(addr string) bool {
	parts := strings.Split(addr, ":")
	if len(parts) != 2 {
		return false
	}

	port, err := strconv.Atoi(parts[1])
	if err != nil || port < 1 || port > 65535 {
		return false
	}

	return parts[0] != ""
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetAllowedOrigins parses the configured comma-separated origin list,
// falling back to the given defaults.
func GetAllowedOrigins(originsStr string, defaults []string) []string {
	if originsStr == "" {
		return defaults
	}
	parts := strings.Split(originsStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
