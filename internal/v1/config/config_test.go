package config

import (
	"os"
	"strings"
	"testing"
)

// setupTestEnv sets up environment variables for testing
func setupTestEnv(t *testing.T) func() {
	// Save original env vars
	keys := []string{
		"PORT", "DATA_DIR", "GO_ENV", "LOG_LEVEL", "DEVELOPMENT_MODE",
		"ALLOWED_ORIGINS", "REDIS_ENABLED", "REDIS_ADDR", "REDIS_PASSWORD",
		"RATE_LIMIT_WS_IP", "ROOM_MAX_USERS", "TRACING_ENABLED", "OTEL_COLLECTOR_ADDR",
	}
	origVars := make(map[string]string, len(keys))
	for _, key := range keys {
		origVars[key] = os.Getenv(key)
		os.Unsetenv(key)
	}

	// Return cleanup function
	return func() {
		for key, val := range origVars {
			if val != "" {
				os.Setenv(key, val)
			} else {
				os.Unsetenv(key)
			}
		}
	}
}

func TestValidateEnv_Defaults(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	cfg, err := ValidateEnv()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.Port != DefaultPort {
		t.Errorf("Expected PORT to default to %q, got %q", DefaultPort, cfg.Port)
	}
	if cfg.DataDir != DefaultDataDir {
		t.Errorf("Expected DATA_DIR to default to %q, got %q", DefaultDataDir, cfg.DataDir)
	}
	if cfg.GoEnv != "production" {
		t.Errorf("Expected GO_ENV to default to 'production', got %q", cfg.GoEnv)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected LOG_LEVEL to default to 'info', got %q", cfg.LogLevel)
	}
	if cfg.RateLimitWsIP != "100-M" {
		t.Errorf("Expected RATE_LIMIT_WS_IP to default to '100-M', got %q", cfg.RateLimitWsIP)
	}
	if cfg.RedisEnabled {
		t.Errorf("Expected Redis to be disabled by default")
	}
	if cfg.RoomMaxUsers != 50 {
		t.Errorf("Expected ROOM_MAX_USERS to default to 50, got %d", cfg.RoomMaxUsers)
	}
}

func TestValidateEnv_InvalidRoomMaxUsers(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	os.Setenv("ROOM_MAX_USERS", "zero")

	_, err := ValidateEnv()
	if err == nil {
		t.Fatal("Expected an error for invalid ROOM_MAX_USERS")
	}
	if !strings.Contains(err.Error(), "ROOM_MAX_USERS") {
		t.Errorf("Expected error to mention ROOM_MAX_USERS, got: %v", err)
	}
}

func TestValidateEnv_ValidConfiguration(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	os.Setenv("PORT", "8080")
	os.Setenv("DATA_DIR", "/tmp/canvas")
	os.Setenv("REDIS_ENABLED", "true")
	os.Setenv("REDIS_ADDR", "redis:6379")

	cfg, err := ValidateEnv()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected PORT to be '8080', got %q", cfg.Port)
	}
	if cfg.DataDir != "/tmp/canvas" {
		t.Errorf("Expected DATA_DIR to be '/tmp/canvas', got %q", cfg.DataDir)
	}
	if !cfg.RedisEnabled || cfg.RedisAddr != "redis:6379" {
		t.Errorf("Expected Redis config to be picked up, got %+v", cfg)
	}
}

func TestValidateEnv_InvalidPort(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	os.Setenv("PORT", "not-a-port")

	_, err := ValidateEnv()
	if err == nil {
		t.Fatal("Expected an error for invalid PORT")
	}
	if !strings.Contains(err.Error(), "PORT") {
		t.Errorf("Expected error to mention PORT, got: %v", err)
	}
}

func TestValidateEnv_InvalidRedisAddr(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	os.Setenv("REDIS_ENABLED", "true")
	os.Setenv("REDIS_ADDR", "no-port-here")

	_, err := ValidateEnv()
	if err == nil {
		t.Fatal("Expected an error for invalid REDIS_ADDR")
	}
	if !strings.Contains(err.Error(), "REDIS_ADDR") {
		t.Errorf("Expected error to mention REDIS_ADDR, got: %v", err)
	}
}

func TestGetAllowedOrigins(t *testing.T) {
	defaults := []string{"http://localhost:3000"}

	got := GetAllowedOrigins("", defaults)
	if len(got) != 1 || got[0] != defaults[0] {
		t.Errorf("Expected defaults for empty input, got %v", got)
	}

	got = GetAllowedOrigins("https://a.example, https://b.example ,", defaults)
	if len(got) != 2 || got[0] != "https://a.example" || got[1] != "https://b.example" {
		t.Errorf("Expected trimmed origin list, got %v", got)
	}
}
