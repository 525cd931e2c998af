package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/drawdeck/drawdeck/backend/go/internal/v1/config"
	"github.com/drawdeck/drawdeck/backend/go/internal/v1/health"
	"github.com/drawdeck/drawdeck/backend/go/internal/v1/logging"
	"github.com/drawdeck/drawdeck/backend/go/internal/v1/middleware"
	"github.com/drawdeck/drawdeck/backend/go/internal/v1/ratelimit"
	"github.com/drawdeck/drawdeck/backend/go/internal/v1/registry"
	"github.com/drawdeck/drawdeck/backend/go/internal/v1/store"
	"github.com/drawdeck/drawdeck/backend/go/internal/v1/tracing"
	"github.com/drawdeck/drawdeck/backend/go/internal/v1/transport"
)

func main() {
	// Load .env file for local development.
	// Try multiple paths to handle different ways of running the app
	envPaths := []string{".env", "../../../.env", "../../.env"}
	var envLoaded bool

	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			slog.Info("Loaded environment from", "path", path)
			envLoaded = true
			break
		}
	}

	if !envLoaded {
		slog.Warn("No .env file found in any expected location, relying on environment variables")
	}

	// Validate environment variables before starting the server
	cfg, err := config.ValidateEnv()
	if err != nil {
		slog.Error("Environment validation failed", "error", err)
		os.Exit(1)
	}

	if err := logging.Initialize(cfg.DevelopmentMode); err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}

	if cfg.DevelopmentMode {
		slog.Info("Running in DEVELOPMENT MODE")
	}

	// --- Tracing (Optional) ---
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(context.Background(), "canvas-server", cfg.OTLPEndpoint)
		if err != nil {
			slog.Error("Failed to initialize tracer, continuing without tracing", "error", err)
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = tp.Shutdown(ctx)
			}()
			slog.Info("✅ Tracing initialized", "collector", cfg.OTLPEndpoint)
		}
	}

	// --- Redis (Optional) ---
	// Backs the connection rate limiter store; the canvas state itself is
	// single-instance.
	var redisClient *redis.Client
	if cfg.RedisEnabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			slog.Error("Failed to connect to Redis, falling back to memory store", "error", err)
			_ = redisClient.Close()
			redisClient = nil
		} else {
			slog.Info("✅ Redis initialized for rate limiting", "addr", cfg.RedisAddr)
		}
	} else {
		slog.Info("Running with in-memory rate limit store (Redis disabled)")
	}

	rateLimiter, err := ratelimit.NewRateLimiter(cfg, redisClient)
	if err != nil {
		slog.Error("Failed to create rate limiter", "error", err)
		os.Exit(1)
	}

	// --- Persistence and Room Registry ---
	fileStore, err := store.NewFileStore(cfg.DataDir)
	if err != nil {
		slog.Error("Failed to create snapshot store", "error", err)
		os.Exit(1)
	}
	slog.Info("Snapshot store ready", "dir", fileStore.Dir())

	reg := registry.New(fileStore)
	allowedOrigins := config.GetAllowedOrigins(cfg.AllowedOrigins, []string{"http://localhost:3000"})
	hub := transport.NewHub(reg, rateLimiter, allowedOrigins, cfg.RoomMaxUsers)

	// --- Set up Server ---
	router := gin.Default()
	// Cors
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = allowedOrigins
	router.Use(cors.New(corsConfig))

	// Error handling
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	if cfg.TracingEnabled {
		router.Use(otelgin.Middleware("canvas-server"))
	}

	// Routing
	router.GET("/socket.io", hub.ServeWs)

	// Prometheus metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check endpoints
	healthHandler := health.NewHandler(redisClient, fileStore.Dir())
	router.GET("/api/health", healthHandler.Health)
	router.GET("/health/live", healthHandler.Liveness)
	router.GET("/health/ready", healthHandler.Readiness)

	// Start the server. A taken port falls back to an OS-assigned one so a
	// stale process never blocks local restarts.
	listener, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		slog.Warn("Port unavailable, falling back to an OS-assigned port", "port", cfg.Port, "error", err)
		listener, err = net.Listen("tcp", ":0")
		if err != nil {
			slog.Error("Failed to bind any port", "error", err)
			os.Exit(1)
		}
	}

	srv := &http.Server{
		Handler: router,
	}

	// --- Graceful Shutdown ---
	// Start the server in a goroutine so it doesn't block.
	go func() {
		slog.Info("Canvas server starting", "addr", listener.Addr().String())
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			slog.Error("Failed to run server", "error", err)
			syscall.Kill(os.Getpid(), syscall.SIGTERM)
		}
	}()

	// Wait for an interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	// The context is used to inform the server it has 30 seconds to finish
	// the requests it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Disconnect all sessions and flush final room snapshots
	if err := hub.Shutdown(ctx); err != nil {
		slog.Error("Error during Hub shutdown:", "error", err)
	}

	// Shutdown HTTP server
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown:", "error", err)
	}

	// Drain pending snapshot writes
	if err := fileStore.Close(ctx); err != nil {
		slog.Error("Error closing snapshot store:", "error", err)
	}

	// Close Redis connection if it was initialized
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			slog.Error("Failed to close Redis connection:", "error", err)
		} else {
			slog.Info("Redis connection closed")
		}
	}

	slog.Info("Server exiting")
}
