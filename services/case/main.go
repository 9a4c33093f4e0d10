package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/gorilla/mux"

	"github.com/sos-echo/platform/pkg/logger"
	"github.com/sos-echo/platform/services/case/internal/alertlog"
	"github.com/sos-echo/platform/services/case/internal/classifier"
	"github.com/sos-echo/platform/services/case/internal/clock"
	"github.com/sos-echo/platform/services/case/internal/config"
	"github.com/sos-echo/platform/services/case/internal/handler"
	"github.com/sos-echo/platform/services/case/internal/identity"
	"github.com/sos-echo/platform/services/case/internal/metrics"
	"github.com/sos-echo/platform/services/case/internal/monitor"
	"github.com/sos-echo/platform/services/case/internal/repository"
	"github.com/sos-echo/platform/services/case/internal/seed"
	"github.com/sos-echo/platform/services/case/internal/service"
	"github.com/sos-echo/platform/services/case/internal/workflow"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(&logger.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Output:    os.Stdout,
		AddSource: cfg.Service.Debug,
	})
	slog.SetDefault(log)

	slog.Info("starting service",
		"service", cfg.Service.Name,
		"environment", cfg.Service.Environment,
		"port", cfg.Service.HTTPPort,
	)

	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" {
		jwtSecret = ephemeralSecret()
		slog.Warn("JWT_SECRET not set, sessions will not survive a restart")
	}

	// Initialize components
	clk := clock.System{}
	collector := metrics.NewCollector()
	registry := repository.NewMemoryRegistry(clk)
	engine := workflow.NewEngine(clk, log)
	caseService := service.NewCaseService(registry, engine, collector, clk, log)

	authenticator := identity.NewAuthenticator()
	sessions := identity.NewSessionIssuer(jwtSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL, clk)

	if cfg.Monitor.GeminiAPIKey == "" {
		slog.Warn("GEMINI_API_KEY not set, frame classification will fail upstream")
	}
	gemini := classifier.NewGeminiClient(classifier.GeminiConfig{
		Endpoint: cfg.Monitor.GeminiEndpoint,
		Model:    cfg.Monitor.GeminiModel,
		APIKey:   cfg.Monitor.GeminiAPIKey,
		Timeout:  cfg.Monitor.RequestTimeout,
	}, log)
	alertLog := alertlog.NewMemoryStore(cfg.Monitor.LogCapacity)
	safetyMonitor := monitor.New(monitor.Config{
		Cooldown:    cfg.Monitor.Cooldown,
		CallTimeout: cfg.Monitor.RequestTimeout,
		Programme:   cfg.Monitor.Programme,
	}, gemini, caseService, alertLog, collector, clk, log)

	var ready atomic.Bool
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Seed.Enabled {
		seeder, err := seed.New(caseService, log)
		if err != nil {
			slog.Error("failed to initialise seeder", "error", err)
			os.Exit(1)
		}
		if _, err := seeder.Run(ctx, cfg.Seed.Count); err != nil {
			slog.Error("failed to seed demo cases", "error", err)
			os.Exit(1)
		}
	}

	var background sync.WaitGroup
	if cfg.Monitor.SnapshotURL != "" {
		scanner := monitor.NewScanner(safetyMonitor,
			monitor.NewHTTPSnapshotSource(cfg.Monitor.SnapshotURL, cfg.Monitor.RequestTimeout),
			cfg.Monitor.ScanInterval, log)
		background.Add(1)
		go func() {
			defer background.Done()
			scanner.Run(ctx)
		}()
	}

	// Set up HTTP router
	router := handler.NewRouter(handler.RouterConfig{
		ServiceName: cfg.Service.Name,
		CORS:        cfg.CORS,
		Sessions:    sessions,
		Auth:        handler.NewAuthHandler(authenticator, sessions, log),
		Cases:       handler.NewCaseHandler(caseService, log),
		Monitor:     handler.NewMonitorHandler(safetyMonitor, log),
		Metrics:     collector,
		Logger:      log,
		Ready:       ready.Load,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Service.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.Service.ReadTimeout,
		WriteTimeout: cfg.Service.WriteTimeout,
		IdleTimeout:  cfg.Service.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		slog.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Start metrics server if configured on different port
	var metricsServer *http.Server
	if cfg.Service.MetricsPort != "" && cfg.Service.MetricsPort != cfg.Service.HTTPPort {
		metricsRouter := mux.NewRouter()
		metricsRouter.Handle("/metrics", collector.Handler()).Methods("GET")

		metricsServer = &http.Server{
			Addr:         ":" + cfg.Service.MetricsPort,
			Handler:      metricsRouter,
			ReadTimeout:  cfg.Service.ReadTimeout,
			WriteTimeout: cfg.Service.WriteTimeout,
		}

		go func() {
			slog.Info("Metrics server listening", "addr", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("Metrics server error", "error", err)
			}
		}()
	}

	ready.Store(true)

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down servers")
	ready.Store(false)
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Service.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server forced to shutdown", "error", err)
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("Metrics server forced to shutdown", "error", err)
		}
	}

	background.Wait()
	slog.Info("servers exited gracefully")
}

func ephemeralSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}
