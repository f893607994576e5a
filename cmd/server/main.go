package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ignite/onboarding-gateway/internal/api"
	"github.com/ignite/onboarding-gateway/internal/config"
	"github.com/ignite/onboarding-gateway/internal/dispatch"
	"github.com/ignite/onboarding-gateway/internal/ingestion"
	"github.com/ignite/onboarding-gateway/internal/onboarding"
	"github.com/ignite/onboarding-gateway/internal/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// checkPortAvailable verifies that the target address is not already in use.
func checkPortAvailable(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("address %s is already in use: %w", addr, err)
	}
	return ln.Close()
}

func main() {
	if err := run(); err != nil {
		logger.New(os.Stderr).Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	level, err := logger.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	log := logger.New(os.Stdout, logger.WithLevel(level), logger.WithRedactPII(cfg.Logging.Redact()))

	addr := cfg.Server.Addr()
	if err := checkPortAvailable(addr); err != nil {
		return fmt.Errorf("pre-flight check failed: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	forwarder, cleanup, err := ingestion.New(ctx, cfg.Ingestion, log)
	if err != nil {
		return fmt.Errorf("init ingestion: %w", err)
	}
	defer func() {
		if err := cleanup(); err != nil {
			log.Warn("Ingestion cleanup failed", "error", err)
		}
	}()
	log.Info("Ingestion sink initialized", "driver", cfg.Ingestion.Driver)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	dispatcher := dispatch.New(forwarder, cfg.Dispatch.GracePeriod(),
		dispatch.WithLogger(log),
		dispatch.WithMetrics(dispatch.NewMetrics(reg)),
	)

	handlers := api.NewHandlers(onboarding.NewValidator(), dispatcher, log, cfg.Server.MaxBodyBytes)
	server := api.NewServer(cfg.Server, handlers, api.RouteOptions{
		Health:         api.NewHealthChecker(forwarder),
		Metrics:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Logger:         log,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server is running", "addr", server.Addr(), "grace_period", dispatcher.GracePeriod().String())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-done:
		log.Info("Shutting down")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", "error", err)
	}

	drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.Dispatch.DrainTimeout())
	defer drainCancel()
	if err := dispatcher.Drain(drainCtx); err != nil {
		log.Warn("Detached ingestion calls abandoned at shutdown", "error", err)
	}

	log.Info("Server stopped")
	return nil
}
