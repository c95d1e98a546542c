package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/efreitasn/brokersim/internal/broker"
	"github.com/efreitasn/brokersim/internal/config"
	"github.com/efreitasn/brokersim/internal/exchange"
	"github.com/efreitasn/brokersim/internal/handler"
	"github.com/efreitasn/brokersim/internal/service"
	"github.com/efreitasn/brokersim/internal/store"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up slog logger with configured level.
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Instantiate stores.
	accountStore := store.NewAccountStore()
	executionStore := store.NewExecutionStore()

	// Exchange.
	sim, err := exchange.NewSimulator(exchange.SimulatorConfig{
		Prices:   cfg.Tickers,
		Open:     cfg.MarketOpen,
		Interval: cfg.TickInterval,
		MaxStep:  cfg.MaxPriceStep,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("failed to create exchange", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Services.
	accountSvc := service.NewAccountService(accountStore, cfg.BcryptCost)
	executor := service.NewExecutor(sim, accountStore, executionStore, logger)

	// Broker (registers itself as an exchange listener).
	b, err := broker.New(broker.Config{
		Name:      cfg.BrokerName,
		Exchange:  sim,
		Accounts:  accountSvc,
		Processor: executor,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("failed to create broker", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Router.
	router := handler.NewRouter(b, sim, executionStore, logger)

	// Start the price feed with a cancellable context.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sim.Start(ctx)

	// Configure HTTP server.
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Start HTTP server in a goroutine.
	go func() {
		logger.Info("server starting", slog.String("addr", addr), slog.String("broker", cfg.BrokerName))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", slog.String("signal", sig.String()))

	// Graceful shutdown: stop HTTP server, detach the broker, stop the price feed.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	b.Close()
	cancel()

	logger.Info("server stopped")
}
