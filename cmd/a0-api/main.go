package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/alephzero/api/internal/alephzero"
	"github.com/alephzero/api/internal/api/handlers"
	"github.com/alephzero/api/internal/api/router"
	"github.com/alephzero/api/internal/config"
	"github.com/alephzero/api/internal/worker"
	"github.com/alephzero/api/internal/wsbridge"
)

func main() {
	// --- Telemetry & configuration ---
	godotenv.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("FATAL: configuration", "error", err)
		os.Exit(1)
	}

	// --- Core state ---
	rt := alephzero.New(cfg.Root)
	state := wsbridge.NewState()

	rest := handlers.NewRESTHandler(rt, logger)
	ws := handlers.NewWSHandler(state, rt, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router.New(router.Config{REST: rest, WS: ws, Logger: logger}),
	}

	// --- Background workers ---
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	go worker.NewHeartbeat(rt, logger).Start(workerCtx)

	// --- Serve until signalled ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", "port", cfg.Port, "root", cfg.Root)
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("FATAL: serve", "error", err)
			os.Exit(1)
		}
		return
	}

	// Release producer threads and close every live stream before taking
	// the listener down.
	state.Shutdown()
	stopWorkers()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown incomplete", "error", err)
	}
	logger.Info("gateway stopped")
}
