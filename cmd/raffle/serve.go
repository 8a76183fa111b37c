package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"raffle/internal/config"
	"raffle/internal/handlers"
	"raffle/internal/logger"
	"raffle/internal/metrics"
	"raffle/internal/randomness"
	"raffle/internal/service"
	"raffle/internal/storage"
	"raffle/internal/tracker"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the raffle HTTP server and the closing tracker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath, envFile)
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
}

func serve(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Initialize(cfg.Log)
	defer logger.Sync()

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	store, err := storage.Open(cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		return err
	}
	defer store.Close()

	beacon, err := cfg.BeaconValue()
	if err != nil {
		return err
	}
	seeds, err := randomness.New(cfg.Randomness.Source, beacon)
	if err != nil {
		return err
	}
	raffleConfig, err := cfg.RaffleConfig()
	if err != nil {
		return err
	}

	svc, err := service.New(ctx, raffleConfig, store, seeds, metrics.New())
	if err != nil {
		return err
	}

	// failures of the background goroutines
	errCh := make(chan error, 2)

	if cfg.Tracker.Enabled {
		keeper, err := cfg.Keeper()
		if err != nil {
			return err
		}
		trackerInstance := tracker.NewTracker(svc, keeper, cfg.Tracker.Interval.Duration)
		go func() {
			if err := trackerInstance.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- err
			}
		}()
	}

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handlers.NewRouter(handlers.NewHTTPHandler(svc, cfg.Raffle.Decimals, cfg.Raffle.ClaimTimeoutSeconds)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- errors.Wrap(err, "http server")
		}
	}()

	var runErr error
	select {
	case runErr = <-errCh:
		logger.Error("stopping on error", zap.Error(runErr))
	case sig := <-waitForInterrupt():
		logger.Info("interrupt received", zap.String("signal", sig.String()))
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown", zap.Error(err))
	}
	return runErr
}

func waitForInterrupt() <-chan os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	return sigCh
}
