package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	app, cleanup, err := InitializeAPI(ctx)
	if err != nil {
		log.Fatalf("failed to initialize API: %v", err)
	}
	defer cleanup()

	app.Logger.Info("starting loan document verification service", zap.String("version", "1.0.0"))

	sweeper, sweeperCleanup, err := InitializeRetentionSweeper(ctx)
	if err != nil {
		app.Logger.Error("failed to initialize retention sweeper", zap.Error(err))
		os.Exit(1)
	}
	defer sweeperCleanup()

	stopSweep := make(chan struct{})
	go runRetentionLoop(ctx, sweeper, app.Logger, stopSweep)
	defer close(stopSweep)

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("application panicked: %v\nstack trace: %s", r, debug.Stack())
			app.Logger.Error("panic recovered in main", zap.Error(err))
			os.Exit(1)
		}
	}()

	if err := app.StartServer(); err != nil {
		app.Logger.Error("API server failed", zap.Error(err))
		os.Exit(1)
	}

	app.Logger.Info("service stopped gracefully")
}

// runRetentionLoop sweeps expired verification_runs rows once a day until
// stop is closed (spec §9).
func runRetentionLoop(ctx context.Context, sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}, logger *zap.Logger, stop <-chan struct{}) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deleted, err := sweeper.Sweep(ctx)
			if err != nil {
				logger.Error("retention sweep failed", zap.Error(err))
				continue
			}
			logger.Info("retention sweep completed", zap.Int64("deleted", deleted))
		case <-stop:
			return
		}
	}
}
