// drowsyd: drowsiness detection service.
// Accepts landmark frames from extractors over WebSocket or REST and pushes
// alerts to observers.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/drowsy/internal/config"
	"github.com/teslashibe/drowsy/internal/log"
	"github.com/teslashibe/drowsy/pkg/calibstore"
	"github.com/teslashibe/drowsy/pkg/fatigue"
	"github.com/teslashibe/drowsy/pkg/server"
)

var version = "1.0.0"

func main() {
	var flags config.Flags
	flags.Register(flag.CommandLine)
	flag.Parse()

	cfg, err := config.Load(flags.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	cfg.ApplyFlags(flag.CommandLine, &flags)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log.Setup(cfg.LogLevel, cfg.IsProduction())
	l := log.Component("main")

	store, err := openStore(cfg.Store)
	if err != nil {
		l.Error("failed to open calibration store", "error", err)
		os.Exit(1)
	}

	srv := server.New(server.Options{
		Detection: cfg.Detection.Machine(),
		Store:     store,
		AutoStart: cfg.AutoStart,
		Debug:     cfg.Debug,
	})
	app := srv.NewApp("drowsyd", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Run(ctx)

	go func() {
		addr := cfg.Addr()
		l.Info("starting server",
			"version", version,
			"addr", addr,
			"preset", cfg.Detection.Preset,
			"fps", cfg.Detection.Machine().FPS,
		)
		l.Info("endpoints",
			"extractor", fmt.Sprintf("ws://localhost:%d/ws/session/:id", cfg.Port),
			"events", fmt.Sprintf("ws://localhost:%d/ws/events", cfg.Port),
			"sessions", fmt.Sprintf("http://localhost:%d/api/sessions", cfg.Port),
		)
		if err := app.Listen(addr); err != nil {
			l.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	l.Info("shutting down")
	srv.Shutdown()
	cancel()

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		l.Warn("shutdown error", "error", err)
	}
}

// openStore resolves the calibration store setting.
func openStore(path string) (fatigue.CalibrationStore, error) {
	switch path {
	case config.StoreMemory:
		return fatigue.NewMemoryStore(), nil
	case config.StoreDefault:
		return calibstore.NewDefaultStore()
	default:
		return calibstore.NewJSONStore(path)
	}
}
