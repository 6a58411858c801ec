// Package app wires configuration, the engine and the control API into the
// netpulse commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/netpulse/client/internal/config"
	"github.com/netpulse/client/internal/handlers"
	"github.com/netpulse/client/internal/httpserver"
	"github.com/netpulse/client/internal/middleware"
)

const drainTimeout = 10 * time.Second

// Run dispatches a netpulse command.
func Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("expected command: run, status, or migrate")
	}

	switch args[0] {
	case "run":
		return run(ctx)
	case "status":
		return runStatus(ctx, os.Stdout, args[1:])
	case "migrate":
		return runMigrations(ctx, os.Stdout, args[1:])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func newLogger(w io.Writer, cfg config.Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{AddSource: true, Level: cfg.SlogLevel()}))
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := newLogger(os.Stdout, cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dir, err := newDirectory(cfg)
	if err != nil {
		return err
	}
	eng, err := buildEngine(ctx, cfg, dir, logger)
	if err != nil {
		return err
	}
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		if err := eng.close(drainCtx); err != nil {
			logger.Error("shutdown", "error", err)
		}
	}()

	if err := eng.identity.Restore(ctx); err != nil {
		logger.Warn("snapshot restore failed, starting empty", "error", err)
	}
	if cfg.SeedDemo {
		seedDemo(ctx, eng)
	}

	schedulerDone := eng.scheduler.Start(ctx)

	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, eng.dependencies())
	srv := httpserver.New(cfg.Addr(), middleware.RequestLogger(logger)(mux))

	ln, err := srv.Listen()
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Addr(), err)
	}
	logger.Info("control api listening", "addr", ln.Addr().String(), "snapshot", cfg.Snapshot)

	err = srv.Run(ctx, ln)
	stop()
	<-schedulerDone
	logger.Info("shut down")
	return err
}
