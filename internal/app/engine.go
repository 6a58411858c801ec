package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/netpulse/client/internal/config"
	"github.com/netpulse/client/internal/db"
	"github.com/netpulse/client/internal/directory"
	"github.com/netpulse/client/internal/friends"
	"github.com/netpulse/client/internal/handlers"
	"github.com/netpulse/client/internal/identity"
	"github.com/netpulse/client/internal/middleware"
	"github.com/netpulse/client/internal/presence"
	"github.com/netpulse/client/internal/propagation"
	"github.com/netpulse/client/internal/refresh"
	"github.com/netpulse/client/internal/sessions"
	"github.com/netpulse/client/internal/snapshot"
)

const (
	authRatePerSecond = 1
	authBurst         = 5
	authLimiterTTL    = 10 * time.Minute
)

// engine owns every long-lived component of a running client.
type engine struct {
	logger    *slog.Logger
	identity  *identity.Store
	friends   *friends.Manager
	presence  *presence.Manager
	sessions  *sessions.Orchestrator
	scheduler *refresh.Scheduler
	queue     *propagation.Queue

	closeSnapshots func()
}

// buildEngine wires the components from cfg. The snapshot is not restored yet.
func buildEngine(ctx context.Context, cfg config.Config, dir directory.Client, logger *slog.Logger) (*engine, error) {
	backend, closeSnapshots, err := openSnapshotBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queue := propagation.NewQueue(propagation.Config{
		QueueSize:  cfg.PropagationQueue,
		Workers:    cfg.PropagationWorkers,
		JobTimeout: cfg.PropagationTimeout,
	}, logger)

	users := identity.New(identity.Options{
		Directory:   dir,
		Snapshots:   snapshot.New(backend),
		Propagation: queue,
		Logger:      logger,
	})
	requests := friends.NewManager(friends.Options{
		Users:       users,
		Directory:   dir,
		Propagation: queue,
		Logger:      logger,
	})
	scheduler := refresh.New(refresh.Options{
		Directory: dir,
		Users:     users,
		Requests:  requests,
		Interval:  cfg.RefreshInterval,
		Logger:    logger,
	})
	requests.SetRefresher(scheduler)

	return &engine{
		logger:   logger,
		identity: users,
		friends:  requests,
		presence: presence.NewManager(users),
		sessions: sessions.New(sessions.Options{
			Users:        users,
			Logger:       logger,
			TickInterval: cfg.TickInterval,
		}),
		scheduler:      scheduler,
		queue:          queue,
		closeSnapshots: closeSnapshots,
	}, nil
}

func (e *engine) dependencies() handlers.Dependencies {
	return handlers.Dependencies{
		Identity:    e.identity,
		Presence:    e.presence,
		Friends:     e.friends,
		Sessions:    e.sessions,
		Syncer:      e.scheduler,
		AuthLimiter: middleware.NewKeyedLimiter(authRatePerSecond, authBurst, authLimiterTTL),
	}
}

// close stops the countdown and drains pending remote writes.
func (e *engine) close(ctx context.Context) error {
	e.sessions.Close()
	err := e.queue.Shutdown(ctx)
	if e.closeSnapshots != nil {
		e.closeSnapshots()
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("drain propagation queue: %w", err)
	}
	return nil
}

func openSnapshotBackend(ctx context.Context, cfg config.Config) (snapshot.Backend, func(), error) {
	switch cfg.Snapshot {
	case config.SnapshotSQLite:
		backend, err := snapshot.OpenSQLiteBackend(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return backend, func() { _ = backend.Close() }, nil
	case config.SnapshotPostgres:
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return snapshot.NewPostgresBackend(pool), pool.Close, nil
	case config.SnapshotS3:
		backend, err := snapshot.NewS3Backend(ctx, cfg.ObjectStore)
		if err != nil {
			return nil, nil, err
		}
		return backend, nil, nil
	case config.SnapshotMemory, "":
		return snapshot.NewMemoryBackend(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown snapshot driver %q", cfg.Snapshot)
	}
}

func newDirectory(cfg config.Config) (directory.Client, error) {
	return directory.New(directory.HTTPConfig{
		BaseURL:        cfg.Directory.BaseURL,
		AuthToken:      cfg.Directory.AuthToken,
		Timeout:        cfg.Directory.Timeout,
		RequestsPerSec: cfg.Directory.RequestsPerSec,
		Burst:          cfg.Directory.Burst,
	})
}
