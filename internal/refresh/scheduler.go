// Package refresh pulls remote directory state and reconciles it into the
// local tables.
package refresh

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/netpulse/client/internal/directory"
	"github.com/netpulse/client/internal/logging"
	"github.com/netpulse/client/internal/models"
	"github.com/netpulse/client/internal/reconcile"
)

const maxPublishAttempts = 3

// UserTable is the identity store surface the scheduler merges into.
type UserTable interface {
	Snapshot() ([]models.User, uint64)
	Publish(ctx context.Context, merged []models.User, baseRevision uint64) bool
	CurrentUserID() string
	Repropagate(ids ...string)
}

// RequestTable receives fetched friend requests.
type RequestTable interface {
	Replace(ctx context.Context, remote []models.FriendRequest)
}

// Options wires a Scheduler.
type Options struct {
	Directory directory.Client
	Users     UserTable
	Requests  RequestTable
	Interval  time.Duration
	Logger    *slog.Logger
}

// Scheduler runs refreshes. Concurrent refreshes of the same resource share
// one in-flight fetch.
type Scheduler struct {
	dir      directory.Client
	users    UserTable
	requests RequestTable
	interval time.Duration
	logger   *slog.Logger

	group           singleflight.Group
	trigger         chan struct{}
	triggerRequests chan struct{}
}

// New constructs a Scheduler. A zero Interval disables the periodic loop;
// triggers still work.
func New(opts Options) *Scheduler {
	if opts.Directory == nil {
		opts.Directory = directory.Disabled{}
	}
	return &Scheduler{
		dir:             opts.Directory,
		users:           opts.Users,
		requests:        opts.Requests,
		interval:        opts.Interval,
		logger:          logging.Component(opts.Logger, "refresh"),
		trigger:         make(chan struct{}, 1),
		triggerRequests: make(chan struct{}, 1),
	}
}

// RefreshUsers fetches the remote user table and merges it into the local
// one. It reports whether remote data was applied; fetch failures leave the
// local table untouched.
func (s *Scheduler) RefreshUsers(ctx context.Context) bool {
	v, _, _ := s.group.Do("users", func() (any, error) {
		return s.refreshUsers(ctx), nil
	})
	return v.(bool)
}

func (s *Scheduler) refreshUsers(ctx context.Context) bool {
	ctx = logging.WithLogger(ctx, s.logger)
	ctx, span := logging.StartSpan(ctx, "refresh.users")

	remote, err := s.dir.FetchUsers(ctx)
	if err != nil {
		span.End(err)
		return false
	}
	remote = models.NormalizeUsers(remote)
	if len(remote) == 0 {
		span.End(nil)
		return false
	}

	for attempt := 1; attempt <= maxPublishAttempts; attempt++ {
		local, revision := s.users.Snapshot()
		merged := reconcile.MergeUsers(remote, local)
		merged, retained := retainCurrentUser(merged, local, s.users.CurrentUserID())

		if s.users.Publish(ctx, merged, revision) {
			if retained != "" {
				span.Logger().Info("current user missing remotely, pushing it again", "userId", retained)
				s.users.Repropagate(retained)
			}
			span.Logger().Debug("users merged", "remote", len(remote), "local", len(local), "merged", len(merged), "attempt", attempt)
			span.End(nil)
			return true
		}
	}

	span.Logger().Warn("local table kept changing, merge skipped until next refresh")
	span.End(nil)
	return false
}

// retainCurrentUser keeps the logged-in user in the table even when the remote
// snapshot does not know it yet, such as a registration whose push failed.
func retainCurrentUser(merged, local []models.User, currentID string) ([]models.User, string) {
	if currentID == "" {
		return merged, ""
	}
	for _, u := range merged {
		if u.ID == currentID {
			return merged, ""
		}
	}
	for _, u := range local {
		if u.ID == currentID {
			return append(merged, u.Clone()), currentID
		}
	}
	return merged, ""
}

// RefreshFriendRequests fetches remote friend requests and merges them into the
// local table.
func (s *Scheduler) RefreshFriendRequests(ctx context.Context) bool {
	if s.requests == nil {
		return false
	}
	v, _, _ := s.group.Do("friendRequests", func() (any, error) {
		return s.refreshFriendRequests(ctx), nil
	})
	return v.(bool)
}

func (s *Scheduler) refreshFriendRequests(ctx context.Context) bool {
	ctx = logging.WithLogger(ctx, s.logger)
	ctx, span := logging.StartSpan(ctx, "refresh.friend_requests")

	remote, err := s.dir.FetchFriendRequests(ctx)
	if err != nil {
		span.End(err)
		return false
	}
	s.requests.Replace(ctx, remote)
	span.End(nil)
	return true
}

// Trigger schedules a full refresh on the running loop.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// TriggerRequests schedules a friend request refresh on the running loop.
func (s *Scheduler) TriggerRequests() {
	select {
	case s.triggerRequests <- struct{}{}:
	default:
	}
}

// Start performs the cold-start refresh and then refreshes on every interval
// and trigger until ctx is cancelled. The returned channel closes on exit.
func (s *Scheduler) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.refreshAll(ctx)

		var tick <-chan time.Time
		if s.interval > 0 {
			ticker := time.NewTicker(s.interval)
			defer ticker.Stop()
			tick = ticker.C
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-tick:
				s.refreshAll(ctx)
			case <-s.trigger:
				s.refreshAll(ctx)
			case <-s.triggerRequests:
				s.RefreshFriendRequests(ctx)
			}
		}
	}()
	return done
}

func (s *Scheduler) refreshAll(ctx context.Context) {
	s.RefreshUsers(ctx)
	s.RefreshFriendRequests(ctx)
}
