package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netpulse/client/internal/directory"
	"github.com/netpulse/client/internal/friends"
	"github.com/netpulse/client/internal/identity"
	"github.com/netpulse/client/internal/logging"
	"github.com/netpulse/client/internal/models"
	"github.com/netpulse/client/internal/propagation"
)

type fixture struct {
	dir       *directory.Memory
	users     *identity.Store
	friends   *friends.Manager
	scheduler *Scheduler
}

func newFixture(t *testing.T, client directory.Client, mem *directory.Memory) fixture {
	t.Helper()
	inline := propagation.Inline{Logger: logging.Discard()}
	users := identity.New(identity.Options{Directory: mem, Propagation: inline, Logger: logging.Discard()})
	manager := friends.NewManager(friends.Options{Users: users, Directory: mem, Propagation: inline, Logger: logging.Discard()})
	scheduler := New(Options{Directory: client, Users: users, Requests: manager, Logger: logging.Discard()})
	manager.SetRefresher(scheduler)
	return fixture{dir: mem, users: users, friends: manager, scheduler: scheduler}
}

func putUsers(t *testing.T, mem *directory.Memory, users ...models.User) {
	t.Helper()
	for _, u := range users {
		require.NoError(t, mem.PutUser(context.Background(), u))
	}
}

func TestRemoteWithoutFriendsKeepsLocalEdges(t *testing.T) {
	mem := directory.NewMemory()
	f := newFixture(t, mem, mem)
	ctx := context.Background()

	f.users.Seed(ctx, []models.User{
		{ID: "a", Name: "Anna", Email: "anna@test.com"},
		{ID: "b", Name: "Ivan", Email: "ivan@test.com"},
	})
	require.True(t, f.users.AddFriendEdge(ctx, "a", "b"))

	putUsers(t, mem,
		models.User{ID: "a", Name: "Anna", Email: "anna@test.com", Status: models.StatusWorking},
		models.User{ID: "b", Name: "Ivan", Email: "ivan@test.com"},
	)

	require.True(t, f.scheduler.RefreshUsers(ctx))

	a, _ := f.users.User("a")
	b, _ := f.users.User("b")
	assert.Equal(t, []string{"b"}, a.FriendsList)
	assert.Equal(t, []string{"a"}, b.FriendsList)
	assert.Equal(t, models.StatusWorking, a.Status, "remote fields win")
}

func TestFetchFailureLeavesStateUntouched(t *testing.T) {
	mem := directory.NewMemory()
	f := newFixture(t, mem, mem)
	ctx := context.Background()
	f.users.Seed(ctx, []models.User{{ID: "a", Name: "Anna", Email: "anna@test.com"}})
	before, rev := f.users.Snapshot()

	mem.Fail(errors.New("network down"))
	assert.False(t, f.scheduler.RefreshUsers(ctx))
	assert.False(t, f.scheduler.RefreshFriendRequests(ctx))

	after, afterRev := f.users.Snapshot()
	assert.Equal(t, before, after)
	assert.Equal(t, rev, afterRev)
}

func TestEmptyRemoteIsNoData(t *testing.T) {
	mem := directory.NewMemory()
	f := newFixture(t, mem, mem)
	ctx := context.Background()
	f.users.Seed(ctx, []models.User{{ID: "a", Name: "Anna", Email: "anna@test.com"}})

	assert.False(t, f.scheduler.RefreshUsers(ctx))
	assert.Len(t, f.users.Users(), 1)
}

func TestRemoteMembershipWinsButCurrentUserIsRetained(t *testing.T) {
	mem := directory.NewMemory()
	f := newFixture(t, mem, mem)
	ctx := context.Background()

	f.users.Seed(ctx, []models.User{
		{ID: "a", Name: "Anna", Email: "anna@test.com"},
		{ID: "gone", Name: "Old", Email: "old@test.com"},
		{ID: "me", Name: "Me", Email: "me@test.com"},
	})
	require.True(t, f.users.Login(ctx, "me@test.com"))
	putUsers(t, mem, models.User{ID: "a", Name: "Anna", Email: "anna@test.com"})

	require.True(t, f.scheduler.RefreshUsers(ctx))

	_, gone := f.users.User("gone")
	assert.False(t, gone, "users absent remotely are dropped")
	current, ok := f.users.CurrentUser()
	require.True(t, ok)
	assert.Equal(t, "me", current.ID)

	_, pushed := mem.User("me")
	assert.True(t, pushed, "retained current user is pushed again")
}

type flakyTable struct {
	UserTable
	failures atomic.Int32
	attempts atomic.Int32
}

func (f *flakyTable) Publish(ctx context.Context, merged []models.User, rev uint64) bool {
	f.attempts.Add(1)
	if f.failures.Add(-1) >= 0 {
		return false
	}
	return f.UserTable.Publish(ctx, merged, rev)
}

func TestConcurrentMutationTriggersRemerge(t *testing.T) {
	mem := directory.NewMemory()
	users := identity.New(identity.Options{Logger: logging.Discard()})
	table := &flakyTable{UserTable: users}
	table.failures.Store(1)
	putUsers(t, mem, models.User{ID: "a", Name: "Anna", Email: "anna@test.com"})

	s := New(Options{Directory: mem, Users: table, Logger: logging.Discard()})
	require.True(t, s.RefreshUsers(context.Background()))
	assert.EqualValues(t, 2, table.attempts.Load())

	table.failures.Store(maxPublishAttempts)
	table.attempts.Store(0)
	assert.False(t, s.RefreshUsers(context.Background()))
	assert.EqualValues(t, maxPublishAttempts, table.attempts.Load())
}

type blockingDirectory struct {
	*directory.Memory
	entered chan struct{}
	release chan struct{}
	calls   atomic.Int32
	once    sync.Once
}

func (b *blockingDirectory) FetchUsers(ctx context.Context) ([]models.User, error) {
	b.calls.Add(1)
	b.once.Do(func() { close(b.entered) })
	<-b.release
	return b.Memory.FetchUsers(ctx)
}

func TestConcurrentRefreshesShareOneFetch(t *testing.T) {
	mem := directory.NewMemory()
	putUsers(t, mem, models.User{ID: "a", Name: "Anna", Email: "anna@test.com"})
	blocking := &blockingDirectory{Memory: mem, entered: make(chan struct{}), release: make(chan struct{})}
	f := newFixture(t, blocking, mem)

	var wg sync.WaitGroup
	results := make(chan bool, 5)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results <- f.scheduler.RefreshUsers(context.Background())
	}()
	<-blocking.entered

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- f.scheduler.RefreshUsers(context.Background())
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(blocking.release)
	wg.Wait()
	close(results)

	assert.EqualValues(t, 1, blocking.calls.Load())
	for applied := range results {
		assert.True(t, applied)
	}
}

func TestRefreshFriendRequests(t *testing.T) {
	mem := directory.NewMemory()
	f := newFixture(t, mem, mem)
	ctx := context.Background()
	f.users.Seed(ctx, []models.User{
		{ID: "a", Name: "Anna", Email: "anna@test.com"},
		{ID: "b", Name: "Ivan", Email: "ivan@test.com"},
	})
	require.NoError(t, mem.PutFriendRequest(ctx, models.FriendRequest{ID: "r1", FromUserID: "a", ToUserID: "b", Status: models.RequestPending, CreatedAt: time.Unix(1700000000, 0)}))

	require.True(t, f.scheduler.RefreshFriendRequests(ctx))
	incoming := f.friends.Incoming("b")
	require.Len(t, incoming, 1)
	assert.Equal(t, "r1", incoming[0].ID)
}

func TestStartRunsColdStartAndTriggers(t *testing.T) {
	mem := directory.NewMemory()
	putUsers(t, mem, models.User{ID: "a", Name: "Anna", Email: "anna@test.com"})
	f := newFixture(t, mem, mem)

	ctx, cancel := context.WithCancel(context.Background())
	done := f.scheduler.Start(ctx)

	require.Eventually(t, func() bool { return mem.Calls("FetchUsers") == 1 }, time.Second, 5*time.Millisecond)
	_, ok := f.users.User("a")
	assert.True(t, ok)

	f.scheduler.Trigger()
	require.Eventually(t, func() bool { return mem.Calls("FetchUsers") == 2 }, time.Second, 5*time.Millisecond)

	before := mem.Calls("FetchFriendRequests")
	f.scheduler.TriggerRequests()
	require.Eventually(t, func() bool { return mem.Calls("FetchFriendRequests") > before }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

type slowFirstPut struct {
	*directory.Memory
	puts atomic.Int32
}

func (d *slowFirstPut) PutUser(ctx context.Context, user models.User) error {
	if d.puts.Add(1) == 1 {
		time.Sleep(100 * time.Millisecond)
	}
	return d.Memory.PutUser(ctx, user)
}

func TestRefreshAfterQueuedPushesKeepsLatestStatus(t *testing.T) {
	ctx := context.Background()
	dir := &slowFirstPut{Memory: directory.NewMemory()}
	queue := propagation.NewQueue(propagation.Config{QueueSize: 16, Workers: 2, JobTimeout: time.Second}, logging.Discard())
	users := identity.New(identity.Options{Directory: dir, Propagation: queue, Logger: logging.Discard()})
	s := New(Options{Directory: dir, Users: users, Logger: logging.Discard()})

	users.Seed(ctx, []models.User{{ID: "a", Name: "Anna", Email: "anna@test.com"}})
	require.True(t, users.Login(ctx, "anna@test.com"))
	require.True(t, users.UpdateStatus(ctx, models.StatusWorking))
	require.True(t, users.UpdateStatus(ctx, models.StatusStudying))
	require.NoError(t, queue.Shutdown(ctx))

	require.True(t, s.RefreshUsers(ctx))
	a, ok := users.User("a")
	require.True(t, ok)
	assert.Equal(t, models.StatusStudying, a.Status)
}
