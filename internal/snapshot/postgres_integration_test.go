package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/netpulse/client/internal/models"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(runWithDatabase(m))
}

// runWithDatabase starts a throwaway cockroach node for the Postgres tests.
// When the node cannot start, those tests are skipped and the rest still run.
func runWithDatabase(m *testing.M) int {
	server, err := testserver.NewTestServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start cockroach test server: %v\n", err)
		return m.Run()
	}
	defer server.Stop()

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, server.PGURL().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v\n", err)
		return m.Run()
	}
	defer pool.Close()

	if err := applyMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		return 1
	}

	testPool = pool
	return m.Run()
}

func TestPostgresBackend_RoundTrip(t *testing.T) {
	if testPool == nil {
		t.Skip("cockroach test server unavailable")
	}
	ctx := context.Background()
	resetDatabase(t)

	backend := NewPostgresBackend(testPool)

	if _, err := backend.Get(ctx, UsersKey); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing key, got %v", err)
	}

	if err := backend.Set(ctx, UsersKey, []byte(`[]`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := backend.Set(ctx, UsersKey, []byte(`[{"id":"a"}]`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	value, err := backend.Get(ctx, UsersKey)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(value) != `[{"id":"a"}]` {
		t.Fatalf("expected overwritten value, got %s", value)
	}

	if err := backend.Delete(ctx, UsersKey); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := backend.Delete(ctx, UsersKey); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestPostgresBackend_Store(t *testing.T) {
	if testPool == nil {
		t.Skip("cockroach test server unavailable")
	}
	ctx := context.Background()
	resetDatabase(t)

	store := New(NewPostgresBackend(testPool))

	users := []models.User{{ID: "a", Name: "Anna", Email: "anna@test.com", Status: models.StatusWorking, FriendsList: []string{"b"}}}
	if err := store.SaveUsers(ctx, users); err != nil {
		t.Fatalf("save users: %v", err)
	}
	if err := store.SaveCurrentUserID(ctx, "a"); err != nil {
		t.Fatalf("save current user: %v", err)
	}

	loaded, err := store.LoadUsers(ctx)
	if err != nil {
		t.Fatalf("load users: %v", err)
	}
	if len(loaded) != 1 || loaded[0].Username != "anna" || loaded[0].Status != models.StatusWorking {
		t.Fatalf("unexpected users %+v", loaded)
	}

	current, err := store.LoadCurrentUserID(ctx)
	if err != nil || current != "a" {
		t.Fatalf("expected current user a, got %q (%v)", current, err)
	}

	if err := store.SaveCurrentUserID(ctx, ""); err != nil {
		t.Fatalf("clear current user: %v", err)
	}
	if err := store.SaveCurrentUserID(ctx, ""); err != nil {
		t.Fatalf("clear twice: %v", err)
	}
	current, err = store.LoadCurrentUserID(ctx)
	if err != nil || current != "" {
		t.Fatalf("expected cleared current user, got %q (%v)", current, err)
	}
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir := filepath.Join("..", "..", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
			continue
		}
		contents, err := os.ReadFile(filepath.Join(migrationsDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		if _, err := pool.Exec(ctx, string(contents)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

func resetDatabase(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	conn, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "TRUNCATE TABLE snapshots"); err != nil {
		t.Fatalf("truncate snapshots: %v", err)
	}
}
