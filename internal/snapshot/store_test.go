package snapshot

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/netpulse/client/internal/models"
)

func TestStoreMissingKeysAreEmpty(t *testing.T) {
	store := New(NewMemoryBackend())
	ctx := context.Background()

	users, err := store.LoadUsers(ctx)
	if err != nil || users != nil {
		t.Fatalf("expected empty table, got %v (%v)", users, err)
	}
	id, err := store.LoadCurrentUserID(ctx)
	if err != nil || id != "" {
		t.Fatalf("expected no current user, got %q (%v)", id, err)
	}
}

func TestStoreNormalizesOnLoad(t *testing.T) {
	backend := NewMemoryBackend()
	ctx := context.Background()
	raw := `[{"id":"a","name":"Anna","email":"Anna@Test.com","status":"sleeping","friendsList":["a","b","b"]},{"id":"","name":"ghost"}]`
	if err := backend.Set(ctx, UsersKey, []byte(raw)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	users, err := New(backend).LoadUsers(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("expected record without id to be dropped, got %+v", users)
	}
	u := users[0]
	if u.Status != models.StatusOnline || u.Username != "anna" || len(u.FriendsList) != 1 || u.FriendsList[0] != "b" {
		t.Fatalf("unexpected normalized user %+v", u)
	}
}

func TestStoreRejectsCorruptSnapshot(t *testing.T) {
	backend := NewMemoryBackend()
	ctx := context.Background()
	_ = backend.Set(ctx, UsersKey, []byte("{not json"))

	if _, err := New(backend).LoadUsers(ctx); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestStoreSaveNilWritesEmptyArray(t *testing.T) {
	backend := NewMemoryBackend()
	ctx := context.Background()

	if err := New(backend).SaveUsers(ctx, nil); err != nil {
		t.Fatalf("save: %v", err)
	}
	value, _ := backend.Get(ctx, UsersKey)
	if string(value) != "[]" {
		t.Fatalf("expected empty array, got %s", value)
	}
}

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	failGet error
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: make(map[string][]byte)}
}

func (f *fakeObjects) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet != nil {
		return nil, f.failGet
	}
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeObjects) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeObjects) Upload(_ context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	return &manager.UploadOutput{}, nil
}

func (f *fakeObjects) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.objects {
		keys = append(keys, k)
	}
	return keys
}

func TestS3BackendStoresObjectPerKey(t *testing.T) {
	objects := newFakeObjects()
	store := New(newS3Backend(objects, objects, "bucket", "/netpulse/"))
	ctx := context.Background()

	if err := store.SaveCurrentUserID(ctx, "a"); err != nil {
		t.Fatalf("save current user: %v", err)
	}
	keys := objects.keys()
	if len(keys) != 1 || keys[0] != "netpulse/currentUserId.json" {
		t.Fatalf("unexpected object keys %v", keys)
	}

	id, err := store.LoadCurrentUserID(ctx)
	if err != nil || id != "a" {
		t.Fatalf("expected a, got %q (%v)", id, err)
	}

	if err := store.SaveCurrentUserID(ctx, ""); err != nil {
		t.Fatalf("clear: %v", err)
	}
	id, err = store.LoadCurrentUserID(ctx)
	if err != nil || id != "" {
		t.Fatalf("expected cleared id, got %q (%v)", id, err)
	}
}

func TestS3BackendWrapsFailures(t *testing.T) {
	objects := newFakeObjects()
	objects.failGet = errors.New("access denied")
	backend := newS3Backend(objects, objects, "bucket", "")

	_, err := backend.Get(context.Background(), UsersKey)
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected wrapped failure, got %v", err)
	}
}
