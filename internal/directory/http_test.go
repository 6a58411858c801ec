package directory

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/netpulse/client/internal/models"
)

type recordedRequest struct {
	method string
	path   string
	query  string
	body   string
}

type fakeDirectory struct {
	mu       sync.Mutex
	requests []recordedRequest
	status   int
	body     string
}

func (f *fakeDirectory) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery, body: string(data)})
	status, body := f.status, f.body
	f.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func (f *fakeDirectory) recorded() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

func newTestClient(t *testing.T, handler http.Handler) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewHTTPClient(HTTPConfig{BaseURL: srv.URL + "/db/", AuthToken: "secret", Timeout: time.Second, RequestsPerSec: 1000, Burst: 100})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestFetchUsersDecodesKeyedObject(t *testing.T) {
	fake := &fakeDirectory{body: `{
		"b": {"id":"b","name":"Ivan","email":"ivan@test.com","status":"offline"},
		"a": {"id":"a","name":"Anna","email":"anna@test.com","username":"anna","status":"online","friendsList":["b"]},
		"hole": null
	}`}
	client := newTestClient(t, fake)

	users, err := client.FetchUsers(context.Background())
	if err != nil {
		t.Fatalf("fetch users: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users got %d", len(users))
	}
	if users[0].ID != "a" || users[1].ID != "b" {
		t.Fatalf("expected users ordered by key got %+v", users)
	}
	if users[1].FriendsList != nil {
		t.Fatalf("expected missing friends list to decode as nil before normalization")
	}

	got := fake.recorded()[0]
	if got.method != http.MethodGet || got.path != "/db/users.json" || got.query != "auth=secret" {
		t.Fatalf("unexpected request %+v", got)
	}
}

func TestFetchUsersDecodesArray(t *testing.T) {
	client := newTestClient(t, &fakeDirectory{body: `[null, {"id":"a","name":"Anna","email":"anna@test.com"}]`})

	users, err := client.FetchUsers(context.Background())
	if err != nil {
		t.Fatalf("fetch users: %v", err)
	}
	if len(users) != 1 || users[0].ID != "a" {
		t.Fatalf("unexpected users %+v", users)
	}
}

func TestFetchFriendRequestsNullBody(t *testing.T) {
	client := newTestClient(t, &fakeDirectory{body: "null"})

	requests, err := client.FetchFriendRequests(context.Background())
	if err != nil {
		t.Fatalf("fetch friend requests: %v", err)
	}
	if len(requests) != 0 {
		t.Fatalf("expected no requests got %d", len(requests))
	}
}

func TestFetchFriendRequestsDecodesEpochDates(t *testing.T) {
	client := newTestClient(t, &fakeDirectory{body: `{"r1":{"id":"r1","fromUserId":"a","toUserId":"b","status":"pending","createdAt":1700000000}}`})

	requests, err := client.FetchFriendRequests(context.Background())
	if err != nil {
		t.Fatalf("fetch friend requests: %v", err)
	}
	if len(requests) != 1 || !requests[0].CreatedAt.Equal(time.Unix(1700000000, 0)) {
		t.Fatalf("unexpected requests %+v", requests)
	}
}

func TestFetchFailures(t *testing.T) {
	cases := []struct {
		name    string
		fake    *fakeDirectory
		wantErr error
	}{
		{"non2xx", &fakeDirectory{status: http.StatusUnauthorized, body: `{"error":"denied"}`}, ErrUnexpectedStatus},
		{"malformed", &fakeDirectory{body: `{"a": 42}`}, ErrMalformedBody},
		{"scalar", &fakeDirectory{body: `"text"`}, ErrMalformedBody},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, tc.fake)
			if _, err := client.FetchUsers(context.Background()); !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v got %v", tc.wantErr, err)
			}
		})
	}
}

func TestResponseTooLarge(t *testing.T) {
	fake := &fakeDirectory{body: "[" + strings.Repeat(" ", 64) + "]"}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	client, err := NewHTTPClient(HTTPConfig{BaseURL: srv.URL, MaxResponseBytes: 16})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.FetchUsers(context.Background()); !errors.Is(err, ErrResponseTooLarge) {
		t.Fatalf("expected ErrResponseTooLarge got %v", err)
	}
}

func TestWrites(t *testing.T) {
	fake := &fakeDirectory{body: "{}"}
	client := newTestClient(t, fake)
	ctx := context.Background()

	user := models.User{ID: "a", Name: "Anna", Email: "anna@test.com", Username: "anna", Status: models.StatusWorking, FriendsList: []string{"b"}}
	if err := client.PutUser(ctx, user); err != nil {
		t.Fatalf("put user: %v", err)
	}
	request := models.FriendRequest{ID: "r1", FromUserID: "a", ToUserID: "b", Status: models.RequestPending, CreatedAt: time.Unix(1700000000, 0)}
	if err := client.PutFriendRequest(ctx, request); err != nil {
		t.Fatalf("put request: %v", err)
	}
	if err := client.PatchFriendRequestStatus(ctx, "r1", models.RequestAccepted); err != nil {
		t.Fatalf("patch request: %v", err)
	}

	recorded := fake.recorded()
	if len(recorded) != 3 {
		t.Fatalf("expected 3 requests got %d", len(recorded))
	}

	put := recorded[0]
	if put.method != http.MethodPut || put.path != "/db/users/a.json" {
		t.Fatalf("unexpected put user request %+v", put)
	}
	var decoded models.User
	if err := json.Unmarshal([]byte(put.body), &decoded); err != nil {
		t.Fatalf("decode put body: %v", err)
	}
	if decoded.Status != models.StatusWorking || len(decoded.FriendsList) != 1 {
		t.Fatalf("unexpected put body %+v", decoded)
	}

	if recorded[1].method != http.MethodPut || recorded[1].path != "/db/friendRequests/r1.json" {
		t.Fatalf("unexpected put request %+v", recorded[1])
	}

	patch := recorded[2]
	if patch.method != http.MethodPatch || patch.path != "/db/friendRequests/r1.json" {
		t.Fatalf("unexpected patch request %+v", patch)
	}
	if strings.TrimSpace(patch.body) != `{"status":"accepted"}` {
		t.Fatalf("expected status-only patch body got %s", patch.body)
	}
}

func TestWriteRejectsEmptyIDs(t *testing.T) {
	client := newTestClient(t, &fakeDirectory{})
	ctx := context.Background()

	if err := client.PutUser(ctx, models.User{}); err == nil {
		t.Fatal("expected error for empty user id")
	}
	if err := client.PutFriendRequest(ctx, models.FriendRequest{}); err == nil {
		t.Fatal("expected error for empty request id")
	}
	if err := client.PatchFriendRequestStatus(ctx, "", models.RequestDeclined); err == nil {
		t.Fatal("expected error for empty patch id")
	}
}

func TestNewSelectsImplementation(t *testing.T) {
	client, err := New(HTTPConfig{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, ok := client.(Disabled); !ok {
		t.Fatalf("expected disabled client got %T", client)
	}
	users, err := client.FetchUsers(context.Background())
	if err != nil || users != nil {
		t.Fatalf("expected no data from disabled client got %v %v", users, err)
	}

	if _, err := New(HTTPConfig{BaseURL: "ftp://example.com"}); err == nil {
		t.Fatal("expected unsupported scheme error")
	}
}

func TestMemoryDirectory(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	if err := mem.PutFriendRequest(ctx, models.FriendRequest{ID: "r1", FromUserID: "a", ToUserID: "b", Status: models.RequestPending}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := mem.PatchFriendRequestStatus(ctx, "r1", models.RequestDeclined); err != nil {
		t.Fatalf("patch: %v", err)
	}
	r, ok := mem.Request("r1")
	if !ok || r.Status != models.RequestDeclined || r.FromUserID != "a" {
		t.Fatalf("expected patch to preserve fields got %+v", r)
	}

	mem.Fail(errors.New("offline"))
	if _, err := mem.FetchUsers(ctx); err == nil {
		t.Fatal("expected injected failure")
	}
	if mem.Calls("FetchUsers") != 1 {
		t.Fatalf("expected call counted got %d", mem.Calls("FetchUsers"))
	}
}
