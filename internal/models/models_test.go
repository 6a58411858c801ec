package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNormalizeUserDefaults(t *testing.T) {
	u := NormalizeUser(User{
		ID:          "u1",
		Name:        "Anna Smith",
		Email:       "Anna@Test.com",
		Status:      "",
		FriendsList: []string{"u2", "u1", "u2", " ", "u3"},
	})

	if u.Status != StatusOnline {
		t.Fatalf("expected default status online got %q", u.Status)
	}
	if u.Username != "anna" {
		t.Fatalf("expected username derived from email got %q", u.Username)
	}
	if len(u.FriendsList) != 2 || u.FriendsList[0] != "u2" || u.FriendsList[1] != "u3" {
		t.Fatalf("unexpected friends list %v", u.FriendsList)
	}
}

func TestNormalizeUserNilFriends(t *testing.T) {
	u := NormalizeUser(User{ID: "u1", Name: "Ivan Petrov", Status: "WORKING"})
	if u.FriendsList == nil {
		t.Fatal("expected empty non-nil friends list")
	}
	if u.Status != StatusWorking {
		t.Fatalf("expected status parsed case-insensitively got %q", u.Status)
	}
	if u.Username != "ivan_petrov" {
		t.Fatalf("expected username from name got %q", u.Username)
	}
}

func TestNormalizeUsersDropsInvalid(t *testing.T) {
	users := NormalizeUsers([]User{{ID: ""}, {ID: "a"}, {ID: "a", Name: "dup"}, {ID: "b"}})
	if len(users) != 2 {
		t.Fatalf("expected 2 users got %d", len(users))
	}
	if users[0].Name != "" {
		t.Fatalf("expected first occurrence kept got %+v", users[0])
	}
}

func TestDisplayStatus(t *testing.T) {
	u := User{Status: StatusStudying}
	if got := u.DisplayStatus(); got != "Studying" {
		t.Fatalf("expected preset label got %q", got)
	}
	u.CustomStatus = "  at the library "
	if got := u.DisplayStatus(); got != "at the library" {
		t.Fatalf("expected custom status got %q", got)
	}
	u.CustomStatus = "   "
	if got := u.DisplayStatus(); got != "Studying" {
		t.Fatalf("expected blank custom status ignored got %q", got)
	}
}

func TestToggleStatus(t *testing.T) {
	cases := []struct {
		from UserStatus
		want UserStatus
	}{
		{StatusOnline, StatusOffline},
		{StatusOffline, StatusOnline},
		{StatusWorking, StatusOnline},
		{StatusStudying, StatusOnline},
	}
	for _, tc := range cases {
		u := User{Status: tc.from, CustomStatus: "busy"}
		u.ToggleStatus()
		if u.Status != tc.want || u.CustomStatus != "" {
			t.Fatalf("toggle from %q: got %q / %q", tc.from, u.Status, u.CustomStatus)
		}
	}
}

func TestSessionRemainingSeconds(t *testing.T) {
	start := time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)
	s := Session{StartedAt: start, DurationSeconds: 60, IsActive: true}

	if got := s.RemainingSeconds(start); got != 60 {
		t.Fatalf("expected 60 got %d", got)
	}
	if got := s.RemainingSeconds(start.Add(45 * time.Second)); got != 15 {
		t.Fatalf("expected 15 got %d", got)
	}
	if got := s.RemainingSeconds(start.Add(2 * time.Minute)); got != 0 {
		t.Fatalf("expected clamp to 0 got %d", got)
	}
	if got := s.RemainingSeconds(start.Add(-time.Minute)); got != 60 {
		t.Fatalf("expected clamp to duration got %d", got)
	}

	s.IsActive = false
	if got := s.RemainingSeconds(start); got != 0 {
		t.Fatalf("expected 0 for inactive session got %d", got)
	}
}

func TestParseHandle(t *testing.T) {
	cases := map[string]string{
		"netpulse:user:anna":    "anna",
		"NetPulse:User:maria ":  "maria",
		"ivan":                  "ivan",
		"  alex@test.com ":      "alex@test.com",
		"other:user:someone":    "other:user:someone",
		HandlePayload("alexey"): "alexey",
	}
	for in, want := range cases {
		if got := ParseHandle(in); got != want {
			t.Fatalf("ParseHandle(%q) = %q want %q", in, got, want)
		}
	}
}

func TestFriendRequestEpochCreatedAt(t *testing.T) {
	var req FriendRequest
	if err := json.Unmarshal([]byte(`{"id":"r1","fromUserId":"a","toUserId":"b","status":"pending","createdAt":1700000000.5}`), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := time.Unix(1700000000, 500_000_000).UTC()
	if !req.CreatedAt.Equal(want) {
		t.Fatalf("expected %v got %v", want, req.CreatedAt)
	}

	out, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(out, &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if raw["createdAt"].(float64) != 1700000000.5 {
		t.Fatalf("expected epoch seconds got %v", raw["createdAt"])
	}
}

func TestNormalizeFriendRequests(t *testing.T) {
	now := time.Now().UTC()
	reqs := NormalizeFriendRequests([]FriendRequest{
		{ID: "late", FromUserID: "a", ToUserID: "b", Status: "weird", CreatedAt: now.Add(time.Minute)},
		{ID: "early", FromUserID: "a", ToUserID: "c", Status: RequestAccepted, CreatedAt: now},
		{ID: "", FromUserID: "a", ToUserID: "b"},
		{ID: "orphan", FromUserID: "a"},
	})
	if len(reqs) != 2 {
		t.Fatalf("expected 2 requests got %d", len(reqs))
	}
	if reqs[0].ID != "early" || reqs[1].ID != "late" {
		t.Fatalf("unexpected order %+v", reqs)
	}
	if reqs[1].Status != RequestPending {
		t.Fatalf("expected unknown status defaulted got %q", reqs[1].Status)
	}
}
