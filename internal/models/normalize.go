package models

import (
	"sort"
	"strings"
)

// NormalizeUser applies decode-time defaults to a user entering the engine.
func NormalizeUser(u User) User {
	u.ID = strings.TrimSpace(u.ID)
	u.Email = strings.TrimSpace(u.Email)
	if strings.TrimSpace(u.Username) == "" {
		u.Username = MakeUsername(u.Name, u.Email)
	}
	if !u.Status.Valid() {
		if parsed, ok := ParseUserStatus(string(u.Status)); ok {
			u.Status = parsed
		} else {
			u.Status = StatusOnline
		}
	}
	if strings.TrimSpace(u.CustomStatus) == "" {
		u.CustomStatus = ""
	}

	friends := make([]string, 0, len(u.FriendsList))
	seen := make(map[string]struct{}, len(u.FriendsList))
	for _, id := range u.FriendsList {
		id = strings.TrimSpace(id)
		if id == "" || id == u.ID {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		friends = append(friends, id)
	}
	u.FriendsList = friends
	return u
}

// NormalizeUsers normalizes every record, dropping ones without an id and
// keeping the first occurrence of a repeated id.
func NormalizeUsers(users []User) []User {
	out := make([]User, 0, len(users))
	seen := make(map[string]struct{}, len(users))
	for _, u := range users {
		u = NormalizeUser(u)
		if u.ID == "" {
			continue
		}
		if _, dup := seen[u.ID]; dup {
			continue
		}
		seen[u.ID] = struct{}{}
		out = append(out, u)
	}
	return out
}

// NormalizeFriendRequest defaults an unknown status to pending.
func NormalizeFriendRequest(r FriendRequest) FriendRequest {
	r.ID = strings.TrimSpace(r.ID)
	if !r.Status.valid() {
		r.Status = RequestPending
	}
	return r
}

// NormalizeFriendRequests normalizes and orders requests by creation time,
// dropping records without an id or either party.
func NormalizeFriendRequests(requests []FriendRequest) []FriendRequest {
	out := make([]FriendRequest, 0, len(requests))
	seen := make(map[string]struct{}, len(requests))
	for _, r := range requests {
		r = NormalizeFriendRequest(r)
		if r.ID == "" || r.FromUserID == "" || r.ToUserID == "" {
			continue
		}
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
