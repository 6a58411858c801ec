// Package reconcile merges remote directory snapshots with the local cache.
//
// Both merges are pure: inputs are never modified and the result shares no
// slices with them, so callers may run them on any goroutine.
package reconcile

import (
	"sort"

	"github.com/netpulse/client/internal/models"
)

// MergeUsers combines a remote user snapshot with the local one.
//
// Friendships are additive: for every remote user the remote and local friend
// lists are unioned, so an edge known locally survives a remote snapshot that
// has not caught up. Membership follows the remote snapshot when it is
// non-empty; an empty remote snapshot leaves the local table as it is.
func MergeUsers(remote, local []models.User) []models.User {
	if len(remote) == 0 {
		out := make([]models.User, 0, len(local))
		for _, u := range local {
			out = append(out, u.Clone())
		}
		return out
	}

	localByID := make(map[string]models.User, len(local))
	for _, u := range local {
		localByID[u.ID] = u
	}

	out := make([]models.User, 0, len(remote))
	for _, r := range remote {
		merged := r.Clone()
		if l, ok := localByID[r.ID]; ok {
			merged.FriendsList = unionFriends(r.ID, r.FriendsList, l.FriendsList)
		} else {
			merged.FriendsList = unionFriends(r.ID, r.FriendsList, nil)
		}
		out = append(out, merged)
	}
	return out
}

func unionFriends(self string, first, second []string) []string {
	out := make([]string, 0, len(first)+len(second))
	seen := make(map[string]struct{}, len(first)+len(second))
	for _, list := range [][]string{first, second} {
		for _, id := range list {
			if id == self {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// RequestMerge is the outcome of MergeRequests.
type RequestMerge struct {
	Requests []models.FriendRequest
	// Overridden lists requests whose local terminal status won over a remote
	// pending copy. The remote copy is stale and needs the status re-sent.
	Overridden []models.FriendRequest
}

// MergeRequests unions remote and local friend requests by id.
//
// The remote copy wins, except that a local terminal record is never replaced
// by a remote pending one. Records only known locally are kept. When several
// pending requests exist for the same ordered pair, only the earliest survives.
func MergeRequests(remote, local []models.FriendRequest) RequestMerge {
	byID := make(map[string]models.FriendRequest, len(remote)+len(local))
	order := make([]string, 0, len(remote)+len(local))

	for _, r := range remote {
		if _, ok := byID[r.ID]; !ok {
			order = append(order, r.ID)
		}
		byID[r.ID] = r
	}

	var result RequestMerge
	for _, l := range local {
		current, ok := byID[l.ID]
		if !ok {
			byID[l.ID] = l
			order = append(order, l.ID)
			continue
		}
		if l.Status.Terminal() && current.Status == models.RequestPending {
			byID[l.ID] = l
			result.Overridden = append(result.Overridden, l)
		}
	}

	merged := make([]models.FriendRequest, 0, len(order))
	for _, id := range order {
		merged = append(merged, byID[id])
	}
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].CreatedAt.Equal(merged[j].CreatedAt) {
			return merged[i].ID < merged[j].ID
		}
		return merged[i].CreatedAt.Before(merged[j].CreatedAt)
	})

	type pair struct{ from, to string }
	pending := make(map[pair]struct{})
	result.Requests = make([]models.FriendRequest, 0, len(merged))
	for _, r := range merged {
		if r.Status == models.RequestPending {
			key := pair{r.FromUserID, r.ToUserID}
			if _, dup := pending[key]; dup {
				continue
			}
			pending[key] = struct{}{}
		}
		result.Requests = append(result.Requests, r)
	}
	return result
}
