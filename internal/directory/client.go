// Package directory talks to the remote user directory, a JSON document store
// exposed over REST.
package directory

import (
	"context"
	"errors"

	"github.com/netpulse/client/internal/models"
)

var (
	// ErrUnexpectedStatus indicates the directory answered with a non-2xx code.
	ErrUnexpectedStatus = errors.New("directory returned unexpected status")
	// ErrMalformedBody indicates the response could not be decoded.
	ErrMalformedBody = errors.New("directory returned malformed body")
	// ErrResponseTooLarge indicates the response exceeded the configured limit.
	ErrResponseTooLarge = errors.New("directory response too large")
)

// Client is the narrow contract the engine needs from the remote directory.
// Callers treat every error as "no data": remote state is advisory relative
// to the local optimistic copy.
type Client interface {
	FetchUsers(ctx context.Context) ([]models.User, error)
	PutUser(ctx context.Context, user models.User) error
	FetchFriendRequests(ctx context.Context) ([]models.FriendRequest, error)
	PutFriendRequest(ctx context.Context, request models.FriendRequest) error
	PatchFriendRequestStatus(ctx context.Context, id string, status models.FriendRequestStatus) error
}

// Disabled is used when no directory URL is configured. Fetches return no data
// and writes are no-ops.
type Disabled struct{}

func (Disabled) FetchUsers(context.Context) ([]models.User, error) { return nil, nil }

func (Disabled) PutUser(context.Context, models.User) error { return nil }

func (Disabled) FetchFriendRequests(context.Context) ([]models.FriendRequest, error) {
	return nil, nil
}

func (Disabled) PutFriendRequest(context.Context, models.FriendRequest) error { return nil }

func (Disabled) PatchFriendRequestStatus(context.Context, string, models.FriendRequestStatus) error {
	return nil
}

var _ Client = Disabled{}
