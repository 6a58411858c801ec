package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/netpulse/client/internal/models"
)

// HTTPConfig controls the REST client.
type HTTPConfig struct {
	BaseURL          string
	AuthToken        string
	Timeout          time.Duration
	RequestsPerSec   float64
	Burst            int
	MaxResponseBytes int64
}

// HTTPClient implements Client against a Firebase-style REST document store:
// collections are read with GET /<name>.json and records are written to
// /<name>/<id>.json.
type HTTPClient struct {
	base       *url.URL
	authToken  string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxBytes   int64
}

// NewHTTPClient validates the base URL and applies defaults.
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, fmt.Errorf("directory: base url is required")
	}
	base, err := url.Parse(strings.TrimSuffix(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("directory: parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("directory: unsupported scheme %q", base.Scheme)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = 8 << 20
	}

	return &HTTPClient{
		base:       base,
		authToken:  cfg.AuthToken,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), cfg.Burst),
		maxBytes:   cfg.MaxResponseBytes,
	}, nil
}

// New returns an HTTPClient when a base URL is configured and Disabled otherwise.
func New(cfg HTTPConfig) (Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return Disabled{}, nil
	}
	return NewHTTPClient(cfg)
}

// FetchUsers loads every user. The directory may store them as an object keyed
// by id or as an array.
func (c *HTTPClient) FetchUsers(ctx context.Context) ([]models.User, error) {
	body, err := c.do(ctx, http.MethodGet, "users.json", nil)
	if err != nil {
		return nil, err
	}
	users, err := decodeCollection[models.User](body)
	if err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return users, nil
}

// PutUser overwrites the full user record.
func (c *HTTPClient) PutUser(ctx context.Context, user models.User) error {
	if user.ID == "" {
		return fmt.Errorf("put user: empty id")
	}
	_, err := c.do(ctx, http.MethodPut, "users/"+url.PathEscape(user.ID)+".json", user)
	if err != nil {
		return fmt.Errorf("put user %s: %w", user.ID, err)
	}
	return nil
}

// FetchFriendRequests loads every friend request. A literal null body is an
// empty collection.
func (c *HTTPClient) FetchFriendRequests(ctx context.Context) ([]models.FriendRequest, error) {
	body, err := c.do(ctx, http.MethodGet, "friendRequests.json", nil)
	if err != nil {
		return nil, err
	}
	requests, err := decodeCollection[models.FriendRequest](body)
	if err != nil {
		return nil, fmt.Errorf("decode friend requests: %w", err)
	}
	return requests, nil
}

// PutFriendRequest creates the request record.
func (c *HTTPClient) PutFriendRequest(ctx context.Context, request models.FriendRequest) error {
	if request.ID == "" {
		return fmt.Errorf("put friend request: empty id")
	}
	_, err := c.do(ctx, http.MethodPut, "friendRequests/"+url.PathEscape(request.ID)+".json", request)
	if err != nil {
		return fmt.Errorf("put friend request %s: %w", request.ID, err)
	}
	return nil
}

// PatchFriendRequestStatus updates only the status field, preserving the rest.
func (c *HTTPClient) PatchFriendRequestStatus(ctx context.Context, id string, status models.FriendRequestStatus) error {
	if id == "" {
		return fmt.Errorf("patch friend request: empty id")
	}
	payload := map[string]models.FriendRequestStatus{"status": status}
	_, err := c.do(ctx, http.MethodPatch, "friendRequests/"+url.PathEscape(id)+".json", payload)
	if err != nil {
		return fmt.Errorf("patch friend request %s: %w", id, err)
	}
	return nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("directory rate limit: %w", err)
	}

	endpoint := *c.base
	endpoint.Path = strings.TrimSuffix(endpoint.Path, "/") + "/" + path
	if c.authToken != "" {
		q := endpoint.Query()
		q.Set("auth", c.authToken)
		endpoint.RawQuery = q.Encode()
	}

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", method, err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", path, err)
	}
	if int64(len(data)) > c.maxBytes {
		return nil, ErrResponseTooLarge
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s %s -> %d", ErrUnexpectedStatus, method, path, resp.StatusCode)
	}
	return data, nil
}

// decodeCollection accepts an object keyed by id, an array (whose null holes
// are skipped), an empty body or a literal null.
func decodeCollection[T any](body []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	switch trimmed[0] {
	case '{':
		var keyed map[string]*T
		if err := json.Unmarshal(trimmed, &keyed); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
		}
		keys := make([]string, 0, len(keyed))
		for k := range keyed {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]T, 0, len(keyed))
		for _, k := range keys {
			if v := keyed[k]; v != nil {
				out = append(out, *v)
			}
		}
		return out, nil
	case '[':
		var list []*T
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
		}
		out := make([]T, 0, len(list))
		for _, v := range list {
			if v != nil {
				out = append(out, *v)
			}
		}
		return out, nil
	default:
		return nil, ErrMalformedBody
	}
}

var _ Client = (*HTTPClient)(nil)
