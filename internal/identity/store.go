// Package identity owns the canonical user table and the logged-in user.
//
// Every mutation is applied to memory first, then persisted to the snapshot
// store and pushed to the remote directory in the background. Remote failures
// are logged and never roll local state back.
package identity

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/netpulse/client/internal/auth"
	"github.com/netpulse/client/internal/directory"
	"github.com/netpulse/client/internal/events"
	"github.com/netpulse/client/internal/logging"
	"github.com/netpulse/client/internal/models"
	"github.com/netpulse/client/internal/propagation"
	"github.com/netpulse/client/internal/snapshot"
)

var (
	// ErrInvalidInput rejects blank names or emails.
	ErrInvalidInput = errors.New("name and email are required")
	// ErrDuplicateEmail indicates another account already uses the email.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrInvalidCredentials covers unknown emails and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// EventKind names a change to the identity state.
type EventKind string

const (
	UsersChanged       EventKind = "users_changed"
	CurrentUserChanged EventKind = "current_user_changed"
)

// Event is published after a change is visible to readers.
type Event struct {
	Kind     EventKind
	UserIDs  []string
	Revision uint64
}

// Options wires a Store to its collaborators.
type Options struct {
	Directory   directory.Client
	Snapshots   *snapshot.Store
	Propagation propagation.Submitter
	Logger      *slog.Logger
	NewID       func() string
}

// Store is safe for concurrent use. Readers always receive copies.
type Store struct {
	dir       directory.Client
	snapshots *snapshot.Store
	submit    propagation.Submitter
	logger    *slog.Logger
	newID     func() string
	bus       *events.Bus[Event]

	mu        sync.RWMutex
	users     []models.User
	currentID string
	revision  uint64

	persistMu    sync.Mutex
	persistedRev uint64
}

// New constructs an empty Store. Call Restore to load the saved snapshot.
func New(opts Options) *Store {
	if opts.Directory == nil {
		opts.Directory = directory.Disabled{}
	}
	if opts.Propagation == nil {
		opts.Propagation = propagation.Inline{Logger: opts.Logger}
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Store{
		dir:       opts.Directory,
		snapshots: opts.Snapshots,
		submit:    opts.Propagation,
		logger:    logging.Component(opts.Logger, "identity"),
		newID:     opts.NewID,
		bus:       events.NewBus[Event](0),
	}
}

// Subscribe returns a channel of change events and a function to stop listening.
func (s *Store) Subscribe() (<-chan Event, func()) {
	return s.bus.Subscribe()
}

// Restore loads the persisted table and current user id. A current id that no
// longer resolves to a user is dropped.
func (s *Store) Restore(ctx context.Context) error {
	if s.snapshots == nil {
		return nil
	}
	users, err := s.snapshots.LoadUsers(ctx)
	if err != nil {
		return err
	}
	currentID, err := s.snapshots.LoadCurrentUserID(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.users = users
	if indexOf(s.users, currentID) < 0 {
		currentID = ""
	}
	s.currentID = currentID
	s.revision++
	rev := s.revision
	s.persistMu.Lock()
	s.persistedRev = rev
	s.persistMu.Unlock()
	s.mu.Unlock()

	s.logger.Info("identity snapshot restored", "users", len(users), "loggedIn", currentID != "")
	s.bus.Publish(Event{Kind: UsersChanged, Revision: rev})
	return nil
}

// Seed adds users whose email is not yet known. It is used for demo data and
// does not push anything to the directory.
func (s *Store) Seed(ctx context.Context, users []models.User) int {
	s.mu.Lock()
	added := 0
	for _, u := range users {
		u = models.NormalizeUser(u)
		if u.Email == "" || findByEmail(s.users, u.Email) >= 0 {
			continue
		}
		if u.ID == "" {
			u.ID = s.newID()
		}
		u.Username = s.uniqueUsernameLocked(u.Username)
		s.users = append(s.users, u)
		added++
	}
	if added == 0 {
		s.mu.Unlock()
		return 0
	}
	c := s.commitLocked(UsersChanged)
	s.mu.Unlock()

	s.apply(ctx, c)
	return added
}

// Login makes the user with email current. Matching ignores case and
// surrounding whitespace.
func (s *Store) Login(ctx context.Context, email string) bool {
	s.mu.Lock()
	idx := findByEmail(s.users, email)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	s.currentID = s.users[idx].ID
	c := s.commitLocked(CurrentUserChanged, s.currentID)
	s.mu.Unlock()

	s.apply(ctx, c)
	return true
}

// LoginWithPassword is Login gated on the stored credential.
func (s *Store) LoginWithPassword(ctx context.Context, email, password string) bool {
	return s.Authenticate(ctx, email, password) == nil
}

// Authenticate is LoginWithPassword with an error describing the failure.
// Accounts registered without a password log in with an empty password.
func (s *Store) Authenticate(ctx context.Context, email, password string) error {
	s.mu.RLock()
	idx := findByEmail(s.users, email)
	var cred auth.Credential
	if idx >= 0 {
		cred = auth.Credential{Hash: s.users[idx].PasswordHash, Salt: s.users[idx].PasswordSalt}
	}
	s.mu.RUnlock()
	if idx < 0 {
		return ErrInvalidCredentials
	}

	if cred.Hash == "" && password == "" {
		if !s.Login(ctx, email) {
			return ErrInvalidCredentials
		}
		return nil
	}
	if err := auth.VerifyPassword(cred, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Warn("stored credential unreadable", "email", email, "error", err)
		}
		return ErrInvalidCredentials
	}
	if !s.Login(ctx, email) {
		return ErrInvalidCredentials
	}
	return nil
}

// Logout clears the current user.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	if s.currentID == "" {
		s.mu.Unlock()
		return
	}
	previous := s.currentID
	s.currentID = ""
	c := s.commitLocked(CurrentUserChanged, previous)
	s.mu.Unlock()

	s.apply(ctx, c)
}

// RegisterNewUser creates an account and logs it in. It fails when the email
// is already registered, ignoring case.
func (s *Store) RegisterNewUser(ctx context.Context, name, email string) bool {
	_, err := s.Register(ctx, name, email, "")
	return err == nil
}

// RegisterWithPassword is RegisterNewUser that also stores a password hash.
func (s *Store) RegisterWithPassword(ctx context.Context, name, email, password string) bool {
	if password == "" {
		return false
	}
	_, err := s.Register(ctx, name, email, password)
	return err == nil
}

// Register creates a user, makes it current and returns a copy. An empty
// password creates an account without credentials.
func (s *Store) Register(ctx context.Context, name, email, password string) (models.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" {
		return models.User{}, ErrInvalidInput
	}

	var cred auth.Credential
	if password != "" {
		var err error
		if cred, err = auth.HashPassword(password); err != nil {
			return models.User{}, err
		}
	}

	s.mu.Lock()
	if findByEmail(s.users, email) >= 0 {
		s.mu.Unlock()
		return models.User{}, ErrDuplicateEmail
	}
	user := models.NormalizeUser(models.User{
		ID:           s.newID(),
		Name:         name,
		Email:        email,
		Status:       models.StatusOnline,
		PasswordHash: cred.Hash,
	})
	user.Username = s.uniqueUsernameLocked(user.Username)
	s.users = append(s.users, user)
	s.currentID = user.ID
	c := s.commitLocked(UsersChanged, user.ID)
	c.pushed = []models.User{user.Clone()}
	s.mu.Unlock()

	s.logger.Info("user registered", "userId", user.ID, "username", user.Username)
	s.apply(ctx, c)
	return user.Clone(), nil
}

// UpdateStatus sets a preset status on the current user and clears the
// custom status.
func (s *Store) UpdateStatus(ctx context.Context, status models.UserStatus) bool {
	if !status.Valid() {
		return false
	}
	return s.mutateCurrent(ctx, func(u *models.User) {
		u.Status = status
		u.CustomStatus = ""
	})
}

// UpdateCustomStatus sets free text on the current user. Blank text clears it;
// the preset status is left as is.
func (s *Store) UpdateCustomStatus(ctx context.Context, text string) bool {
	return s.mutateCurrent(ctx, func(u *models.User) {
		u.CustomStatus = strings.TrimSpace(text)
	})
}

// ToggleStatus flips the current user between online and offline.
func (s *Store) ToggleStatus(ctx context.Context) bool {
	return s.mutateCurrent(ctx, func(u *models.User) {
		u.ToggleStatus()
	})
}

func (s *Store) mutateCurrent(ctx context.Context, fn func(*models.User)) bool {
	s.mu.Lock()
	idx := indexOf(s.users, s.currentID)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	u := s.users[idx].Clone()
	fn(&u)
	s.users[idx] = u
	c := s.commitLocked(UsersChanged, u.ID)
	c.pushed = []models.User{u.Clone()}
	s.mu.Unlock()

	s.apply(ctx, c)
	return true
}

// AddFriendEdge records a symmetric friendship between a and b. It is
// idempotent and rejects self edges and unknown ids.
func (s *Store) AddFriendEdge(ctx context.Context, a, b string) bool {
	if a == "" || a == b {
		return false
	}

	s.mu.Lock()
	ia, ib := indexOf(s.users, a), indexOf(s.users, b)
	if ia < 0 || ib < 0 {
		s.mu.Unlock()
		return false
	}
	ua, ub := s.users[ia].Clone(), s.users[ib].Clone()
	if ua.HasFriend(b) && ub.HasFriend(a) {
		s.mu.Unlock()
		return true
	}
	if !ua.HasFriend(b) {
		ua.FriendsList = append(ua.FriendsList, b)
	}
	if !ub.HasFriend(a) {
		ub.FriendsList = append(ub.FriendsList, a)
	}
	s.users[ia], s.users[ib] = ua, ub
	c := s.commitLocked(UsersChanged, a, b)
	c.pushed = []models.User{ua.Clone(), ub.Clone()}
	s.mu.Unlock()

	s.apply(ctx, c)
	return true
}

// Repropagate pushes the stored copy of each user to the directory again.
func (s *Store) Repropagate(ids ...string) {
	s.mu.RLock()
	var users []models.User
	for _, id := range ids {
		if idx := indexOf(s.users, id); idx >= 0 {
			users = append(users, s.users[idx].Clone())
		}
	}
	s.mu.RUnlock()
	s.propagate(users)
}

// CurrentUser resolves the logged-in user from the table.
func (s *Store) CurrentUser() (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := indexOf(s.users, s.currentID)
	if idx < 0 {
		return models.User{}, false
	}
	return s.users[idx].Clone(), true
}

// CurrentUserID returns the logged-in id, or "".
func (s *Store) CurrentUserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentID
}

// Users returns a copy of the table in insertion order.
func (s *Store) Users() []models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneUsers(s.users)
}

// User looks a record up by id.
func (s *Store) User(id string) (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := indexOf(s.users, id)
	if idx < 0 {
		return models.User{}, false
	}
	return s.users[idx].Clone(), true
}

// Snapshot returns a copy of the table together with its revision. Pass the
// revision back to Publish.
func (s *Store) Snapshot() ([]models.User, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneUsers(s.users), s.revision
}

// Publish replaces the table with merged if no local mutation happened since
// baseRevision was read. It reports false when the caller must re-merge.
// The current user is re-resolved by id and cleared if absent.
func (s *Store) Publish(ctx context.Context, merged []models.User, baseRevision uint64) bool {
	s.mu.Lock()
	if s.revision != baseRevision {
		s.mu.Unlock()
		return false
	}
	s.users = cloneUsers(merged)
	if s.currentID != "" && indexOf(s.users, s.currentID) < 0 {
		s.logger.Warn("current user missing from merged table, logging out", "userId", s.currentID)
		s.currentID = ""
	}
	c := s.commitLocked(UsersChanged)
	s.mu.Unlock()

	s.apply(ctx, c)
	return true
}

// change is everything needed to finish a mutation once the lock is released.
type change struct {
	event     Event
	users     []models.User
	currentID string
	pushed    []models.User
}

func (s *Store) commitLocked(kind EventKind, ids ...string) change {
	s.revision++
	return change{
		event:     Event{Kind: kind, UserIDs: ids, Revision: s.revision},
		users:     cloneUsers(s.users),
		currentID: s.currentID,
	}
}

func (s *Store) apply(ctx context.Context, c change) {
	s.persist(ctx, c)
	s.propagate(c.pushed)
	s.bus.Publish(c.event)
}

func (s *Store) persist(ctx context.Context, c change) {
	if s.snapshots == nil {
		return
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if c.event.Revision <= s.persistedRev {
		return
	}
	if err := s.snapshots.SaveUsers(ctx, c.users); err != nil {
		s.logger.Error("persist users snapshot failed", "error", err)
		return
	}
	if err := s.snapshots.SaveCurrentUserID(ctx, c.currentID); err != nil {
		s.logger.Error("persist current user failed", "error", err)
		return
	}
	s.persistedRev = c.event.Revision
}

// propagate queues a PUT per user. The job sends the record as it is when the
// write runs, so a late job never pushes a copy older than the table; users
// removed locally in the meantime are skipped.
func (s *Store) propagate(users []models.User) {
	for _, u := range users {
		id := u.ID
		s.submit.Submit("put_user", "user:"+id, func(ctx context.Context) error {
			latest, ok := s.User(id)
			if !ok {
				return nil
			}
			return s.dir.PutUser(ctx, latest)
		})
	}
}

func (s *Store) uniqueUsernameLocked(base string) string {
	if base == "" {
		base = "user"
	}
	taken := make(map[string]struct{}, len(s.users))
	for _, u := range s.users {
		taken[strings.ToLower(u.Username)] = struct{}{}
	}
	candidate := base
	for n := 2; ; n++ {
		if _, ok := taken[strings.ToLower(candidate)]; !ok {
			return candidate
		}
		candidate = base + strconv.Itoa(n)
	}
}

func indexOf(users []models.User, id string) int {
	if id == "" {
		return -1
	}
	for i := range users {
		if users[i].ID == id {
			return i
		}
	}
	return -1
}

func findByEmail(users []models.User, email string) int {
	email = strings.TrimSpace(email)
	if email == "" {
		return -1
	}
	for i := range users {
		if strings.EqualFold(strings.TrimSpace(users[i].Email), email) {
			return i
		}
	}
	return -1
}

func cloneUsers(users []models.User) []models.User {
	out := make([]models.User, 0, len(users))
	for _, u := range users {
		out = append(out, u.Clone())
	}
	return out
}
