package directory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/pigeonmsg/pigeon/internal/backend"
	"github.com/pigeonmsg/pigeon/internal/model"
)

// Remote is the slice of the remote store the directory needs. Satisfied
// by *backend.Client.
type Remote interface {
	SearchUsers(ctx context.Context, term string) ([]model.UserMatch, error)
	Friends(ctx context.Context) ([]model.Profile, error)
	FriendshipBetween(ctx context.Context, a, b string) (*model.Friendship, error)
	CreateFriendship(ctx context.Context, requesterID, addresseeID string) (*model.Friendship, error)
	AcceptFriendship(ctx context.Context, friendshipID string) error
	DeleteFriendship(ctx context.Context, friendshipID string) error
	DeleteFriendshipBetween(ctx context.Context, a, b string) error
	PendingRequests(ctx context.Context, userID string) ([]model.FriendRequest, error)
}

// Session supplies the acting identity.
type Session interface {
	Current() *model.Identity
}

// Directory implements user search and the friend-request state machine
// (none -> pending -> accepted; rejection and removal delete the row).
type Directory struct {
	remote  Remote
	session Session
	logger  *zap.Logger

	mu      sync.RWMutex
	results []model.UserMatch
}

// New creates a friend/contact directory.
func New(remote Remote, session Session, logger *zap.Logger) *Directory {
	return &Directory{
		remote:  remote,
		session: session,
		logger:  logger,
	}
}

// Search looks users up by username or display name. A whitespace-only
// term clears the results and returns synchronously without a remote
// call; that is a no-op, not an error.
func (d *Directory) Search(ctx context.Context, term string) ([]model.UserMatch, error) {
	if strings.TrimSpace(term) == "" {
		d.mu.Lock()
		d.results = nil
		d.mu.Unlock()
		return nil, nil
	}
	if d.session.Current() == nil {
		return nil, backend.ErrAuthRequired
	}

	matches, err := d.remote.SearchUsers(ctx, term)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}

	d.mu.Lock()
	d.results = matches
	d.mu.Unlock()
	return d.Results(), nil
}

// Results returns a snapshot of the latest search results.
func (d *Directory) Results() []model.UserMatch {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]model.UserMatch, len(d.results))
	copy(out, d.results)
	return out
}

// SendRequest creates a pending friendship toward userID. If a pending or
// accepted relationship already exists it fails with ErrDuplicate and the
// existing row is left untouched. On success the local search annotation
// flips to pending without a refetch.
func (d *Directory) SendRequest(ctx context.Context, userID string) error {
	id := d.session.Current()
	if id == nil {
		return backend.ErrAuthRequired
	}
	if userID == "" || userID == id.ID {
		return fmt.Errorf("%w: invalid addressee", backend.ErrValidation)
	}

	existing, err := d.remote.FriendshipBetween(ctx, id.ID, userID)
	if err != nil {
		return fmt.Errorf("friendship lookup: %w", err)
	}
	if existing != nil && (existing.Status == model.FriendshipPending || existing.Status == model.FriendshipAccepted) {
		return fmt.Errorf("request to %s: %w", userID, backend.ErrDuplicate)
	}

	if _, err := d.remote.CreateFriendship(ctx, id.ID, userID); err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	d.mu.Lock()
	for i := range d.results {
		if d.results[i].ID == userID {
			d.results[i].Friendship = model.FriendshipPending
			break
		}
	}
	d.mu.Unlock()
	return nil
}

// Accept flips a pending request addressed to the acting identity to
// accepted. The server enforces that only the addressee may accept;
// violations surface as ErrForbidden.
func (d *Directory) Accept(ctx context.Context, requestID string) error {
	if d.session.Current() == nil {
		return backend.ErrAuthRequired
	}
	if err := d.remote.AcceptFriendship(ctx, requestID); err != nil {
		return fmt.Errorf("accept request: %w", err)
	}
	return nil
}

// Reject deletes a pending request outright; there is no stored
// "rejected" state.
func (d *Directory) Reject(ctx context.Context, requestID string) error {
	if d.session.Current() == nil {
		return backend.ErrAuthRequired
	}
	if err := d.remote.DeleteFriendship(ctx, requestID); err != nil {
		return fmt.Errorf("reject request: %w", err)
	}
	return nil
}

// Pending returns the requests addressed to the acting identity, each
// with the requester's profile snapshot at fetch time. The snapshot has
// no live-update contract; callers refresh after accept/reject.
func (d *Directory) Pending(ctx context.Context) ([]model.FriendRequest, error) {
	id := d.session.Current()
	if id == nil {
		return nil, backend.ErrAuthRequired
	}
	reqs, err := d.remote.PendingRequests(ctx, id.ID)
	if err != nil {
		return nil, fmt.Errorf("pending requests: %w", err)
	}
	return reqs, nil
}

// Friends returns the acting identity's accepted friends.
func (d *Directory) Friends(ctx context.Context) ([]model.Profile, error) {
	if d.session.Current() == nil {
		return nil, backend.ErrAuthRequired
	}
	friends, err := d.remote.Friends(ctx)
	if err != nil {
		return nil, fmt.Errorf("load friends: %w", err)
	}
	return friends, nil
}

// Remove deletes the friendship with userID in either direction.
func (d *Directory) Remove(ctx context.Context, userID string) error {
	id := d.session.Current()
	if id == nil {
		return backend.ErrAuthRequired
	}
	if err := d.remote.DeleteFriendshipBetween(ctx, id.ID, userID); err != nil {
		return fmt.Errorf("remove friend: %w", err)
	}

	d.mu.Lock()
	for i := range d.results {
		if d.results[i].ID == userID {
			d.results[i].Friendship = model.FriendshipNone
			break
		}
	}
	d.mu.Unlock()
	return nil
}
