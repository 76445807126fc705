package directory

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/pigeonmsg/pigeon/internal/backend"
	"github.com/pigeonmsg/pigeon/internal/model"
)

type fakeSession struct {
	identity *model.Identity
}

func (s *fakeSession) Current() *model.Identity { return s.identity }

type fakeRemote struct {
	searchCalls  int
	searchResult []model.UserMatch
	searchErr    error

	between    *model.Friendship
	betweenErr error

	created    []string
	createErr  error
	accepted   []string
	deleted    []string
	deletedBtw []string

	pending []model.FriendRequest
	friends []model.Profile
}

func (r *fakeRemote) SearchUsers(ctx context.Context, term string) ([]model.UserMatch, error) {
	r.searchCalls++
	return r.searchResult, r.searchErr
}

func (r *fakeRemote) Friends(ctx context.Context) ([]model.Profile, error) {
	return r.friends, nil
}

func (r *fakeRemote) FriendshipBetween(ctx context.Context, a, b string) (*model.Friendship, error) {
	return r.between, r.betweenErr
}

func (r *fakeRemote) CreateFriendship(ctx context.Context, requesterID, addresseeID string) (*model.Friendship, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	r.created = append(r.created, addresseeID)
	return &model.Friendship{ID: "f1", RequesterID: requesterID, AddresseeID: addresseeID, Status: model.FriendshipPending}, nil
}

func (r *fakeRemote) AcceptFriendship(ctx context.Context, friendshipID string) error {
	r.accepted = append(r.accepted, friendshipID)
	return nil
}

func (r *fakeRemote) DeleteFriendship(ctx context.Context, friendshipID string) error {
	r.deleted = append(r.deleted, friendshipID)
	return nil
}

func (r *fakeRemote) DeleteFriendshipBetween(ctx context.Context, a, b string) error {
	r.deletedBtw = append(r.deletedBtw, b)
	return nil
}

func (r *fakeRemote) PendingRequests(ctx context.Context, userID string) ([]model.FriendRequest, error) {
	return r.pending, nil
}

func newTestDirectory(remote *fakeRemote, id *model.Identity) *Directory {
	return New(remote, &fakeSession{identity: id}, zap.NewNop())
}

func TestSearchEmptyTermSkipsRemote(t *testing.T) {
	remote := &fakeRemote{}
	d := newTestDirectory(remote, &model.Identity{ID: "u1"})

	for _, term := range []string{"", "   ", "\t\n"} {
		got, err := d.Search(context.Background(), term)
		if err != nil {
			t.Fatalf("Search(%q) error: %v", term, err)
		}
		if len(got) != 0 {
			t.Fatalf("Search(%q) = %d results, want 0", term, len(got))
		}
	}
	if remote.searchCalls != 0 {
		t.Fatalf("remote search called %d times for blank terms", remote.searchCalls)
	}
}

func TestSearchEmptyTermClearsResults(t *testing.T) {
	remote := &fakeRemote{searchResult: []model.UserMatch{
		{Profile: model.Profile{ID: "u2", Username: "anna"}, Friendship: model.FriendshipNone},
	}}
	d := newTestDirectory(remote, &model.Identity{ID: "u1"})

	if _, err := d.Search(context.Background(), "ann"); err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(d.Results()) != 1 {
		t.Fatalf("results = %d, want 1", len(d.Results()))
	}
	if _, err := d.Search(context.Background(), "  "); err != nil {
		t.Fatalf("blank Search error: %v", err)
	}
	if len(d.Results()) != 0 {
		t.Fatalf("results after blank search = %d, want 0", len(d.Results()))
	}
}

func TestSearchRequiresIdentity(t *testing.T) {
	d := newTestDirectory(&fakeRemote{}, nil)
	_, err := d.Search(context.Background(), "anna")
	if !errors.Is(err, backend.ErrAuthRequired) {
		t.Fatalf("err = %v, want ErrAuthRequired", err)
	}
}

func TestSendRequestDuplicate(t *testing.T) {
	cases := []struct {
		name   string
		status model.FriendshipStatus
	}{
		{"pending", model.FriendshipPending},
		{"accepted", model.FriendshipAccepted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			remote := &fakeRemote{between: &model.Friendship{ID: "f0", Status: tc.status}}
			d := newTestDirectory(remote, &model.Identity{ID: "u1"})

			err := d.SendRequest(context.Background(), "u2")
			if !errors.Is(err, backend.ErrDuplicate) {
				t.Fatalf("err = %v, want ErrDuplicate", err)
			}
			if len(remote.created) != 0 {
				t.Fatalf("friendship created despite existing %s row", tc.status)
			}
		})
	}
}

func TestSendRequestFlipsAnnotation(t *testing.T) {
	remote := &fakeRemote{searchResult: []model.UserMatch{
		{Profile: model.Profile{ID: "u2", Username: "anna"}, Friendship: model.FriendshipNone},
		{Profile: model.Profile{ID: "u3", Username: "annika"}, Friendship: model.FriendshipNone},
	}}
	d := newTestDirectory(remote, &model.Identity{ID: "u1"})

	if _, err := d.Search(context.Background(), "ann"); err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if err := d.SendRequest(context.Background(), "u2"); err != nil {
		t.Fatalf("SendRequest error: %v", err)
	}

	results := d.Results()
	if results[0].Friendship != model.FriendshipPending {
		t.Errorf("u2 annotation = %s, want pending", results[0].Friendship)
	}
	if results[1].Friendship != model.FriendshipNone {
		t.Errorf("u3 annotation = %s, want none", results[1].Friendship)
	}
	if remote.searchCalls != 1 {
		t.Errorf("search refetched after request, calls = %d", remote.searchCalls)
	}
}

func TestSendRequestToSelf(t *testing.T) {
	d := newTestDirectory(&fakeRemote{}, &model.Identity{ID: "u1"})
	err := d.SendRequest(context.Background(), "u1")
	if !errors.Is(err, backend.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestAcceptAndReject(t *testing.T) {
	remote := &fakeRemote{}
	d := newTestDirectory(remote, &model.Identity{ID: "u1"})

	if err := d.Accept(context.Background(), "f1"); err != nil {
		t.Fatalf("Accept error: %v", err)
	}
	if err := d.Reject(context.Background(), "f2"); err != nil {
		t.Fatalf("Reject error: %v", err)
	}
	if len(remote.accepted) != 1 || remote.accepted[0] != "f1" {
		t.Errorf("accepted = %v, want [f1]", remote.accepted)
	}
	if len(remote.deleted) != 1 || remote.deleted[0] != "f2" {
		t.Errorf("deleted = %v, want [f2]", remote.deleted)
	}
}

func TestRemoveResetsAnnotation(t *testing.T) {
	remote := &fakeRemote{searchResult: []model.UserMatch{
		{Profile: model.Profile{ID: "u2", Username: "anna"}, Friendship: model.FriendshipAccepted},
	}}
	d := newTestDirectory(remote, &model.Identity{ID: "u1"})

	if _, err := d.Search(context.Background(), "ann"); err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if err := d.Remove(context.Background(), "u2"); err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	if got := d.Results()[0].Friendship; got != model.FriendshipNone {
		t.Errorf("annotation after remove = %s, want none", got)
	}
	if len(remote.deletedBtw) != 1 || remote.deletedBtw[0] != "u2" {
		t.Errorf("deletedBtw = %v, want [u2]", remote.deletedBtw)
	}
}
