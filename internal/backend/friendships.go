package backend

import (
	"context"
	"fmt"

	"github.com/pigeonmsg/pigeon/internal/model"
)

// SearchUsers runs the search_users aggregate: username/display-name
// matches annotated with the caller's friendship status per hit.
func (c *Client) SearchUsers(ctx context.Context, term string) ([]model.UserMatch, error) {
	var rows []searchUserRow
	args := map[string]any{"search_term": term}
	if err := c.RPC(ctx, "search_users", args, &rows); err != nil {
		return nil, err
	}
	matches := make([]model.UserMatch, 0, len(rows))
	for i := range rows {
		m, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// Friends returns the accepted-friend profiles of the acting identity via
// the get_friends aggregate.
func (c *Client) Friends(ctx context.Context) ([]model.Profile, error) {
	var rows []profileRow
	if err := c.RPC(ctx, "get_friends", nil, &rows); err != nil {
		return nil, err
	}
	friends := make([]model.Profile, 0, len(rows))
	for i := range rows {
		p, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		friends = append(friends, p)
	}
	return friends, nil
}

// FriendshipBetween returns the friendship row linking the two users in
// either direction, or nil if none exists.
func (c *Client) FriendshipBetween(ctx context.Context, a, b string) (*model.Friendship, error) {
	var rows []friendshipRow
	expr := fmt.Sprintf(
		"and(requester_id.eq.%s,addressee_id.eq.%s),and(requester_id.eq.%s,addressee_id.eq.%s)",
		a, b, b, a)
	if err := c.Select(ctx, "friendships", NewQuery().Or(expr), &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	f, err := rows[0].toModel()
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// CreateFriendship inserts a pending request from requester to addressee.
func (c *Client) CreateFriendship(ctx context.Context, requesterID, addresseeID string) (*model.Friendship, error) {
	payload := map[string]any{
		"requester_id": requesterID,
		"addressee_id": addresseeID,
		"status":       string(model.FriendshipPending),
	}
	var rows []friendshipRow
	if err := c.InsertReturning(ctx, "friendships", payload, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, remoteErr("create friendship", errEmptyReturn)
	}
	f, err := rows[0].toModel()
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// AcceptFriendship flips a pending request to accepted. The server rejects
// callers other than the addressee; that surfaces as ErrForbidden.
func (c *Client) AcceptFriendship(ctx context.Context, friendshipID string) error {
	fields := map[string]any{"status": string(model.FriendshipAccepted)}
	return c.Update(ctx, "friendships", NewQuery().Eq("id", friendshipID), fields)
}

// DeleteFriendship removes a friendship row outright. Rejection's terminal
// state is deletion, not a stored "rejected" status.
func (c *Client) DeleteFriendship(ctx context.Context, friendshipID string) error {
	return c.Delete(ctx, "friendships", NewQuery().Eq("id", friendshipID))
}

// DeleteFriendshipBetween removes the friendship linking two users in
// either direction.
func (c *Client) DeleteFriendshipBetween(ctx context.Context, a, b string) error {
	expr := fmt.Sprintf(
		"and(requester_id.eq.%s,addressee_id.eq.%s),and(requester_id.eq.%s,addressee_id.eq.%s)",
		a, b, b, a)
	return c.Delete(ctx, "friendships", NewQuery().Or(expr))
}

// PendingRequests returns pending rows addressed to userID, each joined
// with the requester's profile snapshot at fetch time.
func (c *Client) PendingRequests(ctx context.Context, userID string) ([]model.FriendRequest, error) {
	var rows []struct {
		friendshipRow
		Requester *profileRow `json:"requester"`
	}
	q := NewQuery().
		Select("*,requester:profiles!friendships_requester_id_fkey(id,username,display_name,avatar_url,is_online)").
		Eq("status", string(model.FriendshipPending)).
		Eq("addressee_id", userID)
	if err := c.Select(ctx, "friendships", q, &rows); err != nil {
		return nil, err
	}
	reqs := make([]model.FriendRequest, 0, len(rows))
	for i := range rows {
		r := rows[i]
		if r.ID == "" || r.Requester == nil {
			return nil, remoteErr("decode friend request", fmt.Errorf("row missing id or requester"))
		}
		requester, err := r.Requester.toModel()
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, model.FriendRequest{
			ID:        r.ID,
			CreatedAt: r.CreatedAt,
			Requester: requester,
		})
	}
	return reqs, nil
}
