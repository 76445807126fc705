package backend

import (
	"context"
	"time"

	"github.com/pigeonmsg/pigeon/internal/model"
)

// ProfileByID fetches one profile row.
func (c *Client) ProfileByID(ctx context.Context, userID string) (*model.Profile, error) {
	var rows []profileRow
	if err := c.Select(ctx, "profiles", NewQuery().Eq("id", userID), &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	p, err := rows[0].toModel()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdatePresence refreshes the soft liveness signal for userID. last_seen
// always advances so a crashed client eventually reads as offline.
func (c *Client) UpdatePresence(ctx context.Context, userID string, online bool) error {
	fields := map[string]any{
		"is_online": online,
		"last_seen": time.Now().UTC(),
	}
	return c.Update(ctx, "profiles", NewQuery().Eq("id", userID), fields)
}

// UpdateProfile applies display-field changes to the acting identity's row.
func (c *Client) UpdateProfile(ctx context.Context, userID string, fields map[string]any) error {
	fields["updated_at"] = time.Now().UTC()
	return c.Update(ctx, "profiles", NewQuery().Eq("id", userID), fields)
}
