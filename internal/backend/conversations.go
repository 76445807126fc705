package backend

import (
	"context"

	"github.com/pigeonmsg/pigeon/internal/model"
)

// UserConversations returns the acting identity's conversations with
// denormalized peer summaries, last-message previews and unread counts,
// via the get_user_conversations aggregate.
func (c *Client) UserConversations(ctx context.Context) ([]model.Conversation, error) {
	var rows []conversationRow
	if err := c.RPC(ctx, "get_user_conversations", nil, &rows); err != nil {
		return nil, err
	}
	convs := make([]model.Conversation, 0, len(rows))
	for i := range rows {
		conv, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}
	return convs, nil
}

// NonGroupConversationIDs returns ids of two-party conversations the given
// user participates in and has not left.
func (c *Client) NonGroupConversationIDs(ctx context.Context, userID string) ([]string, error) {
	var rows []struct {
		ConversationID string `json:"conversation_id"`
		Conversation   struct {
			IsGroup bool `json:"is_group"`
		} `json:"conversation"`
	}
	q := NewQuery().
		Select("conversation_id,conversation:conversations!inner(is_group)").
		Eq("user_id", userID).
		IsNull("left_at").
		Eq("conversation.is_group", "false")
	if err := c.Select(ctx, "conversation_participants", q, &rows); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ConversationID)
	}
	return ids, nil
}

// ActiveParticipants returns the user ids of everyone in the conversation
// who has not left it.
func (c *Client) ActiveParticipants(ctx context.Context, conversationID string) ([]string, error) {
	var rows []struct {
		UserID string `json:"user_id"`
	}
	q := NewQuery().
		Select("user_id").
		Eq("conversation_id", conversationID).
		IsNull("left_at")
	if err := c.Select(ctx, "conversation_participants", q, &rows); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.UserID)
	}
	return ids, nil
}

// CreateConversation inserts a new non-group conversation owned by creatorID.
func (c *Client) CreateConversation(ctx context.Context, creatorID string) (*model.Conversation, error) {
	var rows []struct {
		ID      string `json:"id"`
		IsGroup bool   `json:"is_group"`
	}
	payload := map[string]any{
		"is_group":   false,
		"created_by": creatorID,
	}
	if err := c.InsertReturning(ctx, "conversations", payload, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, remoteErr("create conversation", errEmptyReturn)
	}
	return &model.Conversation{ID: rows[0].ID, IsGroup: rows[0].IsGroup}, nil
}

// AddParticipants inserts participant rows for the given users.
func (c *Client) AddParticipants(ctx context.Context, conversationID string, userIDs []string) error {
	payload := make([]map[string]any, 0, len(userIDs))
	for _, id := range userIDs {
		payload = append(payload, map[string]any{
			"conversation_id": conversationID,
			"user_id":         id,
		})
	}
	return c.Insert(ctx, "conversation_participants", payload)
}
