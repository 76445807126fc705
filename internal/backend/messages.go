package backend

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/pigeonmsg/pigeon/internal/model"
)

var errEmptyReturn = errors.New("empty representation returned")

// senderShape embeds the sender profile so the thread view can render
// display names without a join per message.
const senderShape = "*,sender:profiles!messages_sender_id_fkey(id,username,display_name,avatar_url)"

// Messages returns the full ordered history of one conversation, ascending
// by creation time.
func (c *Client) Messages(ctx context.Context, conversationID string) ([]model.Message, error) {
	var rows []messageRow
	q := NewQuery().
		Select(senderShape).
		Eq("conversation_id", conversationID).
		OrderAsc("created_at")
	if err := c.Select(ctx, "messages", q, &rows); err != nil {
		return nil, err
	}
	msgs := make([]model.Message, 0, len(rows))
	for i := range rows {
		m, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// MessageByID fetches one message with its sender embedded. Used to
// hydrate change-feed notifications that only carry the bare row.
func (c *Client) MessageByID(ctx context.Context, messageID string) (*model.Message, error) {
	var rows []messageRow
	q := NewQuery().Select(senderShape).Eq("id", messageID)
	if err := c.Select(ctx, "messages", q, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	m, err := rows[0].toModel()
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateMessage inserts a message and returns the stored row. The id is
// generated client-side so the response echo and the push notification
// carry the same identity for deduplication. The caller must not insert
// locally before this confirms.
func (c *Client) CreateMessage(ctx context.Context, conversationID, senderID, body string, typ model.MessageType) (*model.Message, error) {
	payload := map[string]any{
		"id":              uuid.New().String(),
		"conversation_id": conversationID,
		"sender_id":       senderID,
		"content":         body,
		"message_type":    string(typ),
	}
	var rows []messageRow
	if err := c.InsertReturning(ctx, "messages", payload, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, remoteErr("create message", errEmptyReturn)
	}
	m, err := rows[0].toModel()
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// InsertDeliveredStatuses creates 'delivered' rows for every recipient of
// a freshly sent message.
func (c *Client) InsertDeliveredStatuses(ctx context.Context, messageID string, recipientIDs []string) error {
	if len(recipientIDs) == 0 {
		return nil
	}
	payload := make([]map[string]any, 0, len(recipientIDs))
	for _, id := range recipientIDs {
		payload = append(payload, map[string]any{
			"message_id": messageID,
			"user_id":    id,
			"status":     string(model.DeliveryDelivered),
		})
	}
	return c.Insert(ctx, "message_status", payload)
}

// UnreadMessageIDs returns ids of messages in the conversation not sent by
// userID. The status upsert is idempotent, so over-marking already-read
// messages is harmless.
func (c *Client) UnreadMessageIDs(ctx context.Context, conversationID, userID string) ([]string, error) {
	var rows []struct {
		ID string `json:"id"`
	}
	q := NewQuery().
		Select("id").
		Eq("conversation_id", conversationID).
		Neq("sender_id", userID)
	if err := c.Select(ctx, "messages", q, &rows); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

// MarkMessagesRead upserts 'read' status rows for the given messages on
// behalf of userID.
func (c *Client) MarkMessagesRead(ctx context.Context, messageIDs []string, userID string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	payload := make([]map[string]any, 0, len(messageIDs))
	for _, id := range messageIDs {
		payload = append(payload, map[string]any{
			"message_id": id,
			"user_id":    userID,
			"status":     string(model.DeliveryRead),
			"timestamp":  now,
		})
	}
	return c.Upsert(ctx, "message_status", payload)
}
