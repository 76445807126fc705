package backend

import (
	"fmt"
	"time"

	"github.com/pigeonmsg/pigeon/internal/model"
)

// Wire row shapes for the backend schema. Decoded into internal/model
// types immediately; a row missing its identifying fields is treated as a
// remote failure, not passed through.

type profileRow struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	DisplayName string     `json:"display_name"`
	AvatarURL   string     `json:"avatar_url"`
	IsOnline    bool       `json:"is_online"`
	LastSeen    *time.Time `json:"last_seen"`
}

func (r *profileRow) toModel() (model.Profile, error) {
	if r.ID == "" {
		return model.Profile{}, remoteErr("decode profile", fmt.Errorf("row missing id"))
	}
	p := model.Profile{
		ID:          r.ID,
		Username:    r.Username,
		DisplayName: r.DisplayName,
		AvatarURL:   r.AvatarURL,
		IsOnline:    r.IsOnline,
	}
	if r.LastSeen != nil {
		p.LastSeen = *r.LastSeen
	}
	return p, nil
}

// conversationRow is the denormalized shape returned by the
// get_user_conversations aggregate.
type conversationRow struct {
	ID              string     `json:"id"`
	Name            *string    `json:"name"`
	IsGroup         bool       `json:"is_group"`
	LastMessage     *string    `json:"last_message"`
	LastMessageTime *time.Time `json:"last_message_time"`
	UnreadCount     int        `json:"unread_count"`
	OtherUserID     *string    `json:"other_user_id"`
	OtherUserName   string     `json:"other_user_name"`
	OtherUserAvatar string     `json:"other_user_avatar"`
	OtherUserOnline bool       `json:"other_user_online"`
}

func (r *conversationRow) toModel() (model.Conversation, error) {
	if r.ID == "" {
		return model.Conversation{}, remoteErr("decode conversation", fmt.Errorf("row missing id"))
	}
	c := model.Conversation{
		ID:          r.ID,
		IsGroup:     r.IsGroup,
		UnreadCount: r.UnreadCount,
	}
	if c.UnreadCount < 0 {
		c.UnreadCount = 0
	}
	if r.Name != nil {
		c.Name = *r.Name
	}
	if r.LastMessage != nil {
		c.LastMessage = *r.LastMessage
	}
	if r.LastMessageTime != nil {
		c.LastMessageAt = *r.LastMessageTime
	}
	// The peer summary only means anything for two-party conversations.
	if !r.IsGroup && r.OtherUserID != nil {
		c.Peer = &model.Peer{
			ID:          *r.OtherUserID,
			DisplayName: r.OtherUserName,
			AvatarURL:   r.OtherUserAvatar,
			IsOnline:    r.OtherUserOnline,
		}
	}
	return c, nil
}

type messageRow struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id"`
	SenderID       string      `json:"sender_id"`
	Content        string      `json:"content"`
	MessageType    string      `json:"message_type"`
	FileURL        *string     `json:"file_url"`
	CreatedAt      time.Time   `json:"created_at"`
	Sender         *profileRow `json:"sender"`
}

func (r *messageRow) toModel() (model.Message, error) {
	if r.ID == "" || r.ConversationID == "" {
		return model.Message{}, remoteErr("decode message", fmt.Errorf("row missing id or conversation_id"))
	}
	m := model.Message{
		ID:             r.ID,
		ConversationID: r.ConversationID,
		SenderID:       r.SenderID,
		Body:           r.Content,
		Type:           model.MessageType(r.MessageType),
		CreatedAt:      r.CreatedAt,
	}
	if m.Type == "" {
		m.Type = model.MessageText
	}
	if r.FileURL != nil {
		m.FileURL = *r.FileURL
	}
	if r.Sender != nil {
		m.SenderName = r.Sender.DisplayName
		m.SenderAvatar = r.Sender.AvatarURL
	}
	return m, nil
}

type friendshipRow struct {
	ID          string    `json:"id"`
	RequesterID string    `json:"requester_id"`
	AddresseeID string    `json:"addressee_id"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

func (r *friendshipRow) toModel() (model.Friendship, error) {
	if r.ID == "" {
		return model.Friendship{}, remoteErr("decode friendship", fmt.Errorf("row missing id"))
	}
	return model.Friendship{
		ID:          r.ID,
		RequesterID: r.RequesterID,
		AddresseeID: r.AddresseeID,
		Status:      model.FriendshipStatus(r.Status),
		CreatedAt:   r.CreatedAt,
	}, nil
}

// searchUserRow is the shape returned by the search_users aggregate.
type searchUserRow struct {
	profileRow
	FriendshipStatus string `json:"friendship_status"`
}

func (r *searchUserRow) toModel() (model.UserMatch, error) {
	p, err := r.profileRow.toModel()
	if err != nil {
		return model.UserMatch{}, err
	}
	status := model.FriendshipStatus(r.FriendshipStatus)
	if status == "" {
		status = model.FriendshipNone
	}
	return model.UserMatch{Profile: p, Friendship: status}, nil
}

type statusRow struct {
	MessageID string     `json:"message_id"`
	UserID    string     `json:"user_id"`
	Status    string     `json:"status"`
	Timestamp *time.Time `json:"timestamp"`
}

func (r *statusRow) toModel() (model.MessageStatus, error) {
	if r.MessageID == "" || r.UserID == "" {
		return model.MessageStatus{}, remoteErr("decode message_status", fmt.Errorf("row missing key"))
	}
	s := model.MessageStatus{
		MessageID: r.MessageID,
		UserID:    r.UserID,
		Status:    model.DeliveryState(r.Status),
	}
	if r.Timestamp != nil {
		s.Timestamp = *r.Timestamp
	}
	return s, nil
}
