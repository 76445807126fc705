package model

import "time"

// Identity is the authenticated user on whose behalf all operations run.
// Owned by the auth provider; treated as read-only context everywhere else.
type Identity struct {
	ID          string
	Email       string
	Username    string
	DisplayName string
	AvatarURL   string
}

// Profile is a user's public directory entry.
type Profile struct {
	ID          string
	Username    string
	DisplayName string
	AvatarURL   string
	IsOnline    bool
	LastSeen    time.Time
}

// Peer holds the denormalized display fields for the other participant
// of a two-party conversation.
type Peer struct {
	ID          string
	DisplayName string
	AvatarURL   string
	IsOnline    bool
}

// Conversation is a chat the acting identity participates in.
// Peer is nil for group conversations.
type Conversation struct {
	ID            string
	Name          string
	IsGroup       bool
	LastMessage   string
	LastMessageAt time.Time
	UnreadCount   int
	Peer          *Peer
}

// MessageType tags the payload kind of a message body.
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageFile  MessageType = "file"
)

// Message is a single entry in a conversation log. Immutable after creation.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	SenderName     string
	SenderAvatar   string
	Body           string
	Type           MessageType
	FileURL        string
	CreatedAt      time.Time
}

// Before reports whether m sorts ahead of other in a conversation log:
// ascending creation time, ties broken by id.
func (m *Message) Before(other *Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID < other.ID
}

// DeliveryState is the per-recipient delivery status of a message.
type DeliveryState string

const (
	DeliverySent      DeliveryState = "sent"
	DeliveryDelivered DeliveryState = "delivered"
	DeliveryRead      DeliveryState = "read"
)

// MessageStatus is one (message, recipient) delivery record.
type MessageStatus struct {
	MessageID string
	UserID    string
	Status    DeliveryState
	Timestamp time.Time
}

// FriendshipStatus is the stored state of a friendship row.
// Rejection and removal delete the row, so there is no "rejected" value;
// FriendshipNone only ever appears in search annotations.
type FriendshipStatus string

const (
	FriendshipNone     FriendshipStatus = "none"
	FriendshipPending  FriendshipStatus = "pending"
	FriendshipAccepted FriendshipStatus = "accepted"
	FriendshipBlocked  FriendshipStatus = "blocked"
)

// Friendship is directional at creation (requester -> addressee) but
// symmetric in meaning once accepted.
type Friendship struct {
	ID          string
	RequesterID string
	AddresseeID string
	Status      FriendshipStatus
	CreatedAt   time.Time
}

// UserMatch is one directory search hit, annotated with the acting
// identity's friendship status relative to that user.
type UserMatch struct {
	Profile
	Friendship FriendshipStatus
}

// FriendRequest is an incoming pending friendship joined with the
// requester's profile snapshot at fetch time.
type FriendRequest struct {
	ID        string
	CreatedAt time.Time
	Requester Profile
}
