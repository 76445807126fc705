package bus

import "time"

// Event is a domain event published on the bus. Topic is a dot-separated
// name; subscribers match on topic prefix.
type Event struct {
	Topic     string
	Timestamp time.Time
	Payload   any
}

// Well-known topics and topic prefixes.
const (
	MessagePrefix   = "remote.message."  // + conversation id, payload *model.Message
	StatusTopic     = "remote.status"    // payload *model.MessageStatus
	IdentityTopic   = "session.identity" // payload *model.Identity, nil on logout
	ConnectionTopic = "remote.connection"
)

// MessageTopic returns the topic carrying new-message pushes for one
// conversation. Subscribing to MessagePrefix receives all of them.
func MessageTopic(conversationID string) string {
	return MessagePrefix + conversationID
}
