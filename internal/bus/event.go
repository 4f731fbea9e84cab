package bus

import "time"

// Event kinds published by the client. Subscribers filter on the namespace
// prefix (e.g. "cable." or "send.").
const (
	KindCableConnected      = "cable.connected"
	KindCableDisconnected   = "cable.disconnected"
	KindSubscriptionState   = "subscription.state_changed"
	KindConversationUpdated = "conversation.updated"
	KindSendAck             = "send.ack"
	KindSendFailed          = "send.failed"
)

// Event represents a client event published on the bus.
type Event struct {
	Kind           string
	Timestamp      time.Time
	ConversationID int64
	Payload        any
}
