package messages

import "time"

// Message directions.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Record is one stored WhatsApp message. Records are immutable once written;
// the only deletion path is en-masse removal when a conversation is archived.
type Record struct {
	ID          string    `json:"id"`
	BrandID     string    `json:"brand_id"`
	SessionName string    `json:"session_name"`
	ActorPhone  string    `json:"actor_phone"`
	Direction   string    `json:"direction"`
	Body        string    `json:"message"`
	MessageType string    `json:"message_type"`
	CreatedAt   time.Time `json:"created_at"`
}

// ConversationSummary groups a phone number's recent messages for the dashboard.
type ConversationSummary struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Phone       string           `json:"phone"`
	LastMessage string           `json:"lastMessage"`
	Time        string           `json:"time"`
	Messages    []SummaryMessage `json:"messages"`
}

// SummaryMessage is the dashboard view of a single message.
type SummaryMessage struct {
	Type      string    `json:"type"` // "incoming" or "outgoing"
	Content   string    `json:"content"`
	Time      string    `json:"time"`
	CreatedAt time.Time `json:"created_at"`
}
