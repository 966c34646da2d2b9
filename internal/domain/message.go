package domain

import "time"

// InboundMessage is the canonical form of a user message after
// normalization. It is immutable once constructed; the orchestrator
// never sees platform-specific update shapes.
type InboundMessage struct {
	ConversationID string    `json:"conversationId"`
	ChatID         int64     `json:"chatId"`
	SenderID       int64     `json:"senderId,omitempty"`
	SenderName     string    `json:"senderName,omitempty"`
	Text           string    `json:"text"`
	ReceivedAt     time.Time `json:"receivedAt"`
}

// OutboundReply is the single reply produced for one InboundMessage.
// InReplyToVersion is the conversation version the reply was committed
// under (0 when nothing was persisted, e.g. a fatal AI error).
type OutboundReply struct {
	ConversationID   string `json:"conversationId"`
	ChatID           int64  `json:"chatId"`
	Text             string `json:"text"`
	InReplyToVersion int64  `json:"inReplyToVersion"`
	Degraded         bool   `json:"degraded,omitempty"`
}
