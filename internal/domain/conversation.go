// Package domain holds the core types shared across the relay:
// conversations, turns, and the inbound/outbound message shapes.
package domain

import (
	"strconv"
	"time"
)

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationKey identifies a conversation on the chat platform.
// SenderID 0 means the whole chat shares one conversation.
type ConversationKey struct {
	ChatID   int64 `json:"chatId"`
	SenderID int64 `json:"senderId,omitempty"`
}

// String returns the canonical string form used as the store's primary key.
func (k ConversationKey) String() string {
	chat := strconv.FormatInt(k.ChatID, 10)
	if k.SenderID == 0 {
		return chat
	}
	return chat + ":" + strconv.FormatInt(k.SenderID, 10)
}

// Turn is a single message within a conversation's history.
type Turn struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is the persisted state of one ongoing exchange.
//
// Version is the optimistic-concurrency counter: it increments by
// exactly one on every successful store commit, and a Save against a
// stale version fails rather than clobbering a concurrent writer.
// Turns are strictly append-ordered; the store never reorders them.
type Conversation struct {
	ID           string    `json:"id"` // ConversationKey.String()
	Turns        []Turn    `json:"turns,omitempty"`
	Version      int64     `json:"version"`
	LastActivity time.Time `json:"lastActivity"`
	CreatedAt    time.Time `json:"createdAt"`
}

// NewConversation returns an empty version-0 conversation for a key.
// Version 0 signals "never persisted" to the store's Save.
func NewConversation(id string, now time.Time) *Conversation {
	return &Conversation{
		ID:           id,
		Version:      0,
		LastActivity: now,
		CreatedAt:    now,
	}
}

// Append adds a turn to the in-memory copy and bumps LastActivity.
// It does not touch Version; only a successful Save does that.
func (c *Conversation) Append(role, text string, at time.Time) {
	c.Turns = append(c.Turns, Turn{Role: role, Text: text, Timestamp: at})
	if at.After(c.LastActivity) {
		c.LastActivity = at
	}
}

// Window returns a bounded projection of the turn history: at most
// maxTurns most recent turns, further trimmed from the front so the
// total text length stays within charBudget when charBudget > 0.
// The conversation itself is never mutated.
func (c *Conversation) Window(maxTurns, charBudget int) []Turn {
	turns := c.Turns
	if maxTurns > 0 && len(turns) > maxTurns {
		turns = turns[len(turns)-maxTurns:]
	}
	if charBudget <= 0 {
		return turns
	}
	total := 0
	for i := len(turns) - 1; i >= 0; i-- {
		total += len(turns[i].Text)
		if total > charBudget {
			// Keep at least the newest turn even if it alone busts the budget.
			if i == len(turns)-1 {
				return turns[len(turns)-1:]
			}
			return turns[i+1:]
		}
	}
	return turns
}
