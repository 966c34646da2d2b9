// Package telegram adapts the Telegram Bot API to the relay: update
// normalization inbound, reply delivery and webhook management
// outbound.
package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/okovalenko/tgrelay/internal/domain"
)

// Scope determines how updates map to conversations.
type Scope string

const (
	// ScopePerSender gives every sender in a chat their own
	// conversation.
	ScopePerSender Scope = "per-sender"
	// ScopeGlobal shares one conversation per chat.
	ScopeGlobal Scope = "global"
)

// Normalize converts a raw Telegram update into an InboundMessage.
// The boolean is false when the update carries nothing to relay:
// edits, channel posts, stickers, photos, joins, empty text. Dropping
// those is not an error.
func Normalize(update tgbotapi.Update, scope Scope) (domain.InboundMessage, bool) {
	msg := update.Message
	if msg == nil {
		return domain.InboundMessage{}, false
	}
	if msg.From == nil || msg.Chat == nil {
		return domain.InboundMessage{}, false
	}
	// Never relay messages from bots, our own replies included.
	if msg.From.IsBot {
		return domain.InboundMessage{}, false
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return domain.InboundMessage{}, false
	}

	key := domain.ConversationKey{ChatID: msg.Chat.ID}
	if scope == ScopePerSender {
		key.SenderID = msg.From.ID
	}

	name := msg.From.UserName
	if name == "" {
		name = msg.From.FirstName
	}

	return domain.InboundMessage{
		ConversationID: key.String(),
		ChatID:         msg.Chat.ID,
		SenderID:       msg.From.ID,
		SenderName:     name,
		Text:           text,
		ReceivedAt:     msg.Time().UTC(),
	}, true
}
