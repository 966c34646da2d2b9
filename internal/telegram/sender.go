package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/okovalenko/tgrelay/internal/domain"
	"github.com/okovalenko/tgrelay/internal/logging"
)

// botAPI is the slice of tgbotapi.BotAPI the sender uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Sender delivers replies and manages the bot's webhook registration.
type Sender struct {
	bot botAPI
	log *logging.Logger
}

// NewSender wraps a connected bot API client.
func NewSender(bot botAPI, log *logging.Logger) *Sender {
	return &Sender{bot: bot, log: log.Sub("telegram")}
}

// SendReply delivers an outbound reply to its chat.
func (s *Sender) SendReply(reply *domain.OutboundReply) error {
	msg := tgbotapi.NewMessage(reply.ChatID, reply.Text)
	if _, err := s.bot.Send(msg); err != nil {
		return fmt.Errorf("sending reply to chat %d: %w", reply.ChatID, err)
	}
	s.log.Debug().
		Int64("chat", reply.ChatID).
		Bool("degraded", reply.Degraded).
		Int("length", len(reply.Text)).
		Msg("reply sent")
	return nil
}

// SendTyping shows the typing indicator while a reply is being
// generated. Failures are logged, not returned: a missing indicator
// never blocks the reply.
func (s *Sender) SendTyping(chatID int64) {
	action := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	if _, err := s.bot.Request(action); err != nil {
		s.log.Warn().Err(err).Int64("chat", chatID).Msg("typing indicator failed")
	}
}

// RegisterWebhook points Telegram at url, dropping any previous
// registration first so stale queued updates are not replayed.
func (s *Sender) RegisterWebhook(url string) error {
	if _, err := s.bot.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: true}); err != nil {
		return fmt.Errorf("removing old webhook: %w", err)
	}

	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("building webhook config: %w", err)
	}
	if _, err := s.bot.Request(wh); err != nil {
		return fmt.Errorf("registering webhook: %w", err)
	}

	s.log.Info().Str("url", url).Msg("webhook registered")
	return nil
}

// UnregisterWebhook removes the webhook registration on shutdown.
func (s *Sender) UnregisterWebhook() error {
	if _, err := s.bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("removing webhook: %w", err)
	}
	s.log.Info().Msg("webhook removed")
	return nil
}
