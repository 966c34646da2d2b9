package gateway

import (
	"crypto/subtle"
	"encoding/json"
	"mime"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/okovalenko/tgrelay/internal/domain"
	"github.com/okovalenko/tgrelay/internal/telegram"
)

// handleWebhook receives Telegram updates. The URL path carries the
// webhook secret; only Telegram knows it, so a wrong secret is treated
// as an unknown route. Well-formed updates always get 200 back, even
// when processing fails, so Telegram does not keep redelivering them.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	secret := r.PathValue("secret")
	if subtle.ConstantTimeCompare([]byte(secret), []byte(s.cfg.Telegram.WebhookSecret)) != 1 {
		handleNotFound(w, r)
		return
	}

	ct, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || ct != "application/json" {
		s.log.Warn().Str("contentType", r.Header.Get("Content-Type")).Msg("webhook with bad content type")
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		s.log.Warn().Err(err).Msg("webhook with malformed body")
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	// Telegram delivers at-least-once; replays are acknowledged and
	// dropped.
	if s.dedupe.CheckAndMark(int64(update.UpdateID)) {
		s.log.Debug().Int("updateId", update.UpdateID).Msg("duplicate update ignored")
		w.WriteHeader(http.StatusOK)
		return
	}

	msg, ok := telegram.Normalize(update, telegram.Scope(s.cfg.Session.Scope))
	if !ok {
		s.log.Debug().Int("updateId", update.UpdateID).Msg("update carries nothing to relay")
		w.WriteHeader(http.StatusOK)
		return
	}

	s.sender.SendTyping(msg.ChatID)

	reply, err := s.handler.Handle(r.Context(), msg)
	if err != nil {
		s.log.Error().Err(err).
			Str("conversation", msg.ConversationID).
			Msg("message processing failed")
		s.sendInternalError(msg.ChatID, msg.ConversationID)
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := s.sender.SendReply(reply); err != nil {
		s.log.Error().Err(err).
			Str("conversation", msg.ConversationID).
			Msg("reply delivery failed")
	}

	s.monitor.Publish(MonitorEvent{
		Type:           "message",
		ConversationID: reply.ConversationID,
		Version:        reply.InReplyToVersion,
		Degraded:       reply.Degraded,
	})

	w.WriteHeader(http.StatusOK)
}

// sendInternalError tells the user something broke without leaking any
// detail.
func (s *Server) sendInternalError(chatID int64, conversationID string) {
	err := s.sender.SendReply(&domain.OutboundReply{
		ConversationID: conversationID,
		ChatID:         chatID,
		Text:           "Something went wrong, please try again later.",
		Degraded:       true,
	})
	if err != nil {
		s.log.Error().Err(err).Int64("chat", chatID).Msg("failed to deliver error notice")
	}
}
