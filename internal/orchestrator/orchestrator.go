// Package orchestrator turns inbound messages into AI replies. It owns
// the conversation lifecycle: load state, append the user turn, call
// the model over a bounded context window, persist, reply.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/okovalenko/tgrelay/internal/ai"
	"github.com/okovalenko/tgrelay/internal/domain"
	"github.com/okovalenko/tgrelay/internal/logging"
	"github.com/okovalenko/tgrelay/internal/store"
)

// ErrConcurrency means two writers raced on the same conversation and
// our write lost twice. The caller should drop the update; the other
// writer's reply stands.
var ErrConcurrency = errors.New("conversation update lost to concurrent writer")

// fallbackReplies are sent when the model is unreachable.
var fallbackReplies = []string{
	"I'm having trouble reaching my brain right now. Give me a moment and try again.",
	"Sorry, I couldn't think of an answer just now. Please try again in a bit.",
	"Something went wrong on my end. Ask me again in a moment.",
}

// UsageRecorder logs successful model calls for the stats command.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, conversationID, model string, usage ai.Usage) error
}

// Config tunes the orchestrator.
type Config struct {
	Model         string
	SystemPrompt  string
	MaxTokens     int
	Temperature   *float64
	WindowTurns   int
	CharBudget    int
	DegradedReply string
	Retry         RetryPolicy
}

// Orchestrator processes one inbound message at a time per call. It is
// safe for concurrent use across conversations; concurrent updates to
// the same conversation are resolved by version conflict handling.
type Orchestrator struct {
	cfg    Config
	store  SessionStore
	client ai.Client
	usage  UsageRecorder
	log    *logging.Logger
	now    func() time.Time
}

// New creates an orchestrator. usage may be nil.
func New(cfg Config, sessions SessionStore, client ai.Client, usage UsageRecorder, log *logging.Logger) *Orchestrator {
	if cfg.WindowTurns <= 0 {
		cfg.WindowTurns = 20
	}
	return &Orchestrator{
		cfg:    cfg,
		store:  sessions,
		client: client,
		usage:  usage,
		log:    log.Sub("orchestrator"),
		now:    time.Now,
	}
}

// Handle processes an inbound message and returns the reply to send.
//
// On transient AI failure the user turn is still committed and a canned
// reply is returned with Degraded set. A permanent AI failure is
// returned as an error with nothing persisted, like store failures.
func (o *Orchestrator) Handle(ctx context.Context, msg domain.InboundMessage) (*domain.OutboundReply, error) {
	conv, err := o.store.Load(ctx, msg.ConversationID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		conv = domain.NewConversation(msg.ConversationID, msg.ReceivedAt)
	case err != nil:
		return nil, fmt.Errorf("loading conversation %s: %w", msg.ConversationID, err)
	}

	expected := conv.Version
	conv.Append(domain.RoleUser, msg.Text, msg.ReceivedAt)
	conv.LastActivity = msg.ReceivedAt

	o.log.Info().
		Str("conversation", msg.ConversationID).
		Int64("version", expected).
		Int("historyLen", len(conv.Turns)).
		Msg("processing message")

	resp, callErr := o.complete(ctx, conv)
	if callErr != nil {
		if !ai.IsTransient(callErr) {
			// Permanent failure: retrying cannot help and the
			// exchange never happened as far as state goes. The
			// caller decides what the user sees.
			o.log.Error().Err(callErr).
				Str("conversation", msg.ConversationID).
				Msg("permanent AI failure, dropping turn")
			return nil, fmt.Errorf("completing conversation %s: %w", msg.ConversationID, callErr)
		}

		// Retries exhausted: keep the user turn so the next exchange
		// has it, reply with a canned message.
		o.log.Warn().Err(callErr).
			Str("conversation", msg.ConversationID).
			Msg("AI unavailable, committing user turn only")

		saved, err := o.save(ctx, conv, expected, conv.Turns[len(conv.Turns)-1:])
		if err != nil {
			return nil, err
		}
		return &domain.OutboundReply{
			ConversationID:   msg.ConversationID,
			ChatID:           msg.ChatID,
			Text:             o.fallbackReply(),
			InReplyToVersion: saved.Version,
			Degraded:         true,
		}, nil
	}

	conv.Append(domain.RoleAssistant, resp.Content, o.now().UTC())

	saved, err := o.save(ctx, conv, expected, conv.Turns[len(conv.Turns)-2:])
	if err != nil {
		return nil, err
	}

	if o.usage != nil {
		if err := o.usage.RecordUsage(ctx, msg.ConversationID, resp.Model, resp.Usage); err != nil {
			o.log.Warn().Err(err).Msg("failed to record usage")
		}
	}

	o.log.Info().
		Str("conversation", msg.ConversationID).
		Int64("version", saved.Version).
		Int("inputTokens", resp.Usage.InputTokens).
		Int("outputTokens", resp.Usage.OutputTokens).
		Dur("duration", resp.Duration).
		Msg("reply ready")

	return &domain.OutboundReply{
		ConversationID:   msg.ConversationID,
		ChatID:           msg.ChatID,
		Text:             resp.Content,
		InReplyToVersion: saved.Version,
	}, nil
}

// complete calls the model over the conversation's context window,
// retrying transient failures per the policy.
func (o *Orchestrator) complete(ctx context.Context, conv *domain.Conversation) (*ai.CompletionResponse, error) {
	window := conv.Window(o.cfg.WindowTurns, o.cfg.CharBudget)
	messages := make([]ai.Message, len(window))
	for i, turn := range window {
		messages[i] = ai.Message{Role: turn.Role, Content: turn.Text}
	}

	req := ai.CompletionRequest{
		Model:       o.cfg.Model,
		System:      o.cfg.SystemPrompt,
		Messages:    messages,
		MaxTokens:   o.cfg.MaxTokens,
		Temperature: o.cfg.Temperature,
	}

	var resp *ai.CompletionResponse
	err := o.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		r, err := o.client.Complete(ctx, req)
		if err != nil {
			o.log.Warn().Err(err).Str("provider", o.client.Name()).Msg("completion attempt failed")
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// save persists conv at expectedVersion. On a version conflict it
// reloads the winner's state, re-appends our turns and tries exactly
// once more; a second conflict surfaces as ErrConcurrency.
func (o *Orchestrator) save(ctx context.Context, conv *domain.Conversation, expectedVersion int64, ours []domain.Turn) (*domain.Conversation, error) {
	err := o.store.Save(ctx, conv, expectedVersion)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, store.ErrVersionConflict) {
		return nil, fmt.Errorf("saving conversation %s: %w", conv.ID, err)
	}

	o.log.Warn().
		Str("conversation", conv.ID).
		Int64("expectedVersion", expectedVersion).
		Msg("version conflict, reloading and retrying once")

	latest, err := o.store.Load(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("reloading conversation %s after conflict: %w", conv.ID, err)
	}

	for _, t := range ours {
		latest.Append(t.Role, t.Text, t.Timestamp)
	}
	if conv.LastActivity.After(latest.LastActivity) {
		latest.LastActivity = conv.LastActivity
	}

	if err := o.store.Save(ctx, latest, latest.Version); err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			return nil, fmt.Errorf("conversation %s: %w", conv.ID, ErrConcurrency)
		}
		return nil, fmt.Errorf("saving conversation %s after conflict: %w", conv.ID, err)
	}
	return latest, nil
}

func (o *Orchestrator) fallbackReply() string {
	if o.cfg.DegradedReply != "" {
		return o.cfg.DegradedReply
	}
	return fallbackReplies[rand.Intn(len(fallbackReplies))]
}
