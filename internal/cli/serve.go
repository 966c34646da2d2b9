package cli

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/okovalenko/tgrelay/internal/ai"
	"github.com/okovalenko/tgrelay/internal/config"
	"github.com/okovalenko/tgrelay/internal/dedupe"
	"github.com/okovalenko/tgrelay/internal/gateway"
	"github.com/okovalenko/tgrelay/internal/orchestrator"
	"github.com/okovalenko/tgrelay/internal/store"
	"github.com/okovalenko/tgrelay/internal/telegram"
)

func newServeCmd() *cobra.Command {
	var (
		port      int
		bind      string
		noWebhook bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			if err := paths.EnsureDirs(); err != nil {
				return err
			}

			// The webhook path is unguessable; generate a fresh
			// secret when none is pinned in config.
			if cfg.Telegram.WebhookSecret == "" {
				cfg.Telegram.WebhookSecret = uuid.NewString()
			}

			var sessions orchestrator.SessionStore
			var usage orchestrator.UsageRecorder
			if cfg.Session.Store == "sqlite" {
				dbPath := filepath.Join(paths.Data, "tgrelay.db")
				db, err := store.Open(dbPath, log)
				if err != nil {
					return fmt.Errorf("opening database: %w", err)
				}
				defer db.Close()
				sessions = store.NewSessionStore(db)
				usage = store.NewUsageStore(db)
				log.Info().Str("path", dbPath).Msg("using SQLite session store")
			} else {
				sessions = orchestrator.NewMemorySessionStore()
				log.Info().Msg("using in-memory session store")
			}

			client := newAIClient(cfg)
			orch := orchestrator.New(orchestratorConfig(cfg), sessions, client, usage, log)

			bot, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
			if err != nil {
				return fmt.Errorf("connecting to Telegram: %w", err)
			}
			log.Info().Str("username", bot.Self.UserName).Msg("bot authorized")

			sender := telegram.NewSender(bot, log)

			if !noWebhook {
				url := strings.TrimRight(cfg.Telegram.WebhookURL, "/") + "/webhook/" + cfg.Telegram.WebhookSecret
				if err := sender.RegisterWebhook(url); err != nil {
					return err
				}
				defer func() {
					if err := sender.UnregisterWebhook(); err != nil {
						log.Warn().Err(err).Msg("failed to remove webhook")
					}
				}()
			}

			dd := dedupe.New(cfg.Gateway.DedupeTTL, cfg.Gateway.DedupeMaxSize)
			defer dd.Close()

			srv := gateway.New(cfg, orch, sender, dd, log)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override the listen port")
	cmd.Flags().StringVar(&bind, "bind", "", "override the bind mode (loopback, lan, custom)")
	cmd.Flags().BoolVar(&noWebhook, "no-webhook", false, "skip webhook registration with Telegram")

	return cmd
}

func newAIClient(cfg config.Config) ai.Client {
	var opts []ai.GeminiOption
	if cfg.AI.Endpoint != "" {
		opts = append(opts, ai.WithEndpoint(cfg.AI.Endpoint))
	}
	return ai.NewGeminiClient(cfg.AI.APIKey, cfg.AI.Model, cfg.AI.RequestTimeout, opts...)
}

func orchestratorConfig(cfg config.Config) orchestrator.Config {
	return orchestrator.Config{
		Model:         cfg.AI.Model,
		MaxTokens:     cfg.AI.MaxTokens,
		Temperature:   cfg.AI.Temperature,
		WindowTurns:   cfg.Orchestrator.ContextWindowSize,
		CharBudget:    cfg.Orchestrator.ContextCharBudget,
		DegradedReply: cfg.Orchestrator.DegradedReply,
		Retry: orchestrator.RetryPolicy{
			MaxAttempts:     cfg.Orchestrator.RetryMaxAttempts,
			BaseDelay:       cfg.Orchestrator.RetryBaseDelay,
			Factor:          cfg.Orchestrator.RetryBackoffFactor,
			OverallDeadline: cfg.Orchestrator.OverallDeadline,
		},
	}
}
