package cli

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okovalenko/tgrelay/internal/config"
	"github.com/okovalenko/tgrelay/internal/domain"
	"github.com/okovalenko/tgrelay/internal/orchestrator"
)

func newMessageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "message",
		Short: "Send messages without Telegram",
	}

	cmd.AddCommand(newMessageSendCmd())
	return cmd
}

func newMessageSendCmd() *cobra.Command {
	var model string

	cmd := &cobra.Command{
		Use:   "send [message]",
		Short: "Send a one-shot message to the model and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := strings.Join(args, " ")

			cfg, err := config.Load(paths.Config)
			if err != nil {
				cfg = config.Defaults()
			}
			if model != "" {
				cfg.AI.Model = model
			}
			if cfg.AI.APIKey == "" {
				return fmt.Errorf("no AI API key configured (set ai.apiKey or GEMINI_API_KEY)")
			}

			orch := orchestrator.New(
				orchestratorConfig(cfg),
				orchestrator.NewMemorySessionStore(),
				newAIClient(cfg),
				nil,
				log,
			)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			reply, err := orch.Handle(ctx, domain.InboundMessage{
				ConversationID: "cli",
				Text:           message,
				ReceivedAt:     time.Now().UTC(),
			})
			if err != nil {
				return err
			}
			if reply.Degraded {
				return fmt.Errorf("model unavailable: %s", reply.Text)
			}

			fmt.Println(reply.Text)
			return nil
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "override the configured model")
	return cmd
}
