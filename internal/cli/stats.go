package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/okovalenko/tgrelay/internal/store"
)

func newStatsCmd() *cobra.Command {
	var (
		top  int
		days int
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show AI usage statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := store.Open(filepath.Join(paths.Data, "tgrelay.db"), log)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()

			usage := store.NewUsageStore(db)
			ctx := context.Background()

			total, err := usage.TotalQueries(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Total queries: %d\n", total)

			topConvs, err := usage.TopConversations(ctx, top)
			if err != nil {
				return err
			}
			if len(topConvs) > 0 {
				fmt.Printf("\nTop conversations:\n")
				for _, c := range topConvs {
					fmt.Printf("  %-24s %d\n", c.ConversationID, c.Queries)
				}
			}

			daily, err := usage.DailyCounts(ctx, days)
			if err != nil {
				return err
			}
			if len(daily) > 0 {
				fmt.Printf("\nQueries per day:\n")
				for _, d := range daily {
					fmt.Printf("  %s  %d\n", d.Day, d.Queries)
				}
			}

			return nil
		},
	}

	cmd.Flags().IntVar(&top, "top", 10, "number of top conversations to show")
	cmd.Flags().IntVar(&days, "days", 7, "number of recent days to show")

	return cmd
}
