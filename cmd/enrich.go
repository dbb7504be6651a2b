package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cardstash/cardstash/internal/enrich"
)

var enrichUserID string

var enrichCmd = &cobra.Command{
	Use:   "enrich <card-id>",
	Short: "Run enrichment for a single card",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnrich(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		// CLI runs are operator-driven: resolve the owner when no user
		// is given so the ownership check passes.
		userID := enrichUserID
		if userID == "" {
			card, err := env.Store.GetCard(ctx, args[0])
			if err != nil {
				return err
			}
			userID = card.UserID
		}

		result, err := env.Enricher.Enrich(ctx, enrich.Request{
			CardID:   args[0],
			CallerID: userID,
		})
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	enrichCmd.Flags().StringVar(&enrichUserID, "user", "", "caller user id (default: card owner)")
	rootCmd.AddCommand(enrichCmd)
}
