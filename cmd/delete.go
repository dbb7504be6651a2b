package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cardstash/cardstash/internal/enrich"
)

var deleteUserID string

var deleteCmd = &cobra.Command{
	Use:   "delete <card-id>",
	Short: "Soft-delete a card and remove it from the vector index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnrich(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		userID := deleteUserID
		if userID == "" {
			card, err := env.Store.GetCard(ctx, args[0])
			if err != nil {
				return err
			}
			userID = card.UserID
		}

		if err := env.Enricher.Remove(ctx, enrich.Request{
			CardID:   args[0],
			CallerID: userID,
		}); err != nil {
			return err
		}
		fmt.Printf("deleted %s\n", args[0])
		return nil
	},
}

func init() {
	deleteCmd.Flags().StringVar(&deleteUserID, "user", "", "caller user id (default: card owner)")
	rootCmd.AddCommand(deleteCmd)
}
