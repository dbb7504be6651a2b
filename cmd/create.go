package main

import (
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/cardstash/cardstash/internal/enrich"
	"github.com/cardstash/cardstash/internal/model"
)

var (
	createUserID string
	createTitle  string
)

var createCmd = &cobra.Command{
	Use:   "create <url>",
	Short: "Save a card and run enrichment on it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if createUserID == "" {
			return eris.New("--user is required")
		}

		env, err := initEnrich(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		title := createTitle
		if title == "" {
			title = enrich.PlaceholderTitle
		}
		card, err := env.Store.CreateCard(ctx, &model.Card{
			UserID: createUserID,
			URL:    args[0],
			Title:  title,
		})
		if err != nil {
			return err
		}

		if _, err := env.Enricher.Enrich(ctx, enrich.Request{
			CardID:   card.ID,
			CallerID: createUserID,
		}); err != nil {
			return err
		}

		enriched, err := env.Store.GetCard(ctx, card.ID)
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(enriched, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	createCmd.Flags().StringVar(&createUserID, "user", "", "owning user id (required)")
	createCmd.Flags().StringVar(&createTitle, "title", "", "initial title")
	rootCmd.AddCommand(createCmd)
}
