package main

import (
	"errors"
	"fmt"

	"github.com/motheroflaunch/backend/internal/database"
	"github.com/motheroflaunch/backend/internal/search"
	"github.com/motheroflaunch/backend/internal/telemetry"
	"github.com/spf13/cobra"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the search index from the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Search.URL == "" {
			return errors.New("ELASTICSEARCH_URL is not set")
		}
		ctx := cmd.Context()

		client, err := search.NewClient(cfg.Search.URL, telemetry.HTTPTransport(nil))
		if err != nil {
			return err
		}
		if err := client.InitializeIndices(ctx); err != nil {
			return fmt.Errorf("failed to initialize indices: %w", err)
		}

		if err := database.Initialize(cfg); err != nil {
			return err
		}
		defer database.Close()

		stats, err := search.Backfill(ctx, database.DB, client)
		if err != nil {
			return err
		}
		if output == "json" {
			return printJSON(stats)
		}
		fmt.Printf("✓ Indexed %d tools and %d blogs\n", stats.Tools, stats.Blogs)
		return nil
	},
}
