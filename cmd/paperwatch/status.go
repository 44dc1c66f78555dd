// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paperwatch/internal/archive"
	"github.com/pdiddy/paperwatch/pkg/types"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show ledger status counts and failed papers",
	Long: `Status summarizes the archive index: how many papers sit in each
pipeline state, and which ones are currently failed. With --search, it
matches a full-text query against indexed titles, authors, and abstracts.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().String("search", "", "full-text query over indexed papers")
	statusCmd.Flags().Int("limit", 20, "maximum search results")

	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg := buildConfig()
	store, err := archive.Open(cfg.WorkDir)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	query, _ := cmd.Flags().GetString("search")
	if query != "" {
		limit, _ := cmd.Flags().GetInt("limit")
		return printSearch(ctx, store, query, limit)
	}

	counts, err := store.StatusCounts(ctx)
	if err != nil {
		return err
	}
	order := []types.Status{
		types.StatusDiscovered, types.StatusDownloaded,
		types.StatusAnalyzed, types.StatusEmailed, types.StatusFailed,
	}
	total := 0
	for _, status := range order {
		fmt.Fprintf(os.Stdout, "%-12s %d\n", status, counts[status])
		total += counts[status]
	}
	fmt.Fprintf(os.Stdout, "%-12s %d\n", "total", total)

	failures, err := store.Failures(ctx)
	if err != nil {
		return err
	}
	if len(failures) > 0 {
		fmt.Fprintln(os.Stdout, "\nfailed papers:")
		for _, e := range failures {
			fmt.Fprintf(os.Stdout, "  %s  %s (%s)\n", e.UID, e.Title, e.Reason)
		}
	}
	return nil
}

func printSearch(ctx context.Context, store *archive.Store, query string, limit int) error {
	hits, err := store.Search(ctx, query, limit)
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		fmt.Fprintln(os.Stdout, "no matches")
		return nil
	}
	for _, e := range hits {
		fmt.Fprintf(os.Stdout, "%-10s %s  %s [%s]\n", e.Status, e.UID, e.Title, e.Category)
	}
	return nil
}
