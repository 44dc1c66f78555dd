// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paperwatch/internal/workflow"
)

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Re-attempt previously failed papers",
	Long: `Retry re-processes every paper the ledger marks as failed: papers whose
PDF never downloaded are fetched again, papers whose analysis failed are
re-analyzed, and a report email summarizes what was fixed and what still
fails.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorkflow(func(ctx context.Context, r *workflow.Runner) (workflow.Summary, error) {
			return r.RunRetry(ctx)
		})
	},
}

func init() {
	rootCmd.AddCommand(retryCmd)
}
