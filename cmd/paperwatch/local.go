// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/paperwatch/internal/workflow"
)

var localCmd = &cobra.Command{
	Use:   "local [folder]",
	Short: "Analyze and email PDFs from a local folder",
	Long: `Local runs the folder workflow: scan a directory tree for PDF files,
register new ones by content checksum, analyze them with the AI model, and
email the reports. Papers already delivered are skipped, so the same folder
can be scanned repeatedly.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			viper.Set("local_scan_dir", args[0])
		}
		return runWorkflow(func(ctx context.Context, r *workflow.Runner) (workflow.Summary, error) {
			return r.RunLocal(ctx)
		})
	},
}

func init() {
	rootCmd.AddCommand(localCmd)
}
