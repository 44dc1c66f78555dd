// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paperwatch/internal/progress"
	"github.com/pdiddy/paperwatch/internal/workflow"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Search arXiv, download, analyze, and email new papers",
	Long: `Run executes the remote workflow: search the configured arXiv categories
for new papers, download their PDFs, analyze each one with the AI model, and
email the reports in batches. Progress is saved after every paper, so an
interrupted run picks up where it stopped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorkflow(func(ctx context.Context, r *workflow.Runner) (workflow.Summary, error) {
			return r.RunRemote(ctx)
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// runWorkflow holds the shared setup for the workflow commands: the
// instance lock, signal-driven cancellation, and the summary printout.
func runWorkflow(exec func(context.Context, *workflow.Runner) (workflow.Summary, error)) error {
	cfg := buildConfig()

	release, err := acquireLock(cfg.WorkDir)
	if err != nil {
		return err
	}
	defer release()

	rep := &progress.Writer{W: os.Stdout}
	runner, err := newRunner(cfg, rep)
	if err != nil {
		return err
	}
	defer runner.Archive.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := exec(ctx, runner)
	if err != nil {
		return err
	}
	printSummary(os.Stdout, summary)
	return nil
}

func printSummary(w io.Writer, s workflow.Summary) {
	if s.Cancelled {
		fmt.Fprintln(w, "run cancelled; progress saved")
	}
	fmt.Fprintf(w, "discovered: %d new, %d known", s.Discovery.New, s.Discovery.Known)
	if s.Discovery.FailedCategories > 0 {
		fmt.Fprintf(w, " (%d categories failed)", s.Discovery.FailedCategories)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "downloaded: %d (%d recovered, %d failed)\n",
		s.Download.Downloaded, s.Download.Recovered, s.Download.Failed)
	fmt.Fprintf(w, "analyzed:   %d (%d recovered, %d failed, %d skipped)\n",
		s.Analysis.Analyzed, s.Analysis.Recovered, s.Analysis.Failed, s.Analysis.Skipped)
	fmt.Fprintf(w, "emailed:    %d (%d batches failed)\n",
		s.Dispatch.Emailed, s.Dispatch.FailedBatches)
	if s.Fixed > 0 || s.StillBad > 0 {
		fmt.Fprintf(w, "retried:    %d fixed, %d still failing\n", s.Fixed, s.StillBad)
	}
}
