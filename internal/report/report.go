// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report runs the analysis stage: each downloaded paper goes to
// the analysis collaborator and the resulting HTML report is written
// under the reports tree.
package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdiddy/paperwatch/internal/download"
	"github.com/pdiddy/paperwatch/internal/ident"
	"github.com/pdiddy/paperwatch/internal/ledger"
	"github.com/pdiddy/paperwatch/internal/progress"
	"github.com/pdiddy/paperwatch/pkg/types"
)

// FailureReason is recorded on records whose analysis failed.
const FailureReason = "Analysis Failed"

// reportSuffix matches the original report naming scheme.
const reportSuffix = "_report.html"

// Analyzer produces an HTML report for one paper. Implementations
// handle their own bounded retries; a returned error is definitive for
// this run.
type Analyzer interface {
	Analyze(ctx context.Context, pdfPath string, rec *types.Record, pos progress.TaskPosition) (string, error)
}

// Stats summarizes an analysis pass.
type Stats struct {
	Analyzed  int
	Recovered int
	Failed    int
	Skipped   int
}

// Path is the expected report location for a record:
// <reports>/<category>/<key>_report.html.
func Path(cfg types.AnalysisConfig, rec *types.Record) string {
	return filepath.Join(cfg.ReportsDir, ident.SanitizeFilename(rec.SourceCategory), download.Key(rec)+reportSuffix)
}

// Eligible reports whether rec should be analyzed this run: it has a
// local PDF and is either freshly downloaded or failed (failed items
// retry automatically on every run).
func Eligible(rec *types.Record) bool {
	if rec.LocalPath == "" {
		return false
	}
	return rec.Status == types.StatusDownloaded || rec.Status == types.StatusFailed
}

// Run analyzes every eligible record. A report already on disk is
// adopted without calling the analyzer. The ledger is persisted after
// every item; analysis is long-running and progress must survive
// interruption mid-batch.
func Run(ctx context.Context, led *ledger.Ledger, records map[string]*types.Record, analyzer Analyzer, cfg types.AnalysisConfig, rep progress.Reporter) (Stats, error) {
	var stats Stats

	pending := ledger.Select(records, func(r *types.Record) bool { return Eligible(r) })

	for i, rec := range pending {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		key := download.Key(rec)
		dest := Path(cfg, rec)

		// Disk reconciliation: a report from a previous run counts as
		// analyzed without re-invoking the analyzer.
		if _, err := os.Stat(dest); err == nil {
			rep.Status(fmt.Sprintf("report recovered from disk: %s", key))
			if err := adopt(rec, dest); err != nil {
				rep.Status(fmt.Sprintf("error: adopting report for %s: %v", key, err))
				stats.Failed++
			} else {
				stats.Recovered++
			}
			persist(led, records, rep)
			continue
		}

		// A failed record whose PDF disappeared cannot be retried.
		if _, err := os.Stat(rec.LocalPath); err != nil {
			rep.Status(fmt.Sprintf("skipping %s: local file missing (%s)", key, rec.LocalPath))
			stats.Skipped++
			continue
		}

		pos := progress.TaskPosition{Current: i + 1, Total: len(pending)}
		rep.Status(fmt.Sprintf("analyzing (%s): %s", pos, rec.Title))

		html, err := analyzer.Analyze(ctx, rec.LocalPath, rec, pos)
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			rep.Status(fmt.Sprintf("error: analyzing %s: %v", key, err))
			if ferr := ledger.Fail(rec, FailureReason); ferr != nil {
				rep.Status(fmt.Sprintf("warning: cannot fail %s: %v", rec.UID, ferr))
			}
			stats.Failed++
			persist(led, records, rep)
			continue
		}

		if err := writeReport(dest, html); err != nil {
			rep.Status(fmt.Sprintf("error: saving report for %s: %v", key, err))
			if ferr := ledger.Fail(rec, FailureReason); ferr != nil {
				rep.Status(fmt.Sprintf("warning: cannot fail %s: %v", rec.UID, ferr))
			}
			stats.Failed++
			persist(led, records, rep)
			continue
		}

		if err := adopt(rec, dest); err != nil {
			rep.Status(fmt.Sprintf("error: finalizing report for %s: %v", key, err))
			stats.Failed++
		} else {
			stats.Analyzed++
		}
		persist(led, records, rep)
	}

	return stats, nil
}

// adopt marks rec analyzed against the report at dest.
func adopt(rec *types.Record, dest string) error {
	sum, err := ident.FileChecksum(dest)
	if err != nil {
		return err
	}
	if err := ledger.Transition(rec, types.StatusAnalyzed); err != nil {
		return err
	}
	rec.AnalysisPath = dest
	rec.ReportChecksum = sum
	return nil
}

func writeReport(dest, html string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating reports directory: %w", err)
	}
	return os.WriteFile(dest, []byte(html), 0o644)
}

func persist(led *ledger.Ledger, records map[string]*types.Record, rep progress.Reporter) {
	if err := led.Save(records); err != nil {
		rep.Status(fmt.Sprintf("error: persisting ledger: %v", err))
	}
}
