// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package workflow orchestrates the paper pipeline: discovery,
// download, analysis, and email delivery, with the ledger persisted
// after every stage. Stages whose collaborator is not configured are
// skipped so the remaining stages still make progress.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdiddy/paperwatch/internal/archive"
	"github.com/pdiddy/paperwatch/internal/discover"
	"github.com/pdiddy/paperwatch/internal/dispatch"
	"github.com/pdiddy/paperwatch/internal/download"
	"github.com/pdiddy/paperwatch/internal/ident"
	"github.com/pdiddy/paperwatch/internal/ledger"
	"github.com/pdiddy/paperwatch/internal/progress"
	"github.com/pdiddy/paperwatch/internal/report"
	"github.com/pdiddy/paperwatch/pkg/types"
)

// Notifier extends the dispatch notifier with the retry-run report.
type Notifier interface {
	dispatch.Notifier
	SendRetryReport(ctx context.Context, fixed, stillFailing []*types.Record) error
}

// Runner wires the pipeline stages together. Nil collaborators mark
// their stage as unconfigured.
type Runner struct {
	Config   types.Config
	Ledger   *ledger.Ledger
	Source   discover.Source
	Fetcher  download.Fetcher
	Analyzer report.Analyzer
	Notifier Notifier
	Archive  *archive.Store
	Reporter progress.Reporter
	RunID    string
}

// Summary aggregates the stage results of one run.
type Summary struct {
	Discovery discover.Stats
	Download  download.Stats
	Analysis  report.Stats
	Dispatch  dispatch.Stats
	Fixed     int
	StillBad  int
	Cancelled bool
}

// Outcome returns the archive label for this run.
func (s Summary) Outcome() string {
	if s.Cancelled {
		return "cancelled"
	}
	return "completed"
}

func (r *Runner) reporter() progress.Reporter {
	if r.Reporter == nil {
		return progress.Nop{}
	}
	return r.Reporter
}

// RunRemote executes the full remote workflow: search arXiv, download
// new papers, analyze them, and email the results.
func (r *Runner) RunRemote(ctx context.Context) (Summary, error) {
	started := time.Now()
	rep := r.reporter()
	records := r.Ledger.Load()

	var summary Summary
	err := r.remoteStages(ctx, records, rep, &summary)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		summary.Cancelled = true
		err = nil
	}
	r.finish(records, "remote", started, summary, rep)
	return summary, err
}

func (r *Runner) remoteStages(ctx context.Context, records map[string]*types.Record, rep progress.Reporter, summary *Summary) error {
	if r.Source == nil {
		rep.Status("search not configured, skipping discovery")
	} else {
		stats, err := discover.Run(ctx, r.Ledger, records, r.Source, r.Config.Search.Categories, rep)
		summary.Discovery = stats
		if err != nil {
			return fmt.Errorf("discovery stage: %w", err)
		}
	}

	if r.Fetcher == nil {
		rep.Status("downloader not configured, skipping downloads")
	} else {
		stats, err := download.Run(ctx, r.Ledger, records, r.Fetcher, r.Config.Download, rep)
		summary.Download = stats
		if err != nil {
			return fmt.Errorf("download stage: %w", err)
		}
	}

	return r.analyzeAndSend(ctx, records, rep, summary)
}

// RunLocal scans the configured local folder for PDFs, registers new
// ones in the ledger, then analyzes and emails them.
func (r *Runner) RunLocal(ctx context.Context) (Summary, error) {
	started := time.Now()
	rep := r.reporter()
	records := r.Ledger.Load()

	var summary Summary
	err := r.localStages(ctx, records, rep, &summary)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		summary.Cancelled = true
		err = nil
	}
	r.finish(records, "local", started, summary, rep)
	return summary, err
}

func (r *Runner) localStages(ctx context.Context, records map[string]*types.Record, rep progress.Reporter, summary *Summary) error {
	if err := r.scanLocal(ctx, records, rep, summary); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		// A broken scan folder must not strand papers already in the
		// ledger; the remaining stages still run.
		rep.Status(fmt.Sprintf("local scan failed: %v", err))
	}
	return r.analyzeAndSend(ctx, records, rep, summary)
}

// scanLocal walks LocalScanDir and registers every PDF under a
// checksum-derived uid, so renamed or moved files keep their history.
func (r *Runner) scanLocal(ctx context.Context, records map[string]*types.Record, rep progress.Reporter, summary *Summary) error {
	dir := r.Config.LocalScanDir
	if dir == "" {
		return errors.New("local scan directory not configured")
	}

	rep.Status(fmt.Sprintf("scanning %s for PDFs", dir))
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			rep.Status(fmt.Sprintf("cannot read %s: %v", path, err))
			return nil
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".pdf") {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		sum, err := ident.FileChecksum(path)
		if err != nil {
			rep.Status(fmt.Sprintf("cannot checksum %s: %v", path, err))
			return nil
		}
		uid := ident.LocalUID(sum)

		if existing, ok := records[uid]; ok {
			if existing.Status.Terminal() {
				summary.Discovery.Known++
				return nil
			}
			existing.LocalPath = path
			existing.PDFChecksum = sum
			if err := ledger.Transition(existing, types.StatusDownloaded); err != nil {
				rep.Status(fmt.Sprintf("cannot requeue %s: %v", uid, err))
			}
			summary.Discovery.Known++
			return nil
		}

		title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		rec := &types.Record{
			UID:         uid,
			Title:       title,
			Source:      types.SourceLocalFolder,
			LocalPath:   path,
			PDFChecksum: sum,
			Status:      types.StatusDownloaded,
		}
		ledger.Insert(records, rec)
		summary.Discovery.New++
		rep.Status(fmt.Sprintf("registered %s (%s)", title, uid))
		return nil
	})
	if err != nil {
		return fmt.Errorf("scanning local folder: %w", err)
	}

	if summary.Discovery.New > 0 {
		if err := r.Ledger.Save(records); err != nil {
			return fmt.Errorf("saving ledger after scan: %w", err)
		}
	}
	rep.Status(fmt.Sprintf("local scan found %d new, %d known", summary.Discovery.New, summary.Discovery.Known))
	return nil
}

// RunRetry re-attempts failed papers: failed downloads are requeued
// for fetching, failed analyses are re-run, and a retry report email
// summarizes what was fixed and what still fails.
func (r *Runner) RunRetry(ctx context.Context) (Summary, error) {
	started := time.Now()
	rep := r.reporter()
	records := r.Ledger.Load()

	var summary Summary
	err := r.retryStages(ctx, records, rep, &summary)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		summary.Cancelled = true
		err = nil
	}
	r.finish(records, "retry", started, summary, rep)
	return summary, err
}

func (r *Runner) retryStages(ctx context.Context, records map[string]*types.Record, rep progress.Reporter, summary *Summary) error {
	failed := ledger.Select(records, func(rec *types.Record) bool {
		return rec.Status == types.StatusFailed
	})
	if len(failed) == 0 {
		rep.Status("no failed papers to retry")
		return nil
	}
	rep.Status(fmt.Sprintf("retrying %d failed paper(s)", len(failed)))

	// Requeue failed downloads whose PDF never made it to disk.
	requeued := 0
	for _, rec := range failed {
		if rec.PDFURL == "" {
			continue
		}
		if rec.LocalPath != "" {
			if _, err := os.Stat(rec.LocalPath); err == nil {
				continue
			}
		}
		if err := ledger.Transition(rec, types.StatusDiscovered); err != nil {
			return fmt.Errorf("requeueing %s: %w", rec.UID, err)
		}
		requeued++
	}
	if requeued > 0 {
		if err := r.Ledger.Save(records); err != nil {
			return fmt.Errorf("saving ledger after requeue: %w", err)
		}
		if r.Fetcher == nil {
			rep.Status("downloader not configured, skipping download retries")
		} else {
			stats, err := download.Run(ctx, r.Ledger, records, r.Fetcher, r.Config.Download, rep)
			summary.Download = stats
			if err != nil {
				return fmt.Errorf("download stage: %w", err)
			}
		}
	}

	if r.Analyzer == nil {
		rep.Status("analyzer not configured, skipping analysis retries")
	} else {
		stats, err := report.Run(ctx, r.Ledger, records, r.Analyzer, r.Config.Analysis, rep)
		summary.Analysis = stats
		if err != nil {
			return fmt.Errorf("analysis stage: %w", err)
		}
	}

	var fixed, stillFailing []*types.Record
	for _, rec := range failed {
		if rec.Status == types.StatusFailed {
			stillFailing = append(stillFailing, rec)
		} else {
			fixed = append(fixed, rec)
		}
	}
	summary.Fixed = len(fixed)
	summary.StillBad = len(stillFailing)

	if r.Notifier == nil {
		rep.Status("email not configured, skipping retry report")
		return nil
	}
	if err := r.Notifier.SendRetryReport(ctx, fixed, stillFailing); err != nil {
		return fmt.Errorf("sending retry report: %w", err)
	}
	for _, rec := range fixed {
		if rec.Status == types.StatusAnalyzed {
			if err := ledger.Transition(rec, types.StatusEmailed); err != nil {
				return fmt.Errorf("marking %s emailed: %w", rec.UID, err)
			}
		}
	}
	if len(fixed) > 0 {
		if err := r.Ledger.Save(records); err != nil {
			return fmt.Errorf("saving ledger after retry report: %w", err)
		}
	}
	return nil
}

func (r *Runner) analyzeAndSend(ctx context.Context, records map[string]*types.Record, rep progress.Reporter, summary *Summary) error {
	if r.Analyzer == nil {
		rep.Status("analyzer not configured, skipping analysis")
	} else {
		stats, err := report.Run(ctx, r.Ledger, records, r.Analyzer, r.Config.Analysis, rep)
		summary.Analysis = stats
		if err != nil {
			return fmt.Errorf("analysis stage: %w", err)
		}
	}

	if r.Notifier == nil {
		rep.Status("email not configured, skipping delivery")
		return nil
	}
	stats, err := dispatch.Run(ctx, r.Ledger, records, r.Notifier, rep)
	summary.Dispatch = stats
	if err != nil {
		return fmt.Errorf("delivery stage: %w", err)
	}
	return nil
}

// finish syncs the archive index and records the run outcome. Archive
// problems are reported but never fail the run.
func (r *Runner) finish(records map[string]*types.Record, mode string, started time.Time, summary Summary, rep progress.Reporter) {
	if r.Archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := r.Archive.Sync(ctx, records); err != nil {
		rep.Status(fmt.Sprintf("archive sync failed: %v", err))
	}
	if r.RunID != "" {
		if err := r.Archive.RecordRun(ctx, r.RunID, mode, started, time.Now(), summary.Outcome()); err != nil {
			rep.Status(fmt.Sprintf("recording run failed: %v", err))
		}
	}
}
