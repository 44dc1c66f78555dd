// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package download fetches discovered papers to disk and advances their
// ledger records.
package download

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paperwatch/internal/ident"
	"github.com/pdiddy/paperwatch/internal/ledger"
	"github.com/pdiddy/paperwatch/internal/progress"
	"github.com/pdiddy/paperwatch/pkg/types"
)

// FailureReason is recorded on records whose fetch failed.
const FailureReason = "Download Failed"

const metadataDir = "metadata"

// Fetcher retrieves a remote document into dest.
type Fetcher interface {
	Fetch(ctx context.Context, url, dest string) error
}

// Stats summarizes a download pass.
type Stats struct {
	Downloaded int
	Recovered  int
	Failed     int
}

// Key is the sanitized title used for file names, falling back to the
// UID for untitled records.
func Key(rec *types.Record) string {
	if key := ident.SanitizeFilename(rec.Title); key != "" {
		return key
	}
	return ident.SanitizeFilename(rec.UID)
}

// PDFPath is the expected on-disk location for a record's PDF:
// <dir>/<category>/<year>/<key>.pdf.
func PDFPath(cfg types.DownloadConfig, rec *types.Record) string {
	return filepath.Join(cfg.Dir, ident.SanitizeFilename(rec.SourceCategory), rec.Year(), Key(rec)+".pdf")
}

// metadataPath is the YAML sidecar beside the category folder.
func metadataPath(cfg types.DownloadConfig, rec *types.Record) string {
	return filepath.Join(cfg.Dir, ident.SanitizeFilename(rec.SourceCategory), metadataDir, Key(rec)+".yaml")
}

// Run downloads every discovered record. A PDF already present at the
// expected path is adopted without a fetch (disk fills gaps, the ledger
// stays authoritative). Each item is persisted individually: download is
// the most fragile stage, and an interruption should cost at most one
// item. A failed item is marked failed and the pass continues.
func Run(ctx context.Context, led *ledger.Ledger, records map[string]*types.Record, fetcher Fetcher, cfg types.DownloadConfig, rep progress.Reporter) (Stats, error) {
	var stats Stats

	pending := ledger.Select(records, func(r *types.Record) bool {
		return r.Status == types.StatusDiscovered
	})

	fetched := 0
	for _, rec := range pending {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		dest := PDFPath(cfg, rec)
		if _, err := os.Stat(dest); err == nil {
			rep.Status(fmt.Sprintf("recovered from disk: %s", Key(rec)))
			if err := adopt(rec, dest); err != nil {
				rep.Status(fmt.Sprintf("error: adopting %s: %v", Key(rec), err))
				markFailed(rec, err.Error(), rep)
				stats.Failed++
			} else {
				stats.Recovered++
			}
			persist(led, records, rep)
			continue
		}

		if rec.PDFURL == "" {
			markFailed(rec, FailureReason, rep)
			stats.Failed++
			persist(led, records, rep)
			continue
		}

		if fetched > 0 && cfg.Delay > 0 {
			select {
			case <-ctx.Done():
				return stats, ctx.Err()
			case <-time.After(cfg.Delay):
			}
		}

		rep.Status(fmt.Sprintf("downloading: %s", Key(rec)))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			markFailed(rec, FailureReason, rep)
			stats.Failed++
			persist(led, records, rep)
			continue
		}

		fetched++
		if err := fetcher.Fetch(ctx, rec.PDFURL, dest); err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			rep.Status(fmt.Sprintf("error: downloading %s: %v", Key(rec), err))
			markFailed(rec, FailureReason, rep)
			stats.Failed++
			persist(led, records, rep)
			continue
		}

		if err := adopt(rec, dest); err != nil {
			rep.Status(fmt.Sprintf("error: finalizing %s: %v", Key(rec), err))
			markFailed(rec, err.Error(), rep)
			stats.Failed++
			persist(led, records, rep)
			continue
		}

		if err := writeMetadata(cfg, rec); err != nil {
			rep.Status(fmt.Sprintf("warning: metadata for %s: %v", Key(rec), err))
		}

		stats.Downloaded++
		persist(led, records, rep)
	}

	return stats, nil
}

// adopt records a PDF that exists at dest, whether just fetched or
// recovered from a previous run.
func adopt(rec *types.Record, dest string) error {
	sum, err := ident.FileChecksum(dest)
	if err != nil {
		return err
	}
	if err := ledger.Transition(rec, types.StatusDownloaded); err != nil {
		return err
	}
	rec.LocalPath = dest
	rec.PDFChecksum = sum
	return nil
}

func markFailed(rec *types.Record, reason string, rep progress.Reporter) {
	if err := ledger.Fail(rec, reason); err != nil {
		rep.Status(fmt.Sprintf("warning: cannot fail %s: %v", rec.UID, err))
	}
}

func persist(led *ledger.Ledger, records map[string]*types.Record, rep progress.Reporter) {
	if err := led.Save(records); err != nil {
		rep.Status(fmt.Sprintf("error: persisting ledger: %v", err))
	}
}

// writeMetadata drops a YAML sidecar describing the paper next to the
// download tree, for tooling that works without the ledger.
func writeMetadata(cfg types.DownloadConfig, rec *types.Record) error {
	path := metadataPath(cfg, rec)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating metadata directory: %w", err)
	}
	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
