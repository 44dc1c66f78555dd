// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package discover scans configured search categories for candidate
// papers and records new ones in the progress ledger.
package discover

import (
	"context"
	"fmt"
	"time"

	"github.com/pdiddy/paperwatch/internal/ident"
	"github.com/pdiddy/paperwatch/internal/ledger"
	"github.com/pdiddy/paperwatch/internal/progress"
	"github.com/pdiddy/paperwatch/pkg/types"
)

// Candidate is one item a source yields during a category scan.
// Identifier is the source's stable abstract-page identifier
// (e.g. "2301.07041"); the stage derives the ledger UID from it.
type Candidate struct {
	Identifier string
	Title      string
	Authors    string
	Abstract   string
	PDFURL     string
	SubmitDate *time.Time
	JournalRef string
}

// Source produces candidates for a category. Re-querying the same
// category is idempotent and may return previously seen items.
type Source interface {
	FetchCandidates(ctx context.Context, category string) ([]Candidate, error)
}

// Stats summarizes a discovery pass.
type Stats struct {
	New              int
	Known            int
	FailedCategories int
}

// Run scans every category and inserts unseen candidates as discovered.
// Discovery is additive-only: a known UID is never overwritten, so a
// second pass over the same candidate set changes nothing. The ledger
// is persisted once per category that produced new items. A category
// whose scan fails is logged and skipped; the rest continue.
func Run(ctx context.Context, led *ledger.Ledger, records map[string]*types.Record, src Source, categories []string, rep progress.Reporter) (Stats, error) {
	var stats Stats

	for _, category := range categories {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		rep.Status(fmt.Sprintf("scanning category %q...", category))
		candidates, err := src.FetchCandidates(ctx, category)
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			rep.Status(fmt.Sprintf("error: category %q scan failed: %v", category, err))
			stats.FailedCategories++
			continue
		}

		newInCategory := 0
		for _, c := range candidates {
			if c.Identifier == "" {
				continue
			}
			rec := &types.Record{
				UID:            ident.ArxivUID(c.Identifier),
				Title:          c.Title,
				Authors:        c.Authors,
				Abstract:       c.Abstract,
				Source:         types.SourceRemoteSearch,
				SourceCategory: category,
				SubmitDate:     c.SubmitDate,
				JournalRef:     c.JournalRef,
				PDFURL:         c.PDFURL,
				Status:         types.StatusDiscovered,
			}
			if ledger.Insert(records, rec) {
				newInCategory++
			} else {
				stats.Known++
			}
		}

		if newInCategory > 0 {
			if err := led.Save(records); err != nil {
				rep.Status(fmt.Sprintf("error: persisting ledger after %q: %v", category, err))
			}
		}
		stats.New += newInCategory
		rep.Status(fmt.Sprintf("category %q: %d new, %d already known", category, newInCategory, len(candidates)-newInCategory))
	}

	return stats, nil
}
