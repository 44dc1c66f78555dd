// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dispatch groups analyzed-but-unsent papers and emits them in
// bounded batches through the notification collaborator.
package dispatch

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pdiddy/paperwatch/internal/ledger"
	"github.com/pdiddy/paperwatch/internal/progress"
	"github.com/pdiddy/paperwatch/pkg/types"
)

// BatchSize caps how many papers go into one notification.
const BatchSize = 20

// LocalGroup is the send-time group for locally scanned papers.
const LocalGroup = "Local Library"

// BatchPosition locates one batch within a group's send.
type BatchPosition struct {
	Number int
	Total  int
}

func (p BatchPosition) String() string {
	return fmt.Sprintf("%d/%d", p.Number, p.Total)
}

// Notifier delivers batches. A batch send is all-or-nothing: an error
// means no item in the batch was delivered.
type Notifier interface {
	SendBatch(ctx context.Context, group string, items []*types.Record, pos BatchPosition) error
	SendNoUpdateNotice(ctx context.Context) error
}

// Stats summarizes a send pass.
type Stats struct {
	Emailed       int
	FailedBatches int
	NoUpdate      bool
}

// Classify buckets a record for send-time grouping: local papers go to
// the local library group, remote papers to their originating search
// keyword, with surveys split out so review digests arrive separately.
func Classify(rec *types.Record) string {
	if rec.Source == types.SourceLocalFolder {
		return LocalGroup
	}
	group := rec.SourceCategory
	if group == "" {
		group = "Uncategorized"
	}
	abstract := strings.ToLower(rec.Abstract)
	if strings.Contains(abstract, "survey") || strings.Contains(abstract, "systematic review") {
		return group + " (surveys)"
	}
	return group
}

// Sendable reports whether rec is queued for delivery.
func Sendable(rec *types.Record) bool {
	return rec.Status == types.StatusAnalyzed && !rec.EmailSent && rec.AnalysisPath != ""
}

// Run sends every queued record in grouped, bounded batches. When a
// batch fails the rest of that group waits for the next run (their
// email_sent stays false), but other groups are still attempted. With
// nothing queued at all, the no-update notice goes out instead.
func Run(ctx context.Context, led *ledger.Ledger, records map[string]*types.Record, notifier Notifier, rep progress.Reporter) (Stats, error) {
	var stats Stats

	queued := ledger.Select(records, func(r *types.Record) bool { return Sendable(r) })
	if len(queued) == 0 {
		rep.Status("nothing to send; emitting no-update notice")
		stats.NoUpdate = true
		if err := notifier.SendNoUpdateNotice(ctx); err != nil {
			rep.Status(fmt.Sprintf("error: no-update notice: %v", err))
		}
		return stats, nil
	}

	groups := make(map[string][]*types.Record)
	for _, rec := range queued {
		name := Classify(rec)
		groups[name] = append(groups[name], rec)
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		items := groups[name]
		total := (len(items) + BatchSize - 1) / BatchSize

		for n := 0; n < total; n++ {
			if err := ctx.Err(); err != nil {
				return stats, err
			}

			batch := items[n*BatchSize : min(len(items), (n+1)*BatchSize)]
			pos := BatchPosition{Number: n + 1, Total: total}
			rep.Status(fmt.Sprintf("sending group %q batch %s (%d papers)", name, pos, len(batch)))

			if err := notifier.SendBatch(ctx, name, batch, pos); err != nil {
				if ctx.Err() != nil {
					return stats, ctx.Err()
				}
				// Whole-batch failure; remaining batches of this group
				// stay queued for the next run.
				rep.Status(fmt.Sprintf("error: group %q batch %s failed, deferring rest of group: %v", name, pos, err))
				stats.FailedBatches++
				break
			}

			for _, rec := range batch {
				if err := ledger.Transition(rec, types.StatusEmailed); err != nil {
					rep.Status(fmt.Sprintf("warning: cannot mark %s emailed: %v", rec.UID, err))
					continue
				}
				stats.Emailed++
			}
			if err := led.Save(records); err != nil {
				rep.Status(fmt.Sprintf("error: persisting ledger: %v", err))
			}
		}
	}

	return stats, nil
}
