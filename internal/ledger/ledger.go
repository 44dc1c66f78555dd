// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger persists per-paper pipeline state as a JSON file keyed
// by UID. The ledger is the sole source of truth for what has been
// processed; pre-existing files on disk are reconciled into it by the
// stages, never the other way around.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pdiddy/paperwatch/pkg/types"
)

// FileName is the ledger file within the working directory.
const FileName = "progress.json"

// ErrTransition reports a rejected status transition.
var ErrTransition = errors.New("invalid status transition")

// Ledger loads and saves the progress file for one working directory.
type Ledger struct {
	path string
}

// New returns a Ledger stored at dir/progress.json.
func New(dir string) *Ledger {
	return &Ledger{path: filepath.Join(dir, FileName)}
}

// Path returns the ledger file location.
func (l *Ledger) Path() string { return l.path }

// Load reads the ledger from disk. A missing or corrupt file yields an
// empty mapping: prior state is worth less than the ability to start.
func (l *Ledger) Load() map[string]*types.Record {
	records := make(map[string]*types.Record)

	data, err := os.ReadFile(l.path)
	if err != nil {
		return records
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return make(map[string]*types.Record)
	}

	for uid, rec := range records {
		if rec == nil {
			delete(records, uid)
			continue
		}
		rec.UID = uid
	}
	return records
}

// Save writes every record atomically: the serialized ledger goes to a
// temp file in the same directory and is renamed over the previous one,
// so a crash mid-write cannot corrupt the last valid state.
func (l *Ledger) Save(records map[string]*types.Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling ledger: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating ledger directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".progress-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp ledger: %w", err)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing ledger: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp ledger: %w", closeErr)
	}

	if err := os.Rename(tmpPath, l.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming ledger: %w", err)
	}
	return nil
}

// Insert adds rec if its UID is not yet known. Discovery is additive-only:
// a known record is left untouched and Insert reports false.
func Insert(records map[string]*types.Record, rec *types.Record) bool {
	if rec == nil || rec.UID == "" {
		return false
	}
	if _, ok := records[rec.UID]; ok {
		return false
	}
	records[rec.UID] = rec
	return true
}

// statusRank orders the forward chain. Failed sits outside the chain.
var statusRank = map[types.Status]int{
	types.StatusDiscovered: 1,
	types.StatusDownloaded: 2,
	types.StatusAnalyzed:   3,
	types.StatusEmailed:    4,
}

// Transition moves r to the given status, applying the side effects the
// state machine demands:
//
//   - entering analyzed from any other state clears EmailSent, so a
//     re-analysis always re-queues the paper for delivery;
//   - FirstSuccess is set on the first entry into analyzed, never after;
//   - entering emailed sets EmailSent;
//   - entering any non-failed state clears the failure reason.
//
// Backward moves along the chain, moves to unknown statuses, and
// failing an already-emailed record are rejected with ErrTransition.
func Transition(r *types.Record, to types.Status) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %q -> %q", ErrTransition, r.Status, to)
	}

	from := r.Status
	switch {
	case from == "" || from == types.StatusFailed:
		// New records and retries may enter at any stage.
	case to == types.StatusFailed:
		if from == types.StatusEmailed {
			return fmt.Errorf("%w: %q -> %q", ErrTransition, from, to)
		}
	case statusRank[to] < statusRank[from]:
		return fmt.Errorf("%w: %q -> %q", ErrTransition, from, to)
	}

	if to == types.StatusAnalyzed && from != types.StatusAnalyzed {
		r.EmailSent = false
		if r.FirstSuccess == nil {
			now := time.Now().UTC()
			r.FirstSuccess = &now
		}
	}
	if to == types.StatusEmailed {
		r.EmailSent = true
	}
	if to != types.StatusFailed {
		r.FailureReason = ""
	}

	r.Status = to
	return nil
}

// Fail marks r failed with a reason. Failing an emailed record is
// rejected, as is every other invalid transition.
func Fail(r *types.Record, reason string) error {
	if err := Transition(r, types.StatusFailed); err != nil {
		return err
	}
	r.FailureReason = reason
	return nil
}

// Select returns the records matching pred in deterministic UID order.
// Go maps iterate randomly; batch numbering and tests need stability.
func Select(records map[string]*types.Record, pred func(*types.Record) bool) []*types.Record {
	var out []*types.Record
	for _, rec := range records {
		if pred == nil || pred(rec) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out
}

// Counts tallies records per status for run summaries.
func Counts(records map[string]*types.Record) map[types.Status]int {
	counts := make(map[types.Status]int)
	for _, rec := range records {
		counts[rec.Status]++
	}
	return counts
}
