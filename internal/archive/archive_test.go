// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package archive

import (
	"context"
	"testing"
	"time"

	"github.com/pdiddy/paperwatch/pkg/types"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRecords() map[string]*types.Record {
	date := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	return map[string]*types.Record{
		"arxiv_2603.01234": {
			UID:            "arxiv_2603.01234",
			Title:          "Sparse Mixture Routing",
			Authors:        "A. Author, B. Builder",
			Abstract:       "We route tokens sparsely.",
			Source:         types.SourceRemoteSearch,
			SourceCategory: "cs.LG",
			SubmitDate:     &date,
			Status:         types.StatusAnalyzed,
		},
		"arxiv_2603.05678": {
			UID:            "arxiv_2603.05678",
			Title:          "Broken Download",
			Source:         types.SourceRemoteSearch,
			SourceCategory: "cs.CL",
			Status:         types.StatusFailed,
			FailureReason:  "Download Failed",
		},
		"local_abc123": {
			UID:    "local_abc123",
			Title:  "Local Notes",
			Source: types.SourceLocalFolder,
			Status: types.StatusEmailed,
		},
	}
}

func TestSyncAndStatusCounts(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Sync(ctx, sampleRecords()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	counts, err := s.StatusCounts(ctx)
	if err != nil {
		t.Fatalf("StatusCounts: %v", err)
	}
	want := map[types.Status]int{
		types.StatusAnalyzed: 1,
		types.StatusFailed:   1,
		types.StatusEmailed:  1,
	}
	for status, n := range want {
		if counts[status] != n {
			t.Errorf("counts[%s] = %d, want %d", status, counts[status], n)
		}
	}
}

func TestSyncReplacesPriorContents(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Sync(ctx, sampleRecords()); err != nil {
		t.Fatalf("first Sync: %v", err)
	}
	smaller := map[string]*types.Record{
		"arxiv_2604.00001": {UID: "arxiv_2604.00001", Title: "Only One", Status: types.StatusDiscovered},
	}
	if err := s.Sync(ctx, smaller); err != nil {
		t.Fatalf("second Sync: %v", err)
	}

	counts, err := s.StatusCounts(ctx)
	if err != nil {
		t.Fatalf("StatusCounts: %v", err)
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	if total != 1 {
		t.Errorf("total indexed = %d, want 1 after replacement", total)
	}
}

func TestFailures(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Sync(ctx, sampleRecords()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	failures, err := s.Failures(ctx)
	if err != nil {
		t.Fatalf("Failures: %v", err)
	}
	if len(failures) != 1 {
		t.Fatalf("got %d failures, want 1", len(failures))
	}
	if failures[0].UID != "arxiv_2603.05678" || failures[0].Reason != "Download Failed" {
		t.Errorf("unexpected failure entry: %+v", failures[0])
	}
}

func TestSearch(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Sync(ctx, sampleRecords()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	hits, err := s.Search(ctx, "sparse", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].UID != "arxiv_2603.01234" {
		t.Errorf("search hits = %+v, want the sparse routing paper", hits)
	}
}

func TestRecordRun(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	started := time.Now().Add(-time.Minute)
	if err := s.RecordRun(ctx, "run-1", "remote", started, time.Now(), "completed"); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	// Recording the same run again replaces the row.
	if err := s.RecordRun(ctx, "run-1", "remote", started, time.Now(), "cancelled"); err != nil {
		t.Fatalf("RecordRun replace: %v", err)
	}

	var outcome string
	err := s.db.QueryRowContext(ctx, `SELECT outcome FROM runs WHERE run_id = 'run-1'`).Scan(&outcome)
	if err != nil {
		t.Fatalf("querying run: %v", err)
	}
	if outcome != "cancelled" {
		t.Errorf("outcome = %q, want cancelled", outcome)
	}
}
