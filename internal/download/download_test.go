// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package download

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paperwatch/internal/ident"
	"github.com/pdiddy/paperwatch/internal/ledger"
	"github.com/pdiddy/paperwatch/internal/progress"
	"github.com/pdiddy/paperwatch/pkg/types"
)

type fakeFetcher struct {
	fail    map[string]error
	fetched []string
	content []byte
}

func (f *fakeFetcher) Fetch(_ context.Context, url, dest string) error {
	f.fetched = append(f.fetched, url)
	if err := f.fail[url]; err != nil {
		return err
	}
	content := f.content
	if content == nil {
		content = []byte("%PDF-1.4 fake")
	}
	return os.WriteFile(dest, content, 0o644)
}

func discoveredRecord(uid, title, url string) *types.Record {
	date := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	return &types.Record{
		UID:            uid,
		Title:          title,
		PDFURL:         url,
		Source:         types.SourceRemoteSearch,
		SourceCategory: "test topic",
		SubmitDate:     &date,
		Status:         types.StatusDiscovered,
	}
}

func TestRunDownloadsDiscovered(t *testing.T) {
	dir := t.TempDir()
	led := ledger.New(dir)
	cfg := types.DownloadConfig{Dir: filepath.Join(dir, "papers")}

	records := map[string]*types.Record{}
	ledger.Insert(records, discoveredRecord("arxiv_1", "Paper One", "https://arxiv.org/pdf/1"))

	fetcher := &fakeFetcher{}
	stats, err := Run(context.Background(), led, records, fetcher, cfg, progress.Nop{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Downloaded)

	rec := records["arxiv_1"]
	assert.Equal(t, types.StatusDownloaded, rec.Status)
	assert.Equal(t, filepath.Join(cfg.Dir, "test topic", "2025", "Paper One.pdf"), rec.LocalPath)
	assert.Equal(t, ident.Checksum([]byte("%PDF-1.4 fake")), rec.PDFChecksum)
	assert.FileExists(t, rec.LocalPath)

	// Metadata sidecar written.
	assert.FileExists(t, filepath.Join(cfg.Dir, "test topic", "metadata", "Paper One.yaml"))

	// Ledger persisted after the item.
	assert.Equal(t, types.StatusDownloaded, led.Load()["arxiv_1"].Status)
}

func TestRunRecoversExistingPDF(t *testing.T) {
	dir := t.TempDir()
	led := ledger.New(dir)
	cfg := types.DownloadConfig{Dir: filepath.Join(dir, "papers")}

	records := map[string]*types.Record{}
	rec := discoveredRecord("arxiv_1", "Paper One", "https://arxiv.org/pdf/1")
	ledger.Insert(records, rec)

	dest := PDFPath(cfg, rec)
	require.NoError(t, os.MkdirAll(filepath.Dir(dest), 0o755))
	require.NoError(t, os.WriteFile(dest, []byte("existing"), 0o644))

	fetcher := &fakeFetcher{}
	stats, err := Run(context.Background(), led, records, fetcher, cfg, progress.Nop{})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Recovered)
	assert.Empty(t, fetcher.fetched, "a present PDF must never be re-fetched")
	assert.Equal(t, types.StatusDownloaded, rec.Status)
	assert.Equal(t, ident.Checksum([]byte("existing")), rec.PDFChecksum)
}

func TestRunAtMostOneDownload(t *testing.T) {
	dir := t.TempDir()
	led := ledger.New(dir)
	cfg := types.DownloadConfig{Dir: filepath.Join(dir, "papers")}

	records := map[string]*types.Record{}
	ledger.Insert(records, discoveredRecord("arxiv_1", "Paper One", "https://arxiv.org/pdf/1"))

	fetcher := &fakeFetcher{}
	_, err := Run(context.Background(), led, records, fetcher, cfg, progress.Nop{})
	require.NoError(t, err)
	require.Len(t, fetcher.fetched, 1)

	// Second pass: the record is downloaded, nothing is eligible.
	_, err = Run(context.Background(), led, records, fetcher, cfg, progress.Nop{})
	require.NoError(t, err)
	assert.Len(t, fetcher.fetched, 1)
}

func TestRunFailureDoesNotAbortBatch(t *testing.T) {
	dir := t.TempDir()
	led := ledger.New(dir)
	cfg := types.DownloadConfig{Dir: filepath.Join(dir, "papers")}

	records := map[string]*types.Record{}
	ledger.Insert(records, discoveredRecord("arxiv_a", "A", "https://x/a"))
	ledger.Insert(records, discoveredRecord("arxiv_b", "B", "https://x/b"))
	ledger.Insert(records, discoveredRecord("arxiv_c", "C", "https://x/c"))

	fetcher := &fakeFetcher{fail: map[string]error{"https://x/b": errors.New("connection reset")}}
	stats, err := Run(context.Background(), led, records, fetcher, cfg, progress.Nop{})
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Downloaded)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, types.StatusFailed, records["arxiv_b"].Status)
	assert.Equal(t, FailureReason, records["arxiv_b"].FailureReason)
	assert.Equal(t, types.StatusDownloaded, records["arxiv_c"].Status)
}

func TestRunMissingURLFails(t *testing.T) {
	dir := t.TempDir()
	led := ledger.New(dir)
	cfg := types.DownloadConfig{Dir: filepath.Join(dir, "papers")}

	records := map[string]*types.Record{}
	ledger.Insert(records, discoveredRecord("arxiv_a", "A", ""))

	stats, err := Run(context.Background(), led, records, &fakeFetcher{}, cfg, progress.Nop{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, FailureReason, records["arxiv_a"].FailureReason)
}

func TestRunCancelledBetweenItems(t *testing.T) {
	dir := t.TempDir()
	led := ledger.New(dir)
	cfg := types.DownloadConfig{Dir: filepath.Join(dir, "papers")}

	records := map[string]*types.Record{}
	ledger.Insert(records, discoveredRecord("arxiv_a", "A", "https://x/a"))
	ledger.Insert(records, discoveredRecord("arxiv_b", "B", "https://x/b"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := &fakeFetcher{}
	_, err := Run(ctx, led, records, fetcher, cfg, progress.Nop{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fetcher.fetched)
}

func TestPDFPathUnknownYear(t *testing.T) {
	cfg := types.DownloadConfig{Dir: "base"}
	rec := &types.Record{UID: "arxiv_1", Title: "T", SourceCategory: "cat"}
	assert.Equal(t, filepath.Join("base", "cat", "Unknown_Year", "T.pdf"), PDFPath(cfg, rec))
}

func TestHTTPFetcher(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, "%PDF-1.4 body")
	}))
	defer ts.Close()

	f := &HTTPFetcher{Client: ts.Client(), UserAgent: "paperwatch-test/0"}
	dir := t.TempDir()

	dest := filepath.Join(dir, "ok.pdf")
	require.NoError(t, f.Fetch(context.Background(), ts.URL+"/ok", dest))
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 body", string(data))

	err = f.Fetch(context.Background(), ts.URL+"/missing", filepath.Join(dir, "missing.pdf"))
	assert.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "missing.pdf"))

	// No temp droppings either way.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
