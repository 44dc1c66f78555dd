// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package notify

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pdiddy/paperwatch/internal/dispatch"
	"github.com/pdiddy/paperwatch/pkg/types"
)

func testMailer(capture *[]byte) *Mailer {
	m := NewMailer(types.EmailConfig{
		Sender:     "bot@example.com",
		Password:   "secret",
		Receiver:   "team@example.com",
		SMTPServer: "smtp.example.com",
		SMTPPort:   465,
	})
	m.send = func(_ context.Context, _ types.EmailConfig, msg []byte) error {
		*capture = msg
		return nil
	}
	return m
}

func TestNewMailerRequiresSettings(t *testing.T) {
	if m := NewMailer(types.EmailConfig{Sender: "a@b.c"}); m != nil {
		t.Fatal("expected nil mailer for incomplete config")
	}
}

func TestSendBatchMessage(t *testing.T) {
	dir := t.TempDir()
	pdf := filepath.Join(dir, "paper.pdf")
	report := filepath.Join(dir, "paper_report.html")
	if err := os.WriteFile(pdf, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(report, []byte("<html></html>"), 0o644); err != nil {
		t.Fatal(err)
	}

	var captured []byte
	m := testMailer(&captured)
	items := []*types.Record{
		{UID: "arxiv_1", Title: "Sparse Attention", Authors: "A. Author", Abstract: "We study things.", LocalPath: pdf, AnalysisPath: report},
	}
	err := m.SendBatch(context.Background(), "cs.LG", items, dispatch.BatchPosition{Number: 1, Total: 2})
	if err != nil {
		t.Fatalf("SendBatch: %v", err)
	}

	msg := string(captured)
	for _, want := range []string{
		"To: team@example.com",
		"Sparse Attention",
		"A. Author",
		`filename="paper.pdf"`,
		`filename="paper_report.html"`,
		"application/pdf",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q", want)
		}
	}
	if !strings.Contains(msg, "batch 1/2") {
		t.Errorf("message missing batch position, got subject area:\n%s", msg[:200])
	}
}

func TestSendBatchSkipsMissingAttachments(t *testing.T) {
	var captured []byte
	m := testMailer(&captured)
	items := []*types.Record{
		{UID: "arxiv_2", Title: "Ghost Paper", LocalPath: "/nonexistent/ghost.pdf"},
	}
	if err := m.SendBatch(context.Background(), "cs.CL", items, dispatch.BatchPosition{Number: 1, Total: 1}); err != nil {
		t.Fatalf("SendBatch: %v", err)
	}
	if strings.Contains(string(captured), `filename="ghost.pdf"`) {
		t.Error("missing file should not appear as attachment")
	}
	if !strings.Contains(string(captured), "Ghost Paper") {
		t.Error("body should still list the paper")
	}
}

func TestSendNoUpdateNotice(t *testing.T) {
	var captured []byte
	m := testMailer(&captured)
	if err := m.SendNoUpdateNotice(context.Background()); err != nil {
		t.Fatalf("SendNoUpdateNotice: %v", err)
	}
	if !strings.Contains(string(captured), "no new papers") {
		t.Error("notice body missing expected text")
	}
}

func TestSendRetryReport(t *testing.T) {
	var captured []byte
	m := testMailer(&captured)
	fixed := []*types.Record{{UID: "arxiv_3", Title: "Recovered Paper"}}
	failing := []*types.Record{{UID: "arxiv_4", Title: "Stubborn Paper"}}
	if err := m.SendRetryReport(context.Background(), fixed, failing); err != nil {
		t.Fatalf("SendRetryReport: %v", err)
	}
	msg := string(captured)
	if !strings.Contains(msg, "Recovered Paper") || !strings.Contains(msg, "Stubborn Paper") {
		t.Error("retry report missing paper titles")
	}
	if !strings.Contains(msg, "1 fixed, 1 still failing") {
		t.Error("retry report subject missing counts")
	}
}
