// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package notify delivers workflow results by email. A batch email is
// all-or-nothing: the caller only marks papers delivered when the whole
// message was accepted by the SMTP server.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/paperwatch/internal/dispatch"
	"github.com/pdiddy/paperwatch/pkg/types"
)

// Mailer sends report emails over SMTP with implicit TLS.
type Mailer struct {
	cfg types.EmailConfig

	// send delivers a raw message; tests substitute their own.
	send func(ctx context.Context, cfg types.EmailConfig, msg []byte) error
}

// NewMailer builds a mailer from cfg. The mailer is nil when required
// settings are missing; callers skip the send stage in that case.
func NewMailer(cfg types.EmailConfig) *Mailer {
	if cfg.Sender == "" || cfg.Password == "" || cfg.Receiver == "" || cfg.SMTPServer == "" {
		return nil
	}
	return &Mailer{cfg: cfg, send: sendSMTP}
}

// SendBatch emails one group batch: a summary body plus the PDFs and
// generated reports as attachments.
func (m *Mailer) SendBatch(ctx context.Context, group string, items []*types.Record, pos dispatch.BatchPosition) error {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	subject := fmt.Sprintf("Paper digest [%s] - %d papers (batch %s) - %s", group, len(items), pos, timestamp)

	var body strings.Builder
	fmt.Fprintf(&body, "Group %q has %d newly analyzed paper(s) in this batch (%s).\n\n", group, len(items), pos)
	for i, rec := range items {
		fmt.Fprintf(&body, "%d. Title: %s\n", i+1, orNA(rec.Title))
		fmt.Fprintf(&body, "   Authors: %s\n", orNA(rec.Authors))
		fmt.Fprintf(&body, "   Abstract: %s\n\n", orNA(rec.Abstract))
	}

	var attachments []string
	for _, rec := range items {
		if rec.LocalPath != "" {
			attachments = append(attachments, rec.LocalPath)
		}
		if rec.AnalysisPath != "" {
			attachments = append(attachments, rec.AnalysisPath)
		}
	}

	msg, err := m.buildMessage(subject, body.String(), attachments)
	if err != nil {
		return err
	}
	return m.send(ctx, m.cfg, msg)
}

// SendNoUpdateNotice emails a short "no new papers" notice.
func (m *Mailer) SendNoUpdateNotice(ctx context.Context) error {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	subject := "Paper digest - no new papers - " + timestamp
	body := fmt.Sprintf("The scan completed at %s with no new papers to report.\n", timestamp)

	msg, err := m.buildMessage(subject, body, nil)
	if err != nil {
		return err
	}
	return m.send(ctx, m.cfg, msg)
}

// SendRetryReport emails the outcome of a retry-failures run: which
// papers were fixed (with their PDFs and fresh reports attached) and
// which still fail (PDFs attached for manual inspection).
func (m *Mailer) SendRetryReport(ctx context.Context, fixed, stillFailing []*types.Record) error {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	subject := fmt.Sprintf("Retry report - %d fixed, %d still failing - %s", len(fixed), len(stillFailing), timestamp)

	var body strings.Builder
	fmt.Fprintf(&body, "A retry pass finished at %s: %d paper(s) attempted.\n\n", timestamp, len(fixed)+len(stillFailing))

	fmt.Fprintf(&body, "Fixed (%d):\n", len(fixed))
	writeList(&body, fixed)
	fmt.Fprintf(&body, "\nStill failing (%d):\n", len(stillFailing))
	writeList(&body, stillFailing)

	var attachments []string
	for _, rec := range fixed {
		if rec.LocalPath != "" {
			attachments = append(attachments, rec.LocalPath)
		}
		if rec.AnalysisPath != "" {
			attachments = append(attachments, rec.AnalysisPath)
		}
	}
	for _, rec := range stillFailing {
		if rec.LocalPath != "" {
			attachments = append(attachments, rec.LocalPath)
		}
	}

	msg, err := m.buildMessage(subject, body.String(), attachments)
	if err != nil {
		return err
	}
	return m.send(ctx, m.cfg, msg)
}

func writeList(sb *strings.Builder, items []*types.Record) {
	if len(items) == 0 {
		sb.WriteString("  (none)\n")
		return
	}
	for _, rec := range items {
		fmt.Fprintf(sb, "  - %s\n", orNA(rec.Title))
	}
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
