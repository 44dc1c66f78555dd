// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Status tracks a paper through the pipeline. A record only moves forward
// along discovered -> downloaded -> analyzed -> emailed, or sideways into
// failed; a failed record re-enters the pipeline at whatever stage failed.
type Status string

const (
	StatusDiscovered Status = "discovered"
	StatusDownloaded Status = "downloaded"
	StatusAnalyzed   Status = "analyzed"
	StatusEmailed    Status = "emailed"
	StatusFailed     Status = "failed"
)

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusDiscovered, StatusDownloaded, StatusAnalyzed, StatusEmailed, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether s is an end state for the local-folder scan.
// Failed is terminal-but-retryable and so not included.
func (s Status) Terminal() bool {
	return s == StatusAnalyzed || s == StatusEmailed
}

// Source identifies where a record was discovered.
type Source string

const (
	SourceRemoteSearch Source = "remote-search"
	SourceLocalFolder  Source = "local-folder"
)

// Record holds the pipeline state for one paper, keyed by UID in the
// progress ledger.
type Record struct {
	// UID is the stable identity of the paper: "arxiv_<id>" for remote
	// papers, "local_<checksum>" for files found by the local scan.
	UID string `json:"uid" yaml:"uid"`

	Title    string `json:"title,omitempty" yaml:"title,omitempty"`
	Authors  string `json:"authors,omitempty" yaml:"authors,omitempty"`
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// Source records the discovery mode.
	Source Source `json:"source,omitempty" yaml:"source,omitempty"`

	// SourceCategory is the grouping key, e.g. the originating search
	// keyword. Used for output folders and send-time batching.
	SourceCategory string `json:"source_category,omitempty" yaml:"source_category,omitempty"`

	// SubmitDate buckets output by year. Absence never blocks a stage.
	SubmitDate *time.Time `json:"submit_date,omitempty" yaml:"submit_date,omitempty"`

	// JournalRef is the journal reference from the source listing, if any.
	JournalRef string `json:"journal_ref,omitempty" yaml:"journal_ref,omitempty"`

	// PDFURL is where the paper can be fetched (remote records only).
	PDFURL string `json:"pdf_url,omitempty" yaml:"pdf_url,omitempty"`

	// LocalPath is the on-disk PDF, set once downloaded or found locally.
	LocalPath string `json:"local_path,omitempty" yaml:"local_path,omitempty"`

	// PDFChecksum and ReportChecksum detect on-disk recovery of prior
	// outputs without consulting anything outside the ledger.
	PDFChecksum    string `json:"pdf_checksum,omitempty" yaml:"pdf_checksum,omitempty"`
	ReportChecksum string `json:"report_checksum,omitempty" yaml:"report_checksum,omitempty"`

	// AnalysisPath is the generated report, set only after a successful
	// analysis (or reconciliation of an existing report).
	AnalysisPath string `json:"analysis_path,omitempty" yaml:"analysis_path,omitempty"`

	Status        Status `json:"status" yaml:"status"`
	FailureReason string `json:"failure_reason,omitempty" yaml:"failure_reason,omitempty"`

	// EmailSent resets to false whenever the record re-enters analyzed,
	// so a re-analysis always re-queues the paper for delivery.
	EmailSent bool `json:"email_sent" yaml:"email_sent"`

	// FirstSuccess is set once, on the first transition into analyzed.
	FirstSuccess *time.Time `json:"first_success,omitempty" yaml:"first_success,omitempty"`
}

// Year returns the submit year as a folder name, or "Unknown_Year" when
// the submit date is absent.
func (r *Record) Year() string {
	if r.SubmitDate == nil {
		return "Unknown_Year"
	}
	return r.SubmitDate.Format("2006")
}
