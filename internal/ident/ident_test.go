// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ident

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Attention Is All You Need", "Attention Is All You Need"},
		{"invalid chars", `A/B\C:D"E`, "A_B_C_D_E"},
		{"collapses runs", "a//b??c", "a_b_c"},
		{"trims underscores", "_leading and trailing_", "leading and trailing"},
		{"preserves case", "MixedCase Title", "MixedCase Title"},
		{"caps length", strings.Repeat("x", 200), strings.Repeat("x", 120)},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFilename(tt.input); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestUIDPrefixes(t *testing.T) {
	if got := ArxivUID("2301.07041"); got != "arxiv_2301.07041" {
		t.Errorf("ArxivUID = %q", got)
	}
	if got := LocalUID("d41d8cd98f00b204e9800998ecf8427e"); got != "local_d41d8cd98f00b204e9800998ecf8427e" {
		t.Errorf("LocalUID = %q", got)
	}
}

func TestFileChecksum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paper.pdf")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := FileChecksum(path)
	if err != nil {
		t.Fatalf("FileChecksum: %v", err)
	}
	want := Checksum([]byte("hello"))
	if got != want {
		t.Errorf("FileChecksum = %q, want %q", got, want)
	}
	if want != "5d41402abc4b2a76b9719d911017c592" {
		t.Errorf("Checksum(hello) = %q", want)
	}
}

func TestFileChecksumMissing(t *testing.T) {
	if _, err := FileChecksum(filepath.Join(t.TempDir(), "nope.pdf")); err == nil {
		t.Error("expected error for missing file")
	}
}
