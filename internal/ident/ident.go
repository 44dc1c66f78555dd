// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ident derives stable paper identities and content checksums.
package ident

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

const (
	arxivUIDPrefix = "arxiv_"
	localUIDPrefix = "local_"

	maxFilenameLen = 120
)

// ArxivUID returns the ledger identity for a remote arXiv paper,
// e.g. "arxiv_2301.07041". The same abstract-page identifier always
// yields the same UID regardless of how many times discovery runs.
func ArxivUID(arxivID string) string {
	return arxivUIDPrefix + arxivID
}

// LocalUID returns the ledger identity for a locally discovered file,
// derived from its content checksum: "local_<checksum>".
func LocalUID(checksum string) string {
	return localUIDPrefix + checksum
}

// Checksum returns the hex MD5 digest of data.
func Checksum(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// FileChecksum returns the hex MD5 digest of the file at path.
func FileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

var (
	invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	underscoreRuns       = regexp.MustCompile(`_+`)
)

// SanitizeFilename makes name safe as a file or folder name, preserving
// case: invalid characters become underscores, runs collapse, and the
// result is capped at 120 characters.
func SanitizeFilename(name string) string {
	s := invalidFilenameChars.ReplaceAllString(name, "_")
	s = underscoreRuns.ReplaceAllString(s, "_")
	s = strings.Trim(strings.TrimSpace(s), "_")
	if len(s) > maxFilenameLen {
		s = s[:maxFilenameLen]
	}
	return s
}
