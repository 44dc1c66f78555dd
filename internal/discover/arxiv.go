// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package discover

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/paperwatch/internal/httputil"
	"github.com/pdiddy/paperwatch/pkg/types"
)

// arxivAPIBase is the arXiv search endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

const defaultPageSize = 50

// ArxivSource queries the arXiv Atom API page by page.
type ArxivSource struct {
	Client *http.Client
	Config types.SearchConfig
}

// FetchCandidates pages through results for category until a page comes
// back short, filtering by the configured target years.
func (s *ArxivSource) FetchCandidates(ctx context.Context, category string) ([]Candidate, error) {
	pageSize := s.Config.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	query := buildQuery(category)
	if query == "" {
		return nil, fmt.Errorf("empty arXiv query for category %q", category)
	}

	var candidates []Candidate
	for start := 0; ; start += pageSize {
		entries, err := s.fetchPage(ctx, query, start, pageSize)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			break
		}

		for _, entry := range entries {
			c, ok := s.candidate(entry)
			if ok {
				candidates = append(candidates, c)
			}
		}

		if len(entries) < pageSize {
			break
		}
		if s.Config.PageDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.Config.PageDelay):
			}
		}
	}
	return candidates, nil
}

func (s *ArxivSource) fetchPage(ctx context.Context, query string, start, pageSize int) ([]arxivEntry, error) {
	url := fmt.Sprintf("%s?search_query=%s&start=%d&max_results=%d&sortBy=submittedDate&sortOrder=descending",
		arxivAPIBase, query, start, pageSize)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", s.Config.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, s.Client, req, -1)
	if err != nil {
		return nil, fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arXiv API returned HTTP %d", resp.StatusCode)
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("parsing arXiv response: %w", err)
	}
	return feed.Entries, nil
}

// candidate converts a feed entry, applying the year filter. Entries
// without a recognizable identifier are dropped.
func (s *ArxivSource) candidate(entry arxivEntry) (Candidate, bool) {
	id := extractArxivID(entry.ID)
	if id == "" {
		return Candidate{}, false
	}

	var submitDate *time.Time
	if t, err := time.Parse(time.RFC3339, entry.Published); err == nil {
		submitDate = &t
	}

	if len(s.Config.TargetYears) > 0 {
		year := "Unknown_Year"
		if submitDate != nil {
			year = submitDate.Format("2006")
		}
		if !contains(s.Config.TargetYears, year) {
			return Candidate{}, false
		}
	}

	var authors []string
	for _, a := range entry.Authors {
		authors = append(authors, strings.TrimSpace(a.Name))
	}

	return Candidate{
		Identifier: id,
		Title:      strings.Join(strings.Fields(entry.Title), " "),
		Authors:    strings.Join(authors, ", "),
		Abstract:   strings.TrimSpace(entry.Summary),
		PDFURL:     "https://arxiv.org/pdf/" + id,
		SubmitDate: submitDate,
		JournalRef: strings.TrimSpace(entry.JournalRef),
	}, true
}

// buildQuery constructs the search_query parameter from a keyword.
func buildQuery(category string) string {
	terms := strings.Fields(category)
	if len(terms) == 0 {
		return ""
	}
	return "all:" + strings.Join(terms, "+")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID         string        `xml:"id"`
	Title      string        `xml:"title"`
	Summary    string        `xml:"summary"`
	Published  string        `xml:"published"`
	JournalRef string        `xml:"journal_ref"`
	Authors    []arxivAuthor `xml:"author"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

// extractArxivID pulls the arXiv ID from the entry's <id> URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" -> "2301.07041").
func extractArxivID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	id := idURL[idx+len(prefix):]

	// Strip version suffix (e.g. "v1", "v2").
	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			id = id[:vIdx]
		}
	}
	return id
}
