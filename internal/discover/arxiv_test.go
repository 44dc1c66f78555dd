// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package discover

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paperwatch/pkg/types"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:arxiv="http://arxiv.org/schemas/atom">
  <entry>
    <id>http://arxiv.org/abs/2501.01234v1</id>
    <title>Encrypted Traffic  Classification
      with Transformers</title>
    <summary>We study encrypted traffic.</summary>
    <published>2025-01-17T18:58:28Z</published>
    <arxiv:journal_ref>Journal of Testing 42</arxiv:journal_ref>
    <author><name>Alice Smith</name></author>
    <author><name>Bob Jones</name></author>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2301.07041v2</id>
    <title>An Older Paper</title>
    <summary>From 2023.</summary>
    <published>2023-01-17T00:00:00Z</published>
    <author><name>Carol</name></author>
  </entry>
</feed>`

func TestFetchCandidates(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("start") != "0" {
			fmt.Fprint(w, `<feed xmlns="http://www.w3.org/2005/Atom"></feed>`)
			return
		}
		fmt.Fprint(w, sampleFeed)
	}))
	defer ts.Close()

	old := arxivAPIBase
	arxivAPIBase = ts.URL
	defer func() { arxivAPIBase = old }()

	src := &ArxivSource{
		Client: ts.Client(),
		Config: types.SearchConfig{TargetYears: []string{"2025"}},
	}

	got, err := src.FetchCandidates(context.Background(), "encrypted traffic classification")
	require.NoError(t, err)
	require.Len(t, got, 1, "year filter should drop the 2023 entry")

	c := got[0]
	assert.Equal(t, "2501.01234", c.Identifier)
	assert.Equal(t, "Encrypted Traffic Classification with Transformers", c.Title)
	assert.Equal(t, "Alice Smith, Bob Jones", c.Authors)
	assert.Equal(t, "We study encrypted traffic.", c.Abstract)
	assert.Equal(t, "https://arxiv.org/pdf/2501.01234", c.PDFURL)
	assert.Equal(t, "Journal of Testing 42", c.JournalRef)
	require.NotNil(t, c.SubmitDate)
	assert.Equal(t, "2025", c.SubmitDate.Format("2006"))
}

func TestFetchCandidatesNoYearFilter(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("start") != "0" {
			fmt.Fprint(w, `<feed xmlns="http://www.w3.org/2005/Atom"></feed>`)
			return
		}
		fmt.Fprint(w, sampleFeed)
	}))
	defer ts.Close()

	old := arxivAPIBase
	arxivAPIBase = ts.URL
	defer func() { arxivAPIBase = old }()

	src := &ArxivSource{Client: ts.Client(), Config: types.SearchConfig{}}
	got, err := src.FetchCandidates(context.Background(), "anything")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestFetchCandidatesServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	old := arxivAPIBase
	arxivAPIBase = ts.URL
	defer func() { arxivAPIBase = old }()

	src := &ArxivSource{Client: ts.Client(), Config: types.SearchConfig{}}
	_, err := src.FetchCandidates(context.Background(), "anything")
	assert.Error(t, err)
}

func TestFetchCandidatesEmptyCategory(t *testing.T) {
	src := &ArxivSource{Client: http.DefaultClient, Config: types.SearchConfig{}}
	_, err := src.FetchCandidates(context.Background(), "   ")
	assert.Error(t, err)
}

func TestExtractArxivID(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"versioned", "http://arxiv.org/abs/2301.07041v1", "2301.07041"},
		{"unversioned", "http://arxiv.org/abs/2301.07041", "2301.07041"},
		{"no abs path", "http://arxiv.org/pdf/2301.07041", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractArxivID(tt.input))
		})
	}
}
