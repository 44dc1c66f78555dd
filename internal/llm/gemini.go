// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm analyzes papers by uploading them to the Gemini API and
// streaming back an HTML report. Retries here are bounded and flat: the
// stage above records a definitive failure once this package gives up.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pdiddy/paperwatch/internal/progress"
	"github.com/pdiddy/paperwatch/pkg/types"
)

// apiBase is the Generative Language API endpoint. Declared as a var so
// tests can substitute an httptest server.
var apiBase = "https://generativelanguage.googleapis.com"

// Retry delays are fixed, not exponential; tests shrink them.
var (
	uploadRetryDelay   = 3 * time.Second
	generateRetryDelay = 5 * time.Second
)

const (
	defaultMaxRetries    = 2
	defaultRequestExpiry = 300 * time.Second
)

// Gemini uploads a PDF, streams an analysis, and cleans up the cloud
// copy whatever the outcome.
type Gemini struct {
	Client   *http.Client
	Config   types.AnalysisConfig
	Reporter progress.Reporter
}

// NewGemini builds a backend from cfg. The returned backend is nil when
// no API key is configured; callers skip the analysis stage in that case.
func NewGemini(client *http.Client, cfg types.AnalysisConfig, rep progress.Reporter) *Gemini {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil
	}
	if rep == nil {
		rep = progress.Nop{}
	}
	return &Gemini{Client: client, Config: cfg, Reporter: rep}
}

// Analyze uploads pdfPath and returns the generated HTML report. Upload
// and generation are each retried up to MaxRetries additional attempts
// with a short flat delay. The uploaded cloud file is deleted in all
// outcomes.
func (g *Gemini) Analyze(ctx context.Context, pdfPath string, rec *types.Record, pos progress.TaskPosition) (string, error) {
	maxRetries := g.Config.MaxRetries
	if maxRetries < 0 {
		maxRetries = defaultMaxRetries
	}

	file, err := g.uploadWithRetry(ctx, pdfPath, rec.Title, maxRetries)
	if err != nil {
		return "", err
	}
	defer g.deleteFile(file.Name)

	return g.generateWithRetry(ctx, file, maxRetries, pos)
}

// requestTimeout bounds a single upload or generation attempt.
func (g *Gemini) requestTimeout() time.Duration {
	if g.Config.RequestTimeout > 0 {
		return g.Config.RequestTimeout
	}
	return defaultRequestExpiry
}

// uploadedFile is the subset of the Files API response we use.
type uploadedFile struct {
	Name     string `json:"name"`
	URI      string `json:"uri"`
	MimeType string `json:"mimeType"`
}

func (g *Gemini) uploadWithRetry(ctx context.Context, pdfPath, displayName string, maxRetries int) (*uploadedFile, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(uploadRetryDelay):
			}
		}
		g.Reporter.Status(fmt.Sprintf("uploading %s (attempt %d/%d)", displayName, attempt+1, maxRetries+1))

		file, err := g.upload(ctx, pdfPath)
		if err == nil {
			return file, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		g.Reporter.Status(fmt.Sprintf("upload failed: %v", err))
	}
	return nil, fmt.Errorf("upload exhausted %d attempts: %w", maxRetries+1, lastErr)
}

// upload sends one upload attempt, bounded by the configured request
// timeout so a stalled server surfaces as a retryable failure.
func (g *Gemini) upload(ctx context.Context, pdfPath string) (*uploadedFile, error) {
	data, err := os.ReadFile(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", pdfPath, err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.requestTimeout())
	defer cancel()

	url := fmt.Sprintf("%s/upload/v1beta/files?uploadType=media&key=%s", apiBase, g.Config.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/pdf")

	resp, err := g.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upload returned HTTP %d", resp.StatusCode)
	}

	var body struct {
		File uploadedFile `json:"file"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("parsing upload response: %w", err)
	}
	if body.File.URI == "" {
		return nil, fmt.Errorf("upload response missing file URI")
	}
	if body.File.MimeType == "" {
		body.File.MimeType = "application/pdf"
	}
	return &body.File, nil
}

func (g *Gemini) generateWithRetry(ctx context.Context, file *uploadedFile, maxRetries int, pos progress.TaskPosition) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(generateRetryDelay):
			}
		}
		g.Reporter.Status(fmt.Sprintf("requesting analysis (attempt %d/%d)", attempt+1, maxRetries+1))

		report, err := g.generate(ctx, file, pos)
		if err == nil {
			return report, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		lastErr = err
		g.Reporter.Status(fmt.Sprintf("analysis failed: %v", err))
	}
	return "", fmt.Errorf("analysis exhausted %d attempts: %w", maxRetries+1, lastErr)
}

// generate streams one analysis. The request is bounded by the
// configured timeout; stream events go to the reporter, which never
// influences control flow.
func (g *Gemini) generate(ctx context.Context, file *uploadedFile, pos progress.TaskPosition) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.requestTimeout())
	defer cancel()

	payload := map[string]any{
		"contents": []map[string]any{{
			"parts": []map[string]any{
				{"text": g.Config.Prompt},
				{"file_data": map[string]string{
					"mime_type": file.MimeType,
					"file_uri":  file.URI,
				}},
			},
		}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?alt=sse&key=%s",
		apiBase, g.Config.Model, g.Config.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("generate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generate returned HTTP %d", resp.StatusCode)
	}

	g.Reporter.StreamStarted()
	start := time.Now()

	var sb strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" || data == "[DONE]" {
			continue
		}
		sb.WriteString(chunkText(data))
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading stream: %w", err)
	}

	g.Reporter.StreamEnded(progress.StreamStats{
		Chars:    sb.Len(),
		Elapsed:  time.Since(start),
		Position: pos,
	})

	report := strings.TrimSpace(sb.String())
	report = strings.TrimPrefix(report, "```html")
	report = strings.TrimSuffix(report, "```")
	report = strings.TrimSpace(report)
	if report == "" {
		return "", fmt.Errorf("empty analysis response")
	}
	return report, nil
}

// chunkText extracts the text parts of one streamed chunk.
func chunkText(data string) string {
	var chunk struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		return ""
	}
	var sb strings.Builder
	for _, c := range chunk.Candidates {
		for _, p := range c.Content.Parts {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// deleteFile removes the uploaded cloud copy. Cleanup runs on every
// path, including cancellation, so it uses its own short deadline.
func (g *Gemini) deleteFile(name string) {
	if name == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	url := fmt.Sprintf("%s/v1beta/%s?key=%s", apiBase, name, g.Config.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return
	}
	resp, err := g.Client.Do(req)
	if err != nil {
		g.Reporter.Status(fmt.Sprintf("warning: deleting cloud file %s: %v", name, err))
		return
	}
	resp.Body.Close()
}
