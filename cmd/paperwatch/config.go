// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/pdiddy/paperwatch/internal/archive"
	"github.com/pdiddy/paperwatch/internal/discover"
	"github.com/pdiddy/paperwatch/internal/download"
	"github.com/pdiddy/paperwatch/internal/httputil"
	"github.com/pdiddy/paperwatch/internal/ledger"
	"github.com/pdiddy/paperwatch/internal/llm"
	"github.com/pdiddy/paperwatch/internal/notify"
	"github.com/pdiddy/paperwatch/internal/progress"
	"github.com/pdiddy/paperwatch/internal/workflow"
	"github.com/pdiddy/paperwatch/pkg/types"
)

const (
	defaultUserAgent    = "paperwatch/0.1"
	defaultHTTPTimeout  = 60 * time.Second
	defaultPageDelay    = 500 * time.Millisecond
	defaultFetchDelay   = 1 * time.Second
	defaultModel        = "gemini-2.5-pro"
	defaultAnalysisWait = 300 * time.Second
)

// buildConfig assembles the runtime configuration from viper keys and
// loaded secrets.
func buildConfig() types.Config {
	viper.SetDefault("work_dir", "work")
	viper.SetDefault("search.page_size", 50)
	viper.SetDefault("search.page_delay", defaultPageDelay)
	viper.SetDefault("search.timeout", defaultHTTPTimeout)
	viper.SetDefault("download.dir", "papers")
	viper.SetDefault("download.delay", defaultFetchDelay)
	viper.SetDefault("download.timeout", defaultHTTPTimeout)
	viper.SetDefault("analysis.model", defaultModel)
	viper.SetDefault("analysis.max_retries", 2)
	viper.SetDefault("analysis.request_timeout", defaultAnalysisWait)
	viper.SetDefault("analysis.reports_dir", "reports")
	viper.SetDefault("email.smtp_port", 465)

	return types.Config{
		WorkDir:      viper.GetString("work_dir"),
		LocalScanDir: viper.GetString("local_scan_dir"),
		Search: types.SearchConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("search.timeout"),
				UserAgent: defaultUserAgent,
			},
			Categories:  viper.GetStringSlice("search.categories"),
			TargetYears: viper.GetStringSlice("search.target_years"),
			PageSize:    viper.GetInt("search.page_size"),
			PageDelay:   viper.GetDuration("search.page_delay"),
		},
		Download: types.DownloadConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("download.timeout"),
				UserAgent: defaultUserAgent,
			},
			Delay: viper.GetDuration("download.delay"),
			Dir:   viper.GetString("download.dir"),
		},
		Analysis: types.AnalysisConfig{
			Model:          viper.GetString("analysis.model"),
			APIKey:         secretDefault("gemini-api-key", viper.GetString("analysis.api_key")),
			Prompt:         viper.GetString("analysis.prompt"),
			MaxRetries:     viper.GetInt("analysis.max_retries"),
			RequestTimeout: viper.GetDuration("analysis.request_timeout"),
			ReportsDir:     viper.GetString("analysis.reports_dir"),
		},
		Email: types.EmailConfig{
			Sender:     viper.GetString("email.sender"),
			Password:   secretDefault("smtp-password", viper.GetString("email.password")),
			Receiver:   viper.GetString("email.receiver"),
			SMTPServer: viper.GetString("email.smtp_server"),
			SMTPPort:   viper.GetInt("email.smtp_port"),
		},
		Proxy: types.ProxyConfig{
			Enabled: viper.GetBool("proxy.enabled"),
			Host:    viper.GetString("proxy.host"),
			Port:    viper.GetInt("proxy.port"),
		},
	}
}

func proxyURL(cfg types.ProxyConfig) string {
	if !cfg.Enabled {
		return ""
	}
	return fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port)
}

// newRunner wires the pipeline from cfg. Collaborators whose settings
// are missing stay nil; the workflow skips their stage.
func newRunner(cfg types.Config, rep progress.Reporter) (*workflow.Runner, error) {
	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating work directory: %w", err)
	}

	store, err := archive.Open(cfg.WorkDir)
	if err != nil {
		return nil, err
	}

	proxy := proxyURL(cfg.Proxy)
	r := &workflow.Runner{
		Config:   cfg,
		Ledger:   ledger.New(cfg.WorkDir),
		Archive:  store,
		Reporter: rep,
		RunID:    uuid.NewString(),
	}

	if len(cfg.Search.Categories) > 0 {
		r.Source = &discover.ArxivSource{
			Client: httputil.NewClient(cfg.Search.Timeout, proxy),
			Config: cfg.Search,
		}
	}
	r.Fetcher = &download.HTTPFetcher{
		Client:    httputil.NewClient(cfg.Download.Timeout, proxy),
		UserAgent: cfg.Download.UserAgent,
	}
	if g := llm.NewGemini(httputil.NewClient(0, proxy), cfg.Analysis, rep); g != nil {
		r.Analyzer = g
	}
	if m := notify.NewMailer(cfg.Email); m != nil {
		r.Notifier = m
	}
	return r, nil
}

// acquireLock takes the single-instance lock in the work directory.
// The returned release function must be called before exit.
func acquireLock(workDir string) (func(), error) {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating work directory: %w", err)
	}
	lock := flock.New(filepath.Join(workDir, "paperwatch.lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring instance lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("another paperwatch instance is already running")
	}
	return func() { _ = lock.Unlock() }, nil
}
