package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "paperwatch/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// ProxyConfig routes outbound HTTP through a local proxy when enabled.
type ProxyConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Host    string `json:"host" yaml:"host"`
	Port    int    `json:"port" yaml:"port"`
}

// SearchConfig holds settings for the discovery stage.
type SearchConfig struct {
	HTTPConfig `yaml:",inline"`

	// Categories are the search keywords; each keyword is scanned
	// independently and tags its discoveries.
	Categories []string `json:"categories" yaml:"categories"`

	// TargetYears filters candidates by submit year (e.g. ["2025", "2024"]).
	// Empty means no year filter.
	TargetYears []string `json:"target_years" yaml:"target_years"`

	// PageSize is the number of results requested per API page (default 50).
	PageSize int `json:"page_size" yaml:"page_size"`

	// PageDelay is the pause between consecutive result pages (default 500ms).
	PageDelay time.Duration `json:"page_delay" yaml:"page_delay"`
}

// DownloadConfig holds settings for the download stage.
type DownloadConfig struct {
	HTTPConfig `yaml:",inline"`

	// Delay is the pause between consecutive downloads (default 1s).
	Delay time.Duration `json:"delay" yaml:"delay"`

	// Dir is the base directory for downloaded PDFs; papers land under
	// Dir/<category>/<year>/.
	Dir string `json:"dir" yaml:"dir"`
}

// AnalysisConfig holds settings for the analysis stage and its AI backend.
type AnalysisConfig struct {
	// Model is the AI model identifier (e.g. "gemini-2.5-pro").
	Model string `json:"model" yaml:"model"`

	// APIKey authenticates against the AI API. When empty the analysis
	// stage is skipped.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Prompt is the instruction sent alongside each uploaded paper.
	Prompt string `json:"prompt" yaml:"prompt"`

	// MaxRetries is the number of retry attempts after a failed upload or
	// generation call (default 2, i.e. three attempts total).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// RequestTimeout bounds a single generation call (default 300s).
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout"`

	// ReportsDir is the base directory for generated reports; reports land
	// under ReportsDir/<category>/.
	ReportsDir string `json:"reports_dir" yaml:"reports_dir"`
}

// EmailConfig holds settings for the notification mailer. When Sender,
// Password, Receiver, or SMTPServer is empty the send stage is skipped.
type EmailConfig struct {
	Sender     string `json:"sender" yaml:"sender"`
	Password   string `json:"password,omitempty" yaml:"password,omitempty"`
	Receiver   string `json:"receiver" yaml:"receiver"`
	SMTPServer string `json:"smtp_server" yaml:"smtp_server"`
	SMTPPort   int    `json:"smtp_port" yaml:"smtp_port"`
}

// Config groups all stage configurations for a workflow run.
type Config struct {
	// WorkDir is the working directory holding the progress ledger, the
	// report archive index, and the instance lock.
	WorkDir string `json:"work_dir" yaml:"work_dir"`

	// LocalScanDir is the root walked by the local-folder workflow.
	LocalScanDir string `json:"local_scan_dir" yaml:"local_scan_dir"`

	Search   SearchConfig   `json:"search" yaml:"search"`
	Download DownloadConfig `json:"download" yaml:"download"`
	Analysis AnalysisConfig `json:"analysis" yaml:"analysis"`
	Email    EmailConfig    `json:"email" yaml:"email"`
	Proxy    ProxyConfig    `json:"proxy" yaml:"proxy"`
}
