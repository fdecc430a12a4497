package scrape

import "time"

// Task is one configured recurring fetch: a target URL, a destination name
// hint used for filenames and labels, and a cron expression.
type Task struct {
	Name     string `json:"name" mapstructure:"name"`
	URL      string `json:"url" mapstructure:"url"`
	Schedule string `json:"schedule" mapstructure:"schedule"`
}

// SolveResult is the decoded outcome of a successful solve call.
type SolveResult struct {
	URL        string
	StatusCode int
	HTML       string
	UserAgent  string
	Duration   time.Duration
}

// Capture is the in-memory result of one successful fetch attempt, ready to
// be persisted by a Sink.
type Capture struct {
	TaskName   string
	TargetURL  string
	SolvedURL  string
	StatusCode int
	HTML       string
	UserAgent  string
	CapturedAt time.Time
	Duration   time.Duration
}

// CaptureRecord is the metadata row persisted by the Journal and published
// for downstream consumers after a capture lands in a sink.
type CaptureRecord struct {
	ID          string        `json:"id"`
	TaskName    string        `json:"task"`
	TargetURL   string        `json:"url"`
	SolvedURL   string        `json:"solved_url,omitempty"`
	StatusCode  int           `json:"status_code"`
	BlobURI     string        `json:"blob_uri"`
	ContentHash string        `json:"sha256"`
	ContentSize int64         `json:"content_size"`
	UserAgent   string        `json:"user_agent,omitempty"`
	CapturedAt  time.Time     `json:"captured_at"`
	Duration    time.Duration `json:"-"`
	DurationMs  int64         `json:"duration_ms"`
}
