// Package local implements the filesystem content sink.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pagevault/pagevault/internal/scrape"
	"github.com/pagevault/pagevault/internal/sink"
)

// Config captures the parameters for the filesystem sink.
type Config struct {
	// Directory is the root under which capture files are written.
	Directory string `mapstructure:"directory" yaml:"directory"`
}

// Sink writes captured documents to the local filesystem, one timestamped
// file per capture.
type Sink struct {
	dir string
}

// New validates the output directory, creating it when absent, and probes
// that it is writable so a misconfigured path fails at startup rather than
// at the first capture.
func New(cfg Config) (*Sink, error) {
	if strings.TrimSpace(cfg.Directory) == "" {
		return nil, fmt.Errorf("output directory is required")
	}

	info, err := os.Stat(cfg.Directory)
	if err != nil {
		if os.IsNotExist(err) {
			if mkErr := os.MkdirAll(cfg.Directory, 0o750); mkErr != nil {
				return nil, fmt.Errorf("create output directory: %w", mkErr)
			}
		} else {
			return nil, fmt.Errorf("stat output directory: %w", err)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("output path is not a directory")
	}

	testFile := filepath.Join(cfg.Directory, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("output directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("clean up writability probe: %w", err)
	}

	return &Sink{dir: cfg.Directory}, nil
}

// Store writes the capture under the output directory and returns a file://
// URI for the new file.
func (s *Sink) Store(_ context.Context, capture scrape.Capture) (string, error) {
	fullPath := filepath.Join(s.dir, sink.Filename(capture.CapturedAt, capture.TaskName))

	cleanDir := filepath.Clean(s.dir)
	cleanFullPath := filepath.Clean(fullPath)
	if !strings.HasPrefix(cleanFullPath, cleanDir+string(filepath.Separator)) {
		return "", fmt.Errorf("capture path escapes output directory")
	}

	if err := os.WriteFile(fullPath, []byte(capture.HTML), 0o600); err != nil {
		return "", fmt.Errorf("write capture file: %w", err)
	}
	return "file://" + fullPath, nil
}
