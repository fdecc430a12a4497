// Package gcs provides a content sink backed by Google Cloud Storage.
package gcs

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/pagevault/pagevault/internal/scrape"
	"github.com/pagevault/pagevault/internal/sink"
)

const contentType = "text/html; charset=utf-8"

// Config captures the parameters required to write captures to GCS.
type Config struct {
	Bucket string
	// Prefix is prepended to every object name, e.g. "captures".
	Prefix string
}

// Sink uploads captured documents to a configured GCS bucket.
type Sink struct {
	client *storage.Client
	bucket string
	prefix string
}

// New creates a GCS-backed content sink.
func New(client *storage.Client, cfg Config) (*Sink, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &Sink{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// Store uploads the capture and returns its gs:// URI.
func (s *Sink) Store(ctx context.Context, capture scrape.Capture) (string, error) {
	name := sink.Filename(capture.CapturedAt, capture.TaskName)
	if s.prefix != "" {
		name = s.prefix + "/" + name
	}

	writer := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	writer.ContentType = contentType
	if _, err := writer.Write([]byte(capture.HTML)); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return "", fmt.Errorf("write object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("write object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, name), nil
}
