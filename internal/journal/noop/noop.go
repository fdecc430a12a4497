// Package noop provides the journal used when no database is configured. It
// lets the runner treat journaling as always-present while doing nothing.
package noop

import (
	"context"

	"github.com/pagevault/pagevault/internal/scrape"
)

// Journal accepts and drops every record.
type Journal struct{}

// New returns a no-op journal.
func New() *Journal {
	return &Journal{}
}

// Record does nothing and reports success.
func (*Journal) Record(context.Context, scrape.CaptureRecord) error {
	return nil
}

// Close does nothing.
func (*Journal) Close() {}
