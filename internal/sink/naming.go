// Package sink holds the naming shared by every content sink; the concrete
// stores live in the local, gcs, and memory subpackages.
package sink

import (
	"strings"
	"time"
)

// Filename derives the artifact name for a capture from its UTC instant and
// the task's destination name hint: YYYYMMDD_HHMMSS_<name>.html.
func Filename(at time.Time, name string) string {
	return at.UTC().Format("20060102_150405") + "_" + sanitize(name) + ".html"
}

// sanitize keeps [A-Za-z0-9._-] and replaces every other rune with an
// underscore so name hints can never smuggle separators into a path.
func sanitize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
