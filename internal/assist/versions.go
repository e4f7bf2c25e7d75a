// Package assist carries the document version counter shared with a
// language-assist service. Every update and every position query for an
// open document names a version so the service can discard stale requests.
package assist

import (
	"context"
	"path/filepath"
)

// InitialVersion is the version of a freshly loaded document.
const InitialVersion int64 = 1

// Notifier receives full-text document updates.
type Notifier interface {
	UpdateDocument(ctx context.Context, uri, content string, version int64) error
}

// Versions counts document versions for one open document. It is owned by
// the session loop and not safe for concurrent use.
type Versions struct {
	next int64
}

// NewVersions returns a counter at InitialVersion.
func NewVersions() *Versions {
	return &Versions{next: InitialVersion}
}

// Reset starts over for a newly loaded document.
func (v *Versions) Reset() {
	v.next = InitialVersion
}

// Next returns the version for an accepted edit and advances the counter.
func (v *Versions) Next() int64 {
	n := v.next
	v.next++
	return n
}

// DocumentURI returns the file URI for path, or an untitled URI when the
// document has no path yet.
func DocumentURI(path string) string {
	if path == "" {
		return "untitled:document"
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return "file://" + filepath.ToSlash(path)
}
