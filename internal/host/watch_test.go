package host

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncSession struct {
	mu    sync.Mutex
	loads []string
	edits []string
}

func (s *syncSession) Load(content, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads = append(s.loads, content)
}

func (s *syncSession) Edit(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edits = append(s.edits, content)
}

func (s *syncSession) Cursor(int) {}

func (s *syncSession) snapshot() ([]string, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.loads...), append([]string(nil), s.edits...)
}

func TestHandleEvent(t *testing.T) {
	dir := t.TempDir()
	w, err := NewFileWatcher(filepath.Join(dir, "doc.md"), &bytes.Buffer{})
	require.NoError(t, err)

	tests := []struct {
		name string
		file string
		op   fsnotify.Op
		want bool
	}{
		{"write", "doc.md", fsnotify.Write, true},
		{"create after replace", "doc.md", fsnotify.Create, true},
		{"chmod", "doc.md", fsnotify.Chmod, false},
		{"remove", "doc.md", fsnotify.Remove, false},
		{"other file", "other.md", fsnotify.Write, false},
		{"swap file", ".doc.md.swp", fsnotify.Create, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := fsnotify.Event{Name: filepath.Join(dir, tt.file), Op: tt.op}
			assert.Equal(t, tt.want, w.handleEvent(ev))
		})
	}
}

func TestFileWatcherFollowsSaves(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.md")
	require.NoError(t, os.WriteFile(path, []byte("one"), 0o600))

	w, err := NewFileWatcher(path, &bytes.Buffer{})
	require.NoError(t, err)
	s := &syncSession{}
	w.SetSession(s)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		loads, _ := s.snapshot()
		return len(loads) == 1
	}, 5*time.Second, 10*time.Millisecond)

	// Give the watcher a moment to register before writing.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("two"), 0o600))

	require.Eventually(t, func() bool {
		_, edits := s.snapshot()
		return len(edits) > 0 && edits[len(edits)-1] == "two"
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	_, edits := s.snapshot()
	for _, e := range edits {
		assert.Equal(t, "two", e, "unchanged content is not resent")
	}
}

func TestFileWatcherErrors(t *testing.T) {
	w, err := NewFileWatcher(filepath.Join(t.TempDir(), "missing.md"), &bytes.Buffer{})
	require.NoError(t, err)
	w.SetSession(&syncSession{})
	assert.Error(t, w.Run(context.Background()))

	path := filepath.Join(t.TempDir(), "doc.md")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	w, err = NewFileWatcher(path, &bytes.Buffer{})
	require.NoError(t, err)
	assert.ErrorContains(t, w.Run(context.Background()), "session not ready")
}

func TestFileWatcherJumpPrintsLocation(t *testing.T) {
	var out bytes.Buffer
	w, err := NewFileWatcher("/docs/readme.md", &out)
	require.NoError(t, err)

	require.NoError(t, w.JumpToLine(12, true, true))
	assert.Equal(t, "/docs/readme.md:12\n", out.String())
}
