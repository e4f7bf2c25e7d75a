package host

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"go-live-preview/internal/log"
)

// FileWatcher is the editor surface for plain files: saves of the file are
// fed to the session, and jumps requested from the preview are printed as
// "path:line" so another tool can follow them.
type FileWatcher struct {
	path   string
	logger *zap.Logger

	mu      sync.Mutex
	session Session
	out     io.Writer
	last    []byte
}

// NewFileWatcher watches path. Jumps are written to out.
func NewFileWatcher(path string, out io.Writer) (*FileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", path)
	}
	return &FileWatcher{path: abs, out: out, logger: log.Get().Named("watch")}, nil
}

// Path returns the absolute path being watched.
func (w *FileWatcher) Path() string {
	return w.path
}

// SetSession connects the session. Call it before Run.
func (w *FileWatcher) SetSession(s Session) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.session = s
}

// Run loads the file and then follows changes until ctx is done. The parent
// directory is watched, as many editors save by replacing the file.
func (w *FileWatcher) Run(ctx context.Context) error {
	content, err := os.ReadFile(w.path)
	if err != nil {
		return errors.Wrap(err, "read watched file")
	}
	w.mu.Lock()
	if w.session == nil {
		w.mu.Unlock()
		return errors.New("preview session not ready")
	}
	w.last = content
	w.session.Load(string(content), w.path)
	w.mu.Unlock()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create watcher")
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return errors.Wrapf(err, "watch %s", filepath.Dir(w.path))
	}
	w.logger.Info("watching", zap.String("path", w.path))

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if w.handleEvent(ev) {
				w.reload()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))
		case <-ctx.Done():
			return nil
		}
	}
}

// handleEvent reports whether ev may have changed the watched file.
func (w *FileWatcher) handleEvent(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != w.path {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)
}

func (w *FileWatcher) reload() {
	content, err := os.ReadFile(w.path)
	if err != nil {
		// Mid-replace; the following Create event will retry.
		w.logger.Debug("reload failed", zap.Error(err))
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if string(content) == string(w.last) {
		return
	}
	w.last = content
	w.session.Edit(string(content))
}

// JumpToLine prints the jump target. A file has no cursor to center or
// focus.
func (w *FileWatcher) JumpToLine(line int, _, _ bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := fmt.Fprintf(w.out, "%s:%d\n", w.path, line)
	return errors.Wrap(err, "write jump")
}
