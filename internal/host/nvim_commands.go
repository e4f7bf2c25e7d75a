// Package host wires the live preview into Neovim as a remote plugin.
package host

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/neovim/go-client/nvim"
	"github.com/neovim/go-client/nvim/plugin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"go-live-preview/internal/log"
)

// Session is the part of the live preview session the editor feeds.
type Session interface {
	Load(content, path string)
	Edit(content string)
	Cursor(line int)
}

// editor is the Neovim API surface the commands use.
type editor interface {
	Buffer() (content []byte, path string, err error)
	CursorLine() (int, error)
	SetCursorLine(line int, center bool) error
	Echo(msg string) error
}

// Commands is a state container for Neovim command handlers.
// It tracks the active buffer and feeds it to the session.
type Commands struct {
	previewURL string
	logger     *zap.Logger

	mu             sync.Mutex
	session        Session
	ed             editor
	active         bool
	path           string
	lastCursorLine int
}

func NewCommands(previewURL string) *Commands {
	return &Commands{previewURL: previewURL, logger: log.Get().Named("nvim")}
}

// SetSession connects the session. It must be called before Neovim can run
// any of the commands.
func (c *Commands) SetSession(s Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s
}

// Register registers Neovim command/function handlers.
func Register(p *plugin.Plugin, commands *Commands) error {
	p.Handle("poll", func() (string, error) {
		return "ok", nil
	})

	p.HandleCommand(&plugin.CommandOptions{
		Name: "GoLivePreviewStart",
	}, func(v *nvim.Nvim) error {
		return commands.start(nvimEditor{v})
	})

	p.HandleFunction(&plugin.FunctionOptions{
		Name: "GoLivePreviewInternalUpdate",
	}, func(v *nvim.Nvim) error {
		return commands.update(nvimEditor{v})
	})

	p.HandleFunction(&plugin.FunctionOptions{
		Name: "GoLivePreviewInternalCursor",
	}, func(v *nvim.Nvim) error {
		return commands.cursor(nvimEditor{v})
	})

	return nil
}

func (c *Commands) start(ed editor) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return errors.New("preview session not ready")
	}

	content, path, err := ed.Buffer()
	if err != nil {
		return err
	}
	c.active = true
	c.ed = ed
	c.path = path
	c.lastCursorLine = 0
	c.session.Load(string(content), path)

	if err := c.publishCursor(ed); err != nil {
		return err
	}
	return ed.Echo(fmt.Sprintf("[go-live-preview] preview: %s", c.previewURL))
}

func (c *Commands) update(ed editor) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return nil
	}

	content, path, err := ed.Buffer()
	if err != nil {
		return err
	}
	if path != c.path {
		c.path = path
		c.lastCursorLine = 0
		c.session.Load(string(content), path)
		return c.publishCursor(ed)
	}
	c.session.Edit(string(content))
	return nil
}

func (c *Commands) cursor(ed editor) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return nil
	}
	return c.publishCursor(ed)
}

// publishCursor must be called with c.mu held.
func (c *Commands) publishCursor(ed editor) error {
	line, err := ed.CursorLine()
	if err != nil {
		return err
	}
	if line == c.lastCursorLine {
		return nil
	}
	c.lastCursorLine = line
	c.session.Cursor(line)
	return nil
}

// JumpToLine moves the cursor of the current window to line, optionally
// centering it. Neovim keeps focus on the editor, so focus needs no action.
func (c *Commands) JumpToLine(line int, center, _ bool) error {
	c.mu.Lock()
	ed := c.ed
	active := c.active
	c.mu.Unlock()
	if !active || ed == nil {
		return nil
	}

	if err := ed.SetCursorLine(line, center); err != nil {
		return errors.WithMessagef(err, "jump to line %d", line)
	}

	c.mu.Lock()
	c.lastCursorLine = line
	c.mu.Unlock()
	c.logger.Debug("jumped to line", zap.Int("line", line))
	return nil
}

type nvimEditor struct {
	v *nvim.Nvim
}

func (e nvimEditor) Buffer() ([]byte, string, error) {
	buf, err := e.v.CurrentBuffer()
	if err != nil {
		return nil, "", errors.Wrap(err, "current buffer")
	}
	lines, err := e.v.BufferLines(buf, 0, -1, true)
	if err != nil {
		return nil, "", errors.Wrap(err, "buffer lines")
	}
	path, err := e.v.BufferName(buf)
	if err != nil {
		return nil, "", errors.Wrap(err, "buffer name")
	}
	return bytes.Join(lines, []byte("\n")), path, nil
}

func (e nvimEditor) CursorLine() (int, error) {
	var line int
	if err := e.v.Eval(`line(".")`, &line); err != nil {
		return 0, errors.Wrap(err, "cursor line")
	}
	return line, nil
}

func (e nvimEditor) SetCursorLine(line int, center bool) error {
	win, err := e.v.CurrentWindow()
	if err != nil {
		return err
	}
	buf, err := e.v.WindowBuffer(win)
	if err != nil {
		return err
	}
	count, err := e.v.BufferLineCount(buf)
	if err != nil {
		return err
	}
	line = max(1, min(line, count))

	if err := e.v.SetWindowCursor(win, [2]int{line, 0}); err != nil {
		return err
	}
	if center {
		return e.v.Command("normal! zz")
	}
	return nil
}

func (e nvimEditor) Echo(msg string) error {
	return e.v.Command(fmt.Sprintf("echom %q", msg))
}
