package host

import (
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	calls []string
}

func (s *fakeSession) Load(content, path string) { s.calls = append(s.calls, "load "+path+": "+content) }
func (s *fakeSession) Edit(content string)       { s.calls = append(s.calls, "edit: "+content) }
func (s *fakeSession) Cursor(line int)           { s.calls = append(s.calls, "cursor "+strconv.Itoa(line)) }

type fakeEditor struct {
	content string
	path    string
	line    int
	err     error

	jumps  []int
	echoes []string
}

func (e *fakeEditor) Buffer() ([]byte, string, error) {
	if e.err != nil {
		return nil, "", e.err
	}
	return []byte(e.content), e.path, nil
}

func (e *fakeEditor) CursorLine() (int, error) { return e.line, e.err }

func (e *fakeEditor) SetCursorLine(line int, center bool) error {
	if !center {
		return errors.New("expected centering")
	}
	e.jumps = append(e.jumps, line)
	e.line = line
	return nil
}

func (e *fakeEditor) Echo(msg string) error {
	e.echoes = append(e.echoes, msg)
	return nil
}

func setup() (*Commands, *fakeSession, *fakeEditor) {
	c := NewCommands("http://127.0.0.1:14785")
	s := &fakeSession{}
	c.SetSession(s)
	return c, s, &fakeEditor{content: "# a", path: "/doc/a.md", line: 1}
}

func TestCommandsInactiveUntilStart(t *testing.T) {
	c, s, ed := setup()
	require.NoError(t, c.update(ed))
	require.NoError(t, c.cursor(ed))
	require.NoError(t, c.JumpToLine(3, true, true))
	assert.Empty(t, s.calls)
	assert.Empty(t, ed.jumps)
}

func TestCommandsStartLoadsBuffer(t *testing.T) {
	c, s, ed := setup()
	require.NoError(t, c.start(ed))

	assert.Equal(t, []string{"load /doc/a.md: # a", "cursor 1"}, s.calls)
	require.Len(t, ed.echoes, 1)
	assert.Contains(t, ed.echoes[0], "http://127.0.0.1:14785")
}

func TestCommandsUpdateAndCursor(t *testing.T) {
	c, s, ed := setup()
	require.NoError(t, c.start(ed))
	s.calls = nil

	ed.content = "# ab"
	require.NoError(t, c.update(ed))
	require.NoError(t, c.cursor(ed))
	ed.line = 4
	require.NoError(t, c.cursor(ed))

	assert.Equal(t, []string{"edit: # ab", "cursor 4"}, s.calls, "unchanged cursor is not republished")
}

func TestCommandsBufferSwitchReloads(t *testing.T) {
	c, s, ed := setup()
	require.NoError(t, c.start(ed))
	s.calls = nil

	ed.path = "/doc/b.md"
	ed.content = "b"
	require.NoError(t, c.update(ed))
	assert.Equal(t, []string{"load /doc/b.md: b", "cursor 1"}, s.calls)
}

func TestJumpToLineDoesNotEcho(t *testing.T) {
	c, s, ed := setup()
	require.NoError(t, c.start(ed))
	s.calls = nil

	require.NoError(t, c.JumpToLine(7, true, true))
	assert.Equal(t, []int{7}, ed.jumps)

	// The cursor autocmd fires after the jump; the line is already known.
	require.NoError(t, c.cursor(ed))
	assert.Empty(t, s.calls)
}

func TestCommandsErrors(t *testing.T) {
	c := NewCommands("x")
	assert.Error(t, c.start(&fakeEditor{}), "no session")

	c, _, ed := setup()
	ed.err = errors.New("rpc closed")
	assert.ErrorContains(t, c.start(ed), "rpc closed")
}
