package backend

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-live-preview/internal/contracts"
	"go-live-preview/internal/render"
)

func compile(t *testing.T, c *Compiler, rev uint64, content string, full bool) contracts.PatchMessage {
	t.Helper()
	msg, err := c.Compile(context.Background(), contracts.CompileRequest{
		Type:     contracts.MessageTypeCompile,
		Content:  content,
		Revision: rev,
		Full:     full,
	})
	require.NoError(t, err)
	return msg
}

func TestCompilerIncremental(t *testing.T) {
	c := NewCompiler(render.NewRenderer())

	first := compile(t, c, 1, "# Title\n\nfirst\n\nsecond", true)
	assert.Equal(t, contracts.MessageTypePatch, first.Type)
	assert.Equal(t, uint64(1), first.Revision)
	require.NotNil(t, first.TotalPages)
	assert.Equal(t, 1, *first.TotalPages)
	require.Len(t, first.Pages, 1)
	require.Len(t, first.Pages[0].Blocks, 3)

	same := compile(t, c, 2, "# Title\n\nfirst\n\nsecond", false)
	assert.Empty(t, same.Pages)
	require.NotNil(t, same.TotalPages)

	edited := compile(t, c, 3, "# Title\n\nfirst\n\nsecond!", false)
	require.Len(t, edited.Pages, 1)
	require.Len(t, edited.Pages[0].Blocks, 1)
	assert.Contains(t, edited.Pages[0].Blocks[0].SVG, "second!")
	require.Len(t, edited.Pages[0].RemovedBlocks, 1)
	assert.Equal(t, first.Pages[0].Blocks[2].BlockID, edited.Pages[0].RemovedBlocks[0])
}

func TestCompilerFullRequestResendsEverything(t *testing.T) {
	c := NewCompiler(render.NewRenderer())
	compile(t, c, 1, "one\n\ntwo", true)

	again := compile(t, c, 2, "one\n\ntwo", true)
	require.Len(t, again.Pages, 1)
	assert.Len(t, again.Pages[0].Blocks, 2)
	assert.Empty(t, again.Pages[0].RemovedBlocks)
}

func TestCompilerErrors(t *testing.T) {
	c := NewCompiler(render.NewRenderer())

	_, err := c.Compile(context.Background(), contracts.CompileRequest{
		Revision: 4,
		Content:  strings.Repeat("x", MaxDocumentSize+1),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooLarge)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Compile(ctx, contracts.CompileRequest{Revision: 5, Content: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	// Failures do not disturb the diff state.
	msg := compile(t, c, 6, "x", false)
	require.Len(t, msg.Pages, 1)
	assert.Len(t, msg.Pages[0].Blocks, 1)
}
