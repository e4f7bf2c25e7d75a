package scrollsync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-live-preview/internal/contracts"
	"go-live-preview/internal/store"
	"go-live-preview/internal/viewport"
)

func fixture() (store.Store, viewport.Layout) {
	s := store.MergePatch(store.Empty(), []contracts.PagePatch{
		{
			PageIndex: 0,
			PageSize:  contracts.PageSize{W: 72, H: 720},
			Blocks: []contracts.BlockPatch{
				{BlockID: "intro", BBox: &contracts.BBox{Y: 6}, Span: &contracts.SpanRange{LineStart: 1, LineEnd: 5}},
				{BlockID: "body", BBox: &contracts.BBox{Y: 360}, Span: &contracts.SpanRange{LineStart: 6, LineEnd: 10}},
				{BlockID: "misc"},
			},
		},
		{
			PageIndex: 1,
			PageSize:  contracts.PageSize{W: 72, H: 720},
			Blocks: []contracts.BlockPatch{
				{BlockID: "tail", BBox: &contracts.BBox{Y: 72}, Span: &contracts.SpanRange{LineStart: 12, LineEnd: 20}},
			},
		},
	}, nil)
	return s, viewport.NewLayout(s.Pages(), 1)
}

func TestSelectionScrollsOnBlockChange(t *testing.T) {
	s, layout := fixture()
	sync := New()
	assert.Equal(t, 1, sync.activeLine)

	cmd, ok := sync.SelectionChanged(s, layout, 7)
	require.True(t, ok)
	assert.Equal(t, "body", cmd.BlockID)
	assert.InDelta(t, 360*viewport.PointToPixel-ScrollMargin, cmd.Top, 1e-9)
	assert.True(t, cmd.Smooth)

	_, ok = sync.SelectionChanged(s, layout, 9)
	assert.False(t, ok, "same block, no scroll")

	cmd, ok = sync.SelectionChanged(s, layout, 12)
	require.True(t, ok)
	assert.Equal(t, "tail", cmd.BlockID)
	assert.Equal(t, 1, cmd.PageIndex)
	assert.InDelta(t, 960+viewport.PageGap+96-ScrollMargin, cmd.Top, 1e-9)

	page, ok := sync.ActivePage()
	require.True(t, ok)
	assert.Equal(t, 1, page)
}

func TestSelectionClampsAtTop(t *testing.T) {
	s, layout := fixture()
	cmd, ok := New().SelectionChanged(s, layout, 2)
	require.True(t, ok)
	assert.Equal(t, 0.0, cmd.Top)
}

func TestSelectionWithoutBlock(t *testing.T) {
	s, layout := fixture()
	sync := New()

	_, ok := sync.SelectionChanged(s, layout, 11)
	assert.False(t, ok)
	_, ok = sync.ActiveBlock()
	assert.False(t, ok)

	_, ok = sync.SelectionChanged(s, layout, 8)
	assert.True(t, ok, "returning to a block scrolls again")
}

func TestStoreChangedKeepsIdentity(t *testing.T) {
	s, layout := fixture()
	sync := New()
	_, ok := sync.SelectionChanged(s, layout, 3)
	require.True(t, ok)

	s = store.MergePatch(s, []contracts.PagePatch{{
		PageIndex: 0,
		PageSize:  contracts.PageSize{W: 72, H: 720},
		Blocks: []contracts.BlockPatch{
			{BlockID: "intro", SVG: "<svg>new</svg>", BBox: &contracts.BBox{Y: 6}, Span: &contracts.SpanRange{LineStart: 1, LineEnd: 5}},
		},
	}}, nil)
	_, ok = sync.StoreChanged(s, viewport.NewLayout(s.Pages(), 1))
	assert.False(t, ok, "rewritten block with same id is the same target")

	s = store.MergePatch(s, []contracts.PagePatch{{
		PageIndex:     0,
		PageSize:      contracts.PageSize{W: 72, H: 720},
		Blocks:        []contracts.BlockPatch{{BlockID: "intro2", BBox: &contracts.BBox{Y: 6}, Span: &contracts.SpanRange{LineStart: 1, LineEnd: 4}}},
		RemovedBlocks: []string{"intro"},
	}}, nil)
	cmd, ok := sync.StoreChanged(s, viewport.NewLayout(s.Pages(), 1))
	require.True(t, ok)
	assert.Equal(t, "intro2", cmd.BlockID)
}

func TestBlockClicked(t *testing.T) {
	s := store.MergePatch(store.Empty(), []contracts.PagePatch{{
		PageIndex: 0,
		Blocks: []contracts.BlockPatch{
			{BlockID: "target", Span: &contracts.SpanRange{LineStart: 12, LineEnd: 15}},
			{BlockID: "synthetic"},
		},
	}}, nil)
	sync := New()

	cmd, ok := sync.BlockClicked(s, 0, "target", true)
	require.True(t, ok)
	assert.Equal(t, JumpCommand{Line: 12, Center: true, Focus: true}, cmd)

	_, ok = sync.BlockClicked(s, 0, "target", false)
	assert.False(t, ok, "drag must not jump")

	_, ok = sync.BlockClicked(s, 0, "synthetic", true)
	assert.False(t, ok)

	_, ok = sync.BlockClicked(s, 3, "target", true)
	assert.False(t, ok)
}

func TestClickScenarioWithGesture(t *testing.T) {
	s := store.MergePatch(store.Empty(), []contracts.PagePatch{{
		PageIndex: 0,
		Blocks:    []contracts.BlockPatch{{BlockID: "b", Span: &contracts.SpanRange{LineStart: 12, LineEnd: 12}}},
	}}, nil)
	sync := New()

	var g Gesture
	g.Down(100, 100)
	g.Move(101, 102)
	cmd, ok := sync.BlockClicked(s, 0, "b", g.Up())
	require.True(t, ok)
	assert.Equal(t, 12, cmd.Line)

	g.Down(100, 100)
	g.Move(100, 104)
	_, ok = sync.BlockClicked(s, 0, "b", g.Up())
	assert.False(t, ok)
}
