// Package scrollsync keeps the editor cursor and the preview scroll position
// pointing at the same source construct.
//
// Editor -> preview: a cursor move changes the active line, the active line
// maps to a block, and a change of active block yields a ScrollCommand.
// Preview -> editor: a click (not a drag) on a block yields a JumpCommand to
// the block's first source line.
package scrollsync

import (
	"go-live-preview/internal/store"
	"go-live-preview/internal/viewport"
)

// ScrollMargin is the space left above a block scrolled into view.
const ScrollMargin = 16.0

// ScrollCommand asks the preview to scroll so Top is at the top of the
// viewport.
type ScrollCommand struct {
	PageIndex int
	BlockID   string
	Top       float64
	Smooth    bool
}

// JumpCommand asks the editor to move its cursor to Line, center it and take
// focus.
type JumpCommand struct {
	Line   int
	Center bool
	Focus  bool
}

type Synchronizer struct {
	activeLine int

	hasActive  bool
	activePage int
	activeID   string
}

// New returns a synchronizer with the cursor on line 1.
func New() *Synchronizer {
	return &Synchronizer{activeLine: 1}
}

// ActivePage returns the page holding the active block, if any.
func (s *Synchronizer) ActivePage() (int, bool) {
	return s.activePage, s.hasActive
}

// ActiveBlock returns the ID of the active block, if any.
func (s *Synchronizer) ActiveBlock() (string, bool) {
	return s.activeID, s.hasActive
}

// SelectionChanged records the editor cursor line and returns a scroll
// command when the active block changed.
func (s *Synchronizer) SelectionChanged(st store.Store, layout viewport.Layout, line int) (ScrollCommand, bool) {
	if line < 1 {
		line = 1
	}
	s.activeLine = line
	return s.resolve(st, layout)
}

// StoreChanged re-resolves the active block after a merge.
func (s *Synchronizer) StoreChanged(st store.Store, layout viewport.Layout) (ScrollCommand, bool) {
	return s.resolve(st, layout)
}

// Reset returns to line 1 with no active block.
func (s *Synchronizer) Reset() {
	*s = Synchronizer{activeLine: 1}
}

func (s *Synchronizer) resolve(st store.Store, layout viewport.Layout) (ScrollCommand, bool) {
	loc, ok := store.FindBlockForLine(st, s.activeLine)
	if !ok {
		s.hasActive = false
		s.activeID = ""
		return ScrollCommand{}, false
	}

	if s.hasActive && s.activeID == loc.Block.ID && s.activePage == loc.PageIndex {
		return ScrollCommand{}, false
	}
	s.hasActive = true
	s.activeID = loc.Block.ID
	s.activePage = loc.PageIndex

	top, ok := layout.BlockTop(loc.PageIndex, loc.Block.BBox)
	if !ok {
		return ScrollCommand{}, false
	}
	top -= ScrollMargin
	if top < 0 {
		top = 0
	}
	return ScrollCommand{
		PageIndex: loc.PageIndex,
		BlockID:   loc.Block.ID,
		Top:       top,
		Smooth:    true,
	}, true
}

// BlockClicked maps a released pointer over a block back to a source line.
// Drags and blocks without a span produce no command.
func (s *Synchronizer) BlockClicked(st store.Store, pageIndex int, blockID string, isClick bool) (JumpCommand, bool) {
	if !isClick {
		return JumpCommand{}, false
	}
	b, ok := st.Block(pageIndex, blockID)
	if !ok {
		return JumpCommand{}, false
	}
	line, ok := b.LineStart()
	if !ok {
		return JumpCommand{}, false
	}
	return JumpCommand{Line: line, Center: true, Focus: true}, true
}
