// Package viewport lays pages out vertically in pixel space and decides
// which of them need their blocks materialized.
package viewport

import (
	"go-live-preview/internal/store"
)

const (
	// PointToPixel converts document points to CSS pixels.
	PointToPixel = 96.0 / 72.0
	// PageGap is the vertical gap between pages in pixels.
	PageGap = 24.0
	// Buffer is how far outside the viewport pages are still materialized.
	Buffer = 600.0
	// Padding is the horizontal padding of the preview container.
	Padding = 32.0
)

// Slot is the vertical extent of one page in scaled pixels.
type Slot struct {
	Index  int
	Top    float64
	Width  float64
	Height float64
}

// Bottom returns Top+Height.
func (s Slot) Bottom() float64 {
	return s.Top + s.Height
}

// Layout stacks pages by ascending index with PageGap between them.
type Layout struct {
	Scale float64
	slots []Slot
	byIdx map[int]int
}

// NewLayout computes the layout of pages at scale. pages must be sorted by
// index, as returned by store.Store.Pages.
func NewLayout(pages []*store.Page, scale float64) Layout {
	l := Layout{
		Scale: scale,
		slots: make([]Slot, 0, len(pages)),
		byIdx: make(map[int]int, len(pages)),
	}
	offset := 0.0
	for i, p := range pages {
		if i > 0 {
			offset += PageGap
		}
		h := p.Size.H * PointToPixel * scale
		l.byIdx[p.Index] = len(l.slots)
		l.slots = append(l.slots, Slot{
			Index:  p.Index,
			Top:    offset,
			Width:  p.Size.W * PointToPixel * scale,
			Height: h,
		})
		offset += h
	}
	return l
}

// Slots returns the page slots in layout order.
func (l Layout) Slots() []Slot {
	return l.slots
}

// Slot returns the slot of a page.
func (l Layout) Slot(pageIndex int) (Slot, bool) {
	i, ok := l.byIdx[pageIndex]
	if !ok {
		return Slot{}, false
	}
	return l.slots[i], true
}

// Total is the scrollable height: every page height plus the gaps between
// pages. It does not depend on which pages are culled.
func (l Layout) Total() float64 {
	if len(l.slots) == 0 {
		return 0
	}
	return l.slots[len(l.slots)-1].Bottom()
}

// Visible returns the pages intersecting
// [max(scrollTop-buffer, 0), scrollTop+viewHeight+buffer], plus forced when
// it is set. forced is the page holding the active block, so scrolling to it
// works even when it sits just past the buffer.
func (l Layout) Visible(scrollTop, viewHeight, buffer float64, forced *int) map[int]bool {
	visible := make(map[int]bool)
	start := scrollTop - buffer
	if start < 0 {
		start = 0
	}
	end := scrollTop + viewHeight + buffer

	for _, s := range l.slots {
		if s.Bottom() >= start && s.Top <= end {
			visible[s.Index] = true
		}
	}
	if forced != nil {
		if _, ok := l.byIdx[*forced]; ok {
			visible[*forced] = true
		}
	}
	return visible
}

// BlockTop returns the absolute pixel top of a block on a page, or the page
// top when the block has no bbox.
func (l Layout) BlockTop(pageIndex int, bbox *store.BBox) (float64, bool) {
	s, ok := l.Slot(pageIndex)
	if !ok {
		return 0, false
	}
	if bbox == nil {
		return s.Top, true
	}
	return s.Top + bbox.Y*PointToPixel*l.Scale, true
}

// Style is an absolute position in pixels.
type Style struct {
	Left, Top, Width, Height float64
}

// BlockStyle converts a point-unit bbox to page-relative pixels at scale.
func BlockStyle(bbox store.BBox, scale float64) Style {
	k := PointToPixel * scale
	return Style{
		Left:   bbox.X * k,
		Top:    bbox.Y * k,
		Width:  bbox.W * k,
		Height: bbox.H * k,
	}
}

// Frame is a page slot and whether only a placeholder is drawn for it.
type Frame struct {
	Slot
	Placeholder bool
}

// Frames returns every slot in order, marking pages outside visible as
// placeholders. Placeholders keep their full height.
func (l Layout) Frames(visible map[int]bool) []Frame {
	out := make([]Frame, 0, len(l.slots))
	for _, s := range l.slots {
		out = append(out, Frame{Slot: s, Placeholder: !visible[s.Index]})
	}
	return out
}
