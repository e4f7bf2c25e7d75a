// Package store holds the rendered page/block state of the preview and the
// patch merge that keeps it current.
//
// A Store is an immutable value. MergePatch builds a new Store and shares
// every page and block it did not touch with the previous one, so callers may
// keep old snapshots around and compare block identity across merges.
package store

import (
	"sort"

	"github.com/elliotchance/orderedmap"

	"go-live-preview/internal/contracts"
)

// Span is an inclusive, 1-based source line range.
type Span struct {
	LineStart int
	LineEnd   int
}

// Valid reports whether the span is 1-based and not inverted.
func (s Span) Valid() bool {
	return s.LineStart >= 1 && s.LineStart <= s.LineEnd
}

// Contains reports whether line falls inside the span, bounds included.
func (s Span) Contains(line int) bool {
	return s.LineStart <= line && line <= s.LineEnd
}

// BBox is a block rectangle in point units relative to the page origin.
type BBox struct {
	X, Y, W, H float64
}

// Size is a page extent in point units.
type Size struct {
	W, H float64
}

// Block is the unit of incremental update. BBox and Span are nil when the
// backend did not report them.
type Block struct {
	ID   string
	Hash uint64
	SVG  string
	BBox *BBox
	Span *Span
}

// LineStart returns the first source line of the block.
func (b *Block) LineStart() (int, bool) {
	if b == nil || b.Span == nil {
		return 0, false
	}
	return b.Span.LineStart, true
}

// BlockFromWire converts a patch block. Spans that are not 1-based or are
// inverted are dropped.
func BlockFromWire(bp contracts.BlockPatch) *Block {
	b := &Block{
		ID:   bp.BlockID,
		Hash: bp.Hash,
		SVG:  bp.SVG,
	}
	if bp.BBox != nil {
		b.BBox = &BBox{X: bp.BBox.X, Y: bp.BBox.Y, W: bp.BBox.W, H: bp.BBox.H}
	}
	if bp.Span != nil {
		span := Span{LineStart: bp.Span.LineStart, LineEnd: bp.Span.LineEnd}
		if span.Valid() {
			b.Span = &span
		}
	}
	return b
}

// Page is one rendered page. Its blocks are keyed by ID and kept in the order
// they were first inserted.
type Page struct {
	Index int
	Hash  uint64
	Size  Size

	blocks *orderedmap.OrderedMap
}

// Len returns the number of blocks on the page.
func (p *Page) Len() int {
	if p == nil || p.blocks == nil {
		return 0
	}
	return p.blocks.Len()
}

// Block looks up a block by ID.
func (p *Page) Block(id string) (*Block, bool) {
	if p == nil || p.blocks == nil {
		return nil, false
	}
	v, ok := p.blocks.Get(id)
	if !ok {
		return nil, false
	}
	return v.(*Block), true
}

// Blocks returns the page's blocks in insertion order.
func (p *Page) Blocks() []*Block {
	out := make([]*Block, 0, p.Len())
	p.each(func(b *Block) bool {
		out = append(out, b)
		return true
	})
	return out
}

func (p *Page) each(fn func(*Block) bool) {
	if p == nil || p.blocks == nil {
		return
	}
	for el := p.blocks.Front(); el != nil; el = el.Next() {
		if !fn(el.Value.(*Block)) {
			return
		}
	}
}

// Store is the collection of all current pages. The zero value is an empty
// store.
type Store struct {
	pages map[int]*Page
}

// Empty returns a store with no pages.
func Empty() Store {
	return Store{}
}

// Len returns the number of pages.
func (s Store) Len() int {
	return len(s.pages)
}

// Page looks up a page by index.
func (s Store) Page(index int) (*Page, bool) {
	p, ok := s.pages[index]
	return p, ok
}

// Block looks up a block on a page.
func (s Store) Block(pageIndex int, id string) (*Block, bool) {
	p, ok := s.pages[pageIndex]
	if !ok {
		return nil, false
	}
	return p.Block(id)
}

// Pages returns the pages sorted by ascending index.
func (s Store) Pages() []*Page {
	out := make([]*Page, 0, len(s.pages))
	for _, p := range s.pages {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}
