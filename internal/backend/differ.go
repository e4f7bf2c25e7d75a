// Package backend is a small reference compile backend. It renders markdown
// into paged blocks and answers compile requests with incremental patches,
// either in process (through the bridge transport) or over a websocket.
package backend

import (
	"encoding/binary"
	"hash/fnv"

	"go-live-preview/internal/contracts"
	"go-live-preview/internal/render"
)

// Differ remembers the block hashes last sent for every page and turns a new
// rendering into the patches a receiver needs to catch up.
//
// A Differ is not safe for concurrent use.
type Differ struct {
	pages []pageState
}

type pageState struct {
	hash   uint64
	blocks map[string]uint64
	order  []string
}

func NewDiffer() *Differ {
	return &Differ{}
}

// Reset forgets everything, so the next Diff sends every block.
func (d *Differ) Reset() {
	d.pages = nil
}

// Diff returns patches for pages whose hash changed, holding only the blocks
// that are new or changed plus the IDs of blocks that went away, and the new
// page count.
func (d *Differ) Diff(doc render.Document) ([]contracts.PagePatch, int) {
	var patches []contracts.PagePatch
	next := make([]pageState, len(doc.Pages))

	for i, page := range doc.Pages {
		state := pageState{
			blocks: make(map[string]uint64, len(page.Blocks)),
			order:  make([]string, 0, len(page.Blocks)),
		}
		for _, b := range page.Blocks {
			state.blocks[b.ID] = b.Hash
			state.order = append(state.order, b.ID)
		}
		state.hash = pageHash(page.Blocks)
		next[i] = state

		var prev *pageState
		if i < len(d.pages) {
			prev = &d.pages[i]
			if prev.hash == state.hash {
				continue
			}
		}

		patch := contracts.PagePatch{
			PageIndex: page.Index,
			PageHash:  state.hash,
			PageSize:  doc.Size,
			Blocks:    []contracts.BlockPatch{},
		}
		for _, b := range page.Blocks {
			if prev != nil {
				if h, ok := prev.blocks[b.ID]; ok && h == b.Hash {
					continue
				}
			}
			patch.Blocks = append(patch.Blocks, blockPatch(b))
		}
		if prev != nil {
			for _, id := range prev.order {
				if _, ok := state.blocks[id]; !ok {
					patch.RemovedBlocks = append(patch.RemovedBlocks, id)
				}
			}
		}
		patches = append(patches, patch)
	}

	d.pages = next
	return patches, len(doc.Pages)
}

func blockPatch(b render.Block) contracts.BlockPatch {
	bbox := b.BBox
	bp := contracts.BlockPatch{
		BlockID: b.ID,
		Hash:    b.Hash,
		SVG:     b.SVG,
		BBox:    &bbox,
	}
	if b.Span != nil {
		span := *b.Span
		bp.Span = &span
	}
	return bp
}

// pageHash is FNV-1a over the (id, hash) pairs in page order. An empty page
// hashes to the FNV offset basis, never to zero.
func pageHash(blocks []render.Block) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	for _, b := range blocks {
		_, _ = h.Write([]byte(b.ID))
		_, _ = h.Write([]byte{0})
		binary.LittleEndian.PutUint64(buf[:], b.Hash)
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}
