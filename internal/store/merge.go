package store

import (
	"github.com/elliotchance/orderedmap"

	"go-live-preview/internal/contracts"
)

// MergePatch folds a batch of page patches into current and returns the
// resulting store. current is left untouched.
//
// When totalPages is set, pages at or past it are dropped and patches naming
// them are ignored. Blocks carried by a patch replace stored blocks with the
// same ID, then every ID in removed_blocks is deleted. Patches for the same
// page apply in order. A patch for an unknown page creates it.
func MergePatch(current Store, batch []contracts.PagePatch, totalPages *int) Store {
	next := make(map[int]*Page, len(current.pages)+len(batch))
	for index, page := range current.pages {
		if totalPages != nil && index >= *totalPages {
			continue
		}
		next[index] = page
	}

	for _, patch := range batch {
		if patch.PageIndex < 0 {
			continue
		}
		if totalPages != nil && patch.PageIndex >= *totalPages {
			continue
		}

		var blocks *orderedmap.OrderedMap
		if existing, ok := next[patch.PageIndex]; ok && existing.blocks != nil {
			blocks = existing.blocks.Copy()
		} else {
			blocks = orderedmap.NewOrderedMap()
		}

		for _, bp := range patch.Blocks {
			blocks.Set(bp.BlockID, BlockFromWire(bp))
		}
		for _, id := range patch.RemovedBlocks {
			blocks.Delete(id)
		}

		next[patch.PageIndex] = &Page{
			Index:  patch.PageIndex,
			Hash:   patch.PageHash,
			Size:   Size{W: patch.PageSize.W, H: patch.PageSize.H},
			blocks: blocks,
		}
	}

	return Store{pages: next}
}
