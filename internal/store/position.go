package store

// Location is a block together with the page it lives on.
type Location struct {
	Block     *Block
	PageIndex int
}

// FindBlockForLine returns the first block whose span contains line.
//
// Pages are scanned by ascending index and blocks in insertion order, so if
// the backend ever reports overlapping spans the earliest block wins.
// Blocks without a span never match.
func FindBlockForLine(s Store, line int) (Location, bool) {
	for _, page := range s.Pages() {
		var found *Block
		page.each(func(b *Block) bool {
			if b.Span != nil && b.Span.Contains(line) {
				found = b
				return false
			}
			return true
		})
		if found != nil {
			return Location{Block: found, PageIndex: page.Index}, true
		}
	}
	return Location{}, false
}
