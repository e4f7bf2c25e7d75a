package contracts

const (
	// MessageTypeCompile asks the backend to compile a full document.
	MessageTypeCompile = "compile"
	// MessageTypeReady is sent by the backend once a connection can accept compiles.
	MessageTypeReady = "ready"
	// MessageTypePatch carries incremental page updates for one revision.
	MessageTypePatch = "patch"
	// MessageTypeError reports a failed compile or an unreadable frame.
	MessageTypeError = "error"
)

// CompileRequest submits the full document text for one revision.
// Full asks the backend to forget what it sent before and answer with every
// block, as the receiver starts from an empty store.
type CompileRequest struct {
	Type     string `json:"type"`
	Content  string `json:"content"`
	Revision uint64 `json:"revision"`
	FilePath string `json:"file_path,omitempty"`
	Full     bool   `json:"full,omitempty"`
}

// ReadyMessage announces that the backend connection is usable.
type ReadyMessage struct {
	Type string `json:"type"`
}

// PatchMessage is the success event for a compile request.
// TotalPages, when set, authorizes the receiver to drop pages at or past it.
type PatchMessage struct {
	Type       string      `json:"type"`
	Revision   uint64      `json:"revision"`
	Pages      []PagePatch `json:"pages"`
	TotalPages *int        `json:"total_pages,omitempty"`
}

// ErrorMessage is the failure event for a compile request. Revision is nil
// when the backend could not tell which request failed.
type ErrorMessage struct {
	Type     string  `json:"type"`
	Revision *uint64 `json:"revision,omitempty"`
	Message  string  `json:"message"`
}

// PagePatch is a partial update for one page.
type PagePatch struct {
	PageIndex     int          `json:"page_index"`
	PageHash      uint64       `json:"page_hash"`
	PageSize      PageSize     `json:"page_size"`
	Blocks        []BlockPatch `json:"blocks"`
	RemovedBlocks []string     `json:"removed_blocks"`
}

// BlockPatch is a full block record carried by a patch.
type BlockPatch struct {
	BlockID string     `json:"block_id"`
	Hash    uint64     `json:"hash"`
	SVG     string     `json:"svg"`
	BBox    *BBox      `json:"bbox"`
	Span    *SpanRange `json:"span"`
}

// BBox is a block rectangle in point units relative to the page origin.
type BBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// PageSize is a page extent in point units.
type PageSize struct {
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// SpanRange is an inclusive, 1-based source line range.
type SpanRange struct {
	LineStart int `json:"line_start"`
	LineEnd   int `json:"line_end"`
}

// Uint64Ptr is a small helper for building ErrorMessage values.
func Uint64Ptr(v uint64) *uint64 {
	return &v
}
