package contracts

const (
	// MessageTypeView pushes the materialized preview state to the browser.
	MessageTypeView = "view"
	// MessageTypeScrollTo asks the browser to scroll the preview container.
	MessageTypeScrollTo = "scroll_to"

	// MessageTypeViewport reports the preview container scroll offset and size.
	MessageTypeViewport = "viewport"
	// MessageTypePointer reports a pointer gesture phase on the preview.
	MessageTypePointer = "pointer"
	// MessageTypeBlockClick reports a pointer release over a rendered block.
	MessageTypeBlockClick = "block_click"
	// MessageTypeZoom changes the preview zoom.
	MessageTypeZoom = "zoom"
)

// Pointer gesture phases.
const (
	PointerDown = "down"
	PointerMove = "move"
	PointerUp   = "up"
)

// Zoom actions.
const (
	ZoomIn    = "in"
	ZoomOut   = "out"
	ZoomReset = "reset"
	ZoomFit   = "fit"
	ZoomWheel = "wheel"
)

// IncomingMessage is the minimal envelope used to route browser messages.
type IncomingMessage struct {
	Type string `json:"type"`
}

// ViewportMessage is sent on scroll and on container resize.
type ViewportMessage struct {
	Type           string  `json:"type"`
	ScrollTop      float64 `json:"scroll_top"`
	ViewHeight     float64 `json:"view_height"`
	ContainerWidth float64 `json:"container_width"`
}

// PointerMessage carries one phase of a pointer gesture in client pixels.
type PointerMessage struct {
	Type  string  `json:"type"`
	Phase string  `json:"phase"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// BlockClickMessage names the block under the pointer when it was released.
type BlockClickMessage struct {
	Type    string `json:"type"`
	Page    int    `json:"page"`
	BlockID string `json:"block_id"`
}

// ZoomMessage changes the zoom. Delta is only read for wheel zoom, where its
// sign follows the wheel's deltaY.
type ZoomMessage struct {
	Type   string  `json:"type"`
	Action string  `json:"action"`
	Delta  float64 `json:"delta"`
}

// ViewMessage carries the materialized preview and revision metadata to the browser.
type ViewMessage struct {
	Type        string      `json:"type"`
	Session     string      `json:"session"`
	Rev         uint64      `json:"rev"`
	Filename    string      `json:"filename"`
	Pages       []PageFrame `json:"pages"`
	TotalHeight float64     `json:"total_height"`
	Scale       float64     `json:"scale"`
	ZoomPercent int         `json:"zoom_percent"`
	ActiveBlock string      `json:"active_block,omitempty"`
	Compiling   bool        `json:"compiling"`
	Error       string      `json:"error,omitempty"`
}

// PageFrame is one page of the view. Placeholder pages carry no blocks but
// keep their full height.
type PageFrame struct {
	Index       int          `json:"index"`
	Top         float64      `json:"top"`
	Width       float64      `json:"width"`
	Height      float64      `json:"height"`
	Placeholder bool         `json:"placeholder"`
	Blocks      []BlockFrame `json:"blocks,omitempty"`
}

// BlockFrame is an absolutely positioned block in page pixel space.
// Cached blocks carry no SVG; the browser keeps the node it already has.
type BlockFrame struct {
	ID     string     `json:"id"`
	SVG    string     `json:"svg,omitempty"`
	Cached bool       `json:"cached,omitempty"`
	Style  *BoxStyle  `json:"style,omitempty"`
	Span   *SpanRange `json:"span,omitempty"`
}

// BoxStyle holds left/top/width/height in pixels.
type BoxStyle struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ScrollToMessage carries a preview scroll target.
type ScrollToMessage struct {
	Type   string  `json:"type"`
	Top    float64 `json:"top"`
	Smooth bool    `json:"smooth"`
}
