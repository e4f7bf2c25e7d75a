package backend

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"go-live-preview/internal/contracts"
	"go-live-preview/internal/log"
	"go-live-preview/internal/render"
)

// MaxDocumentSize bounds the content of a single compile request.
const MaxDocumentSize = 8 << 20

// ErrTooLarge is returned for documents over MaxDocumentSize.
var ErrTooLarge = errors.New("document too large")

// Compiler renders documents and diffs each result against the previous one
// it produced. One Compiler serves one receiver.
type Compiler struct {
	renderer *render.Renderer
	logger   *zap.Logger

	mu     sync.Mutex
	differ *Differ
}

func NewCompiler(renderer *render.Renderer) *Compiler {
	return &Compiler{
		renderer: renderer,
		logger:   log.Get().Named("compiler"),
		differ:   NewDiffer(),
	}
}

// Compile renders req.Content and returns the patch against the last
// successful compile. Failed compiles leave the diff state alone.
func (c *Compiler) Compile(ctx context.Context, req contracts.CompileRequest) (contracts.PatchMessage, error) {
	if err := ctx.Err(); err != nil {
		return contracts.PatchMessage{}, errors.WithMessagef(err, "compile revision %d", req.Revision)
	}
	if len(req.Content) > MaxDocumentSize {
		return contracts.PatchMessage{}, errors.Wrapf(ErrTooLarge, "%d bytes", len(req.Content))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if req.Full {
		c.differ.Reset()
	}

	doc, err := c.renderer.Render([]byte(req.Content), req.FilePath)
	if err != nil {
		return contracts.PatchMessage{}, errors.WithMessagef(err, "compile revision %d", req.Revision)
	}

	pages, total := c.differ.Diff(doc)
	c.logger.Debug("compiled",
		zap.Uint64("revision", req.Revision),
		zap.Int("pages", total),
		zap.Int("changed_pages", len(pages)))

	return contracts.PatchMessage{
		Type:       contracts.MessageTypePatch,
		Revision:   req.Revision,
		Pages:      pages,
		TotalPages: &total,
	}, nil
}
