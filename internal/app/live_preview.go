package app

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"go-live-preview/internal/assist"
	"go-live-preview/internal/contracts"
	"go-live-preview/internal/log"
	"go-live-preview/internal/scheduler"
	"go-live-preview/internal/scrollsync"
	"go-live-preview/internal/store"
	"go-live-preview/internal/transport"
	"go-live-preview/internal/viewport"
)

const submitTimeout = 5 * time.Second

// EditorSurface is the text editor the preview follows.
type EditorSurface interface {
	JumpToLine(line int, center, focus bool) error
}

// PreviewSurface draws the materialized pages.
type PreviewSurface interface {
	Render(view contracts.ViewMessage) error
	ScrollTo(msg contracts.ScrollToMessage) error
}

// Options tunes a LivePreview. Zero values fall back to defaults.
type Options struct {
	Delay  time.Duration
	Buffer float64
	Clock  scheduler.Clock
	Assist assist.Notifier
	Logger *zap.Logger
}

// Editor inputs share one channel so they are handled in the order the
// editor sent them.
type (
	loadRequest struct {
		content string
		path    string
	}
	editInput   string
	cursorInput int
)

type surfaceAttached struct{}

// LivePreview is a coordinator between the editor, the compile backend and
// the preview surface.
//
// All state lives on the goroutine running Run. The exported methods only
// enqueue events, so they are safe to call from editor and HTTP callbacks.
type LivePreview struct {
	transport transport.Transport
	editor    EditorSurface
	preview   PreviewSurface
	notifier  assist.Notifier
	logger    *zap.Logger
	buffer    float64

	inputs  chan any
	surface chan any
	fires   chan uint64
	done    chan struct{}
	ctx     context.Context

	// Loop-owned state.
	session        string
	path           string
	store          store.Store
	sched          *scheduler.Scheduler
	sync           *scrollsync.Synchronizer
	versions       *assist.Versions
	zoom           viewport.Zoom
	gesture        scrollsync.Gesture
	clickPending   bool
	materialized   *scrollsync.Registry[*store.Block]
	scrollTop      float64
	viewHeight     float64
	containerWidth float64
	lastVisible    map[int]bool
	rev            uint64
}

// NewLivePreview wires a session. Call Run to start processing.
func NewLivePreview(t transport.Transport, editor EditorSurface, preview PreviewSurface, opts Options) *LivePreview {
	logger := opts.Logger
	if logger == nil {
		logger = log.Get()
	}
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = viewport.Buffer
	}

	l := &LivePreview{
		transport:    t,
		editor:       editor,
		preview:      preview,
		notifier:     opts.Assist,
		logger:       logger.Named("session"),
		buffer:       buffer,
		inputs:       make(chan any, 128),
		surface:      make(chan any, 64),
		fires:        make(chan uint64, 8),
		done:         make(chan struct{}),
		ctx:          context.Background(),
		session:      uuid.NewString(),
		sync:         scrollsync.New(),
		versions:     assist.NewVersions(),
		zoom:         viewport.NewZoom(),
		materialized: scrollsync.NewRegistry[*store.Block](),
	}

	schedOpts := []scheduler.Option{scheduler.WithLogger(l.logger)}
	if opts.Delay > 0 {
		schedOpts = append(schedOpts, scheduler.WithDelay(opts.Delay))
	}
	if opts.Clock != nil {
		schedOpts = append(schedOpts, scheduler.WithClock(opts.Clock))
	}
	l.sched = scheduler.New(l.submit, l.fire, schedOpts...)
	return l
}

// Load replaces the document: the store, revision tracking, cursor and
// document version all start over, and the content is compiled at once.
func (l *LivePreview) Load(content, path string) {
	enqueue(l.inputs, any(loadRequest{content: content, path: path}), l.done)
}

// Edit reports the full text after a change.
func (l *LivePreview) Edit(content string) {
	enqueue(l.inputs, any(editInput(content)), l.done)
}

// Cursor reports the 1-based editor cursor line.
func (l *LivePreview) Cursor(line int) {
	enqueue(l.inputs, any(cursorInput(line)), l.done)
}

// Viewport reports the preview container scroll offset and size.
func (l *LivePreview) Viewport(msg contracts.ViewportMessage) {
	enqueue(l.surface, any(msg), l.done)
}

// Pointer reports a pointer gesture phase on the preview.
func (l *LivePreview) Pointer(msg contracts.PointerMessage) {
	enqueue(l.surface, any(msg), l.done)
}

// BlockClick reports the block under a released pointer.
func (l *LivePreview) BlockClick(msg contracts.BlockClickMessage) {
	enqueue(l.surface, any(msg), l.done)
}

// Zoom changes the preview scale.
func (l *LivePreview) Zoom(msg contracts.ZoomMessage) {
	enqueue(l.surface, any(msg), l.done)
}

// SurfaceAttached tells the session a new preview client connected and
// needs a full render.
func (l *LivePreview) SurfaceAttached() {
	enqueue(l.surface, any(surfaceAttached{}), l.done)
}

// enqueue hands v to the loop, giving up once the loop has stopped.
func enqueue[T any](ch chan T, v T, done <-chan struct{}) {
	select {
	case ch <- v:
	case <-done:
	}
}

// fire runs on the scheduler's timer goroutine.
func (l *LivePreview) fire(token uint64) {
	enqueue(l.fires, token, l.done)
}

// submit runs on the loop goroutine, called by the scheduler.
func (l *LivePreview) submit(req contracts.CompileRequest) error {
	ctx, cancel := context.WithTimeout(l.ctx, submitTimeout)
	defer cancel()
	return l.transport.Submit(ctx, req)
}

// Run processes events until ctx is done.
func (l *LivePreview) Run(ctx context.Context) {
	l.ctx = ctx
	defer close(l.done)
	defer l.sched.Stop()

	events := l.transport.Events()
	for {
		select {
		case msg := <-l.inputs:
			l.handleInput(msg)

		case token := <-l.fires:
			if l.sched.Fire(token) {
				l.render()
			}

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			l.handleTransport(ev)

		case msg := <-l.surface:
			l.handleSurface(msg)

		case <-ctx.Done():
			return
		}
	}
}

func (l *LivePreview) handleInput(msg any) {
	switch m := msg.(type) {
	case loadRequest:
		l.load(m)
	case editInput:
		l.edit(string(m))
	case cursorInput:
		cmd, ok := l.sync.SelectionChanged(l.store, l.layout(), int(m))
		l.renderIfVisibilityChanged()
		if ok {
			l.scroll(cmd)
		}
	}
}

func (l *LivePreview) load(req loadRequest) {
	l.session = uuid.NewString()
	l.path = req.path
	l.store = store.Empty()
	l.sched.Reset()
	l.sched.SetFilePath(req.path)
	l.sync.Reset()
	l.versions.Reset()
	l.materialized.Reset()
	l.lastVisible = nil
	l.logger.Info("document loaded", zap.String("session", l.session), zap.String("path", req.path))

	l.notify(req.content)
	l.sched.Edit(req.content)
	l.sched.Flush()
	l.render()
}

func (l *LivePreview) edit(content string) {
	l.notify(content)
	l.sched.Edit(content)
}

func (l *LivePreview) notify(content string) {
	version := l.versions.Next()
	if l.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(l.ctx, submitTimeout)
	defer cancel()
	if err := l.notifier.UpdateDocument(ctx, assist.DocumentURI(l.path), content, version); err != nil {
		l.logger.Warn("language assist update failed", zap.Int64("version", version), zap.Error(err))
	}
}

func (l *LivePreview) handleTransport(ev transport.Event) {
	switch ev.Kind {
	case transport.EventPatch:
		msg := ev.Patch
		if !l.sched.HandlePatch(msg.Revision) {
			return
		}
		l.store = store.MergePatch(l.store, msg.Pages, msg.TotalPages)
		l.logger.Debug("patch applied",
			zap.Uint64("revision", msg.Revision),
			zap.Int("patches", len(msg.Pages)),
			zap.Int("pages", l.store.Len()))

		cmd, ok := l.sync.StoreChanged(l.store, l.layout())
		l.render()
		if ok {
			l.scroll(cmd)
		}

	case transport.EventError:
		if l.sched.HandleError(ev.Error.Revision, ev.Error.Message) {
			l.render()
		}

	case transport.EventState:
		l.logger.Info("backend connection", zap.String("state", string(ev.State)))
		if ev.State == transport.StateDisconnected {
			l.sched.HandleDisconnect("compile backend disconnected")
			l.render()
		}
	}
}

func (l *LivePreview) handleSurface(msg any) {
	switch m := msg.(type) {
	case contracts.ViewportMessage:
		l.scrollTop = m.ScrollTop
		l.viewHeight = m.ViewHeight
		l.containerWidth = m.ContainerWidth
		l.renderIfVisibilityChanged()

	case contracts.PointerMessage:
		switch m.Phase {
		case contracts.PointerDown:
			l.gesture.Down(m.X, m.Y)
			l.clickPending = false
		case contracts.PointerMove:
			l.gesture.Move(m.X, m.Y)
		case contracts.PointerUp:
			l.clickPending = l.gesture.Up()
		}

	case contracts.BlockClickMessage:
		isClick := l.clickPending
		l.clickPending = false
		cmd, ok := l.sync.BlockClicked(l.store, m.Page, m.BlockID, isClick)
		if !ok {
			return
		}
		if err := l.editor.JumpToLine(cmd.Line, cmd.Center, cmd.Focus); err != nil {
			l.logger.Warn("jump to line failed", zap.Int("line", cmd.Line), zap.Error(err))
		}

	case contracts.ZoomMessage:
		prev := l.zoom
		switch m.Action {
		case contracts.ZoomIn:
			l.zoom = l.zoom.In()
		case contracts.ZoomOut:
			l.zoom = l.zoom.Out()
		case contracts.ZoomReset:
			l.zoom = l.zoom.Reset()
		case contracts.ZoomWheel:
			l.zoom = l.zoom.Wheel(m.Delta)
		case contracts.ZoomFit:
			l.zoom = l.zoom.Set(viewport.FitScale(l.containerWidth, l.store.Pages()))
		}
		if l.zoom != prev {
			l.render()
		}

	case surfaceAttached:
		l.materialized.Reset()
		l.render()
		if id, ok := l.sync.ActiveBlock(); ok {
			page, _ := l.sync.ActivePage()
			if b, found := l.store.Block(page, id); found {
				if top, ok := l.layout().BlockTop(page, b.BBox); ok {
					l.scroll(scrollsync.ScrollCommand{PageIndex: page, BlockID: id, Top: max(top-scrollsync.ScrollMargin, 0)})
				}
			}
		}
	}
}

func (l *LivePreview) layout() viewport.Layout {
	return viewport.NewLayout(l.store.Pages(), l.zoom.Scale())
}

func (l *LivePreview) visible(layout viewport.Layout) map[int]bool {
	var forced *int
	if page, ok := l.sync.ActivePage(); ok {
		forced = &page
	}
	return layout.Visible(l.scrollTop, l.viewHeight, l.buffer, forced)
}

func (l *LivePreview) renderIfVisibilityChanged() {
	if sameSet(l.visible(l.layout()), l.lastVisible) {
		return
	}
	l.render()
}

// render materializes blocks of visible pages and pushes the view. Blocks
// the surface already holds unchanged are sent without SVG.
func (l *LivePreview) render() {
	pages := l.store.Pages()
	scale := l.zoom.Scale()
	layout := viewport.NewLayout(pages, scale)
	visible := l.visible(layout)
	l.lastVisible = visible

	status := l.sched.Status()
	l.rev++
	view := contracts.ViewMessage{
		Type:        contracts.MessageTypeView,
		Session:     l.session,
		Rev:         l.rev,
		Filename:    filepath.Base(l.path),
		TotalHeight: layout.Total(),
		Scale:       scale,
		ZoomPercent: l.zoom.Percent(),
		Compiling:   status.Compiling,
		Error:       status.Err,
	}
	if l.path == "" {
		view.Filename = ""
	}
	if id, ok := l.sync.ActiveBlock(); ok {
		view.ActiveBlock = id
	}

	keep := make(map[scrollsync.Key]bool)
	for i, frame := range layout.Frames(visible) {
		pf := contracts.PageFrame{
			Index:       frame.Index,
			Top:         frame.Top,
			Width:       frame.Width,
			Height:      frame.Height,
			Placeholder: frame.Placeholder,
		}
		if !frame.Placeholder {
			for _, b := range pages[i].Blocks() {
				key := scrollsync.Key{Page: frame.Index, ID: b.ID}
				keep[key] = true
				pf.Blocks = append(pf.Blocks, l.blockFrame(key, b, scale))
			}
		}
		view.Pages = append(view.Pages, pf)
	}
	l.materialized.Retain(keep)

	if err := l.preview.Render(view); err != nil {
		l.logger.Debug("render not delivered", zap.Error(err))
		l.materialized.Reset()
	}
}

func (l *LivePreview) blockFrame(key scrollsync.Key, b *store.Block, scale float64) contracts.BlockFrame {
	bf := contracts.BlockFrame{ID: b.ID}
	if b.BBox != nil {
		st := viewport.BlockStyle(*b.BBox, scale)
		bf.Style = &contracts.BoxStyle{Left: st.Left, Top: st.Top, Width: st.Width, Height: st.Height}
	}
	if b.Span != nil {
		bf.Span = &contracts.SpanRange{LineStart: b.Span.LineStart, LineEnd: b.Span.LineEnd}
	}
	if held, ok := l.materialized.Lookup(l.store, key); ok && held == b {
		bf.Cached = true
		return bf
	}
	bf.SVG = b.SVG
	l.materialized.Register(key, b)
	return bf
}

func (l *LivePreview) scroll(cmd scrollsync.ScrollCommand) {
	err := l.preview.ScrollTo(contracts.ScrollToMessage{
		Type:   contracts.MessageTypeScrollTo,
		Top:    cmd.Top,
		Smooth: cmd.Smooth,
	})
	if err != nil {
		l.logger.Debug("scroll not delivered", zap.Error(err))
	}
}

func sameSet(a, b map[int]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}
