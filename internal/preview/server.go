// Package preview is the browser render surface: it serves the page shell and
// pushes views to the browser over a websocket, and hands browser input back
// to the session.
package preview

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"go-live-preview/internal/contracts"
	"go-live-preview/internal/log"
	"go-live-preview/internal/render"
)

// DefaultAddr is where the preview is served unless configured otherwise.
const DefaultAddr = "127.0.0.1:14785"

// ErrNoClient is returned by Render and ScrollTo while no browser is attached.
var ErrNoClient = errors.New("no preview client attached")

const shutdownTimeout = 2 * time.Second

// Handler receives browser input. Its methods are called from connection
// goroutines and must not block for long.
type Handler interface {
	Viewport(msg contracts.ViewportMessage)
	Pointer(msg contracts.PointerMessage)
	BlockClick(msg contracts.BlockClickMessage)
	Zoom(msg contracts.ZoomMessage)
	SurfaceAttached()
}

// Server coordinates HTTP serving and WebSocket updates. One browser tab is
// served at a time; a new tab replaces the previous one.
type Server struct {
	addr     string
	shell    string
	css      string
	logger   *zap.Logger
	upgrader websocket.Upgrader

	handler   Handler
	connected atomic.Bool

	mu       sync.Mutex
	started  bool
	server   *http.Server
	listener net.Listener

	outbound   chan any
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	stopLoop   chan struct{}
	loopDone   chan struct{}
}

// NewServer creates a preview server bound to addr once Start is called.
func NewServer(addr, title string, renderer *render.Renderer) *Server {
	logger := log.Get().Named("preview")
	css, err := renderer.StyleSheet()
	if err != nil {
		logger.Warn("highlight stylesheet unavailable", zap.Error(err))
	}
	return &Server{
		addr:   addr,
		shell:  renderer.Shell(title),
		css:    css,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		outbound:   make(chan any, 16),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		stopLoop:   make(chan struct{}),
		loopDone:   make(chan struct{}),
	}
}

// SetHandler registers the receiver of browser input. Call it before Start.
func (s *Server) SetHandler(h Handler) {
	s.handler = h
}

// Handler returns the HTTP routes: the shell, the websocket, the highlight
// stylesheet and local document assets.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/assets/highlight.css", s.handleCSS)
	mux.HandleFunc(render.AssetPrefix, s.handleAsset)
	return mux
}

// Start runs the write loop and, unless serve is false, listens on the
// configured address. Tests mount Handler on their own server instead.
func (s *Server) Start(serve bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	if serve {
		ln, err := net.Listen("tcp", s.addr)
		if err != nil {
			return errors.Wrapf(err, "listen on %s", s.addr)
		}
		s.listener = ln
		s.server = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
		srv := s.server
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error("preview server stopped", zap.Error(err))
			}
		}()
		s.logger.Info("preview listening", zap.String("url", "http://"+ln.Addr().String()))
	}

	s.started = true
	go s.runLoop()
	return nil
}

// URL returns the browser URL for the preview server.
func (s *Server) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return "http://" + s.listener.Addr().String()
	}
	return "http://" + s.addr
}

// Render publishes a view to the attached browser.
func (s *Server) Render(view contracts.ViewMessage) error {
	view.Type = contracts.MessageTypeView
	return s.publish(view)
}

// ScrollTo asks the attached browser to scroll.
func (s *Server) ScrollTo(msg contracts.ScrollToMessage) error {
	msg.Type = contracts.MessageTypeScrollTo
	return s.publish(msg)
}

func (s *Server) publish(msg any) error {
	if !s.connected.Load() {
		return ErrNoClient
	}
	select {
	case s.outbound <- msg:
		return nil
	case <-s.stopLoop:
		return ErrNoClient
	}
}

// Stop gracefully shuts down the HTTP server and run loop.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	srv := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()

	var err error
	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err = srv.Shutdown(ctx)
	}

	close(s.stopLoop)
	<-s.loopDone
	return err
}

// handleIndex serves the initial HTML shell.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(s.shell))
}

func (s *Server) handleCSS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	_, _ = w.Write([]byte(s.css))
}

// handleWS upgrades the connection and forwards browser messages to the
// handler until the connection closes.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	select {
	case s.register <- conn:
	case <-s.stopLoop:
		_ = conn.Close()
		return
	}
	defer func() {
		select {
		case s.unregister <- conn:
		case <-s.stopLoop:
		}
	}()

	if s.handler != nil {
		s.handler.SurfaceAttached()
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.dispatch(raw)
	}
}

// dispatch decodes one browser message and hands it to the handler.
// Unknown or malformed messages are dropped.
func (s *Server) dispatch(raw []byte) {
	if s.handler == nil {
		return
	}
	var envelope contracts.IncomingMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		s.logger.Debug("malformed browser message", zap.Error(err))
		return
	}

	switch envelope.Type {
	case contracts.MessageTypeViewport:
		var msg contracts.ViewportMessage
		if decode(raw, &msg) {
			s.handler.Viewport(msg)
		}
	case contracts.MessageTypePointer:
		var msg contracts.PointerMessage
		if decode(raw, &msg) {
			s.handler.Pointer(msg)
		}
	case contracts.MessageTypeBlockClick:
		var msg contracts.BlockClickMessage
		if decode(raw, &msg) {
			s.handler.BlockClick(msg)
		}
	case contracts.MessageTypeZoom:
		var msg contracts.ZoomMessage
		if decode(raw, &msg) {
			s.handler.Zoom(msg)
		}
	default:
		s.logger.Debug("ignoring browser message", zap.String("type", envelope.Type))
	}
}

func decode(raw []byte, v any) bool {
	return json.Unmarshal(raw, v) == nil
}

// handleAsset serves local markdown assets via encoded absolute paths.
func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	decoded, ok := render.DecodeAssetPath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	assetPath := filepath.Clean(decoded)
	if assetPath == "." || !filepath.IsAbs(assetPath) {
		http.NotFound(w, r)
		return
	}

	info, err := os.Stat(assetPath)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, assetPath)
}

// runLoop serializes websocket writes on a single goroutine.
func (s *Server) runLoop() {
	defer close(s.loopDone)
	var conn *websocket.Conn

	drop := func() {
		if conn != nil {
			_ = conn.Close()
			conn = nil
		}
		s.connected.Store(false)
	}

	for {
		select {
		case msg := <-s.outbound:
			if conn == nil {
				continue
			}
			if err := conn.WriteJSON(msg); err != nil {
				s.logger.Debug("browser write failed", zap.Error(err))
				drop()
			}

		case c := <-s.register:
			drop()
			conn = c
			s.connected.Store(true)
			s.logger.Info("browser attached", zap.String("remote", c.RemoteAddr().String()))

		case c := <-s.unregister:
			if conn == c {
				drop()
			} else {
				_ = c.Close()
			}

		case <-s.stopLoop:
			drop()
			return
		}
	}
}
