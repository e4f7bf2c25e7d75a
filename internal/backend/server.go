package backend

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"go-live-preview/internal/contracts"
	"go-live-preview/internal/log"
	"go-live-preview/internal/render"
)

// DefaultAddr is the well-known local backend address.
const DefaultAddr = "127.0.0.1:14784"

const shutdownTimeout = 2 * time.Second

// Server answers compile requests over websockets. Every connection gets its
// own Compiler, so patches on one connection only depend on what that
// connection was sent before.
type Server struct {
	addr     string
	renderer *render.Renderer
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	conns    map[*websocket.Conn]struct{}
}

// NewServer creates a backend server bound to addr once Start is called.
func NewServer(addr string, renderer *render.Renderer) *Server {
	return &Server{
		addr:     addr,
		renderer: renderer,
		logger:   log.Get().Named("backend"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// Handler returns the websocket endpoint. It is exposed for tests and for
// mounting next to other handlers.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleWS)
	return mux
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", s.addr)
	}
	s.listener = ln
	s.server = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}

	srv := s.server
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("backend server stopped", zap.Error(err))
		}
	}()
	s.logger.Info("backend listening", zap.String("addr", ln.Addr().String()))
	return nil
}

// Addr returns the address the server listens on, or the configured one
// before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stop shuts the HTTP server down and closes open websockets.
func (s *Server) Stop() error {
	s.mu.Lock()
	srv := s.server
	s.server = nil
	s.listener = nil
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	var err error
	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err = srv.Shutdown(ctx)
	}
	for _, c := range conns {
		err = multierr.Append(err, ignoreClosed(c.Close()))
	}
	return err
}

func ignoreClosed(err error) error {
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// handleWS upgrades the connection, announces readiness and answers frames
// one at a time until the connection closes.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("upgrade failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	compiler := NewCompiler(s.renderer)
	if err := conn.WriteJSON(contracts.ReadyMessage{Type: contracts.MessageTypeReady}); err != nil {
		return
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if err := conn.WriteJSON(s.answer(r.Context(), compiler, raw)); err != nil {
			s.logger.Debug("write failed", zap.Error(err))
			return
		}
	}
}

// answer turns one inbound frame into the reply to send back.
func (s *Server) answer(ctx context.Context, compiler *Compiler, raw []byte) any {
	var envelope contracts.IncomingMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return contracts.ErrorMessage{Type: contracts.MessageTypeError, Message: "malformed frame: " + err.Error()}
	}
	if envelope.Type != contracts.MessageTypeCompile {
		return contracts.ErrorMessage{Type: contracts.MessageTypeError, Message: "unsupported message type " + envelope.Type}
	}

	var req contracts.CompileRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return contracts.ErrorMessage{Type: contracts.MessageTypeError, Message: "malformed compile request: " + err.Error()}
	}

	patch, err := compiler.Compile(ctx, req)
	if err != nil {
		s.logger.Info("compile failed", zap.Uint64("revision", req.Revision), zap.Error(err))
		return contracts.ErrorMessage{
			Type:     contracts.MessageTypeError,
			Revision: contracts.Uint64Ptr(req.Revision),
			Message:  err.Error(),
		}
	}
	return patch
}
