// Package ws is the socket transport binding: a single persistent websocket
// to a compile backend, exchanging framed JSON messages.
package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"go-live-preview/internal/contracts"
	"go-live-preview/internal/log"
	"go-live-preview/internal/transport"
)

// DefaultURL is the well-known local backend endpoint.
const DefaultURL = "ws://127.0.0.1:14784/"

const (
	bufferSize   = 64
	closeTimeout = time.Second
)

// Option configures a Client.
type Option func(*Client)

// WithDialer replaces websocket.DefaultDialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// Client implements transport.Transport over one websocket connection.
//
// While the socket is not open at most one submission is kept, the most
// recent, and it is written as soon as the connection opens. Reconnecting
// after a disconnect is left to the owner.
type Client struct {
	url    string
	dialer *websocket.Dialer
	logger *zap.Logger

	events chan transport.Event
	done   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	state   transport.ConnState
	conn    *websocket.Conn
	pending *contracts.CompileRequest
	closed  bool

	// gorilla/websocket allows one concurrent writer.
	writeMu sync.Mutex
}

var _ transport.Transport = (*Client)(nil)

// Connect starts dialing url in the background and returns immediately in
// the connecting state.
func Connect(ctx context.Context, url string, opts ...Option) *Client {
	ctx, cancel := context.WithCancel(ctx)
	c := &Client{
		url:    url,
		dialer: websocket.DefaultDialer,
		logger: log.Get().Named("ws"),
		events: make(chan transport.Event, bufferSize),
		done:   make(chan struct{}),
		cancel: cancel,
		state:  transport.StateConnecting,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.dial(ctx)
	}()
	return c
}

// State returns the current connection state.
func (c *Client) State() transport.ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Events streams patches, errors and state changes. It is closed by Close.
func (c *Client) Events() <-chan transport.Event {
	return c.events
}

// Submit writes req if the socket is open, otherwise keeps it as the single
// pending submission.
func (c *Client) Submit(ctx context.Context, req contracts.CompileRequest) error {
	if err := ctx.Err(); err != nil {
		return errors.WithMessage(err, "submit")
	}
	req.Type = contracts.MessageTypeCompile

	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return transport.ErrClosed
	case c.state == transport.StateDisconnected:
		c.mu.Unlock()
		return errors.New("backend disconnected")
	case c.state != transport.StateConnected:
		if c.pending != nil {
			c.logger.Debug("replacing queued submission",
				zap.Uint64("old", c.pending.Revision),
				zap.Uint64("new", req.Revision))
		}
		c.pending = &req
		c.mu.Unlock()
		return nil
	}
	conn := c.conn
	c.mu.Unlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteJSON(req); err != nil {
		_ = conn.Close()
		return errors.Wrapf(err, "write compile revision %d", req.Revision)
	}
	return nil
}

// Close shuts the connection and waits for the background goroutines.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	close(c.done)
	c.mu.Unlock()

	c.cancel()

	var err error
	if conn != nil {
		c.writeMu.Lock()
		err = multierr.Combine(
			conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(closeTimeout),
			),
			conn.Close(),
		)
		c.writeMu.Unlock()
	}

	c.wg.Wait()
	close(c.events)

	if errors.Is(err, websocket.ErrCloseSent) {
		return nil
	}
	return err
}

func (c *Client) dial(ctx context.Context) {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.logger.Warn("dial failed", zap.String("url", c.url), zap.Error(err))
		c.disconnect()
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.conn = conn
	c.state = transport.StateConnected
	pending := c.pending
	c.pending = nil
	c.writeMu.Lock()
	c.mu.Unlock()

	c.emit(transport.StateEvent(transport.StateConnected))

	if pending != nil {
		c.logger.Debug("flushing queued submission", zap.Uint64("revision", pending.Revision))
		if err := conn.WriteJSON(pending); err != nil {
			rev := pending.Revision
			c.emit(transport.ErrorEvent(&rev, errors.Wrap(err, "write queued compile").Error()))
			_ = conn.Close()
		}
	}
	c.writeMu.Unlock()

	c.readLoop(conn)
}

// readLoop decodes frames until the connection fails.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.logger.Debug("read failed", zap.Error(err))
			c.disconnect()
			return
		}
		if ev, ok := c.decode(data); ok {
			c.emit(ev)
		}
	}
}

func (c *Client) decode(data []byte) (transport.Event, bool) {
	var envelope contracts.IncomingMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return transport.ErrorEvent(nil, err.Error()), true
	}

	switch envelope.Type {
	case contracts.MessageTypeReady:
		c.logger.Debug("backend ready")
		return transport.Event{}, false
	case contracts.MessageTypePatch:
		var msg contracts.PatchMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return transport.ErrorEvent(nil, err.Error()), true
		}
		return transport.PatchEvent(msg), true
	case contracts.MessageTypeError:
		var msg contracts.ErrorMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return transport.ErrorEvent(nil, err.Error()), true
		}
		return transport.ErrorEvent(msg.Revision, msg.Message), true
	default:
		c.logger.Debug("ignoring frame", zap.String("type", envelope.Type))
		return transport.Event{}, false
	}
}

func (c *Client) disconnect() {
	c.mu.Lock()
	if c.closed || c.state == transport.StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.state = transport.StateDisconnected
	c.pending = nil
	c.conn = nil
	c.mu.Unlock()

	c.emit(transport.StateEvent(transport.StateDisconnected))
}

func (c *Client) emit(ev transport.Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}
