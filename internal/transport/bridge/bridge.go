// Package bridge is the in-process transport binding: compile requests are
// dispatched to an embedded backend and results come back as events on the
// named topics "patch" and "error".
package bridge

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"go-live-preview/internal/contracts"
	"go-live-preview/internal/log"
	"go-live-preview/internal/transport"
)

// Event topics.
const (
	TopicPatch = "patch"
	TopicError = "error"
)

// ErrBusy is returned when the dispatch queue is full.
var ErrBusy = errors.New("compile queue full")

const (
	queueSize  = 4
	bufferSize = 64
)

// Compiler is the embedded backend.
type Compiler interface {
	Compile(ctx context.Context, req contracts.CompileRequest) (contracts.PatchMessage, error)
}

// Bridge implements transport.Transport over a Compiler running on a worker
// goroutine.
type Bridge struct {
	compiler Compiler
	logger   *zap.Logger

	queue chan contracts.CompileRequest
	stop  chan struct{}
	done  chan struct{}
	ctx   context.Context

	mu     sync.Mutex
	closed bool
	subs   map[string][]chan transport.Event
	events chan transport.Event
}

var _ transport.Transport = (*Bridge)(nil)

// New starts a bridge around compiler.
func New(compiler Compiler) *Bridge {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		compiler: compiler,
		logger:   log.Get().Named("bridge"),
		queue:    make(chan contracts.CompileRequest, queueSize),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		ctx:      ctx,
		subs:     make(map[string][]chan transport.Event),
		events:   make(chan transport.Event, bufferSize),
	}
	b.subs[TopicPatch] = []chan transport.Event{b.events}
	b.subs[TopicError] = []chan transport.Event{b.events}

	go func() {
		<-b.stop
		cancel()
	}()
	go b.run()
	return b
}

// Subscribe returns a channel receiving events published on topic. The
// channel is closed by Close. Events that find it full are dropped; only
// Events is delivered without loss.
func (b *Bridge) Subscribe(topic string) <-chan transport.Event {
	ch := make(chan transport.Event, bufferSize)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs[topic] = append(b.subs[topic], ch)
	return ch
}

// Events carries both patch and error events.
func (b *Bridge) Events() <-chan transport.Event {
	return b.events
}

// Submit dispatches req without waiting for the compile.
func (b *Bridge) Submit(ctx context.Context, req contracts.CompileRequest) error {
	if err := ctx.Err(); err != nil {
		return errors.WithMessage(err, "submit")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return transport.ErrClosed
	}

	select {
	case b.queue <- req:
		return nil
	default:
		return errors.Wrapf(ErrBusy, "revision %d", req.Revision)
	}
}

// Close stops the worker and closes every event channel.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.stop)
	b.mu.Unlock()

	<-b.done

	b.mu.Lock()
	defer b.mu.Unlock()
	seen := make(map[chan transport.Event]bool)
	for _, chans := range b.subs {
		for _, ch := range chans {
			if !seen[ch] {
				seen[ch] = true
				close(ch)
			}
		}
	}
	b.subs = nil
	return nil
}

func (b *Bridge) run() {
	defer close(b.done)
	for {
		select {
		case req := <-b.queue:
			b.compile(req)
		case <-b.stop:
			return
		}
	}
}

func (b *Bridge) compile(req contracts.CompileRequest) {
	msg, err := b.compiler.Compile(b.ctx, req)
	if err != nil {
		b.logger.Debug("compile failed", zap.Uint64("revision", req.Revision), zap.Error(err))
		rev := req.Revision
		b.publish(TopicError, transport.ErrorEvent(&rev, err.Error()))
		return
	}
	msg.Type = contracts.MessageTypePatch
	msg.Revision = req.Revision
	b.publish(TopicPatch, transport.PatchEvent(msg))
}

func (b *Bridge) publish(topic string, ev transport.Event) {
	b.mu.Lock()
	chans := append([]chan transport.Event(nil), b.subs[topic]...)
	b.mu.Unlock()

	for _, ch := range chans {
		if ch != b.events {
			select {
			case ch <- ev:
			default:
				b.logger.Warn("subscriber full, dropping event", zap.String("topic", topic))
			}
			continue
		}
		select {
		case ch <- ev:
		case <-b.stop:
			return
		}
	}
}
