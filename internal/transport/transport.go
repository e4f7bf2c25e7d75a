// Package transport defines the uniform link between the preview core and a
// compile backend: submit a revision, receive a patch or an error later.
package transport

import (
	"context"

	"github.com/pkg/errors"

	"go-live-preview/internal/contracts"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("transport closed")

// EventKind tells which field of an Event is set.
type EventKind int

const (
	EventPatch EventKind = iota + 1
	EventError
	EventState
)

// ConnState is the connection state of a socket binding. In-process bindings
// only ever report StateConnected.
type ConnState string

const (
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
	StateDisconnected ConnState = "disconnected"
)

// Event is one asynchronous result delivered by a Transport.
type Event struct {
	Kind  EventKind
	Patch *contracts.PatchMessage
	Error *contracts.ErrorMessage
	State ConnState
}

// PatchEvent wraps a patch message.
func PatchEvent(msg contracts.PatchMessage) Event {
	return Event{Kind: EventPatch, Patch: &msg}
}

// ErrorEvent wraps an error message.
func ErrorEvent(revision *uint64, message string) Event {
	return Event{Kind: EventError, Error: &contracts.ErrorMessage{
		Type:     contracts.MessageTypeError,
		Revision: revision,
		Message:  message,
	}}
}

// StateEvent reports a connection state change.
func StateEvent(state ConnState) Event {
	return Event{Kind: EventState, State: state}
}

// Transport submits compile requests and streams their results.
//
// Submit never blocks on the compile itself. A returned error means the
// request was not dispatched and no event will follow for it.
type Transport interface {
	Submit(ctx context.Context, req contracts.CompileRequest) error
	Events() <-chan Event
	Close() error
}
