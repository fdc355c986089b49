// Package signaling connects the console to the intercom server and
// exposes the server's message stream as typed events.
package signaling

import (
	"context"

	"github.com/crosswire/intercom/internal/protocol"
)

// Adapter is the interface that transport implementations must satisfy.
// An adapter handles connection management, login, reconnection, and
// framing for a single signaling server.
type Adapter interface {
	// Connect establishes a connection and performs the login handshake
	// for the given position. An empty position lets the server pick
	// when the token maps to exactly one position.
	Connect(ctx context.Context, position protocol.PositionID) error

	// Listen returns a channel of events from the server. The channel
	// is closed when the context is cancelled or the adapter is closed.
	// Listen must only be called after Connect.
	Listen(ctx context.Context) (<-chan Event, error)

	// Send delivers a client message to the server.
	Send(ctx context.Context, msg protocol.ClientMessage) error

	// Close gracefully shuts down the adapter connection.
	Close() error
}

// Event is the union of things an adapter can report. Exactly one of
// the concrete types below is delivered per event.
type Event interface {
	isEvent()
}

// Connected reports a completed login. Client describes this console's
// own session; Profile carries the server-assigned voice profile, if any.
type Connected struct {
	Client  protocol.ClientInfo
	Profile []byte
}

// Reconnecting reports that the connection dropped and the adapter is
// retrying. Attempt counts from 1.
type Reconnecting struct {
	Attempt int
}

// Disconnected reports that the adapter gave up or the server rejected
// the session. Positions is non-empty when the server asked the console
// to pick a position before logging in again.
type Disconnected struct {
	Reason    string
	Positions []protocol.PositionID
}

// AmbiguousPosition reports that the login token maps to several
// positions and the server needs an explicit choice.
type AmbiguousPosition struct {
	Positions []protocol.PositionID
}

// Message wraps a decoded server message.
type Message struct {
	Msg protocol.ServerMessage
}

func (Connected) isEvent()         {}
func (Reconnecting) isEvent()      {}
func (Disconnected) isEvent()      {}
func (AmbiguousPosition) isEvent() {}
func (Message) isEvent()           {}
