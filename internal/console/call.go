package console

import "github.com/crosswire/intercom/internal/protocol"

// ConnState is the transport-level state of a call's media connection,
// reported by the media layer. It never drives slot transitions on its
// own; it is display state patched onto the focused call.
type ConnState string

const (
	ConnNone         ConnState = ""
	ConnConnecting   ConnState = "connecting"
	ConnConnected    ConnState = "connected"
	ConnDisconnected ConnState = "disconnected"
)

// Call is one call attempt as the console sees it. The priority flag is
// carried unchanged through every transition; urgency derivation from it
// is a presentation concern.
type Call struct {
	ID       protocol.CallID
	Source   protocol.CallSource
	Target   protocol.CallTarget
	Priority bool
}

// Display is the single focused call slot: a closed sum over the four
// occupied states. A nil Display means the slot is empty. At most one
// Display value exists at a time; fields that are only meaningful in some
// states live on the matching variant and nowhere else.
type Display interface {
	// DisplayCall returns the call occupying the slot.
	DisplayCall() Call
	sealedDisplay()
}

// Outgoing is a call this console originated that nobody answered yet.
type Outgoing struct {
	Call Call
	Conn ConnState
}

// Accepted is an established call, either an answered invite or a
// confirmed outgoing call.
type Accepted struct {
	Call Call
	Conn ConnState
}

// Rejected is an outgoing call every target turned down. It stays focused,
// blinking, until the user dismisses it.
type Rejected struct {
	Call Call
}

// Errored is a call that failed. It stays focused, blinking, until the
// user dismisses it.
type Errored struct {
	Call    Call
	Reason  protocol.CallErrorReason
	Message string
}

func (o Outgoing) DisplayCall() Call { return o.Call }
func (a Accepted) DisplayCall() Call { return a.Call }
func (r Rejected) DisplayCall() Call { return r.Call }
func (e Errored) DisplayCall() Call  { return e.Call }

func (Outgoing) sealedDisplay() {}
func (Accepted) sealedDisplay() {}
func (Rejected) sealedDisplay() {}
func (Errored) sealedDisplay()  {}
