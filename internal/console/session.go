package console

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/crosswire/intercom/internal/protocol"
)

// Commander issues call RPCs to the signaling server. A failed RPC means
// the local optimistic mutation is not applied.
type Commander interface {
	StartCall(ctx context.Context, invite protocol.CallInvite) error
	AcceptCall(ctx context.Context, accept protocol.CallAccept) error
	EndCall(ctx context.Context, end protocol.CallEnd) error
}

// Recorder receives call lifecycle notifications for the history log.
type Recorder interface {
	RecordOutgoing(id protocol.CallID, target protocol.CallTarget) error
	RecordIncoming(id protocol.CallID, source protocol.CallSource) error
	PatchRelatedClient(id protocol.CallID, client protocol.ClientID) error
}

// SessionOpts holds parameters for creating a Session.
type SessionOpts struct {
	Identity  *Identity
	Stations  *Registry
	Directory *Directory
	Commander Commander
	Recorder  Recorder // optional; nil disables history recording

	// AutoHangupAfter ends an unanswered outgoing call after this long.
	// Zero disables the timer.
	AutoHangupAfter time.Duration

	// IgnoredCallers drops invites from these clients before queueing.
	IgnoredCallers []protocol.ClientID

	// BlinkInterval overrides the alert blink period; zero means
	// DefaultBlinkInterval. Tests shorten it.
	BlinkInterval time.Duration
}

// Session is the call state machine. It owns the single focused call slot
// (Display), the queue of incoming invitations, and the blink and
// auto-hangup timers. Remote events and user actions both mutate it; each
// handler runs to completion under the session lock, so observers always
// see a consistent slot + queue pair.
type Session struct {
	identity  *Identity
	stations  *Registry
	directory *Directory
	commander Commander
	recorder  Recorder

	autoHangupAfter time.Duration
	ignored         map[protocol.ClientID]bool
	blink           *blinker

	mu       sync.Mutex
	display  Display
	incoming []Call

	originating bool
	accepting   bool
	ending      bool

	hangGuard *hangupGuard
}

// hangupGuard is the cancellable auto-hangup timer for one outgoing call.
// At most one exists at a time.
type hangupGuard struct {
	callID protocol.CallID
	timer  *time.Timer
}

// NewSession creates a Session with the given collaborators.
func NewSession(opts SessionOpts) (*Session, error) {
	if opts.Identity == nil {
		return nil, fmt.Errorf("console: identity is required")
	}
	if opts.Stations == nil {
		return nil, fmt.Errorf("console: station registry is required")
	}
	if opts.Directory == nil {
		return nil, fmt.Errorf("console: client directory is required")
	}
	if opts.Commander == nil {
		return nil, fmt.Errorf("console: commander is required")
	}
	ignored := make(map[protocol.ClientID]bool, len(opts.IgnoredCallers))
	for _, id := range opts.IgnoredCallers {
		ignored[id] = true
	}
	return &Session{
		identity:        opts.Identity,
		stations:        opts.Stations,
		directory:       opts.Directory,
		commander:       opts.Commander,
		recorder:        opts.Recorder,
		autoHangupAfter: opts.AutoHangupAfter,
		ignored:         ignored,
		blink:           newBlinker(opts.BlinkInterval),
	}, nil
}

// --- Observers ---

// Display returns the focused call slot; nil means empty.
func (s *Session) Display() Display {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.display
}

// IncomingCalls returns the pending invitations in queue order.
func (s *Session) IncomingCalls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.incoming...)
}

// BlinkActive reports whether the blink timer is running.
func (s *Session) BlinkActive() bool { return s.blink.active() }

// BlinkPhase returns the current blink phase for rendering.
func (s *Session) BlinkPhase() bool { return s.blink.phase() }

// --- User actions ---

// Originate starts a call to the target. The slot must be empty, the
// target must not resolve to the local client, and a second invocation
// while the RPC is pending is refused. The station attached to the call
// source comes from the registry's overrides.
func (s *Session) Originate(ctx context.Context, target protocol.CallTarget, priority bool) (protocol.CallID, error) {
	localID, ok := s.identity.ClientID()
	if !ok {
		return "", ErrNotAuthenticated
	}
	if target.IsZero() {
		return "", ErrInvalidTarget
	}
	if target.Client == localID {
		return "", ErrSelfCall
	}

	s.mu.Lock()
	if s.display != nil {
		s.mu.Unlock()
		return "", ErrSlotOccupied
	}
	if s.originating {
		s.mu.Unlock()
		return "", ErrActionInFlight
	}
	s.originating = true
	source := protocol.CallSource{
		ClientID:   localID,
		PositionID: s.stations.LocalPosition(),
		StationID:  s.stations.TakeCallStation(),
	}
	s.mu.Unlock()

	call := Call{
		ID:       protocol.NewCallID(),
		Source:   source,
		Target:   target,
		Priority: priority,
	}
	err := s.commander.StartCall(ctx, protocol.CallInvite{
		CallID:   call.ID,
		Source:   call.Source,
		Target:   call.Target,
		Priority: call.Priority,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.originating = false
	if err != nil {
		return "", fmt.Errorf("console: start call: %w", err)
	}
	if s.display != nil {
		// An event filled the slot while the RPC was in flight; the server
		// will cancel the stray invite.
		return "", ErrSlotOccupied
	}
	s.display = Outgoing{Call: call, Conn: ConnNone}
	s.record(func(r Recorder) error { return r.RecordOutgoing(call.ID, call.Target) })
	s.armAutoHangupLocked(call.ID)
	return call.ID, nil
}

// Accept answers a queued invitation. An empty id accepts the oldest one.
// Returns false when nothing matched. The slot must be empty.
func (s *Session) Accept(ctx context.Context, callID protocol.CallID) (bool, error) {
	localID, ok := s.identity.ClientID()
	if !ok {
		return false, ErrNotAuthenticated
	}

	s.mu.Lock()
	if s.display != nil {
		s.mu.Unlock()
		return false, ErrSlotOccupied
	}
	if s.accepting {
		s.mu.Unlock()
		return false, ErrActionInFlight
	}
	call, found := s.findIncomingLocked(callID)
	if !found {
		s.mu.Unlock()
		return false, nil
	}
	s.accepting = true
	s.mu.Unlock()

	err := s.commander.AcceptCall(ctx, protocol.CallAccept{
		CallID:            call.ID,
		AcceptingClientID: localID,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.accepting = false
	if err != nil {
		return false, fmt.Errorf("console: accept call: %w", err)
	}
	s.dropIncomingLocked(call.ID)
	s.display = Accepted{Call: call, Conn: ConnConnecting}
	s.updateBlinkLocked()
	return true, nil
}

// End hangs up the focused outgoing or established call. Returns false
// when no such call is focused.
func (s *Session) End(ctx context.Context) (bool, error) {
	localID, ok := s.identity.ClientID()
	if !ok {
		return false, ErrNotAuthenticated
	}

	s.mu.Lock()
	var call Call
	switch d := s.display.(type) {
	case Outgoing:
		call = d.Call
	case Accepted:
		call = d.Call
	default:
		s.mu.Unlock()
		return false, nil
	}
	if s.ending {
		s.mu.Unlock()
		return false, ErrActionInFlight
	}
	s.ending = true
	s.mu.Unlock()

	err := s.commander.EndCall(ctx, protocol.CallEnd{
		CallID:         call.ID,
		EndingClientID: localID,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ending = false
	if err != nil {
		return false, fmt.Errorf("console: end call: %w", err)
	}
	if s.display != nil && s.display.DisplayCall().ID == call.ID {
		s.cancelAutoHangupLocked(call.ID)
		s.display = nil
		s.updateBlinkLocked()
	}
	return true, nil
}

// Dismiss clears a Rejected or Errored slot. Returns false for any other
// slot state.
func (s *Session) Dismiss() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.display.(type) {
	case Rejected, Errored:
		s.display = nil
		s.updateBlinkLocked()
		return true
	default:
		return false
	}
}

// --- Remote events ---

// HandleInvite queues an incoming invitation. A re-invite with a known id
// replaces the queued entry and moves it to the back. Invites from ignored
// callers are dropped.
func (s *Session) HandleInvite(call Call) {
	if s.ignored[call.Source.ClientID] {
		log.Printf("console: ignoring invite from %s", call.Source.ClientID)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropIncomingLocked(call.ID)
	s.incoming = append(s.incoming, call)
	s.record(func(r Recorder) error { return r.RecordIncoming(call.ID, call.Source) })
	s.updateBlinkLocked()
}

// HandleCallAccept processes a server-side accept. For the focused
// outgoing call it resolves the target to the accepting client and moves
// the slot to Accepted. When another session of the local user accepted a
// queued invite, the invite is promoted into the slot. Anything else is a
// protocol-ordering guard failure and leaves state unchanged.
func (s *Session) HandleCallAccept(callID protocol.CallID, accepting protocol.ClientID) {
	localID, _ := s.identity.ClientID()

	s.mu.Lock()
	defer s.mu.Unlock()

	if o, ok := s.display.(Outgoing); ok && o.Call.ID == callID {
		s.cancelAutoHangupLocked(callID)
		call := o.Call
		call.Target = protocol.CallTarget{Client: accepting}
		s.display = Accepted{Call: call, Conn: ConnConnecting}
		s.record(func(r Recorder) error { return r.PatchRelatedClient(callID, accepting) })
		s.updateBlinkLocked()
		return
	}

	if accepting == localID && localID != "" {
		if call, found := s.findIncomingLocked(callID); found {
			s.dropIncomingLocked(callID)
			if s.display == nil {
				s.display = Accepted{Call: call, Conn: ConnConnecting}
			}
			s.updateBlinkLocked()
			return
		}
	}

	log.Printf("console: call accept for %s does not match any local call", callID)
}

// HandleCallEnd processes a natural call end: the far side hung up or the
// invite was answered elsewhere. An Outgoing slot survives a natural end;
// only the generic removal applies.
func (s *Session) HandleCallEnd(callID protocol.CallID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeCallLocked(callID, true)
}

// HandleForceEnd processes a forced call end: the call is torn down no
// matter the slot state, except an Errored slot which stays visible until
// dismissed.
func (s *Session) HandleForceEnd(callID protocol.CallID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeCallLocked(callID, false)
}

// HandleReject processes a remote rejection of the focused outgoing call.
// A rejection for anything else degrades to plain removal.
func (s *Session) HandleReject(callID protocol.CallID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.display.(Outgoing); ok && o.Call.ID == callID {
		s.cancelAutoHangupLocked(callID)
		s.display = Rejected{Call: o.Call}
		s.updateBlinkLocked()
		return
	}
	s.removeCallLocked(callID, false)
}

// HandleCallError moves the focused call into the Errored state. An
// error for a Rejected slot or a non-matching call degrades to plain
// removal.
func (s *Session) HandleCallError(callID protocol.CallID, reason protocol.CallErrorReason, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.display != nil && s.display.DisplayCall().ID == callID {
		if _, rejected := s.display.(Rejected); !rejected {
			s.cancelAutoHangupLocked(callID)
			call := s.display.DisplayCall()
			s.display = Errored{Call: call, Reason: reason, Message: message}
			s.dropIncomingLocked(callID)
			s.updateBlinkLocked()
			return
		}
	}
	s.removeCallLocked(callID, false)
}

// HandleConnState patches the media connection state onto the focused
// call. No slot transition happens here.
func (s *Session) HandleConnState(callID protocol.CallID, state ConnState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch d := s.display.(type) {
	case Outgoing:
		if d.Call.ID == callID {
			d.Conn = state
			s.display = d
		}
	case Accepted:
		if d.Call.ID == callID {
			d.Conn = state
			s.display = d
		}
	}
}

// RemoveCallsFrom drops every call involving the given client: queued
// invites it originated and the focused call when it is the counterpart.
// Used when a client disconnects or the server reports it missing.
func (s *Session) RemoveCallsFrom(clientID protocol.ClientID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []protocol.CallID
	for _, c := range s.incoming {
		if c.Source.ClientID == clientID {
			ids = append(ids, c.ID)
		}
	}
	if s.display != nil {
		call := s.display.DisplayCall()
		if call.Source.ClientID == clientID || call.Target.Client == clientID {
			ids = append(ids, call.ID)
		}
	}
	for _, id := range ids {
		s.removeCallLocked(id, false)
	}
}

// Reset clears the slot, the queue, and every timer. Used on disconnect.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hangGuard != nil {
		s.hangGuard.timer.Stop()
		s.hangGuard = nil
	}
	s.display = nil
	s.incoming = nil
	s.blink.halt()
}

// --- Internals ---

// removeCallLocked is the generic call removal shared by end, force-end,
// and the reject/error fallthrough paths. natural marks a remote hang-up,
// which must not tear down a still-ringing Outgoing slot.
func (s *Session) removeCallLocked(callID protocol.CallID, natural bool) {
	s.dropIncomingLocked(callID)

	if s.display != nil && s.display.DisplayCall().ID == callID {
		clear := true
		switch s.display.(type) {
		case Errored:
			clear = false
		case Outgoing:
			clear = !natural
		}
		if clear {
			s.cancelAutoHangupLocked(callID)
			s.display = nil
		}
	}

	s.updateBlinkLocked()
}

func (s *Session) findIncomingLocked(callID protocol.CallID) (Call, bool) {
	if callID == "" {
		if len(s.incoming) == 0 {
			return Call{}, false
		}
		return s.incoming[0], true
	}
	for _, c := range s.incoming {
		if c.ID == callID {
			return c, true
		}
	}
	return Call{}, false
}

func (s *Session) dropIncomingLocked(callID protocol.CallID) {
	for i, c := range s.incoming {
		if c.ID == callID {
			s.incoming = append(s.incoming[:i], s.incoming[i+1:]...)
			return
		}
	}
}

// shouldBlinkLocked is the single blink predicate: pending invitations or
// a Rejected/Errored slot need attention.
func (s *Session) shouldBlinkLocked() bool {
	if len(s.incoming) > 0 {
		return true
	}
	switch s.display.(type) {
	case Rejected, Errored:
		return true
	}
	return false
}

// updateBlinkLocked drives the blink timer lifecycle from the predicate.
// Every mutation funnels through here so the timer can never leak.
func (s *Session) updateBlinkLocked() {
	if s.shouldBlinkLocked() {
		s.blink.start()
	} else {
		s.blink.halt()
	}
}

func (s *Session) armAutoHangupLocked(callID protocol.CallID) {
	if s.autoHangupAfter <= 0 {
		return
	}
	if s.hangGuard != nil {
		s.hangGuard.timer.Stop()
	}
	s.hangGuard = &hangupGuard{
		callID: callID,
		timer:  time.AfterFunc(s.autoHangupAfter, func() { s.autoHangupExpired(callID) }),
	}
}

func (s *Session) cancelAutoHangupLocked(callID protocol.CallID) {
	if s.hangGuard != nil && s.hangGuard.callID == callID {
		s.hangGuard.timer.Stop()
		s.hangGuard = nil
	}
}

// autoHangupExpired fires when an outgoing call rang for the configured
// duration without an answer: the call is ended on the server and the slot
// shows the auto-hangup error until dismissed.
func (s *Session) autoHangupExpired(callID protocol.CallID) {
	localID, ok := s.identity.ClientID()
	if !ok {
		return
	}

	s.mu.Lock()
	o, isOutgoing := s.display.(Outgoing)
	if !isOutgoing || o.Call.ID != callID {
		s.mu.Unlock()
		return
	}
	s.hangGuard = nil
	s.display = Errored{Call: o.Call, Reason: protocol.CallErrorAutoHangup}
	s.updateBlinkLocked()
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.commander.EndCall(ctx, protocol.CallEnd{
		CallID:         callID,
		EndingClientID: localID,
	}); err != nil {
		log.Printf("console: end unanswered call %s: %v", callID, err)
	}
}

func (s *Session) record(fn func(Recorder) error) {
	if s.recorder == nil {
		return
	}
	if err := fn(s.recorder); err != nil {
		log.Printf("console: record call history: %v", err)
	}
}
