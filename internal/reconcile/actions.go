package reconcile

import (
	"context"
	"fmt"

	"github.com/crosswire/intercom/internal/console"
	"github.com/crosswire/intercom/internal/protocol"
)

// User actions delegate to the call session; debounce and precondition
// checks live there. ChoosePosition is the only action the reconciler
// answers itself.

// Originate starts a call to the target.
func (r *Reconciler) Originate(ctx context.Context, target protocol.CallTarget, priority bool) (protocol.CallID, error) {
	return r.session.Originate(ctx, target, priority)
}

// Accept answers a queued invitation; an empty id takes the oldest.
func (r *Reconciler) Accept(ctx context.Context, callID protocol.CallID) (bool, error) {
	return r.session.Accept(ctx, callID)
}

// End hangs up the focused call.
func (r *Reconciler) End(ctx context.Context) (bool, error) {
	return r.session.End(ctx)
}

// Dismiss clears a rejected or errored slot.
func (r *Reconciler) Dismiss() bool {
	return r.session.Dismiss()
}

// SetTemporaryStation overrides the station attached to the next
// originated call only.
func (r *Reconciler) SetTemporaryStation(id protocol.StationID) {
	r.stations.SetTemporaryStation(id)
}

// HandleMediaState feeds a media-layer connection state change for a
// call into the session.
func (r *Reconciler) HandleMediaState(callID protocol.CallID, state console.ConnState) {
	r.session.HandleConnState(callID, state)
}

// ChoosePosition resolves an ambiguous login by picking one of the
// offered positions. Valid only in the ambiguous-position phase.
func (r *Reconciler) ChoosePosition(pos protocol.PositionID) error {
	r.mu.Lock()
	if r.phase != PhaseAmbiguousPosition {
		r.mu.Unlock()
		return fmt.Errorf("reconcile: no position choice pending")
	}
	valid := len(r.positions) == 0
	for _, p := range r.positions {
		if p == pos {
			valid = true
			break
		}
	}
	r.mu.Unlock()
	if !valid {
		return fmt.Errorf("reconcile: position %s is not among the offered choices", pos)
	}

	select {
	case r.chosen <- pos:
		return nil
	default:
		return fmt.Errorf("reconcile: a position choice is already pending")
	}
}
