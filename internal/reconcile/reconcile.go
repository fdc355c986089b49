// Package reconcile drives the console lifecycle: it pumps signaling
// events into the console state and hosts the user-action surface.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/crosswire/intercom/internal/console"
	"github.com/crosswire/intercom/internal/protocol"
	"github.com/crosswire/intercom/internal/signaling"
)

// Phase is the connection lifecycle state. Connecting covers both the
// initial handshake and reconnects in progress.
type Phase string

const (
	PhaseDisconnected      Phase = "disconnected"
	PhaseConnecting        Phase = "connecting"
	PhaseConnected         Phase = "connected"
	PhaseAmbiguousPosition Phase = "ambiguousPosition"
)

// HistoryStore is the slice of the call history log the reconciler
// needs: it clears the log when the session ends.
type HistoryStore interface {
	Clear() error
}

// ReconcilerOpts holds parameters for creating a Reconciler.
type ReconcilerOpts struct {
	Adapter   signaling.Adapter
	Identity  *console.Identity
	Stations  *console.Registry
	Directory *console.Directory
	Session   *console.Session
	History   HistoryStore // optional
	Position  protocol.PositionID
	// ResyncCron is a 5-field cron expression for periodic full roster
	// refreshes; empty disables.
	ResyncCron string
	Out        io.Writer // defaults to os.Stdout
}

// Reconciler applies inbound events to the console state, one at a
// time in arrival order, and issues outbound RPCs for user actions.
type Reconciler struct {
	adapter   signaling.Adapter
	identity  *console.Identity
	stations  *console.Registry
	directory *console.Directory
	session   *console.Session
	history   HistoryStore
	resync    string
	out       io.Writer

	mu        sync.Mutex
	phase     Phase
	position  protocol.PositionID
	positions []protocol.PositionID
	profile   json.RawMessage

	chosen chan protocol.PositionID
}

// NewReconciler creates a Reconciler with the given collaborators.
func NewReconciler(opts ReconcilerOpts) (*Reconciler, error) {
	if opts.Adapter == nil {
		return nil, fmt.Errorf("reconcile: adapter is required")
	}
	if opts.Identity == nil {
		return nil, fmt.Errorf("reconcile: identity is required")
	}
	if opts.Stations == nil {
		return nil, fmt.Errorf("reconcile: station registry is required")
	}
	if opts.Directory == nil {
		return nil, fmt.Errorf("reconcile: client directory is required")
	}
	if opts.Session == nil {
		return nil, fmt.Errorf("reconcile: call session is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Reconciler{
		adapter:   opts.Adapter,
		identity:  opts.Identity,
		stations:  opts.Stations,
		directory: opts.Directory,
		session:   opts.Session,
		history:   opts.History,
		resync:    opts.ResyncCron,
		position:  opts.Position,
		out:       out,
		phase:     PhaseDisconnected,
		chosen:    make(chan protocol.PositionID, 1),
	}, nil
}

// Phase returns the current lifecycle phase.
func (r *Reconciler) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// PositionChoices returns the candidate positions offered by the server
// while in the ambiguous-position phase.
func (r *Reconciler) PositionChoices() []protocol.PositionID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]protocol.PositionID(nil), r.positions...)
}

// Profile returns the active voice profile document, nil when none.
func (r *Reconciler) Profile() json.RawMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.profile
}

// Run connects the adapter and blocks pumping events until the context
// is cancelled or the transport gives up. When the login is ambiguous it
// waits for ChoosePosition before retrying.
func (r *Reconciler) Run(ctx context.Context) error {
	if r.resync != "" {
		go r.runResyncScheduler(ctx)
	}

	for {
		r.setPhase(PhaseConnecting)
		fmt.Fprintf(r.out, "Connecting to intercom server...\n")

		err := r.adapter.Connect(ctx, r.currentPosition())
		if err != nil {
			var ape *signaling.AmbiguousPositionError
			if errors.As(err, &ape) {
				if !r.awaitPositionChoice(ctx, ape.Positions) {
					return nil
				}
				continue
			}
			return fmt.Errorf("reconcile: connect: %w", err)
		}

		events, err := r.adapter.Listen(ctx)
		if err != nil {
			return fmt.Errorf("reconcile: listen: %w", err)
		}

		if !r.pump(ctx, events) {
			fmt.Fprintf(r.out, "Intercom console stopped\n")
			return nil
		}

		// The event stream ended in the ambiguous-position phase; wait
		// for a choice and reconnect.
		if !r.awaitPositionChoice(ctx, r.PositionChoices()) {
			return nil
		}
	}
}

// pump applies events until the channel closes or the context ends.
// It reports whether Run should reconnect (ambiguous-position retry).
func (r *Reconciler) pump(ctx context.Context, events <-chan signaling.Event) bool {
	for {
		select {
		case <-ctx.Done():
			r.leaveConnected()
			r.setPhase(PhaseDisconnected)
			if err := r.adapter.Close(); err != nil {
				log.Printf("reconcile: close adapter: %v", err)
			}
			return false
		case ev, ok := <-events:
			if !ok {
				if r.Phase() == PhaseAmbiguousPosition {
					return true
				}
				r.leaveConnected()
				r.setPhase(PhaseDisconnected)
				return false
			}
			r.HandleEvent(ctx, ev)
		}
	}
}

// awaitPositionChoice parks in the ambiguous-position phase until the
// user picks one of the offered positions. Reports false when the
// context ended instead.
func (r *Reconciler) awaitPositionChoice(ctx context.Context, positions []protocol.PositionID) bool {
	r.mu.Lock()
	r.phase = PhaseAmbiguousPosition
	r.positions = positions
	r.mu.Unlock()
	fmt.Fprintf(r.out, "Login matches %d positions, waiting for a choice\n", len(positions))

	select {
	case <-ctx.Done():
		return false
	case pos := <-r.chosen:
		r.mu.Lock()
		r.position = pos
		r.positions = nil
		r.mu.Unlock()
		return true
	}
}

// HandleEvent applies one signaling event to the console state. Events
// must be delivered in transport order; each is processed to completion.
func (r *Reconciler) HandleEvent(ctx context.Context, ev signaling.Event) {
	switch e := ev.(type) {
	case signaling.Connected:
		r.identity.SetAuthenticated(e.Client)
		r.stations.SetLocalPosition(e.Client.PositionID)
		r.mu.Lock()
		r.phase = PhaseConnected
		if e.Profile != nil {
			r.profile = e.Profile
		}
		r.mu.Unlock()
		fmt.Fprintf(r.out, "Logged in as %s (%s)\n", e.Client.DisplayName, e.Client.PositionID)

	case signaling.Reconnecting:
		if r.Phase() == PhaseConnected {
			r.leaveConnected()
		}
		r.setPhase(PhaseConnecting)

	case signaling.Disconnected:
		r.leaveConnected()
		r.mu.Lock()
		r.phase = PhaseDisconnected
		r.positions = e.Positions
		r.mu.Unlock()
		if e.Reason != "" {
			fmt.Fprintf(r.out, "Disconnected: %s\n", e.Reason)
		}

	case signaling.AmbiguousPosition:
		r.leaveConnected()
		r.mu.Lock()
		r.phase = PhaseAmbiguousPosition
		r.positions = e.Positions
		r.mu.Unlock()

	case signaling.Message:
		r.handleMessage(e.Msg)
	}
}

// leaveConnected performs the full reset that leaving the connected
// phase requires: session, rosters, identity, history, profile.
func (r *Reconciler) leaveConnected() {
	r.session.Reset()
	r.stations.Clear()
	r.directory.Clear()
	r.identity.SetUnauthenticated()
	r.mu.Lock()
	r.profile = nil
	r.mu.Unlock()
	if r.history != nil {
		if err := r.history.Clear(); err != nil {
			log.Printf("reconcile: clear call history: %v", err)
		}
	}
}

func (r *Reconciler) setPhase(p Phase) {
	r.mu.Lock()
	r.phase = p
	r.mu.Unlock()
}

func (r *Reconciler) currentPosition() protocol.PositionID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.position
}
