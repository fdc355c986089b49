package reconcile

import (
	"github.com/crosswire/intercom/internal/console"
	"github.com/crosswire/intercom/internal/protocol"
)

// CallView is the focused call slot flattened for observers.
type CallView struct {
	ID       protocol.CallID          `json:"id"`
	State    string                   `json:"state"` // outgoing, accepted, rejected, errored
	Label    string                   `json:"label"`
	Conn     console.ConnState        `json:"conn,omitempty"`
	Reason   protocol.CallErrorReason `json:"reason,omitempty"`
	Message  string                   `json:"message,omitempty"`
	Priority bool                     `json:"priority,omitempty"`
}

// IncomingView is a queued invitation flattened for observers.
type IncomingView struct {
	ID       protocol.CallID `json:"id"`
	Label    string          `json:"label"`
	Priority bool            `json:"priority,omitempty"`
}

// Snapshot is a point-in-time view of the whole console state.
type Snapshot struct {
	Phase      Phase                  `json:"phase"`
	Client     protocol.ClientInfo    `json:"client"`
	Positions  []protocol.PositionID  `json:"positions,omitempty"`
	Display    *CallView              `json:"display,omitempty"`
	Incoming   []IncomingView         `json:"incoming"`
	Stations   []protocol.StationInfo `json:"stations"`
	Clients    []protocol.ClientInfo  `json:"clients"`
	Blink      bool                   `json:"blink"`
	BlinkPhase bool                   `json:"blinkPhase"`
}

// Snapshot captures the current console state for the dashboard.
func (r *Reconciler) Snapshot() Snapshot {
	snap := Snapshot{
		Phase:      r.Phase(),
		Client:     r.identity.Info(),
		Positions:  r.PositionChoices(),
		Stations:   r.stations.List(),
		Clients:    r.directory.List(),
		Blink:      r.session.BlinkActive(),
		BlinkPhase: r.session.BlinkPhase(),
		Incoming:   []IncomingView{},
	}

	for _, c := range r.session.IncomingCalls() {
		snap.Incoming = append(snap.Incoming, IncomingView{
			ID:       c.ID,
			Label:    r.callerLabel(c.Source),
			Priority: c.Priority,
		})
	}

	switch d := r.session.Display().(type) {
	case console.Outgoing:
		snap.Display = &CallView{
			ID:       d.Call.ID,
			State:    "outgoing",
			Label:    r.targetLabel(d.Call.Target),
			Conn:     d.Conn,
			Priority: d.Call.Priority,
		}
	case console.Accepted:
		label := r.targetLabel(d.Call.Target)
		if label == "" {
			label = r.callerLabel(d.Call.Source)
		}
		snap.Display = &CallView{
			ID:       d.Call.ID,
			State:    "accepted",
			Label:    label,
			Conn:     d.Conn,
			Priority: d.Call.Priority,
		}
	case console.Rejected:
		snap.Display = &CallView{
			ID:    d.Call.ID,
			State: "rejected",
			Label: r.targetLabel(d.Call.Target),
		}
	case console.Errored:
		label := r.targetLabel(d.Call.Target)
		if label == "" {
			label = r.callerLabel(d.Call.Source)
		}
		snap.Display = &CallView{
			ID:      d.Call.ID,
			State:   "errored",
			Label:   label,
			Reason:  d.Reason,
			Message: d.Message,
		}
	}

	return snap
}

// callerLabel names the far side of an incoming call: position first,
// then the directory display name.
func (r *Reconciler) callerLabel(source protocol.CallSource) string {
	if source.PositionID != "" {
		return string(source.PositionID)
	}
	return r.directory.Lookup(source.ClientID).DisplayName
}

// targetLabel names the far side of an outgoing call. Client targets go
// through the directory for a display name.
func (r *Reconciler) targetLabel(target protocol.CallTarget) string {
	if target.Client != "" {
		return r.directory.Lookup(target.Client).DisplayName
	}
	return target.String()
}
