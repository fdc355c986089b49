package reconcile

import (
	"log"

	"github.com/crosswire/intercom/internal/console"
	"github.com/crosswire/intercom/internal/protocol"
)

// handleMessage applies one decoded server message to the console state.
func (r *Reconciler) handleMessage(msg protocol.ServerMessage) {
	switch m := msg.(type) {
	case protocol.SessionInfo:
		// Mid-session push: refreshed client info or a profile change.
		r.identity.SetAuthenticated(m.Client)
		r.stations.SetLocalPosition(m.Client.PositionID)
		if m.Profile != nil {
			r.mu.Lock()
			r.profile = m.Profile
			r.mu.Unlock()
		}

	case protocol.ClientConnected:
		r.directory.Upsert(m.Client)

	case protocol.ClientDisconnected:
		r.directory.Remove(m.ClientID)
		r.session.RemoveCallsFrom(m.ClientID)

	case protocol.ClientList:
		r.directory.ReplaceAll(m.Clients)

	case protocol.StationList:
		r.stations.ReplaceAll(m.Stations)

	case protocol.StationChanges:
		r.stations.ApplyChanges(m.Changes)

	case protocol.CallInvite:
		r.session.HandleInvite(console.Call{
			ID:       m.CallID,
			Source:   m.Source,
			Target:   m.Target,
			Priority: m.Priority,
		})

	case protocol.CallAccept:
		r.session.HandleCallAccept(m.CallID, m.AcceptingClientID)

	case protocol.CallEnd:
		r.session.HandleCallEnd(m.CallID)

	case protocol.CallCancelled:
		r.handleCancelled(m)

	case protocol.CallError:
		r.session.HandleCallError(m.CallID, m.Reason, m.Message)

	case protocol.ServerError:
		r.handleServerError(m)

	case protocol.Disconnected:
		// The adapter surfaces the transport-level consequence; nothing
		// to do here beyond noting the reason.
		log.Printf("reconcile: server closing session: %s", m.Reason)

	case protocol.LoginFailure:
		log.Printf("reconcile: unexpected mid-session login failure: %s", m.Reason)

	case protocol.Unknown:
		// Media negotiation and future extensions pass through untouched.

	default:
		log.Printf("reconcile: unhandled message %T", msg)
	}
}

// handleCancelled maps a cancellation of a pending call onto the session
// transition its reason calls for.
func (r *Reconciler) handleCancelled(m protocol.CallCancelled) {
	switch m.Reason {
	case protocol.CancelAnsweredElsewhere, protocol.CancelCallerCancelled:
		r.session.HandleCallEnd(m.CallID)
	case protocol.CancelAllRejected:
		r.session.HandleReject(m.CallID)
	case protocol.CancelDisconnected:
		r.session.HandleForceEnd(m.CallID)
	case protocol.CancelErrored:
		reason := m.ErrorReason
		if reason == "" {
			reason = protocol.CallErrorOther
		}
		r.session.HandleCallError(m.CallID, reason, "")
	default:
		log.Printf("reconcile: unknown cancel reason %q, forcing call end", m.Reason)
		r.session.HandleForceEnd(m.CallID)
	}
}

// handleServerError applies a session-scoped error. Only two reasons
// mutate state; the rest are logged.
func (r *Reconciler) handleServerError(m protocol.ServerError) {
	switch m.Reason {
	case protocol.ErrorClientNotFound:
		if m.ClientID != "" {
			r.directory.Remove(m.ClientID)
			r.session.RemoveCallsFrom(m.ClientID)
		}
	case protocol.ErrorRateLimited:
		if m.CallID != "" {
			r.session.HandleForceEnd(m.CallID)
		}
		log.Printf("reconcile: rate limited, retry after %ds", m.RetryAfterSecs)
	default:
		log.Printf("reconcile: server error %s: %s", m.Reason, m.Message)
	}
}
