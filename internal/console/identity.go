// Package console holds the dispatcher console's core state: who the local
// user is, which stations exist and who staffs them, which clients are
// reachable, and the call session state machine that decides what the user
// may do at any moment. Everything else in the repository is transport or
// presentation glue over this package.
package console

import (
	"sync"

	"github.com/crosswire/intercom/internal/protocol"
)

// AuthPhase tracks where the local user is in the login lifecycle.
type AuthPhase string

const (
	AuthLoading         AuthPhase = "loading"
	AuthAuthenticated   AuthPhase = "authenticated"
	AuthUnauthenticated AuthPhase = "unauthenticated"
)

// Identity holds the local user's durable identifier and session info.
// The client id is set once per login and cleared on logout.
type Identity struct {
	mu    sync.Mutex
	phase AuthPhase
	info  protocol.ClientInfo
}

// NewIdentity returns an Identity in the loading phase.
func NewIdentity() *Identity {
	return &Identity{phase: AuthLoading}
}

// SetAuthenticated records a completed login.
func (i *Identity) SetAuthenticated(info protocol.ClientInfo) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.phase = AuthAuthenticated
	i.info = info
}

// SetUnauthenticated clears the session on logout or disconnect.
func (i *Identity) SetUnauthenticated() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.phase = AuthUnauthenticated
	i.info = protocol.ClientInfo{}
}

// Phase returns the current auth phase.
func (i *Identity) Phase() AuthPhase {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.phase
}

// ClientID returns the local client id. ok is false until authenticated.
func (i *Identity) ClientID() (protocol.ClientID, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.info.ID, i.phase == AuthAuthenticated && i.info.ID != ""
}

// Info returns the session client info as of the last login.
func (i *Identity) Info() protocol.ClientInfo {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.info
}
