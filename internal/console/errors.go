package console

import "errors"

// User errors: surfaced to the UI immediately, never sent to the server
// and never retried.
var (
	// ErrNotAuthenticated is returned for call actions before login completed.
	ErrNotAuthenticated = errors.New("console: not authenticated")

	// ErrInvalidTarget is returned for an originate with no target at all.
	ErrInvalidTarget = errors.New("console: empty call target")

	// ErrSelfCall is returned when the resolved target is the local client.
	ErrSelfCall = errors.New("console: cannot call own client")

	// ErrSlotOccupied is returned when an action needs the call slot empty
	// but a call is already focused.
	ErrSlotOccupied = errors.New("console: another call is active")

	// ErrActionInFlight is returned when an action is re-triggered while
	// its previous invocation still has an RPC pending.
	ErrActionInFlight = errors.New("console: action already in flight")
)
