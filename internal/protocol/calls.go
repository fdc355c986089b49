package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// CallID identifies a single call attempt end to end. The wire format is a
// UUID string; new ids are time-ordered (v7).
type CallID string

// NewCallID returns a fresh time-ordered call id.
func NewCallID() CallID {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails if the entropy source does; fall back to v4.
		return CallID(uuid.NewString())
	}
	return CallID(id.String())
}

// CallSource describes where a call originates. ClientID is always set;
// PositionID and StationID narrow the source when known.
type CallSource struct {
	ClientID   ClientID   `json:"clientId"`
	PositionID PositionID `json:"positionId,omitempty"`
	StationID  StationID  `json:"stationId,omitempty"`
}

// Target converts the source into the most specific call target that can
// address it back: station over position over client.
func (s CallSource) Target() CallTarget {
	switch {
	case s.StationID != "":
		return CallTarget{Station: s.StationID}
	case s.PositionID != "":
		return CallTarget{Position: s.PositionID}
	default:
		return CallTarget{Client: s.ClientID}
	}
}

// CallTarget addresses a call. Exactly one field is set.
type CallTarget struct {
	Client   ClientID
	Position PositionID
	Station  StationID
}

// IsZero reports whether no target field is set.
func (t CallTarget) IsZero() bool {
	return t.Client == "" && t.Position == "" && t.Station == ""
}

func (t CallTarget) String() string {
	switch {
	case t.Station != "":
		return string(t.Station)
	case t.Position != "":
		return string(t.Position)
	default:
		return string(t.Client)
	}
}

// MarshalJSON encodes the target as an externally tagged object, e.g.
// {"station":"EDDF_TWR"}.
func (t CallTarget) MarshalJSON() ([]byte, error) {
	switch {
	case t.Station != "":
		return json.Marshal(map[string]StationID{"station": t.Station})
	case t.Position != "":
		return json.Marshal(map[string]PositionID{"position": t.Position})
	case t.Client != "":
		return json.Marshal(map[string]ClientID{"client": t.Client})
	}
	return nil, fmt.Errorf("protocol: empty call target")
}

// UnmarshalJSON decodes the externally tagged form produced by MarshalJSON.
func (t *CallTarget) UnmarshalJSON(data []byte) error {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("protocol: call target: %w", err)
	}
	if len(raw) != 1 {
		return fmt.Errorf("protocol: call target: expected one variant, got %d", len(raw))
	}
	for tag, v := range raw {
		switch tag {
		case "client":
			*t = CallTarget{Client: ClientID(v)}
		case "position":
			*t = CallTarget{Position: PositionID(v)}
		case "station":
			*t = CallTarget{Station: StationID(v)}
		default:
			return fmt.Errorf("protocol: unknown call target kind %q", tag)
		}
	}
	return nil
}

// CallErrorReason classifies a failed call on the wire.
type CallErrorReason string

const (
	CallErrorTargetNotFound   CallErrorReason = "targetNotFound"
	CallErrorCallActive       CallErrorReason = "callActive"
	CallErrorMediaFailure     CallErrorReason = "mediaFailure"
	CallErrorCallFailure      CallErrorReason = "callFailure"
	CallErrorSignalingFailure CallErrorReason = "signalingFailure"
	CallErrorAutoHangup       CallErrorReason = "autoHangup"
	CallErrorOther            CallErrorReason = "other"
)

// CallCancelReason explains why the server cancelled a pending call.
type CallCancelReason string

const (
	CancelAnsweredElsewhere CallCancelReason = "answeredElsewhere"
	CancelCallerCancelled   CallCancelReason = "callerCancelled"
	CancelAllRejected       CallCancelReason = "allRejected"
	CancelDisconnected      CallCancelReason = "disconnected"
	CancelErrored           CallCancelReason = "errored"
)

// CallInvite starts a call. Sent by the originating client and fanned out
// by the server to every client matching the target.
type CallInvite struct {
	CallID   CallID     `json:"callId"`
	Source   CallSource `json:"source"`
	Target   CallTarget `json:"target"`
	Priority bool       `json:"prio,omitempty"`
}

// CallAccept answers a pending invite.
type CallAccept struct {
	CallID            CallID   `json:"callId"`
	AcceptingClientID ClientID `json:"acceptingClientId"`
}

// CallEnd hangs up an established or pending call.
type CallEnd struct {
	CallID         CallID   `json:"callId"`
	EndingClientID ClientID `json:"endingClientId"`
}

// CallCancelled informs an invited client that a pending invite is void.
type CallCancelled struct {
	CallID CallID           `json:"callId"`
	Reason CallCancelReason `json:"reason"`
	// ErrorReason is set when Reason is CancelErrored.
	ErrorReason CallErrorReason `json:"errorReason,omitempty"`
}

// CallError reports a call-scoped failure in either direction.
type CallError struct {
	CallID  CallID          `json:"callId"`
	Reason  CallErrorReason `json:"reason"`
	Message string          `json:"message,omitempty"`
}
