package protocol

import (
	"encoding/json"
	"fmt"
)

// Messages are internally tagged JSON objects: the "type" field names the
// camelCase variant and the payload fields sit alongside it, e.g.
// {"type":"callEnd","callId":"...","endingClientId":"..."}.

// ClientMessage is a message sent from the console to the server.
type ClientMessage interface{ clientMessageTag() string }

// ServerMessage is a message received from the server.
type ServerMessage interface{ serverMessageTag() string }

// Login authenticates the connection. Position is optional; when the
// network reports several matching positions the server answers with a
// loginFailure carrying the candidates.
type Login struct {
	Token    string     `json:"token"`
	Position PositionID `json:"positionId,omitempty"`
}

// Logout ends the session without closing the connection.
type Logout struct{}

// ListClients requests a full clientList push.
type ListClients struct{}

// ListStations requests a full stationList push.
type ListStations struct{}

// LoginFailureReason classifies a rejected login.
type LoginFailureReason string

const (
	LoginFailureUnauthorized      LoginFailureReason = "unauthorized"
	LoginFailureAmbiguousPosition LoginFailureReason = "ambiguousPosition"
	LoginFailureNotOnNetwork      LoginFailureReason = "notOnNetwork"
)

// LoginFailure rejects a Login. Positions is populated for
// ambiguousPosition so the user can pick one and retry.
type LoginFailure struct {
	Reason    LoginFailureReason `json:"reason"`
	Positions []PositionID       `json:"positions,omitempty"`
}

// SessionInfo confirms a login and describes the local session.
type SessionInfo struct {
	Client ClientInfo `json:"client"`
	// Profile is an opaque profile document pushed by the server when the
	// active profile changed; nil means unchanged.
	Profile json.RawMessage `json:"activeProfile,omitempty"`
}

// ClientConnected announces a newly visible client.
type ClientConnected struct {
	Client ClientInfo `json:"client"`
}

// ClientDisconnected announces a client leaving the network.
type ClientDisconnected struct {
	ClientID ClientID `json:"clientId"`
}

// ClientList is a full roster replace.
type ClientList struct {
	Clients []ClientInfo `json:"clients"`
}

// StationList is a full station roster replace.
type StationList struct {
	Stations []StationInfo `json:"stations"`
}

// StationChanges carries incremental station updates, applied in order.
type StationChanges struct {
	Changes []StationChange `json:"changes"`
}

// Disconnected tells the client the server is closing the session.
type Disconnected struct {
	Reason    string       `json:"reason,omitempty"`
	Positions []PositionID `json:"positions,omitempty"`
}

// ErrorReason classifies a session-scoped server error.
type ErrorReason string

const (
	ErrorMalformedMessage  ErrorReason = "malformedMessage"
	ErrorUnexpectedMessage ErrorReason = "unexpectedMessage"
	ErrorInternal          ErrorReason = "internal"
	ErrorRateLimited       ErrorReason = "rateLimited"
	ErrorPeerConnection    ErrorReason = "peerConnection"
	ErrorClientNotFound    ErrorReason = "clientNotFound"
)

// ServerError reports a failure that is not scoped to a single call
// message; ClientID and CallID narrow the subject when known.
type ServerError struct {
	Reason         ErrorReason `json:"reason"`
	Message        string      `json:"message,omitempty"`
	ClientID       ClientID    `json:"clientId,omitempty"`
	CallID         CallID      `json:"callId,omitempty"`
	RetryAfterSecs int         `json:"retryAfterSecs,omitempty"`
}

// Unknown preserves a message whose type tag this client does not handle
// (media negotiation, future extensions). The reconciler ignores it.
type Unknown struct {
	Type string
	Raw  json.RawMessage
}

func (Login) clientMessageTag() string       { return "login" }
func (Logout) clientMessageTag() string      { return "logout" }
func (ListClients) clientMessageTag() string { return "listClients" }
func (ListStations) clientMessageTag() string {
	return "listStations"
}
func (CallInvite) clientMessageTag() string { return "callInvite" }
func (CallAccept) clientMessageTag() string { return "callAccept" }
func (CallEnd) clientMessageTag() string    { return "callEnd" }
func (CallError) clientMessageTag() string  { return "callError" }

func (LoginFailure) serverMessageTag() string       { return "loginFailure" }
func (SessionInfo) serverMessageTag() string        { return "sessionInfo" }
func (ClientConnected) serverMessageTag() string    { return "clientConnected" }
func (ClientDisconnected) serverMessageTag() string { return "clientDisconnected" }
func (ClientList) serverMessageTag() string         { return "clientList" }
func (StationList) serverMessageTag() string        { return "stationList" }
func (StationChanges) serverMessageTag() string     { return "stationChanges" }
func (CallInvite) serverMessageTag() string         { return "callInvite" }
func (CallAccept) serverMessageTag() string         { return "callAccept" }
func (CallEnd) serverMessageTag() string            { return "callEnd" }
func (CallCancelled) serverMessageTag() string      { return "callCancelled" }
func (CallError) serverMessageTag() string          { return "callError" }
func (Disconnected) serverMessageTag() string       { return "disconnected" }
func (ServerError) serverMessageTag() string        { return "error" }
func (u Unknown) serverMessageTag() string          { return u.Type }

// EncodeClientMessage serializes a client message with its type tag.
func EncodeClientMessage(m ClientMessage) ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %s: %w", m.clientMessageTag(), err)
	}
	tag, err := json.Marshal(m.clientMessageTag())
	if err != nil {
		return nil, err
	}
	if len(body) < 2 || body[0] != '{' {
		return nil, fmt.Errorf("protocol: encode %s: payload is not an object", m.clientMessageTag())
	}
	out := make([]byte, 0, len(body)+len(tag)+9)
	out = append(out, `{"type":`...)
	out = append(out, tag...)
	if string(body) != "{}" {
		out = append(out, ',')
		out = append(out, body[1:]...)
	} else {
		out = append(out, '}')
	}
	return out, nil
}

// DecodeServerMessage parses an inbound message. Unhandled type tags decode
// into Unknown rather than failing, so protocol extensions never break the
// event loop.
func DecodeServerMessage(data []byte) (ServerMessage, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("protocol: decode: %w", err)
	}
	if head.Type == "" {
		return nil, fmt.Errorf("protocol: decode: missing type tag")
	}

	switch head.Type {
	case "loginFailure":
		var m LoginFailure
		return m, unmarshalBody(data, head.Type, &m)
	case "sessionInfo":
		var m SessionInfo
		return m, unmarshalBody(data, head.Type, &m)
	case "clientConnected":
		var m ClientConnected
		return m, unmarshalBody(data, head.Type, &m)
	case "clientInfo":
		// Older servers push a bare client info instead of clientConnected.
		var info ClientInfo
		if err := unmarshalBody(data, head.Type, &info); err != nil {
			return nil, err
		}
		return ClientConnected{Client: info}, nil
	case "clientDisconnected":
		var m ClientDisconnected
		return m, unmarshalBody(data, head.Type, &m)
	case "clientList":
		var m ClientList
		return m, unmarshalBody(data, head.Type, &m)
	case "stationList":
		var m StationList
		return m, unmarshalBody(data, head.Type, &m)
	case "stationChanges":
		var m StationChanges
		return m, unmarshalBody(data, head.Type, &m)
	case "callInvite":
		var m CallInvite
		return m, unmarshalBody(data, head.Type, &m)
	case "callAccept":
		var m CallAccept
		return m, unmarshalBody(data, head.Type, &m)
	case "callEnd":
		var m CallEnd
		return m, unmarshalBody(data, head.Type, &m)
	case "callCancelled":
		var m CallCancelled
		return m, unmarshalBody(data, head.Type, &m)
	case "callError":
		var m CallError
		return m, unmarshalBody(data, head.Type, &m)
	case "disconnected":
		var m Disconnected
		return m, unmarshalBody(data, head.Type, &m)
	case "error":
		var m ServerError
		return m, unmarshalBody(data, head.Type, &m)
	default:
		raw := make(json.RawMessage, len(data))
		copy(raw, data)
		return Unknown{Type: head.Type, Raw: raw}, nil
	}
}

func unmarshalBody(data []byte, tag string, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("protocol: decode %s: %w", tag, err)
	}
	return nil
}
