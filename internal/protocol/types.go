// Package protocol defines the wire types for the intercom signaling
// protocol: JSON messages exchanged with the signaling server over a
// single duplex connection.
package protocol

import (
	"encoding/json"
	"fmt"
)

// ClientID identifies a connected network client (CID).
type ClientID string

// PositionID identifies a logical controller position.
type PositionID string

// StationID identifies a physical station (radio position).
type StationID string

// ClientInfo describes a connected client as reported by the server.
type ClientInfo struct {
	ID          ClientID   `json:"id"`
	DisplayName string     `json:"displayName"`
	Frequency   string     `json:"frequency"`
	PositionID  PositionID `json:"positionId,omitempty"`
}

// StationInfo is an entry of a full station roster push. Own is true when
// the station is staffed by the local user's position.
type StationInfo struct {
	ID  StationID `json:"id"`
	Own bool      `json:"own"`
}

// StationChangeKind discriminates StationChange payloads.
type StationChangeKind string

const (
	StationOnline  StationChangeKind = "online"
	StationHandoff StationChangeKind = "handoff"
	StationOffline StationChangeKind = "offline"
)

// StationChange is an incremental station roster update. Exactly one of the
// three payload shapes is populated, selected by Kind:
//
//	online:  StationID, PositionID
//	handoff: StationID, FromPositionID, ToPositionID
//	offline: StationID
type StationChange struct {
	Kind           StationChangeKind
	StationID      StationID
	PositionID     PositionID
	FromPositionID PositionID
	ToPositionID   PositionID
}

type stationOnlinePayload struct {
	StationID  StationID  `json:"stationId"`
	PositionID PositionID `json:"positionId"`
}

type stationHandoffPayload struct {
	StationID      StationID  `json:"stationId"`
	FromPositionID PositionID `json:"fromPositionId"`
	ToPositionID   PositionID `json:"toPositionId"`
}

type stationOfflinePayload struct {
	StationID StationID `json:"stationId"`
}

// MarshalJSON encodes the change as an externally tagged object, e.g.
// {"online":{"stationId":"EDDF_TWR","positionId":"EDDF_S_TWR"}}.
func (c StationChange) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case StationOnline:
		return json.Marshal(map[string]stationOnlinePayload{
			string(StationOnline): {StationID: c.StationID, PositionID: c.PositionID},
		})
	case StationHandoff:
		return json.Marshal(map[string]stationHandoffPayload{
			string(StationHandoff): {
				StationID:      c.StationID,
				FromPositionID: c.FromPositionID,
				ToPositionID:   c.ToPositionID,
			},
		})
	case StationOffline:
		return json.Marshal(map[string]stationOfflinePayload{
			string(StationOffline): {StationID: c.StationID},
		})
	}
	return nil, fmt.Errorf("protocol: unknown station change kind %q", c.Kind)
}

// UnmarshalJSON decodes the externally tagged form produced by MarshalJSON.
func (c *StationChange) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("protocol: station change: %w", err)
	}
	if len(raw) != 1 {
		return fmt.Errorf("protocol: station change: expected one variant, got %d", len(raw))
	}
	for tag, payload := range raw {
		switch StationChangeKind(tag) {
		case StationOnline:
			var p stationOnlinePayload
			if err := json.Unmarshal(payload, &p); err != nil {
				return fmt.Errorf("protocol: station online: %w", err)
			}
			*c = StationChange{Kind: StationOnline, StationID: p.StationID, PositionID: p.PositionID}
		case StationHandoff:
			var p stationHandoffPayload
			if err := json.Unmarshal(payload, &p); err != nil {
				return fmt.Errorf("protocol: station handoff: %w", err)
			}
			*c = StationChange{
				Kind:           StationHandoff,
				StationID:      p.StationID,
				FromPositionID: p.FromPositionID,
				ToPositionID:   p.ToPositionID,
			}
		case StationOffline:
			var p stationOfflinePayload
			if err := json.Unmarshal(payload, &p); err != nil {
				return fmt.Errorf("protocol: station offline: %w", err)
			}
			*c = StationChange{Kind: StationOffline, StationID: p.StationID}
		default:
			return fmt.Errorf("protocol: unknown station change kind %q", tag)
		}
	}
	return nil
}
