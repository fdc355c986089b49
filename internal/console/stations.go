package console

import (
	"sort"
	"sync"

	"github.com/crosswire/intercom/internal/protocol"
)

// Registry tracks the live set of known stations and whether the local
// user currently staffs each one. A station with no occupant is simply
// absent. It also carries the station overrides the call session reads
// when originating a call.
type Registry struct {
	mu            sync.Mutex
	own           map[protocol.StationID]bool
	localPosition protocol.PositionID

	defaultStation   protocol.StationID
	temporaryStation protocol.StationID
}

// NewRegistry returns an empty station registry.
func NewRegistry() *Registry {
	return &Registry{own: make(map[protocol.StationID]bool)}
}

// SetLocalPosition sets the position id ownership is evaluated against.
// Incremental changes applied before the position is known treat every
// station as not-own.
func (r *Registry) SetLocalPosition(pos protocol.PositionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.localPosition = pos
}

// LocalPosition returns the position id set by SetLocalPosition.
func (r *Registry) LocalPosition() protocol.PositionID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.localPosition
}

// ReplaceAll atomically replaces the registry with a full roster push.
func (r *Registry) ReplaceAll(stations []protocol.StationInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.own = make(map[protocol.StationID]bool, len(stations))
	for _, s := range stations {
		r.own[s.ID] = s.Own
	}
}

// ApplyChanges applies incremental changes in order; later changes to the
// same station override earlier ones within the batch. Ownership is
// recomputed against the local position at the moment of application.
// Unknown station ids in handoff or offline changes are no-ops, not errors.
func (r *Registry) ApplyChanges(changes []protocol.StationChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range changes {
		switch c.Kind {
		case protocol.StationOnline:
			r.own[c.StationID] = r.localPosition != "" && c.PositionID == r.localPosition
		case protocol.StationHandoff:
			r.own[c.StationID] = r.localPosition != "" && c.ToPositionID == r.localPosition
		case protocol.StationOffline:
			delete(r.own, c.StationID)
		}
	}
}

// IsOwn reports whether the local user staffs the station. Absent ids are
// not own.
func (r *Registry) IsOwn(id protocol.StationID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.own[id]
}

// Has reports whether the station is known (online) at all.
func (r *Registry) Has(id protocol.StationID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.own[id]
	return ok
}

// OwnedStationIDs returns the ids of all stations the local user staffs,
// sorted for stable iteration.
func (r *Registry) OwnedStationIDs() []protocol.StationID {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []protocol.StationID
	for id, own := range r.own {
		if own {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// List returns every known station sorted by id.
func (r *Registry) List() []protocol.StationInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]protocol.StationInfo, 0, len(r.own))
	for id, own := range r.own {
		out = append(out, protocol.StationInfo{ID: id, Own: own})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SetDefaultStation sets the station attached to originated calls when no
// temporary override is pending. Empty clears it.
func (r *Registry) SetDefaultStation(id protocol.StationID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultStation = id
}

// SetTemporaryStation sets a one-shot station override consumed by the
// next originated call.
func (r *Registry) SetTemporaryStation(id protocol.StationID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.temporaryStation = id
}

// TakeCallStation resolves the station to attach to an originating call:
// the temporary override is consumed if set, otherwise the default applies,
// otherwise the call carries no station.
func (r *Registry) TakeCallStation() protocol.StationID {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.temporaryStation != "" {
		id := r.temporaryStation
		r.temporaryStation = ""
		return id
	}
	return r.defaultStation
}

// Clear drops all stations and the local position. Overrides survive a
// reconnect; they are user configuration, not server state.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.own = make(map[protocol.StationID]bool)
	r.localPosition = ""
}
