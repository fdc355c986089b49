package console

import (
	"sync"

	"github.com/crosswire/intercom/internal/protocol"
)

// Directory tracks the other connected clients visible to this console.
// Entries keep stable append order; Lookup never fails (see below), which
// keeps every label-rendering call site free of missing-client handling.
type Directory struct {
	mu      sync.Mutex
	clients []protocol.ClientInfo
}

// NewDirectory returns an empty client directory.
func NewDirectory() *Directory {
	return &Directory{}
}

// ReplaceAll replaces the directory with a full roster push.
func (d *Directory) ReplaceAll(clients []protocol.ClientInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clients = append([]protocol.ClientInfo(nil), clients...)
}

// Upsert removes any existing entry with the same id and appends the new
// one, so each id appears once and the freshest entry sits last.
func (d *Directory) Upsert(client protocol.ClientInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.removeLocked(client.ID)
	d.clients = append(d.clients, client)
}

// Remove drops the client with the given id, if present.
func (d *Directory) Remove(id protocol.ClientID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.removeLocked(id)
}

func (d *Directory) removeLocked(id protocol.ClientID) {
	for i, c := range d.clients {
		if c.ID == id {
			d.clients = append(d.clients[:i], d.clients[i+1:]...)
			return
		}
	}
}

// Lookup returns the client with the given id. Unknown ids synthesize a
// fallback whose display name is the raw id, so labels degrade instead of
// failing. Deliberate contract: callers never handle a miss.
func (d *Directory) Lookup(id protocol.ClientID) protocol.ClientInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.clients {
		if c.ID == id {
			return c
		}
	}
	return protocol.ClientInfo{ID: id, DisplayName: string(id)}
}

// List returns a copy of the directory in append order.
func (d *Directory) List() []protocol.ClientInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]protocol.ClientInfo(nil), d.clients...)
}

// Len returns the number of known clients.
func (d *Directory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.clients)
}

// Clear empties the directory.
func (d *Directory) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clients = nil
}
