package signaling

import (
	"context"
	"fmt"
	"sync"

	"github.com/crosswire/intercom/internal/protocol"
)

// MockAdapter implements Adapter for testing. It records sent messages
// and allows simulating server traffic via the Simulate helpers.
type MockAdapter struct {
	mu        sync.Mutex
	connected bool
	closed    bool
	events    chan Event
	sent      []protocol.ClientMessage
	position  protocol.PositionID

	// ConnectErr, when set, is returned by the next Connect call.
	ConnectErr error
	// SendErr, when set, is returned by every Send call.
	SendErr error
}

// NewMockAdapter creates a MockAdapter with a buffered event channel.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{events: make(chan Event, 100)}
}

// Connect marks the adapter as connected.
func (m *MockAdapter) Connect(ctx context.Context, position protocol.PositionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("mock adapter: already closed")
	}
	if m.ConnectErr != nil {
		err := m.ConnectErr
		m.ConnectErr = nil
		return err
	}
	m.connected = true
	m.position = position
	return nil
}

// Listen returns the event channel. Must be called after Connect.
func (m *MockAdapter) Listen(ctx context.Context) (<-chan Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return nil, fmt.Errorf("mock adapter: not connected")
	}
	return m.events, nil
}

// Send records the outbound message.
func (m *MockAdapter) Send(ctx context.Context, msg protocol.ClientMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return fmt.Errorf("mock adapter: not connected")
	}
	if m.SendErr != nil {
		return m.SendErr
	}
	m.sent = append(m.sent, msg)
	return nil
}

// Close marks the adapter closed and closes the event channel.
func (m *MockAdapter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.connected = false
	close(m.events)
	return nil
}

// SimulateEvent injects an event as if the server produced it.
func (m *MockAdapter) SimulateEvent(ev Event) {
	m.events <- ev
}

// SimulateMessage injects a server message event.
func (m *MockAdapter) SimulateMessage(msg protocol.ServerMessage) {
	m.events <- Message{Msg: msg}
}

// SimulateConnected injects a completed login.
func (m *MockAdapter) SimulateConnected(client protocol.ClientInfo) {
	m.events <- Connected{Client: client}
}

// Sent returns a copy of all recorded outbound messages.
func (m *MockAdapter) Sent() []protocol.ClientMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]protocol.ClientMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

// LastPosition returns the position passed to the most recent Connect.
func (m *MockAdapter) LastPosition() protocol.PositionID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

// Reset clears recorded messages.
func (m *MockAdapter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
}
