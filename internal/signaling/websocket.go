package signaling

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/crosswire/intercom/internal/protocol"
	"github.com/gorilla/websocket"
)

// TokenFunc supplies the login token. It is called on every connection
// attempt so a rotated token file takes effect without a restart.
type TokenFunc func() (string, error)

// AmbiguousPositionError is returned by Connect when the token maps to
// several positions and the server needs an explicit choice.
type AmbiguousPositionError struct {
	Positions []protocol.PositionID
}

func (e *AmbiguousPositionError) Error() string {
	return fmt.Sprintf("signaling: token matches %d positions, pick one", len(e.Positions))
}

// LoginError is returned by Connect when the server rejects the login.
type LoginError struct {
	Reason string
}

func (e *LoginError) Error() string {
	return fmt.Sprintf("signaling: login rejected: %s", e.Reason)
}

// WSOpts holds parameters for creating a WSAdapter.
type WSOpts struct {
	URL                  string
	Token                TokenFunc
	MaxReconnectAttempts int               // 0 means the default of 5
	HandshakeTimeout     time.Duration     // 0 means 10s
	Dialer               *websocket.Dialer // optional, defaults to websocket.DefaultDialer
}

// WSAdapter implements Adapter over a websocket connection. It logs in
// on Connect, decodes server frames into events, and redials with
// backoff when the transport drops.
type WSAdapter struct {
	url         string
	token       TokenFunc
	maxAttempts int
	hsTimeout   time.Duration
	dialer      *websocket.Dialer

	mu       sync.Mutex
	conn     *websocket.Conn
	position protocol.PositionID
	welcome  *Connected
	closed   bool
}

// NewWSAdapter creates a WSAdapter. It does not connect.
func NewWSAdapter(opts WSOpts) (*WSAdapter, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("signaling: url is required")
	}
	if opts.Token == nil {
		return nil, fmt.Errorf("signaling: token func is required")
	}
	if opts.MaxReconnectAttempts == 0 {
		opts.MaxReconnectAttempts = 5
	}
	if opts.HandshakeTimeout == 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	return &WSAdapter{
		url:         opts.URL,
		token:       opts.Token,
		maxAttempts: opts.MaxReconnectAttempts,
		hsTimeout:   opts.HandshakeTimeout,
		dialer:      opts.Dialer,
	}, nil
}

// Connect dials the server and performs the login handshake. On success
// the resulting session info is delivered as the first event from Listen.
func (a *WSAdapter) Connect(ctx context.Context, position protocol.PositionID) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return fmt.Errorf("signaling: adapter is closed")
	}
	a.position = position
	a.mu.Unlock()

	conn, welcome, err := a.dialAndLogin(ctx, position)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.conn = conn
	a.welcome = welcome
	a.mu.Unlock()
	return nil
}

// dialAndLogin opens a websocket, sends the login message, and waits for
// the server's verdict.
func (a *WSAdapter) dialAndLogin(ctx context.Context, position protocol.PositionID) (*websocket.Conn, *Connected, error) {
	token, err := a.token()
	if err != nil {
		return nil, nil, fmt.Errorf("signaling: load token: %w", err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, a.hsTimeout)
	defer cancel()
	conn, _, err := a.dialer.DialContext(dialCtx, a.url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("signaling: dial %s: %w", a.url, err)
	}

	login := protocol.Login{Token: token, Position: position}
	data, err := protocol.EncodeClientMessage(login)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("signaling: send login: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(a.hsTimeout))
	_, frame, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("signaling: await login reply: %w", err)
	}
	conn.SetReadDeadline(time.Time{})

	msg, err := protocol.DecodeServerMessage(frame)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	switch m := msg.(type) {
	case protocol.SessionInfo:
		return conn, &Connected{Client: m.Client, Profile: m.Profile}, nil
	case protocol.LoginFailure:
		conn.Close()
		if m.Reason == protocol.LoginFailureAmbiguousPosition {
			return nil, nil, &AmbiguousPositionError{Positions: m.Positions}
		}
		return nil, nil, &LoginError{Reason: string(m.Reason)}
	default:
		conn.Close()
		return nil, nil, fmt.Errorf("signaling: unexpected login reply %T", msg)
	}
}

// Listen returns the event channel and starts the read pump. The first
// event is the Connected result of the preceding Connect call.
func (a *WSAdapter) Listen(ctx context.Context) (<-chan Event, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn == nil {
		return nil, fmt.Errorf("signaling: not connected")
	}
	events := make(chan Event, 64)
	welcome := a.welcome
	a.welcome = nil
	go a.readPump(ctx, welcome, events)
	return events, nil
}

// readPump decodes frames into events and redials when the transport
// drops. It owns the events channel.
func (a *WSAdapter) readPump(ctx context.Context, welcome *Connected, events chan<- Event) {
	defer close(events)

	if welcome != nil {
		if !emit(ctx, events, *welcome) {
			return
		}
	}

	for {
		a.mu.Lock()
		conn := a.conn
		closed := a.closed
		a.mu.Unlock()
		if closed || conn == nil || ctx.Err() != nil {
			return
		}

		_, frame, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || a.isClosed() {
				return
			}
			if !a.reconnect(ctx, events) {
				return
			}
			continue
		}

		msg, err := protocol.DecodeServerMessage(frame)
		if err != nil {
			log.Printf("signaling: dropping undecodable frame: %v", err)
			continue
		}
		if !emit(ctx, events, Message{Msg: msg}) {
			return
		}
	}
}

// reconnect redials with backoff. It reports whether the pump should
// keep reading; false means a Disconnected event was emitted (or the
// context ended) and the pump must stop.
func (a *WSAdapter) reconnect(ctx context.Context, events chan<- Event) bool {
	a.mu.Lock()
	position := a.position
	if a.conn != nil {
		a.conn.Close()
		a.conn = nil
	}
	a.mu.Unlock()

	backoff := time.Second
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		if !emit(ctx, events, Reconnecting{Attempt: attempt}) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}

		conn, welcome, err := a.dialAndLogin(ctx, position)
		if err != nil {
			if ape, ok := err.(*AmbiguousPositionError); ok {
				emit(ctx, events, AmbiguousPosition{Positions: ape.Positions})
				return false
			}
			if le, ok := err.(*LoginError); ok {
				emit(ctx, events, Disconnected{Reason: le.Reason})
				return false
			}
			log.Printf("signaling: reconnect attempt %d/%d failed: %v", attempt, a.maxAttempts, err)
			continue
		}

		a.mu.Lock()
		if a.closed {
			a.mu.Unlock()
			conn.Close()
			return false
		}
		a.conn = conn
		a.mu.Unlock()
		return emit(ctx, events, *welcome)
	}

	emit(ctx, events, Disconnected{Reason: "reconnect attempts exhausted"})
	return false
}

// Send encodes and writes a client message.
func (a *WSAdapter) Send(ctx context.Context, msg protocol.ClientMessage) error {
	data, err := protocol.EncodeClientMessage(msg)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn == nil {
		return fmt.Errorf("signaling: not connected")
	}
	if deadline, ok := ctx.Deadline(); ok {
		a.conn.SetWriteDeadline(deadline)
	}
	if err := a.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("signaling: send: %w", err)
	}
	return nil
}

// Close shuts the connection down. The read pump closes the event
// channel shortly after.
func (a *WSAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	if a.conn != nil {
		err := a.conn.Close()
		a.conn = nil
		return err
	}
	return nil
}

func (a *WSAdapter) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

func emit(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
