package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/crosswire/intercom/internal/protocol"
	"github.com/gorilla/websocket"
)

// loginServer runs a websocket endpoint that answers the first frame of
// every connection with reply, then hands the connection to after.
func loginServer(t *testing.T, reply string, after func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, []byte(reply)); err != nil {
			return
		}
		if after != nil {
			after(conn)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func staticToken(token string) TokenFunc {
	return func() (string, error) { return token, nil }
}

const sessionInfoFrame = `{"type":"sessionInfo","client":{"id":"100","displayName":"Alice","frequency":"118.700","positionId":"EDDF_S_TWR"}}`

func TestNewWSAdapter_Validation(t *testing.T) {
	if _, err := NewWSAdapter(WSOpts{Token: staticToken("t")}); err == nil {
		t.Error("expected error for missing url")
	}
	if _, err := NewWSAdapter(WSOpts{URL: "ws://x"}); err == nil {
		t.Error("expected error for missing token func")
	}
}

func TestWSAdapter_ConnectAndListen(t *testing.T) {
	srv := loginServer(t, sessionInfoFrame, func(conn *websocket.Conn) {
		frame := `{"type":"clientList","clients":[{"id":"200","displayName":"Bob","frequency":"121.900"}]}`
		conn.WriteMessage(websocket.TextMessage, []byte(frame))
		time.Sleep(100 * time.Millisecond)
	})

	a, err := NewWSAdapter(WSOpts{URL: wsURL(srv), Token: staticToken("secret")})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Connect(ctx, "EDDF_S_TWR"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	events, err := a.Listen(ctx)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ev := <-events
	conn, ok := ev.(Connected)
	if !ok {
		t.Fatalf("first event = %T, want Connected", ev)
	}
	if conn.Client.ID != "100" || conn.Client.PositionID != "EDDF_S_TWR" {
		t.Errorf("unexpected session client: %+v", conn.Client)
	}

	ev = <-events
	msg, ok := ev.(Message)
	if !ok {
		t.Fatalf("second event = %T, want Message", ev)
	}
	list, ok := msg.Msg.(protocol.ClientList)
	if !ok {
		t.Fatalf("message = %T, want ClientList", msg.Msg)
	}
	if len(list.Clients) != 1 || list.Clients[0].ID != "200" {
		t.Errorf("unexpected client list: %+v", list.Clients)
	}
}

func TestWSAdapter_LoginRejected(t *testing.T) {
	srv := loginServer(t, `{"type":"loginFailure","reason":"unauthorized"}`, nil)

	a, err := NewWSAdapter(WSOpts{URL: wsURL(srv), Token: staticToken("bad")})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	defer a.Close()

	err = a.Connect(context.Background(), "")
	var le *LoginError
	if !errors.As(err, &le) {
		t.Fatalf("connect error = %v, want LoginError", err)
	}
	if le.Reason != "unauthorized" {
		t.Errorf("reason = %q", le.Reason)
	}
}

func TestWSAdapter_AmbiguousPosition(t *testing.T) {
	srv := loginServer(t, `{"type":"loginFailure","reason":"ambiguousPosition","positions":["EDDF_S_TWR","EDDF_N_TWR"]}`, nil)

	a, err := NewWSAdapter(WSOpts{URL: wsURL(srv), Token: staticToken("secret")})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	defer a.Close()

	err = a.Connect(context.Background(), "")
	var ape *AmbiguousPositionError
	if !errors.As(err, &ape) {
		t.Fatalf("connect error = %v, want AmbiguousPositionError", err)
	}
	if len(ape.Positions) != 2 || ape.Positions[0] != "EDDF_S_TWR" {
		t.Errorf("positions = %v", ape.Positions)
	}
}

func TestWSAdapter_SendCarriesTypeTag(t *testing.T) {
	got := make(chan []byte, 1)
	srv := loginServer(t, sessionInfoFrame, func(conn *websocket.Conn) {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return
		}
		got <- frame
	})

	a, err := NewWSAdapter(WSOpts{URL: wsURL(srv), Token: staticToken("secret")})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Connect(ctx, ""); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := a.Send(ctx, protocol.CallEnd{CallID: "c1", EndingClientID: "100"}); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case frame := <-got:
		var decoded map[string]any
		if err := json.Unmarshal(frame, &decoded); err != nil {
			t.Fatalf("decode sent frame: %v", err)
		}
		if decoded["type"] != "callEnd" || decoded["callId"] != "c1" {
			t.Errorf("unexpected frame: %s", frame)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server never received the frame")
	}
}

func TestWSAdapter_SendBeforeConnect(t *testing.T) {
	a, err := NewWSAdapter(WSOpts{URL: "ws://127.0.0.1:1", Token: staticToken("t")})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	if err := a.Send(context.Background(), protocol.Logout{}); err == nil {
		t.Error("expected error when sending before connect")
	}
}

func TestMockAdapter_RecordsSent(t *testing.T) {
	m := NewMockAdapter()
	if err := m.Send(context.Background(), protocol.Logout{}); err == nil {
		t.Error("expected error before connect")
	}
	if err := m.Connect(context.Background(), "EDDF_S_TWR"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := m.Send(context.Background(), protocol.CallEnd{CallID: "c1"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	sent := m.Sent()
	if len(sent) != 1 {
		t.Fatalf("sent = %d messages, want 1", len(sent))
	}
	if m.LastPosition() != "EDDF_S_TWR" {
		t.Errorf("position = %q", m.LastPosition())
	}
}

func TestMockAdapter_SimulateAndClose(t *testing.T) {
	m := NewMockAdapter()
	if err := m.Connect(context.Background(), ""); err != nil {
		t.Fatalf("connect: %v", err)
	}
	events, err := m.Listen(context.Background())
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	m.SimulateMessage(protocol.CallEnd{CallID: "c1"})
	ev := <-events
	msg, ok := ev.(Message)
	if !ok {
		t.Fatalf("event = %T, want Message", ev)
	}
	if end, ok := msg.Msg.(protocol.CallEnd); !ok || end.CallID != "c1" {
		t.Errorf("unexpected message: %+v", msg.Msg)
	}

	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, open := <-events; open {
		t.Error("expected event channel to be closed")
	}
}

func TestCommander_ForwardsCalls(t *testing.T) {
	m := NewMockAdapter()
	if err := m.Connect(context.Background(), ""); err != nil {
		t.Fatalf("connect: %v", err)
	}
	c, err := NewCommander(m)
	if err != nil {
		t.Fatalf("new commander: %v", err)
	}

	ctx := context.Background()
	if err := c.StartCall(ctx, protocol.CallInvite{CallID: "c1"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := c.AcceptCall(ctx, protocol.CallAccept{CallID: "c1"}); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := c.EndCall(ctx, protocol.CallEnd{CallID: "c1"}); err != nil {
		t.Fatalf("end: %v", err)
	}

	sent := m.Sent()
	if len(sent) != 3 {
		t.Fatalf("sent = %d messages, want 3", len(sent))
	}
	if _, ok := sent[0].(protocol.CallInvite); !ok {
		t.Errorf("first message = %T, want CallInvite", sent[0])
	}
}

func TestNewCommander_RequiresAdapter(t *testing.T) {
	if _, err := NewCommander(nil); err == nil {
		t.Error("expected error for nil adapter")
	}
}
