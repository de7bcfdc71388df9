package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wricardo/pinshare/share/protocol"
	"github.com/wricardo/pinshare/share/service"
	"github.com/wricardo/pinshare/share/session"
)

type testServer struct {
	hub      *Hub
	registry *session.Registry
	server   *httptest.Server
	url      string
}

func setupHub(t *testing.T, opts ...Option) *testServer {
	t.Helper()

	registry := session.NewRegistry()
	hub := NewHub(service.NewPairingService(registry, zerolog.Nop()), zerolog.Nop(), opts...)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(func() {
		cancel()
		server.Close()
	})

	return &testServer{
		hub:      hub,
		registry: registry,
		server:   server,
		url:      "ws" + strings.TrimPrefix(server.URL, "http"),
	}
}

func (s *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(s.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}

func receive(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

// expectSilence asserts nothing arrives for a short while. The read deadline
// breaks conn for further reads, so call it last.
func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, data, err := conn.ReadMessage()
	require.Error(t, err, "unexpected message: %s", data)
}

func createSession(t *testing.T, conn *websocket.Conn, name string) string {
	t.Helper()
	send(t, conn, map[string]any{"type": "create", "name": name})
	msg := receive(t, conn)
	require.Equal(t, "pin", msg["type"])
	return msg["pin"].(string)
}

func joinSession(t *testing.T, conn *websocket.Conn, pin string) map[string]any {
	t.Helper()
	send(t, conn, map[string]any{"type": "join", "pin": pin})
	return receive(t, conn)
}

func TestNewHub(t *testing.T) {
	hub := NewHub(nil, zerolog.Nop())

	assert.NotNil(t, hub.clients)
	assert.NotNil(t, hub.register)
	assert.NotNil(t, hub.unregister)
	assert.Equal(t, DefaultSendBuffer, hub.sendBuffer)
	assert.Equal(t, int64(DefaultMaxMessageSize), hub.maxMessageSize)
	assert.Nil(t, hub.allowedOrigins)
}

func TestHubOptions(t *testing.T) {
	hub := NewHub(nil, zerolog.Nop(),
		WithSendBuffer(4),
		WithMaxMessageSize(128),
		WithAllowedOrigins([]string{"https://example.com"}),
	)

	assert.Equal(t, 4, hub.sendBuffer)
	assert.Equal(t, int64(128), hub.maxMessageSize)

	allowed := httptest.NewRequest(http.MethodGet, "/ws", nil)
	allowed.Header.Set("Origin", "https://example.com")
	assert.True(t, hub.checkOrigin(allowed))

	denied := httptest.NewRequest(http.MethodGet, "/ws", nil)
	denied.Header.Set("Origin", "https://evil.example")
	assert.False(t, hub.checkOrigin(denied))

	ignored := NewHub(nil, zerolog.Nop(), WithSendBuffer(0), WithMaxMessageSize(-1))
	assert.Equal(t, DefaultSendBuffer, ignored.sendBuffer)
	assert.Equal(t, int64(DefaultMaxMessageSize), ignored.maxMessageSize)
}

func TestClientSend(t *testing.T) {
	hub := NewHub(nil, zerolog.Nop(), WithSendBuffer(1))
	client := newClient(hub, nil, "c1")

	assert.True(t, client.Send([]byte("first")))
	assert.False(t, client.Send([]byte("second")), "full queue must not block")

	client.closeSend()
	client.closeSend()
	assert.False(t, client.Send([]byte("third")), "closed client must refuse")
}

func TestHubRegisterUnregister(t *testing.T) {
	hub := NewHub(nil, zerolog.Nop())
	client := newClient(hub, nil, "c1")

	hub.registerClient(client)
	assert.Equal(t, 1, hub.ConnectionCount())

	hub.unregisterClient(client)
	assert.Equal(t, 0, hub.ConnectionCount())
	assert.False(t, client.Send([]byte("x")))

	// Unknown clients are ignored.
	hub.unregisterClient(client)
	assert.Equal(t, 0, hub.ConnectionCount())
}

func TestHubScenario(t *testing.T) {
	s := setupHub(t)

	sharer := s.dial(t)
	viewer := s.dial(t)

	pin := createSession(t, sharer, "Alice")
	assert.True(t, session.ValidPIN(pin))

	joined := joinSession(t, viewer, pin)
	assert.Equal(t, map[string]any{
		"type":   "success",
		"sharer": map[string]any{"name": "Alice", "avatar": ""},
	}, joined)

	send(t, sharer, map[string]any{"type": "location", "pin": pin, "lat": 48.8, "lng": 2.3})
	assert.Equal(t, map[string]any{
		"type":   "location",
		"lat":    48.8,
		"lng":    2.3,
		"name":   "Alice",
		"avatar": "",
	}, receive(t, viewer))

	stranger := s.dial(t)
	assert.Equal(t, map[string]any{
		"type": "error",
		"msg":  protocol.MsgInvalidPIN,
	}, joinSession(t, stranger, "000000"))

	expectSilence(t, sharer)
}

func TestHubPinMessage(t *testing.T) {
	s := setupHub(t)
	conn := s.dial(t)

	before := time.Now()
	send(t, conn, map[string]any{"type": "create"})
	msg := receive(t, conn)

	require.Equal(t, "pin", msg["type"])
	expiresAt := time.UnixMilli(int64(msg["expiresAt"].(float64)))
	assert.WithinDuration(t, before.Add(session.DefaultTTL), expiresAt, 5*time.Second)

	info, err := s.registry.Lookup(msg["pin"].(string))
	require.NoError(t, err)
	assert.Equal(t, session.DefaultName, info.Name)
	assert.True(t, info.HasSharer)
}

func TestHubFanoutToAllViewers(t *testing.T) {
	s := setupHub(t)

	sharer := s.dial(t)
	pin := createSession(t, sharer, "Alice")

	viewers := make([]*websocket.Conn, 3)
	for i := range viewers {
		viewers[i] = s.dial(t)
		require.Equal(t, "success", joinSession(t, viewers[i], pin)["type"])
	}

	other := s.dial(t)
	otherPin := createSession(t, other, "Bob")
	outsider := s.dial(t)
	require.Equal(t, "success", joinSession(t, outsider, otherPin)["type"])

	send(t, sharer, map[string]any{"type": "location", "pin": pin, "lat": 1.5, "lng": -2.5})
	for _, v := range viewers {
		msg := receive(t, v)
		assert.Equal(t, "location", msg["type"])
		assert.Equal(t, 1.5, msg["lat"])
		assert.Equal(t, -2.5, msg["lng"])
	}
	expectSilence(t, outsider)
}

func TestHubViewerClose(t *testing.T) {
	s := setupHub(t)

	sharer := s.dial(t)
	pin := createSession(t, sharer, "Alice")

	leaving := s.dial(t)
	staying := s.dial(t)
	joinSession(t, leaving, pin)
	joinSession(t, staying, pin)

	leaving.Close()

	require.Eventually(t, func() bool {
		info, err := s.registry.Lookup(pin)
		return err == nil && info.ViewerCount == 1
	}, 2*time.Second, 10*time.Millisecond)

	send(t, sharer, map[string]any{"type": "location", "pin": pin, "lat": 1, "lng": 1})
	assert.Equal(t, "location", receive(t, staying)["type"])
}

func TestHubSharerClose(t *testing.T) {
	s := setupHub(t)

	sharer := s.dial(t)
	pin := createSession(t, sharer, "Alice")
	viewer := s.dial(t)
	joinSession(t, viewer, pin)

	sharer.Close()

	require.Eventually(t, func() bool {
		info, err := s.registry.Lookup(pin)
		return err == nil && !info.HasSharer
	}, 2*time.Second, 10*time.Millisecond)

	info, err := s.registry.Lookup(pin)
	require.NoError(t, err)
	assert.Equal(t, 1, info.ViewerCount)

	// Another connection knowing the pin can keep the stream going.
	relay := s.dial(t)
	send(t, relay, map[string]any{"type": "location", "pin": pin, "lat": 7, "lng": 8})
	msg := receive(t, viewer)
	assert.Equal(t, float64(7), msg["lat"])
	assert.Equal(t, "Alice", msg["name"])
}

func TestHubDropsMalformedMessages(t *testing.T) {
	s := setupHub(t)
	conn := s.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	send(t, conn, map[string]any{"type": "teleport"})
	send(t, conn, map[string]any{"type": "location", "pin": "123456"})
	send(t, conn, map[string]any{"type": "location", "pin": "999999", "lat": 1, "lng": 2})

	// Frames are handled in order, so the first reply after the bad input
	// must be the pin for this create: nothing was answered before it.
	send(t, conn, map[string]any{"type": "create", "name": "Still here"})
	msg := receive(t, conn)
	require.Equal(t, "pin", msg["type"], "unexpected reply %v", msg)
	assert.True(t, session.ValidPIN(msg["pin"].(string)))
	assert.Equal(t, 1, s.registry.Count())

	// The connection keeps working after the round trip.
	viewer := s.dial(t)
	reply := joinSession(t, viewer, msg["pin"].(string))
	assert.Equal(t, "success", reply["type"])
}

func TestHubConnectionCount(t *testing.T) {
	s := setupHub(t)

	a := s.dial(t)
	s.dial(t)

	require.Eventually(t, func() bool { return s.hub.ConnectionCount() == 2 }, time.Second, 10*time.Millisecond)

	a.Close()
	require.Eventually(t, func() bool { return s.hub.ConnectionCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestHubShutdownClosesConnections(t *testing.T) {
	registry := session.NewRegistry()
	hub := NewHub(service.NewPairingService(registry, zerolog.Nop()), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.ConnectionCount() == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
