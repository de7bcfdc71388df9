package websocket

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/wricardo/pinshare/logging"
	"github.com/wricardo/pinshare/metrics"
	"github.com/wricardo/pinshare/share/service"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	DefaultSendBuffer     = 32
	DefaultMaxMessageSize = 4096
)

// Hub maintains the set of open connections and hands inbound messages to the
// pairing service. Session membership lives in the registry, not here.
type Hub struct {
	service  service.PairingService
	log      zerolog.Logger
	upgrader websocket.Upgrader

	sendBuffer     int
	maxMessageSize int64
	allowedOrigins map[string]bool

	// Open clients, owned by Run
	clients map[*Client]bool

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	done      chan struct{}
	doneOnce  sync.Once
	connected atomic.Int64
}

// Option configures a Hub.
type Option func(*Hub)

// WithSendBuffer sets the per-connection outbound queue length.
func WithSendBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

// WithMaxMessageSize limits inbound frame size in bytes.
func WithMaxMessageSize(n int64) Option {
	return func(h *Hub) {
		if n > 0 {
			h.maxMessageSize = n
		}
	}
}

// WithAllowedOrigins restricts upgrades to the listed Origin headers. An
// empty list allows every origin.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Hub) {
		if len(origins) == 0 {
			h.allowedOrigins = nil
			return
		}
		h.allowedOrigins = make(map[string]bool, len(origins))
		for _, o := range origins {
			h.allowedOrigins[o] = true
		}
	}
}

// NewHub creates a new WebSocket hub
func NewHub(svc service.PairingService, log zerolog.Logger, opts ...Option) *Hub {
	h := &Hub{
		service:        svc,
		log:            logging.Component(log, "ws-hub"),
		sendBuffer:     DefaultSendBuffer,
		maxMessageSize: DefaultMaxMessageSize,
		clients:        make(map[*Client]bool),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// Run starts the hub's event loop and blocks until ctx is cancelled, at which
// point every open connection is closed.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-ctx.Done():
			h.shutdown()
			return
		}
	}
}

// ServeWS upgrades the request and starts the client's pumps.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	select {
	case <-h.done:
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	client := newClient(h, conn, uuid.NewString())

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	// The request context ends when this handler returns.
	ctx := context.WithoutCancel(r.Context())

	go client.writePump()
	go client.readPump(ctx)
}

// ConnectionCount returns the number of registered connections.
func (h *Hub) ConnectionCount() int {
	return int(h.connected.Load())
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if h.allowedOrigins == nil {
		return true
	}
	return h.allowedOrigins[r.Header.Get("Origin")]
}

// registerClient adds a client to the hub
func (h *Hub) registerClient(client *Client) {
	h.clients[client] = true
	h.connected.Add(1)
	metrics.Connections.Inc()

	client.log.Debug().Int("connections", len(h.clients)).Msg("client registered")
}

// unregisterClient removes a client and closes its send queue
func (h *Hub) unregisterClient(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	client.closeSend()
	h.connected.Add(-1)
	metrics.Connections.Dec()

	client.log.Debug().Int("connections", len(h.clients)).Msg("client unregistered")
}

func (h *Hub) shutdown() {
	h.doneOnce.Do(func() { close(h.done) })
	for client := range h.clients {
		h.unregisterClient(client)
		client.conn.Close()
	}
	h.log.Info().Msg("hub stopped")
}
