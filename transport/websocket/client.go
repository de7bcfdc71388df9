package websocket

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/wricardo/pinshare/metrics"
	"github.com/wricardo/pinshare/share/protocol"
	"github.com/wricardo/pinshare/share/session"
)

// Client is one websocket connection. It satisfies session.Peer.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	log  zerolog.Logger

	send   chan []byte
	mu     sync.RWMutex
	closed bool

	detachOnce sync.Once
}

var _ session.Peer = (*Client)(nil)

func newClient(h *Hub, conn *websocket.Conn, id string) *Client {
	return &Client{
		id:   id,
		hub:  h,
		conn: conn,
		log:  h.log.With().Str("conn", id).Logger(),
		send: make(chan []byte, h.sendBuffer),
	}
}

// ID returns the connection id.
func (c *Client) ID() string { return c.id }

// Send queues data for the write pump. It never blocks: a closed client or a
// full queue returns false and the message is dropped.
func (c *Client) Send(data []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// detach releases the session binding. Only the first call reaches the
// service.
func (c *Client) detach(ctx context.Context) {
	c.detachOnce.Do(func() {
		if c.hub.service.Detach(ctx, c) {
			c.log.Debug().Msg("session binding released")
		}
	})
}

func (c *Client) reply(v any) {
	data, err := protocol.Encode(v)
	if err != nil {
		c.log.Error().Err(err).Msg("failed to encode reply")
		return
	}
	if !c.Send(data) {
		c.log.Debug().Msg("reply dropped")
	}
}

// dispatch handles one inbound frame.
func (c *Client) dispatch(ctx context.Context, data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		metrics.MalformedMessages.Inc()
		c.log.Debug().Err(err).Msg("dropping inbound message")
		return
	}

	switch msg.Type {
	case protocol.TypeCreate:
		pin, err := c.hub.service.CreateSession(ctx, c, *msg.Create)
		if err != nil {
			c.log.Error().Err(err).Msg("create failed")
			c.reply(protocol.NewError("could not create session"))
			return
		}
		c.log.Info().Str("pin", pin.PIN).Msg("sharing started")
		c.reply(pin)

	case protocol.TypeJoin:
		joined, err := c.hub.service.JoinSession(ctx, c, msg.Join.PIN)
		if err != nil {
			if !errors.Is(err, session.ErrSessionNotFound) {
				c.log.Warn().Err(err).Msg("join failed")
			}
			c.reply(protocol.NewError(protocol.MsgInvalidPIN))
			return
		}
		c.reply(joined)

	case protocol.TypeLocation:
		if _, err := c.hub.service.ShareLocation(ctx, *msg.Location); err != nil {
			c.log.Debug().Err(err).Msg("location dropped")
		}
	}
}

// readPump pumps messages from the WebSocket connection to the service
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.detach(ctx)
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.hub.maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Warn().Err(err).Msg("websocket read error")
			}
			return
		}
		if messageType != websocket.TextMessage {
			metrics.MalformedMessages.Inc()
			continue
		}
		c.dispatch(ctx, data)
	}
}

// writePump pumps queued messages to the WebSocket connection. Each queued
// message goes out as its own text frame.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
