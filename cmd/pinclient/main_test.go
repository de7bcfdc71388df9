package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wricardo/pinshare/share/service"
	"github.com/wricardo/pinshare/share/session"
	hub "github.com/wricardo/pinshare/transport/websocket"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func startServer(t *testing.T) string {
	t.Helper()

	registry := session.NewRegistry()
	h := hub.NewHub(service.NewPairingService(registry, zerolog.Nop()), zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	t.Cleanup(func() {
		cancel()
		server.Close()
	})
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

var pinLine = regexp.MustCompile(`PIN (\d{6})`)

func TestShareAndWatch(t *testing.T) {
	url := startServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sharer, viewer := dial(t, url), dial(t, url)

	var shareOut, watchOut syncBuffer
	shareDone := make(chan error, 1)
	go func() {
		shareDone <- share(ctx, sharer, shareOptions{
			Name:     "Alice",
			Lat:      48.8566,
			Lng:      2.3522,
			Interval: 20 * time.Millisecond,
		}, &shareOut, zerolog.Nop())
	}()

	var pin string
	require.Eventually(t, func() bool {
		m := pinLine.FindStringSubmatch(shareOut.String())
		if m == nil {
			return false
		}
		pin = m[1]
		return true
	}, 2*time.Second, 10*time.Millisecond)

	watchDone := make(chan error, 1)
	go func() {
		watchDone <- watch(ctx, viewer, pin, &watchOut, zerolog.Nop())
	}()

	require.Eventually(t, func() bool {
		out := watchOut.String()
		return strings.Contains(out, "watching Alice") && strings.Contains(out, " Alice 48.85")
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-shareDone)
	assert.NoError(t, <-watchDone)
}

func TestShareStopsAfterCount(t *testing.T) {
	url := startServer(t)

	var out syncBuffer
	err := share(context.Background(), dial(t, url), shareOptions{
		Interval: time.Millisecond,
		Count:    3,
	}, &out, zerolog.Nop())

	require.NoError(t, err)
	assert.Regexp(t, pinLine, out.String())
}

func TestWatchUnknownPIN(t *testing.T) {
	url := startServer(t)

	var out syncBuffer
	err := watch(context.Background(), dial(t, url), "000000", &out, zerolog.Nop())

	assert.True(t, errors.Is(err, errSessionRejected), "got %v", err)
	assert.Contains(t, err.Error(), "invalid or expired PIN")
}

func TestWatchRequiresPIN(t *testing.T) {
	err := newCommand(&syncBuffer{}).Run(context.Background(), []string{"pinclient", "watch"})
	assert.ErrorContains(t, err, "PIN is required")
}
