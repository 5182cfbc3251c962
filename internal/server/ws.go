package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/drishti/internal/attention"
	"github.com/ayusman/drishti/internal/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

const (
	clientBuffer = 8
	writeTimeout = time.Second
)

// OverlayMessage is one broadcast of the live track views.
type OverlayMessage struct {
	Timestamp int64                 `json:"timestamp"`
	Tracks    []attention.TrackView `json:"tracks"`
}

// OverlayHub broadcasts track views to websocket clients. A client that
// falls behind loses messages rather than slowing the publisher.
type OverlayHub struct {
	mu      sync.RWMutex
	clients map[*overlayClient]struct{}
}

type overlayClient struct {
	send chan []byte
}

// NewOverlayHub creates an empty hub.
func NewOverlayHub() *OverlayHub {
	return &OverlayHub{clients: make(map[*overlayClient]struct{})}
}

// Clients returns the number of connected clients.
func (h *OverlayHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish sends views to every client. It never blocks.
func (h *OverlayHub) Publish(ts time.Time, views []attention.TrackView) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.clients) == 0 {
		return
	}

	if views == nil {
		views = []attention.TrackView{}
	}
	msg, err := json.Marshal(OverlayMessage{Timestamp: ts.UnixMilli(), Tracks: views})
	if err != nil {
		log.Warn("overlay encode failed", "error", err)
		return
	}

	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
		}
	}
}

// ServeHTTP upgrades the request and streams messages until the client leaves.
func (h *OverlayHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	c := &overlayClient{send: make(chan []byte, clientBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case msg := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}
