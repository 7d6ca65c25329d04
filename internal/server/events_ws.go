// Package server provides the HTTP server for the printcam streamer.
package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ayusman/printcam/internal/detect"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

const (
	// Buffered events per client; a client this far behind is stalled
	// and gets dropped rather than ever blocking the producer.
	clientSendBuffer = 8

	clientWriteTimeout = 5 * time.Second
)

// eventMessage is the wire form of a motion event pushed to viewers.
type eventMessage struct {
	ID       string  `json:"id"`
	Time     string  `json:"time"`
	Metric   float64 `json:"metric"`
	Snapshot string  `json:"snapshot"`
}

// eventClient is one connected viewer. Writes go through the send channel
// and a dedicated writer goroutine, never on the producer's goroutine.
type eventClient struct {
	conn *websocket.Conn
	send chan eventMessage

	closeOnce sync.Once
}

// close tears the client down. Safe to call from both the hub and the
// connection handler.
func (c *eventClient) close() {
	c.closeOnce.Do(func() {
		close(c.send)
		c.conn.Close()
	})
}

// writeLoop drains the send channel onto the connection. A failed or
// timed-out write closes the connection, which ends the read loop and
// unregisters the client.
func (c *eventClient) writeLoop(log *zap.SugaredLogger) {
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(clientWriteTimeout))
		if err := c.conn.WriteJSON(msg); err != nil {
			log.Debugw("event push failed", "error", err)
			c.conn.Close()
			return
		}
	}
}

// EventsHub pushes motion events to WebSocket clients as they happen.
// Delivery is lossy: events go into each client's bounded buffer and a
// client that cannot keep up is disconnected, so publishing never blocks.
type EventsHub struct {
	log     *zap.SugaredLogger
	clients map[*eventClient]bool
	mu      sync.RWMutex
}

// NewEventsHub creates an empty EventsHub.
func NewEventsHub(log *zap.SugaredLogger) *EventsHub {
	return &EventsHub{
		log:     log,
		clients: make(map[*eventClient]bool),
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *EventsHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnw("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &eventClient{
		conn: conn,
		send: make(chan eventMessage, clientSendBuffer),
	}

	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	defer func() {
		h.remove(c)
		c.close()
	}()

	go c.writeLoop(h.log)

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// remove unregisters a client. Once removed, no further events are queued
// for it, so the hub never sends on a closed channel.
func (h *EventsHub) remove(c *eventClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// MotionDetected implements detect.EventSink by queueing the event for
// every connected client. It never blocks: it runs on the detector loop,
// and a stalled viewer must not delay motion analysis. Clients whose
// buffers are full are dropped.
func (h *EventsHub) MotionDetected(e detect.Event) {
	msg := eventMessage{
		ID:       e.ID,
		Time:     e.Time.Format(time.RFC3339),
		Metric:   e.Metric,
		Snapshot: e.Snapshot,
	}

	var stalled []*eventClient

	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			stalled = append(stalled, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range stalled {
		h.log.Warnw("dropping stalled event client", "remote", c.conn.RemoteAddr())
		h.remove(c)
		c.close()
	}
}
