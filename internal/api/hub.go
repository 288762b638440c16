package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const sendBuffer = 64

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type envelope struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
	TS      string          `json:"ts"`
	Initial bool            `json:"initial,omitempty"`
}

// Hub fans published analyses out to websocket clients and replays the
// latest payload per channel to new subscribers.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	latest  map[string]json.RawMessage

	// OnClientCount, when set, observes the number of connected clients.
	OnClientCount func(n int)
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		latest:  make(map[string]json.RawMessage),
	}
}

// Broadcast delivers payload to every client subscribed to channel. Slow
// clients drop messages instead of blocking the publisher.
func (h *Hub) Broadcast(channel string, payload []byte) {
	msg, err := json.Marshal(envelope{
		Channel: channel,
		Data:    json.RawMessage(payload),
		TS:      time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		log.Printf("[WARN] ws: drop non-JSON payload on %s: %v", channel, err)
		return
	}

	h.mu.Lock()
	h.latest[channel] = append(json.RawMessage(nil), payload...)
	h.mu.Unlock()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.wants(channel) {
			continue
		}
		select {
		case c.send <- msg:
		default:
			log.Printf("[WARN] ws: client buffer full, dropping %s", channel)
		}
	}
}

// ServeWS upgrades the request and registers the client. The optional
// "channel" query parameters pre-subscribe the client; none means all.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WARN] ws upgrade: %v", err)
		return
	}

	client := newClient(h, conn, r.URL.Query()["channel"])

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()
	h.observeCount(count)
	log.Printf("[INFO] ws client connected (%d total)", count)

	client.sendInitialState()
	go client.writePump()
	go client.readPump()
}

// RemoveClient unregisters c and closes its send channel.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	count := len(h.clients)
	close(c.send)
	h.mu.Unlock()
	h.observeCount(count)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) observeCount(n int) {
	if h.OnClientCount != nil {
		h.OnClientCount(n)
	}
}
