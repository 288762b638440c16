package api

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"CryptoLens/internal/model"
	"CryptoLens/internal/publish"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	readLimit  = 4096
)

// Client is a single websocket peer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	subMu sync.RWMutex
	subs  map[string]bool // empty means every channel
}

// subscribeMsg is sent by clients to narrow their feed, e.g.
// {"type":"SUBSCRIBE","pair":"BTC/USDT","timeframe":"1h"}.
type subscribeMsg struct {
	Type      string `json:"type"`
	Channel   string `json:"channel"`
	Pair      string `json:"pair"`
	Timeframe string `json:"timeframe"`
}

func newClient(h *Hub, conn *websocket.Conn, channels []string) *Client {
	c := &Client{conn: conn, send: make(chan []byte, sendBuffer), hub: h, subs: map[string]bool{}}
	for _, ch := range channels {
		c.subs[ch] = true
	}
	return c
}

func (c *Client) wants(channel string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.subs) == 0 || c.subs[channel]
}

func (c *Client) sendInitialState() {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	for channel, data := range c.hub.latest {
		if !c.wants(channel) {
			continue
		}
		c.enqueue(channel, data, true)
	}
}

func (c *Client) enqueue(channel string, data json.RawMessage, initial bool) {
	msg, _ := json.Marshal(envelope{
		Channel: channel,
		Data:    data,
		TS:      time.Now().UTC().Format(time.RFC3339Nano),
		Initial: initial,
	})
	select {
	case c.send <- msg:
	default:
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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

func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
		log.Println("[INFO] ws client disconnected")
	}()

	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg subscribeMsg
		if json.Unmarshal(raw, &msg) != nil {
			continue
		}
		channel := msg.Channel
		if channel == "" && msg.Pair != "" {
			pair, err := model.ParsePair(msg.Pair)
			if err != nil {
				continue
			}
			tf, err := model.ParseTimeframe(msg.Timeframe)
			if err != nil {
				continue
			}
			channel = publish.Channel(pair, tf)
		}
		if channel == "" {
			continue
		}

		switch msg.Type {
		case "SUBSCRIBE":
			c.subMu.Lock()
			c.subs[channel] = true
			c.subMu.Unlock()
			c.hub.mu.RLock()
			data, ok := c.hub.latest[channel]
			c.hub.mu.RUnlock()
			if ok {
				c.enqueue(channel, data, true)
			}
		case "UNSUBSCRIBE":
			c.subMu.Lock()
			delete(c.subs, channel)
			c.subMu.Unlock()
		}
	}
}
