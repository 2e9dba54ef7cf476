package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
	"github.com/gorilla/websocket"

	"giveaway/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Announcement is pushed to every overlay connected to the winner feed.
type Announcement struct {
	Type   string             `json:"type"`
	Result *models.DrawResult `json:"result,omitempty"`
	Pool   int                `json:"pool,omitempty"`
	At     time.Time          `json:"at"`
}

const (
	// sendBuffer is how many announcements a subscriber may lag behind
	// before it is dropped.
	sendBuffer = 16
	writeWait  = 5 * time.Second
)

// subscriber is one websocket connection. Only its writer goroutine writes
// to ws.
type subscriber struct {
	ws   *websocket.Conn
	send chan []byte
}

// Hub fans announcements out to websocket subscribers. Broadcast never
// blocks on a connection: each subscriber has its own queue and writer.
type Hub struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}
	last []byte
}

func NewHub() *Hub {
	return &Hub{subs: make(map[*subscriber]struct{})}
}

// join registers ws. The latest winner announcement, if any, is queued
// before the subscriber becomes visible to Broadcast.
func (h *Hub) join(ws *websocket.Conn) *subscriber {
	sub := &subscriber{ws: ws, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.last != nil {
		sub.send <- h.last
	}
	h.subs[sub] = struct{}{}
	return sub
}

// leave unregisters sub and closes its queue, which stops its writer.
func (h *Hub) leave(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sub)
}

func (h *Hub) removeLocked(sub *subscriber) {
	if _, ok := h.subs[sub]; !ok {
		return
	}
	delete(h.subs, sub)
	close(sub.send)
}

// Broadcast queues msg for every subscriber. Subscribers whose queue is
// full are dropped.
func (h *Hub) Broadcast(msg Announcement) {
	if msg.At.IsZero() {
		msg.At = time.Now().UTC()
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		logger.Warningf("Error encoding announcement: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if msg.Type == "winner" {
		h.last = payload
	}
	for sub := range h.subs {
		select {
		case sub.send <- payload:
		default:
			logger.Warningf("Dropping slow websocket subscriber")
			h.removeLocked(sub)
		}
	}
}

// Size returns the number of connected subscribers.
func (h *Hub) Size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// writePump is the only writer of sub.ws. It exits, closing the connection,
// when the queue is closed or a write fails or times out.
func (h *Hub) writePump(sub *subscriber) {
	defer sub.ws.Close()

	for payload := range sub.send {
		_ = sub.ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := sub.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
			logger.V(1).Infof("Websocket write failed: %v", err)
			h.leave(sub)
			return
		}
	}

	_ = sub.ws.SetWriteDeadline(time.Now().Add(writeWait))
	_ = sub.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// ServeWS upgrades the request and keeps the connection until the client
// goes away. Incoming messages are ignored.
func (h *Hub) ServeWS(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warningf("Websocket upgrade failed: %v", err)
		return
	}

	sub := h.join(ws)
	go h.writePump(sub)
	defer h.leave(sub)

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}
