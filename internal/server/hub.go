package server

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/songzhibin97/xrplfeed/internal/feed"
	"github.com/songzhibin97/xrplfeed/internal/netstats"
)

const (
	MessageInitial = "INITIAL"
	MessageUpdate  = "UPDATE"
)

// Message is what socket clients receive.
type Message struct {
	Type      string            `json:"type"`
	Feed      feed.State        `json:"feed"`
	Network   netstats.Snapshot `json:"network"`
	Timestamp int64             `json:"timestamp"`
}

// Hub fans feed updates out to socket clients. Its loop owns the client set;
// a client whose buffer is full is dropped instead of blocking the loop.
type Hub struct {
	logger Logger

	clients    map[*Client]struct{}
	broadcast  chan *Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	latestMu sync.RWMutex
	latest   *Message
	count    atomic.Int64
}

func NewHub(logger Logger) *Hub {
	return &Hub{
		logger:     logger,
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan *Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return

		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.count.Add(1)
			h.latestMu.RLock()
			latest := h.latest
			h.latestMu.RUnlock()
			if latest != nil {
				initial := *latest
				initial.Type = MessageInitial
				client.send <- &initial
			}

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
			}

		case msg := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- msg:
				default:
					h.logger.Error("dropping slow websocket client", "client", client.id)
					h.drop(client)
				}
			}
		}
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	h.count.Add(-1)
}

// Broadcast records msg as the latest state and queues it without blocking.
func (h *Hub) Broadcast(msg *Message) {
	h.latestMu.Lock()
	h.latest = msg
	h.latestMu.Unlock()

	select {
	case h.broadcast <- msg:
	default:
		h.logger.Error("broadcast queue full, dropping update")
	}
}

func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// attach hands client to the loop, failing once the hub has stopped.
func (h *Hub) attach(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) detach(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Error("failed to upgrade websocket", "error", err)
		return
	}

	client := &Client{
		id:   uuid.NewString(),
		hub:  s.hub,
		conn: conn,
		send: make(chan *Message, 64),
	}
	if !s.hub.attach(client) {
		conn.Close()
		return
	}
	s.logger.Info("websocket client connected", "client", client.id, "remote", c.ClientIP())

	go client.writePump()
	go client.readPump()
}
