package notifyws

import (
	"context"
	"encoding/json"
	"time"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/prolean/ProleanBack/internal/models"
	"github.com/prolean/ProleanBack/pkg/logger"
)

const (
	clientBuffer   = 32
	outboundBuffer = 256
)

// Hub fans stored notifications out to every open connection of their
// recipient. Delivery is best effort: the notification row is the record.
type Hub struct {
	clients    map[int64]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	outbound   chan delivery
	pongs      chan *Client
	done       chan struct{}
	log        *logger.Logger
}

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID int64
	send   chan []byte
}

type Message struct {
	Type         string               `json:"type"`
	Notification *models.Notification `json:"notification,omitempty"`
	Timestamp    string               `json:"timestamp"`
}

type delivery struct {
	userID  int64
	payload []byte
}

func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		clients:    make(map[int64]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		outbound:   make(chan delivery, outboundBuffer),
		pongs:      make(chan *Client, outboundBuffer),
		done:       make(chan struct{}),
		log:        log,
	}
}

func NewClient(hub *Hub, conn *websocket.Conn, userID int64) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, clientBuffer),
	}
}

// Run owns the client registry until ctx is cancelled. Only Run writes to
// or closes a client's send channel.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for userID, set := range h.clients {
				for client := range set {
					close(client.send)
				}
				delete(h.clients, userID)
			}
			return
		case client := <-h.register:
			set, ok := h.clients[client.userID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.userID] = set
			}
			set[client] = struct{}{}
		case client := <-h.unregister:
			h.remove(client)
		case d := <-h.outbound:
			h.sendToUser(d.userID, d.payload)
		case client := <-h.pongs:
			h.pong(client)
		}
	}
}

// Register hands the client to the hub. After the hub stops the client's
// send channel is closed straight away so its WritePump returns.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.send)
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Pong queues a pong for the client. It is a no-op once the client has been
// evicted or the hub has stopped.
func (h *Hub) Pong(client *Client) {
	select {
	case h.pongs <- client:
	case <-h.done:
	default:
	}
}

// Push never blocks the caller. When the hub is saturated the notification
// stays in storage and is picked up by the next list call.
func (h *Hub) Push(userID int64, notification models.Notification) {
	payload, err := encodeMessage(Message{
		Type:         "notification",
		Notification: &notification,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		h.log.Error("encode notification failed", logger.Int64("user_id", userID), logger.Err(err))
		return
	}

	select {
	case h.outbound <- delivery{userID: userID, payload: payload}:
	default:
		h.log.Warn("notification push dropped",
			logger.Int64("user_id", userID),
			logger.Int64("notification_id", notification.ID),
		)
	}
}

func (h *Hub) pong(client *Client) {
	set, ok := h.clients[client.userID]
	if !ok {
		return
	}
	if _, registered := set[client]; !registered {
		return
	}
	payload, err := encodeMessage(Message{Type: "pong", Timestamp: time.Now().UTC().Format(time.RFC3339)})
	if err != nil {
		return
	}
	select {
	case client.send <- payload:
	default:
	}
}

func (h *Hub) remove(client *Client) {
	set, ok := h.clients[client.userID]
	if !ok {
		return
	}
	if _, exists := set[client]; exists {
		delete(set, client)
		close(client.send)
	}
	if len(set) == 0 {
		delete(h.clients, client.userID)
	}
}

func (h *Hub) sendToUser(userID int64, payload []byte) {
	set, ok := h.clients[userID]
	if !ok {
		return
	}

	for client := range set {
		select {
		case client.send <- payload:
		default:
			h.log.Warn("slow websocket client disconnected", logger.Int64("user_id", userID))
			delete(set, client)
			close(client.send)
		}
	}
	if len(set) == 0 {
		delete(h.clients, userID)
	}
}

func encodeMessage(message Message) ([]byte, error) {
	return json.Marshal(message)
}

// ReadPump keeps the connection alive. Clients only send pings; anything
// else is ignored.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var incoming struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(payload, &incoming); err != nil || incoming.Type != "ping" {
			continue
		}
		c.hub.Pong(c)
	}
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}
