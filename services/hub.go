package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

// StateProvider supplies the snapshot sent to a client when it connects.
type StateProvider interface {
	GetState(ctx context.Context, gameID uuid.UUID) (*GameState, error)
}

// Hub keeps the websocket clients of this instance grouped by room (game
// id) and writes room events to them.
type Hub struct {
	rooms      map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mutex      sync.RWMutex
	state      StateProvider
}

type Client struct {
	hub    *Hub
	id     string
	socket *websocket.Conn
	send   chan []byte
	room   string
}

func NewHub(state StateProvider) *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		state:      state,
	}
}

// Run processes registrations until ctx is done, then drops every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			clients, ok := h.rooms[client.room]
			if !ok {
				clients = make(map[*Client]bool)
				h.rooms[client.room] = clients
			}
			clients[client] = true
			total := len(clients)
			h.mutex.Unlock()
			log.Debug().Str("client_id", client.id).Str("room_id", client.room).Int("room_clients", total).Msg("client registered")

		case client := <-h.unregister:
			if h.remove(client) {
				log.Debug().Str("client_id", client.id).Str("room_id", client.room).Msg("client unregistered")
			}

		case <-ctx.Done():
			close(h.done)
			h.mutex.Lock()
			for room, clients := range h.rooms {
				for client := range clients {
					close(client.send)
				}
				delete(h.rooms, room)
			}
			h.mutex.Unlock()
			return
		}
	}
}

// remove drops client from its room and closes its send channel. It reports
// false if the client was already gone.
func (h *Hub) remove(client *Client) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	clients, ok := h.rooms[client.room]
	if !ok || !clients[client] {
		return false
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.room)
	}
	return true
}

// Broadcast encodes the event and delivers it to the room's local clients.
func (h *Hub) Broadcast(_ context.Context, roomID string, event string, payload interface{}) error {
	data, err := json.Marshal(Message{Type: event, Payload: payload})
	if err != nil {
		return err
	}
	h.Deliver(roomID, data)
	return nil
}

// Deliver writes an encoded message to every client in the room. Clients
// whose buffer is full are disconnected. It returns how many received it.
func (h *Hub) Deliver(roomID string, data []byte) int {
	var sent int
	var slow []*Client

	h.mutex.RLock()
	for client := range h.rooms[roomID] {
		select {
		case client.send <- data:
			sent++
		default:
			slow = append(slow, client)
		}
	}
	h.mutex.RUnlock()

	for _, client := range slow {
		log.Warn().Str("client_id", client.id).Str("room_id", roomID).Msg("client send buffer full, closing connection")
		h.remove(client)
	}
	return sent
}

// ConnectedCount returns the number of clients in a room on this instance.
func (h *Hub) ConnectedCount(roomID string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.rooms[roomID])
}

// RegisterClient attaches a websocket connection to the game's room and
// queues the current game state for it before any room event.
func (h *Hub) RegisterClient(ctx context.Context, conn *websocket.Conn, gameID uuid.UUID) *Client {
	client := &Client{
		hub:    h,
		id:     uuid.NewString(),
		socket: conn,
		send:   make(chan []byte, sendBufferSize),
		room:   gameID.String(),
	}

	h.sendStateSync(ctx, client, gameID)
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return client
	}

	go client.writePump()
	go client.readPump()

	return client
}

func (h *Hub) sendStateSync(ctx context.Context, client *Client, gameID uuid.UUID) {
	if h.state == nil {
		return
	}
	state, err := h.state.GetState(ctx, gameID)
	if err != nil {
		log.Warn().Err(err).Str("room_id", client.room).Msg("failed to load game state for sync")
		return
	}
	data, err := json.Marshal(Message{Type: EventStateSync, Payload: state})
	if err != nil {
		log.Error().Err(err).Msg("failed to encode state sync")
		return
	}
	client.send <- data
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.socket.Close()
	}()

	c.socket.SetReadLimit(maxMessageSize)
	c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		return c.socket.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("client_id", c.id).Msg("websocket read error")
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Debug().Err(err).Str("client_id", c.id).Msg("ignoring malformed client message")
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.socket.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.socket.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage answers client messages. Clients only listen; ping is the
// one message they may send.
func (c *Client) handleMessage(msg Message) {
	switch msg.Type {
	case "ping":
		data, _ := json.Marshal(Message{Type: "pong", Payload: "pong"})
		c.hub.mutex.RLock()
		defer c.hub.mutex.RUnlock()
		if c.hub.rooms[c.room][c] {
			select {
			case c.send <- data:
			default:
			}
		}
	default:
		log.Debug().Str("client_id", c.id).Str("type", msg.Type).Msg("unknown client message type")
	}
}

func (c *Client) ID() string {
	return c.id
}
