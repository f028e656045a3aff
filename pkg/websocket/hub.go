package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"ridehail/pkg/logger"
)

const (
	UserRoomPrefix = "user_"
	DriversRoom    = "drivers"
	AdminsRoom     = "admins"
)

type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	rooms      map[string]map[*Client]bool
	mutex      sync.RWMutex
	log        *logger.Logger
}

type Message struct {
	Type      string      `json:"type"`
	RoomID    string      `json:"room_id,omitempty"`
	Timestamp int64       `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		rooms:      make(map[string]map[*Client]bool),
		log:        log.WithComponent("websocket_hub"),
	}
}

func UserRoom(userID primitive.ObjectID) string {
	return UserRoomPrefix + userID.Hex()
}

// Run serves registrations until ctx is cancelled, then disconnects every
// client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-ctx.Done():
			close(h.done)
			h.mutex.Lock()
			for client := range h.clients {
				h.removeClient(client)
			}
			h.mutex.Unlock()
			return
		}
	}
}

// Register queues client for registration. It returns false once the hub
// has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.clients[client] = true
	h.joinRoom(client, UserRoom(client.UserID))

	switch client.Role {
	case "driver":
		h.joinRoom(client, DriversRoom)
	case "admin":
		h.joinRoom(client, AdminsRoom)
	}

	h.log.WithUserID(client.UserID).WithField("role", client.Role).Debug("Client registered")

	h.sendToClient(client, Message{
		Type:      "welcome",
		Timestamp: getCurrentTimestamp(),
		Data:      map[string]interface{}{"message": "Connected successfully"},
	})
}

func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[client]; ok {
		h.removeClient(client)
		h.log.WithUserID(client.UserID).Debug("Client unregistered")
	}
}

// removeClient must be called with the write lock held.
func (h *Hub) removeClient(client *Client) {
	delete(h.clients, client)
	close(client.send)

	for roomID := range client.rooms {
		if room, exists := h.rooms[roomID]; exists {
			delete(room, client)
			if len(room) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}
}

// SendToRoom delivers message to every client in roomID and returns how many
// clients it was queued for. Clients whose buffers are full are dropped.
func (h *Hub) SendToRoom(roomID string, message Message) int {
	if message.Timestamp == 0 {
		message.Timestamp = getCurrentTimestamp()
	}
	message.RoomID = roomID

	data, err := json.Marshal(message)
	if err != nil {
		h.log.WithError(err).Error("Failed to marshal websocket message")
		return 0
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	room, exists := h.rooms[roomID]
	if !exists {
		return 0
	}

	delivered := 0
	for client := range room {
		select {
		case client.send <- data:
			delivered++
		default:
			h.removeClient(client)
		}
	}
	return delivered
}

func (h *Hub) SendToUser(userID primitive.ObjectID, message Message) int {
	return h.SendToRoom(UserRoom(userID), message)
}

// sendToClient must be called with the write lock held.
func (h *Hub) sendToClient(client *Client, message Message) {
	data, err := json.Marshal(message)
	if err != nil {
		return
	}
	select {
	case client.send <- data:
	default:
		h.removeClient(client)
	}
}

func (h *Hub) joinRoom(client *Client, roomID string) {
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][client] = true
	client.rooms[roomID] = true
}

func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (h *Hub) RoomSize(roomID string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.rooms[roomID])
}

func getCurrentTimestamp() int64 {
	return time.Now().Unix()
}
