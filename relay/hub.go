// Package relay is the real-time socket layer: clients join rooms keyed by
// user, order or chat id and receive the events broadcast to those rooms.
// Room membership lives only in this process.
package relay

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"go-farmmarket/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OrderFinder loads orders so joins can be checked against the order parties
type OrderFinder interface {
	FindOrderByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
}

// ChatFinder loads chats so joins can be checked against the participants
type ChatFinder interface {
	FindChatByID(ctx context.Context, id primitive.ObjectID) (*models.Chat, error)
}

func UserRoom(id primitive.ObjectID) string  { return "user:" + id.Hex() }
func OrderRoom(id primitive.ObjectID) string { return "order:" + id.Hex() }
func ChatRoom(id primitive.ObjectID) string  { return "chat:" + id.Hex() }

// Hub tracks room membership and fans events out to the members
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}

	orders OrderFinder
	chats  ChatFinder
}

// NewHub returns an empty hub
func NewHub(orders OrderFinder, chats ChatFinder) *Hub {
	return &Hub{
		rooms:  make(map[string]map[*Client]struct{}),
		orders: orders,
		chats:  chats,
	}
}

// Join adds the client to a room
func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.closed {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

// Leave removes the client from a room
func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, room)
}

func (h *Hub) leaveLocked(c *Client, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(c.rooms, room)
}

// InRoom reports whether the client is a member of room
func (h *Hub) InRoom(c *Client, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := c.rooms[room]
	return ok
}

// RoomSize returns how many clients are in room
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// remove takes the client out of every room and closes its send queue
func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.closed {
		return
	}
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	c.closed = true
	close(c.send)
}

// Broadcast queues env for every member of room except the given client.
// Members whose queue is full are disconnected.
func (h *Hub) Broadcast(room string, env models.Envelope, except *Client) {
	data, err := json.Marshal(env)
	if err != nil {
		log.Printf("relay: marshal %s event: %v", env.Type, err)
		return
	}

	var slow []*Client
	h.mu.RLock()
	for c := range h.rooms[room] {
		if c == except {
			continue
		}
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		log.Printf("relay: dropping slow client %s (user %s)", c.id, c.userID.Hex())
		h.remove(c)
	}
}

// Emit broadcasts payload as a t event to every member of room
func (h *Hub) Emit(room string, t models.EventType, payload interface{}) {
	env, err := models.NewEnvelope(t, payload)
	if err != nil {
		log.Printf("relay: encode %s payload: %v", t, err)
		return
	}
	h.Broadcast(room, env, nil)
}

// EmitToUser sends an event to every socket of the user
func (h *Hub) EmitToUser(userID primitive.ObjectID, t models.EventType, payload interface{}) {
	h.Emit(UserRoom(userID), t, payload)
}

// EmitToChat sends an event to every socket that joined the chat
func (h *Hub) EmitToChat(chatID primitive.ObjectID, t models.EventType, payload interface{}) {
	h.Emit(ChatRoom(chatID), t, payload)
}

// EmitToOrder sends an event to every socket tracking the order
func (h *Hub) EmitToOrder(orderID primitive.ObjectID, t models.EventType, payload interface{}) {
	h.Emit(OrderRoom(orderID), t, payload)
}
