package models

import (
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EventType names the payload carried by a relay Envelope
type EventType string

const (
	EventAuth           EventType = "auth"
	EventConnected      EventType = "connected"
	EventJoined         EventType = "joined"
	EventLeft           EventType = "left"
	EventJoinOrder      EventType = "join_order"
	EventLeaveOrder     EventType = "leave_order"
	EventLocationUpdate EventType = "location_update"
	EventJoinChat       EventType = "join_chat"
	EventLeaveChat      EventType = "leave_chat"
	EventTyping         EventType = "typing"
	EventNewMessage     EventType = "new_message"
	EventOrderStatus    EventType = "order_status"
	EventError          EventType = "error"
)

// Envelope is the frame exchanged over the relay socket. Data holds exactly
// the payload struct named by Type.
type Envelope struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals payload into an Envelope of the given type
func NewEnvelope(t EventType, payload interface{}) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: t, Data: data}, nil
}

// AuthPayload carries the bearer token of a socket handshake
type AuthPayload struct {
	Token string `json:"token"`
}

// ConnectedEvent acknowledges an authenticated socket
type ConnectedEvent struct {
	UserID   string `json:"user_id"`
	ClientID string `json:"client_id"`
}

// RoomPayload names the order or chat a client joins or leaves
type RoomPayload struct {
	OrderID string `json:"order_id,omitempty"`
	ChatID  string `json:"chat_id,omitempty"`
}

// LocationUpdate is a delivery position published for an order
type LocationUpdate struct {
	OrderID   string    `json:"order_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Heading   *float64  `json:"heading,omitempty"`
	Speed     *float64  `json:"speed,omitempty"`
	SenderID  string    `json:"sender_id,omitempty"`
	SentAt    time.Time `json:"sent_at"`
}

// TypingEvent signals that a participant started or stopped typing
type TypingEvent struct {
	ChatID   string `json:"chat_id"`
	UserID   string `json:"user_id,omitempty"`
	IsTyping bool   `json:"is_typing"`
}

// NewMessageEvent announces a message appended to a chat
type NewMessageEvent struct {
	ChatID  primitive.ObjectID `json:"chat_id"`
	Message Message            `json:"message"`
}

// OrderStatusEvent announces a status change on an order
type OrderStatusEvent struct {
	OrderID   primitive.ObjectID `json:"order_id"`
	OrderRef  string             `json:"order_ref"`
	Status    OrderStatus        `json:"status"`
	Tracking  *TrackingInfo      `json:"tracking,omitempty"`
	ChangedBy primitive.ObjectID `json:"changed_by"`
	ChangedAt time.Time          `json:"changed_at"`
}

// ErrorEvent reports a rejected client event
type ErrorEvent struct {
	Message string `json:"message"`
}
