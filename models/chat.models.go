package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MessageType tags what a message carries
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageFile  MessageType = "file"
)

// Chat is a conversation thread between users
type Chat struct {
	ID              primitive.ObjectID   `bson:"_id,omitempty" json:"id,omitempty"`
	Participants    []primitive.ObjectID `bson:"participants" json:"participants"`
	OrderID         *primitive.ObjectID  `bson:"order_id,omitempty" json:"order_id,omitempty"`
	LastMessageID   *primitive.ObjectID  `bson:"last_message_id,omitempty" json:"last_message_id,omitempty"`
	LastMessageText string               `bson:"last_message_text,omitempty" json:"last_message_text,omitempty"`
	LastMessageAt   *time.Time           `bson:"last_message_at,omitempty" json:"last_message_at,omitempty"`
	UnreadCount     int                  `bson:"unread_count" json:"unread_count"`
	IsMuted         bool                 `bson:"is_muted" json:"is_muted"`
	IsArchived      bool                 `bson:"is_archived" json:"is_archived"`
	IsBlocked       bool                 `bson:"is_blocked" json:"is_blocked"`
	CreatedAt       time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time            `bson:"updated_at" json:"updated_at"`
}

// HasParticipant reports whether the user takes part in the chat
func (c *Chat) HasParticipant(userID primitive.ObjectID) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// ChatSettings toggles the per-chat flags. Nil fields are left alone.
type ChatSettings struct {
	IsMuted    *bool `json:"is_muted,omitempty"`
	IsArchived *bool `json:"is_archived,omitempty"`
	IsBlocked  *bool `json:"is_blocked,omitempty"`
}

// Message is one entry of a chat
type Message struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	ChatID    primitive.ObjectID `bson:"chat_id" json:"chat_id"`
	SenderID  primitive.ObjectID `bson:"sender_id" json:"sender_id"`
	Type      MessageType        `bson:"type" json:"type"`
	Text      string             `bson:"text,omitempty" json:"text,omitempty"`
	MediaURL  string             `bson:"media_url,omitempty" json:"media_url,omitempty"`
	IsRead    bool               `bson:"is_read" json:"is_read"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}
