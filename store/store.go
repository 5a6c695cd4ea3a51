// Package store holds the document store used by the controllers, with a
// MongoDB backend and an in-memory backend.
package store

import (
	"context"
	"errors"
	"time"

	"go-farmmarket/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrNotFound is returned when no document matches
	ErrNotFound = errors.New("document not found")
	// ErrDuplicate is returned when a unique key is already taken
	ErrDuplicate = errors.New("duplicate document")
	// ErrInsufficientStock is returned when a deduction would take stock below zero
	ErrInsufficientStock = errors.New("insufficient stock")
)

// UserStore persists users
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	FindUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, id primitive.ObjectID, update models.UserUpdate) (*models.User, error)
	// VerifyUser marks the holder of the verification token as verified and
	// clears the token, so each token works once
	VerifyUser(ctx context.Context, token string) (*models.User, error)
}

// ProductStore persists products
type ProductStore interface {
	CreateProduct(ctx context.Context, product *models.Product) error
	FindProductByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, error)
	UpdateProduct(ctx context.Context, id primitive.ObjectID, update models.ProductUpdate) (*models.Product, error)
	DeleteProduct(ctx context.Context, id primitive.ObjectID) error
	// SetProductRatings replaces the embedded ratings and their average
	SetProductRatings(ctx context.Context, id primitive.ObjectID, ratings []models.ProductRating, average float64) (*models.Product, error)
	// AdjustStock adds delta (negative to deduct) to the stock count.
	// A deduction larger than the remaining stock fails with ErrInsufficientStock.
	AdjustStock(ctx context.Context, id primitive.ObjectID, delta int) error
}

// OrderStore persists orders
type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	FindOrderByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	// ListOrders returns matching orders, newest first
	ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error)
	// UpdateOrder applies update unconditionally and returns the stored order
	UpdateOrder(ctx context.Context, id primitive.ObjectID, update models.OrderUpdate) (*models.Order, error)
}

// ChatStore persists chats and their messages
type ChatStore interface {
	CreateChat(ctx context.Context, chat *models.Chat) error
	FindChatByID(ctx context.Context, id primitive.ObjectID) (*models.Chat, error)
	// FindChatBetween returns the chat whose participants are exactly a and b
	FindChatBetween(ctx context.Context, a, b primitive.ObjectID) (*models.Chat, error)
	// ListChatsForUser returns the user's chats ordered by their last message,
	// newest first; chats without messages follow, newest created first
	ListChatsForUser(ctx context.Context, userID primitive.ObjectID) ([]models.Chat, error)
	UpdateChatSettings(ctx context.Context, id primitive.ObjectID, settings models.ChatSettings) (*models.Chat, error)
	// TouchLastMessage points the chat at msg and increments its unread counter by one
	TouchLastMessage(ctx context.Context, chatID primitive.ObjectID, msg *models.Message) error
	ResetUnread(ctx context.Context, chatID primitive.ObjectID) error

	InsertMessage(ctx context.Context, msg *models.Message) error
	FindMessageByID(ctx context.Context, chatID, id primitive.ObjectID) (*models.Message, error)
	// ListMessages returns up to limit messages created before the given time
	// (zero means now), oldest first
	ListMessages(ctx context.Context, chatID primitive.ObjectID, before time.Time, limit int) ([]models.Message, error)
	// MarkMessagesRead flags the given messages of a chat as read and returns how many changed
	MarkMessagesRead(ctx context.Context, chatID primitive.ObjectID, ids []primitive.ObjectID) (int64, error)
	// SearchMessages matches text case-insensitively as a substring
	SearchMessages(ctx context.Context, chatID primitive.ObjectID, query string) ([]models.Message, error)
	DeleteMessage(ctx context.Context, chatID, id primitive.ObjectID) error
}

// FarmerStore persists farmer profiles
type FarmerStore interface {
	UpsertFarmerProfile(ctx context.Context, profile *models.FarmerProfile) (*models.FarmerProfile, error)
	FindFarmerProfile(ctx context.Context, userID primitive.ObjectID) (*models.FarmerProfile, error)
}

// Store groups the per-entity stores handed to the controllers
type Store struct {
	Users    UserStore
	Products ProductStore
	Orders   OrderStore
	Chats    ChatStore
	Farmers  FarmerStore
}
