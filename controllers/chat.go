package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go-farmmarket/middleware"
	"go-farmmarket/models"
	"go-farmmarket/store"
	"go-farmmarket/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	defaultMessagePage = 50
	maxMessagePage     = 200
)

// ChatController handles chat and message requests
type ChatController struct {
	Chats  store.ChatStore
	Users  store.UserStore
	Events Broadcaster
}

// NewChatController creates a new ChatController
func NewChatController(chats store.ChatStore, users store.UserStore, events Broadcaster) *ChatController {
	return &ChatController{Chats: chats, Users: users, Events: events}
}

// GetChats lists the caller's chats, most recent activity first
func (cc *ChatController) GetChats(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFrom(r)
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	chats, err := cc.Chats.ListChatsForUser(ctx, caller.ID)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Failed to retrieve chats", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, chats)
}

// OpenChat returns the chat between the caller and a participant, creating it on first contact
func (cc *ChatController) OpenChat(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFrom(r)
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	var req struct {
		ParticipantID string `json:"participant_id"`
		OrderID       string `json:"order_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid input", err)
		return
	}
	otherID, err := primitive.ObjectIDFromHex(req.ParticipantID)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid participant ID", err)
		return
	}
	if otherID == caller.ID {
		utils.WriteError(w, http.StatusBadRequest, "Cannot open a chat with yourself", nil)
		return
	}
	var orderID *primitive.ObjectID
	if req.OrderID != "" {
		id, err := primitive.ObjectIDFromHex(req.OrderID)
		if err != nil {
			utils.WriteError(w, http.StatusBadRequest, "Invalid order ID", err)
			return
		}
		orderID = &id
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	if _, err := cc.Users.FindUserByID(ctx, otherID); err != nil {
		writeStoreError(w, "Participant not found", err)
		return
	}

	chat, err := cc.Chats.FindChatBetween(ctx, caller.ID, otherID)
	if err == nil {
		utils.WriteJSON(w, http.StatusOK, chat)
		return
	}
	if !errors.Is(err, store.ErrNotFound) {
		utils.WriteError(w, http.StatusInternalServerError, "Database error", err)
		return
	}

	now := time.Now().UTC()
	chat = &models.Chat{
		Participants: []primitive.ObjectID{caller.ID, otherID},
		OrderID:      orderID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := cc.Chats.CreateChat(ctx, chat); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Failed to create chat", err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, chat)
}

// GetChatWith looks up the chat with another user without creating one
func (cc *ChatController) GetChatWith(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFrom(r)
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}
	otherID, err := pathID(r, "userId")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid user ID", err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	chat, err := cc.Chats.FindChatBetween(ctx, caller.ID, otherID)
	if err != nil {
		writeStoreError(w, "Chat not found", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, chat)
}

// GetMessages pages through a chat's messages, oldest first within a page
func (cc *ChatController) GetMessages(w http.ResponseWriter, r *http.Request) {
	chat, _, ok := cc.loadForParticipant(w, r)
	if !ok {
		return
	}

	limit := defaultMessagePage
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			utils.WriteError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		if n > maxMessagePage {
			n = maxMessagePage
		}
		limit = n
	}
	var before time.Time
	if v := r.URL.Query().Get("before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			utils.WriteError(w, http.StatusBadRequest, "Invalid before timestamp", err)
			return
		}
		before = t
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	msgs, err := cc.Chats.ListMessages(ctx, chat.ID, before, limit)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Failed to retrieve messages", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, msgs)
}

// SendMessage appends a message, then moves the chat's last-message pointer
// and bumps its unread counter. The two writes are not atomic.
func (cc *ChatController) SendMessage(w http.ResponseWriter, r *http.Request) {
	chat, caller, ok := cc.loadForParticipant(w, r)
	if !ok {
		return
	}
	if chat.IsBlocked {
		utils.WriteError(w, http.StatusForbidden, "This chat is blocked", nil)
		return
	}

	var req struct {
		Type     models.MessageType `json:"type"`
		Text     string             `json:"text"`
		MediaURL string             `json:"media_url"`
	}
	if err := decodeBody(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid input", err)
		return
	}
	if req.Type == "" {
		req.Type = models.MessageText
	}
	switch req.Type {
	case models.MessageText:
		if strings.TrimSpace(req.Text) == "" {
			utils.WriteError(w, http.StatusBadRequest, "Message text is required", nil)
			return
		}
	case models.MessageImage, models.MessageFile:
		if req.MediaURL == "" {
			utils.WriteError(w, http.StatusBadRequest, "media_url is required for media messages", nil)
			return
		}
	default:
		utils.WriteError(w, http.StatusBadRequest, "Invalid message type", nil)
		return
	}

	now := time.Now().UTC()
	msg := &models.Message{
		ChatID:    chat.ID,
		SenderID:  caller.ID,
		Type:      req.Type,
		Text:      req.Text,
		MediaURL:  req.MediaURL,
		CreatedAt: now,
		UpdatedAt: now,
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	if err := cc.Chats.InsertMessage(ctx, msg); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Failed to send message", err)
		return
	}
	if err := cc.Chats.TouchLastMessage(ctx, chat.ID, msg); err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Failed to update chat", err)
		return
	}

	if cc.Events != nil {
		event := models.NewMessageEvent{ChatID: chat.ID, Message: *msg}
		for _, p := range chat.Participants {
			if p != caller.ID {
				cc.Events.EmitToUser(p, models.EventNewMessage, event)
			}
		}
		cc.Events.EmitToChat(chat.ID, models.EventNewMessage, event)
	}

	utils.WriteJSON(w, http.StatusCreated, msg)
}

// MarkAsRead flags the listed messages read, then zeroes the chat's unread counter
func (cc *ChatController) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	chat, _, ok := cc.loadForParticipant(w, r)
	if !ok {
		return
	}

	var req struct {
		MessageIDs []string `json:"message_ids"`
	}
	if err := decodeBody(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid input", err)
		return
	}
	ids := make([]primitive.ObjectID, 0, len(req.MessageIDs))
	for _, hex := range req.MessageIDs {
		id, err := primitive.ObjectIDFromHex(hex)
		if err != nil {
			utils.WriteError(w, http.StatusBadRequest, "Invalid message ID", err)
			return
		}
		ids = append(ids, id)
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	modified, err := cc.Chats.MarkMessagesRead(ctx, chat.ID, ids)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Failed to mark messages read", err)
		return
	}
	if err := cc.Chats.ResetUnread(ctx, chat.ID); err != nil {
		writeStoreError(w, "Chat not found", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]int64{"modified": modified})
}

// SearchMessages finds messages whose text contains q, ignoring case
func (cc *ChatController) SearchMessages(w http.ResponseWriter, r *http.Request) {
	chat, _, ok := cc.loadForParticipant(w, r)
	if !ok {
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		utils.WriteError(w, http.StatusBadRequest, "Query parameter q is required", nil)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	msgs, err := cc.Chats.SearchMessages(ctx, chat.ID, q)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Failed to search messages", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, msgs)
}

// DeleteMessage hard-deletes one of the caller's own messages
func (cc *ChatController) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	chat, caller, ok := cc.loadForParticipant(w, r)
	if !ok {
		return
	}
	msgID, err := pathID(r, "messageId")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid message ID", err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	msg, err := cc.Chats.FindMessageByID(ctx, chat.ID, msgID)
	if err != nil {
		writeStoreError(w, "Message not found", err)
		return
	}
	if msg.SenderID != caller.ID {
		utils.WriteError(w, http.StatusForbidden, "Only the sender can delete a message", nil)
		return
	}
	if err := cc.Chats.DeleteMessage(ctx, chat.ID, msgID); err != nil {
		writeStoreError(w, "Message not found", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "Message deleted"})
}

// UpdateSettings toggles mute, archive and block on a chat
func (cc *ChatController) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	chat, _, ok := cc.loadForParticipant(w, r)
	if !ok {
		return
	}

	var settings models.ChatSettings
	if err := decodeBody(r, &settings); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid input", err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	updated, err := cc.Chats.UpdateChatSettings(ctx, chat.ID, settings)
	if err != nil {
		writeStoreError(w, "Chat not found", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, updated)
}

// loadForParticipant fetches the {chatId} chat and checks the caller takes part in it
func (cc *ChatController) loadForParticipant(w http.ResponseWriter, r *http.Request) (*models.Chat, middleware.Caller, bool) {
	caller, ok := middleware.CallerFrom(r)
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return nil, caller, false
	}
	chatID, err := pathID(r, "chatId")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid chat ID", err)
		return nil, caller, false
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	chat, err := cc.Chats.FindChatByID(ctx, chatID)
	if err != nil {
		writeStoreError(w, "Chat not found", err)
		return nil, caller, false
	}
	if !chat.HasParticipant(caller.ID) {
		utils.WriteError(w, http.StatusForbidden, "Not a participant of this chat", nil)
		return nil, caller, false
	}
	return chat, caller, true
}
