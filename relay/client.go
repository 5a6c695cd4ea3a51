package relay

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"go-farmmarket/models"

	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 << 10
	sendQueueSize  = 64
	lookupTimeout  = 5 * time.Second
)

// Client is one authenticated socket connection
type Client struct {
	id     string
	userID primitive.ObjectID
	role   models.Role
	conn   *websocket.Conn
	hub    *Hub
	send   chan []byte

	// guarded by hub.mu
	rooms  map[string]struct{}
	closed bool
}

func newClient(hub *Hub, conn *websocket.Conn, id string, userID primitive.ObjectID, role models.Role) *Client {
	return &Client{
		id:     id,
		userID: userID,
		role:   role,
		conn:   conn,
		hub:    hub,
		send:   make(chan []byte, sendQueueSize),
		rooms:  make(map[string]struct{}),
	}
}

// reply queues an event for this client only
func (c *Client) reply(t models.EventType, payload interface{}) {
	env, err := models.NewEnvelope(t, payload)
	if err != nil {
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		return
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) replyError(msg string) {
	c.reply(models.EventError, models.ErrorEvent{Message: msg})
}

// writePump moves queued frames to the socket and keeps the connection alive
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump dispatches client events until the connection fails
func (c *Client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var env models.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("relay: client %s read: %v", c.id, err)
			}
			return
		}
		c.handle(env)
	}
}

func (c *Client) handle(env models.Envelope) {
	switch env.Type {
	case models.EventJoinOrder:
		c.joinOrder(env.Data)
	case models.EventLeaveOrder:
		c.leave(env.Data, func(p models.RoomPayload) (string, bool) {
			id, err := primitive.ObjectIDFromHex(p.OrderID)
			return OrderRoom(id), err == nil
		})
	case models.EventLocationUpdate:
		c.publishLocation(env.Data)
	case models.EventJoinChat:
		c.joinChat(env.Data)
	case models.EventLeaveChat:
		c.leave(env.Data, func(p models.RoomPayload) (string, bool) {
			id, err := primitive.ObjectIDFromHex(p.ChatID)
			return ChatRoom(id), err == nil
		})
	case models.EventTyping:
		c.publishTyping(env.Data)
	case models.EventAuth:
		// already authenticated
	default:
		c.replyError("unknown event type " + string(env.Type))
	}
}

func (c *Client) joinOrder(data json.RawMessage) {
	var p models.RoomPayload
	if err := json.Unmarshal(data, &p); err != nil {
		c.replyError("invalid join_order payload")
		return
	}
	orderID, err := primitive.ObjectIDFromHex(p.OrderID)
	if err != nil {
		c.replyError("invalid order id")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()
	order, err := c.hub.orders.FindOrderByID(ctx, orderID)
	if err != nil {
		c.replyError("order not found")
		return
	}
	if c.role != models.RoleAdmin && !order.HasParty(c.userID) {
		c.replyError("not a party to this order")
		return
	}

	c.hub.Join(c, OrderRoom(orderID))
	c.reply(models.EventJoined, p)
}

func (c *Client) joinChat(data json.RawMessage) {
	var p models.RoomPayload
	if err := json.Unmarshal(data, &p); err != nil {
		c.replyError("invalid join_chat payload")
		return
	}
	chatID, err := primitive.ObjectIDFromHex(p.ChatID)
	if err != nil {
		c.replyError("invalid chat id")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()
	chat, err := c.hub.chats.FindChatByID(ctx, chatID)
	if err != nil {
		c.replyError("chat not found")
		return
	}
	if !chat.HasParticipant(c.userID) {
		c.replyError("not a participant of this chat")
		return
	}

	c.hub.Join(c, ChatRoom(chatID))
	c.reply(models.EventJoined, p)
}

func (c *Client) leave(data json.RawMessage, room func(models.RoomPayload) (string, bool)) {
	var p models.RoomPayload
	if err := json.Unmarshal(data, &p); err != nil {
		c.replyError("invalid leave payload")
		return
	}
	name, ok := room(p)
	if !ok {
		c.replyError("invalid room id")
		return
	}
	c.hub.Leave(c, name)
	c.reply(models.EventLeft, p)
}

// publishLocation relays a delivery position to everyone else tracking the order
func (c *Client) publishLocation(data json.RawMessage) {
	var loc models.LocationUpdate
	if err := json.Unmarshal(data, &loc); err != nil {
		c.replyError("invalid location_update payload")
		return
	}
	orderID, err := primitive.ObjectIDFromHex(loc.OrderID)
	if err != nil {
		c.replyError("invalid order id")
		return
	}
	room := OrderRoom(orderID)
	if !c.hub.InRoom(c, room) {
		c.replyError("join the order before publishing its location")
		return
	}

	loc.SenderID = c.userID.Hex()
	loc.SentAt = time.Now().UTC()
	env, err := models.NewEnvelope(models.EventLocationUpdate, loc)
	if err != nil {
		return
	}
	c.hub.Broadcast(room, env, c)
}

func (c *Client) publishTyping(data json.RawMessage) {
	var ev models.TypingEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		c.replyError("invalid typing payload")
		return
	}
	chatID, err := primitive.ObjectIDFromHex(ev.ChatID)
	if err != nil {
		c.replyError("invalid chat id")
		return
	}
	room := ChatRoom(chatID)
	if !c.hub.InRoom(c, room) {
		c.replyError("join the chat before sending typing events")
		return
	}

	ev.UserID = c.userID.Hex()
	env, err := models.NewEnvelope(models.EventTyping, ev)
	if err != nil {
		return
	}
	c.hub.Broadcast(room, env, c)
}
