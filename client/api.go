package client

import (
	"context"
	"net/http"
	"net/url"

	"go-farmmarket/models"
)

// AuthResult is the answer of Register and Login
type AuthResult struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// RegisterInput is the body of Register
type RegisterInput struct {
	Name     string         `json:"name"`
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Role     models.Role    `json:"role"`
	Phone    string         `json:"phone,omitempty"`
	Address  models.Address `json:"address"`
}

// OrderLine is one product and quantity of CreateOrderInput
type OrderLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// CreateOrderInput is the body of CreateOrder
type CreateOrderInput struct {
	Items           []OrderLine    `json:"items"`
	DeliveryAddress models.Address `json:"delivery_address"`
	PaymentMethod   string         `json:"payment_method"`
}

// SendMessageInput is the body of SendMessage
type SendMessageInput struct {
	Type     models.MessageType `json:"type,omitempty"`
	Text     string             `json:"text,omitempty"`
	MediaURL string             `json:"media_url,omitempty"`
}

// Register creates an account and stores the returned token
func (c *Client) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	var out AuthResult
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", in, &out); err != nil {
		return nil, err
	}
	return &out, c.tokens.SetToken(out.Token)
}

// Login authenticates and stores the returned token
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var out AuthResult
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &out); err != nil {
		return nil, err
	}
	return &out, c.tokens.SetToken(out.Token)
}

// VerifyEmail confirms an account with the token from the verification mail
func (c *Client) VerifyEmail(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodGet, "/api/auth/verify?token="+url.QueryEscape(token), nil, nil)
}

// Logout forgets the stored token
func (c *Client) Logout() error {
	if c.cache != nil {
		c.cache.Clear()
	}
	return c.tokens.Clear()
}

// Me returns the profile of the logged-in user
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var out models.User
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListProducts lists products; query takes the same keys as the API (category, q, organic, ...)
func (c *Client) ListProducts(ctx context.Context, query url.Values) ([]models.Product, error) {
	path := "/api/products"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	var out []models.Product
	if err := c.cachedGet(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetProduct fetches one product by ID
func (c *Client) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var out models.Product
	if err := c.cachedGet(ctx, "/api/products/"+url.PathEscape(id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateOrder places a new order for the logged-in buyer
func (c *Client) CreateOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	var out models.Order
	if err := c.do(ctx, http.MethodPost, "/api/orders", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MyOrders lists the orders the logged-in user bought or received
func (c *Client) MyOrders(ctx context.Context) ([]models.Order, error) {
	var out []models.Order
	if err := c.do(ctx, http.MethodGet, "/api/orders/my-orders", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetOrder fetches one order by ID
func (c *Client) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var out models.Order
	if err := c.do(ctx, http.MethodGet, "/api/orders/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) orderAction(ctx context.Context, id, action string, body interface{}) (*models.Order, error) {
	var out models.Order
	if err := c.do(ctx, http.MethodPut, "/api/orders/"+url.PathEscape(id)+"/"+action, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AcceptOrder sets the order to accepted
func (c *Client) AcceptOrder(ctx context.Context, id string) (*models.Order, error) {
	return c.orderAction(ctx, id, "accept", nil)
}

// RejectOrder sets the order to rejected with a reason
func (c *Client) RejectOrder(ctx context.Context, id, reason string) (*models.Order, error) {
	return c.orderAction(ctx, id, "reject", map[string]string{"reason": reason})
}

// ShipOrder sets the order to shipped; tracking may be nil
func (c *Client) ShipOrder(ctx context.Context, id string, tracking *models.TrackingInfo) (*models.Order, error) {
	return c.orderAction(ctx, id, "shipped", map[string]*models.TrackingInfo{"tracking": tracking})
}

// DeliverOrder sets the order to delivered
func (c *Client) DeliverOrder(ctx context.Context, id string) (*models.Order, error) {
	return c.orderAction(ctx, id, "delivered", nil)
}

// CancelOrder sets the order to cancelled with a reason
func (c *Client) CancelOrder(ctx context.Context, id, reason string) (*models.Order, error) {
	return c.orderAction(ctx, id, "cancel", map[string]string{"reason": reason})
}

// RateOrder stores the buyer's 1 to 5 rating of the order
func (c *Client) RateOrder(ctx context.Context, id string, value int, review string) (*models.Order, error) {
	return c.orderAction(ctx, id, "rate", map[string]interface{}{"value": value, "review": review})
}

// ListChats lists the chats of the logged-in user, most recent first
func (c *Client) ListChats(ctx context.Context) ([]models.Chat, error) {
	var out []models.Chat
	if err := c.do(ctx, http.MethodGet, "/api/chats", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// OpenChat returns the chat with participantID, creating it on first contact
func (c *Client) OpenChat(ctx context.Context, participantID string) (*models.Chat, error) {
	var out models.Chat
	body := map[string]string{"participant_id": participantID}
	if err := c.do(ctx, http.MethodPost, "/api/chats", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendMessage posts a message to a chat
func (c *Client) SendMessage(ctx context.Context, chatID string, in SendMessageInput) (*models.Message, error) {
	var out models.Message
	if err := c.do(ctx, http.MethodPost, "/api/chats/"+url.PathEscape(chatID)+"/messages", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MarkRead flags the messages read and returns how many changed
func (c *Client) MarkRead(ctx context.Context, chatID string, messageIDs []string) (int64, error) {
	var out struct {
		Modified int64 `json:"modified"`
	}
	body := map[string][]string{"message_ids": messageIDs}
	err := c.do(ctx, http.MethodPut, "/api/chats/"+url.PathEscape(chatID)+"/read", body, &out)
	return out.Modified, err
}
