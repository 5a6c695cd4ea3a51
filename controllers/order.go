// controllers/order.go
package controllers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"go-farmmarket/middleware"
	"go-farmmarket/models"
	"go-farmmarket/store"
	"go-farmmarket/utils"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OrderController handles order-related requests
type OrderController struct {
	Orders   store.OrderStore
	Products store.ProductStore
	Users    store.UserStore
	Mailer   utils.Mailer
	Events   Broadcaster
}

// NewOrderController creates a new OrderController
func NewOrderController(s *store.Store, mailer utils.Mailer, events Broadcaster) *OrderController {
	return &OrderController{
		Orders:   s.Orders,
		Products: s.Products,
		Users:    s.Users,
		Mailer:   mailer,
		Events:   events,
	}
}

type orderLineRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type createOrderRequest struct {
	Items           []orderLineRequest `json:"items"`
	DeliveryAddress models.Address     `json:"delivery_address"`
	PaymentMethod   string             `json:"payment_method"`
}

type ratingRequest struct {
	Value  int    `json:"value"`
	Review string `json:"review"`
}

// CreateOrder places an order for products of a single farmer
func (oc *OrderController) CreateOrder(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFrom(r)
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	var req createOrderRequest
	if err := decodeBody(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.Items) == 0 {
		utils.WriteError(w, http.StatusBadRequest, "Order has no items", nil)
		return
	}
	paymentMethod, ok := models.ParsePaymentMethod(req.PaymentMethod)
	if !ok {
		utils.WriteError(w, http.StatusBadRequest, "Invalid payment method", nil)
		return
	}
	if strings.TrimSpace(req.DeliveryAddress.Street) == "" || strings.TrimSpace(req.DeliveryAddress.City) == "" {
		utils.WriteError(w, http.StatusBadRequest, "Delivery address needs a street and city", nil)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	// Price each product once, merging repeated lines, and check stock
	var farmerID primitive.ObjectID
	items := make([]models.OrderItem, 0, len(req.Items))
	index := make(map[primitive.ObjectID]int, len(req.Items))
	stock := make(map[primitive.ObjectID]int, len(req.Items))
	for _, line := range req.Items {
		productID, err := primitive.ObjectIDFromHex(line.ProductID)
		if err != nil {
			utils.WriteError(w, http.StatusBadRequest, "Invalid product ID", err)
			return
		}
		if line.Quantity <= 0 {
			utils.WriteError(w, http.StatusBadRequest, "Quantity must be positive", nil)
			return
		}
		if i, seen := index[productID]; seen {
			items[i].Quantity += line.Quantity
			if stock[productID] < items[i].Quantity {
				utils.WriteError(w, http.StatusBadRequest, fmt.Sprintf("Insufficient stock for product: %s", items[i].Name), nil)
				return
			}
			continue
		}
		product, err := oc.Products.FindProductByID(ctx, productID)
		if err != nil {
			writeStoreError(w, fmt.Sprintf("Product with ID %s not found", productID.Hex()), err)
			return
		}
		if farmerID.IsZero() {
			farmerID = product.FarmerID
		} else if product.FarmerID != farmerID {
			utils.WriteError(w, http.StatusBadRequest, "All items of an order must come from one farmer", nil)
			return
		}
		if product.Stock < line.Quantity {
			utils.WriteError(w, http.StatusBadRequest, fmt.Sprintf("Insufficient stock for product: %s", product.Name), nil)
			return
		}
		index[productID] = len(items)
		stock[productID] = product.Stock
		items = append(items, models.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			Quantity:  line.Quantity,
			UnitPrice: product.Price,
		})
	}

	// Deduct stock for each product, restoring earlier deductions on failure
	for i, item := range items {
		if err := oc.Products.AdjustStock(ctx, item.ProductID, -item.Quantity); err != nil {
			oc.restoreStock(items[:i])
			if errors.Is(err, store.ErrInsufficientStock) {
				utils.WriteError(w, http.StatusBadRequest, fmt.Sprintf("Insufficient stock for product: %s", item.Name), nil)
				return
			}
			utils.WriteError(w, http.StatusInternalServerError, "Failed to update product stock", err)
			return
		}
	}

	now := time.Now().UTC()
	order := &models.Order{
		OrderRef:        newOrderRef(now),
		BuyerID:         caller.ID,
		FarmerID:        farmerID,
		Items:           items,
		TotalAmount:     utils.OrderTotal(items),
		DeliveryAddress: req.DeliveryAddress,
		PaymentMethod:   paymentMethod,
		Status:          models.OrderPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := oc.Orders.CreateOrder(ctx, order); err != nil {
		oc.restoreStock(items)
		utils.WriteError(w, http.StatusInternalServerError, "Failed to create order", err)
		return
	}

	oc.notify(order, caller.ID)
	go oc.mailUser(order.FarmerID, func(u *models.User) (string, string) {
		return utils.NewOrderEmail(u.Name, order)
	})

	utils.WriteJSON(w, http.StatusCreated, order)
}

// restoreStock puts back deducted quantities. It runs on a fresh context so a
// cancelled request still gets its stock returned.
func (oc *OrderController) restoreStock(items []models.OrderItem) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	for _, item := range items {
		if err := oc.Products.AdjustStock(ctx, item.ProductID, item.Quantity); err != nil {
			log.Printf("Failed to restore %d units of product %s: %v", item.Quantity, item.ProductID.Hex(), err)
		}
	}
}

// GetMyOrders lists the orders where the caller is the buyer (or the farmer, for farmers)
func (oc *OrderController) GetMyOrders(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFrom(r)
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	filter := models.OrderFilter{Status: models.OrderStatus(r.URL.Query().Get("status"))}
	if filter.Status != "" && !filter.Status.Valid() {
		utils.WriteError(w, http.StatusBadRequest, "Invalid status filter", nil)
		return
	}
	if caller.Role == models.RoleFarmer {
		filter.FarmerID = caller.ID
	} else {
		filter.BuyerID = caller.ID
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	orders, err := oc.Orders.ListOrders(ctx, filter)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Failed to retrieve orders", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, orders)
}

// GetOrder returns one order to its buyer, its farmer or an admin
func (oc *OrderController) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, _, ok := oc.loadForParty(w, r)
	if !ok {
		return
	}
	utils.WriteJSON(w, http.StatusOK, order)
}

// AcceptOrder sets the order to accepted
func (oc *OrderController) AcceptOrder(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	oc.setStatus(w, r, models.OrderAccepted, func(r *http.Request, u *models.OrderUpdate) error {
		u.AcceptedAt = &now
		return nil
	})
}

// RejectOrder sets the order to rejected with an optional reason
func (oc *OrderController) RejectOrder(w http.ResponseWriter, r *http.Request) {
	oc.setStatus(w, r, models.OrderRejected, func(r *http.Request, u *models.OrderUpdate) error {
		var body struct {
			Reason string `json:"reason"`
		}
		if err := decodeOptionalBody(r, &body); err != nil {
			return err
		}
		u.RejectReason = &body.Reason
		return nil
	})
}

// ShipOrder sets the order to shipped with optional tracking details
func (oc *OrderController) ShipOrder(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	oc.setStatus(w, r, models.OrderShipped, func(r *http.Request, u *models.OrderUpdate) error {
		var body struct {
			Tracking *models.TrackingInfo `json:"tracking"`
		}
		if err := decodeOptionalBody(r, &body); err != nil {
			return err
		}
		u.Tracking = body.Tracking
		u.ShippedAt = &now
		return nil
	})
}

// DeliverOrder sets the order to delivered
func (oc *OrderController) DeliverOrder(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	oc.setStatus(w, r, models.OrderDelivered, func(r *http.Request, u *models.OrderUpdate) error {
		u.DeliveredAt = &now
		return nil
	})
}

// CancelOrder sets the order to cancelled with an optional reason
func (oc *OrderController) CancelOrder(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	oc.setStatus(w, r, models.OrderCancelled, func(r *http.Request, u *models.OrderUpdate) error {
		var body struct {
			Reason string `json:"reason"`
		}
		if err := decodeOptionalBody(r, &body); err != nil {
			return err
		}
		u.CancelReason = &body.Reason
		u.CancelledAt = &now
		return nil
	})
}

// RateOrder stores the buyer's rating. Any order status is accepted.
func (oc *OrderController) RateOrder(w http.ResponseWriter, r *http.Request) {
	var req ratingRequest
	if err := decodeBody(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Value < 1 || req.Value > 5 {
		utils.WriteError(w, http.StatusBadRequest, "Rating must be between 1 and 5", nil)
		return
	}

	order, caller, ok := oc.loadForParty(w, r)
	if !ok {
		return
	}
	if order.BuyerID != caller.ID {
		utils.WriteError(w, http.StatusForbidden, "Only the buyer can rate this order", nil)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	rating := &models.OrderRating{Value: req.Value, Review: req.Review, RatedAt: time.Now().UTC()}
	updated, err := oc.Orders.UpdateOrder(ctx, order.ID, models.OrderUpdate{Rating: rating})
	if err != nil {
		writeStoreError(w, "Order not found", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, updated)
}

// setStatus writes the target status unconditionally: the current status is
// not consulted, so any transition is possible.
func (oc *OrderController) setStatus(w http.ResponseWriter, r *http.Request, status models.OrderStatus, fill func(*http.Request, *models.OrderUpdate) error) {
	order, caller, ok := oc.loadForParty(w, r)
	if !ok {
		return
	}

	update := models.OrderUpdate{Status: &status}
	if err := fill(r, &update); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	updated, err := oc.Orders.UpdateOrder(ctx, order.ID, update)
	if err != nil {
		writeStoreError(w, "Order not found", err)
		return
	}

	oc.notify(updated, caller.ID)
	go oc.mailUser(updated.BuyerID, func(u *models.User) (string, string) {
		return utils.OrderStatusEmail(u.Name, updated)
	})

	utils.WriteJSON(w, http.StatusOK, updated)
}

// loadForParty fetches the {id} order and checks the caller may see it
func (oc *OrderController) loadForParty(w http.ResponseWriter, r *http.Request) (*models.Order, middleware.Caller, bool) {
	caller, ok := middleware.CallerFrom(r)
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return nil, caller, false
	}
	orderID, err := pathID(r, "id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid order ID", err)
		return nil, caller, false
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	order, err := oc.Orders.FindOrderByID(ctx, orderID)
	if err != nil {
		writeStoreError(w, "Order not found", err)
		return nil, caller, false
	}
	if !order.HasParty(caller.ID) && !caller.IsAdmin() {
		utils.WriteError(w, http.StatusForbidden, "Forbidden", nil)
		return nil, caller, false
	}
	return order, caller, true
}

// notify pushes an order_status event to the buyer and the farmer
func (oc *OrderController) notify(order *models.Order, changedBy primitive.ObjectID) {
	if oc.Events == nil {
		return
	}
	event := models.OrderStatusEvent{
		OrderID:   order.ID,
		OrderRef:  order.OrderRef,
		Status:    order.Status,
		Tracking:  order.Tracking,
		ChangedBy: changedBy,
		ChangedAt: order.UpdatedAt,
	}
	oc.Events.EmitToUser(order.BuyerID, models.EventOrderStatus, event)
	oc.Events.EmitToUser(order.FarmerID, models.EventOrderStatus, event)
}

// mailUser looks the user up and sends the composed mail, logging failures
func (oc *OrderController) mailUser(userID primitive.ObjectID, compose func(*models.User) (string, string)) {
	if oc.Mailer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	user, err := oc.Users.FindUserByID(ctx, userID)
	if err != nil {
		log.Printf("Failed to load user %s for email: %v", userID.Hex(), err)
		return
	}
	subject, body := compose(user)
	if err := oc.Mailer.SendEmail(user.Email, subject, body); err != nil {
		log.Printf("Failed to send email to %s: %v", user.Email, err)
	}
}

// newOrderRef builds a sortable, human-facing order reference
func newOrderRef(now time.Time) string {
	return "FM-" + now.Format("20060102150405") + "-" + strings.ToUpper(uuid.NewString()[:8])
}

// decodeOptionalBody decodes a JSON body if one was sent
func decodeOptionalBody(r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := decodeBody(r, v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
