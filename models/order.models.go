package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OrderStatus is the lifecycle state of an order
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"   // placed, awaiting the farmer
	OrderAccepted  OrderStatus = "accepted"  // farmer agreed to fulfil
	OrderRejected  OrderStatus = "rejected"  // farmer declined
	OrderShipped   OrderStatus = "shipped"   // out for delivery
	OrderDelivered OrderStatus = "delivered" // buyer received it
	OrderCancelled OrderStatus = "cancelled"
)

// Valid reports whether s is one of the known statuses
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderAccepted, OrderRejected, OrderShipped, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

// OrderItem is one product line of an order, priced at checkout
type OrderItem struct {
	ProductID primitive.ObjectID `bson:"product_id" json:"product_id"`
	Name      string             `bson:"name" json:"name"`
	Quantity  int                `bson:"quantity" json:"quantity"`
	UnitPrice float64            `bson:"unit_price" json:"unit_price"`
}

// TrackingInfo is the delivery tracking payload attached when an order ships
type TrackingInfo struct {
	Carrier           string     `bson:"carrier,omitempty" json:"carrier,omitempty"`
	TrackingNumber    string     `bson:"tracking_number,omitempty" json:"tracking_number,omitempty"`
	EstimatedDelivery *time.Time `bson:"estimated_delivery,omitempty" json:"estimated_delivery,omitempty"`
	LastLocation      *GeoPoint  `bson:"last_location,omitempty" json:"last_location,omitempty"`
}

// OrderRating is the buyer's rating of a completed purchase
type OrderRating struct {
	Value   int       `bson:"value" json:"value"`
	Review  string    `bson:"review,omitempty" json:"review,omitempty"`
	RatedAt time.Time `bson:"rated_at" json:"rated_at"`
}

// Order represents a purchase from one farmer by one buyer
type Order struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	OrderRef        string             `bson:"order_ref" json:"order_ref"`
	BuyerID         primitive.ObjectID `bson:"buyer_id" json:"buyer_id"`
	FarmerID        primitive.ObjectID `bson:"farmer_id" json:"farmer_id"`
	Items           []OrderItem        `bson:"items" json:"items"`
	TotalAmount     float64            `bson:"total_amount" json:"total_amount"`
	DeliveryAddress Address            `bson:"delivery_address" json:"delivery_address"`
	PaymentMethod   PaymentMethod      `bson:"payment_method" json:"payment_method"`
	Status          OrderStatus        `bson:"status" json:"status"`
	Tracking        *TrackingInfo      `bson:"tracking,omitempty" json:"tracking,omitempty"`
	Rating          *OrderRating       `bson:"rating,omitempty" json:"rating,omitempty"`
	RejectReason    string             `bson:"reject_reason,omitempty" json:"reject_reason,omitempty"`
	CancelReason    string             `bson:"cancel_reason,omitempty" json:"cancel_reason,omitempty"`
	AcceptedAt      *time.Time         `bson:"accepted_at,omitempty" json:"accepted_at,omitempty"`
	ShippedAt       *time.Time         `bson:"shipped_at,omitempty" json:"shipped_at,omitempty"`
	DeliveredAt     *time.Time         `bson:"delivered_at,omitempty" json:"delivered_at,omitempty"`
	CancelledAt     *time.Time         `bson:"cancelled_at,omitempty" json:"cancelled_at,omitempty"`
	CreatedAt       time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time          `bson:"updated_at" json:"updated_at"`
}

// HasParty reports whether the user is the buyer or the farmer of the order
func (o *Order) HasParty(userID primitive.ObjectID) bool {
	return o.BuyerID == userID || o.FarmerID == userID
}

// OrderUpdate is a partial write to an order. Nil fields are left alone.
type OrderUpdate struct {
	Status       *OrderStatus
	Tracking     *TrackingInfo
	Rating       *OrderRating
	RejectReason *string
	CancelReason *string
	AcceptedAt   *time.Time
	ShippedAt    *time.Time
	DeliveredAt  *time.Time
	CancelledAt  *time.Time
}

// OrderFilter selects orders. Zero values mean "any".
type OrderFilter struct {
	BuyerID  primitive.ObjectID
	FarmerID primitive.ObjectID
	Status   OrderStatus
}
