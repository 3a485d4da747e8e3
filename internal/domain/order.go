package domain

import "time"

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
	OrderRefunded   OrderStatus = "refunded"
)

var orderNext = map[OrderStatus]map[OrderStatus]bool{
	OrderPending:    {OrderProcessing: true, OrderCancelled: true},
	OrderProcessing: {OrderShipped: true, OrderDelivered: true, OrderCancelled: true},
	OrderShipped:    {OrderDelivered: true},
	OrderDelivered:  {OrderRefunded: true},
	OrderCancelled:  {},
	OrderRefunded:   {},
}

func (s OrderStatus) CanTransitionTo(to OrderStatus) bool {
	return orderNext[s][to]
}

func ValidOrderStatus(s OrderStatus) bool {
	_, ok := orderNext[s]
	return ok
}

type OrderItem struct {
	ListingID      string `json:"listing_id"`
	Title          string `json:"title"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Quantity       int    `json:"quantity"`
}

// Order is the durable record of a confirmed purchase for one seller. Items
// and amounts are snapshots taken at confirm time and never change; only
// the fulfillment status advances.
type Order struct {
	ID                string         `json:"id"`
	SessionID         string         `json:"session_id"`
	BuyerID           string         `json:"buyer_id"`
	SellerID          string         `json:"seller_id"`
	Status            OrderStatus    `json:"status"`
	Items             []OrderItem    `json:"items"`
	DeliveryMethod    DeliveryMethod `json:"delivery_method"`
	DeliveryAddressID string         `json:"delivery_address_id,omitempty"`
	PaymentMethod     PaymentMethod  `json:"payment_method"`
	SubtotalCents     int64          `json:"subtotal_cents"`
	DeliveryFeeCents  int64          `json:"delivery_fee_cents"`
	PlatformFeeCents  int64          `json:"platform_fee_cents"`
	TotalCents        int64          `json:"total_cents"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}
