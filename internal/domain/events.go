package domain

import "time"

const (
	TopicOrderCreated = "checkout.order.created"
	TopicQuoteChanged = "quote.status.changed"
	EventOrderCreated = "OrderCreated"
	EventQuoteChanged = "QuoteStatusChanged"
)

type OrderCreatedEvent struct {
	OrderID    string      `json:"order_id"`
	SessionID  string      `json:"session_id"`
	BuyerID    string      `json:"buyer_id"`
	SellerID   string      `json:"seller_id"`
	TotalCents int64       `json:"total_cents"`
	Items      []OrderItem `json:"items"`
	Timestamp  time.Time   `json:"timestamp"`
}

type QuoteStatusChangedEvent struct {
	QuoteID   string      `json:"quote_id"`
	ListingID string      `json:"listing_id"`
	BuyerID   string      `json:"buyer_id"`
	SellerID  string      `json:"seller_id"`
	From      QuoteStatus `json:"from"`
	To        QuoteStatus `json:"to"`
	Timestamp time.Time   `json:"timestamp"`
}
