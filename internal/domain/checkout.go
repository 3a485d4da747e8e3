package domain

import "time"

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionConfirmed SessionStatus = "confirmed"
	SessionCancelled SessionStatus = "cancelled"
	SessionExpired   SessionStatus = "expired"
)

// Terminal reports whether the status accepts no further transitions.
func (s SessionStatus) Terminal() bool {
	return s == SessionConfirmed || s == SessionCancelled || s == SessionExpired
}

type DeliveryMethod string

const (
	DeliveryPickup DeliveryMethod = "pickup"
	DeliveryCampus DeliveryMethod = "campus_delivery"
)

func ValidDeliveryMethod(m DeliveryMethod) bool {
	return m == DeliveryPickup || m == DeliveryCampus
}

type PaymentMethod string

const (
	PaymentCard         PaymentMethod = "card"
	PaymentCashOnPickup PaymentMethod = "cash_on_pickup"
)

func ValidPaymentMethod(m PaymentMethod) bool {
	return m == PaymentCard || m == PaymentCashOnPickup
}

// SessionItem is a cart line frozen at reservation time: price, title and
// seller are snapshots, immune to later listing edits.
type SessionItem struct {
	ListingID      string `json:"listing_id"`
	SellerID       string `json:"seller_id"`
	Title          string `json:"title"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Quantity       int    `json:"quantity"`
}

// SellerGroup is the subset of a session's items belonging to one seller,
// with its computed fee breakdown. A multi-seller session fans out into one
// order per group at confirm time.
type SellerGroup struct {
	SellerID         string        `json:"seller_id"`
	Items            []SessionItem `json:"items"`
	SubtotalCents    int64         `json:"subtotal_cents"`
	DeliveryFeeCents int64         `json:"delivery_fee_cents"`
	PlatformFeeCents int64         `json:"platform_fee_cents"`
	TotalCents       int64         `json:"total_cents"`
}

type SessionSource string

const (
	SourceCart   SessionSource = "cart"
	SourceDirect SessionSource = "direct"
)

// CheckoutSession is the ephemeral, TTL-bound record of an in-progress
// purchase. active is the only non-terminal status.
type CheckoutSession struct {
	ID                string         `json:"id"`
	OwnerID           string         `json:"owner_id"`
	Status            SessionStatus  `json:"status"`
	Source            SessionSource  `json:"source"`
	Items             []SessionItem  `json:"items"`
	DeliveryMethod    DeliveryMethod `json:"delivery_method,omitempty"`
	DeliveryAddressID string         `json:"delivery_address_id,omitempty"`
	PaymentMethod     PaymentMethod  `json:"payment_method,omitempty"`
	SubtotalCents     int64          `json:"subtotal_cents"`
	DeliveryFeeCents  int64          `json:"delivery_fee_cents"`
	PlatformFeeCents  int64          `json:"platform_fee_cents"`
	TotalCents        int64          `json:"total_cents"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	ExpiresAt         time.Time      `json:"expires_at"`
}

// ExpiredBy reports whether an active session's TTL has elapsed. Terminal
// sessions never expire again.
func (s *CheckoutSession) ExpiredBy(now time.Time) bool {
	return s.Status == SessionActive && now.After(s.ExpiresAt)
}

// SplitBySeller groups the session items per seller, preserving the order
// sellers first appear in.
func (s *CheckoutSession) SplitBySeller() []SellerGroup {
	var groups []SellerGroup
	index := make(map[string]int)
	for _, item := range s.Items {
		i, ok := index[item.SellerID]
		if !ok {
			i = len(groups)
			index[item.SellerID] = i
			groups = append(groups, SellerGroup{SellerID: item.SellerID})
		}
		groups[i].Items = append(groups[i].Items, item)
		groups[i].SubtotalCents += item.UnitPriceCents * int64(item.Quantity)
	}
	return groups
}

type ReservationStatus string

const (
	ReservationHeld      ReservationStatus = "held"
	ReservationReleased  ReservationStatus = "released"
	ReservationCommitted ReservationStatus = "committed"
)

// Reservation is one ledger entry: a temporary hold of listing stock tied
// to a checkout session. Released on cancel/expiry, committed on confirm.
type Reservation struct {
	ID        string            `json:"id"`
	SessionID string            `json:"session_id"`
	ListingID string            `json:"listing_id"`
	Quantity  int               `json:"quantity"`
	Status    ReservationStatus `json:"status"`
	ExpiresAt time.Time         `json:"expires_at"`
	CreatedAt time.Time         `json:"created_at"`
}
