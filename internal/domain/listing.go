package domain

import "time"

type ListingKind string

const (
	ListingGood    ListingKind = "good"
	ListingService ListingKind = "service"
)

// Listing is the marketplace item a session reserves stock against. The
// catalog itself is owned elsewhere; this service only reads listings and
// moves quantity between the available and reserved counters.
type Listing struct {
	ID         string      `json:"id"`
	SellerID   string      `json:"seller_id"`
	Title      string      `json:"title"`
	Kind       ListingKind `json:"kind"`
	PriceCents int64       `json:"price_cents"`
	Available  int         `json:"available"`
	Reserved   int         `json:"reserved"`
	Active     bool        `json:"active"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// Purchasable reports whether the listing can enter a checkout session.
// Services are priced per quote, not per cart line.
func (l *Listing) Purchasable() bool {
	return l.Active && l.Kind == ListingGood
}

func (l *Listing) Quotable() bool {
	return l.Active && l.Kind == ListingService
}
