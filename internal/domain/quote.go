package domain

import "time"

type QuoteStatus string

const (
	QuotePending    QuoteStatus = "pending"
	QuoteQuoted     QuoteStatus = "quoted"
	QuoteAccepted   QuoteStatus = "accepted"
	QuoteRejected   QuoteStatus = "rejected"
	QuoteExpired    QuoteStatus = "expired"
	QuotePaid       QuoteStatus = "paid"
	QuoteInProgress QuoteStatus = "in_progress"
	QuoteCompleted  QuoteStatus = "completed"
	QuoteCancelled  QuoteStatus = "cancelled"
)

// Terminal reports whether the status accepts no further transitions.
func (s QuoteStatus) Terminal() bool {
	switch s {
	case QuoteRejected, QuoteExpired, QuoteCompleted, QuoteCancelled:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type CancelReason string

const (
	CancelBuyerChangedMind  CancelReason = "buyer_changed_mind"
	CancelSellerUnavailable CancelReason = "seller_unavailable"
	CancelMutualAgreement   CancelReason = "mutual_agreement"
	CancelDispute           CancelReason = "dispute"
	CancelOther             CancelReason = "other"
)

func ValidCancelReason(r CancelReason) bool {
	switch r {
	case CancelBuyerChangedMind, CancelSellerUnavailable, CancelMutualAgreement, CancelDispute, CancelOther:
		return true
	}
	return false
}

// SellerQuote is the seller's response: present only once the request has
// been quoted, and a snapshot from then on (deposit terms included).
type SellerQuote struct {
	PriceCents         int64     `json:"price_cents"`
	EstimatedDuration  string    `json:"estimated_duration,omitempty"`
	Message            string    `json:"message,omitempty"`
	DepositRequired    bool      `json:"deposit_required"`
	DepositAmountCents *int64    `json:"deposit_amount_cents,omitempty"`
	DepositPercentBps  *int      `json:"deposit_percent_bps,omitempty"`
	Terms              string    `json:"terms,omitempty"`
	ValidUntil         time.Time `json:"valid_until"`
}

type Cancellation struct {
	Reason CancelReason `json:"reason"`
	Note   string       `json:"note,omitempty"`
	By     string       `json:"by"`
}

// QuoteRequest is the negotiation record for a custom-priced service. The
// seller identity is denormalized from the listing at creation time.
type QuoteRequest struct {
	ID             string            `json:"id"`
	ListingID      string            `json:"listing_id"`
	ListingTitle   string            `json:"listing_title"`
	BuyerID        string            `json:"buyer_id"`
	SellerID       string            `json:"seller_id"`
	Status         QuoteStatus       `json:"status"`
	Message        string            `json:"message"`
	BudgetCents    *int64            `json:"budget_cents,omitempty"`
	Timeline       string            `json:"timeline,omitempty"`
	Priority       Priority          `json:"priority"`
	CustomFields   map[string]string `json:"custom_fields,omitempty"`
	Quote          *SellerQuote      `json:"quote,omitempty"`
	Cancellation   *Cancellation     `json:"cancellation,omitempty"`
	RespondBy      time.Time         `json:"respond_by"`
	RespondedAt    *time.Time        `json:"responded_at,omitempty"`
	PaidAt         *time.Time        `json:"paid_at,omitempty"`
	StartedAt      *time.Time        `json:"started_at,omitempty"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
	CompletionNote string            `json:"completion_note,omitempty"`
	RejectNote     string            `json:"reject_note,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// ExpiryDue reports whether a cooperative expiry is overdue: a pending
// request past its response window, or a quoted one past its validity.
func (q *QuoteRequest) ExpiryDue(now time.Time) bool {
	switch q.Status {
	case QuotePending:
		return now.After(q.RespondBy)
	case QuoteQuoted:
		return q.Quote != nil && now.After(q.Quote.ValidUntil)
	}
	return false
}
