package quotes

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lfmorais/unimarket/internal/auth"
	"github.com/lfmorais/unimarket/internal/domain"
)

const maxMessageLength = 2000

type Store interface {
	Create(ctx context.Context, q *domain.QuoteRequest) error
	GetByID(ctx context.Context, id string) (*domain.QuoteRequest, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]domain.QuoteRequest, error)
	ListBySeller(ctx context.Context, sellerID string) ([]domain.QuoteRequest, error)

	// Transition persists the quote's mutable state, but only while the
	// stored status still equals from. Reports whether the write won.
	Transition(ctx context.Context, q *domain.QuoteRequest, from domain.QuoteStatus) (bool, error)

	// ExpireDue flips overdue pending/quoted requests to expired and
	// returns them, each still carrying its prior status, for event
	// publication.
	ExpireDue(ctx context.Context, now time.Time, limit int) ([]domain.QuoteRequest, error)

	Listing(ctx context.Context, id string) (*domain.Listing, error)
}

// PaymentClient collects the quoted amount once a buyer accepts. The
// gateway itself is an external collaborator.
type PaymentClient interface {
	Collect(ctx context.Context, quoteID, buyerID string, amountCents int64) error
}

type EventPublisher interface {
	Publish(ctx context.Context, key, eventType string, event any) error
}

type Service struct {
	store          Store
	payments       PaymentClient
	events         EventPublisher
	responseWindow time.Duration
	validity       time.Duration
	logger         *slog.Logger
	now            func() time.Time
}

func NewService(store Store, payments PaymentClient, events EventPublisher, responseWindow, validity time.Duration, logger *slog.Logger) *Service {
	return &Service{
		store:          store,
		payments:       payments,
		events:         events,
		responseWindow: responseWindow,
		validity:       validity,
		logger:         logger,
		now:            time.Now,
	}
}

type CreateInput struct {
	ListingID    string
	Message      string
	BudgetCents  *int64
	Timeline     string
	Priority     domain.Priority
	CustomFields map[string]string
}

// Create opens a quote request against a service listing, denormalizing
// the seller from the listing at creation time.
func (s *Service) Create(ctx context.Context, actor auth.Identity, in CreateInput) (*domain.QuoteRequest, error) {
	if in.Message == "" {
		return nil, domain.Validation(domain.CodeValidation, "message is required")
	}
	if len(in.Message) > maxMessageLength {
		return nil, domain.Validation(domain.CodeValidation, "message exceeds %d characters", maxMessageLength)
	}
	if in.BudgetCents != nil && *in.BudgetCents <= 0 {
		return nil, domain.Validation(domain.CodeValidation, "budget must be positive")
	}
	if in.Priority == "" {
		in.Priority = domain.PriorityNormal
	}
	if !domain.ValidPriority(in.Priority) {
		return nil, domain.Validation(domain.CodeValidation, "unknown priority %q", in.Priority)
	}

	listing, err := s.store.Listing(ctx, in.ListingID)
	if err != nil {
		return nil, err
	}
	if listing == nil {
		return nil, domain.NotFound("listing %s not found", in.ListingID)
	}
	if !listing.Quotable() {
		return nil, domain.Validation(domain.CodeValidation, "listing %q does not take quote requests", listing.Title)
	}
	if listing.SellerID == actor.UserID {
		return nil, domain.Validation(domain.CodeValidation, "cannot request a quote on your own listing")
	}

	now := s.now()
	q := &domain.QuoteRequest{
		ID:           uuid.New().String(),
		ListingID:    listing.ID,
		ListingTitle: listing.Title,
		BuyerID:      actor.UserID,
		SellerID:     listing.SellerID,
		Status:       domain.QuotePending,
		Message:      in.Message,
		BudgetCents:  in.BudgetCents,
		Timeline:     in.Timeline,
		Priority:     in.Priority,
		CustomFields: in.CustomFields,
		RespondBy:    now.Add(s.responseWindow),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.Create(ctx, q); err != nil {
		return nil, err
	}

	s.logger.Info("quote request created",
		"quote_id", q.ID, "listing_id", q.ListingID, "buyer_id", q.BuyerID, "seller_id", q.SellerID)
	return q, nil
}

// Get loads a quote request for one of its parties, applying lazy expiry.
func (s *Service) Get(ctx context.Context, actor auth.Identity, id string) (*domain.QuoteRequest, error) {
	q, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, domain.NotFound("quote request %s not found", id)
	}
	if !actor.Admin() && actor.UserID != q.BuyerID && actor.UserID != q.SellerID {
		return nil, domain.Forbidden("quote request belongs to other users")
	}
	if err := s.expireIfDue(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

// List returns the actor's quote requests: their own requests by default,
// requests against their listings when role is "seller".
func (s *Service) List(ctx context.Context, actor auth.Identity, role string) ([]domain.QuoteRequest, error) {
	switch role {
	case "", "buyer":
		return s.store.ListByBuyer(ctx, actor.UserID)
	case "seller":
		return s.store.ListBySeller(ctx, actor.UserID)
	default:
		return nil, domain.Validation(domain.CodeValidation, "role must be buyer or seller")
	}
}

type RespondInput struct {
	PriceCents         int64
	EstimatedDuration  string
	Message            string
	DepositRequired    bool
	DepositAmountCents *int64
	DepositPercentBps  *int
	Terms              string
}

// Respond records the seller's quote and snapshots its validity deadline.
func (s *Service) Respond(ctx context.Context, actor auth.Identity, id string, in RespondInput) (*domain.QuoteRequest, error) {
	if in.PriceCents <= 0 {
		return nil, domain.Validation(domain.CodeValidation, "quoted price must be positive")
	}
	if in.DepositRequired && in.DepositAmountCents == nil && in.DepositPercentBps == nil {
		return nil, domain.Validation(domain.CodeValidation, "a required deposit needs an amount or a percentage")
	}
	if in.DepositAmountCents != nil && *in.DepositAmountCents <= 0 {
		return nil, domain.Validation(domain.CodeValidation, "deposit amount must be positive")
	}
	if in.DepositPercentBps != nil && (*in.DepositPercentBps <= 0 || *in.DepositPercentBps > 10000) {
		return nil, domain.Validation(domain.CodeValidation, "deposit percentage must be between 0 and 100%%")
	}

	return s.act(ctx, actor, id, ActionRespond, func(q *domain.QuoteRequest, now time.Time) {
		q.Quote = &domain.SellerQuote{
			PriceCents:         in.PriceCents,
			EstimatedDuration:  in.EstimatedDuration,
			Message:            in.Message,
			DepositRequired:    in.DepositRequired,
			DepositAmountCents: in.DepositAmountCents,
			DepositPercentBps:  in.DepositPercentBps,
			Terms:              in.Terms,
			ValidUntil:         now.Add(s.validity),
		}
		q.RespondedAt = &now
	})
}

// Accept moves the request to accepted and collects payment. When the
// charge clears the request advances to paid; when it fails the request
// stays accepted so the buyer can settle later.
func (s *Service) Accept(ctx context.Context, actor auth.Identity, id string) (*domain.QuoteRequest, error) {
	q, err := s.act(ctx, actor, id, ActionAccept, nil)
	if err != nil {
		return nil, err
	}

	if err := s.payments.Collect(ctx, q.ID, q.BuyerID, q.Quote.PriceCents); err != nil {
		s.logger.Warn("payment collection failed, quote held at accepted", "quote_id", q.ID, "error", err)
		return q, nil
	}

	paid, err := s.systemAct(ctx, q, ActionMarkPaid, func(q *domain.QuoteRequest, now time.Time) {
		q.PaidAt = &now
	})
	if err != nil {
		return nil, err
	}
	return paid, nil
}

func (s *Service) Reject(ctx context.Context, actor auth.Identity, id, note string) (*domain.QuoteRequest, error) {
	return s.act(ctx, actor, id, ActionReject, func(q *domain.QuoteRequest, _ time.Time) {
		q.RejectNote = note
	})
}

// Cancel closes the request from pending, quoted or accepted with one of
// the enumerated reasons.
func (s *Service) Cancel(ctx context.Context, actor auth.Identity, id string, reason domain.CancelReason, note string) (*domain.QuoteRequest, error) {
	if !domain.ValidCancelReason(reason) {
		return nil, domain.Validation(domain.CodeValidation, "unknown cancel reason %q", reason)
	}
	return s.act(ctx, actor, id, ActionCancel, func(q *domain.QuoteRequest, _ time.Time) {
		q.Cancellation = &domain.Cancellation{Reason: reason, Note: note, By: actor.UserID}
	})
}

func (s *Service) Start(ctx context.Context, actor auth.Identity, id string) (*domain.QuoteRequest, error) {
	return s.act(ctx, actor, id, ActionStart, func(q *domain.QuoteRequest, now time.Time) {
		q.StartedAt = &now
	})
}

func (s *Service) Complete(ctx context.Context, actor auth.Identity, id, note string) (*domain.QuoteRequest, error) {
	return s.act(ctx, actor, id, ActionComplete, func(q *domain.QuoteRequest, now time.Time) {
		q.CompletedAt = &now
		q.CompletionNote = note
	})
}

// ExpireDue sweeps overdue pending and quoted requests.
func (s *Service) ExpireDue(ctx context.Context, limit int) (int, error) {
	expired, err := s.store.ExpireDue(ctx, s.now(), limit)
	if err != nil {
		return 0, err
	}
	for i := range expired {
		q := &expired[i]
		s.logger.Info("quote request expired", "quote_id", q.ID)
		s.publishChange(ctx, q, q.Status, domain.QuoteExpired)
	}
	return len(expired), nil
}

// act runs one actor-initiated transition: legality from the table,
// permission from permitted, then a guarded store write.
func (s *Service) act(ctx context.Context, actor auth.Identity, id string, action Action, mutate func(*domain.QuoteRequest, time.Time)) (*domain.QuoteRequest, error) {
	q, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if q.Status == domain.QuoteExpired {
		return nil, domain.Expired(domain.CodeQuoteExpired, "quote request has expired")
	}

	to, ok := nextStatus(q.Status, action)
	if !ok {
		return nil, invalidTransition(q, action)
	}
	if !permitted(actor, q, action) {
		return nil, domain.Forbidden("not allowed to %s this quote request", action)
	}

	return s.apply(ctx, q, action, to, mutate)
}

// systemAct is act without the permission gate, for transitions the
// service performs on its own behalf.
func (s *Service) systemAct(ctx context.Context, q *domain.QuoteRequest, action Action, mutate func(*domain.QuoteRequest, time.Time)) (*domain.QuoteRequest, error) {
	to, ok := nextStatus(q.Status, action)
	if !ok {
		return nil, invalidTransition(q, action)
	}
	return s.apply(ctx, q, action, to, mutate)
}

func (s *Service) apply(ctx context.Context, q *domain.QuoteRequest, action Action, to domain.QuoteStatus, mutate func(*domain.QuoteRequest, time.Time)) (*domain.QuoteRequest, error) {
	from := q.Status
	now := s.now()
	if mutate != nil {
		mutate(q, now)
	}
	q.Status = to
	q.UpdatedAt = now

	applied, err := s.store.Transition(ctx, q, from)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, domain.Conflict(domain.CodeInvalidTransition, "quote request changed concurrently")
	}

	s.logger.Info("quote request transitioned",
		"quote_id", q.ID, "action", action, "from", from, "to", to)
	s.publishChange(ctx, q, from, to)
	return q, nil
}

func (s *Service) expireIfDue(ctx context.Context, q *domain.QuoteRequest) error {
	if !q.ExpiryDue(s.now()) {
		return nil
	}
	from := q.Status
	q.Status = domain.QuoteExpired
	q.UpdatedAt = s.now()

	applied, err := s.store.Transition(ctx, q, from)
	if err != nil {
		return err
	}
	if applied {
		s.logger.Info("quote request expired on read", "quote_id", q.ID)
		s.publishChange(ctx, q, from, domain.QuoteExpired)
	}
	return nil
}

func (s *Service) publishChange(ctx context.Context, q *domain.QuoteRequest, from, to domain.QuoteStatus) {
	if s.events == nil {
		return
	}
	event := domain.QuoteStatusChangedEvent{
		QuoteID:   q.ID,
		ListingID: q.ListingID,
		BuyerID:   q.BuyerID,
		SellerID:  q.SellerID,
		From:      from,
		To:        to,
		Timestamp: s.now(),
	}
	if err := s.events.Publish(ctx, q.ID, domain.EventQuoteChanged, event); err != nil {
		s.logger.Error("failed to publish quote event", "error", err, "quote_id", q.ID)
	}
}
