package checkout

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lfmorais/unimarket/internal/auth"
	"github.com/lfmorais/unimarket/internal/domain"
)

type EventPublisher interface {
	Publish(ctx context.Context, key, eventType string, event any) error
}

// Service owns the checkout session lifecycle: active is the only mutable
// status, everything else is terminal. Stock is held at creation,
// released on cancel/expiry and committed at confirm.
type Service struct {
	store  Store
	events EventPublisher
	fees   FeePolicy
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

func NewService(store Store, events EventPublisher, fees FeePolicy, ttl time.Duration, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		events: events,
		fees:   fees,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// CreateFromCart starts a session from the owner's cart, replacing any
// prior active session.
func (s *Service) CreateFromCart(ctx context.Context, ownerID string) (*domain.CheckoutSession, error) {
	items, err := s.store.CartItems(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, domain.Validation(domain.CodeCartEmpty, "cart is empty")
	}
	return s.create(ctx, ownerID, domain.SourceCart, items)
}

// CreateDirect starts a single-item "buy now" session.
func (s *Service) CreateDirect(ctx context.Context, ownerID, listingID string, quantity int) (*domain.CheckoutSession, error) {
	if quantity <= 0 {
		return nil, domain.Validation(domain.CodeValidation, "quantity must be positive")
	}
	items := []domain.CartItem{{ListingID: listingID, Quantity: quantity}}
	return s.create(ctx, ownerID, domain.SourceDirect, items)
}

func (s *Service) create(ctx context.Context, ownerID string, source domain.SessionSource, items []domain.CartItem) (*domain.CheckoutSession, error) {
	now := s.now()
	sess := &domain.CheckoutSession{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Status:    domain.SessionActive,
		Source:    source,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	for _, item := range items {
		listing, err := s.store.Listing(ctx, item.ListingID)
		if err != nil {
			return nil, err
		}
		if listing == nil {
			return nil, domain.NotFound("listing %s not found", item.ListingID)
		}
		if !listing.Purchasable() {
			return nil, domain.Validation(domain.CodeValidation, "listing %q is not available for purchase", listing.Title)
		}
		if listing.SellerID == ownerID {
			return nil, domain.Validation(domain.CodeValidation, "cannot buy your own listing %q", listing.Title)
		}
		sess.Items = append(sess.Items, domain.SessionItem{
			ListingID:      listing.ID,
			SellerID:       listing.SellerID,
			Title:          listing.Title,
			UnitPriceCents: listing.PriceCents,
			Quantity:       item.Quantity,
		})
	}

	s.fees.Reprice(sess)

	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, err
	}

	s.logger.Info("checkout session created",
		"session_id", sess.ID, "owner_id", ownerID, "source", source, "items", len(sess.Items))
	return sess, nil
}

// Get loads a session for its owner, applying lazy expiry: a read past the
// TTL transitions the session to expired and releases its holds before
// returning it.
func (s *Service) Get(ctx context.Context, actor auth.Identity, id string) (*domain.CheckoutSession, error) {
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, domain.NotFound("checkout session %s not found", id)
	}
	if sess.OwnerID != actor.UserID && !actor.Admin() {
		return nil, domain.Forbidden("checkout session belongs to another user")
	}
	if err := s.expireIfDue(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Active returns the owner's active session, or nil when there is none or
// it just expired.
func (s *Service) Active(ctx context.Context, ownerID string) (*domain.CheckoutSession, error) {
	sess, err := s.store.ActiveSession(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, nil
	}
	if err := s.expireIfDue(ctx, sess); err != nil {
		return nil, err
	}
	if sess.Status != domain.SessionActive {
		return nil, nil
	}
	return sess, nil
}

type Selections struct {
	DeliveryMethod    domain.DeliveryMethod
	DeliveryAddressID string
	PaymentMethod     domain.PaymentMethod
}

// UpdateSelections applies delivery/payment choices and recomputes the fee
// breakdown.
func (s *Service) UpdateSelections(ctx context.Context, actor auth.Identity, id string, sel Selections) (*domain.CheckoutSession, error) {
	sess, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if sess.Status == domain.SessionExpired {
		return nil, domain.Expired(domain.CodeSessionExpired, "checkout session has expired")
	}
	if sess.Status != domain.SessionActive {
		return nil, domain.Conflict(domain.CodeInvalidTransition,
			"cannot update a session in status %s", sess.Status)
	}

	if sel.DeliveryMethod != "" {
		if !domain.ValidDeliveryMethod(sel.DeliveryMethod) {
			return nil, domain.Validation(domain.CodeInvalidDelivery, "unknown delivery method %q", sel.DeliveryMethod)
		}
		sess.DeliveryMethod = sel.DeliveryMethod
	}
	if sel.DeliveryAddressID != "" {
		sess.DeliveryAddressID = sel.DeliveryAddressID
	}
	if sess.DeliveryMethod == domain.DeliveryCampus && sess.DeliveryAddressID == "" {
		return nil, domain.Validation(domain.CodeInvalidDelivery, "campus delivery requires a delivery address")
	}
	if sel.PaymentMethod != "" {
		if !domain.ValidPaymentMethod(sel.PaymentMethod) {
			return nil, domain.Validation(domain.CodeValidation, "unknown payment method %q", sel.PaymentMethod)
		}
		sess.PaymentMethod = sel.PaymentMethod
	}

	s.fees.Reprice(sess)
	sess.UpdatedAt = s.now()

	applied, err := s.store.UpdateSelections(ctx, sess)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, domain.Conflict(domain.CodeInvalidTransition, "session is no longer active")
	}
	return sess, nil
}

// Cancel releases the session's holds. Cancelling an already terminal
// session is a no-op, not an error.
func (s *Service) Cancel(ctx context.Context, actor auth.Identity, id string) (*domain.CheckoutSession, error) {
	sess, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if sess.Status.Terminal() {
		return sess, nil
	}

	applied, err := s.store.ReleaseSession(ctx, id, domain.SessionCancelled)
	if err != nil {
		return nil, err
	}
	if applied {
		sess.Status = domain.SessionCancelled
		s.logger.Info("checkout session cancelled", "session_id", id, "owner_id", sess.OwnerID)
	}
	return sess, nil
}

// Confirm materializes the session into one order per seller. The store
// call is all-or-nothing: either every hold commits and every order exists,
// or nothing changed.
func (s *Service) Confirm(ctx context.Context, actor auth.Identity, id string) ([]*domain.Order, error) {
	sess, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if sess.Status == domain.SessionExpired {
		return nil, domain.Expired(domain.CodeSessionExpired, "checkout session has expired")
	}
	if sess.Status != domain.SessionActive {
		return nil, domain.Conflict(domain.CodeInvalidTransition,
			"cannot confirm a session in status %s", sess.Status)
	}
	if sess.DeliveryMethod == "" || sess.PaymentMethod == "" {
		return nil, domain.Validation(domain.CodeValidation,
			"delivery and payment methods must be selected before confirming")
	}

	now := s.now()
	groups := s.fees.PriceGroups(sess.SplitBySeller(), sess.DeliveryMethod)
	orders := make([]*domain.Order, 0, len(groups))
	for _, g := range groups {
		items := make([]domain.OrderItem, 0, len(g.Items))
		for _, it := range g.Items {
			items = append(items, domain.OrderItem{
				ListingID:      it.ListingID,
				Title:          it.Title,
				UnitPriceCents: it.UnitPriceCents,
				Quantity:       it.Quantity,
			})
		}
		orders = append(orders, &domain.Order{
			ID:                uuid.New().String(),
			SessionID:         sess.ID,
			BuyerID:           sess.OwnerID,
			SellerID:          g.SellerID,
			Status:            domain.OrderPending,
			Items:             items,
			DeliveryMethod:    sess.DeliveryMethod,
			DeliveryAddressID: sess.DeliveryAddressID,
			PaymentMethod:     sess.PaymentMethod,
			SubtotalCents:     g.SubtotalCents,
			DeliveryFeeCents:  g.DeliveryFeeCents,
			PlatformFeeCents:  g.PlatformFeeCents,
			TotalCents:        g.TotalCents,
			CreatedAt:         now,
			UpdatedAt:         now,
		})
	}

	if err := s.store.ConfirmSession(ctx, sess, orders); err != nil {
		return nil, err
	}

	s.logger.Info("checkout session confirmed",
		"session_id", sess.ID, "owner_id", sess.OwnerID, "orders", len(orders))

	if s.events != nil {
		for _, o := range orders {
			event := domain.OrderCreatedEvent{
				OrderID:    o.ID,
				SessionID:  o.SessionID,
				BuyerID:    o.BuyerID,
				SellerID:   o.SellerID,
				TotalCents: o.TotalCents,
				Items:      o.Items,
				Timestamp:  now,
			}
			if err := s.events.Publish(ctx, o.ID, domain.EventOrderCreated, event); err != nil {
				s.logger.Error("failed to publish order created event", "error", err, "order_id", o.ID)
			}
		}
	}

	return orders, nil
}

// ExpireDue sweeps overdue active sessions. Lazy expiry on the read path
// already covers sessions that are still looked at; the sweep is the
// safety net for the ones that never are.
func (s *Service) ExpireDue(ctx context.Context, limit int) (int, error) {
	ids, err := s.store.ExpireDueSessions(ctx, s.now(), limit)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		s.logger.Info("checkout session expired", "session_id", id)
	}
	return len(ids), nil
}

func (s *Service) expireIfDue(ctx context.Context, sess *domain.CheckoutSession) error {
	if !sess.ExpiredBy(s.now()) {
		return nil
	}
	applied, err := s.store.ReleaseSession(ctx, sess.ID, domain.SessionExpired)
	if err != nil {
		return err
	}
	if applied {
		s.logger.Info("checkout session expired on read", "session_id", sess.ID)
	}
	sess.Status = domain.SessionExpired
	return nil
}
