package orders

import (
	"context"
	"log/slog"
	"time"

	"github.com/lfmorais/unimarket/internal/auth"
	"github.com/lfmorais/unimarket/internal/domain"
)

type Store interface {
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error)
	ListBySeller(ctx context.Context, sellerID string) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus, now time.Time) (bool, error)
}

// Service reads orders and advances their fulfillment status. Orders are
// never deleted and their items and amounts never change after creation.
type Service struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger, now: time.Now}
}

func (s *Service) Get(ctx context.Context, actor auth.Identity, id string) (*domain.Order, error) {
	order, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.NotFound("order %s not found", id)
	}
	if !canRead(actor, order) {
		return nil, domain.Forbidden("order belongs to another user")
	}
	return order, nil
}

// List returns the actor's orders: purchases by default, sales when
// role is "seller".
func (s *Service) List(ctx context.Context, actor auth.Identity, role string) ([]domain.Order, error) {
	switch role {
	case "", "buyer":
		return s.store.ListByBuyer(ctx, actor.UserID)
	case "seller":
		return s.store.ListBySeller(ctx, actor.UserID)
	default:
		return nil, domain.Validation(domain.CodeValidation, "role must be buyer or seller")
	}
}

// UpdateStatus advances the fulfillment status. Legality comes from the
// order transition table, actor permission from canAdvance, and the store
// guard rejects a concurrent change.
func (s *Service) UpdateStatus(ctx context.Context, actor auth.Identity, id string, to domain.OrderStatus) (*domain.Order, error) {
	if !domain.ValidOrderStatus(to) {
		return nil, domain.Validation(domain.CodeValidation, "unknown order status %q", to)
	}

	order, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransitionTo(to) {
		return nil, domain.Conflict(domain.CodeInvalidTransition,
			"cannot move order from %s to %s", order.Status, to)
	}
	if !canAdvance(actor, order, to) {
		return nil, domain.Forbidden("not allowed to move this order to %s", to)
	}

	applied, err := s.store.UpdateStatus(ctx, id, order.Status, to, s.now())
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, domain.Conflict(domain.CodeInvalidTransition, "order status changed concurrently")
	}

	s.logger.Info("order status updated",
		"order_id", id, "from", order.Status, "to", to, "actor_id", actor.UserID)
	order.Status = to
	return order, nil
}

func canRead(actor auth.Identity, order *domain.Order) bool {
	return actor.Admin() || actor.UserID == order.BuyerID || actor.UserID == order.SellerID
}

// canAdvance decides who may request a given transition: sellers run
// fulfillment, buyers may back out of a pending order, refunds are an
// admin operation.
func canAdvance(actor auth.Identity, order *domain.Order, to domain.OrderStatus) bool {
	if actor.Admin() {
		return true
	}
	switch to {
	case domain.OrderCancelled:
		if actor.UserID == order.BuyerID {
			return order.Status == domain.OrderPending
		}
		return actor.UserID == order.SellerID
	case domain.OrderRefunded:
		return false
	default:
		return actor.UserID == order.SellerID
	}
}
