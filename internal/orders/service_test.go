package orders

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/lfmorais/unimarket/internal/auth"
	"github.com/lfmorais/unimarket/internal/domain"
)

type memoryStore struct {
	orders map[string]*domain.Order
}

func newMemoryStore(orders ...*domain.Order) *memoryStore {
	m := &memoryStore{orders: make(map[string]*domain.Order)}
	for _, o := range orders {
		m.orders[o.ID] = o
	}
	return m
}

func (m *memoryStore) GetByID(_ context.Context, id string) (*domain.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	copied := *o
	return &copied, nil
}

func (m *memoryStore) ListByBuyer(_ context.Context, buyerID string) ([]domain.Order, error) {
	var out []domain.Order
	for _, o := range m.orders {
		if o.BuyerID == buyerID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memoryStore) ListBySeller(_ context.Context, sellerID string) ([]domain.Order, error) {
	var out []domain.Order
	for _, o := range m.orders {
		if o.SellerID == sellerID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memoryStore) UpdateStatus(_ context.Context, id string, from, to domain.OrderStatus, _ time.Time) (bool, error) {
	o, ok := m.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	return true, nil
}

func newTestService(orders ...*domain.Order) (*Service, *memoryStore) {
	store := newMemoryStore(orders...)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(store, logger), store
}

func expectCode(t *testing.T, err error, code string) {
	t.Helper()
	var de *domain.Error
	if !errors.As(err, &de) {
		t.Fatalf("expected domain error %s, got %v", code, err)
	}
	if de.Code != code {
		t.Fatalf("expected code %s, got %s (%s)", code, de.Code, de.Message)
	}
}

var (
	buyer  = auth.Identity{UserID: "buyer-1", Role: auth.RoleUser}
	seller = auth.Identity{UserID: "seller-1", Role: auth.RoleUser}
	admin  = auth.Identity{UserID: "admin-1", Role: auth.RoleAdmin}
)

func pendingOrder() *domain.Order {
	return &domain.Order{
		ID:       "order-1",
		BuyerID:  buyer.UserID,
		SellerID: seller.UserID,
		Status:   domain.OrderPending,
	}
}

func TestService_Get(t *testing.T) {
	t.Run("buyer and seller can read, others cannot", func(t *testing.T) {
		svc, _ := newTestService(pendingOrder())

		for _, actor := range []auth.Identity{buyer, seller, admin} {
			if _, err := svc.Get(context.Background(), actor, "order-1"); err != nil {
				t.Errorf("actor %s: unexpected error %v", actor.UserID, err)
			}
		}

		_, err := svc.Get(context.Background(), auth.Identity{UserID: "stranger"}, "order-1")
		expectCode(t, err, domain.CodeForbidden)
	})

	t.Run("unknown order is 404", func(t *testing.T) {
		svc, _ := newTestService()
		_, err := svc.Get(context.Background(), buyer, "nope")
		expectCode(t, err, domain.CodeNotFound)
	})
}

func TestService_UpdateStatus(t *testing.T) {
	t.Run("seller runs fulfillment", func(t *testing.T) {
		svc, store := newTestService(pendingOrder())

		for _, to := range []domain.OrderStatus{domain.OrderProcessing, domain.OrderShipped, domain.OrderDelivered} {
			order, err := svc.UpdateStatus(context.Background(), seller, "order-1", to)
			if err != nil {
				t.Fatalf("to %s: %v", to, err)
			}
			if order.Status != to {
				t.Errorf("expected %s, got %s", to, order.Status)
			}
		}
		if store.orders["order-1"].Status != domain.OrderDelivered {
			t.Errorf("store not updated: %s", store.orders["order-1"].Status)
		}
	})

	t.Run("rejects illegal transitions", func(t *testing.T) {
		svc, _ := newTestService(pendingOrder())
		_, err := svc.UpdateStatus(context.Background(), seller, "order-1", domain.OrderDelivered)
		expectCode(t, err, domain.CodeInvalidTransition)
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		svc, _ := newTestService(pendingOrder())
		_, err := svc.UpdateStatus(context.Background(), seller, "order-1", "teleported")
		expectCode(t, err, domain.CodeValidation)
	})

	t.Run("buyer may cancel only while pending", func(t *testing.T) {
		svc, store := newTestService(pendingOrder())

		if _, err := svc.UpdateStatus(context.Background(), buyer, "order-1", domain.OrderProcessing); err == nil {
			t.Error("expected buyer to be denied fulfillment transitions")
		}

		if _, err := svc.UpdateStatus(context.Background(), buyer, "order-1", domain.OrderCancelled); err != nil {
			t.Fatalf("buyer cancel: %v", err)
		}

		store.orders["order-1"].Status = domain.OrderProcessing
		_, err := svc.UpdateStatus(context.Background(), buyer, "order-1", domain.OrderCancelled)
		expectCode(t, err, domain.CodeForbidden)
	})

	t.Run("refunds are admin only", func(t *testing.T) {
		order := pendingOrder()
		order.Status = domain.OrderDelivered
		svc, _ := newTestService(order)

		_, err := svc.UpdateStatus(context.Background(), seller, "order-1", domain.OrderRefunded)
		expectCode(t, err, domain.CodeForbidden)

		if _, err := svc.UpdateStatus(context.Background(), admin, "order-1", domain.OrderRefunded); err != nil {
			t.Fatalf("admin refund: %v", err)
		}
	})

	t.Run("terminal orders accept nothing", func(t *testing.T) {
		order := pendingOrder()
		order.Status = domain.OrderCancelled
		svc, _ := newTestService(order)

		_, err := svc.UpdateStatus(context.Background(), admin, "order-1", domain.OrderProcessing)
		expectCode(t, err, domain.CodeInvalidTransition)
	})
}
