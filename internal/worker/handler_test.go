package worker

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/lfmorais/unimarket/internal/domain"
	"github.com/lfmorais/unimarket/internal/messaging"
)

type memoryDedup struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (d *memoryDedup) Key(consumer, eventID string) string {
	return consumer + ":" + eventID
}

func (d *memoryDedup) Seen(_ context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen == nil {
		d.seen = make(map[string]bool)
	}
	if d.seen[key] {
		return true, nil
	}
	d.seen[key] = true
	return false, nil
}

func envelope(t *testing.T, eventID, eventType string, payload any) messaging.Envelope {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return messaging.Envelope{EventID: eventID, EventType: eventType, Payload: data}
}

func TestNotificationHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	newNotifier := func(t *testing.T) (*httptest.Server, *[]notifyRequest) {
		t.Helper()
		var mu sync.Mutex
		var received []notifyRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req notifyRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode notify body: %v", err)
			}
			mu.Lock()
			received = append(received, req)
			mu.Unlock()
			w.WriteHeader(http.StatusOK)
		}))
		t.Cleanup(server.Close)
		return server, &received
	}

	t.Run("order created notifies buyer and seller", func(t *testing.T) {
		server, received := newNotifier(t)
		h := NewNotificationHandler(server.URL, server.Client(), &memoryDedup{}, logger)

		env := envelope(t, "evt-1", domain.EventOrderCreated, domain.OrderCreatedEvent{
			OrderID: "order-1", BuyerID: "buyer-1", SellerID: "seller-1",
			Items: []domain.OrderItem{{ListingID: "book", Quantity: 2}},
		})
		if err := h.HandleOrderCreated(context.Background(), env); err != nil {
			t.Fatalf("handle: %v", err)
		}

		if len(*received) != 2 {
			t.Fatalf("expected 2 notifications, got %d", len(*received))
		}
		if (*received)[0].UserID != "buyer-1" || (*received)[1].UserID != "seller-1" {
			t.Errorf("unexpected recipients: %+v", *received)
		}
	})

	t.Run("redelivered events are processed once", func(t *testing.T) {
		server, received := newNotifier(t)
		h := NewNotificationHandler(server.URL, server.Client(), &memoryDedup{}, logger)

		env := envelope(t, "evt-dup", domain.EventOrderCreated, domain.OrderCreatedEvent{
			OrderID: "order-1", BuyerID: "buyer-1", SellerID: "seller-1",
		})
		for range 3 {
			if err := h.HandleOrderCreated(context.Background(), env); err != nil {
				t.Fatalf("handle: %v", err)
			}
		}

		if len(*received) != 2 {
			t.Fatalf("expected 2 notifications total, got %d", len(*received))
		}
	})

	t.Run("quote transition notifies the waiting party", func(t *testing.T) {
		server, received := newNotifier(t)
		h := NewNotificationHandler(server.URL, server.Client(), &memoryDedup{}, logger)

		env := envelope(t, "evt-2", domain.EventQuoteChanged, domain.QuoteStatusChangedEvent{
			QuoteID: "quote-1", BuyerID: "buyer-1", SellerID: "seller-1",
			From: domain.QuotePending, To: domain.QuoteQuoted,
		})
		if err := h.HandleQuoteChanged(context.Background(), env); err != nil {
			t.Fatalf("handle: %v", err)
		}

		if len(*received) != 1 || (*received)[0].UserID != "buyer-1" {
			t.Fatalf("expected one notification to the buyer, got %+v", *received)
		}
	})

	t.Run("notifier failures do not fail the event", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		t.Cleanup(server.Close)
		h := NewNotificationHandler(server.URL, server.Client(), &memoryDedup{}, logger)

		env := envelope(t, "evt-3", domain.EventOrderCreated, domain.OrderCreatedEvent{
			OrderID: "order-1", BuyerID: "buyer-1", SellerID: "seller-1",
		})
		if err := h.HandleOrderCreated(context.Background(), env); err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
	})

	t.Run("malformed payload is an error", func(t *testing.T) {
		server, _ := newNotifier(t)
		h := NewNotificationHandler(server.URL, server.Client(), &memoryDedup{}, logger)

		env := messaging.Envelope{EventID: "evt-4", EventType: domain.EventOrderCreated, Payload: []byte(`{`)}
		if err := h.HandleOrderCreated(context.Background(), env); err == nil {
			t.Fatal("expected error for malformed payload")
		}
	})
}
