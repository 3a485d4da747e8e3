package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/lfmorais/unimarket/internal/domain"
	"github.com/lfmorais/unimarket/internal/messaging"
)

// Dedup remembers processed event ids across redeliveries.
type Dedup interface {
	Key(consumer, eventID string) string
	Seen(ctx context.Context, key string) (bool, error)
}

// NotificationHandler turns lifecycle events into fire-and-forget
// notifications. Sending is best effort: a failed notification is logged
// and the event committed anyway, since the state transition it announces
// already happened.
type NotificationHandler struct {
	notifierURL string
	httpClient  *http.Client
	dedup       Dedup
	logger      *slog.Logger
}

func NewNotificationHandler(notifierURL string, client *http.Client, dedup Dedup, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		notifierURL: notifierURL,
		httpClient:  client,
		dedup:       dedup,
		logger:      logger,
	}
}

// HandleOrderCreated notifies buyer and seller about a new order.
func (h *NotificationHandler) HandleOrderCreated(ctx context.Context, env messaging.Envelope) error {
	seen, err := h.seen(ctx, "order-notifications", env.EventID)
	if err != nil {
		return err
	}
	if seen {
		h.logger.Info("skipping already processed event", "event_id", env.EventID)
		return nil
	}

	event, err := messaging.Unwrap[domain.OrderCreatedEvent](env)
	if err != nil {
		return fmt.Errorf("unmarshal order created event: %w", err)
	}

	h.logger.Info("processing order created event", "order_id", event.OrderID, "buyer_id", event.BuyerID)

	h.notify(ctx, event.BuyerID, "Order placed",
		fmt.Sprintf("Your order %s with %d item(s) has been placed.", event.OrderID, len(event.Items)))
	h.notify(ctx, event.SellerID, "New sale",
		fmt.Sprintf("You sold %d item(s) in order %s.", len(event.Items), event.OrderID))
	return nil
}

// HandleQuoteChanged notifies the party waiting on the other side of a
// quote transition.
func (h *NotificationHandler) HandleQuoteChanged(ctx context.Context, env messaging.Envelope) error {
	seen, err := h.seen(ctx, "quote-notifications", env.EventID)
	if err != nil {
		return err
	}
	if seen {
		h.logger.Info("skipping already processed event", "event_id", env.EventID)
		return nil
	}

	event, err := messaging.Unwrap[domain.QuoteStatusChangedEvent](env)
	if err != nil {
		return fmt.Errorf("unmarshal quote changed event: %w", err)
	}

	h.logger.Info("processing quote status change",
		"quote_id", event.QuoteID, "from", event.From, "to", event.To)

	recipient, subject := quoteRecipient(event)
	if recipient == "" {
		return nil
	}
	h.notify(ctx, recipient, subject,
		fmt.Sprintf("Quote request %s moved from %s to %s.", event.QuoteID, event.From, event.To))
	return nil
}

// quoteRecipient picks who cares about a transition: the buyer hears about
// seller moves, the seller about buyer moves. Both hear about expiry via
// the buyer being the requester.
func quoteRecipient(event domain.QuoteStatusChangedEvent) (recipient, subject string) {
	switch event.To {
	case domain.QuoteQuoted:
		return event.BuyerID, "You received a quote"
	case domain.QuoteAccepted, domain.QuotePaid:
		return event.SellerID, "Your quote was accepted"
	case domain.QuoteRejected:
		return event.SellerID, "Your quote was declined"
	case domain.QuoteInProgress:
		return event.BuyerID, "Work has started"
	case domain.QuoteCompleted:
		return event.BuyerID, "Work is complete"
	case domain.QuoteCancelled:
		return event.SellerID, "Quote request cancelled"
	case domain.QuoteExpired:
		return event.BuyerID, "Quote request expired"
	}
	return "", ""
}

func (h *NotificationHandler) seen(ctx context.Context, consumer, eventID string) (bool, error) {
	if h.dedup == nil {
		return false, nil
	}
	return h.dedup.Seen(ctx, h.dedup.Key(consumer, eventID))
}

type notifyRequest struct {
	UserID  string `json:"user_id"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (h *NotificationHandler) notify(ctx context.Context, userID, subject, body string) {
	data, err := json.Marshal(notifyRequest{UserID: userID, Subject: subject, Body: body})
	if err != nil {
		h.logger.Error("failed to marshal notification", "error", err, "user_id", userID)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.notifierURL+"/notify", bytes.NewReader(data))
	if err != nil {
		h.logger.Error("failed to create notification request", "error", err, "user_id", userID)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		h.logger.Error("failed to send notification", "error", err, "user_id", userID)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		h.logger.Error("notifier returned non-200", "status", resp.StatusCode, "user_id", userID)
	}
}
