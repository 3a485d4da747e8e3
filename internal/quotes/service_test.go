package quotes

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/lfmorais/unimarket/internal/auth"
	"github.com/lfmorais/unimarket/internal/domain"
)

type memoryStore struct {
	mu       sync.Mutex
	listings map[string]*domain.Listing
	quotes   map[string]*domain.QuoteRequest
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		listings: make(map[string]*domain.Listing),
		quotes:   make(map[string]*domain.QuoteRequest),
	}
}

func (m *memoryStore) Create(_ context.Context, q *domain.QuoteRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *q
	m.quotes[q.ID] = &copied
	return nil
}

func (m *memoryStore) GetByID(_ context.Context, id string) (*domain.QuoteRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quotes[id]
	if !ok {
		return nil, nil
	}
	copied := *q
	return &copied, nil
}

func (m *memoryStore) ListByBuyer(_ context.Context, buyerID string) ([]domain.QuoteRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.QuoteRequest
	for _, q := range m.quotes {
		if q.BuyerID == buyerID {
			out = append(out, *q)
		}
	}
	return out, nil
}

func (m *memoryStore) ListBySeller(_ context.Context, sellerID string) ([]domain.QuoteRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.QuoteRequest
	for _, q := range m.quotes {
		if q.SellerID == sellerID {
			out = append(out, *q)
		}
	}
	return out, nil
}

func (m *memoryStore) Transition(_ context.Context, q *domain.QuoteRequest, from domain.QuoteStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.quotes[q.ID]
	if !ok || stored.Status != from {
		return false, nil
	}
	copied := *q
	m.quotes[q.ID] = &copied
	return true, nil
}

func (m *memoryStore) ExpireDue(_ context.Context, now time.Time, limit int) ([]domain.QuoteRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.QuoteRequest
	for _, q := range m.quotes {
		if len(out) == limit {
			break
		}
		if q.ExpiryDue(now) {
			out = append(out, *q)
			q.Status = domain.QuoteExpired
		}
	}
	return out, nil
}

func (m *memoryStore) Listing(_ context.Context, id string) (*domain.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok {
		return nil, nil
	}
	copied := *l
	return &copied, nil
}

type fakePayments struct {
	fail  bool
	calls int
}

func (p *fakePayments) Collect(_ context.Context, _, _ string, _ int64) error {
	p.calls++
	if p.fail {
		return errors.New("card declined")
	}
	return nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []domain.QuoteStatusChangedEvent
}

func (p *capturePublisher) Publish(_ context.Context, _, _ string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := event.(domain.QuoteStatusChangedEvent); ok {
		p.events = append(p.events, e)
	}
	return nil
}

var (
	buyer  = auth.Identity{UserID: "buyer-1", Role: auth.RoleUser}
	seller = auth.Identity{UserID: "seller-1", Role: auth.RoleUser}
)

type fixture struct {
	store    *memoryStore
	payments *fakePayments
	events   *capturePublisher
	service  *Service
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:    newMemoryStore(),
		payments: &fakePayments{},
		events:   &capturePublisher{},
		now:      time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.service = NewService(f.store, f.payments, f.events, 7*24*time.Hour, 72*time.Hour, logger)
	f.service.now = func() time.Time { return f.now }

	f.store.listings["tutoring"] = &domain.Listing{
		ID: "tutoring", SellerID: seller.UserID, Title: "Statistics tutoring",
		Kind: domain.ListingService, PriceCents: 2500, Active: true,
	}
	f.store.listings["book"] = &domain.Listing{
		ID: "book", SellerID: seller.UserID, Title: "Calculus textbook",
		Kind: domain.ListingGood, PriceCents: 4500, Available: 3, Active: true,
	}
	return f
}

func (f *fixture) createQuote(t *testing.T) *domain.QuoteRequest {
	t.Helper()
	q, err := f.service.Create(context.Background(), buyer, CreateInput{
		ListingID: "tutoring",
		Message:   "Need help with hypothesis testing before finals.",
	})
	if err != nil {
		t.Fatalf("create quote: %v", err)
	}
	return q
}

func (f *fixture) respond(t *testing.T, id string) *domain.QuoteRequest {
	t.Helper()
	q, err := f.service.Respond(context.Background(), seller, id, RespondInput{PriceCents: 10000})
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	return q
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

func TestService_Create(t *testing.T) {
	t.Run("denormalizes the seller and sets the response deadline", func(t *testing.T) {
		f := newFixture(t)
		q := f.createQuote(t)

		if q.Status != domain.QuotePending {
			t.Errorf("expected pending, got %s", q.Status)
		}
		if q.SellerID != seller.UserID {
			t.Errorf("expected seller %s, got %s", seller.UserID, q.SellerID)
		}
		if !q.RespondBy.Equal(f.now.Add(7 * 24 * time.Hour)) {
			t.Errorf("unexpected respond-by %v", q.RespondBy)
		}
	})

	t.Run("rejects goods listings", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.service.Create(context.Background(), buyer, CreateInput{ListingID: "book", Message: "hi"})
		expectCode(t, err, domain.CodeValidation)
	})

	t.Run("requires a message", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.service.Create(context.Background(), buyer, CreateInput{ListingID: "tutoring"})
		expectCode(t, err, domain.CodeValidation)
	})

	t.Run("rejects the listing's own seller", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.service.Create(context.Background(), seller, CreateInput{ListingID: "tutoring", Message: "hi"})
		expectCode(t, err, domain.CodeValidation)
	})

	t.Run("rejects unknown priorities", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.service.Create(context.Background(), buyer, CreateInput{
			ListingID: "tutoring", Message: "hi", Priority: "yesterday",
		})
		expectCode(t, err, domain.CodeValidation)
	})
}

func TestService_Lifecycle(t *testing.T) {
	t.Run("pending through completed", func(t *testing.T) {
		f := newFixture(t)
		q := f.createQuote(t)

		quoted := f.respond(t, q.ID)
		if quoted.Status != domain.QuoteQuoted {
			t.Fatalf("expected quoted, got %s", quoted.Status)
		}
		if quoted.Quote == nil || !quoted.Quote.ValidUntil.Equal(f.now.Add(72*time.Hour)) {
			t.Fatalf("unexpected validity window: %+v", quoted.Quote)
		}

		accepted, err := f.service.Accept(context.Background(), buyer, q.ID)
		if err != nil {
			t.Fatalf("accept: %v", err)
		}
		if accepted.Status != domain.QuotePaid {
			t.Fatalf("expected paid after payment cleared, got %s", accepted.Status)
		}
		if f.payments.calls != 1 {
			t.Errorf("expected one payment call, got %d", f.payments.calls)
		}

		started, err := f.service.Start(context.Background(), seller, q.ID)
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		if started.Status != domain.QuoteInProgress {
			t.Fatalf("expected in_progress, got %s", started.Status)
		}

		completed, err := f.service.Complete(context.Background(), seller, q.ID, "all sessions delivered")
		if err != nil {
			t.Fatalf("complete: %v", err)
		}
		if completed.Status != domain.QuoteCompleted {
			t.Fatalf("expected completed, got %s", completed.Status)
		}

		// Responding again after completion is an invalid transition.
		_, err = f.service.Respond(context.Background(), seller, q.ID, RespondInput{PriceCents: 5000})
		expectCode(t, err, domain.CodeInvalidTransition)

		if len(f.events.events) != 5 {
			t.Errorf("expected 5 status change events, got %d", len(f.events.events))
		}
	})

	t.Run("accept on pending is an invalid transition", func(t *testing.T) {
		f := newFixture(t)
		q := f.createQuote(t)

		_, err := f.service.Accept(context.Background(), buyer, q.ID)
		expectCode(t, err, domain.CodeInvalidTransition)
	})

	t.Run("respond by a non-seller is forbidden", func(t *testing.T) {
		f := newFixture(t)
		q := f.createQuote(t)

		_, err := f.service.Respond(context.Background(), buyer, q.ID, RespondInput{PriceCents: 10000})
		expectCode(t, err, domain.CodeForbidden)
	})

	t.Run("failed payment holds the quote at accepted", func(t *testing.T) {
		f := newFixture(t)
		f.payments.fail = true
		q := f.createQuote(t)
		f.respond(t, q.ID)

		accepted, err := f.service.Accept(context.Background(), buyer, q.ID)
		if err != nil {
			t.Fatalf("accept: %v", err)
		}
		if accepted.Status != domain.QuoteAccepted {
			t.Errorf("expected accepted, got %s", accepted.Status)
		}
	})

	t.Run("cancel requires an enumerated reason", func(t *testing.T) {
		f := newFixture(t)
		q := f.createQuote(t)

		_, err := f.service.Cancel(context.Background(), buyer, q.ID, "rage_quit", "")
		expectCode(t, err, domain.CodeValidation)

		cancelled, err := f.service.Cancel(context.Background(), buyer, q.ID, domain.CancelBuyerChangedMind, "found a study group")
		if err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if cancelled.Status != domain.QuoteCancelled {
			t.Errorf("expected cancelled, got %s", cancelled.Status)
		}
		if cancelled.Cancellation == nil || cancelled.Cancellation.By != buyer.UserID {
			t.Errorf("cancellation record missing: %+v", cancelled.Cancellation)
		}
	})

	t.Run("stranger cannot read the quote", func(t *testing.T) {
		f := newFixture(t)
		q := f.createQuote(t)

		_, err := f.service.Get(context.Background(), auth.Identity{UserID: "stranger"}, q.ID)
		expectCode(t, err, domain.CodeForbidden)
	})
}

func TestService_Expiry(t *testing.T) {
	t.Run("pending expires lazily after the response window", func(t *testing.T) {
		f := newFixture(t)
		q := f.createQuote(t)

		f.now = f.now.Add(8 * 24 * time.Hour)

		got, err := f.service.Get(context.Background(), buyer, q.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Status != domain.QuoteExpired {
			t.Errorf("expected expired, got %s", got.Status)
		}
	})

	t.Run("quoted expires after the validity window", func(t *testing.T) {
		f := newFixture(t)
		q := f.createQuote(t)
		f.respond(t, q.ID)

		f.now = f.now.Add(73 * time.Hour)

		_, err := f.service.Accept(context.Background(), buyer, q.ID)
		expectCode(t, err, domain.CodeQuoteExpired)

		got, _ := f.service.Get(context.Background(), buyer, q.ID)
		if got.Status != domain.QuoteExpired {
			t.Errorf("expected expired, got %s", got.Status)
		}
	})

	t.Run("sweeper expires overdue requests and publishes events", func(t *testing.T) {
		f := newFixture(t)
		f.createQuote(t)

		f.now = f.now.Add(8 * 24 * time.Hour)

		swept, err := f.service.ExpireDue(context.Background(), 10)
		if err != nil {
			t.Fatalf("expire due: %v", err)
		}
		if swept != 1 {
			t.Errorf("expected 1 swept quote, got %d", swept)
		}
		if len(f.events.events) != 1 || f.events.events[0].To != domain.QuoteExpired {
			t.Errorf("expected one expiry event, got %+v", f.events.events)
		}
	})
}

func TestService_RespondValidation(t *testing.T) {
	f := newFixture(t)
	q := f.createQuote(t)

	t.Run("price must be positive", func(t *testing.T) {
		_, err := f.service.Respond(context.Background(), seller, q.ID, RespondInput{PriceCents: 0})
		expectCode(t, err, domain.CodeValidation)
	})

	t.Run("required deposit needs terms", func(t *testing.T) {
		_, err := f.service.Respond(context.Background(), seller, q.ID, RespondInput{
			PriceCents: 10000, DepositRequired: true,
		})
		expectCode(t, err, domain.CodeValidation)
	})
}
