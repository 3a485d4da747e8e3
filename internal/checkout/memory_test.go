package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/lfmorais/unimarket/internal/domain"
)

// memoryStore mirrors the Postgres store's transition guards so service
// tests exercise the same conflict paths without a database.
type memoryStore struct {
	mu       sync.Mutex
	listings map[string]*domain.Listing
	carts    map[string][]domain.CartItem
	sessions map[string]*domain.CheckoutSession
	orders   []*domain.Order
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		listings: make(map[string]*domain.Listing),
		carts:    make(map[string][]domain.CartItem),
		sessions: make(map[string]*domain.CheckoutSession),
	}
}

func (m *memoryStore) addListing(l domain.Listing) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := l
	m.listings[l.ID] = &copied
}

func (m *memoryStore) CreateSession(_ context.Context, sess *domain.CheckoutSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, prior := range m.sessions {
		if prior.OwnerID == sess.OwnerID && prior.Status == domain.SessionActive {
			m.releaseLocked(prior)
			prior.Status = domain.SessionCancelled
		}
	}

	for _, item := range sess.Items {
		l, ok := m.listings[item.ListingID]
		if !ok || !l.Active || l.Available < item.Quantity {
			return domain.Conflict(domain.CodeInsufficientStock, "not enough stock for %q", item.Title)
		}
	}
	for _, item := range sess.Items {
		l := m.listings[item.ListingID]
		l.Available -= item.Quantity
		l.Reserved += item.Quantity
	}

	copied := *sess
	m.sessions[sess.ID] = &copied
	return nil
}

func (m *memoryStore) GetSession(_ context.Context, id string) (*domain.CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	copied := *sess
	return &copied, nil
}

func (m *memoryStore) ActiveSession(_ context.Context, ownerID string) (*domain.CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, sess := range m.sessions {
		if sess.OwnerID == ownerID && sess.Status == domain.SessionActive {
			copied := *sess
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memoryStore) UpdateSelections(_ context.Context, sess *domain.CheckoutSession) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.sessions[sess.ID]
	if !ok || stored.Status != domain.SessionActive {
		return false, nil
	}
	copied := *sess
	m.sessions[sess.ID] = &copied
	return true, nil
}

func (m *memoryStore) ReleaseSession(_ context.Context, id string, to domain.SessionStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok || sess.Status != domain.SessionActive {
		return false, nil
	}
	m.releaseLocked(sess)
	sess.Status = to
	return true, nil
}

func (m *memoryStore) ConfirmSession(_ context.Context, sess *domain.CheckoutSession, orders []*domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.sessions[sess.ID]
	if !ok || stored.Status != domain.SessionActive {
		return domain.Conflict(domain.CodeInvalidTransition, "session is no longer active")
	}

	for _, item := range stored.Items {
		l := m.listings[item.ListingID]
		if l == nil || l.Reserved < item.Quantity {
			return domain.Conflict(domain.CodeStockChanged, "stock for %q changed since it was reserved", item.Title)
		}
	}
	for _, item := range stored.Items {
		m.listings[item.ListingID].Reserved -= item.Quantity
	}

	stored.Status = domain.SessionConfirmed
	m.orders = append(m.orders, orders...)
	if stored.Source == domain.SourceCart {
		delete(m.carts, stored.OwnerID)
	}
	return nil
}

func (m *memoryStore) ExpireDueSessions(_ context.Context, now time.Time, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []string
	for id, sess := range m.sessions {
		if len(ids) == limit {
			break
		}
		if sess.Status == domain.SessionActive && now.After(sess.ExpiresAt) {
			m.releaseLocked(sess)
			sess.Status = domain.SessionExpired
			ids = append(ids, id)
		}
	}
	return ids, nil
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

func (m *memoryStore) CartItems(_ context.Context, ownerID string) ([]domain.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.CartItem(nil), m.carts[ownerID]...), nil
}

func (m *memoryStore) releaseLocked(sess *domain.CheckoutSession) {
	for _, item := range sess.Items {
		if l, ok := m.listings[item.ListingID]; ok {
			l.Available += item.Quantity
			l.Reserved -= item.Quantity
		}
	}
}

type capturedEvent struct {
	key       string
	eventType string
	payload   any
}

type capturePublisher struct {
	mu     sync.Mutex
	events []capturedEvent
}

func (p *capturePublisher) Publish(_ context.Context, key, eventType string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, capturedEvent{key: key, eventType: eventType, payload: event})
	return nil
}
