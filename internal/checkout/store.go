package checkout

import (
	"context"
	"time"

	"github.com/lfmorais/unimarket/internal/domain"
)

// Store is the persistence contract for the session state machine. Every
// state transition must be guarded store-side (conditional update, "only if
// still active"), so concurrent requests on the same session cannot both
// win.
type Store interface {
	// CreateSession atomically cancels any prior active session of the
	// owner (releasing its holds), places one stock hold per item and
	// persists the new session. Fails with an INSUFFICIENT_STOCK conflict
	// when any item's quantity exceeds the currently unreserved stock, in
	// which case nothing is persisted.
	CreateSession(ctx context.Context, sess *domain.CheckoutSession) error

	// GetSession returns the session with its items, or nil when absent.
	GetSession(ctx context.Context, id string) (*domain.CheckoutSession, error)

	// ActiveSession returns the owner's active session, or nil.
	ActiveSession(ctx context.Context, ownerID string) (*domain.CheckoutSession, error)

	// UpdateSelections persists delivery/payment choices and recomputed
	// fees. Applies only while the session is still active; reports
	// whether the update took effect.
	UpdateSelections(ctx context.Context, sess *domain.CheckoutSession) (bool, error)

	// ReleaseSession moves an active session to the given terminal status
	// and returns every held reservation to available stock. Reports false
	// when the session was no longer active.
	ReleaseSession(ctx context.Context, id string, to domain.SessionStatus) (bool, error)

	// ConfirmSession is the all-or-nothing confirm: flip the session
	// active→confirmed, convert each hold into a durable stock decrement,
	// persist the per-seller orders and clear the originating cart. Any
	// failed stock commit aborts the whole thing with a
	// STOCK_CHANGED_SINCE_RESERVATION conflict.
	ConfirmSession(ctx context.Context, sess *domain.CheckoutSession, orders []*domain.Order) error

	// ExpireDueSessions transitions up to limit overdue active sessions to
	// expired, releasing their holds, and returns the session ids swept.
	ExpireDueSessions(ctx context.Context, now time.Time, limit int) ([]string, error)

	Listing(ctx context.Context, id string) (*domain.Listing, error)
	CartItems(ctx context.Context, ownerID string) ([]domain.CartItem, error)
}
