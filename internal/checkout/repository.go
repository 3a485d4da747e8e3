package checkout

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/lfmorais/unimarket/internal/domain"
)

// Repository is the Postgres-backed Store. Stock movements are guarded
// with conditional updates (available >= n, reserved >= n) so the counters
// can never go negative under concurrent checkouts.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateSession(ctx context.Context, sess *domain.CheckoutSession) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// Replace a prior active session instead of rejecting the new one.
	var priorID string
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM checkout_sessions
		WHERE owner_id = $1 AND status = 'active'
		FOR UPDATE
	`, sess.OwnerID).Scan(&priorID)
	if err != nil && err != sql.ErrNoRows {
		return err
	}
	if priorID != "" {
		if err := r.releaseHolds(ctx, tx, priorID); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE checkout_sessions SET status = 'cancelled', updated_at = NOW()
			WHERE id = $1 AND status = 'active'
		`, priorID)
		if err != nil {
			return err
		}
	}

	for _, item := range sess.Items {
		result, err := tx.ExecContext(ctx, `
			UPDATE listings
			SET available = available - $2, reserved = reserved + $2, updated_at = NOW()
			WHERE id = $1 AND active AND available >= $2
		`, item.ListingID, item.Quantity)
		if err != nil {
			return err
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rowsAffected == 0 {
			return domain.Conflict(domain.CodeInsufficientStock,
				"not enough stock for %q", item.Title)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO checkout_sessions (
			id, owner_id, status, source,
			subtotal_cents, delivery_fee_cents, platform_fee_cents, total_cents,
			created_at, updated_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9, $10)
	`, sess.ID, sess.OwnerID, sess.Status, sess.Source,
		sess.SubtotalCents, sess.DeliveryFeeCents, sess.PlatformFeeCents, sess.TotalCents,
		sess.CreatedAt, sess.ExpiresAt)
	if err != nil {
		return err
	}

	for _, item := range sess.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO session_items (session_id, listing_id, seller_id, title, unit_price_cents, quantity)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, sess.ID, item.ListingID, item.SellerID, item.Title, item.UnitPriceCents, item.Quantity)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO reservations (id, session_id, listing_id, quantity, status, expires_at)
			VALUES ($1, $2, $3, $4, 'held', $5)
		`, uuid.New().String(), sess.ID, item.ListingID, item.Quantity, sess.ExpiresAt)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *Repository) GetSession(ctx context.Context, id string) (*domain.CheckoutSession, error) {
	sess := &domain.CheckoutSession{}
	var delivery, address, payment sql.NullString

	err := r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, status, source, delivery_method, delivery_address_id, payment_method,
		       subtotal_cents, delivery_fee_cents, platform_fee_cents, total_cents,
		       created_at, updated_at, expires_at
		FROM checkout_sessions
		WHERE id = $1
	`, id).Scan(
		&sess.ID, &sess.OwnerID, &sess.Status, &sess.Source, &delivery, &address, &payment,
		&sess.SubtotalCents, &sess.DeliveryFeeCents, &sess.PlatformFeeCents, &sess.TotalCents,
		&sess.CreatedAt, &sess.UpdatedAt, &sess.ExpiresAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	sess.DeliveryMethod = domain.DeliveryMethod(delivery.String)
	sess.DeliveryAddressID = address.String
	sess.PaymentMethod = domain.PaymentMethod(payment.String)

	rows, err := r.db.QueryContext(ctx, `
		SELECT listing_id, seller_id, title, unit_price_cents, quantity
		FROM session_items
		WHERE session_id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var item domain.SessionItem
		if err := rows.Scan(&item.ListingID, &item.SellerID, &item.Title, &item.UnitPriceCents, &item.Quantity); err != nil {
			return nil, err
		}
		sess.Items = append(sess.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sess, nil
}

func (r *Repository) ActiveSession(ctx context.Context, ownerID string) (*domain.CheckoutSession, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `
		SELECT id FROM checkout_sessions
		WHERE owner_id = $1 AND status = 'active'
	`, ownerID).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return r.GetSession(ctx, id)
}

func (r *Repository) UpdateSelections(ctx context.Context, sess *domain.CheckoutSession) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE checkout_sessions
		SET delivery_method = NULLIF($2, ''),
		    delivery_address_id = CAST(NULLIF($3, '') AS uuid),
		    payment_method = NULLIF($4, ''),
		    subtotal_cents = $5, delivery_fee_cents = $6, platform_fee_cents = $7, total_cents = $8,
		    updated_at = $9
		WHERE id = $1 AND status = 'active'
	`, sess.ID, string(sess.DeliveryMethod), sess.DeliveryAddressID, string(sess.PaymentMethod),
		sess.SubtotalCents, sess.DeliveryFeeCents, sess.PlatformFeeCents, sess.TotalCents,
		sess.UpdatedAt)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected > 0, nil
}

func (r *Repository) ReleaseSession(ctx context.Context, id string, to domain.SessionStatus) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		UPDATE checkout_sessions SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'active'
	`, id, to)
	if err != nil {
		return false, err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if rowsAffected == 0 {
		return false, nil
	}

	if err := r.releaseHolds(ctx, tx, id); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

func (r *Repository) ConfirmSession(ctx context.Context, sess *domain.CheckoutSession, orders []*domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		UPDATE checkout_sessions
		SET status = 'confirmed', updated_at = NOW()
		WHERE id = $1 AND status = 'active'
	`, sess.ID)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.Conflict(domain.CodeInvalidTransition, "session is no longer active")
	}

	// Convert each hold into a durable decrement. A failed guard means the
	// listing's reserved counter no longer covers this session's hold,
	// which only happens if stock was tampered with outside the ledger.
	for _, item := range sess.Items {
		result, err := tx.ExecContext(ctx, `
			UPDATE listings
			SET reserved = reserved - $2, updated_at = NOW()
			WHERE id = $1 AND reserved >= $2
		`, item.ListingID, item.Quantity)
		if err != nil {
			return err
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rowsAffected == 0 {
			return domain.Conflict(domain.CodeStockChanged,
				"stock for %q changed since it was reserved", item.Title)
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE reservations SET status = 'committed'
		WHERE session_id = $1 AND status = 'held'
	`, sess.ID)
	if err != nil {
		return err
	}

	for _, order := range orders {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO orders (
				id, session_id, buyer_id, seller_id, status,
				delivery_method, delivery_address_id, payment_method,
				subtotal_cents, delivery_fee_cents, platform_fee_cents, total_cents,
				created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, CAST(NULLIF($7, '') AS uuid), $8, $9, $10, $11, $12, $13, $13)
		`, order.ID, order.SessionID, order.BuyerID, order.SellerID, order.Status,
			order.DeliveryMethod, order.DeliveryAddressID, order.PaymentMethod,
			order.SubtotalCents, order.DeliveryFeeCents, order.PlatformFeeCents, order.TotalCents,
			order.CreatedAt)
		if err != nil {
			return err
		}

		for _, item := range order.Items {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO order_items (id, order_id, listing_id, title, unit_price_cents, quantity)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, uuid.New().String(), order.ID, item.ListingID, item.Title, item.UnitPriceCents, item.Quantity)
			if err != nil {
				return err
			}
		}
	}

	if sess.Source == domain.SourceCart {
		_, err = tx.ExecContext(ctx, `DELETE FROM cart_items WHERE owner_id = $1`, sess.OwnerID)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *Repository) ExpireDueSessions(ctx context.Context, now time.Time, limit int) ([]string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	// SKIP LOCKED keeps concurrent sweepers from blocking on each other.
	rows, err := tx.QueryContext(ctx, `
		SELECT id FROM checkout_sessions
		WHERE status = 'active' AND expires_at < $1
		ORDER BY expires_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, now, limit)
	if err != nil {
		return nil, err
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	for _, id := range ids {
		_, err = tx.ExecContext(ctx, `
			UPDATE checkout_sessions SET status = 'expired', updated_at = NOW()
			WHERE id = $1
		`, id)
		if err != nil {
			return nil, err
		}
		if err := r.releaseHolds(ctx, tx, id); err != nil {
			return nil, err
		}
	}

	return ids, tx.Commit()
}

func (r *Repository) Listing(ctx context.Context, id string) (*domain.Listing, error) {
	listing := &domain.Listing{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, seller_id, title, kind, price_cents, available, reserved, active, created_at, updated_at
		FROM listings
		WHERE id = $1
	`, id).Scan(
		&listing.ID, &listing.SellerID, &listing.Title, &listing.Kind, &listing.PriceCents,
		&listing.Available, &listing.Reserved, &listing.Active, &listing.CreatedAt, &listing.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return listing, nil
}

func (r *Repository) CartItems(ctx context.Context, ownerID string) ([]domain.CartItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT listing_id, quantity, added_at
		FROM cart_items
		WHERE owner_id = $1
		ORDER BY added_at
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []domain.CartItem
	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(&item.ListingID, &item.Quantity, &item.AddedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// releaseHolds returns every held reservation of the session to available
// stock and marks the ledger rows released.
func (r *Repository) releaseHolds(ctx context.Context, tx *sql.Tx, sessionID string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE listings l
		SET available = l.available + res.quantity,
		    reserved = l.reserved - res.quantity,
		    updated_at = NOW()
		FROM reservations res
		WHERE res.listing_id = l.id AND res.session_id = $1 AND res.status = 'held'
	`, sessionID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE reservations SET status = 'released'
		WHERE session_id = $1 AND status = 'held'
	`, sessionID)
	return err
}
