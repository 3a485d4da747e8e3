package orders

import (
	"context"
	"database/sql"
	"time"

	"github.com/lfmorais/unimarket/internal/domain"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const orderColumns = `
	id, session_id, buyer_id, seller_id, status,
	delivery_method, delivery_address_id, payment_method,
	subtotal_cents, delivery_fee_cents, platform_fee_cents, total_cents,
	created_at, updated_at
`

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	order, err := r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil || order == nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT listing_id, title, unit_price_cents, quantity
		FROM order_items
		WHERE order_id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ListingID, &item.Title, &item.UnitPriceCents, &item.Quantity); err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return order, nil
}

// ListByBuyer returns the buyer's orders, newest first, without items.
func (r *Repository) ListByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE buyer_id = $1 ORDER BY created_at DESC`, buyerID)
}

// ListBySeller returns the seller's orders, newest first, without items.
func (r *Repository) ListBySeller(ctx context.Context, sellerID string) ([]domain.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE seller_id = $1 ORDER BY created_at DESC`, sellerID)
}

// UpdateStatus advances the order only when it still is in the expected
// status. Reports false when a concurrent update got there first.
func (r *Repository) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus, now time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2
	`, id, from, to, now)
	if err != nil {
		return false, err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected > 0, nil
}

func (r *Repository) list(ctx context.Context, query string, arg any) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []domain.Order
	for rows.Next() {
		order, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *Repository) scanOne(row scanner) (*domain.Order, error) {
	order := &domain.Order{}
	var address sql.NullString

	err := row.Scan(
		&order.ID, &order.SessionID, &order.BuyerID, &order.SellerID, &order.Status,
		&order.DeliveryMethod, &address, &order.PaymentMethod,
		&order.SubtotalCents, &order.DeliveryFeeCents, &order.PlatformFeeCents, &order.TotalCents,
		&order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	order.DeliveryAddressID = address.String
	return order, nil
}
