package cart

import (
	"context"
	"database/sql"

	"github.com/lfmorais/unimarket/internal/domain"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Get(ctx context.Context, ownerID string) (*domain.Cart, error) {
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

	cart := &domain.Cart{OwnerID: ownerID, Items: []domain.CartItem{}}
	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(&item.ListingID, &item.Quantity, &item.AddedAt); err != nil {
			return nil, err
		}
		cart.Items = append(cart.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return cart, nil
}

// AddItem increments the line for the listing, creating it when absent.
func (r *Repository) AddItem(ctx context.Context, ownerID, listingID string, quantity int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cart_items (owner_id, listing_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (owner_id, listing_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
	`, ownerID, listingID, quantity)
	return err
}

func (r *Repository) RemoveItem(ctx context.Context, ownerID, listingID string) error {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_items WHERE owner_id = $1 AND listing_id = $2
	`, ownerID, listingID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *Repository) Clear(ctx context.Context, ownerID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE owner_id = $1`, ownerID)
	return err
}
