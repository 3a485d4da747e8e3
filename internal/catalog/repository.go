package catalog

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

func (r *Repository) List(ctx context.Context) ([]domain.Listing, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, seller_id, title, kind, price_cents, available, reserved, active, created_at, updated_at
		FROM listings
		WHERE active
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var listings []domain.Listing
	for rows.Next() {
		var l domain.Listing
		if err := rows.Scan(&l.ID, &l.SellerID, &l.Title, &l.Kind, &l.PriceCents,
			&l.Available, &l.Reserved, &l.Active, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return listings, nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Listing, error) {
	l := &domain.Listing{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, seller_id, title, kind, price_cents, available, reserved, active, created_at, updated_at
		FROM listings
		WHERE id = $1
	`, id).Scan(&l.ID, &l.SellerID, &l.Title, &l.Kind, &l.PriceCents,
		&l.Available, &l.Reserved, &l.Active, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return l, nil
}
