package quotes

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lfmorais/unimarket/internal/domain"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const quoteColumns = `
	id, listing_id, listing_title, buyer_id, seller_id, status,
	message, budget_cents, timeline, priority, custom_fields,
	quoted_price_cents, estimated_duration, quote_message,
	deposit_required, deposit_amount_cents, deposit_percent_bps, terms, valid_until,
	respond_by, responded_at, paid_at, started_at, completed_at,
	completion_note, reject_note, cancel_reason, cancel_note, cancelled_by,
	created_at, updated_at
`

func (r *Repository) Create(ctx context.Context, q *domain.QuoteRequest) error {
	fields, err := marshalCustomFields(q.CustomFields)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO quote_requests (
			id, listing_id, listing_title, buyer_id, seller_id, status,
			message, budget_cents, timeline, priority, custom_fields,
			respond_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, $11, $12, $13, $13)
	`, q.ID, q.ListingID, q.ListingTitle, q.BuyerID, q.SellerID, q.Status,
		q.Message, q.BudgetCents, q.Timeline, q.Priority, fields,
		q.RespondBy, q.CreatedAt)
	return err
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.QuoteRequest, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT `+quoteColumns+` FROM quote_requests WHERE id = $1`, id))
}

func (r *Repository) ListByBuyer(ctx context.Context, buyerID string) ([]domain.QuoteRequest, error) {
	return r.list(ctx, `SELECT `+quoteColumns+` FROM quote_requests WHERE buyer_id = $1 ORDER BY created_at DESC`, buyerID)
}

func (r *Repository) ListBySeller(ctx context.Context, sellerID string) ([]domain.QuoteRequest, error) {
	return r.list(ctx, `SELECT `+quoteColumns+` FROM quote_requests WHERE seller_id = $1 ORDER BY created_at DESC`, sellerID)
}

// Transition writes the quote's mutable columns, guarded on the status the
// caller last saw.
func (r *Repository) Transition(ctx context.Context, q *domain.QuoteRequest, from domain.QuoteStatus) (bool, error) {
	var (
		quotedPrice, depositAmount          *int64
		depositBps                          *int
		estimatedDuration, quoteMsg, terms  sql.NullString
		validUntil                          sql.NullTime
		depositRequired                     bool
		cancelReason, cancelNote, cancelled sql.NullString
	)
	if q.Quote != nil {
		quotedPrice = &q.Quote.PriceCents
		depositAmount = q.Quote.DepositAmountCents
		depositBps = q.Quote.DepositPercentBps
		depositRequired = q.Quote.DepositRequired
		estimatedDuration = nullString(q.Quote.EstimatedDuration)
		quoteMsg = nullString(q.Quote.Message)
		terms = nullString(q.Quote.Terms)
		validUntil = sql.NullTime{Time: q.Quote.ValidUntil, Valid: true}
	}
	if q.Cancellation != nil {
		cancelReason = nullString(string(q.Cancellation.Reason))
		cancelNote = nullString(q.Cancellation.Note)
		cancelled = nullString(q.Cancellation.By)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE quote_requests SET
			status = $3,
			quoted_price_cents = $4, estimated_duration = $5, quote_message = $6,
			deposit_required = $7, deposit_amount_cents = $8, deposit_percent_bps = $9,
			terms = $10, valid_until = $11,
			responded_at = $12, paid_at = $13, started_at = $14, completed_at = $15,
			completion_note = NULLIF($16, ''), reject_note = NULLIF($17, ''),
			cancel_reason = $18, cancel_note = $19, cancelled_by = CAST($20 AS uuid),
			updated_at = $21
		WHERE id = $1 AND status = $2
	`, q.ID, from, q.Status,
		quotedPrice, estimatedDuration, quoteMsg,
		depositRequired, depositAmount, depositBps,
		terms, validUntil,
		q.RespondedAt, q.PaidAt, q.StartedAt, q.CompletedAt,
		q.CompletionNote, q.RejectNote,
		cancelReason, cancelNote, cancelled,
		q.UpdatedAt)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected > 0, nil
}

func (r *Repository) ExpireDue(ctx context.Context, now time.Time, limit int) ([]domain.QuoteRequest, error) {
	rows, err := r.db.QueryContext(ctx, `
		UPDATE quote_requests SET status = 'expired', updated_at = NOW()
		WHERE id IN (
			SELECT id FROM quote_requests
			WHERE (status = 'pending' AND respond_by < $1)
			   OR (status = 'quoted' AND valid_until < $1)
			ORDER BY updated_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+quoteColumns+`
	`, now, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []domain.QuoteRequest
	for rows.Next() {
		q, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		// The prior status is recoverable from the deadlines: a quoted
		// request always has a seller quote attached.
		if q.Quote != nil {
			q.Status = domain.QuoteQuoted
		} else {
			q.Status = domain.QuotePending
		}
		out = append(out, *q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
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

func (r *Repository) list(ctx context.Context, query string, arg any) ([]domain.QuoteRequest, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []domain.QuoteRequest
	for rows.Next() {
		q, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) scanOne(row *sql.Row) (*domain.QuoteRequest, error) {
	q, err := scanQuote(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return q, nil
}

func (r *Repository) scanRow(rows *sql.Rows) (*domain.QuoteRequest, error) {
	return scanQuote(rows.Scan)
}

func scanQuote(scan func(dest ...any) error) (*domain.QuoteRequest, error) {
	q := &domain.QuoteRequest{}
	var (
		timeline, estimatedDuration, quoteMsg, terms sql.NullString
		completionNote, rejectNote                   sql.NullString
		cancelReason, cancelNote, cancelledBy        sql.NullString
		quotedPrice, depositAmount                   sql.NullInt64
		depositBps                                   sql.NullInt64
		depositRequired                              bool
		validUntil                                   sql.NullTime
		customFields                                 []byte
	)

	err := scan(
		&q.ID, &q.ListingID, &q.ListingTitle, &q.BuyerID, &q.SellerID, &q.Status,
		&q.Message, &q.BudgetCents, &timeline, &q.Priority, &customFields,
		&quotedPrice, &estimatedDuration, &quoteMsg,
		&depositRequired, &depositAmount, &depositBps, &terms, &validUntil,
		&q.RespondBy, &q.RespondedAt, &q.PaidAt, &q.StartedAt, &q.CompletedAt,
		&completionNote, &rejectNote, &cancelReason, &cancelNote, &cancelledBy,
		&q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	q.Timeline = timeline.String
	q.CompletionNote = completionNote.String
	q.RejectNote = rejectNote.String

	if len(customFields) > 0 {
		if err := json.Unmarshal(customFields, &q.CustomFields); err != nil {
			return nil, err
		}
	}

	if quotedPrice.Valid {
		quote := &domain.SellerQuote{
			PriceCents:        quotedPrice.Int64,
			EstimatedDuration: estimatedDuration.String,
			Message:           quoteMsg.String,
			DepositRequired:   depositRequired,
			Terms:             terms.String,
			ValidUntil:        validUntil.Time,
		}
		if depositAmount.Valid {
			quote.DepositAmountCents = &depositAmount.Int64
		}
		if depositBps.Valid {
			bps := int(depositBps.Int64)
			quote.DepositPercentBps = &bps
		}
		q.Quote = quote
	}

	if cancelReason.Valid {
		q.Cancellation = &domain.Cancellation{
			Reason: domain.CancelReason(cancelReason.String),
			Note:   cancelNote.String,
			By:     cancelledBy.String,
		}
	}

	return q, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func marshalCustomFields(fields map[string]string) ([]byte, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	return json.Marshal(fields)
}
