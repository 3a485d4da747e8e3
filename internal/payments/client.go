package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/lfmorais/unimarket/internal/domain"
)

// Client talks to the payment gateway facade. The gateway itself (card
// processing, refunds) is an external collaborator; this client only
// creates a charge and reports whether it cleared.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

type chargeRequest struct {
	Reference   string `json:"reference"`
	UserID      string `json:"user_id"`
	AmountCents int64  `json:"amount_cents"`
}

// Collect charges the buyer for an accepted quote. A declined charge comes
// back as a PAYMENT_FAILED conflict so callers can hold the quote instead
// of failing the request.
func (c *Client) Collect(ctx context.Context, quoteID, buyerID string, amountCents int64) error {
	data, err := json.Marshal(chargeRequest{
		Reference:   quoteID,
		UserID:      buyerID,
		AmountCents: amountCents,
	})
	if err != nil {
		return fmt.Errorf("marshal charge request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/charges", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create charge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("charge for quote %s: %w", quoteID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		return nil
	case resp.StatusCode == http.StatusPaymentRequired || resp.StatusCode == http.StatusConflict:
		return domain.Conflict(domain.CodePaymentFailed, "payment was declined")
	default:
		return fmt.Errorf("payment gateway returned status %d", resp.StatusCode)
	}
}
