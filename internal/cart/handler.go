package cart

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/lfmorais/unimarket/internal/auth"
	"github.com/lfmorais/unimarket/internal/domain"
	"github.com/lfmorais/unimarket/internal/httpx"
)

type Store interface {
	Get(ctx context.Context, ownerID string) (*domain.Cart, error)
	AddItem(ctx context.Context, ownerID, listingID string, quantity int) error
	RemoveItem(ctx context.Context, ownerID, listingID string) error
	Clear(ctx context.Context, ownerID string) error
}

type ListingReader interface {
	GetByID(ctx context.Context, id string) (*domain.Listing, error)
}

type Handler struct {
	store    Store
	listings ListingReader
	logger   *slog.Logger
}

func NewHandler(store Store, listings ListingReader, logger *slog.Logger) *Handler {
	return &Handler{store: store, listings: listings, logger: logger}
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.From(r.Context())

	c, err := h.store.Get(r.Context(), id.UserID)
	if err != nil {
		h.logger.Error("failed to load cart", "error", err, "owner_id", id.UserID)
		httpx.Error(w, h.logger, err)
		return
	}
	httpx.OK(w, h.logger, http.StatusOK, "cart", c)
}

type addItemRequest struct {
	ListingID string `json:"listing_id"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) HandleAddItem(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.From(r.Context())

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Fail(w, h.logger, http.StatusBadRequest, domain.CodeValidation, "invalid request body")
		return
	}
	if req.ListingID == "" || req.Quantity <= 0 {
		httpx.Fail(w, h.logger, http.StatusBadRequest, domain.CodeValidation, "listing_id and positive quantity are required")
		return
	}

	listing, err := h.listings.GetByID(r.Context(), req.ListingID)
	if err != nil {
		h.logger.Error("failed to load listing", "error", err, "listing_id", req.ListingID)
		httpx.Error(w, h.logger, err)
		return
	}
	if listing == nil {
		httpx.Fail(w, h.logger, http.StatusNotFound, domain.CodeNotFound, "listing not found")
		return
	}
	if !listing.Purchasable() {
		httpx.Fail(w, h.logger, http.StatusBadRequest, domain.CodeValidation, "listing cannot be added to a cart")
		return
	}
	if id.UserID == listing.SellerID {
		httpx.Fail(w, h.logger, http.StatusBadRequest, domain.CodeValidation, "cannot buy your own listing")
		return
	}

	if err := h.store.AddItem(r.Context(), id.UserID, req.ListingID, req.Quantity); err != nil {
		h.logger.Error("failed to add cart item", "error", err, "owner_id", id.UserID)
		httpx.Error(w, h.logger, err)
		return
	}

	c, err := h.store.Get(r.Context(), id.UserID)
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}

	h.logger.Info("cart item added", "owner_id", id.UserID, "listing_id", req.ListingID, "quantity", req.Quantity)
	httpx.OK(w, h.logger, http.StatusOK, "item added", c)
}

func (h *Handler) HandleRemoveItem(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.From(r.Context())

	listingID := r.PathValue("listingId")
	if listingID == "" {
		httpx.Fail(w, h.logger, http.StatusBadRequest, domain.CodeValidation, "missing listing id")
		return
	}

	if err := h.store.RemoveItem(r.Context(), id.UserID, listingID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			httpx.Fail(w, h.logger, http.StatusNotFound, domain.CodeNotFound, "listing not in cart")
			return
		}
		h.logger.Error("failed to remove cart item", "error", err, "owner_id", id.UserID)
		httpx.Error(w, h.logger, err)
		return
	}

	httpx.OK(w, h.logger, http.StatusOK, "item removed", nil)
}

func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.From(r.Context())

	if err := h.store.Clear(r.Context(), id.UserID); err != nil {
		h.logger.Error("failed to clear cart", "error", err, "owner_id", id.UserID)
		httpx.Error(w, h.logger, err)
		return
	}

	httpx.OK(w, h.logger, http.StatusOK, "cart cleared", nil)
}
