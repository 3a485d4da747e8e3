package catalog

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/lfmorais/unimarket/internal/domain"
	"github.com/lfmorais/unimarket/internal/httpx"
)

type Lister interface {
	List(ctx context.Context) ([]domain.Listing, error)
	GetByID(ctx context.Context, id string) (*domain.Listing, error)
}

type Handler struct {
	repo   Lister
	logger *slog.Logger
}

func NewHandler(repo Lister, logger *slog.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	listings, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list listings", "error", err)
		httpx.Error(w, h.logger, err)
		return
	}
	httpx.OK(w, h.logger, http.StatusOK, "listings", listings)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		httpx.Fail(w, h.logger, http.StatusBadRequest, domain.CodeValidation, "missing listing id")
		return
	}

	listing, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get listing", "error", err, "id", id)
		httpx.Error(w, h.logger, err)
		return
	}
	if listing == nil {
		httpx.Fail(w, h.logger, http.StatusNotFound, domain.CodeNotFound, "listing not found")
		return
	}

	httpx.OK(w, h.logger, http.StatusOK, "listing", listing)
}
