package orders

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/lfmorais/unimarket/internal/auth"
	"github.com/lfmorais/unimarket/internal/domain"
	"github.com/lfmorais/unimarket/internal/httpx"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// HandleList serves GET /orders?role=buyer|seller.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.From(r.Context())

	list, err := h.service.List(r.Context(), id, r.URL.Query().Get("role"))
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	if list == nil {
		list = []domain.Order{}
	}
	httpx.OK(w, h.logger, http.StatusOK, "orders", list)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.From(r.Context())

	order, err := h.service.Get(r.Context(), id, r.PathValue("orderId"))
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	httpx.OK(w, h.logger, http.StatusOK, "order", order)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.From(r.Context())

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Fail(w, h.logger, http.StatusBadRequest, domain.CodeValidation, "invalid request body")
		return
	}
	if req.Status == "" {
		httpx.Fail(w, h.logger, http.StatusBadRequest, domain.CodeValidation, "status is required")
		return
	}

	order, err := h.service.UpdateStatus(r.Context(), id, r.PathValue("orderId"), domain.OrderStatus(req.Status))
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	httpx.OK(w, h.logger, http.StatusOK, "order status updated", order)
}
