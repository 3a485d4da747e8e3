package checkout

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

// HandleCreateFromCart starts a session from the caller's cart.
func (h *Handler) HandleCreateFromCart(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.From(r.Context())

	sess, err := h.service.CreateFromCart(r.Context(), id.UserID)
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	httpx.OK(w, h.logger, http.StatusCreated, "checkout session created", sess)
}

type directRequest struct {
	ListingID string `json:"listing_id"`
	Quantity  int    `json:"quantity"`
}

// HandleCreateDirect starts a single-listing "buy now" session.
func (h *Handler) HandleCreateDirect(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.From(r.Context())

	var req directRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Fail(w, h.logger, http.StatusBadRequest, domain.CodeValidation, "invalid request body")
		return
	}
	if req.ListingID == "" {
		httpx.Fail(w, h.logger, http.StatusBadRequest, domain.CodeValidation, "listing_id is required")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	sess, err := h.service.CreateDirect(r.Context(), id.UserID, req.ListingID, req.Quantity)
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	httpx.OK(w, h.logger, http.StatusCreated, "checkout session created", sess)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.From(r.Context())

	sess, err := h.service.Get(r.Context(), id, r.PathValue("sessionId"))
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	httpx.OK(w, h.logger, http.StatusOK, "checkout session", sess)
}

// HandleActive returns the caller's current active session, data null when
// there is none.
func (h *Handler) HandleActive(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.From(r.Context())

	sess, err := h.service.Active(r.Context(), id.UserID)
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	if sess == nil {
		httpx.OK(w, h.logger, http.StatusOK, "no active session", nil)
		return
	}
	httpx.OK(w, h.logger, http.StatusOK, "checkout session", sess)
}

type updateRequest struct {
	DeliveryMethod    string `json:"delivery_method,omitempty"`
	DeliveryAddressID string `json:"delivery_address_id,omitempty"`
	PaymentMethod     string `json:"payment_method,omitempty"`
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.From(r.Context())

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Fail(w, h.logger, http.StatusBadRequest, domain.CodeValidation, "invalid request body")
		return
	}

	sess, err := h.service.UpdateSelections(r.Context(), id, r.PathValue("sessionId"), Selections{
		DeliveryMethod:    domain.DeliveryMethod(req.DeliveryMethod),
		DeliveryAddressID: req.DeliveryAddressID,
		PaymentMethod:     domain.PaymentMethod(req.PaymentMethod),
	})
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	httpx.OK(w, h.logger, http.StatusOK, "checkout session updated", sess)
}

func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.From(r.Context())

	sess, err := h.service.Cancel(r.Context(), id, r.PathValue("sessionId"))
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	httpx.OK(w, h.logger, http.StatusOK, "checkout session cancelled", sess)
}

func (h *Handler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.From(r.Context())

	orders, err := h.service.Confirm(r.Context(), id, r.PathValue("sessionId"))
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	httpx.OK(w, h.logger, http.StatusCreated, "checkout confirmed", orders)
}
