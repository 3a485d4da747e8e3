package quotes

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

type createRequest struct {
	ListingID    string            `json:"listing_id"`
	Message      string            `json:"message"`
	BudgetCents  *int64            `json:"budget_cents,omitempty"`
	Timeline     string            `json:"timeline,omitempty"`
	Priority     string            `json:"priority,omitempty"`
	CustomFields map[string]string `json:"custom_fields,omitempty"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.From(r.Context())

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Fail(w, h.logger, http.StatusBadRequest, domain.CodeValidation, "invalid request body")
		return
	}
	if req.ListingID == "" {
		httpx.Fail(w, h.logger, http.StatusBadRequest, domain.CodeValidation, "listing_id is required")
		return
	}

	q, err := h.service.Create(r.Context(), id, CreateInput{
		ListingID:    req.ListingID,
		Message:      req.Message,
		BudgetCents:  req.BudgetCents,
		Timeline:     req.Timeline,
		Priority:     domain.Priority(req.Priority),
		CustomFields: req.CustomFields,
	})
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	httpx.OK(w, h.logger, http.StatusCreated, "quote request created", q)
}

// HandleList serves GET /quotes?role=buyer|seller.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.From(r.Context())

	list, err := h.service.List(r.Context(), id, r.URL.Query().Get("role"))
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	if list == nil {
		list = []domain.QuoteRequest{}
	}
	httpx.OK(w, h.logger, http.StatusOK, "quote requests", list)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.From(r.Context())

	q, err := h.service.Get(r.Context(), id, r.PathValue("quoteId"))
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	httpx.OK(w, h.logger, http.StatusOK, "quote request", q)
}

type respondRequest struct {
	PriceCents         int64  `json:"price_cents"`
	EstimatedDuration  string `json:"estimated_duration,omitempty"`
	Message            string `json:"message,omitempty"`
	DepositRequired    bool   `json:"deposit_required,omitempty"`
	DepositAmountCents *int64 `json:"deposit_amount_cents,omitempty"`
	DepositPercentBps  *int   `json:"deposit_percent_bps,omitempty"`
	Terms              string `json:"terms,omitempty"`
}

func (h *Handler) HandleRespond(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.From(r.Context())

	var req respondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Fail(w, h.logger, http.StatusBadRequest, domain.CodeValidation, "invalid request body")
		return
	}

	q, err := h.service.Respond(r.Context(), id, r.PathValue("quoteId"), RespondInput{
		PriceCents:         req.PriceCents,
		EstimatedDuration:  req.EstimatedDuration,
		Message:            req.Message,
		DepositRequired:    req.DepositRequired,
		DepositAmountCents: req.DepositAmountCents,
		DepositPercentBps:  req.DepositPercentBps,
		Terms:              req.Terms,
	})
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	httpx.OK(w, h.logger, http.StatusOK, "quote sent", q)
}

func (h *Handler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.From(r.Context())

	q, err := h.service.Accept(r.Context(), id, r.PathValue("quoteId"))
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	httpx.OK(w, h.logger, http.StatusOK, "quote accepted", q)
}

type noteRequest struct {
	Note string `json:"note,omitempty"`
}

func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.From(r.Context())

	var req noteRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	q, err := h.service.Reject(r.Context(), id, r.PathValue("quoteId"), req.Note)
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	httpx.OK(w, h.logger, http.StatusOK, "quote rejected", q)
}

type cancelRequest struct {
	Reason string `json:"reason"`
	Note   string `json:"note,omitempty"`
}

func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.From(r.Context())

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Fail(w, h.logger, http.StatusBadRequest, domain.CodeValidation, "invalid request body")
		return
	}

	q, err := h.service.Cancel(r.Context(), id, r.PathValue("quoteId"), domain.CancelReason(req.Reason), req.Note)
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	httpx.OK(w, h.logger, http.StatusOK, "quote request cancelled", q)
}

func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.From(r.Context())

	q, err := h.service.Start(r.Context(), id, r.PathValue("quoteId"))
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	httpx.OK(w, h.logger, http.StatusOK, "service started", q)
}

func (h *Handler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.From(r.Context())

	var req noteRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	q, err := h.service.Complete(r.Context(), id, r.PathValue("quoteId"), req.Note)
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	httpx.OK(w, h.logger, http.StatusOK, "service completed", q)
}
