package notifier

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"time"
)

// Handler is a stand-in for the real notification dispatcher: it accepts a
// notification, simulates delivery latency and logs it.
type Handler struct {
	logger *slog.Logger
}

func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{logger: logger}
}

type notifyRequest struct {
	UserID  string `json:"user_id"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type notifyResponse struct {
	Status string `json:"status"`
}

func (h *Handler) HandleNotify(w http.ResponseWriter, r *http.Request) {
	var req notifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.UserID == "" {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id is required"})
		return
	}

	delay := time.Duration(20+rand.Intn(81)) * time.Millisecond
	time.Sleep(delay)

	h.logger.Info("notification delivered", "user_id", req.UserID, "subject", req.Subject)

	h.writeJSON(w, http.StatusOK, notifyResponse{Status: "delivered"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}
