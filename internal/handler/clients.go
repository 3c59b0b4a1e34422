package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/ordermart/internal/middleware"
	"github.com/mmeshcher/ordermart/internal/model"
	"github.com/mmeshcher/ordermart/internal/money"
)

type clientRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Document string `json:"document"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

type clientResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Document  string `json:"document"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Balance   string `json:"balance"`
	CreatedAt string `json:"created_at"`
}

func newClientResponse(c model.Client) clientResponse {
	return clientResponse{
		ID:        c.ID,
		Name:      c.Name,
		Document:  c.Document,
		Email:     c.Email,
		Phone:     c.Phone,
		Balance:   money.Format(c.Balance),
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
	}
}

type operationRequest struct {
	Type      string          `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	ActorName string          `json:"actor_name"`
}

type operationResponse struct {
	ID        int64  `json:"id"`
	ClientID  string `json:"client_id"`
	Type      string `json:"type"`
	Amount    string `json:"amount"`
	ActorName string `json:"actor_name"`
	CreatedAt string `json:"created_at"`
}

func newOperationResponse(e model.LedgerEntry) operationResponse {
	return operationResponse{
		ID:        e.ID,
		ClientID:  e.ClientID,
		Type:      string(e.Type),
		Amount:    money.Format(e.Amount),
		ActorName: e.ActorName,
		CreatedAt: e.CreatedAt.Format(time.RFC3339),
	}
}

type appliedOperationResponse struct {
	Operation operationResponse `json:"operation"`
	Balance   string            `json:"balance"`
}

// ListClients возвращает клиентов, отобранных по строке поиска q.
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	clients, err := h.service.ListClients(r.Context(), query)
	if err != nil {
		h.writeError(w, "list clients error", err, zap.String("query", query))
		return
	}

	resp := make([]clientResponse, 0, len(clients))
	for _, c := range clients {
		resp = append(resp, newClientResponse(c))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// RegisterClient регистрирует нового клиента с нулевым балансом.
func (h *Handler) RegisterClient(w http.ResponseWriter, r *http.Request) {
	var req clientRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w)
		return
	}

	c, err := h.service.RegisterClient(r.Context(), model.Client{
		ID:       req.ID,
		Name:     req.Name,
		Document: req.Document,
		Email:    req.Email,
		Phone:    req.Phone,
	})
	if err != nil {
		h.writeError(w, "register client error", err, zap.String("client", req.ID))
		return
	}

	h.writeJSON(w, http.StatusCreated, newClientResponse(*c))
}

// GetClient возвращает клиента и его текущий баланс.
func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	c, err := h.service.GetClient(r.Context(), id)
	if err != nil {
		h.writeError(w, "get client error", err, zap.String("client", id))
		return
	}

	h.writeJSON(w, http.StatusOK, newClientResponse(*c))
}

// ApplyOperation начисляет или списывает сумму с кредитного счёта клиента.
func (h *Handler) ApplyOperation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req operationRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w)
		return
	}

	entry, balance, err := h.service.ApplyCreditOperation(r.Context(), id, model.OperationType(req.Type), req.Amount, req.ActorName)
	if err != nil {
		h.writeError(w, "apply operation error", err,
			zap.String("client", id),
			zap.String("type", req.Type),
			zap.String("amount", req.Amount.String()),
		)
		return
	}

	h.writeJSON(w, http.StatusOK, appliedOperationResponse{
		Operation: newOperationResponse(entry),
		Balance:   money.Format(balance),
	})
}

// ListOperations возвращает журнал операций клиента.
func (h *Handler) ListOperations(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	entries, err := h.service.ListOperations(r.Context(), id)
	if err != nil {
		h.writeError(w, "list operations error", err, zap.String("client", id))
		return
	}

	h.writeJSON(w, http.StatusOK, newOperationsResponse(entries))
}

// GetMyOperations возвращает журнал операций текущего пользователя.
func (h *Handler) GetMyOperations(w http.ResponseWriter, r *http.Request) {
	uid, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	entries, err := h.service.ListOperations(r.Context(), uid)
	if err != nil {
		h.writeError(w, "get my operations error", err, zap.String("uid", uid))
		return
	}

	if len(entries) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.writeJSON(w, http.StatusOK, newOperationsResponse(entries))
}

func newOperationsResponse(entries []model.LedgerEntry) []operationResponse {
	resp := make([]operationResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, newOperationResponse(e))
	}
	return resp
}
