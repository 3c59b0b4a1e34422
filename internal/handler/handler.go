// Package handler содержит HTTP-обработчики API сервиса ordermart.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/ordermart/internal/middleware"
	"github.com/mmeshcher/ordermart/internal/model"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterClient(ctx context.Context, c model.Client) (*model.Client, error)
	GetClient(ctx context.Context, id string) (*model.Client, error)
	ListClients(ctx context.Context, query string) ([]model.Client, error)
	ApplyCreditOperation(ctx context.Context, clientID string, opType model.OperationType, amount decimal.Decimal, actorName string) (model.LedgerEntry, int64, error)
	ListOperations(ctx context.Context, clientID string) ([]model.LedgerEntry, error)

	SubmitOrder(ctx context.Context, draft model.SalesOrder) (*model.SalesOrder, error)
	GetOrder(ctx context.Context, id string) (*model.SalesOrder, error)
	ListOrders(ctx context.Context, status model.OrderStatus, name string) ([]model.SalesOrder, error)
	ListClientOrders(ctx context.Context, clientID string) ([]model.SalesOrder, error)
	AdvanceStatus(ctx context.Context, orderID string) (model.OrderStatus, error)
	AssignNextOrderCode(ctx context.Context) (int64, error)
}

// Handler реализует HTTP-обработчики API сервиса ordermart.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	metrics        http.Handler
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
// metricsHandler может быть nil: тогда /metrics не публикуется.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, metricsHandler http.Handler) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		metrics:        metricsHandler,
	}
}

// statusFor сопоставляет ошибку бизнес-логики HTTP-статусу.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrStatusTerminal), errors.Is(err, model.ErrRaceCondition), errors.Is(err, model.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, msg string, err error, fields ...zap.Field) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, append(fields, zap.Error(err))...)
		http.Error(w, http.StatusText(status), status)
		return
	}

	h.writeJSON(w, status, errorResponse{Error: err.Error()})
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func badRequest(w http.ResponseWriter) {
	http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
}
