package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/ordermart/internal/middleware"
	"github.com/mmeshcher/ordermart/internal/model"
	"github.com/mmeshcher/ordermart/internal/money"
	"github.com/mmeshcher/ordermart/internal/service"
)

type orderItemRequest struct {
	ProductID string           `json:"product_id"`
	Name      string           `json:"name"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
	Quantity  int64            `json:"quantity"`
	Category  string           `json:"category"`
}

type paymentMethodRequest struct {
	MethodID         string          `json:"method_id"`
	InstallmentCount int             `json:"installment_count"`
	Amount           decimal.Decimal `json:"amount"`
}

type orderRequest struct {
	Kind           string                 `json:"kind"`
	ClientID       string                 `json:"client_id"`
	Items          []orderItemRequest     `json:"items"`
	PaymentMethods []paymentMethodRequest `json:"payment_methods"`
}

func (req orderRequest) draft() (model.SalesOrder, error) {
	o := model.SalesOrder{
		Kind:     model.OrderKind(req.Kind),
		ClientID: req.ClientID,
	}

	for i, it := range req.Items {
		item := model.OrderItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			Category:  it.Category,
		}
		if it.UnitPrice != nil {
			cents, err := money.FromDecimal(*it.UnitPrice)
			if err != nil {
				return o, fmt.Errorf("%w: item %d: %w", model.ErrValidation, i, err)
			}
			item.UnitPrice = &cents
		}
		o.Items = append(o.Items, item)
	}

	for i, pm := range req.PaymentMethods {
		cents, err := money.FromDecimal(pm.Amount)
		if err != nil {
			return o, fmt.Errorf("%w: payment %d: %w", model.ErrValidation, i, err)
		}
		o.PaymentMethods = append(o.PaymentMethods, model.PaymentMethod{
			MethodID:         pm.MethodID,
			InstallmentCount: pm.InstallmentCount,
			Amount:           cents,
		})
	}

	return o, nil
}

type orderItemResponse struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	UnitPrice *string `json:"unit_price"`
	Quantity  int64   `json:"quantity"`
	Category  string  `json:"category,omitempty"`
}

type paymentMethodResponse struct {
	MethodID         string `json:"method_id"`
	InstallmentCount int    `json:"installment_count"`
	Amount           string `json:"amount"`
}

type orderResponse struct {
	ID             string                  `json:"id"`
	Code           int64                   `json:"code"`
	Kind           string                  `json:"kind"`
	ClientID       string                  `json:"client_id"`
	Client         model.ClientSnapshot    `json:"client"`
	Items          []orderItemResponse     `json:"items"`
	PaymentMethods []paymentMethodResponse `json:"payment_methods"`
	Status         string                  `json:"status"`
	StatusOrder    int                     `json:"status_order"`
	Total          string                  `json:"total"`
	CreatedAt      string                  `json:"created_at"`
	UpdatedAt      string                  `json:"updated_at"`
}

func newOrderResponse(o model.SalesOrder) (orderResponse, error) {
	total, err := service.OrderTotal(o)
	if err != nil {
		return orderResponse{}, fmt.Errorf("order %s: %w", o.ID, err)
	}

	resp := orderResponse{
		ID:             o.ID,
		Code:           o.Code,
		Kind:           string(o.Kind),
		ClientID:       o.ClientID,
		Client:         o.Client,
		Items:          make([]orderItemResponse, 0, len(o.Items)),
		PaymentMethods: make([]paymentMethodResponse, 0, len(o.PaymentMethods)),
		Status:         o.Status.String(),
		StatusOrder:    int(o.Status),
		Total:          money.Format(total),
		CreatedAt:      o.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      o.UpdatedAt.Format(time.RFC3339),
	}

	for _, it := range o.Items {
		item := orderItemResponse{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			Category:  it.Category,
		}
		if it.UnitPrice != nil {
			p := money.Format(*it.UnitPrice)
			item.UnitPrice = &p
		}
		resp.Items = append(resp.Items, item)
	}

	for _, pm := range o.PaymentMethods {
		resp.PaymentMethods = append(resp.PaymentMethods, paymentMethodResponse{
			MethodID:         pm.MethodID,
			InstallmentCount: pm.InstallmentCount,
			Amount:           money.Format(pm.Amount),
		})
	}

	return resp, nil
}

func newOrdersResponse(orders []model.SalesOrder) ([]orderResponse, error) {
	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		r, err := newOrderResponse(o)
		if err != nil {
			return nil, err
		}
		resp = append(resp, r)
	}
	return resp, nil
}

// Заказ с непредставимой суммой считается повреждённой записью и даёт 500.
func (h *Handler) writeOrder(w http.ResponseWriter, status int, o model.SalesOrder) {
	resp, err := newOrderResponse(o)
	if err != nil {
		h.logger.Error("build order response", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, status, resp)
}

func (h *Handler) writeOrders(w http.ResponseWriter, orders []model.SalesOrder) {
	resp, err := newOrdersResponse(orders)
	if err != nil {
		h.logger.Error("build orders response", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

type advanceResponse struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	StatusOrder int    `json:"status_order"`
}

type codeResponse struct {
	Code int64 `json:"code"`
}

// parseStatus принимает номер статуса (1..6) или его имя. Пустая строка означает любой статус.
func parseStatus(raw string) (model.OrderStatus, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, true
	}

	if n, err := strconv.Atoi(raw); err == nil {
		s := model.OrderStatus(n)
		return s, s.Valid()
	}

	for s := model.OrderStatusOpen; s <= model.OrderStatusDelivered; s++ {
		if s.String() == raw {
			return s, true
		}
	}
	return 0, false
}

// ListOrders возвращает заказы с фильтрацией по статусу и точному имени клиента.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	status, ok := parseStatus(r.URL.Query().Get("status"))
	if !ok {
		badRequest(w)
		return
	}
	name := r.URL.Query().Get("name")

	orders, err := h.service.ListOrders(r.Context(), status, name)
	if err != nil {
		h.writeError(w, "list orders error", err, zap.Int("status", int(status)))
		return
	}

	h.writeOrders(w, orders)
}

// SubmitOrder оформляет заказ или коммерческое предложение.
// Если внешнее API не приняло заказ, возвращается 202 с сохранённым заказом.
func (h *Handler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w)
		return
	}

	draft, err := req.draft()
	if err != nil {
		h.writeError(w, "submit order error", err)
		return
	}

	order, err := h.service.SubmitOrder(r.Context(), draft)
	switch {
	case err == nil:
		h.writeOrder(w, http.StatusCreated, *order)
	case errors.Is(err, service.ErrForwardFailed) && order != nil:
		h.writeOrder(w, http.StatusAccepted, *order)
	default:
		h.writeError(w, "submit order error", err, zap.String("client", req.ClientID))
	}
}

// GetOrder возвращает заказ вместе с итоговой суммой.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	order, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		h.writeError(w, "get order error", err, zap.String("order", id))
		return
	}

	h.writeOrder(w, http.StatusOK, *order)
}

// AdvanceStatus переводит заказ на следующий статус.
func (h *Handler) AdvanceStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	status, err := h.service.AdvanceStatus(r.Context(), id)
	if err != nil {
		h.writeError(w, "advance status error", err, zap.String("order", id))
		return
	}

	h.writeJSON(w, http.StatusOK, advanceResponse{
		ID:          id,
		Status:      status.String(),
		StatusOrder: int(status),
	})
}

// NextOrderCode выдаёт следующий код заказа.
func (h *Handler) NextOrderCode(w http.ResponseWriter, r *http.Request) {
	code, err := h.service.AssignNextOrderCode(r.Context())
	if err != nil {
		h.writeError(w, "next order code error", err)
		return
	}

	h.writeJSON(w, http.StatusOK, codeResponse{Code: code})
}

// GetMyOrders возвращает заказы текущего пользователя.
func (h *Handler) GetMyOrders(w http.ResponseWriter, r *http.Request) {
	uid, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orders, err := h.service.ListClientOrders(r.Context(), uid)
	if err != nil {
		h.writeError(w, "get my orders error", err, zap.String("uid", uid))
		return
	}

	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.writeOrders(w, orders)
}
