package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/ordermart/internal/model"
	"github.com/mmeshcher/ordermart/internal/orderapi"
)

// ErrForwardFailed возвращается, если заказ сохранён, но API приёма заказов его не приняло.
var ErrForwardFailed = errors.New("order stored but not forwarded")

// AssignNextOrderCode выдаёт следующий код заказа. Счётчик увеличивается в хранилище
// атомарно, поэтому параллельные вызовы получают разные коды.
func (s *Service) AssignNextOrderCode(ctx context.Context) (int64, error) {
	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	code, err := s.repo.NextOrderCode(ctx)
	if err != nil {
		return 0, storeFailure(err)
	}

	s.metrics.RecordOrderCode()
	return code, nil
}

// AdvanceStatus переводит заказ на следующий статус и возвращает сохранённое значение.
// Для заказа в статусе Delivered возвращается model.ErrStatusTerminal без записи.
func (s *Service) AdvanceStatus(ctx context.Context, orderID string) (model.OrderStatus, error) {
	if strings.TrimSpace(orderID) == "" {
		return 0, validationError("order id is required")
	}

	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	status, err := s.repo.AdvanceOrderStatus(ctx, orderID, s.now())
	if err != nil {
		return status, storeFailure(err)
	}

	s.metrics.RecordStatusTransition(status)
	return status, nil
}

// GetOrder возвращает заказ по идентификатору.
func (s *Service) GetOrder(ctx context.Context, id string) (*model.SalesOrder, error) {
	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	o, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, storeFailure(err)
	}
	return o, nil
}

// ListOrders возвращает заказы с фильтрацией по статусу и имени клиента (см. FilterOrders).
func (s *Service) ListOrders(ctx context.Context, status model.OrderStatus, name string) ([]model.SalesOrder, error) {
	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	orders, err := s.repo.ListOrders(ctx)
	if err != nil {
		return nil, storeFailure(err)
	}
	return FilterOrders(orders, status, name), nil
}

// ListClientOrders возвращает заказы клиента.
func (s *Service) ListClientOrders(ctx context.Context, clientID string) ([]model.SalesOrder, error) {
	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	orders, err := s.repo.ListOrdersByClient(ctx, clientID)
	if err != nil {
		return nil, storeFailure(err)
	}
	return orders, nil
}

// SubmitOrder оформляет заказ или коммерческое предложение: снимает копию данных клиента,
// выдаёт код, сохраняет заказ в статусе Open и отправляет его во внешнее API.
// Если API не приняло заказ, возвращается сохранённый заказ и ошибка ErrForwardFailed.
func (s *Service) SubmitOrder(ctx context.Context, draft model.SalesOrder) (*model.SalesOrder, error) {
	order, err := s.prepareOrder(draft)
	if err != nil {
		s.metrics.RecordOrderSubmitted(draft.Kind, err)
		return nil, err
	}

	client, err := s.GetClient(ctx, order.ClientID)
	if err != nil {
		s.metrics.RecordOrderSubmitted(order.Kind, err)
		return nil, err
	}
	order.Client = model.ClientSnapshot{
		Name:     client.Name,
		Document: client.Document,
		Email:    client.Email,
	}

	code, err := s.AssignNextOrderCode(ctx)
	if err != nil {
		s.metrics.RecordOrderSubmitted(order.Kind, err)
		return nil, err
	}
	order.Code = code

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	if err := s.repo.CreateOrder(storeCtx, order); err != nil {
		err = storeFailure(err)
		s.metrics.RecordOrderSubmitted(order.Kind, err)
		return nil, err
	}
	s.metrics.RecordOrderSubmitted(order.Kind, nil)

	if s.submitter == nil {
		return &order, nil
	}

	// Сумма уже проверена в prepareOrder.
	total, _ := OrderTotal(order)
	if err := s.submitter.SubmitOrder(ctx, orderapi.NewPayload(order, total)); err != nil {
		s.logger.Warn("forward order to order API",
			zap.Error(err),
			zap.String("order", order.ID),
			zap.Int64("code", order.Code),
		)
		return &order, fmt.Errorf("%w: %w", ErrForwardFailed, err)
	}

	return &order, nil
}

func (s *Service) prepareOrder(draft model.SalesOrder) (model.SalesOrder, error) {
	o := model.SalesOrder{
		ClientID:       strings.TrimSpace(draft.ClientID),
		Kind:           draft.Kind,
		Items:          draft.Items,
		PaymentMethods: draft.PaymentMethods,
	}

	if o.Kind == "" {
		o.Kind = model.OrderKindOrder
	}
	if o.Kind != model.OrderKindOrder && o.Kind != model.OrderKindQuote {
		return o, validationError("unknown order kind %q", draft.Kind)
	}
	if o.ClientID == "" {
		return o, validationError("client id is required")
	}
	if len(o.Items) == 0 {
		return o, validationError("order has no items")
	}

	for i, it := range o.Items {
		if strings.TrimSpace(it.ProductID) == "" {
			return o, validationError("item %d: product id is required", i)
		}
		if it.Quantity <= 0 {
			return o, validationError("item %d: quantity must be positive", i)
		}
		if it.UnitPrice != nil && *it.UnitPrice < 0 {
			return o, validationError("item %d: unit price must not be negative", i)
		}
	}

	for i, pm := range o.PaymentMethods {
		if strings.TrimSpace(pm.MethodID) == "" {
			return o, validationError("payment %d: method id is required", i)
		}
		if pm.InstallmentCount < 1 {
			return o, validationError("payment %d: installment count must be at least 1", i)
		}
		if pm.Amount < 0 {
			return o, validationError("payment %d: amount must not be negative", i)
		}
	}

	if _, err := OrderTotal(o); err != nil {
		return o, err
	}

	now := s.now()
	o.ID = s.newID()
	o.Status = model.OrderStatusOpen
	o.CreatedAt = now
	o.UpdatedAt = now

	return o, nil
}
