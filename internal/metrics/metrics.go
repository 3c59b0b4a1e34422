// Package metrics содержит счётчики Prometheus для журнала операций и заказов.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mmeshcher/ordermart/internal/model"
)

// Результаты операций для меток с низкой кардинальностью.
const (
	ResultOK          = "ok"
	ResultValidation  = "validation"
	ResultNotFound    = "not_found"
	ResultConflict    = "conflict"
	ResultUnavailable = "unavailable"
	ResultError       = "error"
)

// Metrics содержит прикладные счётчики сервиса.
type Metrics struct {
	ledgerOperations  *prometheus.CounterVec
	statusTransitions *prometheus.CounterVec
	orderCodes        prometheus.Counter
	ordersSubmitted   *prometheus.CounterVec
}

// New создаёт счётчики и регистрирует их. Без registerer используется реестр по умолчанию.
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		ledgerOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ordermart_ledger_operations_total",
			Help: "Credit ledger operations by type and result.",
		}, []string{"type", "result"}),
		statusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ordermart_order_status_transitions_total",
			Help: "Order status transitions by target status.",
		}, []string{"to"}),
		orderCodes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ordermart_order_codes_assigned_total",
			Help: "Order codes handed out by the counter.",
		}),
		ordersSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ordermart_orders_submitted_total",
			Help: "Submitted orders by kind and result.",
		}, []string{"kind", "result"}),
	}

	registerer.MustRegister(m.ledgerOperations, m.statusTransitions, m.orderCodes, m.ordersSubmitted)

	return m
}

// Handler возвращает HTTP-обработчик с метриками из gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Classify сводит ошибку к метке результата.
func Classify(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, model.ErrValidation):
		return ResultValidation
	case errors.Is(err, model.ErrNotFound):
		return ResultNotFound
	case errors.Is(err, model.ErrRaceCondition), errors.Is(err, model.ErrAlreadyExists):
		return ResultConflict
	case errors.Is(err, model.ErrStoreUnavailable):
		return ResultUnavailable
	}
	return ResultError
}

// RecordLedgerOperation учитывает попытку операции по кредитному счёту.
func (m *Metrics) RecordLedgerOperation(opType model.OperationType, err error) {
	if m == nil {
		return
	}
	m.ledgerOperations.WithLabelValues(string(opType), Classify(err)).Inc()
}

// RecordStatusTransition учитывает переход заказа в новый статус.
func (m *Metrics) RecordStatusTransition(to model.OrderStatus) {
	if m == nil {
		return
	}
	m.statusTransitions.WithLabelValues(to.String()).Inc()
}

// RecordOrderCode учитывает выданный код заказа.
func (m *Metrics) RecordOrderCode() {
	if m == nil {
		return
	}
	m.orderCodes.Inc()
}

// RecordOrderSubmitted учитывает попытку оформления заказа.
func (m *Metrics) RecordOrderSubmitted(kind model.OrderKind, err error) {
	if m == nil {
		return
	}
	m.ordersSubmitted.WithLabelValues(string(kind), Classify(err)).Inc()
}
