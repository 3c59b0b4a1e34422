// Package model содержит доменные сущности сервиса ordermart.
package model

import "time"

// Client представляет клиента магазина и его кредитный баланс.
type Client struct {
	ID        string
	Name      string
	Document  string
	Email     string
	Phone     string
	Balance   int64
	CreatedAt time.Time
}

// OperationType описывает направление операции по кредитному счёту клиента.
type OperationType string

const (
	OperationCredit OperationType = "credit"
	OperationDebit  OperationType = "debit"
)

// Код операции в журнале хранилища.
const (
	storedCredit = "sum"
	storedDebit  = "sub"
)

// Valid сообщает, является ли тип операции допустимым.
func (t OperationType) Valid() bool {
	return t == OperationCredit || t == OperationDebit
}

// Signed возвращает сумму со знаком, соответствующим типу операции.
func (t OperationType) Signed(amount int64) int64 {
	if t == OperationDebit {
		return -amount
	}
	return amount
}

// StoredCode возвращает код операции, под которым она хранится в журнале.
func (t OperationType) StoredCode() string {
	if t == OperationDebit {
		return storedDebit
	}
	return storedCredit
}

// OperationTypeFromStored восстанавливает тип операции по коду из журнала.
func OperationTypeFromStored(code string) (OperationType, bool) {
	switch code {
	case storedCredit:
		return OperationCredit, true
	case storedDebit:
		return OperationDebit, true
	}
	return "", false
}

// LedgerEntry описывает неизменяемую запись журнала операций клиента.
type LedgerEntry struct {
	ID        int64
	ClientID  string
	Type      OperationType
	Amount    int64
	ActorName string
	CreatedAt time.Time
}

// OrderStatus описывает этап жизненного цикла заказа.
type OrderStatus int

const (
	OrderStatusOpen OrderStatus = iota + 1
	OrderStatusInProduction
	OrderStatusReady
	OrderStatusInvoiced
	OrderStatusShipped
	OrderStatusDelivered
)

// Valid сообщает, лежит ли статус в диапазоне 1..6.
func (s OrderStatus) Valid() bool {
	return s >= OrderStatusOpen && s <= OrderStatusDelivered
}

// Terminal сообщает, является ли статус конечным.
func (s OrderStatus) Terminal() bool {
	return s >= OrderStatusDelivered
}

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusOpen:
		return "open"
	case OrderStatusInProduction:
		return "in_production"
	case OrderStatusReady:
		return "ready"
	case OrderStatusInvoiced:
		return "invoiced"
	case OrderStatusShipped:
		return "shipped"
	case OrderStatusDelivered:
		return "delivered"
	}
	return "unknown"
}

// OrderKind различает заказы и коммерческие предложения.
type OrderKind string

const (
	OrderKindOrder OrderKind = "order"
	OrderKindQuote OrderKind = "quote"
)

// ClientSnapshot хранит копию данных клиента на момент оформления заказа.
type ClientSnapshot struct {
	Name     string `json:"name"`
	Document string `json:"document"`
	Email    string `json:"email"`
}

// OrderItem описывает позицию заказа. Цена и количество фиксируются при оформлении.
type OrderItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice *int64 `json:"unit_price,omitempty"`
	Quantity  int64  `json:"quantity"`
	Category  string `json:"category,omitempty"`
}

// PaymentMethod описывает способ оплаты заказа.
type PaymentMethod struct {
	MethodID         string `json:"method_id"`
	InstallmentCount int    `json:"installment_count"`
	Amount           int64  `json:"amount"`
}

// SalesOrder описывает заказ клиента.
type SalesOrder struct {
	ID             string
	Code           int64
	Kind           OrderKind
	ClientID       string
	Client         ClientSnapshot
	Items          []OrderItem
	PaymentMethods []PaymentMethod
	Status         OrderStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
