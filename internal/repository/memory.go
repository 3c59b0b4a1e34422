package repository

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/mmeshcher/ordermart/internal/model"
	"github.com/mmeshcher/ordermart/internal/money"
)

// MemoryRepository хранит данные в памяти процесса.
// Используется для локального запуска без DATABASE_URI и в тестах.
type MemoryRepository struct {
	mu sync.Mutex

	clients     map[string]*model.Client
	clientOrder []string
	operations  []model.LedgerEntry
	lastEntryID int64

	orders    map[string]*model.SalesOrder
	codes     map[int64]string
	orderCode int64
}

// NewMemoryRepository создаёт пустое хранилище в памяти.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		clients: make(map[string]*model.Client),
		orders:  make(map[string]*model.SalesOrder),
		codes:   make(map[int64]string),
	}
}

// Close ничего не делает и нужен для соответствия интерфейсу хранилища.
func (r *MemoryRepository) Close() error {
	return nil
}

// CreateClient регистрирует нового клиента с нулевым балансом.
func (r *MemoryRepository) CreateClient(ctx context.Context, c model.Client) error {
	if err := ctx.Err(); err != nil {
		return storeError("create client", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[c.ID]; ok {
		return fmt.Errorf("%w: client %s", model.ErrAlreadyExists, c.ID)
	}
	for _, existing := range r.clients {
		if existing.Document == c.Document {
			return fmt.Errorf("%w: document %s", model.ErrAlreadyExists, c.Document)
		}
	}

	c.Balance = 0
	r.clients[c.ID] = &c
	r.clientOrder = append(r.clientOrder, c.ID)
	return nil
}

// GetClient возвращает клиента по идентификатору.
func (r *MemoryRepository) GetClient(ctx context.Context, id string) (*model.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeError("get client", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[id]
	if !ok {
		return nil, fmt.Errorf("%w: client %s", model.ErrNotFound, id)
	}
	cp := *c
	return &cp, nil
}

// ListClients возвращает всех клиентов в порядке регистрации.
func (r *MemoryRepository) ListClients(ctx context.Context) ([]model.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeError("select clients", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	res := make([]model.Client, 0, len(r.clientOrder))
	for _, id := range r.clientOrder {
		res = append(res, *r.clients[id])
	}
	return res, nil
}

// ApplyOperation добавляет запись в журнал и обновляет баланс клиента под одной блокировкой.
func (r *MemoryRepository) ApplyOperation(ctx context.Context, entry model.LedgerEntry, allowNegative bool) (model.LedgerEntry, int64, error) {
	if err := ctx.Err(); err != nil {
		return model.LedgerEntry{}, 0, storeError("apply operation", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[entry.ClientID]
	if !ok {
		return model.LedgerEntry{}, 0, fmt.Errorf("%w: client %s", model.ErrNotFound, entry.ClientID)
	}

	newBalance, err := money.Add(c.Balance, entry.Type.Signed(entry.Amount))
	if err != nil {
		return model.LedgerEntry{}, 0, fmt.Errorf("%w: %w", model.ErrBalanceOverflow, err)
	}
	if newBalance < 0 && !allowNegative {
		return model.LedgerEntry{}, 0, model.ErrInsufficientBalance
	}

	if entry.ActorName == "" {
		entry.ActorName = c.Name
	}
	r.lastEntryID++
	entry.ID = r.lastEntryID

	r.operations = append(r.operations, entry)
	c.Balance = newBalance

	return entry, newBalance, nil
}

// ListOperations возвращает журнал операций клиента, начиная с самых новых.
func (r *MemoryRepository) ListOperations(ctx context.Context, clientID string) ([]model.LedgerEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeError("select operations", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[clientID]; !ok {
		return nil, fmt.Errorf("%w: client %s", model.ErrNotFound, clientID)
	}

	var res []model.LedgerEntry
	for _, e := range r.operations {
		if e.ClientID == clientID {
			res = append(res, e)
		}
	}

	slices.SortStableFunc(res, func(a, b model.LedgerEntry) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		}
		return 0
	})

	return res, nil
}

// NextOrderCode атомарно увеличивает счётчик кодов заказов и возвращает новое значение.
func (r *MemoryRepository) NextOrderCode(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, storeError("next order code", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.orderCode++
	return r.orderCode, nil
}

// CreateOrder сохраняет новый заказ.
func (r *MemoryRepository) CreateOrder(ctx context.Context, o model.SalesOrder) error {
	if err := ctx.Err(); err != nil {
		return storeError("insert order", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.codes[o.Code]; ok {
		return fmt.Errorf("%w: order code %d already taken", model.ErrRaceCondition, o.Code)
	}
	if _, ok := r.orders[o.ID]; ok {
		return fmt.Errorf("%w: order %s already stored", model.ErrRaceCondition, o.ID)
	}

	cp := cloneOrder(o)
	r.orders[o.ID] = &cp
	r.codes[o.Code] = o.ID
	if o.Code > r.orderCode {
		r.orderCode = o.Code
	}
	return nil
}

// GetOrder возвращает заказ по идентификатору.
func (r *MemoryRepository) GetOrder(ctx context.Context, id string) (*model.SalesOrder, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeError("get order", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", model.ErrNotFound, id)
	}
	cp := cloneOrder(*o)
	return &cp, nil
}

// ListOrders возвращает все заказы, начиная с последнего кода.
func (r *MemoryRepository) ListOrders(ctx context.Context) ([]model.SalesOrder, error) {
	return r.listOrders(ctx, func(model.SalesOrder) bool { return true })
}

// ListOrdersByClient возвращает заказы клиента, начиная с последнего кода.
func (r *MemoryRepository) ListOrdersByClient(ctx context.Context, clientID string) ([]model.SalesOrder, error) {
	return r.listOrders(ctx, func(o model.SalesOrder) bool { return o.ClientID == clientID })
}

func (r *MemoryRepository) listOrders(ctx context.Context, keep func(model.SalesOrder) bool) ([]model.SalesOrder, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeError("select orders", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var res []model.SalesOrder
	for _, o := range r.orders {
		if keep(*o) {
			res = append(res, cloneOrder(*o))
		}
	}

	slices.SortFunc(res, func(a, b model.SalesOrder) int {
		switch {
		case a.Code > b.Code:
			return -1
		case a.Code < b.Code:
			return 1
		}
		return 0
	})

	return res, nil
}

// AdvanceOrderStatus переводит заказ на следующий статус. Для заказа в конечном статусе запись не выполняется.
func (r *MemoryRepository) AdvanceOrderStatus(ctx context.Context, id string, now time.Time) (model.OrderStatus, error) {
	if err := ctx.Err(); err != nil {
		return 0, storeError("advance order status", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return 0, fmt.Errorf("%w: order %s", model.ErrNotFound, id)
	}
	if o.Status.Terminal() {
		return o.Status, model.ErrStatusTerminal
	}

	o.Status++
	o.UpdatedAt = now
	return o.Status, nil
}

func cloneOrder(o model.SalesOrder) model.SalesOrder {
	o.Items = slices.Clone(o.Items)
	o.PaymentMethods = slices.Clone(o.PaymentMethods)
	for i, item := range o.Items {
		if item.UnitPrice != nil {
			p := *item.UnitPrice
			o.Items[i].UnitPrice = &p
		}
	}
	return o
}
