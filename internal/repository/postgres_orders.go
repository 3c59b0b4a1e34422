package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mmeshcher/ordermart/internal/model"
)

// NextOrderCode атомарно увеличивает счётчик кодов заказов и возвращает новое значение.
func (r *PostgresRepository) NextOrderCode(ctx context.Context) (int64, error) {
	var code int64
	err := r.pool.QueryRow(ctx,
		`UPDATE counters SET value = value + 1 WHERE name = $1 RETURNING value`,
		orderCodeCounter,
	).Scan(&code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("order code counter is missing")
		}
		return 0, storeError("next order code", err)
	}
	return code, nil
}

// CreateOrder сохраняет новый заказ.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o model.SalesOrder) error {
	client, err := json.Marshal(o.Client)
	if err != nil {
		return fmt.Errorf("marshal client snapshot: %w", err)
	}
	items, err := json.Marshal(nonNilItems(o.Items))
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}
	payments, err := json.Marshal(nonNilPayments(o.PaymentMethods))
	if err != nil {
		return fmt.Errorf("marshal payment methods: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO sales_orders
		 (id, order_code, kind, client_id, client, items, payment_methods, status_order, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		o.ID, o.Code, string(o.Kind), o.ClientID, client, items, payments, int(o.Status), o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: order code %d already taken", model.ErrRaceCondition, o.Code)
		}
		return storeError("insert order", err)
	}
	return nil
}

const orderColumns = `id, order_code, kind, client_id, client, items, payment_methods, status_order, created_at, updated_at`

func scanOrder(row pgx.Row) (model.SalesOrder, error) {
	var (
		o                       model.SalesOrder
		kind                    string
		status                  int
		client, items, payments []byte
	)
	if err := row.Scan(&o.ID, &o.Code, &kind, &o.ClientID, &client, &items, &payments, &status, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return o, err
	}

	o.Kind = model.OrderKind(kind)
	o.Status = model.OrderStatus(status)

	if err := json.Unmarshal(client, &o.Client); err != nil {
		return o, fmt.Errorf("unmarshal client snapshot: %w", err)
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return o, fmt.Errorf("unmarshal items: %w", err)
	}
	if err := json.Unmarshal(payments, &o.PaymentMethods); err != nil {
		return o, fmt.Errorf("unmarshal payment methods: %w", err)
	}

	return o, nil
}

// GetOrder возвращает заказ по идентификатору.
func (r *PostgresRepository) GetOrder(ctx context.Context, id string) (*model.SalesOrder, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM sales_orders WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: order %s", model.ErrNotFound, id)
		}
		return nil, storeError("get order", err)
	}
	return &o, nil
}

// ListOrders возвращает все заказы, начиная с последнего кода.
func (r *PostgresRepository) ListOrders(ctx context.Context) ([]model.SalesOrder, error) {
	return r.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM sales_orders ORDER BY order_code DESC`,
	)
}

// ListOrdersByClient возвращает заказы клиента, начиная с последнего кода.
func (r *PostgresRepository) ListOrdersByClient(ctx context.Context, clientID string) ([]model.SalesOrder, error) {
	return r.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM sales_orders WHERE client_id = $1 ORDER BY order_code DESC`,
		clientID,
	)
}

func (r *PostgresRepository) queryOrders(ctx context.Context, query string, args ...any) ([]model.SalesOrder, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storeError("select orders", err)
	}
	defer rows.Close()

	var res []model.SalesOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		res = append(res, o)
	}

	if err := rows.Err(); err != nil {
		return nil, storeError("rows error", err)
	}

	return res, nil
}

// AdvanceOrderStatus переводит заказ на следующий статус одним условным UPDATE.
// Для заказа в конечном статусе запись не выполняется.
func (r *PostgresRepository) AdvanceOrderStatus(ctx context.Context, id string, now time.Time) (model.OrderStatus, error) {
	var status int
	err := r.pool.QueryRow(ctx,
		`UPDATE sales_orders
		 SET status_order = status_order + 1, updated_at = $2
		 WHERE id = $1 AND status_order < $3
		 RETURNING status_order`,
		id, now, int(model.OrderStatusDelivered),
	).Scan(&status)
	if err == nil {
		return model.OrderStatus(status), nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, storeError("advance order status", err)
	}

	err = r.pool.QueryRow(ctx,
		`SELECT status_order FROM sales_orders WHERE id = $1`, id,
	).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: order %s", model.ErrNotFound, id)
		}
		return 0, storeError("get order status", err)
	}

	return model.OrderStatus(status), model.ErrStatusTerminal
}

func nonNilItems(items []model.OrderItem) []model.OrderItem {
	if items == nil {
		return []model.OrderItem{}
	}
	return items
}

func nonNilPayments(p []model.PaymentMethod) []model.PaymentMethod {
	if p == nil {
		return []model.PaymentMethod{}
	}
	return p
}
