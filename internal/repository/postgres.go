// Package repository содержит реализации хранилища клиентов, журнала операций и заказов.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/ordermart/internal/model"
	"github.com/mmeshcher/ordermart/internal/money"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const orderCodeCounter = "order_code"

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

var retryDelays = []time.Duration{100 * time.Millisecond, 300 * time.Millisecond, 500 * time.Millisecond}

// withRetry повторяет транзакцию, прерванную конфликтом сериализации или дедлоком.
// Ошибки соединения не повторяются: вызывающий повторяет операцию целиком.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for i := 0; i <= len(retryDelays); i++ {
		err = fn()
		if err == nil || !isRetryable(err) {
			return err
		}
		if i == len(retryDelays) {
			break
		}

		timer := time.NewTimer(retryDelays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return storeError("retry transaction", ctx.Err())
		case <-timer.C:
		}
	}
	return fmt.Errorf("retry transaction: %w: %w", model.ErrStoreUnavailable, err)
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}
	return false
}

func isConnectionError(err error) bool {
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if pgconn.Timeout(err) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection reset by peer") ||
		strings.Contains(msg, "closed pool")
}

// storeError оборачивает ошибку драйвера, помечая транспортные сбои как ErrStoreUnavailable.
func storeError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || isConnectionError(err) {
		return fmt.Errorf("%s: %w: %w", op, model.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateClient регистрирует нового клиента с нулевым балансом.
func (r *PostgresRepository) CreateClient(ctx context.Context, c model.Client) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO clients (id, name, document, email, phone, balance, created_at)
		 VALUES ($1, $2, $3, $4, $5, 0, $6)`,
		c.ID, c.Name, c.Document, c.Email, c.Phone, c.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: client %s", model.ErrAlreadyExists, c.ID)
		}
		return storeError("create client", err)
	}
	return nil
}

const clientColumns = `id, name, document, email, phone, balance, created_at`

func scanClient(row pgx.Row) (model.Client, error) {
	var c model.Client
	err := row.Scan(&c.ID, &c.Name, &c.Document, &c.Email, &c.Phone, &c.Balance, &c.CreatedAt)
	return c, err
}

// GetClient возвращает клиента по идентификатору.
func (r *PostgresRepository) GetClient(ctx context.Context, id string) (*model.Client, error) {
	c, err := scanClient(r.pool.QueryRow(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: client %s", model.ErrNotFound, id)
		}
		return nil, storeError("get client", err)
	}
	return &c, nil
}

// ListClients возвращает всех клиентов в порядке регистрации.
func (r *PostgresRepository) ListClients(ctx context.Context) ([]model.Client, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+clientColumns+` FROM clients ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, storeError("select clients", err)
	}
	defer rows.Close()

	var res []model.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		res = append(res, c)
	}

	if err := rows.Err(); err != nil {
		return nil, storeError("rows error", err)
	}

	return res, nil
}

// ApplyOperation добавляет запись в журнал и обновляет баланс клиента в одной транзакции.
// Строка клиента блокируется, чтобы параллельные операции не теряли обновления баланса.
func (r *PostgresRepository) ApplyOperation(ctx context.Context, entry model.LedgerEntry, allowNegative bool) (model.LedgerEntry, int64, error) {
	var (
		stored     model.LedgerEntry
		newBalance int64
	)

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return storeError("begin tx", err)
		}
		defer tx.Rollback(ctx)

		var (
			name    string
			balance int64
		)
		err = tx.QueryRow(ctx,
			`SELECT name, balance FROM clients WHERE id = $1 FOR UPDATE`,
			entry.ClientID,
		).Scan(&name, &balance)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: client %s", model.ErrNotFound, entry.ClientID)
			}
			return storeError("lock client for update", err)
		}

		newBalance, err = money.Add(balance, entry.Type.Signed(entry.Amount))
		if err != nil {
			return fmt.Errorf("%w: %w", model.ErrBalanceOverflow, err)
		}
		if newBalance < 0 && !allowNegative {
			return model.ErrInsufficientBalance
		}

		stored = entry
		if stored.ActorName == "" {
			stored.ActorName = name
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO operations (client_id, operation_type, amount, actor_name, created_at)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id`,
			stored.ClientID, stored.Type.StoredCode(), stored.Amount, stored.ActorName, stored.CreatedAt,
		).Scan(&stored.ID)
		if err != nil {
			return storeError("insert operation", err)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE clients SET balance = $2 WHERE id = $1`,
			entry.ClientID, newBalance,
		); err != nil {
			return storeError("update balance", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return storeError("commit tx", err)
		}
		return nil
	})
	if err != nil {
		return model.LedgerEntry{}, 0, err
	}

	return stored, newBalance, nil
}

// ListOperations возвращает журнал операций клиента, начиная с самых новых.
func (r *PostgresRepository) ListOperations(ctx context.Context, clientID string) ([]model.LedgerEntry, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM clients WHERE id = $1)`, clientID,
	).Scan(&exists); err != nil {
		return nil, storeError("check client", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: client %s", model.ErrNotFound, clientID)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, client_id, operation_type, amount, actor_name, created_at
		 FROM operations
		 WHERE client_id = $1
		 ORDER BY created_at DESC, id DESC`,
		clientID,
	)
	if err != nil {
		return nil, storeError("select operations", err)
	}
	defer rows.Close()

	var res []model.LedgerEntry
	for rows.Next() {
		var (
			e    model.LedgerEntry
			code string
		)
		if err := rows.Scan(&e.ID, &e.ClientID, &code, &e.Amount, &e.ActorName, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}

		opType, ok := model.OperationTypeFromStored(code)
		if !ok {
			return nil, fmt.Errorf("scan operation %d: unknown operation type %q", e.ID, code)
		}
		e.Type = opType

		res = append(res, e)
	}

	if err := rows.Err(); err != nil {
		return nil, storeError("rows error", err)
	}

	return res, nil
}
