// Package service реализует бизнес-логику сервиса ordermart: кредитный журнал клиентов
// и жизненный цикл заказов.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/ordermart/internal/metrics"
	"github.com/mmeshcher/ordermart/internal/model"
	"github.com/mmeshcher/ordermart/internal/orderapi"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
// Операции, меняющие баланс и статус, выполняются хранилищем атомарно.
type Repository interface {
	Close() error
	CreateClient(ctx context.Context, c model.Client) error
	GetClient(ctx context.Context, id string) (*model.Client, error)
	ListClients(ctx context.Context) ([]model.Client, error)
	ApplyOperation(ctx context.Context, entry model.LedgerEntry, allowNegative bool) (model.LedgerEntry, int64, error)
	ListOperations(ctx context.Context, clientID string) ([]model.LedgerEntry, error)
	NextOrderCode(ctx context.Context) (int64, error)
	CreateOrder(ctx context.Context, o model.SalesOrder) error
	GetOrder(ctx context.Context, id string) (*model.SalesOrder, error)
	ListOrders(ctx context.Context) ([]model.SalesOrder, error)
	ListOrdersByClient(ctx context.Context, clientID string) ([]model.SalesOrder, error)
	AdvanceOrderStatus(ctx context.Context, id string, now time.Time) (model.OrderStatus, error)
}

// OrderSubmitter отправляет оформленный заказ во внешнее API приёма заказов.
type OrderSubmitter interface {
	SubmitOrder(ctx context.Context, payload orderapi.OrderPayload) error
}

// Options содержит настраиваемые параметры сервиса.
type Options struct {
	// MinOperationAmount задаёт минимальную сумму операции по кредитному счёту в копейках.
	MinOperationAmount   int64
	AllowNegativeBalance bool
	// StoreTimeout ограничивает каждый вызов хранилища. Ноль отключает ограничение.
	StoreTimeout time.Duration
	Logger       *zap.Logger
	Metrics      *metrics.Metrics
	Now          func() time.Time
	NewID        func() string
}

// Service содержит бизнес-логику сервиса ordermart.
type Service struct {
	repo      Repository
	submitter OrderSubmitter

	minAmount     int64
	allowNegative bool
	storeTimeout  time.Duration

	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	newID   func() string
}

// NewService создаёт новый сервис с указанным хранилищем и клиентом API приёма заказов.
// submitter может быть nil: тогда заказы только сохраняются.
func NewService(repo Repository, submitter OrderSubmitter, opts Options) *Service {
	s := &Service{
		repo:          repo,
		submitter:     submitter,
		minAmount:     opts.MinOperationAmount,
		allowNegative: opts.AllowNegativeBalance,
		storeTimeout:  opts.StoreTimeout,
		logger:        opts.Logger,
		metrics:       opts.Metrics,
		now:           opts.Now,
		newID:         opts.NewID,
	}

	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}

	return s
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

func (s *Service) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.storeTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.storeTimeout)
}

// storeFailure помечает истечение таймаута или отмену как недоступность хранилища.
func storeFailure(err error) error {
	if errors.Is(err, model.ErrStoreUnavailable) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", model.ErrStoreUnavailable, err)
	}
	return err
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", model.ErrValidation, fmt.Sprintf(format, args...))
}
