package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/ordermart/internal/model"
	"github.com/mmeshcher/ordermart/internal/money"
	"github.com/mmeshcher/ordermart/internal/validation"
)

// ApplyCreditOperation начисляет или списывает сумму с кредитного счёта клиента и
// добавляет запись в журнал. Запись и новый баланс сохраняются атомарно.
// При ошибке валидации хранилище не вызывается.
func (s *Service) ApplyCreditOperation(
	ctx context.Context,
	clientID string,
	opType model.OperationType,
	amount decimal.Decimal,
	actorName string,
) (model.LedgerEntry, int64, error) {
	cents, err := s.validateOperation(clientID, opType, amount)
	if err != nil {
		s.metrics.RecordLedgerOperation(opType, err)
		return model.LedgerEntry{}, 0, err
	}

	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	entry, balance, err := s.repo.ApplyOperation(ctx, model.LedgerEntry{
		ClientID:  clientID,
		Type:      opType,
		Amount:    cents,
		ActorName: strings.TrimSpace(actorName),
		CreatedAt: s.now(),
	}, s.allowNegative)
	if err != nil {
		err = storeFailure(err)
		s.metrics.RecordLedgerOperation(opType, err)
		return model.LedgerEntry{}, 0, err
	}

	s.metrics.RecordLedgerOperation(opType, nil)
	return entry, balance, nil
}

func (s *Service) validateOperation(clientID string, opType model.OperationType, amount decimal.Decimal) (int64, error) {
	if strings.TrimSpace(clientID) == "" {
		return 0, validationError("client id is required")
	}
	if !opType.Valid() {
		return 0, validationError("unknown operation type %q", opType)
	}

	cents, err := money.FromDecimal(amount)
	if err != nil {
		return 0, validationError("%v", err)
	}
	if cents <= 0 {
		return 0, validationError("amount must be positive, got %s", money.Format(cents))
	}
	if cents < s.minAmount {
		return 0, validationError("amount %s is below minimum %s", money.Format(cents), money.Format(s.minAmount))
	}

	return cents, nil
}

// ListOperations возвращает журнал операций клиента, начиная с самых новых.
func (s *Service) ListOperations(ctx context.Context, clientID string) ([]model.LedgerEntry, error) {
	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	entries, err := s.repo.ListOperations(ctx, clientID)
	if err != nil {
		return nil, storeFailure(err)
	}
	return entries, nil
}

// GetClient возвращает клиента по идентификатору.
func (s *Service) GetClient(ctx context.Context, id string) (*model.Client, error) {
	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	c, err := s.repo.GetClient(ctx, id)
	if err != nil {
		return nil, storeFailure(err)
	}
	return c, nil
}

// ListClients возвращает клиентов, подходящих под строку поиска.
func (s *Service) ListClients(ctx context.Context, query string) ([]model.Client, error) {
	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	clients, err := s.repo.ListClients(ctx)
	if err != nil {
		return nil, storeFailure(err)
	}
	return FilterClients(clients, query), nil
}

// RegisterClient регистрирует клиента с нулевым балансом.
// Пустой идентификатор заменяется сгенерированным.
func (s *Service) RegisterClient(ctx context.Context, c model.Client) (*model.Client, error) {
	c.ID = strings.TrimSpace(c.ID)
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)
	c.Phone = strings.TrimSpace(c.Phone)

	if c.Name == "" {
		return nil, validationError("client name is required")
	}
	if !validation.IsValidDocument(c.Document) {
		return nil, validationError("invalid document %q", c.Document)
	}
	c.Document = validation.NormalizeDocument(c.Document)

	if c.ID == "" {
		c.ID = s.newID()
	}
	c.Balance = 0
	c.CreatedAt = s.now()

	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	if err := s.repo.CreateClient(ctx, c); err != nil {
		return nil, storeFailure(err)
	}
	return &c, nil
}
