package model

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation возвращается при некорректных входных данных.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound возвращается, если клиент или заказ не найден.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists возвращается при повторной регистрации клиента.
	ErrAlreadyExists = errors.New("already exists")
	// ErrStoreUnavailable возвращается при недоступности хранилища или истечении таймаута.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrRaceCondition возвращается, если параллельная запись нарушила инвариант.
	ErrRaceCondition = errors.New("race condition")

	// ErrInsufficientBalance возвращается при списании суммы, превышающей баланс.
	ErrInsufficientBalance = fmt.Errorf("%w: insufficient balance", ErrValidation)
	// ErrBalanceOverflow возвращается, если новый баланс не помещается в int64.
	ErrBalanceOverflow = fmt.Errorf("%w: balance out of range", ErrValidation)
	// ErrStatusTerminal возвращается при попытке продвинуть заказ в конечном статусе.
	ErrStatusTerminal = fmt.Errorf("%w: order status is terminal", ErrValidation)
)
