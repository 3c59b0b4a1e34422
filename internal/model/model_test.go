package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOperationType(t *testing.T) {
	tests := []struct {
		opType OperationType
		valid  bool
		signed int64
		stored string
	}{
		{opType: OperationCredit, valid: true, signed: 500, stored: "sum"},
		{opType: OperationDebit, valid: true, signed: -500, stored: "sub"},
		{opType: OperationType("refund"), valid: false},
	}

	for _, tt := range tests {
		t.Run(string(tt.opType), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.opType.Valid())
			if !tt.valid {
				return
			}
			assert.Equal(t, tt.signed, tt.opType.Signed(500))
			assert.Equal(t, tt.stored, tt.opType.StoredCode())

			back, ok := OperationTypeFromStored(tt.stored)
			assert.True(t, ok)
			assert.Equal(t, tt.opType, back)
		})
	}

	_, ok := OperationTypeFromStored("credit")
	assert.False(t, ok)
}

func TestOrderStatus(t *testing.T) {
	assert.False(t, OrderStatus(0).Valid())
	assert.False(t, OrderStatus(7).Valid())
	assert.Equal(t, "unknown", OrderStatus(7).String())

	for s := OrderStatusOpen; s < OrderStatusDelivered; s++ {
		assert.True(t, s.Valid())
		assert.False(t, s.Terminal(), s.String())
	}
	assert.True(t, OrderStatusDelivered.Terminal())
	assert.Equal(t, "delivered", OrderStatusDelivered.String())
}

func TestDerivedErrors(t *testing.T) {
	assert.True(t, errors.Is(ErrInsufficientBalance, ErrValidation))
	assert.True(t, errors.Is(ErrStatusTerminal, ErrValidation))
	assert.True(t, errors.Is(ErrBalanceOverflow, ErrValidation))
	assert.False(t, errors.Is(ErrBalanceOverflow, ErrInsufficientBalance))
	assert.False(t, errors.Is(ErrNotFound, ErrValidation))
}
