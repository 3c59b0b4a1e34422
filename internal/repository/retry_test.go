package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/ordermart/internal/model"
)

func shortRetryDelays(t *testing.T) {
	t.Helper()

	saved := retryDelays
	retryDelays = []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}
	t.Cleanup(func() { retryDelays = saved })
}

func TestWithRetry(t *testing.T) {
	shortRetryDelays(t)

	serialization := &pgconn.PgError{Code: pgerrcode.SerializationFailure}
	deadlock := &pgconn.PgError{Code: pgerrcode.DeadlockDetected}
	unique := &pgconn.PgError{Code: pgerrcode.UniqueViolation}

	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantErr   error
		wantStore bool
	}{
		{name: "success", errs: []error{nil}, wantCalls: 1},
		{name: "recovers after conflict", errs: []error{serialization, deadlock, nil}, wantCalls: 3},
		{name: "exhausted", errs: []error{serialization, serialization, deadlock, serialization}, wantCalls: 4, wantErr: serialization, wantStore: true},
		{name: "not retryable", errs: []error{unique}, wantCalls: 1, wantErr: unique},
		{name: "domain error", errs: []error{model.ErrInsufficientBalance}, wantCalls: 1, wantErr: model.ErrInsufficientBalance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &PostgresRepository{}

			calls := 0
			err := r.withRetry(context.Background(), func() error {
				err := tt.errs[calls]
				calls++
				return err
			})

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.Equal(t, tt.wantStore, errors.Is(err, model.ErrStoreUnavailable))
		})
	}
}

func TestWithRetry_ContextCanceled(t *testing.T) {
	saved := retryDelays
	retryDelays = []time.Duration{time.Hour}
	t.Cleanup(func() { retryDelays = saved })

	ctx, cancel := context.WithCancel(context.Background())
	r := &PostgresRepository{}

	err := r.withRetry(ctx, func() error {
		cancel()
		return &pgconn.PgError{Code: pgerrcode.DeadlockDetected}
	})
	require.ErrorIs(t, err, model.ErrStoreUnavailable)
	require.ErrorIs(t, err, context.Canceled)
}
