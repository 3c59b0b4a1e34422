package service

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/ordermart/internal/model"
	"github.com/mmeshcher/ordermart/internal/orderapi"
)

type stubRepo struct {
	mu sync.Mutex

	block      bool
	applyErr   error
	advanceErr error
	status     model.OrderStatus

	applyCalls   int
	advanceCalls int
}

func (s *stubRepo) wait(ctx context.Context) error {
	if !s.block {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *stubRepo) Close() error { return nil }

func (s *stubRepo) CreateClient(ctx context.Context, c model.Client) error {
	return s.wait(ctx)
}

func (s *stubRepo) GetClient(ctx context.Context, id string) (*model.Client, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return nil, model.ErrNotFound
}

func (s *stubRepo) ListClients(ctx context.Context) ([]model.Client, error) {
	return nil, s.wait(ctx)
}

func (s *stubRepo) ApplyOperation(ctx context.Context, entry model.LedgerEntry, allowNegative bool) (model.LedgerEntry, int64, error) {
	s.mu.Lock()
	s.applyCalls++
	s.mu.Unlock()

	if err := s.wait(ctx); err != nil {
		return model.LedgerEntry{}, 0, err
	}
	if s.applyErr != nil {
		return model.LedgerEntry{}, 0, s.applyErr
	}
	return entry, entry.Type.Signed(entry.Amount), nil
}

func (s *stubRepo) ListOperations(ctx context.Context, clientID string) ([]model.LedgerEntry, error) {
	return nil, s.wait(ctx)
}

func (s *stubRepo) NextOrderCode(ctx context.Context) (int64, error) {
	return 0, s.wait(ctx)
}

func (s *stubRepo) CreateOrder(ctx context.Context, o model.SalesOrder) error {
	return s.wait(ctx)
}

func (s *stubRepo) GetOrder(ctx context.Context, id string) (*model.SalesOrder, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return nil, model.ErrNotFound
}

func (s *stubRepo) ListOrders(ctx context.Context) ([]model.SalesOrder, error) {
	return nil, s.wait(ctx)
}

func (s *stubRepo) ListOrdersByClient(ctx context.Context, clientID string) ([]model.SalesOrder, error) {
	return nil, s.wait(ctx)
}

func (s *stubRepo) AdvanceOrderStatus(ctx context.Context, id string, now time.Time) (model.OrderStatus, error) {
	s.mu.Lock()
	s.advanceCalls++
	s.mu.Unlock()

	if err := s.wait(ctx); err != nil {
		return 0, err
	}
	return s.status, s.advanceErr
}

type stubSubmitter struct {
	mu       sync.Mutex
	err      error
	payloads []orderapi.OrderPayload
}

func (s *stubSubmitter) SubmitOrder(ctx context.Context, payload orderapi.OrderPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.payloads = append(s.payloads, payload)
	return s.err
}

func price(cents int64) *int64 {
	return &cents
}

func testDraft(clientID string) model.SalesOrder {
	return model.SalesOrder{
		ClientID: clientID,
		Items: []model.OrderItem{
			{ProductID: "p1", Name: "Cadeira", UnitPrice: price(1000), Quantity: 2},
			{ProductID: "p2", Name: "Mesa", UnitPrice: price(500), Quantity: 4},
			{ProductID: "p3", Name: "Brinde", Quantity: 1},
		},
		PaymentMethods: []model.PaymentMethod{
			{MethodID: "pix", InstallmentCount: 1, Amount: 4000},
		},
	}
}

func TestSubmitOrder_StoresOpenOrderWithSnapshot(t *testing.T) {
	svc, repo := newMemoryService(t, Options{NewID: func() string { return "o1" }})
	registerTestClient(t, svc, "c1", "Maria Silva", "52998224725")

	order, err := svc.SubmitOrder(context.Background(), testDraft("c1"))
	require.NoError(t, err)

	assert.Equal(t, "o1", order.ID)
	assert.Equal(t, int64(1), order.Code)
	assert.Equal(t, model.OrderKindOrder, order.Kind)
	assert.Equal(t, model.OrderStatusOpen, order.Status)
	assert.Equal(t, "Maria Silva", order.Client.Name)
	assert.Equal(t, "52998224725", order.Client.Document)
	assert.Equal(t, testNow, order.CreatedAt)

	stored, err := repo.GetOrder(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, *order, *stored)
}

func TestSubmitOrder_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(o *model.SalesOrder)
	}{
		{name: "no client", mutate: func(o *model.SalesOrder) { o.ClientID = "" }},
		{name: "unknown kind", mutate: func(o *model.SalesOrder) { o.Kind = "invoice" }},
		{name: "no items", mutate: func(o *model.SalesOrder) { o.Items = nil }},
		{name: "zero quantity", mutate: func(o *model.SalesOrder) { o.Items[0].Quantity = 0 }},
		{name: "negative price", mutate: func(o *model.SalesOrder) { o.Items[1].UnitPrice = price(-1) }},
		{name: "blank product", mutate: func(o *model.SalesOrder) { o.Items[0].ProductID = " " }},
		{name: "no installments", mutate: func(o *model.SalesOrder) { o.PaymentMethods[0].InstallmentCount = 0 }},
		{name: "blank method", mutate: func(o *model.SalesOrder) { o.PaymentMethods[0].MethodID = "" }},
		{name: "line total overflows", mutate: func(o *model.SalesOrder) {
			o.Items[0].UnitPrice = price(4)
			o.Items[0].Quantity = math.MaxInt64/2 + 1
		}},
		{name: "order total overflows", mutate: func(o *model.SalesOrder) {
			o.Items[0].UnitPrice = price(1)
			o.Items[0].Quantity = math.MaxInt64
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newMemoryService(t, Options{})
			registerTestClient(t, svc, "c1", "Maria Silva", "52998224725")

			draft := testDraft("c1")
			tt.mutate(&draft)

			_, err := svc.SubmitOrder(context.Background(), draft)
			require.ErrorIs(t, err, model.ErrValidation)

			orders, err := repo.ListOrders(context.Background())
			require.NoError(t, err)
			assert.Empty(t, orders)
		})
	}
}

func TestSubmitOrder_UnknownClient(t *testing.T) {
	svc, _ := newMemoryService(t, Options{})

	_, err := svc.SubmitOrder(context.Background(), testDraft("missing"))
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestSubmitOrder_Forwarding(t *testing.T) {
	submitter := &stubSubmitter{}
	svc, _ := newMemoryService(t, Options{})
	svc.submitter = submitter
	registerTestClient(t, svc, "c1", "Maria Silva", "52998224725")

	draft := testDraft("c1")
	draft.Kind = model.OrderKindQuote
	order, err := svc.SubmitOrder(context.Background(), draft)
	require.NoError(t, err)

	require.Len(t, submitter.payloads, 1)
	payload := submitter.payloads[0]
	assert.Equal(t, order.Code, payload.OrderCode)
	assert.Equal(t, "quote", payload.Kind)
	assert.Equal(t, "40.00", payload.Total)
	assert.Nil(t, payload.Items[2].UnitPrice)
}

func TestSubmitOrder_OverflowIsNotForwarded(t *testing.T) {
	submitter := &stubSubmitter{}
	svc, _ := newMemoryService(t, Options{})
	svc.submitter = submitter
	registerTestClient(t, svc, "c1", "Maria Silva", "52998224725")

	draft := testDraft("c1")
	draft.Items[0].UnitPrice = price(4)
	draft.Items[0].Quantity = math.MaxInt64/2 + 1

	_, err := svc.SubmitOrder(context.Background(), draft)
	require.ErrorIs(t, err, model.ErrValidation)
	assert.Empty(t, submitter.payloads)

	code, err := svc.AssignNextOrderCode(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), code)
}

func TestSubmitOrder_ForwardFailureKeepsOrder(t *testing.T) {
	submitter := &stubSubmitter{err: orderapi.ErrRejected}
	svc, repo := newMemoryService(t, Options{})
	svc.submitter = submitter
	registerTestClient(t, svc, "c1", "Maria Silva", "52998224725")

	order, err := svc.SubmitOrder(context.Background(), testDraft("c1"))
	require.ErrorIs(t, err, ErrForwardFailed)
	require.ErrorIs(t, err, orderapi.ErrRejected)
	require.NotNil(t, order)

	stored, err := repo.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusOpen, stored.Status)
}

func TestAdvanceStatus_WalksLifecycle(t *testing.T) {
	svc, _ := newMemoryService(t, Options{NewID: func() string { return "o1" }})
	registerTestClient(t, svc, "c1", "Maria Silva", "52998224725")

	_, err := svc.SubmitOrder(context.Background(), testDraft("c1"))
	require.NoError(t, err)

	want := []model.OrderStatus{
		model.OrderStatusInProduction,
		model.OrderStatusReady,
		model.OrderStatusInvoiced,
		model.OrderStatusShipped,
		model.OrderStatusDelivered,
	}
	for _, w := range want {
		got, err := svc.AdvanceStatus(context.Background(), "o1")
		require.NoError(t, err)
		assert.Equal(t, w, got)
	}

	got, err := svc.AdvanceStatus(context.Background(), "o1")
	require.ErrorIs(t, err, model.ErrStatusTerminal)
	assert.Equal(t, model.OrderStatusDelivered, got)

	order, err := svc.GetOrder(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusDelivered, order.Status)
}

func TestAdvanceStatus_Errors(t *testing.T) {
	svc, _ := newMemoryService(t, Options{})

	_, err := svc.AdvanceStatus(context.Background(), "missing")
	require.ErrorIs(t, err, model.ErrNotFound)

	_, err = svc.AdvanceStatus(context.Background(), "")
	require.ErrorIs(t, err, model.ErrValidation)

	repo := &stubRepo{block: true}
	svc = NewService(repo, nil, Options{StoreTimeout: 20 * time.Millisecond})

	status, err := svc.AdvanceStatus(context.Background(), "o1")
	require.ErrorIs(t, err, model.ErrStoreUnavailable)
	assert.Zero(t, status)
	assert.Equal(t, 1, repo.advanceCalls)

	repo = &stubRepo{advanceErr: errors.New("connection reset by peer")}
	svc = NewService(repo, nil, Options{})

	_, err = svc.AdvanceStatus(context.Background(), "o1")
	require.Error(t, err)
}

func TestAssignNextOrderCode_Concurrent(t *testing.T) {
	svc, _ := newMemoryService(t, Options{})

	const n = 64
	codes := make([]int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			code, err := svc.AssignNextOrderCode(context.Background())
			assert.NoError(t, err)
			codes[i] = code
		}(i)
	}
	wg.Wait()

	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	for i, c := range codes {
		assert.Equal(t, int64(i+1), c)
	}
}

func TestListOrders_Filters(t *testing.T) {
	ids := []string{"o1", "o2", "o3"}
	next := 0
	svc, _ := newMemoryService(t, Options{NewID: func() string {
		id := ids[next%len(ids)]
		next++
		return id
	}})
	registerTestClient(t, svc, "c1", "Maria Silva", "52998224725")
	registerTestClient(t, svc, "c2", "Maria Souza", "11222333000181")

	for _, clientID := range []string{"c1", "c2", "c1"} {
		_, err := svc.SubmitOrder(context.Background(), testDraft(clientID))
		require.NoError(t, err)
	}
	_, err := svc.AdvanceStatus(context.Background(), "o3")
	require.NoError(t, err)

	orders, err := svc.ListOrders(context.Background(), 0, "")
	require.NoError(t, err)
	assert.Len(t, orders, 3)

	orders, err = svc.ListOrders(context.Background(), model.OrderStatusOpen, "Maria Silva")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "o1", orders[0].ID)

	orders, err = svc.ListOrders(context.Background(), 0, "Maria")
	require.NoError(t, err)
	assert.Empty(t, orders)

	orders, err = svc.ListClientOrders(context.Background(), "c1")
	require.NoError(t, err)
	assert.Len(t, orders, 2)
}
