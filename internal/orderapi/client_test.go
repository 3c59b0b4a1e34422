package orderapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mmeshcher/ordermart/internal/model"
)

func testOrder() model.SalesOrder {
	price := int64(1000)
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return model.SalesOrder{
		ID:       "o1",
		Code:     42,
		Kind:     model.OrderKindOrder,
		ClientID: "c1",
		Client:   model.ClientSnapshot{Name: "Maria Silva", Document: "52998224725"},
		Items: []model.OrderItem{
			{ProductID: "p1", Name: "Mesa", UnitPrice: &price, Quantity: 3},
			{ProductID: "p2", Name: "Brinde", Quantity: 1},
		},
		PaymentMethods: []model.PaymentMethod{{MethodID: "pix", InstallmentCount: 1, Amount: 3000}},
		Status:         model.OrderStatusOpen,
		CreatedAt:      at,
		UpdatedAt:      at,
	}
}

func TestSubmitOrder_OK(t *testing.T) {
	var got OrderPayload
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/orders" {
			t.Errorf("path = %s, want /orders", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %q, want application/json", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer ts.Close()

	client := NewClient(ts.URL + "/")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := client.SubmitOrder(ctx, NewPayload(testOrder(), 3000)); err != nil {
		t.Fatalf("SubmitOrder error: %v", err)
	}

	if got.OrderCode != 42 || got.Status != 1 || got.Client.Name != "Maria Silva" {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if got.Total != "30.00" {
		t.Fatalf("total = %q, want 30.00", got.Total)
	}
	if len(got.Items) != 2 || got.Items[0].UnitPrice == nil || *got.Items[0].UnitPrice != "10.00" {
		t.Fatalf("unexpected items: %+v", got.Items)
	}
	if got.Items[1].UnitPrice != nil {
		t.Fatalf("missing price must be sent as null, got %q", *got.Items[1].UnitPrice)
	}
	if got.CreatedAt != "2024-03-01T12:00:00Z" {
		t.Fatalf("created_at = %q", got.CreatedAt)
	}
}

func TestSubmitOrder_Rejected(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	err := client.SubmitOrder(context.Background(), NewPayload(testOrder(), 3000))
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
}

func TestSubmitOrder_NotConfigured(t *testing.T) {
	var client *Client

	if err := client.SubmitOrder(context.Background(), OrderPayload{}); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if err := NewClient("").SubmitOrder(context.Background(), OrderPayload{}); err == nil {
		t.Fatalf("expected error for empty address")
	}
}

func TestNewClient_AddsScheme(t *testing.T) {
	client := NewClient("orders.local:8081/")
	if client.baseURL != "http://orders.local:8081" {
		t.Fatalf("baseURL = %q, want http://orders.local:8081", client.baseURL)
	}
}
