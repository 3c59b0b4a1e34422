// Package orderapi предоставляет клиент внешнего API приёма заказов.
package orderapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mmeshcher/ordermart/internal/model"
	"github.com/mmeshcher/ordermart/internal/money"
)

// ErrRejected возвращается, если API ответило статусом вне диапазона 2xx.
var ErrRejected = errors.New("order rejected by order API")

// Client инкапсулирует HTTP-взаимодействие с API приёма заказов.
type Client struct {
	baseURL    string
	httpClient *resty.Client
}

// OrderPayload описывает тело запроса на приём заказа.
type OrderPayload struct {
	ID             string           `json:"id"`
	OrderCode      int64            `json:"order_code"`
	Kind           string           `json:"kind"`
	ClientID       string           `json:"client_id"`
	Client         ClientPayload    `json:"cliente"`
	Items          []ItemPayload    `json:"items"`
	PaymentMethods []PaymentPayload `json:"payment_methods"`
	Status         int              `json:"status_order"`
	Total          string           `json:"total"`
	CreatedAt      string           `json:"created_at"`
	UpdatedAt      string           `json:"updated_at"`
}

// ClientPayload содержит снимок данных клиента.
type ClientPayload struct {
	Name     string `json:"name"`
	Document string `json:"document"`
	Email    string `json:"email"`
}

// ItemPayload описывает позицию заказа. Отсутствующая цена передаётся как null.
type ItemPayload struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	UnitPrice *string `json:"unit_price"`
	Quantity  int64   `json:"quantity"`
	Category  string  `json:"category,omitempty"`
}

// PaymentPayload описывает способ оплаты.
type PaymentPayload struct {
	MethodID         string `json:"method_id"`
	InstallmentCount int    `json:"installment_count"`
	Amount           string `json:"amount"`
}

// NewClient создаёт HTTP-клиент для обращения к API приёма заказов по указанному адресу.
func NewClient(baseURL string) *Client {
	base := strings.TrimRight(baseURL, "/")
	if base != "" && !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	return &Client{
		baseURL: base,
		httpClient: resty.New().
			SetBaseURL(base).
			SetTimeout(5*time.Second).
			SetHeader("Content-Type", "application/json"),
	}
}

// NewPayload строит тело запроса из заказа. total передаётся в копейках.
func NewPayload(o model.SalesOrder, total int64) OrderPayload {
	p := OrderPayload{
		ID:        o.ID,
		OrderCode: o.Code,
		Kind:      string(o.Kind),
		ClientID:  o.ClientID,
		Client: ClientPayload{
			Name:     o.Client.Name,
			Document: o.Client.Document,
			Email:    o.Client.Email,
		},
		Items:          make([]ItemPayload, 0, len(o.Items)),
		PaymentMethods: make([]PaymentPayload, 0, len(o.PaymentMethods)),
		Status:         int(o.Status),
		Total:          money.Format(total),
		CreatedAt:      o.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      o.UpdatedAt.UTC().Format(time.RFC3339),
	}

	for _, it := range o.Items {
		item := ItemPayload{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			Category:  it.Category,
		}
		if it.UnitPrice != nil {
			price := money.Format(*it.UnitPrice)
			item.UnitPrice = &price
		}
		p.Items = append(p.Items, item)
	}

	for _, pm := range o.PaymentMethods {
		p.PaymentMethods = append(p.PaymentMethods, PaymentPayload{
			MethodID:         pm.MethodID,
			InstallmentCount: pm.InstallmentCount,
			Amount:           money.Format(pm.Amount),
		})
	}

	return p
}

// SubmitOrder отправляет заказ во внешнее API.
func (c *Client) SubmitOrder(ctx context.Context, payload OrderPayload) error {
	if c == nil || c.baseURL == "" {
		return fmt.Errorf("order API client not configured")
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(payload).
		Post("/orders")
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode())
	}

	return nil
}
