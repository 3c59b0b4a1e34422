package service

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"github.com/mmeshcher/ordermart/internal/model"
	"github.com/mmeshcher/ordermart/internal/money"
	"github.com/mmeshcher/ordermart/internal/validation"
)

// FilterClients отбирает клиентов, у которых имя или документ содержит query без учёта регистра.
// Пустой запрос возвращает исходный срез без изменений.
func FilterClients(clients []model.Client, query string) []model.Client {
	query = strings.TrimSpace(query)
	if query == "" {
		return clients
	}

	// Caser хранит состояние, поэтому создаётся на каждый вызов.
	fold := cases.Fold()
	q := fold.String(query)
	digits := validation.NormalizeDocument(query)
	if !onlyDigits(digits) {
		digits = ""
	}

	res := make([]model.Client, 0)
	for _, c := range clients {
		if strings.Contains(fold.String(c.Name), q) ||
			strings.Contains(fold.String(c.Document), q) ||
			(digits != "" && strings.Contains(c.Document, digits)) {
			res = append(res, c)
		}
	}
	return res
}

func onlyDigits(s string) bool {
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return s != ""
}

// FilterOrders отбирает заказы по статусу (0 означает любой) и имени клиента.
// Имя сравнивается точно, в отличие от поиска клиентов.
func FilterOrders(orders []model.SalesOrder, status model.OrderStatus, name string) []model.SalesOrder {
	res := make([]model.SalesOrder, 0, len(orders))
	for _, o := range orders {
		if status != 0 && o.Status != status {
			continue
		}
		if name != "" && o.Client.Name != name {
			continue
		}
		res = append(res, o)
	}
	return res
}

// OrderTotal возвращает сумму заказа в копейках. Позиции без цены считаются нулевыми.
// Если произведение или сумма не помещается в int64, возвращается ошибка валидации.
func OrderTotal(o model.SalesOrder) (int64, error) {
	var total int64
	for i, it := range o.Items {
		if it.UnitPrice == nil {
			continue
		}
		line, err := money.Mul(*it.UnitPrice, it.Quantity)
		if err != nil {
			return 0, fmt.Errorf("%w: item %d: %w", model.ErrValidation, i, err)
		}
		total, err = money.Add(total, line)
		if err != nil {
			return 0, fmt.Errorf("%w: order total: %w", model.ErrValidation, err)
		}
	}
	return total, nil
}
