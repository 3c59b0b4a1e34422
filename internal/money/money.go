// Package money переводит денежные суммы между десятичной записью и копейками.
package money

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount возвращается для сумм, которые нельзя представить в копейках.
var ErrInvalidAmount = errors.New("invalid amount")

// ErrOverflow возвращается, если результат арифметики над копейками не помещается в int64.
var ErrOverflow = errors.New("amount overflow")

const scale = 2

// Parse разбирает десятичную запись суммы ("50", "50.5", "50.50") в копейки.
func Parse(s string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return FromDecimal(d)
}

// FromDecimal переводит десятичную сумму в копейки. Доли копейки не допускаются.
func FromDecimal(d decimal.Decimal) (int64, error) {
	if !d.Equal(d.Truncate(scale)) {
		return 0, fmt.Errorf("%w: %s has more than %d fractional digits", ErrInvalidAmount, d.String(), scale)
	}

	cents := d.Shift(scale)
	if !cents.IsInteger() || cents.Cmp(decimal.NewFromInt(maxCents)) > 0 || cents.Cmp(decimal.NewFromInt(-maxCents)) < 0 {
		return 0, fmt.Errorf("%w: %s is out of range", ErrInvalidAmount, d.String())
	}

	return cents.IntPart(), nil
}

// Граница для одной суммы. Накопленные значения проверяются через Add и Mul.
const maxCents = int64(1) << 52

// ToDecimal переводит копейки в десятичную сумму.
func ToDecimal(cents int64) decimal.Decimal {
	return decimal.New(cents, -scale)
}

// Format возвращает сумму с двумя знаками после точки.
func Format(cents int64) string {
	return ToDecimal(cents).StringFixed(scale)
}

// Add складывает суммы в копейках с проверкой переполнения.
func Add(a, b int64) (int64, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, fmt.Errorf("%w: %d + %d", ErrOverflow, a, b)
	}
	return a + b, nil
}

// Mul умножает цену в копейках на неотрицательное количество с проверкой переполнения.
func Mul(cents, quantity int64) (int64, error) {
	if quantity < 0 {
		return 0, fmt.Errorf("%w: negative quantity %d", ErrInvalidAmount, quantity)
	}
	if quantity != 0 && (cents > math.MaxInt64/quantity || cents < math.MinInt64/quantity) {
		return 0, fmt.Errorf("%w: %d * %d", ErrOverflow, cents, quantity)
	}
	return cents * quantity, nil
}
