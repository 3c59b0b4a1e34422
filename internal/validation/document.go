// Package validation содержит функции валидации входных данных.
package validation

import (
	"strings"
	"unicode"
)

var (
	cnpjWeightsFirst  = []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	cnpjWeightsSecond = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

// NormalizeDocument удаляет из номера документа разделители форматирования.
func NormalizeDocument(document string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '-', '/', ' ':
			return -1
		}
		return r
	}, strings.TrimSpace(document))
}

// IsValidDocument проверяет номер CPF (11 цифр) или CNPJ (14 цифр) по контрольным разрядам.
func IsValidDocument(document string) bool {
	digits, ok := toDigits(NormalizeDocument(document))
	if !ok {
		return false
	}

	switch len(digits) {
	case 11:
		return validCPF(digits)
	case 14:
		return validCNPJ(digits)
	}
	return false
}

func toDigits(s string) ([]int, bool) {
	if s == "" {
		return nil, false
	}

	digits := make([]int, 0, len(s))
	for _, ch := range s {
		if !unicode.IsDigit(ch) || ch > '9' {
			return nil, false
		}
		digits = append(digits, int(ch-'0'))
	}
	return digits, true
}

// Документы из одинаковых цифр проходят проверку разрядов, но недействительны.
func allSame(digits []int) bool {
	for _, d := range digits[1:] {
		if d != digits[0] {
			return false
		}
	}
	return true
}

func validCPF(d []int) bool {
	if allSame(d) {
		return false
	}

	check := func(n int) int {
		sum := 0
		for i := 0; i < n; i++ {
			sum += d[i] * (n + 1 - i)
		}
		r := sum * 10 % 11
		if r == 10 {
			r = 0
		}
		return r
	}

	return check(9) == d[9] && check(10) == d[10]
}

func validCNPJ(d []int) bool {
	if allSame(d) {
		return false
	}

	check := func(weights []int) int {
		sum := 0
		for i, w := range weights {
			sum += d[i] * w
		}
		r := sum % 11
		if r < 2 {
			return 0
		}
		return 11 - r
	}

	return check(cnpjWeightsFirst) == d[12] && check(cnpjWeightsSecond) == d[13]
}
