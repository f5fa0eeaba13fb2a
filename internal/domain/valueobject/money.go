package valueobject

import (
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/p2p-desk/internal/pkg/apperror"
)

// TotalPlaces - точность отображения итоговой суммы сделки.
const TotalPlaces = 2

// Total вычисляет сумму сделки amount × price. Значение всегда считается заново,
// отдельно не хранится.
func Total(amount, price decimal.Decimal) decimal.Decimal {
	return amount.Mul(price)
}

// FormatTotal форматирует сумму с двумя знаками после запятой ("150.00").
func FormatTotal(amount, price decimal.Decimal) string {
	return Total(amount, price).StringFixed(TotalPlaces)
}

// NewPositive разбирает положительное десятичное число из пользовательского ввода.
func NewPositive(field, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, apperror.New(apperror.ErrCodeValidation, field+": некорректное число")
	}
	if !d.IsPositive() {
		return decimal.Zero, apperror.New(apperror.ErrCodeValidation, field+": значение должно быть больше нуля")
	}
	return d, nil
}
