package lifecycle

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/mmeshcher/orderdesk/internal/model"
)

// ParseCurrency проверяет код валюты ISO 4217. Допускаются только валюты,
// дробная часть которых укладывается в model.MoneyScale знаков.
func ParseCurrency(code string) (string, error) {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", fmt.Errorf("%w: currency %q: %v", ErrInvalidInput, code, err)
	}
	if unit == (currency.Unit{}) {
		return "", fmt.Errorf("%w: currency %q is not a real currency", ErrInvalidInput, code)
	}
	if scale, _ := currency.Standard.Rounding(unit); scale != model.MoneyScale {
		return "", fmt.Errorf("%w: currency %s uses %d decimal places, only %d are supported",
			ErrInvalidInput, unit, scale, model.MoneyScale)
	}
	return unit.String(), nil
}

// checkMoney отклоняет суммы, которые нельзя сохранить в минимальных единицах без округления.
func checkMoney(field string, d decimal.Decimal) error {
	if !d.Equal(d.Truncate(model.MoneyScale)) {
		return fmt.Errorf("%w: %s %s has more than %d decimal places", ErrInvalidInput, field, d, model.MoneyScale)
	}
	return nil
}
