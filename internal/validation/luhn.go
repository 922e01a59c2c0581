// Package validation содержит функции проверки трек-номеров отправлений.
package validation

import (
	"strings"
	"unicode"
)

// TrackingDigits задаёт количество цифр трек-номера без контрольной.
const TrackingDigits = 11

// IsValidTrackingNumber проверяет трек-номер вида <ПРЕФИКС><11 цифр><контрольная цифра>.
// Префикс состоит из заглавных латинских букв, контрольная цифра считается по алгоритму Луна.
func IsValidTrackingNumber(number string) bool {
	digits := strings.TrimLeftFunc(number, func(r rune) bool {
		return r >= 'A' && r <= 'Z'
	})
	if len(digits) != TrackingDigits+1 {
		return false
	}
	return isValidLuhn(digits)
}

// LuhnCheckDigit вычисляет контрольную цифру для строки из цифр.
func LuhnCheckDigit(digits string) (byte, bool) {
	sum, ok := luhnSum(digits, true)
	if !ok {
		return 0, false
	}
	return byte('0' + (10-sum%10)%10), true
}

func isValidLuhn(number string) bool {
	sum, ok := luhnSum(number, false)
	return ok && sum%10 == 0
}

// luhnSum складывает цифры справа налево, удваивая каждую вторую.
// doubleFirst удваивает самую правую цифру, что нужно при расчёте контрольной.
func luhnSum(digits string, doubleFirst bool) (int, bool) {
	if digits == "" {
		return 0, false
	}

	sum := 0
	double := doubleFirst

	for i := len(digits) - 1; i >= 0; i-- {
		ch := rune(digits[i])
		if !unicode.IsDigit(ch) {
			return 0, false
		}
		digit := int(ch - '0')
		if double {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		double = !double
	}

	return sum, true
}
