package service

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/mmeshcher/orderdesk/internal/validation"
)

const trackingModulus = 100_000_000_000 // 10^TrackingDigits

func newID() string {
	return ulid.Make().String()
}

// newTrackingID формирует публичный номер заказа вида ORD-YYYYMMDD-XXXXXX.
func newTrackingID(now time.Time) string {
	id := ulid.Make().String()
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102"), id[len(id)-6:])
}

// trackingNumberGenerator возвращает генератор трек-номеров с заданным префиксом перевозчика.
// Цифры берутся из случайной части ULID, последняя цифра контрольная.
func trackingNumberGenerator(prefix string) func() string {
	return func() string {
		entropy := ulid.Make().Entropy()
		n := binary.BigEndian.Uint64(entropy[:8]) % trackingModulus
		digits := fmt.Sprintf("%0*d", validation.TrackingDigits, n)

		check, ok := validation.LuhnCheckDigit(digits)
		if !ok {
			return ""
		}
		return prefix + digits + string(check)
	}
}
