// Package config содержит логику чтения конфигурации сервиса orderdesk.
package config

import (
	"flag"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/mmeshcher/orderdesk/internal/validation"
)

const (
	defaultRunAddress    = "localhost:8080"
	defaultCarrier       = "BlueDart"
	defaultCarrierPrefix = "BD"
	defaultTransitDays   = 3
	defaultInvoiceLocale = "en-IN"
)

// Config содержит параметры конфигурации сервиса orderdesk.
type Config struct {
	RunAddress       string `env:"RUN_ADDRESS"`
	DatabaseURI      string `env:"DATABASE_URI"`
	AuthSecret       string `env:"AUTH_SECRET"`
	NotifyWebhookURL string `env:"NOTIFY_WEBHOOK_URL"`
	RedisAddr        string `env:"REDIS_ADDR"`
	DefaultCarrier   string `env:"DEFAULT_CARRIER"`
	CarrierPrefix    string `env:"CARRIER_PREFIX"`
	TransitDays      int    `env:"TRANSIT_DAYS"`
	InvoiceLocale    string `env:"INVOICE_LOCALE"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	envCfg := Config{}
	if err := env.Parse(&envCfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg := &Config{}
	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.AuthSecret, "s", "", "HS256 secret for admin bearer tokens")
	flag.StringVar(&cfg.NotifyWebhookURL, "w", "", "notification webhook URL")
	flag.StringVar(&cfg.RedisAddr, "redis", "", "redis address for notification dedup")
	flag.StringVar(&cfg.DefaultCarrier, "carrier", defaultCarrier, "default shipping carrier")
	flag.StringVar(&cfg.CarrierPrefix, "carrier-prefix", defaultCarrierPrefix, "tracking number prefix")
	flag.IntVar(&cfg.TransitDays, "transit-days", defaultTransitDays, "estimated transit time in days")
	flag.StringVar(&cfg.InvoiceLocale, "locale", defaultInvoiceLocale, "default invoice locale")

	flag.Parse()

	override(&cfg.RunAddress, envCfg.RunAddress)
	override(&cfg.DatabaseURI, envCfg.DatabaseURI)
	override(&cfg.AuthSecret, envCfg.AuthSecret)
	override(&cfg.NotifyWebhookURL, envCfg.NotifyWebhookURL)
	override(&cfg.RedisAddr, envCfg.RedisAddr)
	override(&cfg.DefaultCarrier, envCfg.DefaultCarrier)
	override(&cfg.CarrierPrefix, envCfg.CarrierPrefix)
	override(&cfg.InvoiceLocale, envCfg.InvoiceLocale)
	if envCfg.TransitDays != 0 {
		cfg.TransitDays = envCfg.TransitDays
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.TransitDays <= 0 {
		return nil, fmt.Errorf("transit days must be positive, got %d", cfg.TransitDays)
	}

	// Нулевые цифры с нулевой контрольной образуют корректный номер, поэтому
	// проверка отвергает только префикс, с которым номера не пройдут валидацию.
	sample := cfg.CarrierPrefix + strings.Repeat("0", validation.TrackingDigits+1)
	if !validation.IsValidTrackingNumber(sample) {
		return nil, fmt.Errorf("carrier prefix %q must consist of uppercase latin letters", cfg.CarrierPrefix)
	}

	return cfg, nil
}

func override(dst *string, envValue string) {
	if envValue != "" {
		*dst = envValue
	}
}
