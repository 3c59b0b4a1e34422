// Package config содержит логику чтения конфигурации сервиса ordermart.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	defaultRunAddress         = "localhost:8080"
	defaultLogLevel           = "info"
	defaultMinOperationAmount = "1.00"
	defaultStoreTimeout       = 5 * time.Second
)

// Config содержит параметры конфигурации сервиса ordermart.
type Config struct {
	RunAddress           string        `env:"RUN_ADDRESS"`
	DatabaseURI          string        `env:"DATABASE_URI"`
	OrderAPIAddress      string        `env:"ORDER_API_ADDRESS"`
	AuthSecret           string        `env:"AUTH_SECRET"`
	LogLevel             string        `env:"LOG_LEVEL"`
	MinOperationAmount   string        `env:"MIN_OPERATION_AMOUNT"`
	StoreTimeout         time.Duration `env:"STORE_TIMEOUT"`
	AllowNegativeBalance bool          `env:"ALLOW_NEGATIVE_BALANCE"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Значения из окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	fromEnv := *cfg

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.OrderAPIAddress, "r", "", "order submission API address")
	flag.StringVar(&cfg.AuthSecret, "s", "", "secret for signing identity tokens")
	flag.StringVar(&cfg.LogLevel, "l", defaultLogLevel, "log level")
	flag.StringVar(&cfg.MinOperationAmount, "m", defaultMinOperationAmount, "minimum credit operation amount")
	flag.DurationVar(&cfg.StoreTimeout, "t", defaultStoreTimeout, "timeout for a single store call")

	flag.Parse()

	if fromEnv.RunAddress != "" {
		cfg.RunAddress = fromEnv.RunAddress
	}
	if fromEnv.DatabaseURI != "" {
		cfg.DatabaseURI = fromEnv.DatabaseURI
	}
	if fromEnv.OrderAPIAddress != "" {
		cfg.OrderAPIAddress = fromEnv.OrderAPIAddress
	}
	if fromEnv.AuthSecret != "" {
		cfg.AuthSecret = fromEnv.AuthSecret
	}
	if fromEnv.LogLevel != "" {
		cfg.LogLevel = fromEnv.LogLevel
	}
	if fromEnv.MinOperationAmount != "" {
		cfg.MinOperationAmount = fromEnv.MinOperationAmount
	}
	if fromEnv.StoreTimeout != 0 {
		cfg.StoreTimeout = fromEnv.StoreTimeout
	}
	cfg.AllowNegativeBalance = fromEnv.AllowNegativeBalance

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = defaultStoreTimeout
	}

	return cfg, nil
}
