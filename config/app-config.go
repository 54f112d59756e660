// Package config holds the application's configuration settings.
package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// AppConfig defines environment-based configuration for the application.
type AppConfig struct {
	Http     HttpConfig
	Stripe   StripeConfig
	Backend  BackendConfig
	Checkout CheckoutConfig
	Log      LogConfig
}

type HttpConfig struct {
	Addr string `env:"CHECKOUT_HTTP_ADDR" env-default:":8080"`
}

type StripeConfig struct {
	PublicKey     string `env:"STRIPE_PUBLIC_KEY"`
	SecretKey     string `env:"STRIPE_SECRET_KEY"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
}

// BackendConfig points the checkout at the service that creates payment intents.
// RoutingID is sent with every request and checked by the backend when set.
type BackendConfig struct {
	BaseURL   string        `env:"CHECKOUT_BACKEND_URL" env-default:"http://localhost:8080"`
	RoutingID string        `env:"CHECKOUT_ROUTING_ID"`
	Timeout   time.Duration `env:"CHECKOUT_BACKEND_TIMEOUT" env-default:"10s"`
	Retries   int           `env:"CHECKOUT_BACKEND_RETRIES" env-default:"0"`
}

type CheckoutConfig struct {
	Currency       string        `env:"CHECKOUT_CURRENCY" env-default:"eur"`
	Amount         int64         `env:"CHECKOUT_AMOUNT" env-default:"2500"`
	ConfirmTimeout time.Duration `env:"CHECKOUT_CONFIRM_TIMEOUT" env-default:"30s"`
	ReturnURL      string        `env:"CHECKOUT_RETURN_URL"`
	// A visitor's checkout is dropped after SessionTTL without requests,
	// or earlier when MaxSessions newer ones exist.
	SessionTTL  time.Duration `env:"CHECKOUT_SESSION_TTL" env-default:"30m"`
	MaxSessions int           `env:"CHECKOUT_MAX_SESSIONS" env-default:"10000"`
}

type LogConfig struct {
	Level string `env:"LOG_LEVEL" env-default:"info"`
	File  string `env:"LOG_FILE"`
}

// Load reads the configuration from the environment.
func Load() (*AppConfig, error) {
	var cfg AppConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("reading env config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) validate() error {
	if len(c.Checkout.Currency) != 3 {
		return fmt.Errorf("CHECKOUT_CURRENCY must be a three-letter code, got %q", c.Checkout.Currency)
	}
	if c.Backend.Retries < 0 {
		return fmt.Errorf("CHECKOUT_BACKEND_RETRIES must not be negative")
	}
	if c.Checkout.ConfirmTimeout < 0 {
		return fmt.Errorf("CHECKOUT_CONFIRM_TIMEOUT must not be negative")
	}
	if c.Checkout.SessionTTL <= 0 {
		return fmt.Errorf("CHECKOUT_SESSION_TTL must be positive")
	}
	if c.Checkout.MaxSessions <= 0 {
		return fmt.Errorf("CHECKOUT_MAX_SESSIONS must be positive")
	}
	return nil
}
