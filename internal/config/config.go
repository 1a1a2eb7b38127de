package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

// Config holds all runtime settings, populated from the environment
// with the LOTTERY_ prefix. A .env file in the working directory is
// loaded first when present.
type Config struct {
	ListenAddr string `envconfig:"LISTEN_ADDR" default:":8080"`
	DBPath     string `envconfig:"DB_PATH" default:"./lottery.db"`
	AdminToken string `envconfig:"ADMIN_TOKEN" required:"true"`

	// Wallet participants pay into. Shown to users by the transport
	// layer; the ledger itself never touches it.
	PaymentAddress string `envconfig:"PAYMENT_ADDRESS"`

	TicketPrice         string `envconfig:"TICKET_PRICE" default:"1"`
	MaxPurchaseQuantity int    `envconfig:"MAX_PURCHASE_QUANTITY" default:"100"`
	CommissionRate      string `envconfig:"COMMISSION_RATE" default:"0.1"`
	CommissionThreshold int    `envconfig:"COMMISSION_THRESHOLD" default:"2"`

	DrawHour   int `envconfig:"DRAW_HOUR" default:"0"`
	DrawMinute int `envconfig:"DRAW_MINUTE" default:"1"`
}

// Load reads .env (if any) and the process environment.
func Load() (*Config, error) {
	// Missing .env is fine; real env vars take precedence anyway.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("LOTTERY", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if _, err := decimal.NewFromString(c.TicketPrice); err != nil {
		return fmt.Errorf("invalid TICKET_PRICE %q: %w", c.TicketPrice, err)
	}
	if _, err := decimal.NewFromString(c.CommissionRate); err != nil {
		return fmt.Errorf("invalid COMMISSION_RATE %q: %w", c.CommissionRate, err)
	}
	if c.MaxPurchaseQuantity <= 0 {
		return fmt.Errorf("MAX_PURCHASE_QUANTITY must be positive, got %d", c.MaxPurchaseQuantity)
	}
	if c.CommissionThreshold <= 0 {
		return fmt.Errorf("COMMISSION_THRESHOLD must be positive, got %d", c.CommissionThreshold)
	}
	if c.DrawHour < 0 || c.DrawHour > 23 || c.DrawMinute < 0 || c.DrawMinute > 59 {
		return fmt.Errorf("invalid draw time %02d:%02d", c.DrawHour, c.DrawMinute)
	}
	return nil
}

// Price returns the ticket price as a decimal.
func (c *Config) Price() decimal.Decimal {
	d, _ := decimal.NewFromString(c.TicketPrice)
	return d
}

// Rate returns the commission rate as a decimal.
func (c *Config) Rate() decimal.Decimal {
	d, _ := decimal.NewFromString(c.CommissionRate)
	return d
}
