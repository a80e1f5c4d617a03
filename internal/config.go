package internal

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all runtime configuration, read from the environment with a
// FIGURA_ prefix (a local .env file is loaded first when present).
type Config struct {
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
	Port     uint16 `mapstructure:"port"`

	DatabaseURL string `mapstructure:"database_url"`

	// NATSURL enables the NATS-backed event bus. Empty means the
	// in-process bus.
	NATSURL string `mapstructure:"nats_url"`

	// Currency is stored on orders as-is; no conversion happens here.
	Currency string `mapstructure:"currency"`

	// TaxRate is the flat sales tax fraction applied at checkout (0.08 = 8%).
	TaxRate float64 `mapstructure:"tax_rate"`

	// FlatShippingCents is charged per order below the free threshold.
	FlatShippingCents     int64 `mapstructure:"flat_shipping_cents"`
	FreeShippingThreshold int64 `mapstructure:"free_shipping_threshold_cents"`

	// RequestTimeout bounds server request handling (applied as a
	// per-request context deadline) and the cart engine's round trips.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// NewConfig loads configuration from .env and the environment.
func NewConfig() (*Config, error) {
	// Best effort; the environment may be configured without a file.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("FIGURA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("env", "dev")
	v.SetDefault("log_level", "info")
	v.SetDefault("port", 8080)
	v.SetDefault("currency", "usd")
	v.SetDefault("tax_rate", 0.0)
	v.SetDefault("flat_shipping_cents", 700)
	v.SetDefault("free_shipping_threshold_cents", 10000)
	v.SetDefault("request_timeout", 10*time.Second)

	// AutomaticEnv only resolves keys viper has seen; bind the ones
	// without defaults explicitly.
	for _, key := range []string{"database_url", "nats_url"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env key %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("FIGURA_DATABASE_URL is required")
	}
	if cfg.TaxRate < 0 || cfg.TaxRate >= 1 {
		return nil, fmt.Errorf("FIGURA_TAX_RATE must be in [0, 1): got %v", cfg.TaxRate)
	}

	return &cfg, nil
}
