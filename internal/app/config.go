package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/salon-pos/internal/domain/ledger"
)

// Config holds the complete application configuration, loadable from
// environment variables (SALON_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL; empty keeps the ledger in memory" flag:"database-url"`
	Currency    CurrencyConfig
	Reconcile   ReconcileConfig
	Seed        SeedConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// CurrencyConfig describes the single currency the till works in.
type CurrencyConfig struct {
	Code  string `default:"PYG" usage:"ISO currency code"`
	Scale int32  `default:"0"   usage:"Fractional digits allowed in amounts (0-4)"`
}

// ReconcileConfig controls till close classification.
type ReconcileConfig struct {
	Tolerance string `default:"1000" usage:"Largest absolute cash discrepancy closed without review"`
}

// SeedConfig controls demo data for the in-memory store.
type SeedConfig struct {
	Demo bool `default:"true" usage:"Seed demo users and catalog into the in-memory store" flag:"seed-demo"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "SALON",
		Files:     []string{"config.yaml", "/etc/salon/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that aconfig cannot express as tags.
func (c *Config) Validate() error {
	if c.Currency.Code == "" {
		return errors.New("currency code is required")
	}
	if c.Currency.Scale < 0 || c.Currency.Scale > 4 {
		return errors.Errorf("currency scale %d out of range [0, 4]", c.Currency.Scale)
	}
	tol, err := c.Tolerance()
	if err != nil {
		return err
	}
	if err := c.LedgerCurrency().CheckAmount("tolerance", tol); err != nil {
		return errors.Wrap(err, "reconcile tolerance")
	}
	return nil
}

// Tolerance parses Reconcile.Tolerance.
func (c *Config) Tolerance() (decimal.Decimal, error) {
	tol, err := decimal.NewFromString(c.Reconcile.Tolerance)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "parse tolerance %q", c.Reconcile.Tolerance)
	}
	return tol, nil
}

// LedgerCurrency returns the configured currency.
func (c *Config) LedgerCurrency() ledger.Currency {
	return ledger.Currency{Code: c.Currency.Code, Scale: c.Currency.Scale}
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's SALON_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
