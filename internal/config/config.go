package config

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/drstein77/oilcheckout/internal/checkout"
	"github.com/drstein77/oilcheckout/internal/models"
	"github.com/drstein77/oilcheckout/internal/totals"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Options struct {
	runAddr        string
	logLevel       string
	dataBaseDSN    string
	migrationsPath string

	freeShippingThreshold string
	flatShippingFee       string
	taxRate               string
	currencySymbol        string
	defaultPayment        string

	notificationDuration time.Duration
	gatewayLatency       time.Duration
	gatewayDeclineAbove  string
}

func NewOptions() *Options {
	return new(Options)
}

// ParseFlags handles command line arguments
// and stores their values in the corresponding variables.
// Environment variables (and a .env file) supply the defaults.
func (o *Options) ParseFlags(args []string) error {
	loadEnvFile()

	fs := flag.NewFlagSet("checkout", flag.ContinueOnError)
	fs.StringVar(&o.runAddr, "a", getEnvOrDefault("RUN_ADDRESS", ":8080"), "address and port to run server")
	fs.StringVar(&o.logLevel, "l", getEnvOrDefault("LOG_LEVEL", "info"), "log level")
	fs.StringVar(&o.dataBaseDSN, "d", getEnvOrDefault("DATABASE_URI", ""), "database connection string")
	fs.StringVar(&o.migrationsPath, "m", getEnvOrDefault("MIGRATIONS_PATH", "migrations"), "directory with database migrations")

	fs.StringVar(&o.freeShippingThreshold, "t", getEnvOrDefault("FREE_SHIPPING_THRESHOLD", "50.00"), "subtotal from which shipping is free")
	fs.StringVar(&o.flatShippingFee, "f", getEnvOrDefault("FLAT_SHIPPING_FEE", "5.99"), "shipping fee below the threshold")
	fs.StringVar(&o.taxRate, "x", getEnvOrDefault("TAX_RATE", "0.08"), "tax rate as a fraction")
	fs.StringVar(&o.currencySymbol, "c", getEnvOrDefault("CURRENCY_SYMBOL", "₹"), "currency symbol")
	fs.StringVar(&o.defaultPayment, "p", getEnvOrDefault("DEFAULT_PAYMENT_METHOD", string(models.PaymentUPI)), "preselected payment method")

	visible, err := getDurationOrDefault("NOTIFICATION_DURATION", 5*time.Second)
	if err != nil {
		return err
	}
	latency, err := getDurationOrDefault("GATEWAY_LATENCY", 0)
	if err != nil {
		return err
	}
	fs.DurationVar(&o.notificationDuration, "n", visible, "how long notifications stay visible")
	fs.DurationVar(&o.gatewayLatency, "g", latency, "simulated payment processor latency")
	fs.StringVar(&o.gatewayDeclineAbove, "D", getEnvOrDefault("GATEWAY_DECLINE_ABOVE", ""), "simulated processor declines totals above this amount")

	// parse the arguments passed to the server into registered variables
	return fs.Parse(args)
}

func (o *Options) RunAddr() string {
	return o.runAddr
}

func (o *Options) LogLevel() string {
	return o.logLevel
}

func (o *Options) DataBaseDSN() string {
	return o.dataBaseDSN
}

func (o *Options) MigrationsPath() string {
	return o.migrationsPath
}

func (o *Options) NotificationDuration() time.Duration {
	return o.notificationDuration
}

func (o *Options) GatewayLatency() time.Duration {
	return o.gatewayLatency
}

// GatewayDeclineAbove returns the decline limit of the simulated processor;
// ok is false when no limit is configured.
func (o *Options) GatewayDeclineAbove() (limit decimal.Decimal, ok bool, err error) {
	if o.gatewayDeclineAbove == "" {
		return decimal.Zero, false, nil
	}
	limit, err = decimal.NewFromString(o.gatewayDeclineAbove)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("invalid decline limit %q: %w", o.gatewayDeclineAbove, err)
	}
	return limit, true, nil
}

// Pricing returns the validated pricing rules.
func (o *Options) Pricing() (totals.Config, error) {
	var cfg totals.Config
	var err error
	if cfg.FreeShippingThreshold, err = decimal.NewFromString(o.freeShippingThreshold); err != nil {
		return cfg, fmt.Errorf("invalid free shipping threshold %q: %w", o.freeShippingThreshold, err)
	}
	if cfg.FlatShippingFee, err = decimal.NewFromString(o.flatShippingFee); err != nil {
		return cfg, fmt.Errorf("invalid flat shipping fee %q: %w", o.flatShippingFee, err)
	}
	if cfg.TaxRate, err = decimal.NewFromString(o.taxRate); err != nil {
		return cfg, fmt.Errorf("invalid tax rate %q: %w", o.taxRate, err)
	}
	cfg.Currency = o.currencySymbol
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Checkout returns the controller configuration.
func (o *Options) Checkout() (checkout.Config, error) {
	pricing, err := o.Pricing()
	if err != nil {
		return checkout.Config{}, err
	}
	method := models.PaymentMethod(o.defaultPayment)
	if method != "" && !method.Valid() {
		return checkout.Config{}, fmt.Errorf("unknown default payment method %q", o.defaultPayment)
	}
	return checkout.Config{Pricing: pricing, DefaultPaymentMethod: method}, nil
}

// getEnvOrDefault reads an environment variable or returns a default value if the variable is not set or is empty.
func getEnvOrDefault(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	value := getEnvOrDefault(key, "")
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return d, nil
}

// loadEnvFile loads environment variables from a .env file
// in the working directory, falling back to the repository root.
func loadEnvFile() {
	cwd, err := os.Getwd()
	if err != nil {
		log.Printf("cannot determine working directory: %v", err)
		return
	}
	for _, envPath := range []string{
		filepath.Join(cwd, ".env"),
		filepath.Join(cwd, "..", "..", ".env"),
	} {
		if err := godotenv.Load(envPath); err == nil {
			log.Printf(".env file loaded from %s", envPath)
			return
		}
	}
	log.Printf("No .env file found, proceeding without it")
}
