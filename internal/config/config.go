// Package config loads environment-driven configuration, optionally seeded
// from a .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"snapledger/internal/domain"
)

// Config holds every runtime knob of the service.
type Config struct {
	// HTTP server
	Port string

	// Record store
	SQLiteDBPath string

	// Image store
	GCSBucket string

	// Exchange rates
	RatesBaseURL string
	RatesAPIKey  string
	RatesTimeout time.Duration

	// Extraction
	ModelName      string
	ExtractTimeout time.Duration

	// Currency
	DefaultTargetCurrency string

	// Dashboard advisory
	WatchedCategory domain.Category

	// Pipeline variants
	ExtractPlace    bool // request the merchant place from the model
	PerUserCurrency bool // convert into each user's preference, not the default
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:         getEnv("PORT", "8080"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/snapledger.db"),

		GCSBucket: getEnv("GCS_BUCKET", ""),

		RatesBaseURL: getEnv("RATES_BASE_URL", "https://openexchangerates.org/api/historical"),
		RatesAPIKey:  getEnv("OPEN_EXCHANGE_RATES_API_KEY", ""),
		RatesTimeout: getEnvDuration("RATES_TIMEOUT", 10*time.Second),

		ModelName:      getEnv("MODEL_NAME", "gemini-2.5-flash"),
		ExtractTimeout: getEnvDuration("EXTRACT_TIMEOUT", 60*time.Second),

		DefaultTargetCurrency: getEnv("DEFAULT_TARGET_CURRENCY", "EUR"),

		WatchedCategory: domain.Category(getEnv("WATCHED_CATEGORY", string(domain.CategoryDiningOut))),

		ExtractPlace:    getEnvBool("EXTRACT_PLACE", true),
		PerUserCurrency: getEnvBool("PER_USER_CURRENCY", true),
	}
}

// Validate returns an error describing every invalid setting.
func (c *Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if len(c.DefaultTargetCurrency) != 3 || c.DefaultTargetCurrency != strings.ToUpper(c.DefaultTargetCurrency) {
		problems = append(problems, fmt.Sprintf("invalid default target currency '%s': must be a 3-letter upper-case code", c.DefaultTargetCurrency))
	}

	if !c.WatchedCategory.Canonical() {
		problems = append(problems, fmt.Sprintf("invalid watched category '%s': not in the canonical set", c.WatchedCategory))
	}

	if c.RatesTimeout <= 0 {
		problems = append(problems, "rates timeout must be positive")
	}
	if c.ExtractTimeout <= 0 {
		problems = append(problems, "extract timeout must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(problems, "; "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
