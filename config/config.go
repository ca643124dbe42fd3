package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Parallelism bounds. The worker pool is clamped into this range no matter
// what the flags say.
const (
	MinParallelism = 1
	MaxParallelism = 32
)

// Config holds crawl configuration.
type Config struct {
	StartURLs []string

	MaxProducts    int // 0 = unlimited
	MaxPages       int
	FetchDetails   bool
	DetailFetchCap int

	Parallelism     int
	RequestsPerSec  float64
	Timeout         time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	RetryBackoffMax time.Duration

	ProxyURLs           []string
	IdentityMaxUses     int
	IdentityErrorBudget int

	Currency     string
	OutputFile   string
	OutputFormat string // csv, json, or dual
	MetricsAddr  string
	Verbose      bool
}

// DefaultConfig returns conservative defaults for a gulf-region storefront.
func DefaultConfig() *Config {
	return &Config{
		MaxProducts:         100,
		MaxPages:            10,
		FetchDetails:        false,
		DetailFetchCap:      50,
		Parallelism:         8,
		RequestsPerSec:      4,
		Timeout:             15 * time.Second,
		MaxRetries:          2,
		RetryBackoff:        200 * time.Millisecond,
		RetryBackoffMax:     2 * time.Second,
		IdentityMaxUses:     40,
		IdentityErrorBudget: 3,
		Currency:            "AED",
		OutputFile:          "output/products.csv",
		OutputFormat:        "csv",
		MetricsAddr:         "",
		Verbose:             false,
	}
}

// Validate ensures all configuration values are coherent. A configuration
// with no usable catalog URL is the one fatal condition of a run.
func (c *Config) Validate() error {
	if len(c.StartURLs) == 0 {
		return fmt.Errorf("at least one catalog URL is required")
	}
	usable := 0
	for _, raw := range c.StartURLs {
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Host == "" || parsed.Scheme == "" {
			continue
		}
		usable++
	}
	if usable == 0 {
		return fmt.Errorf("no usable catalog URL among %d configured", len(c.StartURLs))
	}

	if c.MaxProducts < 0 {
		return fmt.Errorf("max products cannot be negative")
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.DetailFetchCap < 0 {
		return fmt.Errorf("detail fetch cap cannot be negative")
	}
	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive")
	}
	if c.RequestsPerSec <= 0 {
		return fmt.Errorf("requests per second must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	for _, raw := range c.ProxyURLs {
		if _, err := url.Parse(raw); err != nil {
			return fmt.Errorf("invalid proxy url %q: %w", raw, err)
		}
	}
	if c.IdentityMaxUses <= 0 {
		return fmt.Errorf("identity max uses must be positive")
	}
	if c.IdentityErrorBudget <= 0 {
		return fmt.Errorf("identity error budget must be positive")
	}
	if c.Currency == "" {
		return fmt.Errorf("currency cannot be empty")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	return nil
}

// ClampedParallelism returns the configured parallelism bounded to the
// supported worker range.
func (c *Config) ClampedParallelism() int {
	if c.Parallelism < MinParallelism {
		return MinParallelism
	}
	if c.Parallelism > MaxParallelism {
		return MaxParallelism
	}
	return c.Parallelism
}

// EnvInt reads an integer environment variable. The second return reports
// whether the variable was set.
func EnvInt(name string) (int, bool, error) {
	raw, ok := os.LookupEnv(name)
	if !ok || raw == "" {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s must be an integer: %w", name, err)
	}
	return value, true, nil
}

// EnvString reads a string environment variable, reporting presence.
func EnvString(name string) (string, bool) {
	raw, ok := os.LookupEnv(name)
	if !ok || raw == "" {
		return "", false
	}
	return raw, true
}
