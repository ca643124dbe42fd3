package config

import (
	"testing"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.StartURLs = []string{"https://shop.example/en-ae/electronics"}
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults with url", mutate: func(*Config) {}, wantErr: false},
		{name: "no urls", mutate: func(c *Config) { c.StartURLs = nil }, wantErr: true},
		{name: "only unusable urls", mutate: func(c *Config) { c.StartURLs = []string{"not a url", "/relative"} }, wantErr: true},
		{name: "one usable among junk", mutate: func(c *Config) {
			c.StartURLs = []string{"/relative", "https://shop.example/en-ae/deals"}
		}, wantErr: false},
		{name: "unlimited products", mutate: func(c *Config) { c.MaxProducts = 0 }, wantErr: false},
		{name: "negative products", mutate: func(c *Config) { c.MaxProducts = -1 }, wantErr: true},
		{name: "zero pages", mutate: func(c *Config) { c.MaxPages = 0 }, wantErr: true},
		{name: "zero parallelism", mutate: func(c *Config) { c.Parallelism = 0 }, wantErr: true},
		{name: "backoff exceeds max", mutate: func(c *Config) {
			c.RetryBackoff = 5 * c.RetryBackoffMax
		}, wantErr: true},
		{name: "bad format", mutate: func(c *Config) { c.OutputFormat = "xml" }, wantErr: true},
		{name: "empty currency", mutate: func(c *Config) { c.Currency = "" }, wantErr: true},
		{name: "zero identity uses", mutate: func(c *Config) { c.IdentityMaxUses = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestClampedParallelism(t *testing.T) {
	tests := []struct {
		name     string
		input    int
		expected int
	}{
		{name: "below floor", input: 0, expected: MinParallelism},
		{name: "in range", input: 8, expected: 8},
		{name: "above ceiling", input: 500, expected: MaxParallelism},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Parallelism = tt.input
			if got := cfg.ClampedParallelism(); got != tt.expected {
				t.Fatalf("ClampedParallelism() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestEnvInt(t *testing.T) {
	t.Setenv("SCRAPER_TEST_INT", "12")
	value, ok, err := EnvInt("SCRAPER_TEST_INT")
	if err != nil || !ok || value != 12 {
		t.Fatalf("EnvInt = (%d, %v, %v), want (12, true, nil)", value, ok, err)
	}

	t.Setenv("SCRAPER_TEST_INT", "twelve")
	if _, _, err := EnvInt("SCRAPER_TEST_INT"); err == nil {
		t.Fatalf("EnvInt accepted non-integer input")
	}

	if _, ok, _ := EnvInt("SCRAPER_TEST_INT_UNSET"); ok {
		t.Fatalf("EnvInt reported unset variable as present")
	}
}
