package ingest

import (
	"fmt"
	"time"
)

// Defaults applied by DefaultConfig.
const (
	DefaultAddr         = ":8787"
	DefaultMaxBodyBytes = 4 << 20
	DefaultMaxTraces    = 200
	DefaultTTL          = 24 * time.Hour
	DefaultBurst        = 20
)

// Config configures a Server.
type Config struct {
	// Addr is the listen address used by the CLI.
	Addr string `yaml:"addr"`

	// ReadOnly rejects POST /api/ingest with 403.
	ReadOnly bool `yaml:"readOnly"`

	// DemoToken, when set, is required on /api routes as ?token=, the
	// tylo_demo_token cookie or a bearer token.
	DemoToken string `yaml:"demoToken"`

	// Secret, when set, also accepts HS256 bearer JWTs signed with it.
	// Issuer, when set, must match their iss claim.
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`

	// MaxBodyBytes caps an ingest payload. Larger bodies get 413.
	MaxBodyBytes int64 `yaml:"maxBodyBytes"`

	// MaxTraces and TTL bound the store.
	MaxTraces int           `yaml:"maxTraces"`
	TTL       time.Duration `yaml:"ttl"`

	// RateLimit is the sustained ingest rate per client in requests per
	// second; zero disables limiting. Burst is the bucket size.
	RateLimit float64 `yaml:"rateLimit"`
	Burst     int     `yaml:"burst"`
}

// DefaultConfig returns the collector defaults: writable, no auth, 4 MiB
// payloads, 200 traces kept for a day, no rate limit.
func DefaultConfig() Config {
	return Config{
		Addr:         DefaultAddr,
		MaxBodyBytes: DefaultMaxBodyBytes,
		MaxTraces:    DefaultMaxTraces,
		TTL:          DefaultTTL,
		Burst:        DefaultBurst,
	}
}

// AuthEnabled reports whether /api routes require credentials.
func (c *Config) AuthEnabled() bool {
	return c.DemoToken != "" || c.Secret != ""
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch {
	case c.MaxBodyBytes < 0:
		return fmt.Errorf("%w: maxBodyBytes must be >= 0", ErrInvalidConfig)
	case c.MaxTraces < 0:
		return fmt.Errorf("%w: maxTraces must be >= 0", ErrInvalidConfig)
	case c.TTL < 0:
		return fmt.Errorf("%w: ttl must be >= 0", ErrInvalidConfig)
	case c.RateLimit < 0:
		return fmt.Errorf("%w: rateLimit must be >= 0", ErrInvalidConfig)
	case c.Burst < 0:
		return fmt.Errorf("%w: burst must be >= 0", ErrInvalidConfig)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.MaxTraces == 0 {
		c.MaxTraces = DefaultMaxTraces
	}
	if c.TTL == 0 {
		c.TTL = DefaultTTL
	}
	if c.Burst == 0 {
		c.Burst = DefaultBurst
	}
	return c
}
