package lens

import (
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/tylolens/observe"
	"github.com/jonwraymond/tylolens/pii"
	"github.com/jonwraymond/tylolens/pricing"
	"github.com/jonwraymond/tylolens/tokens"
)

// EvidenceConfig controls per-occurrence PII evidence on LLM spans.
type EvidenceConfig struct {
	Enabled         bool `yaml:"enabled"`
	IncludeRawMatch bool `yaml:"includeRawMatch"`
	ContextChars    int  `yaml:"contextChars"`
}

// EthicsConfig controls what WrapLLM records and how it is redacted.
//
// The zero value captures nothing and collects no evidence; DefaultEthics
// returns the usual settings.
type EthicsConfig struct {
	RedactPII      bool           `yaml:"redactPII"`
	RedactionMode  pii.Mode       `yaml:"redactionMode"`
	CapturePrompts bool           `yaml:"capturePrompts"`
	CaptureOutputs bool           `yaml:"captureOutputs"`
	Evidence       EvidenceConfig `yaml:"evidence"`
}

// DefaultEthics redacts PII with masks, captures prompts and outputs, and
// collects masked evidence with a 24-character context window.
func DefaultEthics() EthicsConfig {
	return EthicsConfig{
		RedactPII:      true,
		RedactionMode:  pii.ModeMask,
		CapturePrompts: true,
		CaptureOutputs: true,
		Evidence: EvidenceConfig{
			Enabled:      true,
			ContextChars: pii.DefaultContextChars,
		},
	}
}

// Config configures a Lens.
type Config struct {
	// App identifies the application. Name is required.
	App AppInfo

	// Ethics controls capture and redaction of LLM payloads. The zero value
	// captures no prompts or outputs and redacts nothing; DefaultConfig sets
	// DefaultEthics.
	Ethics EthicsConfig

	// Pricing maps model ids to prices. Nil prices every call at zero.
	Pricing pricing.Table

	// TokenEstimator estimates counts the callee did not declare.
	// Default: tokens.Default.
	TokenEstimator tokens.Estimator

	// Exporters and Plugins are registered by New, exporters first.
	Exporters []Exporter
	Plugins   []Plugin

	// DisableAutoStart makes span and trace accessors fail with
	// ErrNotStarted instead of starting a trace on demand.
	DisableAutoStart bool

	// AutoFlushOnExport flushes exporters in the background after every
	// ExportTrace.
	AutoFlushOnExport bool

	// Logger receives best-effort failures. Default: observe.NopLogger().
	Logger observe.Logger

	// Now and NewID override the clock and id source, mostly for tests.
	Now   func() time.Time
	NewID func(prefix string) string
}

// DefaultConfig returns a Config for app with DefaultEthics.
func DefaultConfig(app AppInfo) Config {
	return Config{App: app, Ethics: DefaultEthics()}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return ErrMissingAppName
	}
	if c.Ethics.RedactionMode != "" {
		if _, err := pii.ParseMode(string(c.Ethics.RedactionMode)); err != nil {
			return err
		}
	}
	return c.Pricing.Validate()
}

// now truncates to milliseconds so timestamps survive a JSON round trip
// unchanged.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func newID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}
