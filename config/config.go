package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/tylolens/ingest"
	"github.com/jonwraymond/tylolens/lens"
	"github.com/jonwraymond/tylolens/observe"
	"github.com/jonwraymond/tylolens/pii"
	"github.com/jonwraymond/tylolens/pricing"
)

// Environment variables applied by ApplyEnv.
const (
	EnvApp          = "TYLOLENS_APP"
	EnvEnvironment  = "TYLOLENS_ENV"
	EnvLogLevel     = "TYLOLENS_LOG_LEVEL"
	EnvReadOnly     = "TYLOLENS_READ_ONLY"
	EnvDemoToken    = "TYLOLENS_DEMO_TOKEN"
	EnvIngestSecret = "TYLOLENS_INGEST_SECRET"
	EnvAddr         = "TYLOLENS_ADDR"
)

const (
	defaultAppName  = "tylolens"
	defaultLogLevel = "info"
)

// File is the on-disk configuration of an instrumented application and
// of the ingest collector.
type File struct {
	App               lens.AppInfo      `yaml:"app"`
	Ethics            lens.EthicsConfig `yaml:"ethics"`
	Pricing           pricing.Table     `yaml:"pricing"`
	PricingFile       string            `yaml:"pricingFile"`
	DisableAutoStart  bool              `yaml:"disableAutoStart"`
	AutoFlushOnExport bool              `yaml:"autoFlushOnExport"`
	Observe           observe.Config    `yaml:"observe"`
	Exporters         ExportersConfig   `yaml:"exporters"`
	Plugins           PluginsConfig     `yaml:"plugins"`
	Ingest            ingest.Config     `yaml:"ingest"`

	// dir resolves a relative PricingFile.
	dir string
}

// ExportersConfig enables exporters. A nil section is disabled.
type ExportersConfig struct {
	Console *ConsoleConfig `yaml:"console"`
	File    *FileConfig    `yaml:"file"`
	Webhook *WebhookConfig `yaml:"webhook"`

	// OTel replays exported traces into the observe tracer.
	OTel bool `yaml:"otel"`
}

// ConsoleConfig configures export.Console on stdout.
type ConsoleConfig struct {
	Verbose bool `yaml:"verbose"`
}

// FileConfig configures export.File.
type FileConfig struct {
	Path   string `yaml:"path"`
	Pretty bool   `yaml:"pretty"`
}

// WebhookConfig configures export.Webhook.
type WebhookConfig struct {
	URL        string            `yaml:"url"`
	Headers    map[string]string `yaml:"headers"`
	Timeout    time.Duration     `yaml:"timeout"`
	SigningKey string            `yaml:"signingKey"`
	Issuer     string            `yaml:"issuer"`
}

// PluginsConfig enables plugins. A nil section is disabled.
type PluginsConfig struct {
	AutoTrace *AutoTraceConfig `yaml:"autoTrace"`
	Ethics    *lens.Weights    `yaml:"ethics"`
	Realtime  *RealtimeConfig  `yaml:"realtime"`
	Network   *NetworkConfig   `yaml:"network"`

	// Metrics records span counters on the observe meter.
	Metrics bool `yaml:"metrics"`
}

// AutoTraceConfig configures plugins.AutoTrace.
type AutoTraceConfig struct {
	Idle  time.Duration `yaml:"idle"`
	Flush bool          `yaml:"flush"`
}

// RealtimeConfig configures plugins.Realtime. IncludeFinal defaults to
// true.
type RealtimeConfig struct {
	URL          string            `yaml:"url"`
	Headers      map[string]string `yaml:"headers"`
	Debounce     time.Duration     `yaml:"debounce"`
	IncludeFinal *bool             `yaml:"includeFinal"`
	SigningKey   string            `yaml:"signingKey"`
	Issuer       string            `yaml:"issuer"`
}

// NetworkConfig configures plugins.Network on http.DefaultClient.
type NetworkConfig struct {
	// Hosts limits tracing to these hosts; empty traces every request.
	Hosts               []string   `yaml:"hosts"`
	CaptureBody         bool       `yaml:"captureBody"`
	CaptureResponseBody bool       `yaml:"captureResponseBody"`
	Headers             bool       `yaml:"headers"`
	SSE                 *SSEConfig `yaml:"sse"`
}

// SSEConfig enables streamed-response capture.
type SSEConfig struct {
	MaxBytes  int `yaml:"maxBytes"`
	MaxEvents int `yaml:"maxEvents"`
}

// Default returns the configuration used for absent keys: default
// ethics, info logging, the ingest defaults, no exporters or plugins.
func Default() *File {
	return &File{
		App:    lens.AppInfo{Name: defaultAppName},
		Ethics: lens.DefaultEthics(),
		Observe: observe.Config{
			Logging: observe.LoggingConfig{Enabled: true, Level: defaultLogLevel},
		},
		Ingest: ingest.DefaultConfig(),
	}
}

// Load reads, expands and validates the file at path, then applies the
// TYLOLENS_* environment.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	f, err := parse(data, os.LookupEnv)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	f.dir = filepath.Dir(path)
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Parse decodes a configuration document using lookup for ${VAR}
// expansion and the environment overrides (os.LookupEnv when nil), and
// validates it.
func Parse(r io.Reader, lookup func(string) (string, bool)) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}
	f, err := parse(data, lookup)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func parse(data []byte, lookup func(string) (string, bool)) (*File, error) {
	expanded, err := ExpandEnvStrict(string(data), lookup)
	if err != nil {
		return nil, err
	}
	f := Default()
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode: %w", err)
	}
	f.ApplyEnv(lookup)
	return f, nil
}

// ApplyEnv overrides fields from the TYLOLENS_* variables found by lookup.
func (f *File) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvApp); ok && v != "" {
		f.App.Name = v
	}
	if v, ok := lookup(EnvEnvironment); ok && v != "" {
		f.App.Environment = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		f.Observe.Logging.Enabled = true
		f.Observe.Logging.Level = strings.ToLower(v)
	}
	if v, ok := lookup(EnvReadOnly); ok {
		f.Ingest.ReadOnly = v == "1" || strings.EqualFold(v, "true")
	}
	if v, ok := lookup(EnvDemoToken); ok {
		f.Ingest.DemoToken = v
	}
	if v, ok := lookup(EnvIngestSecret); ok {
		f.Ingest.Secret = v
	}
	if v, ok := lookup(EnvAddr); ok && v != "" {
		f.Ingest.Addr = v
	}
}

// Validate checks the configuration. Every error wraps ErrInvalidConfig.
func (f *File) Validate() error {
	if err := f.validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func (f *File) validate() error {
	if f.App.Name == "" {
		return lens.ErrMissingAppName
	}
	if f.Ethics.RedactionMode != "" {
		if _, err := pii.ParseMode(string(f.Ethics.RedactionMode)); err != nil {
			return err
		}
	}
	if err := f.Pricing.Validate(); err != nil {
		return err
	}
	obs := f.observeConfig()
	if err := obs.Validate(); err != nil {
		return err
	}
	if c := f.Exporters.File; c != nil && c.Path == "" {
		return errors.New("exporters.file.path is required")
	}
	if c := f.Exporters.Webhook; c != nil {
		if c.URL == "" {
			return errors.New("exporters.webhook.url is required")
		}
		if c.Timeout < 0 {
			return errors.New("exporters.webhook.timeout must be >= 0")
		}
	}
	if c := f.Plugins.AutoTrace; c != nil && c.Idle < 0 {
		return errors.New("plugins.autoTrace.idle must be >= 0")
	}
	if c := f.Plugins.Realtime; c != nil {
		if c.URL == "" {
			return errors.New("plugins.realtime.url is required")
		}
		if c.Debounce < 0 {
			return errors.New("plugins.realtime.debounce must be >= 0")
		}
	}
	if c := f.Plugins.Network; c != nil && c.SSE != nil && (c.SSE.MaxBytes < 0 || c.SSE.MaxEvents < 0) {
		return errors.New("plugins.network.sse limits must be >= 0")
	}
	return f.Ingest.Validate()
}

// observeConfig fills the service identity from App.
func (f *File) observeConfig() observe.Config {
	c := f.Observe
	if c.ServiceName == "" {
		c.ServiceName = f.App.Name
	}
	if c.Version == "" {
		c.Version = f.App.Version
	}
	return c
}

// pricingTable merges PricingFile with the inline table; inline entries
// win.
func (f *File) pricingTable() (pricing.Table, error) {
	table := pricing.Table{}
	if f.PricingFile != "" {
		path := f.PricingFile
		if !filepath.IsAbs(path) && f.dir != "" {
			path = filepath.Join(f.dir, path)
		}
		fh, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("config: pricing file: %w", err)
		}
		defer fh.Close()
		loaded, err := pricing.LoadTable(fh)
		if err != nil {
			return nil, err
		}
		maps.Copy(table, loaded)
	}
	maps.Copy(table, f.Pricing)
	return table, nil
}
