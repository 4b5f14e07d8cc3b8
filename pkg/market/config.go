package market

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"candlekeep/pkg/confkit"
)

// Config describes the set of market data providers available to the application.
type Config struct {
	Default   string                     `yaml:"default"`
	Providers map[string]*ProviderConfig `yaml:"providers"`
}

// ProviderConfig represents configuration for a single market provider.
type ProviderConfig struct {
	Type string `yaml:"type"`

	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	// Entitlement is passed through to providers that gate realtime data
	// behind a plan ("realtime", "delayed"). Empty means the plan default.
	Entitlement string `yaml:"entitlement"`
	// ExtendedHours asks intraday endpoints to include pre and post market bars.
	ExtendedHours bool `yaml:"extended_hours"`
	// CallsPerMinute throttles outbound requests. Zero disables the limiter.
	CallsPerMinute int `yaml:"calls_per_minute"`

	// FixtureDir is the root of CSV fixtures for the fixture provider.
	FixtureDir string `yaml:"fixture_dir"`

	TimeoutRaw     string        `yaml:"timeout"`
	Timeout        time.Duration `yaml:"-"`
	HTTPTimeoutRaw string        `yaml:"http_timeout"`
	HTTPTimeout    time.Duration `yaml:"-"`
	MaxRetries     int           `yaml:"max_retries"`
}

// ProviderBuilder constructs a Provider from configuration.
type ProviderBuilder func(name string, cfg *ProviderConfig) (Provider, error)

var (
	providerRegistry   = make(map[string]ProviderBuilder)
	providerRegistryMu sync.RWMutex
)

// RegisterProvider registers a market provider constructor.
func RegisterProvider(typeName string, builder ProviderBuilder) {
	providerRegistryMu.Lock()
	defer providerRegistryMu.Unlock()
	providerRegistry[strings.ToLower(strings.TrimSpace(typeName))] = builder
}

func lookupProviderBuilder(typeName string) (ProviderBuilder, bool) {
	providerRegistryMu.RLock()
	defer providerRegistryMu.RUnlock()
	builder, ok := providerRegistry[strings.ToLower(strings.TrimSpace(typeName))]
	return builder, ok
}

// LoadConfig reads configuration from disk.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open market config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// LoadConfigFromReader constructs a Config from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	confkit.LoadDotenvOnce()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read market config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal market config: %w", err)
	}
	if err := cfg.normalise(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalise() error {
	if c.Providers == nil {
		c.Providers = make(map[string]*ProviderConfig)
	}
	c.Default = confkit.Expand(c.Default)
	for name, provider := range c.Providers {
		if provider == nil {
			provider = &ProviderConfig{}
			c.Providers[name] = provider
		}
		provider.expandEnv()
		if err := provider.parseDurations(name); err != nil {
			return err
		}
	}
	if c.Default == "" && len(c.Providers) == 1 {
		for name := range c.Providers {
			c.Default = name
		}
	}
	return nil
}

func (p *ProviderConfig) expandEnv() {
	p.Type = confkit.Expand(p.Type)
	p.BaseURL = confkit.Expand(p.BaseURL)
	p.APIKey = confkit.Expand(p.APIKey)
	p.Entitlement = confkit.Expand(p.Entitlement)
	p.FixtureDir = confkit.Expand(p.FixtureDir)
	p.TimeoutRaw = confkit.Expand(p.TimeoutRaw)
	p.HTTPTimeoutRaw = confkit.Expand(p.HTTPTimeoutRaw)
}

func (p *ProviderConfig) parseDurations(name string) error {
	var err error
	if p.Timeout, err = confkit.PositiveDuration("timeout", p.TimeoutRaw); err != nil {
		return fmt.Errorf("market provider %s: %w", name, err)
	}
	if p.HTTPTimeout, err = confkit.PositiveDuration("http_timeout", p.HTTPTimeoutRaw); err != nil {
		return fmt.Errorf("market provider %s: %w", name, err)
	}
	return nil
}

// Validate reports every structural problem at once.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return errors.New("market config: providers cannot be empty")
	}
	var errs []error
	if c.Default != "" {
		if _, ok := c.Providers[c.Default]; !ok {
			errs = append(errs, fmt.Errorf("market config: default provider %q not defined", c.Default))
		}
	}
	for _, name := range c.names() {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, errors.New("market config: provider name cannot be empty"))
			continue
		}
		if err := c.Providers[name].validate(name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *ProviderConfig) validate(name string) error {
	switch {
	case p == nil:
		return fmt.Errorf("market config: provider %s is nil", name)
	case strings.TrimSpace(p.Type) == "":
		return fmt.Errorf("market config: provider %s must specify type", name)
	case p.CallsPerMinute < 0:
		return fmt.Errorf("market config: provider %s calls_per_minute must be >= 0", name)
	case p.MaxRetries < 0:
		return fmt.Errorf("market config: provider %s max_retries must be >= 0", name)
	}
	if _, ok := lookupProviderBuilder(p.Type); !ok {
		return fmt.Errorf("market config: provider %s has unsupported type %q", name, p.Type)
	}
	return nil
}

func (c *Config) names() []string {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuildProviders instantiates every configured provider, in name order.
func (c *Config) BuildProviders() (map[string]Provider, error) {
	result := make(map[string]Provider, len(c.Providers))
	for _, name := range c.names() {
		provider, err := c.build(name)
		if err != nil {
			return nil, err
		}
		result[name] = provider
	}
	return result, nil
}

// BuildDefault instantiates only the default provider.
func (c *Config) BuildDefault() (Provider, error) {
	if c.Default == "" {
		return nil, errors.New("market config: no default provider")
	}
	return c.build(c.Default)
}

func (c *Config) build(name string) (Provider, error) {
	providerCfg, ok := c.Providers[name]
	if !ok || providerCfg == nil {
		return nil, fmt.Errorf("market provider %s: not configured", name)
	}
	builder, ok := lookupProviderBuilder(providerCfg.Type)
	if !ok {
		return nil, fmt.Errorf("market provider %s: unsupported type %q", name, providerCfg.Type)
	}
	provider, err := builder(name, providerCfg)
	if err != nil {
		return nil, fmt.Errorf("market provider %s: %w", name, err)
	}
	return provider, nil
}
