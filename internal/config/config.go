package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/vango-dev/filterbind/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "filterd.json"

	// DefaultAddr is the default listen address.
	DefaultAddr = ":3000"

	// DefaultMetricsPath is where Prometheus metrics are exposed.
	DefaultMetricsPath = "/metrics"

	// DefaultDelay is the default debounce delay for a filter.
	DefaultDelay = 500 * time.Millisecond

	// DefaultBufferSize is the default websocket read/write buffer size.
	DefaultBufferSize = 4096
)

// Filter types accepted in a declaration.
const (
	TypeString = "string"
	TypeInt    = "int"
	TypeFloat  = "float"
	TypeBool   = "bool"
	TypeList   = "list"
)

// Navigation modes accepted in a declaration.
const (
	ModePush    = "push"
	ModeReplace = "replace"
)

// Config represents the complete filterd.json configuration.
type Config struct {
	// Name is an optional label used in logs and metric labels.
	Name string `json:"name,omitempty"`

	// Server contains HTTP and websocket settings.
	Server ServerConfig `json:"server"`

	// Filters declares the URL-bound filters of every session.
	Filters []FilterConfig `json:"filters"`

	configPath string
}

// ServerConfig contains HTTP and websocket settings.
type ServerConfig struct {
	Addr            string   `json:"addr,omitempty"`
	MetricsPath     string   `json:"metricsPath,omitempty"`
	ReadBufferSize  int      `json:"readBufferSize,omitempty"`
	WriteBufferSize int      `json:"writeBufferSize,omitempty"`
	AllowedOrigins  []string `json:"allowedOrigins,omitempty"`

	// ShutdownTimeout bounds graceful shutdown, as a Go duration string.
	ShutdownTimeout string `json:"shutdownTimeout,omitempty"`
}

// FilterConfig declares one filter bound to one query parameter.
type FilterConfig struct {
	// Name is the query parameter key.
	Name string `json:"name"`

	// Type is one of string, int, float, bool, list.
	Type string `json:"type"`

	// Default is the JSON-encoded initial value. Empty means the type's zero value.
	Default json.RawMessage `json:"default,omitempty"`

	// Delay is the debounce delay as a Go duration string ("300ms").
	Delay string `json:"delay,omitempty"`

	// Mode is push or replace.
	Mode string `json:"mode,omitempty"`

	// Remove is the JSON-encoded value that removes the parameter when committed.
	Remove json.RawMessage `json:"remove,omitempty"`
}

// New creates a configuration with default values and no filters.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            DefaultAddr,
			MetricsPath:     DefaultMetricsPath,
			ReadBufferSize:  DefaultBufferSize,
			WriteBufferSize: DefaultBufferSize,
			ShutdownTimeout: "10s",
		},
	}
}

// Load reads configuration from the specified directory.
// It looks for filterd.json in the directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("F010").
				WithDetail("No " + filepath.Base(path) + " found in " + filepath.Dir(path)).
				WithSuggestion("Pass --config or create filterd.json")
		}
		return nil, errors.New("F011").Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("F011").
			WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
			WithSuggestion("Check that the file is valid JSON")
	}

	cfg.configPath = path
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("F011").Wrap(err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("F011").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.MetricsPath == "" {
		c.Server.MetricsPath = DefaultMetricsPath
	}
	if c.Server.ReadBufferSize == 0 {
		c.Server.ReadBufferSize = DefaultBufferSize
	}
	if c.Server.WriteBufferSize == 0 {
		c.Server.WriteBufferSize = DefaultBufferSize
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "10s"
	}

	for i := range c.Filters {
		f := &c.Filters[i]
		if f.Type == "" {
			f.Type = TypeString
		}
		if f.Mode == "" {
			f.Mode = ModePush
		}
		if f.Delay == "" {
			f.Delay = DefaultDelay.String()
		}
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, err := time.ParseDuration(c.Server.ShutdownTimeout); err != nil {
		return errors.New("F011").WithDetailf("shutdownTimeout %q: %v", c.Server.ShutdownTimeout, err)
	}

	seen := make(map[string]bool, len(c.Filters))
	for _, f := range c.Filters {
		if f.Name == "" {
			return errors.New("F013").WithDetail("filter with empty name")
		}
		if f.Name == "page" {
			return errors.New("F013").
				WithDetail(`"page" is reset by every filter commit and cannot be bound`)
		}
		if seen[f.Name] {
			return errors.New("F013").WithDetailf("duplicate filter %q", f.Name)
		}
		seen[f.Name] = true

		switch f.Type {
		case TypeString, TypeInt, TypeFloat, TypeBool, TypeList:
		default:
			return errors.New("F012").WithDetailf("filter %q has type %q", f.Name, f.Type)
		}

		switch f.Mode {
		case ModePush, ModeReplace:
		default:
			return errors.New("F014").WithDetailf("filter %q has mode %q", f.Name, f.Mode)
		}

		if _, err := f.DelayDuration(); err != nil {
			return errors.New("F011").WithDetailf("filter %q delay %q: %v", f.Name, f.Delay, err)
		}

		if err := checkValue(f.Type, f.Default); err != nil {
			return errors.New("F011").WithDetailf("filter %q default: %v", f.Name, err)
		}
		if err := checkValue(f.Type, f.Remove); err != nil {
			return errors.New("F011").WithDetailf("filter %q remove: %v", f.Name, err)
		}
	}
	return nil
}

// checkValue reports whether raw decodes as a value of the declared type.
// An empty value is always accepted.
func checkValue(typ string, raw json.RawMessage) error {
	if len(raw) == 0 {
		return nil
	}
	var v any
	switch typ {
	case TypeString:
		v = new(string)
	case TypeInt:
		v = new(int64)
	case TypeFloat:
		v = new(float64)
	case TypeBool:
		v = new(bool)
	case TypeList:
		v = new([]string)
	}
	return json.Unmarshal(raw, v)
}

// Filter returns the declaration for name.
func (c *Config) Filter(name string) (FilterConfig, bool) {
	for _, f := range c.Filters {
		if f.Name == name {
			return f, true
		}
	}
	return FilterConfig{}, false
}

// ShutdownTimeoutDuration returns the parsed graceful shutdown bound.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Server.ShutdownTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// DelayDuration parses Delay. An empty Delay yields DefaultDelay.
func (f FilterConfig) DelayDuration() (time.Duration, error) {
	if f.Delay == "" {
		return DefaultDelay, nil
	}
	d, err := time.ParseDuration(f.Delay)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, errors.Newf(errors.CategoryConfig, "negative delay")
	}
	return d, nil
}
