// Package config loads the terminal configuration from a YAML or JSON file and the
// environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Riboost-Studio/refugio-pos-printing/internal/model"
	"github.com/Riboost-Studio/refugio-pos-printing/internal/printer"
	"github.com/Riboost-Studio/refugio-pos-printing/internal/ticket"
)

var (
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrUnsupportedFormat = errors.New("unsupported config file extension")
)

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"

	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// Duration reads "5s" style strings from both YAML and JSON.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return fmt.Errorf("%w: duration %q", ErrInvalidConfig, b)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	return d.UnmarshalText([]byte(n.Value))
}

type Config struct {
	App       AppConfig       `yaml:"app" json:"app"`
	Hub       HubConfig       `yaml:"hub" json:"hub"`
	API       APIConfig       `yaml:"api" json:"api"`
	Printing  PrintingConfig  `yaml:"printing" json:"printing"`
	Fallback  FallbackConfig  `yaml:"fallback" json:"fallback"`
	Settings  SettingsConfig  `yaml:"settings" json:"settings"`
	Telemetry TelemetryConfig `yaml:"telemetry" json:"telemetry"`
	Log       LogConfig       `yaml:"log" json:"log"`

	// Printers and Routes seed an empty settings store.
	Printers []model.Printer `yaml:"printers,omitempty" json:"printers,omitempty"`
	Routes   []model.Route   `yaml:"routes,omitempty" json:"routes,omitempty"`
}

type AppConfig struct {
	Name        string `yaml:"name" json:"name"`
	Version     string `yaml:"version" json:"version"`
	TerminalKey string `yaml:"terminal_key" json:"terminalKey"`
}

// HubConfig is the POS hub the agent connects to. Disabled runs the terminal standalone.
type HubConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	URL     string `yaml:"url" json:"url"`
	APIKey  string `yaml:"api_key" json:"apiKey"`
}

type APIConfig struct {
	Listen string `yaml:"listen" json:"listen"`
}

type PrintingConfig struct {
	Timeout         Duration     `yaml:"timeout" json:"timeout"`
	Mode            printer.Mode `yaml:"mode" json:"mode"`
	Parallelism     int          `yaml:"parallelism" json:"parallelism"`
	AllowedNetworks []string     `yaml:"allowed_networks" json:"allowedNetworks"`
	Header          string       `yaml:"header" json:"header"`
	Footer          string       `yaml:"footer" json:"footer"`
	Currency        string       `yaml:"currency" json:"currency"`
}

type FallbackConfig struct {
	ChromePath string   `yaml:"chrome_path" json:"chromePath"`
	Timeout    Duration `yaml:"timeout" json:"timeout"`
}

type SettingsConfig struct {
	Driver string `yaml:"driver" json:"driver"`
	DSN    string `yaml:"dsn" json:"dsn"`
}

type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Exporter string `yaml:"exporter" json:"exporter"`
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	Insecure bool   `yaml:"insecure" json:"insecure"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

func Default() Config {
	return Config{
		App: AppConfig{Name: "Refugio POS"},
		API: APIConfig{Listen: "127.0.0.1:8080"},
		Printing: PrintingConfig{
			Timeout:         Duration(printer.DefaultTimeout),
			Mode:            printer.ModeFireAndForget,
			Parallelism:     4,
			AllowedNetworks: append([]string(nil), printer.DefaultAllowedNetworks...),
			Header:          ticket.DefaultHeader,
			Footer:          ticket.DefaultFooter,
			Currency:        ticket.DefaultCurrency,
		},
		Fallback:  FallbackConfig{Timeout: Duration(15 * time.Second)},
		Settings:  SettingsConfig{Driver: DriverMemory},
		Telemetry: TelemetryConfig{Exporter: ExporterStdout, Endpoint: "localhost:4317", Insecure: true},
		Log:       LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads path over the defaults and applies POS_* environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if err := cfg.LoadFromFile(path); err != nil {
		return Config{}, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) LoadFromFile(path string) error {
	clean := filepath.Clean(path)
	ext := filepath.Ext(clean)
	data, err := os.ReadFile(clean)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", clean, err)
	}
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse YAML config %s: %w", clean, err)
		}
	case ".json":
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse JSON config %s: %w", clean, err)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return nil
}

// Save writes the config in the format given by the extension of path.
func (c Config) Save(path string) error {
	var (
		data []byte
		err  error
	)
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	case ".json":
		data, err = json.MarshalIndent(c, "", "  ")
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// ApplyEnv overrides fields from POS_* variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("POS_TERMINAL_KEY", &c.App.TerminalKey)
	str("POS_HUB_URL", &c.Hub.URL)
	str("POS_HUB_API_KEY", &c.Hub.APIKey)
	str("POS_API_LISTEN", &c.API.Listen)
	str("POS_PRINT_HEADER", &c.Printing.Header)
	str("POS_CHROME_PATH", &c.Fallback.ChromePath)
	str("POS_SETTINGS_DRIVER", &c.Settings.Driver)
	str("POS_SETTINGS_DSN", &c.Settings.DSN)
	str("POS_TELEMETRY_EXPORTER", &c.Telemetry.Exporter)
	str("POS_OTLP_ENDPOINT", &c.Telemetry.Endpoint)
	str("POS_LOG_LEVEL", &c.Log.Level)
	str("POS_LOG_FORMAT", &c.Log.Format)

	if v, ok := lookup("POS_PRINT_MODE"); ok && v != "" {
		c.Printing.Mode = printer.Mode(v)
	}
	if v, ok := lookup("POS_ALLOWED_NETWORKS"); ok && v != "" {
		c.Printing.AllowedNetworks = nil
		for _, n := range strings.Split(v, ",") {
			if n = strings.TrimSpace(n); n != "" {
				c.Printing.AllowedNetworks = append(c.Printing.AllowedNetworks, n)
			}
		}
	}
	if v, ok := lookup("POS_PRINT_TIMEOUT"); ok && v != "" {
		if err := c.Printing.Timeout.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("POS_PRINT_TIMEOUT: %w", err)
		}
	}
	if v, ok := lookup("POS_PRINT_PARALLELISM"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: POS_PRINT_PARALLELISM %q", ErrInvalidConfig, v)
		}
		c.Printing.Parallelism = n
	}
	for key, dst := range map[string]*bool{
		"POS_HUB_ENABLED":       &c.Hub.Enabled,
		"POS_TELEMETRY_ENABLED": &c.Telemetry.Enabled,
	} {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%w: %s %q", ErrInvalidConfig, key, v)
			}
			*dst = b
		}
	}
	return nil
}

func (c Config) Validate() error {
	switch c.Printing.Mode {
	case printer.ModeFireAndForget, printer.ModeConfirmed:
	default:
		return fmt.Errorf("%w: printing mode %q", ErrInvalidConfig, c.Printing.Mode)
	}
	if c.Printing.Timeout <= 0 {
		return fmt.Errorf("%w: printing timeout must be positive", ErrInvalidConfig)
	}
	if c.Printing.Parallelism < 1 {
		return fmt.Errorf("%w: printing parallelism must be at least 1", ErrInvalidConfig)
	}
	if _, err := printer.NewPolicy(c.Printing.AllowedNetworks); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	switch c.Settings.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Settings.DSN == "" {
			return fmt.Errorf("%w: sqlite settings need a dsn", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: settings driver %q", ErrInvalidConfig, c.Settings.Driver)
	}
	if c.Telemetry.Enabled && c.Telemetry.Exporter != ExporterStdout && c.Telemetry.Exporter != ExporterOTLP {
		return fmt.Errorf("%w: telemetry exporter %q", ErrInvalidConfig, c.Telemetry.Exporter)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log level %q", ErrInvalidConfig, c.Log.Level)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("%w: log format %q", ErrInvalidConfig, c.Log.Format)
	}
	if c.Hub.Enabled && (c.Hub.URL == "" || c.App.TerminalKey == "") {
		return fmt.Errorf("%w: hub needs url and terminal_key", ErrInvalidConfig)
	}
	return nil
}

// Encoder builds the ticket encoder from the printing section.
func (c Config) Encoder() ticket.Encoder {
	enc := ticket.NewEncoder()
	if c.Printing.Header != "" {
		enc.Header = c.Printing.Header
	}
	if c.Printing.Footer != "" {
		enc.Footer = c.Printing.Footer
	}
	if c.Printing.Currency != "" {
		enc.Currency = c.Printing.Currency
	}
	return enc
}

// TransportOptions maps the printing section to printer transport options.
func (c Config) TransportOptions() (printer.Options, error) {
	policy, err := printer.NewPolicy(c.Printing.AllowedNetworks)
	if err != nil {
		return printer.Options{}, err
	}
	return printer.Options{
		Timeout: c.Printing.Timeout.Std(),
		Mode:    c.Printing.Mode,
		Policy:  &policy,
	}, nil
}
