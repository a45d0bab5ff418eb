package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/Riboost-Studio/refugio-pos-printing/internal/model"
)

// LoadOrSetup loads the file named by model.ContextConfigFile. When it does not exist
// yet, the operator is asked for the hub settings and a new file is written.
func LoadOrSetup(ctx context.Context, in io.Reader, out io.Writer) (Config, error) {
	path, _ := ctx.Value(model.ContextConfigFile).(string)
	if path == "" {
		return Config{}, fmt.Errorf("%w: no config file in context", ErrInvalidConfig)
	}
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("stat config file: %w", err)
	}

	cfg := Default()
	if v, ok := ctx.Value(model.ContextAppName).(string); ok && v != "" {
		cfg.App.Name = v
	}
	if v, ok := ctx.Value(model.ContextAppVersion).(string); ok {
		cfg.App.Version = v
	}
	if err := Setup(&cfg, in, out); err != nil {
		return Config{}, err
	}
	if err := cfg.Save(path); err != nil {
		return Config{}, fmt.Errorf("save config: %w", err)
	}
	fmt.Fprintln(out, "Configuration saved.")

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Setup asks for the first-run values. Empty answers keep the defaults.
func Setup(cfg *Config, in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)
	ask := func(prompt, def string) (string, error) {
		if def != "" {
			fmt.Fprintf(out, "%s (default: %s): ", prompt, def)
		} else {
			fmt.Fprintf(out, "%s: ", prompt)
		}
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read answer: %w", err)
		}
		if line = strings.TrimSpace(line); line != "" {
			return line, nil
		}
		return def, nil
	}

	fmt.Fprintln(out, "--- Initial Setup ---")

	var err error
	if cfg.Hub.URL, err = ask("Enter hub WebSocket URL (empty to run standalone)", cfg.Hub.URL); err != nil {
		return err
	}
	cfg.Hub.Enabled = cfg.Hub.URL != ""
	if cfg.Hub.Enabled {
		if cfg.Hub.APIKey, err = ask("Enter hub API key", cfg.Hub.APIKey); err != nil {
			return err
		}
	}
	if cfg.App.TerminalKey == "" {
		cfg.App.TerminalKey = uuid.NewString()
	}
	if cfg.App.TerminalKey, err = ask("Enter terminal key", cfg.App.TerminalKey); err != nil {
		return err
	}
	if cfg.Printing.Header, err = ask("Enter business name for tickets", cfg.Printing.Header); err != nil {
		return err
	}
	if cfg.Settings.DSN, err = ask("Enter settings database file (empty keeps settings in memory)", cfg.Settings.DSN); err != nil {
		return err
	}
	if cfg.Settings.DSN != "" {
		cfg.Settings.Driver = DriverSQLite
	}
	return nil
}
