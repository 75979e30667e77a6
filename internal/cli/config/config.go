// Package config loads CLI configuration the usual way: built-in defaults,
// then an expsql.yaml config file, then EXPSQL_* environment variables,
// then explicitly-set flags, each layer overriding the previous one.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Defaults.
const (
	DefaultConfigDir = "config"
	DefaultMacrosDir = "macros"
)

// Config is the CLI configuration.
type Config struct {
	// ConfigDir is the root of the layered definition files
	// (definitions/, defaults/, experiments/).
	ConfigDir string `koanf:"config_dir"`
	// MacrosDir holds user .star macro files.
	MacrosDir string `koanf:"macros_dir"`
	// Verbose enables debug logging.
	Verbose bool `koanf:"verbose"`
}

// findConfigFile finds the config file to use.
// Priority: explicit path > expsql.yaml > expsql.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{"expsql.yaml", "expsql.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// Load loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"config_dir": DefaultConfigDir,
		"macros_dir": DefaultMacrosDir,
		"verbose":    false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configFile := findConfigFile(cfgFile)
	if configFile != "" {
		if err := k.Load(file.Provider(configFile), kyaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	}

	// EXPSQL_CONFIG_DIR -> config_dir
	if err := k.Load(env.Provider("EXPSQL_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "EXPSQL_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Paths from the config file resolve relative to the file's directory.
	if configFile != "" {
		base := filepath.Dir(configFile)
		cfg.ConfigDir = resolveRelativeTo(cfg.ConfigDir, base)
		cfg.MacrosDir = resolveRelativeTo(cfg.MacrosDir, base)
	}

	return &cfg, nil
}

func resolveRelativeTo(path, base string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
