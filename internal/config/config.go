// Package config resolves the server's CLI surface (spec.md §6): flags
// first, with an optional YAML file underneath supplying defaults for
// anything not set on the command line. Grounded on the flag-parsing
// style of the teacher's app/cmd/server/main.go, with the YAML overlay
// borrowed from how edirooss-zmux-server and johnjansen-torua both load
// a config file via gopkg.in/yaml.v3 before applying explicit overrides.
package config

import (
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StoreVariant selects which store.Store implementation the server runs.
type StoreVariant string

const (
	VariantFilesystem StoreVariant = "filesystem"
	VariantMemory     StoreVariant = "memory"
)

// Config is the fully resolved set of server options.
type Config struct {
	IndexDir  string       `yaml:"index_dir"`
	Host      string       `yaml:"host"`
	Port      int          `yaml:"port"`
	LogLevel  string       `yaml:"log_level"`
	Variant   StoreVariant `yaml:"store"`
	AdminAddr string       `yaml:"admin_addr"`
}

// fileConfig mirrors Config for YAML decoding; every field is optional so
// a config file can supply as few or as many overrides as it likes.
type fileConfig struct {
	IndexDir  *string `yaml:"index_dir"`
	Host      *string `yaml:"host"`
	Port      *int    `yaml:"port"`
	LogLevel  *string `yaml:"log_level"`
	Variant   *string `yaml:"store"`
	AdminAddr *string `yaml:"admin_addr"`
}

// Defaults matches spec.md §6's CLI surface table.
func Defaults() Config {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return Config{
		IndexDir: cwd,
		Host:     "0.0.0.0",
		Port:     8080,
		LogLevel: "INFO",
		Variant:  VariantFilesystem,
	}
}

// Parse builds a Config from command-line arguments, optionally layering
// a YAML config file underneath explicit flags. Flags always win over the
// config file, and the config file always wins over the built-in
// defaults.
func Parse(args []string) (Config, error) {
	cfg := Defaults()

	fs := flag.NewFlagSet("depindex-server", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional YAML config file")
	indexDir := fs.String("i", "", "index root directory (filesystem store) or snapshot file (memory store)")
	host := fs.String("o", "", "bind host/address")
	port := fs.Int("p", 0, "bind TCP port")
	logLevel := fs.String("l", "", "log verbosity: DEBUG, INFO, WARN, ERROR")
	variant := fs.String("t", "", "store variant: filesystem or memory")
	adminAddr := fs.String("admin", "", "admin HTTP server address (disabled if empty)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if *configPath != "" {
		if err := applyFile(&cfg, *configPath); err != nil {
			return Config{}, err
		}
	}

	setIfFlagged(fs, "i", func() { cfg.IndexDir = *indexDir })
	setIfFlagged(fs, "o", func() { cfg.Host = *host })
	setIfFlagged(fs, "p", func() { cfg.Port = *port })
	setIfFlagged(fs, "l", func() { cfg.LogLevel = *logLevel })
	setIfFlagged(fs, "admin", func() { cfg.AdminAddr = *adminAddr })
	setIfFlagged(fs, "t", func() {
		cfg.Variant = StoreVariant(*variant)
	})

	if cfg.Variant != VariantFilesystem && cfg.Variant != VariantMemory {
		return Config{}, fmt.Errorf("config: unknown store variant %q (want %q or %q)", cfg.Variant, VariantFilesystem, VariantMemory)
	}

	return cfg, nil
}

// setIfFlagged calls apply only when name was explicitly set on the
// command line, so an unset flag doesn't clobber a value already loaded
// from a config file.
func setIfFlagged(fs *flag.FlagSet, name string, apply func()) {
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			apply()
		}
	})
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if fc.IndexDir != nil {
		cfg.IndexDir = *fc.IndexDir
	}
	if fc.Host != nil {
		cfg.Host = *fc.Host
	}
	if fc.Port != nil {
		cfg.Port = *fc.Port
	}
	if fc.LogLevel != nil {
		cfg.LogLevel = *fc.LogLevel
	}
	if fc.Variant != nil {
		cfg.Variant = StoreVariant(*fc.Variant)
	}
	if fc.AdminAddr != nil {
		cfg.AdminAddr = *fc.AdminAddr
	}

	return nil
}
