package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix for environment variable overrides, e.g.
// PROCWARDEN_METRICS_ADDR=:9000.
const EnvPrefix = "PROCWARDEN_"

// Load layers configuration into cfg: struct defaults, then the YAML file
// at path (if any), then PROCWARDEN_* environment variables. Later layers
// win.
func Load(path string, cfg *Config) error {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(cfg, "koanf"), nil); err != nil {
		return fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// Config keys are flat, so PROCWARDEN_METRICS_ADDR maps to
	// metrics_addr directly. The workers list is file-only.
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return fmt.Errorf("load environment: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}
