// Package runtimeconfig loads a types.RuntimeConfig from a YAML file on
// disk. A missing file or unset fields fall back to types.DefaultRuntimeConfig,
// so a deployment only needs to name the options it wants to override.
package runtimeconfig

import (
	"errors"
	"fmt"
	"os"

	"github.com/gagents/gagents/pkg/types"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned by Load when path does not exist. Callers that
// treat a missing config file as "use the defaults" should check for it
// with errors.Is rather than os.IsNotExist.
var ErrNotFound = errors.New("runtimeconfig: file not found")

// Load reads and parses the YAML file at path into a types.RuntimeConfig.
// Parsing starts from types.DefaultRuntimeConfig, so keys absent from the
// file keep their defaults; WithDefaults then replaces zero values.
func Load(path string) (types.RuntimeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return types.RuntimeConfig{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return types.RuntimeConfig{}, fmt.Errorf("read runtime config: %w", err)
	}

	cfg := types.DefaultRuntimeConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return types.RuntimeConfig{}, fmt.Errorf("parse runtime config %s: %w", path, err)
	}

	return cfg.WithDefaults(), nil
}

// LoadOrDefault behaves like Load, except a missing file yields
// types.DefaultRuntimeConfig instead of an error. Any other read or parse
// error is still surfaced.
func LoadOrDefault(path string) (types.RuntimeConfig, error) {
	if path == "" {
		return types.DefaultRuntimeConfig(), nil
	}
	cfg, err := Load(path)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return types.DefaultRuntimeConfig(), nil
		}
		return types.RuntimeConfig{}, err
	}
	return cfg, nil
}
