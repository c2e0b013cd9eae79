// Package config loads per-service configuration from an optional config.toml
// file overridden by environment variables, matching spec §6.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Source is a merged TOML-file-plus-environment view. Load reads the optional
// file first so environment lookups can override it, the same precedence order
// the original Rust services used (dotenv file, then process environment).
type Source struct {
	file map[string]string
}

// Load reads path (if it exists; a missing file is not an error) into a flat
// string-keyed table. Lookups are exact: callers pass the environment variable
// name and the TOML key separately to String.
func Load(path string) (*Source, error) {
	src := &Source{file: map[string]string{}}

	if path == "" {
		return src, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return src, nil
	}

	if _, err := toml.DecodeFile(path, &src.file); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return src, nil
}

// String resolves key, preferring the environment variable envName, falling
// back to the TOML table, then def. An empty envName disables the environment
// lookup.
func (s *Source) String(envName, tomlKey, def string) string {
	if envName != "" {
		if v, ok := os.LookupEnv(envName); ok && v != "" {
			return v
		}
	}
	if s != nil {
		if v, ok := s.file[tomlKey]; ok && v != "" {
			return v
		}
	}
	return def
}

// RequireString is String but returns an error when the resolved value is empty.
func (s *Source) RequireString(envName, tomlKey string) (string, error) {
	v := s.String(envName, tomlKey, "")
	if v == "" {
		return "", fmt.Errorf("config: missing required value (env %s / toml %s)", envName, tomlKey)
	}
	return v, nil
}
