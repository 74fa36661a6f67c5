package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// decoders maps engine-config file extensions to their unmarshal functions.
var decoders = map[string]func([]byte, any) error{
	".yaml": yaml.Unmarshal,
	".yml":  yaml.Unmarshal,
	".json": json.Unmarshal,
}

// FromFile reads an engine configuration file, picking the decoder by
// extension (.yaml, .yml, or .json).
func FromFile(path string) (Config, error) {
	ext := strings.ToLower(filepath.Ext(path))
	decode, ok := decoders[ext]
	if !ok {
		return Config{}, fmt.Errorf("unsupported config extension %q", ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read engine config: %w", err)
	}
	return decodeConfig(data, decode)
}

// FromYAML parses YAML engine configuration.
func FromYAML(data []byte) (Config, error) {
	return decodeConfig(data, yaml.Unmarshal)
}

// FromJSON parses JSON engine configuration.
func FromJSON(data []byte) (Config, error) {
	return decodeConfig(data, json.Unmarshal)
}

// SettingsFromFile loads an engine configuration file and resolves it into
// validated Settings in one step. Nodes that do not need the raw Config
// (for extra sections of their own) should prefer this over FromFile.
func SettingsFromFile(path string) (Settings, error) {
	cfg, err := FromFile(path)
	if err != nil {
		return Settings{}, err
	}
	return SettingsFrom(cfg)
}

func decodeConfig(data []byte, decode func([]byte, any) error) (Config, error) {
	var m map[string]any
	if err := decode(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse engine config: %w", err)
	}
	return New(m), nil
}
