// Package config loads and saves the rig configuration from
// ~/.config/guitar-midi/config.yaml. A missing file is not an error:
// everything has a usable default.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jorgetrad99/guitar-midi-sub000/engine"
)

// DeviceRule maps a port-name substring to a device type. Rules from the
// config file are checked before the built-in ones.
type DeviceRule struct {
	Match string `yaml:"match"`
	Type  string `yaml:"type"`
}

// SynthConfig selects the sound generator output.
type SynthConfig struct {
	// PortName is a substring matched against output port names. Empty
	// picks the first non-excluded output; if nothing matches, commands
	// go to the log instead.
	PortName string `yaml:"portName,omitempty"`
}

// StoreConfig controls persistence of assignments and presets.
type StoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
}

// MQTTConfig enables event publishing to a broker.
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker,omitempty"`
	ClientID string `yaml:"clientId,omitempty"`
}

// Config is the top-level configuration structure.
type Config struct {
	ScanInterval time.Duration `yaml:"scanInterval,omitempty"`
	BlockSize    int           `yaml:"blockSize,omitempty"`
	Synth        SynthConfig   `yaml:"synth,omitempty"`
	Store        StoreConfig   `yaml:"store,omitempty"`
	MQTT         MQTTConfig    `yaml:"mqtt,omitempty"`
	Devices      []DeviceRule  `yaml:"devices,omitempty"`
	Exclude      []string      `yaml:"exclude,omitempty"`
	LogLevel     string        `yaml:"logLevel,omitempty"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ScanInterval: engine.DefaultScanInterval,
		BlockSize:    engine.DefaultBlockSize,
		Store:        StoreConfig{Enabled: true},
		LogLevel:     "info",
	}
}

// ConfigDir returns the config directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "guitar-midi"), nil
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the config at path, or from the default location when path is
// empty. A missing file yields defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return DefaultConfig(), nil
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = engine.DefaultScanInterval
	}
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = engine.DefaultBlockSize
	}
	return cfg, nil
}

// Save writes the config to the default location.
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// DatabasePath resolves the store file, defaulting next to the config.
func (c *Config) DatabasePath() (string, error) {
	if c.Store.Path != "" {
		return c.Store.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "devices.db"), nil
}

// MatchRules converts the configured device rules for the classifier.
// Unknown type names are skipped.
func (c *Config) MatchRules() []engine.MatchRule {
	var out []engine.MatchRule
	for _, r := range c.Devices {
		typ, ok := parseType(r.Type)
		if !ok || r.Match == "" {
			continue
		}
		out = append(out, engine.MatchRule{Pattern: r.Match, Type: typ})
	}
	return out
}

func parseType(name string) (engine.DeviceType, bool) {
	switch name {
	case "keyboard":
		return engine.TypeKeyboard, true
	case "hexaphonic":
		return engine.TypeHexaphonic, true
	case "foot-controller":
		return engine.TypeFootController, true
	case "percussion-pad":
		return engine.TypePercussionPad, true
	case "generic":
		return engine.TypeGeneric, true
	}
	return engine.TypeUnknown, false
}
