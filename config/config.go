package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config stores retuning defaults. Flags override anything set here.
type Config struct {
	// BaseFreqHz is the frequency anchored to MIDI key 60.
	BaseFreqHz float64 `json:"baseFreqHz,omitempty"`
	// PitchBendRange overrides the preset's bend range when non-zero.
	PitchBendRange int `json:"pitchBendRange,omitempty"`
	// OutputSuffix is appended to the input name when no output path is
	// given, e.g. song.mid -> song_mpe.mid.
	OutputSuffix string `json:"outputSuffix,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		BaseFreqHz:   261.625565, // 12-TET middle C
		OutputSuffix: "_mpe",
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-retune"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	path, err := ConfigPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
