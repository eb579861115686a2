// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Server ServerConfig `toml:"server"`
	Reader ReaderConfig `toml:"reader"`
	Idle   IdleConfig   `toml:"idle"`
}

// ServerConfig maps remote gateway settings.
type ServerConfig struct {
	BaseURL *string `toml:"base-url"`
}

// ReaderConfig maps RSVP playback settings.
type ReaderConfig struct {
	WPM        *int  `toml:"wpm"`
	CustomOnly *bool `toml:"custom-only"`
}

// IdleConfig maps inactivity settings.
type IdleConfig struct {
	TimeoutMinutes *int `toml:"timeout-minutes"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}
