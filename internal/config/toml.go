// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Source SourceConfig `toml:"source"`
	Filter FilterConfig `toml:"filter"`
	Export ExportConfig `toml:"export"`
	Log    LogConfig    `toml:"log"`
}

// SourceConfig maps data source settings.
type SourceConfig struct {
	Kind        *string        `toml:"kind"`
	Path        *string        `toml:"path"`
	Encoding    *string        `toml:"encoding"`
	APIEndpoint *string        `toml:"api-endpoint"`
	APIKey      *string        `toml:"api-key"`
	APITimeout  *time.Duration `toml:"api-timeout"`
	APIDelay    *time.Duration `toml:"api-delay"`
	Fallback    *string        `toml:"fallback"`
	Rows        *int           `toml:"rows"`
	Seed        *int64         `toml:"seed"`
	Dataset     *string        `toml:"dataset"`
}

// FilterConfig maps the initial filter selection.
type FilterConfig struct {
	Start     *string  `toml:"start"`
	End       *string  `toml:"end"`
	Countries []string `toml:"countries"`
	Sports    []string `toml:"sports"`
	Devices   []string `toml:"devices"`
}

// ExportConfig maps export settings.
type ExportConfig struct {
	Dir *string `toml:"dir"`
}

// LogConfig maps logging settings.
type LogConfig struct {
	Level  *string `toml:"level"`
	Format *string `toml:"format"`
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
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}
