// Package config handles loading and saving of editor settings.
package config

import (
	"fmt"

	"github.com/Faultbox/qvpen-tools/internal/logger"
)

// Config holds all editor settings. It is built once at startup and passed
// by value, so components never observe later changes.
type Config struct {
	Editing EditingConfig `yaml:"editing"`
	Logging LoggingConfig `yaml:"logging"`
}

// EditingConfig holds settings for the editing session.
type EditingConfig struct {
	HistoryLimit     int     `yaml:"history_limit" split_words:"true"`
	DefaultLineWidth float64 `yaml:"default_line_width" split_words:"true"`
	SnapToGrid       bool    `yaml:"snap_to_grid" split_words:"true"`
	SnapIncrement    float64 `yaml:"snap_increment" split_words:"true"`
	NormalizeOnLoad  bool    `yaml:"normalize_on_load" split_words:"true"`
	InterpolateTrim  bool    `yaml:"interpolate_trim" split_words:"true"` // Cut at box faces instead of dropping points
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() Config {
	return Config{
		Editing: EditingConfig{
			HistoryLimit:     20,
			DefaultLineWidth: 0.03,
			SnapToGrid:       false,
			SnapIncrement:    0.1,
			NormalizeOnLoad:  false,
			InterpolateTrim:  false,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.Editing.HistoryLimit <= 0 {
		return fmt.Errorf("editing.history_limit must be positive, got %d", c.Editing.HistoryLimit)
	}
	if c.Editing.DefaultLineWidth <= 0 {
		return fmt.Errorf("editing.default_line_width must be positive, got %v", c.Editing.DefaultLineWidth)
	}
	if c.Editing.SnapIncrement <= 0 {
		return fmt.Errorf("editing.snap_increment must be positive, got %v", c.Editing.SnapIncrement)
	}
	if !logger.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	return nil
}
