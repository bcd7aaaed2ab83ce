package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. QVPEN_HISTORY_LIMIT.
const EnvPrefix = "QVPEN"

// FileName is the config file looked up in the working and config dirs.
const FileName = "qvpen.yaml"

// Load builds the configuration with priority: defaults < file < env < flags.
// flags may be nil.
func Load(flags *Flags) (Config, error) {
	cfg := Default()

	configPath := ""
	if flags != nil {
		configPath = flags.ConfigPath
	}
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" {
		if err := loadFromFile(&cfg, configPath); err != nil {
			return Config{}, fmt.Errorf("loading config from %s: %w", configPath, err)
		}
	}

	if err := loadFromEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("reading environment: %w", err)
	}

	if flags != nil {
		flags.apply(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// findConfigFile looks for config in standard locations.
func findConfigFile() string {
	candidates := []string{
		"./" + FileName,
		filepath.Join(ConfigDir(), FileName),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "QvPenTools")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "QvPenTools")
	default: // Linux and others
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "qvpen-tools")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "qvpen-tools")
	}
}

// loadFromFile loads config from a YAML file, merging with existing values.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// loadFromEnv overrides fields whose QVPEN_* variable is set. Keys are derived
// from field names only (QVPEN_HISTORY_LIMIT, QVPEN_LOG_LEVEL); explicit
// envconfig tags would also match the unprefixed name.
func loadFromEnv(cfg *Config) error {
	if err := envconfig.Process(EnvPrefix, &cfg.Editing); err != nil {
		return err
	}
	return envconfig.Process(EnvPrefix+"_LOG", &cfg.Logging)
}
