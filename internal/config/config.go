package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const (
	envPrefix      = "QUERYDESK_"
	configFileName = "config.yaml"

	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

type Config struct {
	Backend struct {
		URL         string `koanf:"url" validate:"required,url"`
		AgentPrefix string `koanf:"agent_prefix"`
		TimeoutMs   int    `koanf:"timeout_ms" validate:"gte=0"`
		CSRFToken   string `koanf:"csrf_token"`
	} `koanf:"backend"`
	Mirror struct {
		Driver string `koanf:"driver" validate:"oneof=file sqlite"`
		Path   string `koanf:"path"`
	} `koanf:"mirror"`
	Dispatch struct {
		Concurrency   int `koanf:"concurrency" validate:"gte=1"`
		CallTimeoutMs int `koanf:"call_timeout_ms" validate:"gte=0"`
	} `koanf:"dispatch"`
	Display struct {
		MaxColWidth int  `koanf:"max_col_width" validate:"gte=0"`
		Plain       bool `koanf:"plain"`
	} `koanf:"display"`
	Log struct {
		Level string `koanf:"level"`
	} `koanf:"log"`

	// FileUsed is the config file that was read, if any.
	FileUsed string `koanf:"-"`
}

func (c *Config) BackendTimeout() time.Duration {
	return time.Duration(c.Backend.TimeoutMs) * time.Millisecond
}

func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.Dispatch.CallTimeoutMs) * time.Millisecond
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"backend.url":              "http://127.0.0.1:8000",
		"backend.agent_prefix":     "/api",
		"backend.timeout_ms":       5000,
		"backend.csrf_token":       "",
		"mirror.driver":            DriverFile,
		"mirror.path":              "",
		"dispatch.concurrency":     1,
		"dispatch.call_timeout_ms": 0,
		"display.max_col_width":    32,
		"display.plain":            false,
		"log.level":                "warn",
	}
}

// FlagKeys maps command-line flag names to config keys. Flags not listed
// here are not configuration.
var FlagKeys = map[string]string{
	"server":          "backend.url",
	"agent-prefix":    "backend.agent_prefix",
	"timeout-ms":      "backend.timeout_ms",
	"csrf-token":      "backend.csrf_token",
	"mirror":          "mirror.driver",
	"mirror-path":     "mirror.path",
	"concurrency":     "dispatch.concurrency",
	"call-timeout-ms": "dispatch.call_timeout_ms",
	"max-col-width":   "display.max_col_width",
	"plain":           "display.plain",
	"log-level":       "log.level",
}

// envKey turns QUERYDESK_BACKEND_AGENT_PREFIX into backend.agent_prefix.
// Section names never contain underscores.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.Replace(s, "_", ".", 1)
}

func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(home, ".querydesk")
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return "", err
		}
	}
	return configDir, nil
}

func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

func GetHistoryPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history"), nil
}

// LoadConfig reads configuration from defaults, the config file, the
// environment and flags, later sources winning. A .env file in the working
// directory is applied to the environment first without overriding
// variables that are already set. cfgFile may be empty.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configFileUsed := cfgFile
	if configFileUsed == "" {
		if path, err := GetConfigPath(); err == nil {
			if _, err := os.Stat(path); err == nil {
				configFileUsed = path
			}
		}
	}
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key, ok := FlagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.FileUsed = configFileUsed
	cfg.Mirror.Driver = strings.ToLower(strings.TrimSpace(cfg.Mirror.Driver))

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// MirrorPath is where the mirror lives: the configured path, or a default
// inside the config directory that depends on the driver.
func (c *Config) MirrorPath() (string, error) {
	if c.Mirror.Path != "" {
		return c.Mirror.Path, nil
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	if c.Mirror.Driver == DriverSQLite {
		return filepath.Join(dir, "querydesk.db"), nil
	}
	return filepath.Join(dir, "mirror"), nil
}
