package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/roach88/strictfetch/internal/strict"
)

const (
	maxWalkDepth = 25
)

// configNames are tried in order in every directory of the walk.
var configNames = []string{"strictfetch.yaml", "strictfetch.yml"}

// Config represents the strictfetch configuration from strictfetch.yaml.
type Config struct {
	// Schema is the directory of CUE model files.
	Schema string `mapstructure:"schema"`

	// Database is the SQLite path. ":memory:" opens a private database.
	Database string `mapstructure:"database"`

	Strict StrictConfig `mapstructure:"strict"`
	Log    LogConfig    `mapstructure:"log"`
}

// StrictConfig holds strict-mode settings.
type StrictConfig struct {
	// GlobalOverride is unset, true or false.
	GlobalOverride string `mapstructure:"global_override"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// LoadConfig discovers and loads configuration with proper precedence:
// flags > env > config file > defaults. Flags are applied by the caller.
//
// Returns the loaded config, the path to the config file (empty if none found),
// and any error encountered.
func LoadConfig(explicitConfigPath string) (*Config, string, error) {
	v := viper.New()

	// 1. Set defaults first (lowest precedence)
	setDefaults(v)

	// 2. Set up environment variable binding (STRICTFETCH_STRICT_GLOBAL_OVERRIDE)
	v.SetEnvPrefix("STRICTFETCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 3. Find and load config file
	configPath, err := findConfigFile(explicitConfigPath)
	if err != nil {
		return nil, "", err
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, configPath, fmt.Errorf("reading config file: %w", err)
		}
	}

	// 4. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, configPath, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, configPath, err
	}

	return &cfg, configPath, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("schema", "schema")
	v.SetDefault("database", ":memory:")
	v.SetDefault("strict.global_override", "unset")
	v.SetDefault("log.level", "warn")
}

// Validate checks enumerated values.
func (c *Config) Validate() error {
	if _, err := c.Override(); err != nil {
		return fmt.Errorf("strict.global_override: %w", err)
	}
	if _, err := c.Level(); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// Override parses strict.global_override.
func (c *Config) Override() (strict.Override, error) {
	return strict.ParseOverride(c.Strict.GlobalOverride)
}

// Level parses log.level.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelWarn, fmt.Errorf("invalid level %q", c.Log.Level)
	}
	return level, nil
}

// findConfigFile finds the config file to use.
// If explicitPath is provided, it validates the file exists.
// Otherwise, it walks up from cwd looking for strictfetch.yaml or
// strictfetch.yml, stopping at a .git directory or after maxWalkDepth levels.
func findConfigFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}

	dir := cwd
	for i := 0; i < maxWalkDepth; i++ {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}

		// Check for repo boundary (.git file or directory)
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", nil // No config found, use defaults
}
