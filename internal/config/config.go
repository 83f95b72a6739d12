// Package config loads and validates server configuration from file,
// environment, and defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ankisyncd/ankisyncd-go/internal/bytesize"
)

// Config is the server's static configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (ANKISYNCD_*)
//  2. Configuration file (YAML)
//  3. Default values
type Config struct {
	Host         string `mapstructure:"host" yaml:"host" validate:"required"`
	Port         int    `mapstructure:"port" yaml:"port" validate:"required,min=1,max=65535"`
	BaseURL      string `mapstructure:"base_url" yaml:"base_url" validate:"required"`
	BaseMediaURL string `mapstructure:"base_media_url" yaml:"base_media_url" validate:"required"`

	// DataRoot is the directory containing one subdirectory per user
	// (collection.anki2, collection.media.db2, collection.media/).
	DataRoot string `mapstructure:"data_root" yaml:"data_root" validate:"required"`

	// SessionManager selects the Session Store backend: memory, sqlite, postgres.
	SessionManager string `mapstructure:"session_manager" yaml:"session_manager" validate:"required,oneof=memory sqlite postgres"`

	// UserManager selects the User Manager backend: sqlite, static.
	UserManager string `mapstructure:"user_manager" yaml:"user_manager" validate:"required,oneof=sqlite static"`

	// FullSyncManager selects the Full-Sync Manager implementation.
	// Only "default" is built in; the field exists to keep the
	// pluggable-by-config-string shape explicit (spec Design Notes §9).
	FullSyncManager string `mapstructure:"full_sync_manager" yaml:"full_sync_manager" validate:"required"`

	Database DatabaseConfig `mapstructure:"database" yaml:"database"`

	// MediaMaxMeta bounds the _meta entry of an uploaded media zip.
	MediaMaxMeta bytesize.ByteSize `mapstructure:"media_max_meta" yaml:"media_max_meta"`

	// MediaMaxTotal bounds the total uncompressed size of an uploaded media zip.
	MediaMaxTotal bytesize.ByteSize `mapstructure:"media_max_total" yaml:"media_max_total"`

	// MonitorFrequency is how often the worker pool's inactivity monitor runs.
	MonitorFrequency time.Duration `mapstructure:"monitor_frequency" yaml:"monitor_frequency"`

	// MonitorInactivity is how long a collection may sit idle before closing.
	MonitorInactivity time.Duration `mapstructure:"monitor_inactivity" yaml:"monitor_inactivity"`

	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port"`
}

// DatabaseConfig configures the session/user store backend.
type DatabaseConfig struct {
	// SQLitePath is the path to the sqlite database file (SessionManager/UserManager = sqlite).
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`

	// Postgres DSN fields (SessionManager = postgres).
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Name     string `mapstructure:"name" yaml:"name"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"`
	SSLMode  string `mapstructure:"sslmode" yaml:"sslmode"`
}

var validate = validator.New()

// Load loads configuration from file, environment, and defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if !found {
		return cfg, nil
	}

	if err := v.Unmarshal(cfg, viper.DecodeHook(decodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration, returning a user-friendly error when no
// config file exists at the requested (or default) location.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"initialize one first:\n  ankisyncd init", GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	return Load(configPath)
}

// InitConfig writes a default configuration file to the default location,
// refusing to overwrite an existing file unless force is true. Returns the
// path written.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	return path, InitConfigToPath(path, force)
}

// InitConfigToPath writes a default configuration file to path, refusing to
// overwrite an existing file unless force is true.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
		}
	}
	return SaveConfig(defaultConfig(), path)
}

// SaveConfig writes cfg to path in YAML form.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("ANKISYNCD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}

	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

func decodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		if s, ok := data.(string); ok {
			return time.ParseDuration(s)
		}
		return data, nil
	}
}

func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ankisyncd")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "ankisyncd")
}

// GetDefaultConfigPath returns the default config file location.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether the default config file is present.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}
