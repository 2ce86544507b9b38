package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/viper"

	"stream-access-guard/internal/notify"
)

type Config struct {
	// Secret key for signing admin session tokens. Must be set in production.
	Secret string `mapstructure:"secret"`
	// Admin session token TTL in minutes.
	AdminTokenTTL uint `mapstructure:"admin_token_ttl"`
	// Bcrypt hash of the admin password for /auth/login.
	AdminPasswordHash string `mapstructure:"admin_password_hash"`

	LogLevel string `mapstructure:"log_level"`

	// Comma separated list of CIDR networks allowed to reach the admin API.
	// Empty means no restriction.
	AllowedNetworks string `mapstructure:"allowed_networks"`

	// Fallback block decision for users without an explicit default_block.
	GlobalDefaultBlock bool `mapstructure:"global_default_block"`

	// Optional YAML file overriding the built-in schedule presets.
	PresetFile string `mapstructure:"preset_file"`

	// Base URL for approval links embedded in notifications and QR codes.
	BaseURL string `mapstructure:"base_url"`

	Storage Storage `mapstructure:"storage"`

	// Pending-device notification mail
	Notify notify.SMTPConfig `mapstructure:"notify"`
}

var Cfg *Config

// Check if running in Docker container by checking for the presence of /.dockerenv file
func runningInDocker() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	return false
}

func getConfigPath() string {
	if runningInDocker() {
		return "/app/instance"
	}
	return "./instance"
}

// resolveSQLitePath anchors a relative database path in the instance folder.
// ":memory:" and absolute paths pass through untouched.
func resolveSQLitePath(path string) (string, error) {
	switch {
	case path == "":
		return "", fmt.Errorf("storage path must not be empty")
	case path == ":memory:":
		return path, nil
	case !os.IsPathSeparator(path[0]):
		return fmt.Sprintf("%s/%s", getConfigPath(), path), nil
	}
	return path, nil
}

// LoadConfig reads configuration from environment variables and returns a Config struct.
func LoadConfig(configFile ...string) (*Config, error) {
	var cfg Config

	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(getConfigPath())
	v.AddConfigPath(".")
	v.SetEnvPrefix("")

	if len(configFile) > 0 {
		for _, path := range configFile {
			v.SetConfigFile(path)
		}
	}

	for k, val := range Defaults() {
		v.SetDefault(k, val)
	}

	// Load configuration from environment variables
	v.AutomaticEnv()

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %v", err)
	}

	// Convert relative sqlite path to absolute instance folder
	if cfg.Storage.SQLite != nil {
		path, err := resolveSQLitePath(cfg.Storage.SQLite.Path)
		if err != nil {
			return nil, err
		}
		cfg.Storage.SQLite.Path = path
	}

	// Warn if secret is missing - this is a critical security setting for production
	if cfg.Secret == "" {
		if os.Getenv("GIN_MODE") == "release" {
			panic("SECRET configuration variable is required in production")
		} else {
			slog.Warn("Secret is not set. Do not use in production.")
		}
	}

	Cfg = &cfg
	return &cfg, nil
}
